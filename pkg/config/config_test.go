package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "release.yml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
	assert.Equal(t, "https://github.com/umisoft-19/core.git", cfg.Source.URL())
	require.NoError(t, cfg.Validate())
}

func TestLoad_OverridesKeepOtherDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "release.yml")
	data := `
application:
  name: Demo Server
  version: "1.4.2"
  entry_point: demo:main
  console: true
policies:
  vend-wheels: abort-on-failure
timeouts:
  default: 10m
  steps:
    fetch-source: 90s
retry:
  attempts: 3
  backoff: 500ms
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "Demo Server", cfg.Application.Name)
	assert.True(t, cfg.Application.Console)
	assert.Equal(t, "bench_v2", cfg.Source.Branch, "untouched sections keep defaults")
	assert.Equal(t, "3.11.1", cfg.Python.Version)
	assert.Equal(t, PolicyAbortOnFailure, cfg.PolicyFor("vend-wheels", PolicyWarnAndContinue))
	assert.Equal(t, PolicyWarnAndContinue, cfg.PolicyFor("build-assets", PolicyWarnAndContinue))
	assert.Equal(t, 90*time.Second, cfg.TimeoutFor("fetch-source"))
	assert.Equal(t, 10*time.Minute, cfg.TimeoutFor("server-env"))
	assert.Equal(t, 3, cfg.Retry.Attempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Retry.Backoff)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "release.yml")
	require.NoError(t, os.WriteFile(path, []byte("application: [unclosed"), 0644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bad app version", func(c *Config) { c.Application.Version = "two" }},
		{"bad python version", func(c *Config) { c.Python.Version = "" }},
		{"unknown policy", func(c *Config) { c.Policies["fetch-source"] = "ignore" }},
		{"zero attempts", func(c *Config) { c.Retry.Attempts = 0 }},
		{"missing branch", func(c *Config) { c.Source.Branch = "" }},
		{"missing name", func(c *Config) { c.Application.Name = "" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
