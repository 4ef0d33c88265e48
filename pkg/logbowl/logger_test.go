package logbowl

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateWithFile_MirrorsToFile(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")
	t.Setenv(LogFormatEnvVar, FormatText)
	logPath := filepath.Join(t.TempDir(), "build.log")
	var console bytes.Buffer

	log, err := NewWithFile("test-logger", logPath, &console)
	require.NoError(t, err)
	log.Info("pipeline", "start", "progress", "Starting run", "steps", 8)
	log.Debug("tool", "exec", "debug", "Running tool", "name", "pip")
	log.Error("env", "install", "error", "could not install requirements")
	require.NoError(t, log.Close())

	fileBytes, err := os.ReadFile(logPath)
	require.NoError(t, err)
	fileOut := string(fileBytes)
	assert.Contains(t, fileOut, "[INFO]")
	assert.Contains(t, fileOut, "[PIPELINE] Starting run")
	assert.Contains(t, fileOut, "[DEBUG]", "file sink records debug lines")
	assert.Contains(t, fileOut, "[TOOL] Running tool")
	assert.Contains(t, fileOut, "[ERROR]")

	consoleOut := console.String()
	assert.Contains(t, consoleOut, "[PIPELINE] Starting run")
	assert.Contains(t, consoleOut, "[ENV] could not install requirements")
	assert.NotContains(t, consoleOut, "Running tool", "console stays at info level")
}

func TestCreateWithFile_TruncatesExistingFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "build.log")
	require.NoError(t, os.WriteFile(logPath, []byte("stale line from last run\n"), 0644))

	log, err := NewWithFile("test-logger", logPath, &bytes.Buffer{})
	require.NoError(t, err)
	log.Info("system", "init", "info", "fresh")
	require.NoError(t, log.Close())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "stale line")
	assert.Contains(t, string(data), "fresh")
}

func TestEmojiFormatIsDefault(t *testing.T) {
	t.Setenv(LogFormatEnvVar, "")
	var buf bytes.Buffer
	log := NewWithOutput("test-logger", &buf)
	log.Info("archive", "pack", "success", "Packed")
	assert.Contains(t, buf.String(), "📦 📦 ✅ Packed")
}

func TestGetEmoji_FallsBackToDefault(t *testing.T) {
	assert.Equal(t, domains["default"], getEmoji(domains, "no-such-domain"))
	assert.Equal(t, statuses["skip"], getEmoji(statuses, "skip"))
}

func TestClose_NoFile(t *testing.T) {
	assert.NoError(t, Create("test-logger").Close())
}
