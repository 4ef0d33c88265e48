// Package config loads the release.yml file that parameterizes a
// release-builder run.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is looked up in the workspace root when no path is given.
const DefaultConfigFile = "release.yml"

// Failure policy names accepted in the policies map.
const (
	PolicyAbortOnFailure  = "abort-on-failure"
	PolicyWarnAndContinue = "warn-and-continue"
)

// Config is the top-level release-builder configuration.
type Config struct {
	Source      SourceConfig      `yaml:"source"`
	Application ApplicationConfig `yaml:"application"`
	Python      PythonConfig      `yaml:"python"`
	Assets      AssetsConfig      `yaml:"assets"`
	Launcher    LauncherConfig    `yaml:"launcher"`
	Wheels      WheelsConfig      `yaml:"wheels"`
	Installer   InstallerConfig   `yaml:"installer"`
	Archive     ArchiveConfig     `yaml:"archive"`
	Tools       ToolsConfig       `yaml:"tools"`
	Policies    map[string]string `yaml:"policies"`
	Timeouts    TimeoutsConfig    `yaml:"timeouts"`
	Retry       RetryConfig       `yaml:"retry"`
}

// SourceConfig pins the repository snapshot to package.
type SourceConfig struct {
	Host   string `yaml:"host"`
	Path   string `yaml:"path"`
	Branch string `yaml:"branch"`
}

// URL returns the clone URL.
func (s SourceConfig) URL() string {
	return s.Host + s.Path
}

// ApplicationConfig is the metadata written to the installer config.
type ApplicationConfig struct {
	Name       string `yaml:"name"`
	Version    string `yaml:"version"`
	EntryPoint string `yaml:"entry_point"`
	Console    bool   `yaml:"console"`
}

// PythonConfig selects the interpreter bundled by the installer.
type PythonConfig struct {
	Version string `yaml:"version"`
}

// AssetsConfig locates the web asset bundle inside the source checkout.
type AssetsConfig struct {
	Dir           string `yaml:"dir"`
	StatusFile    string `yaml:"status_file"`
	WebpackConfig string `yaml:"webpack_config"`
}

// LauncherConfig locates the launcher sources relative to the workspace root.
type LauncherConfig struct {
	Source string   `yaml:"source"`
	Spec   string   `yaml:"spec"`
	Inputs []string `yaml:"inputs"`
}

// WheelsConfig drives wheel vending.
type WheelsConfig struct {
	Manifest string `yaml:"manifest"`
	Listing  string `yaml:"listing"`
	Pattern  string `yaml:"pattern"`
}

// InstallerConfig drives installer config generation and packaging.
type InstallerConfig struct {
	Requirements         string   `yaml:"requirements"`
	RequirementsEncoding string   `yaml:"requirements_encoding"`
	ExtraWheelSources    string   `yaml:"extra_wheel_sources"`
	BuilderScript        string   `yaml:"builder_script"`
	Artifacts            []string `yaml:"artifacts"`
}

// ArchiveConfig drives the release archive step.
type ArchiveConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Exclude    []string `yaml:"exclude"`
	SigningKey string   `yaml:"signing_key"`
}

// ToolsConfig names the external executables. Bare names are resolved on
// PATH, anything with a path separator is used as-is.
type ToolsConfig struct {
	Python  string `yaml:"python"`
	Npm     string `yaml:"npm"`
	Webpack string `yaml:"webpack"`
	Pip     string `yaml:"pip"`
	Pynsist string `yaml:"pynsist"`
}

// TimeoutsConfig bounds each external tool invocation. Zero disables.
type TimeoutsConfig struct {
	Default time.Duration            `yaml:"default"`
	Steps   map[string]time.Duration `yaml:"steps"`
}

// RetryConfig bounds retries of network-bound invocations.
type RetryConfig struct {
	Attempts int           `yaml:"attempts"`
	Backoff  time.Duration `yaml:"backoff"`
}

// Load reads configuration from a YAML file.
// If path is empty, it tries the default file.
// Returns defaults if the file doesn't exist.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Defaults(), nil
		}
		return nil, err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Defaults returns the configuration used when no release.yml is present.
func Defaults() *Config {
	return &Config{
		Source: SourceConfig{
			Host:   "https://github.com/",
			Path:   "umisoft-19/core.git",
			Branch: "bench_v2",
		},
		Application: ApplicationConfig{
			Name:       "Bench Business Tools",
			Version:    "2.0",
			EntryPoint: "myapp:main",
		},
		Python: PythonConfig{Version: "3.11.1"},
		Assets: AssetsConfig{
			Dir:           "assets",
			StatusFile:    "webpack-stats.json",
			WebpackConfig: "webpack.prod.js",
		},
		Launcher: LauncherConfig{
			Source: "launcher",
			Spec:   "launcher/launcher.spec",
			Inputs: []string{"launcher/**"},
		},
		Wheels: WheelsConfig{
			Manifest: "wheel_names.txt",
			Listing:  "wheels.txt",
			Pattern:  "*",
		},
		Installer: InstallerConfig{
			Requirements:      "bench_requirements.txt",
			ExtraWheelSources: "wheels/",
			Artifacts:         []string{"build/nsis/*.exe"},
		},
		Archive: ArchiveConfig{Enabled: true},
		Tools: ToolsConfig{
			Python:  "python",
			Npm:     "npm",
			Webpack: "webpack",
			Pip:     "pip",
			Pynsist: "pynsist",
		},
		Policies: map[string]string{},
		Timeouts: TimeoutsConfig{Steps: map[string]time.Duration{}},
		Retry:    RetryConfig{Attempts: 1, Backoff: 2 * time.Second},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Source.Path == "" || c.Source.Branch == "" {
		return errors.New("source.path and source.branch are required")
	}
	if c.Application.Name == "" {
		return errors.New("application.name is required")
	}
	if _, err := semver.NewVersion(c.Application.Version); err != nil {
		return fmt.Errorf("application.version %q: %w", c.Application.Version, err)
	}
	if _, err := semver.NewVersion(c.Python.Version); err != nil {
		return fmt.Errorf("python.version %q: %w", c.Python.Version, err)
	}
	for step, policy := range c.Policies {
		if policy != PolicyAbortOnFailure && policy != PolicyWarnAndContinue {
			return fmt.Errorf("policies.%s: unknown policy %q", step, policy)
		}
	}
	if c.Retry.Attempts < 1 {
		return fmt.Errorf("retry.attempts must be at least 1, got %d", c.Retry.Attempts)
	}
	if c.Timeouts.Default < 0 {
		return errors.New("timeouts.default must not be negative")
	}
	return nil
}

// PolicyFor returns the configured policy name for step, or fallback.
func (c *Config) PolicyFor(step, fallback string) string {
	if p, ok := c.Policies[step]; ok && p != "" {
		return p
	}
	return fallback
}

// TimeoutFor returns the per-invocation timeout for step.
func (c *Config) TimeoutFor(step string) time.Duration {
	if d, ok := c.Timeouts.Steps[step]; ok {
		return d
	}
	return c.Timeouts.Default
}
