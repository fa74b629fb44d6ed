// Package config loads arena settings from defaults, an optional
// config.yaml in the data directory, and ARENA_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "ARENA"

type Config struct {
	DataDir  string         `mapstructure:"data_dir"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Registry RegistryConfig `mapstructure:"registry"`
	Log      LogConfig      `mapstructure:"log"`
}

// BackendConfig selects and tunes the execution backend.
type BackendConfig struct {
	// Kind is "local" or "isolated".
	Kind string `mapstructure:"kind"`
	// Command is the isolated backend's argv template. Empty means the
	// built-in default.
	Command        []string      `mapstructure:"command"`
	Timeout        time.Duration `mapstructure:"timeout"`
	KeepWorkspaces bool          `mapstructure:"keep_workspaces"`
}

// RegistryConfig selects where agent definitions are kept: "file" (one
// JSON file per agent) or "sqlite".
type RegistryConfig struct {
	Kind string `mapstructure:"kind"`
}

type LogConfig struct {
	// Path of the debug log. Empty disables logging.
	Path string `mapstructure:"path"`
}

// New loads configuration with the data directory taken from
// ARENA_DATA_DIR, falling back to ~/.arena.
func New() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	dataDir := getEnv("ARENA_DATA_DIR", filepath.Join(homeDir, ".arena"))
	return load(dataDir, filepath.Join(dataDir, "config.yaml"), false)
}

// LoadFromPath loads configuration from a specific file, which must exist.
func LoadFromPath(path string) (*Config, error) {
	return load(filepath.Dir(path), path, true)
}

func load(dataDir, configPath string, required bool) (*Config, error) {
	v := viper.New()
	setDefaults(v, dataDir)

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if required || !isNotExist(err) {
			return nil, fmt.Errorf("reading config from %s: %w", configPath, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, dataDir string) {
	v.SetDefault("data_dir", dataDir)
	v.SetDefault("backend.kind", "local")
	v.SetDefault("backend.command", []string{})
	v.SetDefault("backend.timeout", 10*time.Minute)
	v.SetDefault("backend.keep_workspaces", false)
	v.SetDefault("registry.kind", "file")
	v.SetDefault("log.path", "")
}

func isNotExist(err error) bool {
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		return true
	}
	return os.IsNotExist(err)
}

func (c *Config) validate() error {
	switch c.Backend.Kind {
	case "", "local", "isolated":
	default:
		return fmt.Errorf("unknown backend kind %q", c.Backend.Kind)
	}
	switch c.Registry.Kind {
	case "file", "sqlite":
	default:
		return fmt.Errorf("unknown registry kind %q", c.Registry.Kind)
	}
	if c.Backend.Timeout < 0 {
		return fmt.Errorf("backend timeout must not be negative")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	return nil
}

func (c *Config) EnsureDataDir() error {
	for _, dir := range []string{c.DataDir, c.AgentsDir(), c.ScriptsDir(), c.WorkflowsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "arena.db")
}

func (c *Config) AgentsDir() string {
	return filepath.Join(c.DataDir, "agents")
}

// ScriptsDir holds <agent>.lua scripts for the local backend.
func (c *Config) ScriptsDir() string {
	return filepath.Join(c.DataDir, "scripts")
}

func (c *Config) WorkflowsDir() string {
	return filepath.Join(c.DataDir, "workflows")
}

func (c *Config) WorkspacesDir() string {
	return filepath.Join(c.DataDir, "workspaces")
}

// ExportPath is the default run log destination.
func (c *Config) ExportPath() string {
	return filepath.Join(c.DataDir, "runs.json")
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
