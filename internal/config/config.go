// Package config loads offsearch configuration from defaults, YAML files and
// OFFSEARCH_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete offsearch configuration.
type Config struct {
	Version  int            `yaml:"version" json:"version"`
	Data     DataConfig     `yaml:"data" json:"data"`
	Engine   EngineConfig   `yaml:"engine" json:"engine"`
	Registry RegistryConfig `yaml:"registry" json:"registry"`
	Watch    WatchConfig    `yaml:"watch" json:"watch"`
	Daemon   DaemonConfig   `yaml:"daemon" json:"daemon"`
	Server   ServerConfig   `yaml:"server" json:"server"`
}

// DataConfig configures where mirrors live on disk.
// Empty values resolve to platform defaults at client construction.
type DataConfig struct {
	RootDir string `yaml:"root_dir" json:"root_dir"`
	TempDir string `yaml:"temp_dir" json:"temp_dir"`
}

// EngineConfig configures the local search engine.
type EngineConfig struct {
	// Backend selects the on-disk engine: "sqlite" (default) or "bleve".
	Backend string `yaml:"backend" json:"backend"`

	// License is the credential passed to EnableOfflineMode.
	// Prefer OFFSEARCH_LICENSE over writing it to a file.
	License string `yaml:"license" json:"-"`

	// MaxResults caps hits per search when the query sets no limit.
	MaxResults int `yaml:"max_results" json:"max_results"`

	// CacheSize is the number of search results kept per client (0 disables).
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// RegistryConfig configures index handle retention.
type RegistryConfig struct {
	// PinSize is how many recently used handles are kept strongly reachable.
	PinSize int `yaml:"pin_size" json:"pin_size"`

	// SweepInterval is how often reclaimed handles are dropped ("0" disables).
	SweepInterval string `yaml:"sweep_interval" json:"sweep_interval"`
}

// WatchConfig configures automatic re-bootstrap on source file changes.
type WatchConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Debounce string `yaml:"debounce" json:"debounce"`
}

// DaemonConfig configures the background search daemon.
type DaemonConfig struct {
	SocketPath string `yaml:"socket_path" json:"socket_path"`
	Timeout    string `yaml:"timeout" json:"timeout"`
}

// ServerConfig configures logging and the MCP transport.
type ServerConfig struct {
	LogLevel  string `yaml:"log_level" json:"log_level"`
	Transport string `yaml:"transport" json:"transport"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Engine: EngineConfig{
			Backend:    "sqlite",
			MaxResults: 20,
			CacheSize:  256,
		},
		Registry: RegistryConfig{
			PinSize:       16,
			SweepInterval: "1m",
		},
		Watch: WatchConfig{
			Enabled:  false,
			Debounce: "500ms",
		},
		Daemon: DaemonConfig{
			SocketPath: defaultSocketPath(),
			Timeout:    "30s",
		},
		Server: ServerConfig{
			LogLevel:  "info",
			Transport: "stdio",
		},
	}
}

func defaultSocketPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".offsearch", "daemon.sock")
	}
	return filepath.Join(home, ".offsearch", "daemon.sock")
}

// GetUserConfigPath returns the path to the user configuration file:
//   - $XDG_CONFIG_HOME/offsearch/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/offsearch/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "offsearch", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "offsearch", "config.yaml")
	}
	return filepath.Join(home, ".config", "offsearch", "config.yaml")
}

// Load loads configuration for the given directory.
// Precedence, lowest first:
//  1. Hardcoded defaults
//  2. User config (~/.config/offsearch/config.yaml)
//  3. Project config (.offsearch.yaml in dir)
//  4. Environment variables (OFFSEARCH_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	userPath := GetUserConfigPath()
	if fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if err := cfg.loadFromDir(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromDir loads .offsearch.yaml or .offsearch.yml when present.
func (c *Config) loadFromDir(dir string) error {
	for _, name := range []string{".offsearch.yaml", ".offsearch.yml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

// loadYAML merges a YAML file into c.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
// Booleans can only be switched on from a file; use env vars to force them off.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Data.RootDir != "" {
		c.Data.RootDir = other.Data.RootDir
	}
	if other.Data.TempDir != "" {
		c.Data.TempDir = other.Data.TempDir
	}

	if other.Engine.Backend != "" {
		c.Engine.Backend = other.Engine.Backend
	}
	if other.Engine.License != "" {
		c.Engine.License = other.Engine.License
	}
	if other.Engine.MaxResults != 0 {
		c.Engine.MaxResults = other.Engine.MaxResults
	}
	if other.Engine.CacheSize != 0 {
		c.Engine.CacheSize = other.Engine.CacheSize
	}

	if other.Registry.PinSize != 0 {
		c.Registry.PinSize = other.Registry.PinSize
	}
	if other.Registry.SweepInterval != "" {
		c.Registry.SweepInterval = other.Registry.SweepInterval
	}

	if other.Watch.Enabled {
		c.Watch.Enabled = true
	}
	if other.Watch.Debounce != "" {
		c.Watch.Debounce = other.Watch.Debounce
	}

	if other.Daemon.SocketPath != "" {
		c.Daemon.SocketPath = other.Daemon.SocketPath
	}
	if other.Daemon.Timeout != "" {
		c.Daemon.Timeout = other.Daemon.Timeout
	}

	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
}

// applyEnvOverrides applies OFFSEARCH_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("OFFSEARCH_DATA_DIR"); v != "" {
		c.Data.RootDir = v
	}
	if v := os.Getenv("OFFSEARCH_TEMP_DIR"); v != "" {
		c.Data.TempDir = v
	}
	if v := os.Getenv("OFFSEARCH_ENGINE"); v != "" {
		c.Engine.Backend = v
	}
	if v := os.Getenv("OFFSEARCH_LICENSE"); v != "" {
		c.Engine.License = v
	}
	if v := os.Getenv("OFFSEARCH_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Engine.MaxResults = n
		}
	}
	if v := os.Getenv("OFFSEARCH_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Engine.CacheSize = n
		}
	}
	if v := os.Getenv("OFFSEARCH_PIN_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Registry.PinSize = n
		}
	}
	if v := os.Getenv("OFFSEARCH_WATCH"); v != "" {
		c.Watch.Enabled = strings.ToLower(v) == "true" || v == "1"
	}
	if v := os.Getenv("OFFSEARCH_SOCKET"); v != "" {
		c.Daemon.SocketPath = v
	}
	if v := os.Getenv("OFFSEARCH_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Engine.Backend) {
	case "sqlite", "bleve":
	default:
		return fmt.Errorf("engine.backend must be 'sqlite' or 'bleve', got %s", c.Engine.Backend)
	}

	if c.Engine.MaxResults <= 0 {
		return fmt.Errorf("engine.max_results must be positive, got %d", c.Engine.MaxResults)
	}
	if c.Engine.CacheSize < 0 {
		return fmt.Errorf("engine.cache_size must be non-negative, got %d", c.Engine.CacheSize)
	}
	if c.Registry.PinSize < 0 {
		return fmt.Errorf("registry.pin_size must be non-negative, got %d", c.Registry.PinSize)
	}

	durations := map[string]string{
		"registry.sweep_interval": c.Registry.SweepInterval,
		"watch.debounce":          c.Watch.Debounce,
		"daemon.timeout":          c.Daemon.Timeout,
	}
	for key, v := range durations {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("%s is not a valid duration: %q", key, v)
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	if strings.ToLower(c.Server.Transport) != "stdio" {
		return fmt.Errorf("server.transport must be 'stdio', got %s", c.Server.Transport)
	}

	return nil
}

// Duration parses one of the duration fields, returning fallback on error or
// when empty.
func Duration(v string, fallback time.Duration) time.Duration {
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
