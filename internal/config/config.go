package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Engine drivers.
const (
	EngineDriverProcess = "process"
	EngineDriverRemote  = "remote"
)

// Config holds the dockapi server configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Cache    CacheConfig    `yaml:"cache"`
	Engine   EngineConfig   `yaml:"engine"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds key-value store connection settings.
// An empty Addrs list runs the server without a store (no result cache).
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// CacheConfig controls the docking result cache.
type CacheConfig struct {
	Enabled   bool   `yaml:"enabled"`
	TTLSec    int    `yaml:"ttl_sec"`
	KeyPrefix string `yaml:"key_prefix"`
}

// EngineConfig selects and tunes the docking engine transport.
type EngineConfig struct {
	Driver        string   `yaml:"driver"` // process, remote (default: process)
	Command       []string `yaml:"command"`
	WorkDir       string   `yaml:"work_dir"`
	BaseURL       string   `yaml:"base_url"`
	TimeoutSec    int      `yaml:"timeout_sec"`
	MaxConcurrent int      `yaml:"max_concurrent"`
	MaxRetries    int      `yaml:"max_retries"`
	PH            float64  `yaml:"ph"`
	NumCPUs       int      `yaml:"num_cpus"` // 0 = engine default
	Seed          int64    `yaml:"seed"`

	HealthTimeoutSec int `yaml:"health_timeout_sec"`
	HealthCacheSec   int `yaml:"health_cache_sec"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes raw YAML, expands ${VAR} references, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Engine.Driver == "" {
		c.Engine.Driver = EngineDriverProcess
	}
	if len(c.Engine.Command) == 0 && c.Engine.Driver == EngineDriverProcess {
		c.Engine.Command = []string{"python3", "scripts/dockstring_bridge.py"}
	}
	if c.Engine.TimeoutSec <= 0 {
		c.Engine.TimeoutSec = 600
	}
	if c.Engine.MaxConcurrent <= 0 {
		c.Engine.MaxConcurrent = runtime.NumCPU()
	}
	if c.Engine.MaxRetries <= 0 {
		c.Engine.MaxRetries = 3
	}
	if c.Engine.PH == 0 {
		c.Engine.PH = 7.4
	}
	if c.Engine.Seed == 0 {
		c.Engine.Seed = 974528263
	}
	if c.Engine.HealthTimeoutSec <= 0 {
		c.Engine.HealthTimeoutSec = 10
	}
	if c.Engine.HealthCacheSec <= 0 {
		c.Engine.HealthCacheSec = 5
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = c.Engine.TimeoutSec + 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 30
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "valkey"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 7 * 24 * 3600
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = "dockapi:"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.HTTP.WriteTimeoutSec <= c.Engine.TimeoutSec {
		return fmt.Errorf(
			"http.write_timeout_sec (%d) must exceed engine.timeout_sec (%d)",
			c.HTTP.WriteTimeoutSec, c.Engine.TimeoutSec,
		)
	}
	switch c.Database.Driver {
	case "valkey", "redis":
		// ok
	default:
		return fmt.Errorf("database.driver must be \"valkey\" or \"redis\", got %q", c.Database.Driver)
	}
	if c.Cache.Enabled && len(c.Database.Addrs) == 0 {
		return fmt.Errorf("cache.enabled requires database.addrs")
	}
	switch c.Engine.Driver {
	case EngineDriverProcess:
		if len(c.Engine.Command) == 0 || c.Engine.Command[0] == "" {
			return fmt.Errorf("engine.command is required for the process driver")
		}
	case EngineDriverRemote:
		if c.Engine.BaseURL == "" {
			return fmt.Errorf("engine.base_url is required for the remote driver")
		}
	default:
		return fmt.Errorf("engine.driver must be %q or %q, got %q",
			EngineDriverProcess, EngineDriverRemote, c.Engine.Driver)
	}
	if c.Engine.NumCPUs < 0 {
		return fmt.Errorf("engine.num_cpus must not be negative, got %d", c.Engine.NumCPUs)
	}
	return nil
}

// CacheEnabled reports whether docking results should be cached in the store.
func (c *Config) CacheEnabled() bool {
	return c.Cache.Enabled && len(c.Database.Addrs) > 0
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
