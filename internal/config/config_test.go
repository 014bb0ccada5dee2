package config

import (
	"runtime"
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Config{
		HTTP: HTTPConfig{Port: 8080},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_WriteTimeoutMustExceedEngineTimeout(t *testing.T) {
	cfg := validConfig()
	cfg.Engine.TimeoutSec = 120
	cfg.HTTP.WriteTimeoutSec = 60

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error when write timeout is below engine timeout")
	}

	expected := "http.write_timeout_sec (60) must exceed engine.timeout_sec (120)"
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_CacheRequiresAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Cache.Enabled = true

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for cache without database addrs")
	}

	cfg.Database.Addrs = []string{"localhost:6379"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.CacheEnabled() {
		t.Error("expected CacheEnabled() to be true")
	}
}

func TestValidate_UnknownDatabaseDriver(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Driver = "memcached"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown database driver")
	}
}

func TestValidate_EngineDrivers(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"process default", func(c *Config) {}, false},
		{"process empty command", func(c *Config) { c.Engine.Command = []string{""} }, true},
		{"remote without url", func(c *Config) { c.Engine.Driver = EngineDriverRemote }, true},
		{"remote with url", func(c *Config) {
			c.Engine.Driver = EngineDriverRemote
			c.Engine.BaseURL = "http://docking:9000"
		}, false},
		{"unknown driver", func(c *Config) { c.Engine.Driver = "grpc" }, true},
		{"negative cpus", func(c *Config) { c.Engine.NumCPUs = -1 }, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.Engine.Driver != EngineDriverProcess {
		t.Errorf("expected engine driver %q, got %q", EngineDriverProcess, cfg.Engine.Driver)
	}
	if strings.Join(cfg.Engine.Command, " ") != "python3 scripts/dockstring_bridge.py" {
		t.Errorf("unexpected default command: %v", cfg.Engine.Command)
	}
	if cfg.Engine.TimeoutSec != 600 {
		t.Errorf("expected TimeoutSec=600, got %d", cfg.Engine.TimeoutSec)
	}
	if cfg.Engine.MaxConcurrent != runtime.NumCPU() {
		t.Errorf("expected MaxConcurrent=%d, got %d", runtime.NumCPU(), cfg.Engine.MaxConcurrent)
	}
	if cfg.Engine.PH != 7.4 {
		t.Errorf("expected PH=7.4, got %v", cfg.Engine.PH)
	}
	if cfg.Engine.Seed != 974528263 {
		t.Errorf("expected Seed=974528263, got %d", cfg.Engine.Seed)
	}
	if cfg.Engine.HealthTimeoutSec != 10 || cfg.Engine.HealthCacheSec != 5 {
		t.Errorf("expected health timeout 10s and cache 5s, got %d/%d",
			cfg.Engine.HealthTimeoutSec, cfg.Engine.HealthCacheSec)
	}
	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 630 {
		t.Errorf("expected WriteTimeoutSec=630, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Database.Driver != "valkey" {
		t.Errorf("expected Database.Driver=valkey, got %q", cfg.Database.Driver)
	}
	if cfg.Cache.TTLSec != 604800 {
		t.Errorf("expected Cache.TTLSec=604800, got %d", cfg.Cache.TTLSec)
	}
	if cfg.Cache.KeyPrefix != "dockapi:" {
		t.Errorf("expected Cache.KeyPrefix=dockapi:, got %q", cfg.Cache.KeyPrefix)
	}
}

func TestParse_ExpandsEnvVars(t *testing.T) {
	t.Setenv("DOCKAPI_TEST_PORT", "9090")

	cfg, err := Parse([]byte(`
http:
  port: ${DOCKAPI_TEST_PORT}
engine:
  driver: remote
  base_url: ${DOCKAPI_TEST_ENGINE_URL:-http://localhost:9000}
auth:
  api_keys: ["${DOCKAPI_TEST_MISSING}"]
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.HTTP.Port)
	}
	if cfg.Engine.BaseURL != "http://localhost:9000" {
		t.Errorf("expected default base url, got %q", cfg.Engine.BaseURL)
	}
	if len(cfg.Auth.APIKeys) != 1 || cfg.Auth.APIKeys[0] != "" {
		t.Errorf("expected one empty api key, got %v", cfg.Auth.APIKeys)
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	if _, err := Parse([]byte("http: [")); err == nil {
		t.Fatal("expected parse error")
	}
}
