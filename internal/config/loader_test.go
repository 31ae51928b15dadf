package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWritesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, resolved, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if resolved != path {
		t.Fatalf("resolved path = %q, want %q", resolved, path)
	}
	if cfg != Default() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}

	again, _, err := Load(nil, path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again != Default() {
		t.Fatalf("written defaults did not round trip: %+v", again)
	}
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := strings.Join([]string{
		"addr: \":9000\"",
		"shutdown_timeout: 2s",
		"storage:",
		"  driver: badger",
		"  path: /tmp/duochat",
	}, "\n")
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("DUOCHAT_ADDR", ":9100")
	t.Setenv("DUOCHAT_STORAGE_PATH", "/var/lib/duochat")

	cfg, _, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9100" {
		t.Fatalf("env should override file addr, got %q", cfg.Addr)
	}
	if cfg.ShutdownTimeout != 2*time.Second {
		t.Fatalf("file should override default timeout, got %v", cfg.ShutdownTimeout)
	}
	if cfg.Storage.Driver != DriverBadger || cfg.Storage.Path != "/var/lib/duochat" {
		t.Fatalf("unexpected storage config: %+v", cfg.Storage)
	}
	if cfg.ReadHeaderTimeout != Default().ReadHeaderTimeout {
		t.Fatalf("unset key should keep default, got %v", cfg.ReadHeaderTimeout)
	}
}

func TestUpdateFrom(t *testing.T) {
	cfg := Default()
	cfg.UpdateFrom(Config{LogLevel: "debug", Storage: StorageConfig{Path: "other.db"}})

	if cfg.LogLevel != "debug" || cfg.Storage.Path != "other.db" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Addr != Default().Addr || cfg.Storage.Driver != DriverSQLite {
		t.Fatalf("zero values must not override: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"in-memory badger", func(c *Config) { c.Storage = StorageConfig{Driver: DriverBadger} }, false},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "postgres" }, true},
		{"sqlite without path", func(c *Config) { c.Storage.Path = "" }, true},
		{"missing addr", func(c *Config) { c.Addr = "" }, true},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, true},
		{"negative rate limit", func(c *Config) { c.InboundRateLimit = -1 }, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
