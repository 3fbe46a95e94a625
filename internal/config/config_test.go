package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefaultConfig(t *testing.T) {
	config := Default()

	if config.Database.Provider != "postgresql" {
		t.Errorf("Expected database provider to be 'postgresql', got '%s'", config.Database.Provider)
	}

	if config.Database.URLEnv != "DATABASE_URL" {
		t.Errorf("Expected database url_env to be 'DATABASE_URL', got '%s'", config.Database.URLEnv)
	}

	if config.Server.Port != 3000 {
		t.Errorf("Expected server port 3000, got %d", config.Server.Port)
	}

	if config.Pagination.DefaultLimit != 10 || config.Pagination.MaxLimit != 100 {
		t.Errorf("Expected pagination 10/100, got %d/%d", config.Pagination.DefaultLimit, config.Pagination.MaxLimit)
	}

	if config.Search.Policy != PolicyBestEffort || config.Cache.Policy != PolicyBestEffort {
		t.Errorf("Expected best_effort side-effect policies, got search=%s cache=%s", config.Search.Policy, config.Cache.Policy)
	}

	if config.Auth.SessionTTL != 24*time.Hour {
		t.Errorf("Expected 24h session TTL, got %s", config.Auth.SessionTTL)
	}

	if err := config.Validate(); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	path := filepath.Join(dir, "schemajeli.config.yaml")
	content := `
server:
  port: 8080
  environment: production
database:
  provider: sqlite
  url: file:catalog.db
search:
  policy: durable
log:
  level: debug
  color: false
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("Failed to read config: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Expected port 8080, got %d", cfg.Server.Port)
	}
	if !cfg.IsProduction() {
		t.Errorf("Expected production environment")
	}
	if cfg.Provider() != "sqlite" {
		t.Errorf("Expected sqlite provider, got %s", cfg.Provider())
	}
	if cfg.Search.Policy != PolicyDurable {
		t.Errorf("Expected durable search policy, got %s", cfg.Search.Policy)
	}
	if cfg.Cache.Policy != PolicyBestEffort {
		t.Errorf("Expected default cache policy, got %s", cfg.Cache.Policy)
	}
	if cfg.Log.Color {
		t.Errorf("Expected color disabled by config")
	}
	if cfg.Pagination.MaxLimit != 100 {
		t.Errorf("Expected default max limit, got %d", cfg.Pagination.MaxLimit)
	}
}

func TestGetDatabaseURL(t *testing.T) {
	cfg := Default()
	cfg.Database.URLEnv = "SCHEMAJELI_TEST_DATABASE_URL"

	t.Setenv("SCHEMAJELI_TEST_DATABASE_URL", "")
	if _, err := cfg.GetDatabaseURL(); err == nil {
		t.Errorf("Expected error when no URL is configured")
	}

	cfg.Database.URL = "file:fallback.db"
	url, err := cfg.GetDatabaseURL()
	if err != nil || url != "file:fallback.db" {
		t.Errorf("Expected fallback URL, got %q (%v)", url, err)
	}

	t.Setenv("SCHEMAJELI_TEST_DATABASE_URL", "postgres://localhost/catalog")
	url, err = cfg.GetDatabaseURL()
	if err != nil || url != "postgres://localhost/catalog" {
		t.Errorf("Expected env URL to win, got %q (%v)", url, err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown provider", func(c *Config) { c.Database.Provider = "oracle" }},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
		{"bad search policy", func(c *Config) { c.Search.Policy = "sometimes" }},
		{"bad cache policy", func(c *Config) { c.Cache.Policy = "never" }},
		{"default above max", func(c *Config) { c.Pagination.DefaultLimit = 500 }},
		{"ldap without url", func(c *Config) { c.Auth.LDAP.Enabled = true }},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }},
		{"empty export path", func(c *Config) { c.ExportPath = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Expected validation error")
			}
		})
	}
}

func TestNormalizeProvider(t *testing.T) {
	cases := map[string]string{
		"postgresql": "postgres",
		"Postgres":   "postgres",
		"mysql":      "mysql",
		"sqlite3":    "sqlite",
	}
	for in, want := range cases {
		if got := NormalizeProvider(in); got != want {
			t.Errorf("NormalizeProvider(%q) = %q, want %q", in, got, want)
		}
	}
}
