package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Version    string     `json:"version" mapstructure:"version" yaml:"version"`
	ExportPath string     `json:"export_path" mapstructure:"export_path" yaml:"export_path"`
	Server     Server     `json:"server" mapstructure:"server" yaml:"server"`
	Database   Database   `json:"database" mapstructure:"database" yaml:"database"`
	Auth       Auth       `json:"auth" mapstructure:"auth" yaml:"auth"`
	Search     Search     `json:"search" mapstructure:"search" yaml:"search"`
	Cache      Cache      `json:"cache" mapstructure:"cache" yaml:"cache"`
	Log        Log        `json:"log" mapstructure:"log" yaml:"log"`
	Pagination Pagination `json:"pagination" mapstructure:"pagination" yaml:"pagination"`
}

type Server struct {
	Host        string   `json:"host" mapstructure:"host" yaml:"host"`
	Port        int      `json:"port" mapstructure:"port" yaml:"port"`
	Environment string   `json:"environment" mapstructure:"environment" yaml:"environment"`
	CORSOrigins []string `json:"cors_origins" mapstructure:"cors_origins" yaml:"cors_origins"`
}

type Database struct {
	Provider     string `json:"provider" mapstructure:"provider" yaml:"provider"`
	URLEnv       string `json:"url_env" mapstructure:"url_env" yaml:"url_env"`
	URL          string `json:"url,omitempty" mapstructure:"url" yaml:"url,omitempty"`
	MaxOpenConns int    `json:"max_open_conns" mapstructure:"max_open_conns" yaml:"max_open_conns"`
}

type Auth struct {
	SessionTTL time.Duration `json:"session_ttl" mapstructure:"session_ttl" yaml:"session_ttl"`
	LDAP       LDAP          `json:"ldap" mapstructure:"ldap" yaml:"ldap"`
}

type LDAP struct {
	Enabled         bool   `json:"enabled" mapstructure:"enabled" yaml:"enabled"`
	URL             string `json:"url" mapstructure:"url" yaml:"url"`
	BindDN          string `json:"bind_dn" mapstructure:"bind_dn" yaml:"bind_dn"`
	BindPasswordEnv string `json:"bind_password_env" mapstructure:"bind_password_env" yaml:"bind_password_env"`
	BaseDN          string `json:"base_dn" mapstructure:"base_dn" yaml:"base_dn"`
	UserAttribute   string `json:"user_attribute" mapstructure:"user_attribute" yaml:"user_attribute"`
}

type Search struct {
	Enabled   bool     `json:"enabled" mapstructure:"enabled" yaml:"enabled"`
	Addresses []string `json:"addresses" mapstructure:"addresses" yaml:"addresses"`
	Index     string   `json:"index" mapstructure:"index" yaml:"index"`
	Policy    string   `json:"policy" mapstructure:"policy" yaml:"policy"`
}

type Cache struct {
	Enabled   bool          `json:"enabled" mapstructure:"enabled" yaml:"enabled"`
	RedisAddr string        `json:"redis_addr" mapstructure:"redis_addr" yaml:"redis_addr"`
	Password  string        `json:"password,omitempty" mapstructure:"password" yaml:"password,omitempty"`
	DB        int           `json:"db" mapstructure:"db" yaml:"db"`
	TTL       time.Duration `json:"ttl" mapstructure:"ttl" yaml:"ttl"`
	Policy    string        `json:"policy" mapstructure:"policy" yaml:"policy"`
}

type Log struct {
	Level string `json:"level" mapstructure:"level" yaml:"level"`
	Color bool   `json:"color" mapstructure:"color" yaml:"color"`
}

type Pagination struct {
	DefaultLimit int `json:"default_limit" mapstructure:"default_limit" yaml:"default_limit"`
	MaxLimit     int `json:"max_limit" mapstructure:"max_limit" yaml:"max_limit"`
}

const (
	PolicyDurable    = "durable"
	PolicyBestEffort = "best_effort"

	EnvProduction = "production"
)

// Default returns the configuration used when no config file is present.
func Default() *Config {
	cfg := &Config{Log: Log{Color: true}}
	cfg.applyDefaults()
	return cfg
}

func Load() (*Config, error) {
	var cfg Config

	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()
	if !viper.IsSet("log.color") {
		cfg.Log.Color = true
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Version == "" {
		c.Version = "1"
	}
	if c.ExportPath == "" {
		c.ExportPath = "catalog_export"
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Server.Environment == "" {
		c.Server.Environment = "development"
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"http://localhost:5173"}
	}
	if c.Database.Provider == "" {
		c.Database.Provider = "postgresql"
	}
	if c.Database.URLEnv == "" {
		c.Database.URLEnv = "DATABASE_URL"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Auth.SessionTTL == 0 {
		c.Auth.SessionTTL = 24 * time.Hour
	}
	if c.Auth.LDAP.UserAttribute == "" {
		c.Auth.LDAP.UserAttribute = "uid"
	}
	if c.Auth.LDAP.BindPasswordEnv == "" {
		c.Auth.LDAP.BindPasswordEnv = "LDAP_BIND_PASSWORD"
	}
	if c.Search.Index == "" {
		c.Search.Index = "schemajeli-catalog"
	}
	if len(c.Search.Addresses) == 0 {
		c.Search.Addresses = []string{"http://localhost:9200"}
	}
	if c.Search.Policy == "" {
		c.Search.Policy = PolicyBestEffort
	}
	if c.Cache.RedisAddr == "" {
		c.Cache.RedisAddr = "localhost:6379"
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 5 * time.Minute
	}
	if c.Cache.Policy == "" {
		c.Cache.Policy = PolicyBestEffort
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Pagination.DefaultLimit == 0 {
		c.Pagination.DefaultLimit = 10
	}
	if c.Pagination.MaxLimit == 0 {
		c.Pagination.MaxLimit = 100
	}
}

func (c *Config) GetDatabaseURL() (string, error) {
	dbURL := os.Getenv(c.Database.URLEnv)
	if dbURL == "" {
		dbURL = c.Database.URL
	}
	if dbURL == "" {
		return "", fmt.Errorf("database URL not found in environment variable %s", c.Database.URLEnv)
	}
	return dbURL, nil
}

func (c *Config) GetLDAPBindPassword() string {
	return os.Getenv(c.Auth.LDAP.BindPasswordEnv)
}

// Provider returns the canonical provider name: postgres, mysql or sqlite.
func (c *Config) Provider() string {
	return NormalizeProvider(c.Database.Provider)
}

func NormalizeProvider(provider string) string {
	switch strings.ToLower(provider) {
	case "postgresql", "postgres":
		return "postgres"
	case "mysql":
		return "mysql"
	case "sqlite", "sqlite3":
		return "sqlite"
	default:
		return strings.ToLower(provider)
	}
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, EnvProduction)
}

func (c *Config) Validate() error {
	supportedProviders := []string{"postgresql", "postgres", "mysql", "sqlite", "sqlite3"}
	supported := false
	for _, provider := range supportedProviders {
		if c.Database.Provider == provider {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("unsupported database provider: %s. Supported providers: %v", c.Database.Provider, supportedProviders)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.ExportPath == "" {
		return fmt.Errorf("export_path cannot be empty")
	}

	for name, policy := range map[string]string{"search.policy": c.Search.Policy, "cache.policy": c.Cache.Policy} {
		if policy != PolicyDurable && policy != PolicyBestEffort {
			return fmt.Errorf("%s must be %q or %q, got %q", name, PolicyDurable, PolicyBestEffort, policy)
		}
	}

	if c.Pagination.DefaultLimit < 1 || c.Pagination.MaxLimit < 1 {
		return fmt.Errorf("pagination limits must be positive")
	}
	if c.Pagination.DefaultLimit > c.Pagination.MaxLimit {
		return fmt.Errorf("pagination.default_limit (%d) exceeds pagination.max_limit (%d)", c.Pagination.DefaultLimit, c.Pagination.MaxLimit)
	}

	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("auth.session_ttl must be positive")
	}

	if c.Auth.LDAP.Enabled && (c.Auth.LDAP.URL == "" || c.Auth.LDAP.BaseDN == "") {
		return fmt.Errorf("auth.ldap.url and auth.ldap.base_dn are required when LDAP is enabled")
	}

	if c.Search.Enabled && len(c.Search.Addresses) == 0 {
		return fmt.Errorf("search.addresses cannot be empty when search is enabled")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log level: %s", c.Log.Level)
	}

	return nil
}
