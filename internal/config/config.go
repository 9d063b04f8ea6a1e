// Package config loads the API configuration from defaults, an optional YAML
// file and the environment (including a .env file), in that order of priority.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

type Config struct {
	Port string `koanf:"port"`

	StoreDriver   string        `koanf:"store_driver"`
	MongoURI      string        `koanf:"mongo_uri"`
	DBUser        string        `koanf:"db_user"`
	DBPass        string        `koanf:"db_pass"`
	DBHost        string        `koanf:"db_host"`
	MongoDatabase string        `koanf:"mongo_database"`
	StoreTimeout  time.Duration `koanf:"store_timeout"`

	TokenSecret string        `koanf:"access_token_secret"`
	TokenTTL    time.Duration `koanf:"token_ttl"`
	BcryptCost  int           `koanf:"bcrypt_cost"`

	AllowedOrigins     []string `koanf:"allowed_origins"`
	RateLimitPerMinute int      `koanf:"rate_limit_per_minute"`
	RateLimitBurst     int      `koanf:"rate_limit_burst"`

	RedisAddr              string        `koanf:"redis_addr"`
	RedisPassword          string        `koanf:"redis_password"`
	RedisDB                int           `koanf:"redis_db"`
	CatalogCacheTTL        time.Duration `koanf:"catalog_cache_ttl"`
	CatalogRefreshSchedule string        `koanf:"catalog_refresh_schedule"`

	SMTPHost string `koanf:"smtp_host"`
	SMTPPort int    `koanf:"smtp_port"`
	SMTPUser string `koanf:"smtp_user"`
	SMTPPass string `koanf:"smtp_pass"`
	MailFrom string `koanf:"mail_from"`

	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`
}

func defaults() map[string]any {
	return map[string]any{
		"port":                     "5000",
		"store_driver":             DriverMongo,
		"mongo_database":           "doctors_portal",
		"store_timeout":            5 * time.Second,
		"token_ttl":                time.Hour,
		"bcrypt_cost":              10,
		"allowed_origins":          []string{"*"},
		"rate_limit_per_minute":    60,
		"rate_limit_burst":         10,
		"catalog_cache_ttl":        5 * time.Minute,
		"catalog_refresh_schedule": "@every 5m",
		"smtp_port":                587,
		"log_level":                "info",
		"log_format":               "json",
	}
}

// Load reads .env (when present), then layers defaults, the YAML file at path
// (when non-empty) and environment variables. Environment names are the
// upper-case form of the koanf keys, e.g. ACCESS_TOKEN_SECRET.
func Load(path string) (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(mapProvider(defaults()), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}
	if err := k.Load(env.ProviderWithValue("", ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// listKeys are comma-separated lists when set through the environment.
var listKeys = map[string]bool{"allowed_origins": true}

func envValue(key, value string) (string, any) {
	key = strings.ToLower(key)
	if !listKeys[key] {
		return key, value
	}
	var items []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			items = append(items, v)
		}
	}
	return key, items
}

// Validate checks required settings and fills the derived Mongo URI.
func (c *Config) Validate() error {
	if c.TokenSecret == "" {
		return errors.New("config: ACCESS_TOKEN_SECRET is not set")
	}
	switch c.StoreDriver {
	case DriverMemory:
	case DriverMongo:
		if c.MongoURI == "" {
			c.MongoURI = c.atlasURI()
		}
		if c.MongoURI == "" {
			return errors.New("config: MONGO_URI or DB_USER/DB_PASS/DB_HOST must be set for the mongo driver")
		}
	default:
		return fmt.Errorf("config: unknown store driver %q", c.StoreDriver)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("config: token ttl must be positive, got %s", c.TokenTTL)
	}
	return nil
}

func (c *Config) atlasURI() string {
	if c.DBUser == "" || c.DBPass == "" || c.DBHost == "" {
		return ""
	}
	return fmt.Sprintf("mongodb+srv://%s:%s@%s/?retryWrites=true&w=majority",
		url.QueryEscape(c.DBUser), url.QueryEscape(c.DBPass), c.DBHost)
}

// Addr returns the listen address for Port.
func (c *Config) Addr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// MailEnabled reports whether booking confirmations can be sent.
func (c *Config) MailEnabled() bool {
	return c.SMTPHost != "" && c.MailFrom != ""
}

// mapProvider feeds a plain map into koanf.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("config: map provider does not support ReadBytes")
}

func (m mapProvider) Read() (map[string]any, error) {
	return m, nil
}
