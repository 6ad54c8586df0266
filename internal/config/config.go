package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	StoragePostgres = "postgres"
	StorageBadger   = "badger"
)

type Config struct {
	Environment string `toml:"-"`
	Host        string `toml:"host"`
	Port        int    `toml:"port"`

	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`

	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	LogFormatJSON bool   `toml:"log_format_json"`
	SentryEnabled bool   `toml:"sentry_enabled"`

	// storage
	Storage          string `toml:"storage"`
	PostgresHost     string `toml:"postgres_host"`
	PostgresPort     string `toml:"postgres_port"`
	PostgresDBName   string `toml:"postgres_db_name"`
	PostgresUser     string `toml:"postgres_user"`
	PostgresPassword string `toml:"-"`
	BadgerPath       string `toml:"badger_path"`

	// redis (token revocation, rate limiting)
	RedisHost     string `toml:"redis_host"`
	RedisPort     string `toml:"redis_port"`
	RedisPassword string `toml:"-"`

	// auth
	JWTSecret                  string        `toml:"-"`
	TokenTTL                   time.Duration `toml:"-"`
	TokenTTLStr                string        `toml:"token_ttl"`
	AuthRateLimitAllowedPerMin int           `toml:"auth_rate_limit_allowed_per_min"`
	GlobalRateLimitPer15Min    int           `toml:"global_rate_limit_per_15_min"`

	// http
	AllowedOrigins []string `toml:"allowed_origins"`
	HSTSEnabled    bool     `toml:"hsts_enabled"`

	// set only when a reverse proxy overwrites X-Real-Ip / X-Forwarded-For
	TrustProxyHeaders bool `toml:"trust_proxy_headers"`
}

type Toml struct {
	Development *Config
	Production  *Config
	Test        *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	var cfg *Config
	switch strings.ToLower(env) {
	case "dev", "development":
		cfg = t.Development
	case "prod", "production":
		cfg = t.Production
	case "test":
		cfg = t.Test
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
	if cfg == nil {
		return nil, fmt.Errorf("no config section for env: %s", env)
	}
	return cfg, nil
}

// Load reads the TOML file, picks the section for env, applies defaults
// and then the secrets from the environment.
func Load(env, path string) (*Config, error) {
	var t Toml
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return nil, fmt.Errorf("decode config file %s: %w", path, err)
	}
	return fromToml(&t, env)
}

// Parse is Load for in-memory TOML content.
func Parse(env, content string) (*Config, error) {
	var t Toml
	if _, err := toml.Decode(content, &t); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return fromToml(&t, env)
}

func fromToml(t *Toml, env string) (*Config, error) {
	cfg, err := t.Get(env)
	if err != nil {
		return nil, err
	}
	cfg.Environment = strings.ToLower(env)

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	cfg.applyEnv()

	return cfg, cfg.validate()
}

func (c *Config) applyDefaults() error {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 5000
	}
	if c.Storage == "" {
		c.Storage = StoragePostgres
	}
	if c.PostgresUser == "" {
		c.PostgresUser = "postgres"
	}
	if c.TokenTTLStr == "" {
		c.TokenTTL = 24 * time.Hour
	} else {
		ttl, err := time.ParseDuration(c.TokenTTLStr)
		if err != nil {
			return fmt.Errorf("parse token_ttl: %w", err)
		}
		c.TokenTTL = ttl
	}
	if c.AuthRateLimitAllowedPerMin == 0 {
		c.AuthRateLimitAllowedPerMin = 15
	}
	if c.GlobalRateLimitPer15Min == 0 {
		c.GlobalRateLimitPer15Min = 100
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("BLOGAPI_JWT_SECRET"); v != "" {
		c.JWTSecret = v
	}
	if v := os.Getenv("BLOGAPI_REDIS_PASS"); v != "" {
		c.RedisPassword = v
	}
	if v := os.Getenv("BLOGAPI_POSTGRES_PASS"); v != "" {
		c.PostgresPassword = v
	}
	if v := os.Getenv("BLOGAPI_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Port = port
		}
	}
}

func (c *Config) validate() error {
	switch c.Storage {
	case StoragePostgres:
		if c.PostgresHost == "" || c.PostgresDBName == "" {
			return fmt.Errorf("postgres storage needs postgres_host and postgres_db_name")
		}
	case StorageBadger:
		if c.BadgerPath == "" {
			return fmt.Errorf("badger storage needs badger_path")
		}
	default:
		return fmt.Errorf("unknown storage: %s", c.Storage)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token_ttl must be positive")
	}
	return nil
}

// IsProduction is used to refuse insecure fallbacks in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "prod" || c.Environment == "production"
}
