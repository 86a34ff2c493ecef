package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DataModePostgres = "postgres"
	DataModeMock     = "mock"
)

type Config struct {
	Host              string        `mapstructure:"HOST"`
	Port              string        `mapstructure:"PORT"`
	Env               string        `mapstructure:"ENV"`
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
	DataMode          string        `mapstructure:"DATA_MODE"`
	DatabaseURL       string        `mapstructure:"DATABASE_URL"`
	DBMaxConns        int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns        int32         `mapstructure:"DB_MIN_CONNS"`
	MigrationsDir     string        `mapstructure:"MIGRATIONS_DIR"`
	RedisURL          string        `mapstructure:"REDIS_URL"`
	WarehouseDSN      string        `mapstructure:"WAREHOUSE_DSN"`
	QueryMaxRows      int           `mapstructure:"QUERY_MAX_ROWS"`
	SessionSecret     string        `mapstructure:"SESSION_SECRET"`
	SessionTTL        time.Duration `mapstructure:"SESSION_TTL"`
	LoginDelay        time.Duration `mapstructure:"LOGIN_DELAY"`
	Users             []string      `mapstructure:"USERS"`
	CORSOrigins       []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS      float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst    int           `mapstructure:"RATE_LIMIT_BURST"`
	LoginRateLimitRPS float64       `mapstructure:"LOGIN_RATE_LIMIT_RPS"`
	RequestTimeout    time.Duration `mapstructure:"REQUEST_TIMEOUT"`
}

var envKeys = []string{
	"HOST", "PORT", "ENV", "LOG_LEVEL", "DATA_MODE",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "MIGRATIONS_DIR",
	"REDIS_URL", "WAREHOUSE_DSN", "QUERY_MAX_ROWS",
	"SESSION_SECRET", "SESSION_TTL", "LOGIN_DELAY", "USERS",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "LOGIN_RATE_LIMIT_RPS",
	"REQUEST_TIMEOUT",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", "3003")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DATA_MODE", DataModePostgres)
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("MIGRATIONS_DIR", "./migrations")
	v.SetDefault("QUERY_MAX_ROWS", 1000)
	v.SetDefault("SESSION_TTL", "12h")
	v.SetDefault("LOGIN_DELAY", "500ms")
	v.SetDefault("USERS", "user@aco.org:password,user@payer.org:password")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("LOGIN_RATE_LIMIT_RPS", 1)
	v.SetDefault("REQUEST_TIMEOUT", "30s")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Comma separated lists arrive as a single element when set from env.
	cfg.Users = splitList(cfg.Users, v.GetString("USERS"))
	cfg.CORSOrigins = splitList(cfg.CORSOrigins, v.GetString("CORS_ORIGINS"))
	cfg.DataMode = strings.ToLower(strings.TrimSpace(cfg.DataMode))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func splitList(parsed []string, raw string) []string {
	if len(parsed) == 0 && raw != "" {
		parsed = []string{raw}
	}
	var out []string
	for _, chunk := range parsed {
		for _, item := range strings.Split(chunk, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// IsMock reports whether catalog and fact data are served from memory.
func (c *Config) IsMock() bool {
	return c.DataMode == DataModeMock
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

// Validate checks that the configuration is usable. DATABASE_URL is only
// required when data is read from PostgreSQL, and production deployments must
// provide their own session signing secret.
func (c *Config) Validate() error {
	switch c.DataMode {
	case DataModePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when DATA_MODE is %q", DataModePostgres)
		}
	case DataModeMock:
	default:
		return fmt.Errorf("DATA_MODE must be %q or %q, got %q", DataModePostgres, DataModeMock, c.DataMode)
	}

	if c.IsProduction() && len(c.SessionSecret) < 32 {
		return fmt.Errorf("SESSION_SECRET must be at least 32 characters in production")
	}
	if c.QueryMaxRows <= 0 {
		return fmt.Errorf("QUERY_MAX_ROWS must be positive, got %d", c.QueryMaxRows)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.LoginDelay < 0 {
		return fmt.Errorf("LOGIN_DELAY must not be negative")
	}
	for _, u := range c.Users {
		if !strings.Contains(u, ":") {
			return fmt.Errorf("USERS entries must look like username:password, got %q", u)
		}
	}
	return nil
}
