package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const devSecret = "teamflow-development-secret"

// Config holds runtime settings for the TeamFlow server.
type Config struct {
	Environment    string        `mapstructure:"environment"`
	Addr           string        `mapstructure:"addr"`
	DBPath         string        `mapstructure:"db_path"`
	StaticDir      string        `mapstructure:"static_dir"`
	JWTSecret      string        `mapstructure:"jwt_secret"`
	SessionTTL     time.Duration `mapstructure:"session_ttl"`
	CookieSecure   bool          `mapstructure:"cookie_secure"`
	RedisURL       string        `mapstructure:"redis_url"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	LogLevel       string        `mapstructure:"log_level"`
}

// Load reads an optional env file and then TEAMFLOW_* environment variables.
// envFile may be empty, in which case ".env" is tried.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	v := viper.New()
	v.SetEnvPrefix("TEAMFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("environment", "development")
	v.SetDefault("addr", ":8080")
	v.SetDefault("db_path", "data/teamflow.db")
	v.SetDefault("static_dir", "web/dist")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("session_ttl", 24*time.Hour)
	v.SetDefault("cookie_secure", false)
	v.SetDefault("redis_url", "")
	v.SetDefault("allowed_origins", "*")
	v.SetDefault("log_level", "info")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.AllowedOrigins = splitOrigins(v.GetString("allowed_origins"))

	if cfg.JWTSecret == "" && !cfg.IsProduction() {
		cfg.JWTSecret = devSecret
	}
	return cfg, nil
}

// Validate checks the settings the server cannot run without.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.DBPath == "" {
		return fmt.Errorf("database path is required")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session ttl must be positive")
	}
	if c.IsProduction() && (c.JWTSecret == "" || c.JWTSecret == devSecret) {
		return fmt.Errorf("TEAMFLOW_JWT_SECRET must be set in production")
	}
	return nil
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func splitOrigins(raw string) []string {
	var out []string
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
