// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Supported session store backends
const (
	DatabaseSQLite   = "sqlite"
	DatabasePostgres = "postgres"
)

type Config struct {
	Port           int           `env:"PORT" envDefault:"3318"`
	DatabaseURL    string        `env:"DATABASE_URL" envDefault:"startup-votes.db"`
	DatabaseType   string        `env:"DATABASE_TYPE" envDefault:"sqlite"`
	DataAPIURL     string        `env:"DATA_API_URL" envDefault:"http://localhost:8000"`
	AuthAPIURL     string        `env:"AUTH_API_URL" envDefault:"http://localhost:8080"`
	LoginURL       string        `env:"LOGIN_URL" envDefault:"/login.html"`
	CORSOrigins    []string      `env:"CORS_ORIGINS" envDefault:"*" envSeparator:","`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
	VerifySync     bool          `env:"VERIFY_SYNC" envDefault:"true"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
}

// ParseFlags reads .env, the environment, then flags. Flags win.
func ParseFlags(args []string) (Config, error) {
	var cfg Config

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}

	fs := flag.NewFlagSet("startup-votes", flag.ContinueOnError)

	// Network config
	fs.IntVar(&cfg.Port, "p", cfg.Port, "Server port")
	fs.StringVar(&cfg.DataAPIURL, "data-api", cfg.DataAPIURL, "Vote and comment service base URL")
	fs.StringVar(&cfg.AuthAPIURL, "auth-api", cfg.AuthAPIURL, "Auth service base URL")
	fs.StringVar(&cfg.LoginURL, "login-url", cfg.LoginURL, "Where pages are sent when a login is required")
	cors := fs.String("cors", strings.Join(cfg.CORSOrigins, ","), "Comma-separated allowed origins")
	fs.DurationVar(&cfg.RequestTimeout, "timeout", cfg.RequestTimeout, "Backend request timeout")

	// Session storage
	fs.StringVar(&cfg.DatabaseURL, "d", cfg.DatabaseURL, "Session database URL or sqlite path")
	fs.StringVar(&cfg.DatabaseType, "t", cfg.DatabaseType, "Database type (sqlite or postgres)")

	fs.BoolVar(&cfg.VerifySync, "verify-sync", cfg.VerifySync, "Re-read the server tally after each vote")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.CORSOrigins = splitOrigins(*cors)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.DatabaseURL == "" {
		return errors.New("database URL required (use -d or DATABASE_URL env)")
	}
	if c.DatabaseType != DatabaseSQLite && c.DatabaseType != DatabasePostgres {
		return fmt.Errorf("unsupported database type %q (sqlite or postgres)", c.DatabaseType)
	}
	for name, raw := range map[string]string{"DATA_API_URL": c.DataAPIURL, "AUTH_API_URL": c.AuthAPIURL} {
		u, err := url.ParseRequestURI(raw)
		if err != nil || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
		}
	}
	if c.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT must be positive")
	}
	return nil
}

// Level maps LogLevel onto slog. Unknown values fall back to info.
func (c Config) Level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
