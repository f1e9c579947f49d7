// Package config holds the client-side options: where the auth endpoints
// live, where the token is persisted and how it is presented.
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds runtime settings for the client half.
type Config struct {
	BaseURL      string
	RegisterPath string
	LoginPath    string
	RefreshPath  string
	StorageKey   string
	// StoragePath is the SQLite file backing the token slot. Empty keeps the
	// token in memory for the lifetime of the process.
	StoragePath  string
	BearerPrefix string
	SafetyMargin time.Duration
	Timeout      time.Duration
}

// LoadDefaults populates c with the defaults the server also uses.
func (c *Config) LoadDefaults() {
	c.BaseURL = "http://localhost:8080"
	c.RegisterPath = "/auth/register"
	c.LoginPath = "/auth/login"
	c.RefreshPath = "/auth/refresh"
	c.StorageKey = "jsonwebtoken"
	c.StoragePath = ""
	c.BearerPrefix = "Bearer "
	c.SafetyMargin = 60 * time.Second
	c.Timeout = 15 * time.Second
}

// Load applies defaults, then TOKENGATE_* environment variables, then flags
// from args. Later sources win. Unconsumed positional arguments are returned.
func Load(args []string) (*Config, []string, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := cfg.applyEnv(); err != nil {
		return nil, nil, err
	}

	fs := flag.NewFlagSet("tokengate", flag.ContinueOnError)
	fs.StringVar(&cfg.BaseURL, "server", cfg.BaseURL, "base URL of the auth server")
	fs.StringVar(&cfg.RegisterPath, "register-path", cfg.RegisterPath, "registration endpoint path")
	fs.StringVar(&cfg.LoginPath, "login-path", cfg.LoginPath, "login endpoint path")
	fs.StringVar(&cfg.RefreshPath, "refresh-path", cfg.RefreshPath, "refresh endpoint path")
	fs.StringVar(&cfg.StorageKey, "storage-key", cfg.StorageKey, "name of the token slot")
	fs.StringVar(&cfg.StoragePath, "storage", cfg.StoragePath, "sqlite file persisting the token (empty: memory)")
	fs.StringVar(&cfg.BearerPrefix, "bearer", cfg.BearerPrefix, "Authorization header prefix")
	fs.DurationVar(&cfg.SafetyMargin, "margin", cfg.SafetyMargin, "treat tokens expiring within this margin as invalid")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "HTTP request timeout")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, fs.Args(), nil
}

// Validate rejects option combinations the client cannot work with.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("server base URL is required")
	}
	if c.StorageKey == "" {
		return fmt.Errorf("storage key is required")
	}
	if c.BearerPrefix == "" {
		return fmt.Errorf("bearer prefix is required")
	}
	if c.SafetyMargin < 0 {
		return fmt.Errorf("safety margin must not be negative")
	}
	return nil
}

func (c *Config) applyEnv() error {
	for env, dst := range map[string]*string{
		"TOKENGATE_SERVER":        &c.BaseURL,
		"TOKENGATE_REGISTER_PATH": &c.RegisterPath,
		"TOKENGATE_LOGIN_PATH":    &c.LoginPath,
		"TOKENGATE_REFRESH_PATH":  &c.RefreshPath,
		"TOKENGATE_STORAGE_KEY":   &c.StorageKey,
		"TOKENGATE_STORAGE":       &c.StoragePath,
		"TOKENGATE_BEARER":        &c.BearerPrefix,
	} {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
	for env, dst := range map[string]*time.Duration{
		"TOKENGATE_MARGIN":  &c.SafetyMargin,
		"TOKENGATE_TIMEOUT": &c.Timeout,
	} {
		v := strings.TrimSpace(os.Getenv(env))
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", env, err)
		}
		*dst = d
	}
	return nil
}
