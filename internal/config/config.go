// Package config loads the service configuration from an optional YAML
// file. Missing fields keep their defaults; command-line flags are applied
// on top by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/erazemk/izposoja/internal/lifecycle"
)

// Config is the full service configuration.
type Config struct {
	Database  string  `yaml:"database"`
	Addr      string  `yaml:"addr"`
	LogFile   string  `yaml:"log_file,omitempty"`
	AdminUser string  `yaml:"admin_user"`
	Lending   Lending `yaml:"lending"`
	Sweep     Sweep   `yaml:"sweep"`
	Auth      Auth    `yaml:"auth"`
	Tracing   Tracing `yaml:"tracing"`
}

// Lending holds the lifecycle windows.
type Lending struct {
	HoldWindow       time.Duration `yaml:"hold_window"`
	CustodyWindow    time.Duration `yaml:"custody_window"`
	MaxExtensionDays int           `yaml:"max_extension_days"`
}

// Sweep controls the background sweeper.
type Sweep struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// Auth controls token issuance.
type Auth struct {
	TokenTTL time.Duration `yaml:"token_ttl"`
}

// Tracing toggles span logging.
type Tracing struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the built-in configuration.
func Default() Config {
	p := lifecycle.DefaultPolicy()
	return Config{
		Database:  "izposoja.sqlite3",
		Addr:      ":8080",
		AdminUser: "Admin",
		Lending: Lending{
			HoldWindow:       p.HoldWindow,
			CustodyWindow:    p.CustodyWindow,
			MaxExtensionDays: p.MaxExtensionDays,
		},
		Sweep: Sweep{
			Enabled:  true,
			Interval: time.Minute,
		},
		Auth: Auth{
			TokenTTL: 7 * 24 * time.Hour,
		},
	}
}

// Load reads path over the defaults. An empty path or a missing file
// yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks that every setting is usable.
func (c Config) Validate() error {
	var errs []error
	if c.Database == "" {
		errs = append(errs, errors.New("database path is required"))
	}
	if c.Addr == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	if c.AdminUser == "" {
		errs = append(errs, errors.New("admin user is required"))
	}
	if err := c.Policy().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("lending: %w", err))
	}
	if c.Sweep.Interval <= 0 {
		errs = append(errs, errors.New("sweep interval must be positive"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("token ttl must be positive"))
	}
	return errors.Join(errs...)
}

// Policy returns the lifecycle policy the engines run with.
func (c Config) Policy() lifecycle.Policy {
	return lifecycle.Policy{
		HoldWindow:       c.Lending.HoldWindow,
		CustodyWindow:    c.Lending.CustodyWindow,
		MaxExtensionDays: c.Lending.MaxExtensionDays,
	}
}

// Marshal renders c as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
