// Package config loads the wallet configuration: route access policies,
// balance source endpoints and runtime settings.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/oysy/walletcore/internal/app/domain/route"
	"github.com/oysy/walletcore/internal/app/domain/session"
)

// Config is the full wallet configuration.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	LogLevel   string `yaml:"log_level"`
	StatePath  string `yaml:"state_path"`

	Ledger  LedgerConfig  `yaml:"ledger"`
	Gateway GatewayConfig `yaml:"gateway"`

	// ReconcileSchedule is a cron spec for periodic silent reconciliation.
	ReconcileSchedule string `yaml:"reconcile_schedule"`

	Routes []route.Policy `yaml:"routes"`
}

// LedgerConfig points at the ledger RPC node.
type LedgerConfig struct {
	URL string `yaml:"url"`
}

// GatewayConfig points at the HTTP balance gateway.
type GatewayConfig struct {
	URL string `yaml:"url"`
}

// Load reads the configuration from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads the configuration or falls back to the defaults when
// the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	cfg, err := Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	seen := make(map[string]struct{}, len(c.Routes))
	for _, r := range c.Routes {
		if r.Name == "" {
			return fmt.Errorf("route with empty name")
		}
		if _, dup := seen[r.Name]; dup {
			return fmt.Errorf("duplicate route %s", r.Name)
		}
		seen[r.Name] = struct{}{}
	}
	return nil
}

// Default returns the stock configuration with the built-in route table.
func Default() *Config {
	return &Config{
		ListenAddr:        ":8710",
		LogLevel:          "info",
		StatePath:         "wallet.db",
		ReconcileSchedule: "@every 2m",
		Ledger:            LedgerConfig{URL: "wss://s.altnet.rippletest.net:51233"},
		Gateway:           GatewayConfig{URL: "https://csg.uzh.ch/bazo/api"},
		Routes:            DefaultRoutes(),
	}
}

// DefaultRoutes is the built-in route policy table. It is immutable after
// startup; the guard resolves entries by exact name.
func DefaultRoutes() []route.Policy {
	return []route.Policy{
		{Name: "home", Path: "/", OfflineAccessible: true},
		{Name: "hello", Path: "/hello", OfflineAccessible: true},
		{Name: "forex", Path: "/forex"},
		{Name: "registration", Path: "/registration"},
		{Name: "password-forgotten", Path: "/password-forgotten"},
		{Name: "activation", Path: "/activation"},
		{Name: "login", Path: "/login"},
		{Name: "profile", Path: "/auth/profile", RequiresAuth: true},
		{Name: "authenticated", Path: "/auth/authenticated", RequiresAuth: true},
		{Name: "user-authenticated", Path: "/auth/user/authenticated", RequiresAuth: true, RequiredRole: session.RoleUser},
		{Name: "admin-events", Path: "/auth/admin/events", RequiresAuth: true, RequiredRole: session.RoleAdmin},
		{Name: "admin-server-balance", Path: "/auth/admin/server-balance", RequiresAuth: true, RequiredRole: session.RoleAdmin},
		{Name: "admin-accounts", Path: "/auth/admin/accounts", RequiresAuth: true, RequiredRole: session.RoleAdmin},
		{Name: "admin-user-accounts", Path: "/auth/admin/user-accounts", RequiresAuth: true, RequiredRole: session.RoleAdmin},
	}
}
