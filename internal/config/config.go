// Package config provides configuration management for glucotrack.
//
// Settings come from a YAML file, then environment variables override
// individual fields.
//
// Config file locations (priority order):
//  1. $GLUCOTRACK_CONFIG
//  2. ./glucotrack.yaml
//  3. <user config dir>/glucotrack/config.yaml (os.UserConfigDir)
//  4. /etc/glucotrack/config.yaml
package config

import (
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"glucotrack/internal/adapter"
	"glucotrack/internal/domain"
)

const (
	defaultRoot          = "./data"
	defaultDBPath        = "./glucotrack.db"
	defaultCredentials   = "credentials.yaml"
	defaultAddr          = ":3000"
	defaultSessionCookie = "glucotrack_session"
	defaultSessionIdle   = 12 * time.Hour
	defaultSweepInterval = 10 * time.Minute
	defaultZone          = "Europe/Zurich"
)

// Load finds and loads the config file, or starts from defaults if none is
// found, then applies the environment
func Load() (*Config, string, error) {
	path := FindConfigPath()

	var cfg *Config
	if path == "" {
		cfg = DefaultConfig()
	} else {
		var err error
		cfg, path, err = LoadFromPath(path)
		if err != nil {
			return nil, path, err
		}
	}

	if err := ParseEnv(cfg); err != nil {
		return nil, path, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, path, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0600)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = string(domain.BackendLocal)
	}
	if c.Storage.Root == "" && c.Storage.Backend == string(domain.BackendLocal) {
		c.Storage.Root = defaultRoot
	}
	if c.Storage.DBPath == "" {
		c.Storage.DBPath = defaultDBPath
	}
	if c.Auth.PasswordScheme == "" {
		c.Auth.PasswordScheme = "plain"
	}
	if c.Auth.CredentialsFile == "" {
		c.Auth.CredentialsFile = defaultCredentials
	}
	if c.Server.Addr == "" {
		c.Server.Addr = defaultAddr
	}
	if c.Server.SessionCookie == "" {
		c.Server.SessionCookie = defaultSessionCookie
	}
	if c.Server.SessionIdle == 0 {
		c.Server.SessionIdle = Duration(defaultSessionIdle)
	}
	if c.Server.SweepInterval == 0 {
		c.Server.SweepInterval = Duration(defaultSweepInterval)
	}
	if c.Measurements.Zone == "" {
		c.Measurements.Zone = defaultZone
	}
}

// Validate checks settings that have no usable default
func (c *Config) Validate() error {
	switch domain.BackendKind(c.Storage.Backend) {
	case domain.BackendLocal, domain.BackendSQLite:
	case domain.BackendWebDAV:
		if c.Storage.URL == "" {
			return fmt.Errorf("storage: webdav backend requires url")
		}
	default:
		return fmt.Errorf("storage: unknown backend %q", c.Storage.Backend)
	}
	if _, err := time.LoadLocation(c.Measurements.Zone); err != nil {
		return fmt.Errorf("measurements: zone %q: %w", c.Measurements.Zone, err)
	}
	return nil
}

// AdapterConfig returns the storage settings in the form the adapter
// registry takes
func (c *Config) AdapterConfig() adapter.Config {
	return adapter.Config{
		Kind:     domain.BackendKind(c.Storage.Backend),
		Root:     c.Storage.Root,
		URL:      c.Storage.URL,
		Username: c.Storage.Username,
		Password: c.Storage.Password,
		DBPath:   c.Storage.DBPath,
	}
}

// Summary returns a human-readable config summary without secrets
func (c *Config) Summary() string {
	location := c.Storage.Root
	switch domain.BackendKind(c.Storage.Backend) {
	case domain.BackendWebDAV:
		location = c.Storage.URL + "/" + c.Storage.Root
	case domain.BackendSQLite:
		location = c.Storage.DBPath
	}
	return fmt.Sprintf("Storage: %s (%s), Passwords: %s, Listen: %s, Session idle: %s",
		c.Storage.Backend, location, c.Auth.PasswordScheme, c.Server.Addr, c.Server.SessionIdle.Duration())
}
