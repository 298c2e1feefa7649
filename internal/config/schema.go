package config

import (
	"time"
)

// Config is the root configuration structure
type Config struct {
	Version      int                `yaml:"version"`
	Storage      StorageConfig      `yaml:"storage"`
	Auth         AuthConfig         `yaml:"auth"`
	Server       ServerConfig       `yaml:"server"`
	Measurements MeasurementsConfig `yaml:"measurements"`
}

// StorageConfig selects the filesystem backend all data lives on
type StorageConfig struct {
	Backend  string `yaml:"backend" env:"GLUCOTRACK_STORAGE_BACKEND"` // local, webdav, sqlite
	Root     string `yaml:"root" env:"GLUCOTRACK_STORAGE_ROOT"`
	URL      string `yaml:"url,omitempty" env:"GLUCOTRACK_WEBDAV_URL"`
	Username string `yaml:"username,omitempty" env:"GLUCOTRACK_WEBDAV_USERNAME"`
	Password string `yaml:"password,omitempty" env:"GLUCOTRACK_WEBDAV_PASSWORD"`
	DBPath   string `yaml:"db_path,omitempty" env:"GLUCOTRACK_SQLITE_PATH"`
}

// AuthConfig holds credential store settings
type AuthConfig struct {
	PasswordScheme  string `yaml:"password_scheme" env:"GLUCOTRACK_PASSWORD_SCHEME"` // plain, bcrypt
	CredentialsFile string `yaml:"credentials_file" env:"GLUCOTRACK_CREDENTIALS_FILE"`
	BcryptCost      int    `yaml:"bcrypt_cost,omitempty" env:"GLUCOTRACK_BCRYPT_COST"`
}

// ServerConfig holds HTTP settings
type ServerConfig struct {
	Addr          string   `yaml:"addr" env:"GLUCOTRACK_ADDR"`
	SessionCookie string   `yaml:"session_cookie" env:"GLUCOTRACK_SESSION_COOKIE"`
	SessionIdle   Duration `yaml:"session_idle" env:"GLUCOTRACK_SESSION_IDLE"`
	SweepInterval Duration `yaml:"sweep_interval" env:"GLUCOTRACK_SWEEP_INTERVAL"`
}

// MeasurementsConfig holds settings of the measurement pages
type MeasurementsConfig struct {
	Zone string `yaml:"zone" env:"GLUCOTRACK_ZONE"`
}

// Duration wraps time.Duration for YAML and environment unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
