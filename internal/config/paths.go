package config

import (
	"log"
	"os"
	"path/filepath"
)

const (
	// EnvConfigPath names an explicit config file
	EnvConfigPath = "GLUCOTRACK_CONFIG"
	// ConfigFileName is looked up in the working directory
	ConfigFileName = "glucotrack.yaml"

	appDir = "glucotrack"
)

// SearchPaths lists the config file candidates, most specific first. The
// per-user location comes from os.UserConfigDir, so XDG_CONFIG_HOME is
// honored on Linux and the platform folder is used elsewhere.
func SearchPaths() []string {
	var paths []string
	if explicit := os.Getenv(EnvConfigPath); explicit != "" {
		paths = append(paths, explicit)
	}
	if abs, err := filepath.Abs(ConfigFileName); err == nil {
		paths = append(paths, abs)
	} else {
		paths = append(paths, ConfigFileName)
	}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, appDir, "config.yaml"))
	}
	return append(paths, filepath.Join("/etc", appDir, "config.yaml"))
}

// FindConfigPath returns the first existing candidate of SearchPaths, or ""
// when there is none. A missing explicit file is reported and skipped.
func FindConfigPath() string {
	explicit := os.Getenv(EnvConfigPath)
	for _, p := range SearchPaths() {
		if isFile(p) {
			return p
		}
		if p == explicit {
			log.Printf("Config %s from $%s not found, searching defaults", p, EnvConfigPath)
		}
	}
	return ""
}

// EnsureConfigDir creates the folder a config file is written to
func EnsureConfigDir(configPath string) error {
	return os.MkdirAll(filepath.Dir(configPath), 0755)
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
