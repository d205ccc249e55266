// Package config loads the control-plane configuration from an optional
// YAML file. Flags on the binaries override whatever the file sets.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults used when neither the file nor the flags set a value.
const (
	DefaultListenAddr  = ":8000"
	DefaultMetricsAddr = ":8080"
	DefaultDatabase    = "/var/lib/bootplane/bootplane.db"
	DefaultAPIBaseURL  = "http://127.0.0.1:8000"
	DefaultMountPoint  = "/mnt"
)

// Config holds the settings shared by the daemon and the agent.
type Config struct {
	// ListenAddr is the address the HTTP API binds.
	ListenAddr string `yaml:"listen_addr"`
	// MetricsAddr is the address the Prometheus endpoint binds.
	MetricsAddr string `yaml:"metrics_addr"`
	// Database is the path of the SQLite metadata store.
	Database string `yaml:"database"`
	// APIBaseURL is where the agent reaches the control plane.
	APIBaseURL string `yaml:"api_base_url"`
	// MountPoint is where the agent mounts a modified disk.
	MountPoint string `yaml:"mount_point"`
}

// Default returns a Config with every field at its default.
func Default() *Config {
	return &Config{
		ListenAddr:  DefaultListenAddr,
		MetricsAddr: DefaultMetricsAddr,
		Database:    DefaultDatabase,
		APIBaseURL:  DefaultAPIBaseURL,
		MountPoint:  DefaultMountPoint,
	}
}

// Load reads the YAML file at path over the defaults. An empty path returns
// the defaults unchanged; a missing file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
