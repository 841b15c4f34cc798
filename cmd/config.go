package cmd

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the persistent CLI configuration.
type Config struct {
	// DefaultDatabase is used when --db is not given.
	DefaultDatabase string `yaml:"default_database"`
	// UseKeyring enables transparent password caching in the OS keyring.
	UseKeyring bool `yaml:"use_keyring"`
	// WatchIntervalSeconds controls how often the open database file is
	// polled for external changes.
	WatchIntervalSeconds int `yaml:"watch_interval_seconds"`
	// MetricsListen, when set, serves Prometheus metrics on this address
	// for the duration of the command.
	MetricsListen string `yaml:"metrics_listen"`
}

var cfg Config

func configDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".keywarden")
}

func configPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// recentIndexPath is where the recently-opened-vaults index lives.
func recentIndexPath() string {
	return filepath.Join(configDir(), "recent.db")
}

// loadConfig loads the CLI config from disk, falling back to defaults.
func loadConfig() {
	cfg = Config{
		WatchIntervalSeconds: 2,
	}
	data, err := os.ReadFile(configPath())
	if err != nil {
		return // use defaults
	}
	yaml.Unmarshal(data, &cfg) //nolint:errcheck
}

// saveConfig persists the CLI config to disk.
func saveConfig() error {
	if err := os.MkdirAll(configDir(), 0700); err != nil {
		return err
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(configPath(), data, 0600)
}
