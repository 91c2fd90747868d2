// Package config loads the demo engine's configuration, writing a default
// file to disk the first time one isn't found.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config configures the messenger's listen address, the etcd endpoints
// used to resolve MDS sessions, and the log level.
type Config struct {
	ListenAddr    string   `yaml:"listen_addr"`
	EtcdEndpoints []string `yaml:"etcd_endpoints"`
	LogLevel      string   `yaml:"log_level"`
}

func defaultConfig() *Config {
	return &Config{
		ListenAddr:    "localhost:7330",
		EtcdEndpoints: []string{"127.0.0.1:2379"},
		LogLevel:      "INFO",
	}
}

// Load reads path, writing out a default config first if path doesn't
// exist.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := defaultConfig()

		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("config: create directory %s: %w", dir, err)
			}
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("config: marshal default config: %w", err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("config: write default config to %s: %w", path, err)
		}

		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
