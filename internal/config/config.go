// Package config loads the process bootstrap configuration. Everything
// mutable at runtime (poll interval, threshold, chat destination) lives in
// the store instead and is managed through the dashboard API.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config is the immutable per-process configuration
type Config struct {
	AdminPassword string `mapstructure:"admin_password"`
	Listen        string `mapstructure:"listen"`
	DBPath        string `mapstructure:"db_path"`
}

// Load reads configuration from the environment and, when path is
// non-empty, from a config file. Environment variables take precedence.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("admin_password", "changeme")
	v.SetDefault("listen", "127.0.0.1:8080")
	v.SetDefault("db_path", "data/balance_watcher.db")

	v.AutomaticEnv()
	_ = v.BindEnv("admin_password", "ADMIN_PASSWORD")
	_ = v.BindEnv("listen", "LISTEN")
	_ = v.BindEnv("db_path", "DB_PATH")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
