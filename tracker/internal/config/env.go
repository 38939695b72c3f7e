package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// envOverrides are environment variables that take precedence over the file.
// Unset variables leave the file value in place.
type envOverrides struct {
	HTTPPort        int           `env:"GRADTRACK_HTTP_PORT"`
	LogLevel        string        `env:"GRADTRACK_LOG_LEVEL"`
	Timezone        string        `env:"GRADTRACK_TIMEZONE"`
	RefreshInterval time.Duration `env:"GRADTRACK_REFRESH_INTERVAL"`
	StoragePath     string        `env:"GRADTRACK_STORAGE_PATH"`
}

func applyEnv(cfg *Config) error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if o.HTTPPort != 0 {
		cfg.HTTPPort = o.HTTPPort
	}
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
	if o.Timezone != "" {
		cfg.Timezone = o.Timezone
	}
	if o.RefreshInterval != 0 {
		cfg.RefreshInterval = o.RefreshInterval
	}
	if o.StoragePath != "" {
		cfg.Storage.Path = o.StoragePath
		if cfg.Storage.Backend == "" {
			cfg.Storage.Backend = "sqlite"
		}
	}
	return nil
}
