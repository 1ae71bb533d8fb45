package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvConfig holds overrides read from the environment.
type EnvConfig struct {
	DBPath       *string `env:"TUIMATH_DB_PATH"`
	QuotaBytes   *int    `env:"TUIMATH_QUOTA_BYTES"`
	LogLevel     *string `env:"TUIMATH_LOG_LEVEL"`
	HistoryLimit *int    `env:"TUIMATH_HISTORY_LIMIT"`
}

// LoadEnv reads overrides from the process environment.
func LoadEnv() (EnvConfig, error) {
	return parseEnv(env.Options{})
}

func parseEnv(opts env.Options) (EnvConfig, error) {
	var cfg EnvConfig
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return EnvConfig{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}
