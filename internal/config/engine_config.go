package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type EngineConfig struct {
	URL                  string        `mapstructure:"url"`
	Timeout              time.Duration `mapstructure:"timeout"`
	MaxRequestsPerSecond float32       `mapstructure:"max_requests_per_second"`
}

func (config EngineConfig) validate() error {
	var errs []error

	if config.URL == "" {
		errs = append(errs, fmt.Errorf("missing variable: url"))
	}
	if config.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive"))
	}
	if config.MaxRequestsPerSecond <= 0 {
		errs = append(errs, fmt.Errorf("max_requests_per_second must be positive"))
	}

	return errors.Join(errs...)
}

func (config EngineConfig) bindEnvironmentVariables(v *viper.Viper) error {
	return bindAll(v, map[string]string{
		"engine.url":                     "ENGINE_URL",
		"engine.timeout":                 "ENGINE_TIMEOUT",
		"engine.max_requests_per_second": "ENGINE_MAX_REQUESTS_PER_SECOND",
	})
}
