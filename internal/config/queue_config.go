package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

type QueueConfig struct {
	RedisURL    string `mapstructure:"redis_url"`
	Topic       string `mapstructure:"topic"`
	Workers     int    `mapstructure:"workers"`
	MaxAttempts int    `mapstructure:"max_attempts"`
}

func (config QueueConfig) validate() error {
	var errs []error

	if config.RedisURL == "" {
		errs = append(errs, fmt.Errorf("missing variable: redis_url"))
	}
	if config.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive"))
	}
	if config.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("max_attempts must be positive"))
	}

	return errors.Join(errs...)
}

func (config QueueConfig) bindEnvironmentVariables(v *viper.Viper) error {
	return bindAll(v, map[string]string{
		"queue.redis_url":    "REDIS_URL",
		"queue.topic":        "QUEUE_TOPIC",
		"queue.workers":      "QUEUE_WORKERS",
		"queue.max_attempts": "QUEUE_MAX_ATTEMPTS",
	})
}
