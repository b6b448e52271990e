package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Engine EngineConfig `mapstructure:"engine"`
	Queue  QueueConfig  `mapstructure:"queue"`
	DB     DBConfig     `mapstructure:"db"`
	Logger LoggerConfig `mapstructure:"logger"`
}

const defaultConfigFile = "./configs/config.yaml"

// Get reads the config file named by CONFIG_PATH (or ./configs/config.yaml) with environment overrides.
// Variables from a .env file in the working directory are loaded first when present.
func Get() (*Config, error) {
	_ = godotenv.Load()

	file := defaultConfigFile
	if value, ok := os.LookupEnv("CONFIG_PATH"); ok && value != "" {
		file = value
	}

	return loadConfig(file)
}

func loadConfig(file string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(file)

	setDefaults(v)

	if err := bindEnvironmentVariables(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", file, err)
	}

	config := Config{}
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.intake_wait", "55s")
	v.SetDefault("engine.timeout", "60s")
	v.SetDefault("engine.max_requests_per_second", 2)
	v.SetDefault("queue.topic", "job-intake:tasks")
	v.SetDefault("queue.workers", 3)
	v.SetDefault("queue.max_attempts", 3)
	v.SetDefault("logger.log_level", LevelInfo)
	v.SetDefault("logger.app_name", "job-intake")
}

func bindEnvironmentVariables(v *viper.Viper) error {
	var errs []error

	server, engine, queue, db, logger := ServerConfig{}, EngineConfig{}, QueueConfig{}, DBConfig{}, LoggerConfig{}

	if err := server.bindEnvironmentVariables(v); err != nil {
		errs = append(errs, fmt.Errorf("ServerConfig: %w", err))
	}

	if err := engine.bindEnvironmentVariables(v); err != nil {
		errs = append(errs, fmt.Errorf("EngineConfig: %w", err))
	}

	if err := queue.bindEnvironmentVariables(v); err != nil {
		errs = append(errs, fmt.Errorf("QueueConfig: %w", err))
	}

	if err := db.bindEnvironmentVariables(v); err != nil {
		errs = append(errs, fmt.Errorf("DBConfig: %w", err))
	}

	if err := logger.bindEnvironmentVariables(v); err != nil {
		errs = append(errs, fmt.Errorf("LoggerConfig: %w", err))
	}

	return joinErrors(errs)
}

func (config Config) validate() error {
	var errs []error

	if err := config.Server.validate(); err != nil {
		errs = append(errs, fmt.Errorf("ServerConfig: %w", err))
	}

	if err := config.Engine.validate(); err != nil {
		errs = append(errs, fmt.Errorf("EngineConfig: %w", err))
	}

	if err := config.Queue.validate(); err != nil {
		errs = append(errs, fmt.Errorf("QueueConfig: %w", err))
	}

	if err := config.DB.validate(); err != nil {
		errs = append(errs, fmt.Errorf("DBConfig: %w", err))
	}

	if err := config.Logger.validate(); err != nil {
		errs = append(errs, fmt.Errorf("LoggerConfig: %w", err))
	}

	return joinErrors(errs)
}

func bindAll(v *viper.Viper, bindings map[string]string) error {
	var errs []error
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			errs = append(errs, err)
		}
	}
	return joinErrors(errs)
}

func joinErrors(errs []error) error {
	if len(errs) > 0 {
		return fmt.Errorf("multiple errors occurred: %w", errors.Join(errs...))
	}
	return nil
}
