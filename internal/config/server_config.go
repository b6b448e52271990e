package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	SharedSecret   string        `mapstructure:"shared_secret"`
	JWTSecret      string        `mapstructure:"jwt_secret"`
	IntakeWait     time.Duration `mapstructure:"intake_wait"`
	ProtectCredits bool          `mapstructure:"protect_credits"`
}

func (config ServerConfig) validate() error {
	var missingFields []string

	if config.SharedSecret == "" {
		missingFields = append(missingFields, "shared_secret")
	}

	if config.JWTSecret == "" {
		missingFields = append(missingFields, "jwt_secret")
	}

	if len(missingFields) > 0 {
		return fmt.Errorf("missing required variables: %s", strings.Join(missingFields, ", "))
	}

	if config.Port <= 0 || config.Port > 65535 {
		return fmt.Errorf("invalid port: %d", config.Port)
	}

	if config.IntakeWait <= 0 {
		return fmt.Errorf("intake_wait must be positive")
	}

	return nil
}

func (config ServerConfig) bindEnvironmentVariables(v *viper.Viper) error {
	return bindAll(v, map[string]string{
		"server.port":            "PORT",
		"server.shared_secret":   "SHARED_SECRET",
		"server.jwt_secret":      "JWT_SECRET",
		"server.intake_wait":     "INTAKE_WAIT",
		"server.protect_credits": "PROTECT_CREDITS",
	})
}
