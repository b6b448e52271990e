package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Config_ShouldLoadFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", "../../configs/config.yaml")

	cfg, err := Get()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 55*time.Second, cfg.Server.IntakeWait)
	assert.Equal(t, 60*time.Second, cfg.Engine.Timeout)
	assert.Equal(t, 3, cfg.Queue.Workers)
	assert.Equal(t, LevelInfo, cfg.Logger.LogLevel)
}

func Test_Config_EnvironmentOverrideWorksCorrect(t *testing.T) {
	t.Setenv("CONFIG_PATH", "../../configs/config.yaml")

	t.Setenv("PORT", "9090")
	t.Setenv("SHARED_SECRET", "overrideSecret")
	t.Setenv("JWT_SECRET", "overrideJwtSecret")
	t.Setenv("INTAKE_WAIT", "10s")
	t.Setenv("PROTECT_CREDITS", "true")
	t.Setenv("ENGINE_URL", "https://engine.example.com/run")
	t.Setenv("ENGINE_TIMEOUT", "2m")
	t.Setenv("ENGINE_MAX_REQUESTS_PER_SECOND", "7.5")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")
	t.Setenv("QUEUE_WORKERS", "8")
	t.Setenv("QUEUE_MAX_ATTEMPTS", "5")
	t.Setenv("DB_CONNECTION_STRING", "newConnectionString")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Get()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "overrideSecret", cfg.Server.SharedSecret)
	assert.Equal(t, "overrideJwtSecret", cfg.Server.JWTSecret)
	assert.Equal(t, 10*time.Second, cfg.Server.IntakeWait)
	assert.True(t, cfg.Server.ProtectCredits)
	assert.Equal(t, "https://engine.example.com/run", cfg.Engine.URL)
	assert.Equal(t, 2*time.Minute, cfg.Engine.Timeout)
	assert.Equal(t, float32(7.5), cfg.Engine.MaxRequestsPerSecond)
	assert.Equal(t, "redis://cache:6379/1", cfg.Queue.RedisURL)
	assert.Equal(t, 8, cfg.Queue.Workers)
	assert.Equal(t, 5, cfg.Queue.MaxAttempts)
	assert.Equal(t, "newConnectionString", cfg.DB.ConnectionString)
	assert.Equal(t, LevelDebug, cfg.Logger.LogLevel)
}

func Test_Config_WhenSecretsMissing_ShouldFailValidation(t *testing.T) {
	t.Setenv("CONFIG_PATH", "./testdata/no_secrets.yaml")

	_, err := Get()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shared_secret")
	assert.Contains(t, err.Error(), "jwt_secret")
}

func Test_Config_WhenFileMissing_ShouldFail(t *testing.T) {
	t.Setenv("CONFIG_PATH", "./does-not-exist.yaml")

	_, err := Get()
	assert.Error(t, err)
}
