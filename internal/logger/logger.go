package logger

import (
	"context"
	"os"

	"github.com/maxaizer/job-intake/internal/config"
	"github.com/maxaizer/job-intake/pkg/loki"
	log "github.com/sirupsen/logrus"
)

const ErrorTypeField = "error_type"

const (
	ErrorTypeDb        = "db"
	ErrorTypeEngineApi = "engine_api"
	ErrorTypeQueue     = "queue"
	ErrorTypeAuth      = "auth"
)

var lokiPusher *loki.Pusher

func Setup(ctx context.Context, cfg config.LoggerConfig) error {
	log.SetOutput(os.Stdout)

	customFormatter := &log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05.000 -0700",
	}
	log.SetFormatter(customFormatter)

	level := toLogrusLevel(cfg.LogLevel)
	log.SetLevel(level)

	addPrometheusHook()

	if cfg.LokiURL == "" {
		return nil
	}

	log.SetReportCaller(true)
	lokiCfg := loki.Config{
		URL:      cfg.LokiURL,
		Username: cfg.LokiUser,
		Password: cfg.LokiPassword,
		Labels:   map[string]string{"app": cfg.AppName},
	}

	pusher, err := addLokiHook(ctx, lokiCfg, level)
	if err != nil {
		return err
	}
	lokiPusher = pusher
	return nil
}

// Cleanup flushes log entries still waiting to be shipped.
func Cleanup() {
	if lokiPusher != nil {
		lokiPusher.Stop()
	}
}

func toLogrusLevel(level config.LogLevel) log.Level {
	switch level {
	case config.LevelDebug:
		return log.DebugLevel
	case config.LevelWarning:
		return log.WarnLevel
	case config.LevelError:
		return log.ErrorLevel
	case config.LevelFatal:
		return log.FatalLevel
	default:
		return log.InfoLevel
	}
}
