package logger

import (
	"github.com/maxaizer/job-intake/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

var knownErrorTypes = map[string]struct{}{
	ErrorTypeDb:        {},
	ErrorTypeEngineApi: {},
	ErrorTypeQueue:     {},
	ErrorTypeAuth:      {},
}

// errorCounterHook counts error level entries by their error type. Types outside the known set
// collapse into "other" so a typo cannot create new series.
type errorCounterHook struct {
	errors *prometheus.CounterVec
}

func newErrorCounterHook(counters *prometheus.CounterVec) *errorCounterHook {
	return &errorCounterHook{errors: counters}
}

func (h *errorCounterHook) Fire(entry *log.Entry) error {
	h.errors.WithLabelValues(errorType(entry)).Inc()
	return nil
}

func (h *errorCounterHook) Levels() []log.Level {
	return []log.Level{log.PanicLevel, log.FatalLevel, log.ErrorLevel}
}

func errorType(entry *log.Entry) string {
	value, ok := entry.Data[ErrorTypeField].(string)
	if !ok {
		return "unknown"
	}
	if _, known := knownErrorTypes[value]; !known {
		return "other"
	}
	return value
}

func addPrometheusHook() {
	log.AddHook(newErrorCounterHook(metrics.ErrorsCounter))
}
