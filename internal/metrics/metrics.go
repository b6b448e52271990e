package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeSucceeded = "succeeded"
	OutcomeRetried   = "retried"
	OutcomeFailed    = "failed"
)

var (
	ErrorsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_errors_total",
			Help: "Total number of occurred errors.",
		},
		[]string{"type"},
	)
	TasksProcessedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_tasks_processed_total",
			Help: "Total number of processed search tasks by outcome.",
		},
		[]string{"outcome"},
	)
	TaskDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "intake_task_duration_seconds",
			Help:    "Duration of a search task from claim to completion in seconds.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		},
	)
	CreditsChargedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "intake_credits_charged_total",
			Help: "Total number of credits deducted from users.",
		},
	)
	CallbacksIngestedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_callbacks_ingested_total",
			Help: "Total number of ingested engine callbacks.",
		},
		[]string{"result"},
	)
	QueueDepthGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "intake_queue_depth",
			Help: "Number of tasks waiting in or claimed from the queue.",
		},
		[]string{"state"},
	)
)

var registerOnce sync.Once

func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(ErrorsCounter)
		prometheus.MustRegister(TasksProcessedCounter)
		prometheus.MustRegister(TaskDuration)
		prometheus.MustRegister(CreditsChargedCounter)
		prometheus.MustRegister(CallbacksIngestedCounter)
		prometheus.MustRegister(QueueDepthGauge)
	})
}

func Handler() http.Handler {
	Register()
	return promhttp.Handler()
}
