package services

import (
	"context"

	"github.com/maxaizer/job-intake/internal/logger"
	"github.com/maxaizer/job-intake/internal/metrics"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

const DefaultMonitorSchedule = "@every 15s"

type queueDepth interface {
	Depth(ctx context.Context) (pending int64, inflight int64, err error)
}

// QueueMonitor periodically exports the queue depth as a gauge.
type QueueMonitor struct {
	queue queueDepth
	cron  *cron.Cron
}

func NewQueueMonitor(queue queueDepth, schedule string) (*QueueMonitor, error) {
	if schedule == "" {
		schedule = DefaultMonitorSchedule
	}

	m := &QueueMonitor{
		queue: queue,
		cron:  cron.New(),
	}

	if _, err := m.cron.AddFunc(schedule, m.sample); err != nil {
		return nil, errors.Wrapf(err, "invalid monitor schedule %q", schedule)
	}

	m.cron.Start()
	log.Infof("queue monitor started, schedule: %s", schedule)
	return m, nil
}

func (m *QueueMonitor) Stop() {
	<-m.cron.Stop().Done()
}

func (m *QueueMonitor) sample() {
	pending, inflight, err := m.queue.Depth(context.Background())
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeQueue).Errorf("failed to sample queue depth: %v", err)
		return
	}
	metrics.QueueDepthGauge.WithLabelValues("pending").Set(float64(pending))
	metrics.QueueDepthGauge.WithLabelValues("inflight").Set(float64(inflight))
}
