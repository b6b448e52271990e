package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/google/uuid"
	"github.com/maxaizer/job-intake/internal/clients/engine"
	"github.com/maxaizer/job-intake/internal/domain/events"
	"github.com/maxaizer/job-intake/internal/domain/models"
	"github.com/maxaizer/job-intake/internal/logger"
	"github.com/maxaizer/job-intake/internal/metrics"
	"github.com/maxaizer/job-intake/internal/queue"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultWorkers   = 3
	defaultClaimWait = 5 * time.Second
	claimErrorPause  = time.Second
)

type taskSource interface {
	Claim(ctx context.Context, wait time.Duration) (*queue.Delivery, error)
	Ack(ctx context.Context, d *queue.Delivery) error
	Nack(ctx context.Context, d *queue.Delivery) (bool, error)
}

type searchEngine interface {
	StartRun(ctx context.Context, request engine.RunRequest) (*engine.RunResponse, error)
	FetchDataset(ctx context.Context, datasetURL string) ([]engine.DatasetItem, error)
}

type creditCharger interface {
	ChargeRun(ctx context.Context, req ChargeRequest) (ChargeResult, error)
}

type postingWriter interface {
	SaveBatch(ctx context.Context, postings []models.JobPosting) error
}

// RunResult is what a processed task produced.
type RunResult struct {
	UserID   string
	Charged  int
	Postings []models.JobPosting
}

type WorkerPool struct {
	bus       EventBus.Bus
	tasks     taskSource
	engine    searchEngine
	ledger    creditCharger
	postings  postingWriter
	workers   int
	claimWait time.Duration
}

func NewWorkerPool(bus EventBus.Bus, tasks taskSource, engine searchEngine, ledger creditCharger,
	postings postingWriter, workers int) *WorkerPool {

	if workers <= 0 {
		workers = DefaultWorkers
	}

	return &WorkerPool{
		bus:       bus,
		tasks:     tasks,
		engine:    engine,
		ledger:    ledger,
		postings:  postings,
		workers:   workers,
		claimWait: defaultClaimWait,
	}
}

// Run starts the workers and blocks until ctx is done.
func (p *WorkerPool) Run(ctx context.Context) error {
	log.Infof("worker pool started with %d workers", p.workers)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		worker := i + 1
		g.Go(func() error {
			p.work(gctx, worker)
			return nil
		})
	}

	err := g.Wait()
	log.Info("worker pool stopped")
	return err
}

func (p *WorkerPool) work(ctx context.Context, worker int) {
	for ctx.Err() == nil {
		delivery, err := p.tasks.Claim(ctx, p.claimWait)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeQueue).Errorf("worker %d failed to claim task: %v", worker, err)
			select {
			case <-ctx.Done():
			case <-time.After(claimErrorPause):
			}
			continue
		}
		if delivery == nil {
			continue
		}
		p.handle(ctx, delivery)
	}
}

func (p *WorkerPool) handle(ctx context.Context, delivery *queue.Delivery) {
	task := delivery.Task
	start := time.Now()

	result, err := p.Process(ctx, task)
	metrics.TaskDuration.Observe(time.Since(start).Seconds())

	if err != nil && ctx.Err() != nil {
		// left in flight, recovered on next start
		log.Warnf("run %s interrupted by shutdown", task.SessionID)
		return
	}

	if err == nil {
		p.ack(ctx, delivery)
		metrics.TasksProcessedCounter.WithLabelValues(metrics.OutcomeSucceeded).Inc()
		p.bus.Publish(events.RunCompletedTopic, events.RunCompleted{
			RunID:    task.SessionID,
			UserID:   result.UserID,
			Charged:  result.Charged,
			Postings: result.Postings,
		})
		log.Infof("run %s completed with %d jobs", task.SessionID, len(result.Postings))
		return
	}

	if isRetryable(err) {
		requeued, nackErr := p.tasks.Nack(ctx, delivery)
		if nackErr != nil {
			// still in flight, so the run is redelivered on next start and is not reported as failed
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeQueue).
				Errorf("failed to release run %s, redelivery pending until restart: %v", task.SessionID, nackErr)
			p.publishProgress(task.SessionID, 5, "Waiting for redelivery")
			return
		}
		if requeued {
			metrics.TasksProcessedCounter.WithLabelValues(metrics.OutcomeRetried).Inc()
			log.Warnf("run %s failed on attempt %d and was requeued: %v", task.SessionID, task.Attempt+1, err)
			p.publishProgress(task.SessionID, 5, fmt.Sprintf("Retrying after error (attempt %d)", task.Attempt+2))
			return
		}
	} else {
		p.ack(ctx, delivery)
	}

	metrics.TasksProcessedCounter.WithLabelValues(metrics.OutcomeFailed).Inc()
	log.Errorf("run %s failed: %v", task.SessionID, err)
	p.bus.Publish(events.RunFailedTopic, events.RunFailed{RunID: task.SessionID, Code: models.ErrorCode(err), Err: err})
}

// Process runs one search: start the engine run, fetch its dataset, charge one credit per found
// job and store the postings. A run without a dataset succeeds without any effect.
func (p *WorkerPool) Process(ctx context.Context, task models.Task) (RunResult, error) {
	result := RunResult{UserID: task.UserID}

	p.publishProgress(task.SessionID, 10, "Searching for jobs")
	run, err := p.engine.StartRun(ctx, engine.RunRequest{Prompt: task.Prompt, SessionID: task.SessionID, UserID: task.UserID})
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeEngineApi).Errorf("engine run for %s failed: %v", task.SessionID, err)
		return result, err
	}
	if !run.HasDataset() {
		log.Infof("engine returned no dataset for run %s", task.SessionID)
		return result, nil
	}

	p.publishProgress(task.SessionID, 40, "Collecting results")
	items, err := p.engine.FetchDataset(ctx, run.DatasetURL)
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeEngineApi).Errorf("dataset fetch for %s failed: %v", task.SessionID, err)
		return result, err
	}
	if len(items) == 0 {
		return result, nil
	}

	p.publishProgress(task.SessionID, 70, "Charging credits")
	sessionID := task.SessionID
	charge, err := p.ledger.ChargeRun(ctx, ChargeRequest{
		UserID:    task.UserID,
		UnitCount: len(items),
		SessionID: &sessionID,
		RunID:     lo.EmptyableToPtr(run.RunID),
	})
	if err != nil {
		return result, err
	}
	if charge.UserID != "" {
		result.UserID = charge.UserID
	}
	result.Charged = charge.Deducted

	p.publishProgress(task.SessionID, 90, fmt.Sprintf("Saving %d jobs", len(items)))
	postings := lo.Map(items, func(item engine.DatasetItem, _ int) models.JobPosting {
		return toPosting(item, result.UserID, task.SessionID)
	})
	if err = p.postings.SaveBatch(ctx, postings); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Errorf("failed to save postings of run %s: %v", task.SessionID, err)
		return result, errors.Wrap(models.ErrPersistence, err.Error())
	}

	result.Postings = postings
	return result, nil
}

func (p *WorkerPool) publishProgress(runID string, progress int, message string) {
	p.bus.Publish(events.RunProgressedTopic, events.RunProgressed{RunID: runID, Progress: progress, Message: message})
}

func (p *WorkerPool) ack(ctx context.Context, delivery *queue.Delivery) {
	if err := p.tasks.Ack(context.WithoutCancel(ctx), delivery); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeQueue).Errorf("failed to ack run %s: %v", delivery.Task.SessionID, err)
	}
}

func isRetryable(err error) bool {
	return errors.Is(err, models.ErrUpstreamUnavailable) || errors.Is(err, models.ErrPersistence)
}

func toPosting(item engine.DatasetItem, userID, sessionID string) models.JobPosting {
	sourceID := strings.TrimSpace(item.ID)
	id := newPostingUUID()
	if sourceID != "" {
		id = postingKey(userID, sourceID)
	}
	return models.JobPosting{
		UUID:           id,
		UserID:         userID,
		SessionID:      sessionID,
		CorrelationRef: sourceID,
		Title:       item.Title,
		Company:     item.Company,
		Location:    item.Location,
		URL:         item.URL,
		Description: item.Description,
		Recipient:   item.Recipient,
		Subject:     item.Subject,
		Body:        item.Body,
	}
}

var postingNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:job-intake:posting"))

// postingKey derives a stable posting UUID per user, so two users finding the same job get separate postings.
func postingKey(userID, sourceID string) string {
	return uuid.NewSHA1(postingNamespace, []byte(userID+"\x00"+sourceID)).String()
}

// newPostingUUID returns a time ordered UUID for postings that arrive without an id.
func newPostingUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
