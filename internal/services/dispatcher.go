package services

import (
	"context"
	"strings"
	"sync"

	"github.com/asaskevich/EventBus"
	"github.com/google/uuid"
	"github.com/maxaizer/job-intake/internal/domain/events"
	"github.com/maxaizer/job-intake/internal/domain/models"
	"github.com/maxaizer/job-intake/internal/logger"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var (
	ErrEmptyPrompt = errors.New("prompt must not be empty")
	ErrUnknownRun  = errors.New("run is not awaited by this dispatcher")
)

type taskQueue interface {
	Enqueue(ctx context.Context, task models.Task) error
}

// Outcome is the final state of a dispatched run.
type Outcome struct {
	RunID    string
	UserID   string
	Charged  int
	Postings []models.JobPosting
	Code     string
	Err      error
}

type Dispatcher struct {
	bus     EventBus.Bus
	queue   taskQueue
	waiters sync.Map
}

func NewDispatcher(bus EventBus.Bus, queue taskQueue) (*Dispatcher, error) {
	d := &Dispatcher{bus: bus, queue: queue}

	if err := bus.Subscribe(events.RunCompletedTopic, d.onRunCompleted); err != nil {
		return nil, err
	}
	if err := bus.Subscribe(events.RunFailedTopic, d.onRunFailed); err != nil {
		return nil, err
	}
	return d, nil
}

// Dispatch enqueues a search for the canonical user id and returns the run id to poll. The session id of the
// task doubles as the run id.
func (d *Dispatcher) Dispatch(ctx context.Context, userID string, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", ErrEmptyPrompt
	}

	runID := uuid.NewString()
	d.waiters.Store(runID, make(chan Outcome, 1))

	d.bus.Publish(events.RunProgressedTopic, events.RunProgressed{RunID: runID, Progress: 0, Message: "Queued"})

	task := models.Task{Prompt: prompt, UserID: userID, SessionID: runID}
	if err := d.queue.Enqueue(ctx, task); err != nil {
		d.waiters.Delete(runID)
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeQueue).Errorf("failed to enqueue run %s: %v", runID, err)
		d.bus.Publish(events.RunFailedTopic, events.RunFailed{RunID: runID, Code: "QUEUE_UNAVAILABLE", Err: err})
		return "", err
	}

	log.Infof("run %s queued for user %v", runID, userID)
	return runID, nil
}

// Await blocks until the run completes or fails, or ctx ends. The run stops being awaited either way.
func (d *Dispatcher) Await(ctx context.Context, runID string) (Outcome, error) {
	value, ok := d.waiters.Load(runID)
	if !ok {
		return Outcome{}, ErrUnknownRun
	}
	defer d.waiters.Delete(runID)

	select {
	case outcome := <-value.(chan Outcome):
		return outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Forget drops the waiter of a run nobody is going to await.
func (d *Dispatcher) Forget(runID string) {
	d.waiters.Delete(runID)
}

func (d *Dispatcher) onRunCompleted(event events.RunCompleted) {
	d.deliver(Outcome{RunID: event.RunID, UserID: event.UserID, Charged: event.Charged, Postings: event.Postings})
}

func (d *Dispatcher) onRunFailed(event events.RunFailed) {
	err := event.Err
	if err == nil {
		err = errors.New("run failed")
	}
	d.deliver(Outcome{RunID: event.RunID, Code: event.Code, Err: err})
}

func (d *Dispatcher) deliver(outcome Outcome) {
	// the waiter stays registered until Await returns, so an outcome published before Await is kept
	value, ok := d.waiters.Load(outcome.RunID)
	if !ok {
		return
	}
	select {
	case value.(chan Outcome) <- outcome:
	default:
	}
}
