// Package progress keeps live run progress and run/job errors in process memory.
//
// The registries are ephemeral: nothing is evicted and nothing survives a restart. Pollers routed to
// another process would not see these entries, so the service must run as a single instance.
package progress

import (
	"fmt"
	"sync"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/maxaizer/job-intake/internal/domain/events"
	gocache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
)

type Status string

const (
	StatusRunning   Status = "running"
	StatusError     Status = "error"
	StatusCompleted Status = "completed"
	StatusNone      Status = "none"
)

const DefaultMessage = "Starting…"

const DefaultErrorCode = "UNKNOWN_ERROR"

var ErrInvalidStatus = errors.New("invalid progress status")

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusRunning, StatusError, StatusCompleted:
		return Status(s), nil
	case "":
		return StatusRunning, nil
	default:
		return "", errors.Wrapf(ErrInvalidStatus, "%q", s)
	}
}

type Record struct {
	Progress  int       `json:"progress"`
	Message   string    `json:"message"`
	Status    Status    `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type ErrorRecord struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

type Store struct {
	mu        sync.Mutex
	progress  *gocache.Cache
	runErrors *gocache.Cache
	jobErrors *gocache.Cache
}

func NewStore() *Store {
	return &Store{
		progress:  gocache.New(gocache.NoExpiration, 0),
		runErrors: gocache.New(gocache.NoExpiration, 0),
		jobErrors: gocache.New(gocache.NoExpiration, 0),
	}
}

func DefaultRecord() Record {
	return Record{Progress: 0, Message: DefaultMessage, Status: StatusRunning}
}

func NoError() ErrorRecord {
	return ErrorRecord{Status: StatusNone}
}

func (s *Store) SetProgress(runID string, progress int, message string, status Status) Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := Record{Progress: clamp(progress), Message: message, Status: status, UpdatedAt: time.Now()}
	s.progress.Set(runID, record, gocache.NoExpiration)
	return record
}

// GetProgress treats an unknown run as not yet started.
func (s *Store) GetProgress(runID string) Record {
	if value, found := s.progress.Get(runID); found {
		return value.(Record)
	}
	return DefaultRecord()
}

// SetRunError is terminal: it also completes the run's progress so pollers stop waiting.
func (s *Store) SetRunError(runID, code, message string) ErrorRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := newErrorRecord(code, message)
	s.runErrors.Set(runID, record, gocache.NoExpiration)
	s.progress.Set(runID, Record{
		Progress:  100,
		Message:   message,
		Status:    StatusError,
		UpdatedAt: record.CreatedAt,
	}, gocache.NoExpiration)
	return record
}

func (s *Store) GetRunError(runID string) (ErrorRecord, bool) {
	if value, found := s.runErrors.Get(runID); found {
		return value.(ErrorRecord), true
	}
	return NoError(), false
}

func (s *Store) SetJobError(jobID, code, message string) ErrorRecord {
	record := newErrorRecord(code, message)
	s.jobErrors.Set(jobID, record, gocache.NoExpiration)
	return record
}

func (s *Store) GetJobError(jobID string) (ErrorRecord, bool) {
	if value, found := s.jobErrors.Get(jobID); found {
		return value.(ErrorRecord), true
	}
	return NoError(), false
}

// Subscribe makes the store follow the run events published by the worker pool.
func (s *Store) Subscribe(bus EventBus.Bus) error {
	if err := bus.Subscribe(events.RunProgressedTopic, s.onRunProgressed); err != nil {
		return err
	}
	if err := bus.Subscribe(events.RunCompletedTopic, s.onRunCompleted); err != nil {
		return err
	}
	return bus.Subscribe(events.RunFailedTopic, s.onRunFailed)
}

func (s *Store) onRunProgressed(event events.RunProgressed) {
	s.SetProgress(event.RunID, event.Progress, event.Message, StatusRunning)
}

func (s *Store) onRunCompleted(event events.RunCompleted) {
	s.SetProgress(event.RunID, 100, completedMessage(len(event.Postings)), StatusCompleted)
}

func (s *Store) onRunFailed(event events.RunFailed) {
	message := "run failed"
	if event.Err != nil {
		message = event.Err.Error()
	}
	s.SetRunError(event.RunID, event.Code, message)
}

func newErrorRecord(code, message string) ErrorRecord {
	if code == "" {
		code = DefaultErrorCode
	}
	return ErrorRecord{Code: code, Message: message, Status: StatusError, CreatedAt: time.Now()}
}

func completedMessage(found int) string {
	switch found {
	case 0:
		return "No jobs found"
	case 1:
		return "Found 1 job"
	default:
		return fmt.Sprintf("Found %d jobs", found)
	}
}

func clamp(progress int) int {
	return max(0, min(progress, 100))
}
