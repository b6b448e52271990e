package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/maxaizer/job-intake/internal/clients/engine"
	"github.com/maxaizer/job-intake/internal/domain/models"
	"github.com/maxaizer/job-intake/internal/queue"
	"github.com/stretchr/testify/mock"
)

// memoryQueue mirrors the redis queue semantics in memory.
type memoryQueue struct {
	mu          sync.Mutex
	pending     chan models.Task
	inflight    map[string]models.Task
	dead        []models.Task
	maxAttempts int
	nackErr     error
}

func newMemoryQueue(maxAttempts int) *memoryQueue {
	return &memoryQueue{
		pending:     make(chan models.Task, 100),
		inflight:    make(map[string]models.Task),
		maxAttempts: maxAttempts,
	}
}

func (q *memoryQueue) Enqueue(_ context.Context, task models.Task) error {
	q.pending <- task
	return nil
}

func (q *memoryQueue) Claim(ctx context.Context, wait time.Duration) (*queue.Delivery, error) {
	select {
	case task := <-q.pending:
		raw, _ := json.Marshal(task)
		q.mu.Lock()
		q.inflight[string(raw)] = task
		q.mu.Unlock()
		return &queue.Delivery{Task: task, Raw: string(raw)}, nil
	case <-time.After(wait):
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *memoryQueue) Ack(_ context.Context, d *queue.Delivery) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inflight, d.Raw)
	return nil
}

func (q *memoryQueue) Nack(_ context.Context, d *queue.Delivery) (bool, error) {
	q.mu.Lock()
	if q.nackErr != nil {
		q.mu.Unlock()
		return false, q.nackErr
	}
	delete(q.inflight, d.Raw)
	task := d.Task
	task.Attempt++
	if task.Attempt >= q.maxAttempts {
		q.dead = append(q.dead, task)
		q.mu.Unlock()
		return false, nil
	}
	q.mu.Unlock()
	q.pending <- task
	return true, nil
}

func (q *memoryQueue) inflightCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inflight)
}

func (q *memoryQueue) deadCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.dead)
}

type mockEngine struct {
	mock.Mock
}

func (m *mockEngine) StartRun(ctx context.Context, request engine.RunRequest) (*engine.RunResponse, error) {
	args := m.Called(ctx, request)
	response, _ := args.Get(0).(*engine.RunResponse)
	return response, args.Error(1)
}

func (m *mockEngine) FetchDataset(ctx context.Context, datasetURL string) ([]engine.DatasetItem, error) {
	args := m.Called(ctx, datasetURL)
	items, _ := args.Get(0).([]engine.DatasetItem)
	return items, args.Error(1)
}

type mockCharger struct {
	mock.Mock
}

func (m *mockCharger) ChargeRun(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(ChargeResult), args.Error(1)
}

type mockPostings struct {
	mock.Mock
}

func (m *mockPostings) SaveBatch(ctx context.Context, postings []models.JobPosting) error {
	return m.Called(ctx, postings).Error(0)
}

func (m *mockPostings) Upsert(ctx context.Context, posting models.JobPosting) (*models.JobPosting, error) {
	args := m.Called(ctx, posting)
	saved, _ := args.Get(0).(*models.JobPosting)
	return saved, args.Error(1)
}
