// Package queue is a durable FIFO task queue on top of Redis lists.
//
// Tasks are pushed to the left of <topic> and claimed from its right into <topic>:inflight with
// BLMOVE, so a task stays in Redis until it is acknowledged. Delivery is at least once: in-flight
// tasks left behind by a crashed process are moved back by RecoverInFlight.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/maxaizer/job-intake/internal/domain/models"
	"github.com/maxaizer/job-intake/internal/logger"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const DefaultTopic = "job-intake:tasks"

// Delivery is a claimed task. Raw is the exact payload in the in-flight list and is used to remove it.
type Delivery struct {
	Task models.Task
	Raw  string
}

type Queue struct {
	rdb         *redis.Client
	topic       string
	maxAttempts int
}

func New(rdb *redis.Client, topic string, maxAttempts int) *Queue {
	if topic == "" {
		topic = DefaultTopic
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &Queue{rdb: rdb, topic: topic, maxAttempts: maxAttempts}
}

func (q *Queue) pendingKey() string  { return q.topic }
func (q *Queue) inflightKey() string { return q.topic + ":inflight" }
func (q *Queue) deadKey() string     { return q.topic + ":dead" }

func (q *Queue) Enqueue(ctx context.Context, task models.Task) error {
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(task)
	if err != nil {
		return errors.Wrap(err, "failed to encode task")
	}
	if err = q.rdb.LPush(ctx, q.pendingKey(), payload).Err(); err != nil {
		return fmt.Errorf("enqueue task for session %s: %w", task.SessionID, err)
	}
	return nil
}

// Claim blocks up to wait for the oldest task. It returns nil without error when nothing arrived.
func (q *Queue) Claim(ctx context.Context, wait time.Duration) (*Delivery, error) {
	raw, err := q.rdb.BLMove(ctx, q.pendingKey(), q.inflightKey(), "RIGHT", "LEFT", wait).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim task: %w", err)
	}

	var task models.Task
	if err = json.Unmarshal([]byte(raw), &task); err != nil {
		// an undecodable payload would be redelivered forever
		q.buryUndecodable(ctx, raw)
		return nil, errors.Wrap(err, "failed to decode task, moved to dead letter list")
	}
	return &Delivery{Task: task, Raw: raw}, nil
}

func (q *Queue) Ack(ctx context.Context, d *Delivery) error {
	if err := q.rdb.LRem(ctx, q.inflightKey(), 1, d.Raw).Err(); err != nil {
		return fmt.Errorf("ack task for session %s: %w", d.Task.SessionID, err)
	}
	return nil
}

// Nack releases a failed delivery. The task is queued again with an incremented attempt counter
// until it has been tried maxAttempts times, after which it is moved to the dead letter list.
func (q *Queue) Nack(ctx context.Context, d *Delivery) (requeued bool, err error) {
	task := d.Task
	task.Attempt++

	if task.Attempt >= q.maxAttempts {
		return false, errors.Wrap(q.bury(ctx, d.Raw), "failed to bury task")
	}

	payload, err := json.Marshal(task)
	if err != nil {
		return false, errors.Wrap(err, "failed to encode task")
	}
	_, err = q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, q.inflightKey(), 1, d.Raw)
		pipe.RPush(ctx, q.pendingKey(), payload)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("requeue task for session %s: %w", task.SessionID, err)
	}
	return true, nil
}

// RecoverInFlight moves every in-flight task back to the head of the pending list.
// Only call it when no worker of this topic is running.
func (q *Queue) RecoverInFlight(ctx context.Context) (int, error) {
	recovered := 0
	for {
		err := q.rdb.LMove(ctx, q.inflightKey(), q.pendingKey(), "LEFT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return recovered, nil
		}
		if err != nil {
			return recovered, fmt.Errorf("recover in-flight tasks: %w", err)
		}
		recovered++
	}
}

func (q *Queue) Depth(ctx context.Context) (pending int64, inflight int64, err error) {
	pending, err = q.rdb.LLen(ctx, q.pendingKey()).Result()
	if err != nil {
		return 0, 0, err
	}
	inflight, err = q.rdb.LLen(ctx, q.inflightKey()).Result()
	return pending, inflight, err
}

func (q *Queue) buryUndecodable(ctx context.Context, raw string) {
	if err := q.bury(ctx, raw); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeQueue).
			Errorf("failed to move undecodable task to dead letter list: %v", err)
	}
}

func (q *Queue) bury(ctx context.Context, raw string) error {
	_, err := q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, q.inflightKey(), 1, raw)
		pipe.LPush(ctx, q.deadKey(), raw)
		return nil
	})
	return err
}
