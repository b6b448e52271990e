package queue

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/maxaizer/job-intake/internal/domain/models"
	"github.com/maxaizer/job-intake/internal/logger"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestQueue needs a live Redis; set REDIS_URL to run these tests.
func newTestQueue(t *testing.T, maxAttempts int) *Queue {
	t.Helper()

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL is not set")
	}

	rdb, err := NewRedisClient(context.Background(), redisURL)
	require.NoError(t, err)

	q := New(rdb, "job-intake-test:"+uuid.NewString(), maxAttempts)
	t.Cleanup(func() {
		rdb.Del(context.Background(), q.pendingKey(), q.inflightKey(), q.deadKey())
		_ = rdb.Close()
	})
	return q
}

func Test_Queue_ShouldDeliverInFifoOrder(t *testing.T) {
	q := newTestQueue(t, 3)
	ctx := context.Background()

	for _, session := range []string{"s1", "s2", "s3"} {
		require.NoError(t, q.Enqueue(ctx, models.Task{Prompt: "golang", UserID: "12345", SessionID: session}))
	}

	for _, expected := range []string{"s1", "s2", "s3"} {
		d, err := q.Claim(ctx, time.Second)
		require.NoError(t, err)
		require.NotNil(t, d)
		assert.Equal(t, expected, d.Task.SessionID)
		require.NoError(t, q.Ack(ctx, d))
	}

	pending, inflight, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
	assert.Zero(t, inflight)
}

func Test_Queue_Claim_WhenEmpty_ShouldReturnNil(t *testing.T) {
	q := newTestQueue(t, 3)

	d, err := q.Claim(context.Background(), 100*time.Millisecond)
	assert.NoError(t, err)
	assert.Nil(t, d)
}

func Test_Queue_Nack_ShouldRequeueUntilMaxAttempts(t *testing.T) {
	q := newTestQueue(t, 2)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, models.Task{SessionID: "s1"}))

	d, err := q.Claim(ctx, time.Second)
	require.NoError(t, err)
	requeued, err := q.Nack(ctx, d)
	require.NoError(t, err)
	assert.True(t, requeued)

	d, err = q.Claim(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Task.Attempt)
	requeued, err = q.Nack(ctx, d)
	require.NoError(t, err)
	assert.False(t, requeued)

	dead, err := q.rdb.LLen(ctx, q.deadKey()).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), dead)
}

func Test_Queue_RecoverInFlight_ShouldRedeliverClaimedTasks(t *testing.T) {
	q := newTestQueue(t, 3)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, models.Task{SessionID: "s1"}))
	require.NoError(t, q.Enqueue(ctx, models.Task{SessionID: "s2"}))

	_, err := q.Claim(ctx, time.Second)
	require.NoError(t, err)
	_, err = q.Claim(ctx, time.Second)
	require.NoError(t, err)

	recovered, err := q.RecoverInFlight(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, recovered)

	d, err := q.Claim(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "s1", d.Task.SessionID)
}

func Test_Queue_Claim_WhenPayloadUndecodable_ShouldMoveItToDeadLetters(t *testing.T) {
	q := newTestQueue(t, 3)
	ctx := context.Background()
	require.NoError(t, q.rdb.LPush(ctx, q.pendingKey(), "{not json").Err())

	d, err := q.Claim(ctx, time.Second)
	assert.Error(t, err)
	assert.Nil(t, d)

	dead, err := q.rdb.LLen(ctx, q.deadKey()).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), dead)
	_, inflight, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Zero(t, inflight)
}

func Test_Queue_BuryUndecodable_WhenRedisFails_ShouldLogQueueError(t *testing.T) {
	previous := log.StandardLogger().ReplaceHooks(make(log.LevelHooks))
	t.Cleanup(func() { log.StandardLogger().ReplaceHooks(previous) })
	hook := logtest.NewGlobal()

	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	t.Cleanup(func() { _ = rdb.Close() })

	New(rdb, "job-intake-test", 3).buryUndecodable(context.Background(), "{not json")

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, log.ErrorLevel, entry.Level)
	assert.Equal(t, logger.ErrorTypeQueue, entry.Data[logger.ErrorTypeField])
}
