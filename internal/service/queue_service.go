package service

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrQueueEmpty signals a claim timeout; workers just poll again.
var ErrQueueEmpty = errors.New("queue empty")

// Queue is the scheduler's job queue: Enqueue from the API side, blocking
// Claim/Ack from the worker side, RequeueStale for crash recovery.
type Queue interface {
	Enqueue(ctx context.Context, jobID string) error
	ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error)
	Ack(ctx context.Context, jobID string) error
	RequeueStale(ctx context.Context, max int64) (int64, error)
}

// memoryQueue is the default single-process queue: a buffered channel.
// Jobs beyond the worker pool's capacity simply wait here in pending state.
type memoryQueue struct {
	ch chan string
}

func NewMemoryQueue(capacity int) Queue {
	if capacity <= 0 {
		capacity = 256
	}
	return &memoryQueue{ch: make(chan string, capacity)}
}

func (q *memoryQueue) Enqueue(ctx context.Context, jobID string) error {
	select {
	case q.ch <- jobID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *memoryQueue) ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case id := <-q.ch:
		return id, nil
	case <-timer.C:
		return "", ErrQueueEmpty
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (q *memoryQueue) Ack(ctx context.Context, jobID string) error {
	return nil
}

func (q *memoryQueue) RequeueStale(ctx context.Context, max int64) (int64, error) {
	return 0, nil
}

// redisQueue is a reliable Redis-backed queue for multi-node deployments:
// Claim moves the id queue -> processing atomically, Ack removes it from
// processing, RequeueStale sweeps abandoned ids back (at-least-once).
type redisQueue struct {
	rdb           *redis.Client
	queueKey      string
	processingKey string
}

func NewRedisQueue(rdb *redis.Client, queueKey, processingKey string) Queue {
	return &redisQueue{
		rdb:           rdb,
		queueKey:      queueKey,
		processingKey: processingKey,
	}
}

func (q *redisQueue) Enqueue(ctx context.Context, jobID string) error {
	return q.rdb.LPush(ctx, q.queueKey, jobID).Err()
}

func (q *redisQueue) ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error) {
	id, err := q.rdb.BRPopLPush(ctx, q.queueKey, q.processingKey, timeout).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrQueueEmpty
		}
		return "", err
	}
	return id, nil
}

func (q *redisQueue) Ack(ctx context.Context, jobID string) error {
	return q.rdb.LRem(ctx, q.processingKey, 1, jobID).Err()
}

func (q *redisQueue) RequeueStale(ctx context.Context, max int64) (int64, error) {
	var moved int64
	for i := int64(0); i < max; i++ {
		id, err := q.rdb.RPopLPush(ctx, q.processingKey, q.queueKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return moved, nil
			}
			return moved, err
		}
		if id != "" {
			moved++
		}
	}
	return moved, nil
}
