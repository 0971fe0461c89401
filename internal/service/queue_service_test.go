package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"reconstruction-service/internal/service"
)

func TestMemoryQueue_FIFO(t *testing.T) {
	ctx := context.Background()
	q := service.NewMemoryQueue(8)

	for _, id := range []string{"a", "b", "c"} {
		if err := q.Enqueue(ctx, id); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}

	for _, want := range []string{"a", "b", "c"} {
		got, err := q.ClaimBlocking(ctx, time.Second)
		if err != nil {
			t.Fatalf("claim: %v", err)
		}
		if got != want {
			t.Fatalf("expected %s, got %s", want, got)
		}
		if err := q.Ack(ctx, got); err != nil {
			t.Fatalf("ack: %v", err)
		}
	}
}

func TestMemoryQueue_ClaimTimeout(t *testing.T) {
	q := service.NewMemoryQueue(1)

	start := time.Now()
	_, err := q.ClaimBlocking(context.Background(), 50*time.Millisecond)
	if !errors.Is(err, service.ErrQueueEmpty) {
		t.Fatalf("expected ErrQueueEmpty, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("claim blocked far past its timeout")
	}
}

func TestMemoryQueue_ClaimHonoursContext(t *testing.T) {
	q := service.NewMemoryQueue(1)
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := q.ClaimBlocking(ctx, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestMemoryQueue_RequeueStaleIsNoop(t *testing.T) {
	q := service.NewMemoryQueue(1)
	n, err := q.RequeueStale(context.Background(), 100)
	if err != nil || n != 0 {
		t.Fatalf("expected 0, nil for the in-process queue, got %d, %v", n, err)
	}
}
