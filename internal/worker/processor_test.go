package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"reconstruction-service/internal/entity"
	"reconstruction-service/internal/pipeline"
	"reconstruction-service/internal/repository/memory"
	"reconstruction-service/internal/tracker"
	"reconstruction-service/internal/worker"
)

type fakeOrch struct {
	calls  int
	result *entity.Result
	err    error
}

func (o *fakeOrch) Run(ctx context.Context, t *tracker.Tracker) (*entity.Result, error) {
	o.calls++
	return o.result, o.err
}

func seedJob(t *testing.T, repo *memory.JobRepository) uuid.UUID {
	t.Helper()
	id := uuid.New()
	tr := tracker.New(&entity.Job{
		ID:        id,
		Method:    entity.MethodPointSplat,
		Status:    entity.StatusPending,
		CreatedAt: time.Now(),
	})
	if err := repo.Put(tr); err != nil {
		t.Fatalf("put: %v", err)
	}
	return id
}

func TestProcessor_CompletesJob(t *testing.T) {
	repo := memory.NewJobRepository()
	id := seedJob(t, repo)
	orch := &fakeOrch{result: &entity.Result{NumPoints: 5000}}
	p := worker.NewProcessor(repo, orch)

	if err := p.Process(context.Background(), id.String()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	tr, _ := repo.Get(id)
	snap := tr.Snapshot()
	if snap.Status != entity.StatusCompleted {
		t.Fatalf("expected completed, got %s", snap.Status)
	}
	if snap.Result == nil || snap.Result.NumPoints != 5000 {
		t.Fatalf("expected result attached, got %+v", snap.Result)
	}
}

func TestProcessor_FailsJob(t *testing.T) {
	repo := memory.NewJobRepository()
	id := seedJob(t, repo)
	orch := &fakeOrch{err: errors.New("stage sparse_reconstruction: mapper exited")}
	p := worker.NewProcessor(repo, orch)

	if err := p.Process(context.Background(), id.String()); err == nil {
		t.Fatal("expected error to propagate")
	}

	tr, _ := repo.Get(id)
	snap := tr.Snapshot()
	if snap.Status != entity.StatusFailed {
		t.Fatalf("expected failed, got %s", snap.Status)
	}
	if snap.Error == nil || *snap.Error == "" {
		t.Fatal("expected error text on the job")
	}
}

func TestProcessor_CancelledJob(t *testing.T) {
	repo := memory.NewJobRepository()
	id := seedJob(t, repo)
	orch := &fakeOrch{err: pipeline.ErrCancelled}
	p := worker.NewProcessor(repo, orch)

	if err := p.Process(context.Background(), id.String()); err != nil {
		t.Fatalf("cancel is not a processing error, got %v", err)
	}

	tr, _ := repo.Get(id)
	if got := tr.Snapshot().Status; got != entity.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", got)
	}
}

func TestProcessor_SkipsNonPendingJob(t *testing.T) {
	repo := memory.NewJobRepository()
	id := seedJob(t, repo)
	tr, _ := repo.Get(id)
	if err := tr.RequestCancel(); err != nil { // cancelled while queued
		t.Fatalf("cancel: %v", err)
	}

	orch := &fakeOrch{}
	p := worker.NewProcessor(repo, orch)
	if err := p.Process(context.Background(), id.String()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if orch.calls != 0 {
		t.Fatalf("expected pipeline untouched, got %d calls", orch.calls)
	}
}

func TestProcessor_UnknownJob(t *testing.T) {
	repo := memory.NewJobRepository()
	p := worker.NewProcessor(repo, &fakeOrch{})

	if err := p.Process(context.Background(), uuid.NewString()); !errors.Is(err, memory.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := p.Process(context.Background(), "not-a-uuid"); err == nil {
		t.Fatal("expected parse error")
	}
}
