package service_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"reconstruction-service/internal/entity"
	"reconstruction-service/internal/pipeline"
	"reconstruction-service/internal/repository/memory"
	"reconstruction-service/internal/service"
)

type fakeQueue struct {
	enqueuedIDs []string
	enqueueErr  error
}

func (q *fakeQueue) Enqueue(ctx context.Context, jobID string) error {
	q.enqueuedIDs = append(q.enqueuedIDs, jobID)
	return q.enqueueErr
}

func newService(t *testing.T) (*service.JobService, *memory.JobRepository, *fakeQueue) {
	t.Helper()
	repo := memory.NewJobRepository()
	queue := &fakeQueue{}
	return service.NewJobService(repo, queue, nil, t.TempDir()), repo, queue
}

func imageFiles() []entity.InputFile {
	return []entity.InputFile{
		{ID: "f1", Name: "a.jpg", Path: "/uploads/a.jpg", Size: 100},
		{ID: "f2", Name: "b.png", Path: "/uploads/b.png", Size: 200},
	}
}

func TestSubmitJob_CreatesPendingJob(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newService(t)

	id, err := svc.SubmitJob(ctx, entity.MethodPointSplat, imageFiles())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	tr, err := repo.Get(id)
	if err != nil {
		t.Fatalf("job not stored: %v", err)
	}
	snap := tr.Snapshot()
	if snap.Status != entity.StatusPending {
		t.Fatalf("expected pending, got %s", snap.Status)
	}
	if snap.Files[0].Kind != entity.FileImage {
		t.Fatalf("expected file kind classified, got %q", snap.Files[0].Kind)
	}
	if _, err := os.Stat(snap.OutputDir); err != nil {
		t.Fatalf("expected output dir created: %v", err)
	}
}

func TestSubmitJob_Validation(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	if _, err := svc.SubmitJob(ctx, "voxel-grid", imageFiles()); err == nil {
		t.Fatal("expected unknown method to be rejected")
	}

	var inputErr *pipeline.InputError
	if _, err := svc.SubmitJob(ctx, entity.MethodPointSplat, nil); !errors.As(err, &inputErr) {
		t.Fatalf("expected InputError on empty set, got %v", err)
	}

	files := []entity.InputFile{{ID: "f1", Name: "notes.txt", Path: "/uploads/notes.txt"}}
	var unsupported *pipeline.UnsupportedInputError
	if _, err := svc.SubmitJob(ctx, entity.MethodPointSplat, files); !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedInputError, got %v", err)
	}
}

func TestStartJob_EnqueuesOnce(t *testing.T) {
	ctx := context.Background()
	svc, _, queue := newService(t)

	id, err := svc.SubmitJob(ctx, entity.MethodRadianceField, imageFiles())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := svc.StartJob(ctx, id); err != nil {
		t.Fatalf("first start: %v", err)
	}
	if len(queue.enqueuedIDs) != 1 || queue.enqueuedIDs[0] != id.String() {
		t.Fatalf("expected one enqueue of %s, got %#v", id, queue.enqueuedIDs)
	}

	// double start never schedules twice
	if err := svc.StartJob(ctx, id); !errors.Is(err, service.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	if len(queue.enqueuedIDs) != 1 {
		t.Fatalf("expected queue untouched, got %#v", queue.enqueuedIDs)
	}
}

func TestStartJob_UnknownJob(t *testing.T) {
	svc, _, _ := newService(t)
	if err := svc.StartJob(context.Background(), uuid.New()); !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCancelJob(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newService(t)

	id, _ := svc.SubmitJob(ctx, entity.MethodPointSplat, imageFiles())
	if err := svc.CancelJob(ctx, id); err != nil {
		t.Fatalf("cancel pending: %v", err)
	}

	tr, _ := repo.Get(id)
	if got := tr.Snapshot().Status; got != entity.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", got)
	}

	// cancelling a terminal job is an invalid state, idempotency ends there
	if err := svc.CancelJob(ctx, id); !errors.Is(err, service.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestListJobs_NewestFirst(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	first, _ := svc.SubmitJob(ctx, entity.MethodPointSplat, imageFiles())
	time.Sleep(5 * time.Millisecond)
	second, _ := svc.SubmitJob(ctx, entity.MethodRadianceField, imageFiles())

	list := svc.ListJobs(ctx)
	if len(list) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(list))
	}
	if list[0].ID != second.String() || list[1].ID != first.String() {
		t.Fatalf("expected newest first, got %s then %s", list[0].ID, list[1].ID)
	}
	if list[0].FilesCount != 2 {
		t.Fatalf("expected files_count=2, got %d", list[0].FilesCount)
	}
}

func TestArtifact(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newService(t)

	id, _ := svc.SubmitJob(ctx, entity.MethodPointSplat, imageFiles())

	// not completed yet
	if _, err := svc.Artifact(ctx, id, entity.ArtifactModel); !errors.Is(err, service.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}

	tr, _ := repo.Get(id)
	if err := tr.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := tr.Complete(&entity.Result{ModelPath: "/out/model", ThumbnailPath: "/out/thumb.jpg"}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	path, err := svc.Artifact(ctx, id, entity.ArtifactModel)
	if err != nil {
		t.Fatalf("artifact: %v", err)
	}
	if path != "/out/model" {
		t.Fatalf("expected model path, got %s", path)
	}

	// unknown or absent artifact kinds are a 404, not a 500
	if _, err := svc.Artifact(ctx, id, "weights"); !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Artifact(ctx, id, entity.ArtifactPointCloud); !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty path, got %v", err)
	}
}
