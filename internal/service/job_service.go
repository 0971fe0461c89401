package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"reconstruction-service/internal/entity"
	"reconstruction-service/internal/pipeline"
	"reconstruction-service/internal/repository/memory"
	"reconstruction-service/internal/toollog"
	"reconstruction-service/internal/tracker"
)

// ErrInvalidState rejects an operation the job's current status forbids,
// e.g. starting a job twice or cancelling a finished one.
var ErrInvalidState = errors.New("job is not in a valid state for this operation")

// ErrNotFound re-exports the repository sentinel for transport callers.
var ErrNotFound = memory.ErrNotFound

// JobRepository is the injected job store port.
type JobRepository interface {
	Put(t *tracker.Tracker) error
	Get(id uuid.UUID) (*tracker.Tracker, error)
	List() []*tracker.Tracker
	Delete(id uuid.UUID) error
}

// JobQueue is the narrow enqueue-side port of the scheduler queue.
type JobQueue interface {
	Enqueue(ctx context.Context, jobID string) error
}

// InvocationLog exposes the per-job external-tool audit trail.
type InvocationLog interface {
	ListByJob(ctx context.Context, jobID string) ([]toollog.Entry, error)
}

type JobService struct {
	repo  JobRepository
	queue JobQueue
	logs  InvocationLog

	workspaceDir string
}

func NewJobService(repo JobRepository, queue JobQueue, logs InvocationLog, workspaceDir string) *JobService {
	return &JobService{
		repo:         repo,
		queue:        queue,
		logs:         logs,
		workspaceDir: workspaceDir,
	}
}

// SubmitJob registers a pending job for an already-persisted file set.
// The file set must be non-empty and every extension must name a supported
// image or video container.
func (s *JobService) SubmitJob(ctx context.Context, method entity.Method, files []entity.InputFile) (uuid.UUID, error) {
	if !method.Valid() {
		return uuid.Nil, &pipeline.InputError{Reason: "unknown reconstruction method " + string(method)}
	}
	if len(files) == 0 {
		return uuid.Nil, &pipeline.InputError{Reason: "empty file set"}
	}
	for i := range files {
		kind, ok := pipeline.ClassifyInput(files[i].Path)
		if !ok {
			return uuid.Nil, &pipeline.UnsupportedInputError{
				File: files[i].Name,
				Ext:  filepath.Ext(files[i].Path),
			}
		}
		files[i].Kind = kind
	}

	id := uuid.New()
	outputDir := filepath.Join(s.workspaceDir, id.String())
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return uuid.Nil, err
	}

	job := &entity.Job{
		ID:        id,
		Method:    method,
		Status:    entity.StatusPending,
		Files:     files,
		InputDir:  filepath.Dir(files[0].Path),
		OutputDir: outputDir,
		CreatedAt: time.Now(),
		Message:   "job submitted",
	}

	if err := s.repo.Put(tracker.New(job)); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// StartJob enqueues a pending job for processing.
func (s *JobService) StartJob(ctx context.Context, id uuid.UUID) error {
	t, err := s.repo.Get(id)
	if err != nil {
		return err
	}
	if !t.TryEnqueue() {
		return ErrInvalidState
	}
	return s.queue.Enqueue(ctx, id.String())
}

// GetStatus returns a consistent point-in-time snapshot of the job.
func (s *JobService) GetStatus(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	t, err := s.repo.Get(id)
	if err != nil {
		return nil, err
	}
	return t.Snapshot(), nil
}

// CancelJob requests cancellation. Pending jobs cancel immediately;
// processing jobs cancel before their next stage starts.
func (s *JobService) CancelJob(ctx context.Context, id uuid.UUID) error {
	t, err := s.repo.Get(id)
	if err != nil {
		return err
	}
	if err := t.RequestCancel(); err != nil {
		var invalid *tracker.InvalidTransitionError
		if errors.As(err, &invalid) {
			return ErrInvalidState
		}
		return err
	}
	return nil
}

// ListJobs returns summaries of all known jobs, newest first.
func (s *JobService) ListJobs(ctx context.Context) []entity.Summary {
	trackers := s.repo.List()
	out := make([]entity.Summary, 0, len(trackers))
	for _, t := range trackers {
		out = append(out, t.Snapshot().Summary())
	}
	return out
}

// Artifact resolves a completed job's artifact by logical name so callers
// never deal in pipeline-internal paths.
func (s *JobService) Artifact(ctx context.Context, id uuid.UUID, kind string) (string, error) {
	t, err := s.repo.Get(id)
	if err != nil {
		return "", err
	}
	job := t.Snapshot()
	if job.Status != entity.StatusCompleted || job.Result == nil {
		return "", ErrInvalidState
	}
	path := job.Result.ArtifactPath(kind)
	if path == "" {
		return "", ErrNotFound
	}
	return path, nil
}

// Invocations lists the external tool calls recorded for a job.
func (s *JobService) Invocations(ctx context.Context, id uuid.UUID) ([]toollog.Entry, error) {
	if _, err := s.repo.Get(id); err != nil {
		return nil, err
	}
	if s.logs == nil {
		return nil, nil
	}
	return s.logs.ListByJob(ctx, id.String())
}
