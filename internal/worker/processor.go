package worker

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"reconstruction-service/internal/entity"
	"reconstruction-service/internal/pipeline"
	"reconstruction-service/internal/tracker"
)

type JobStore interface {
	Get(id uuid.UUID) (*tracker.Tracker, error)
}

type Orchestrator interface {
	Run(ctx context.Context, t *tracker.Tracker) (*entity.Result, error)
}

// Processor owns one claimed job from claim to terminal status. All state
// mutations for the job happen on this worker's goroutine.
type Processor struct {
	repo JobStore
	orch Orchestrator
}

func NewProcessor(repo JobStore, orch Orchestrator) *Processor {
	return &Processor{repo: repo, orch: orch}
}

func (p *Processor) Process(ctx context.Context, jobID string) error {
	start := time.Now()

	id, err := uuid.Parse(jobID)
	if err != nil {
		log.Printf("[worker] job_id=%s parse_error=%v", jobID, err)
		return err
	}

	t, err := p.repo.Get(id)
	if err != nil {
		log.Printf("[worker] job_id=%s get_job error=%v", jobID, err)
		return err
	}

	if err := t.Start(); err != nil {
		// cancelled while queued, or a duplicate claim; nothing to do
		log.Printf("[worker] job_id=%s skip reason=%v", jobID, err)
		return nil
	}

	log.Printf("[worker] job_id=%s status=processing", jobID)

	result, runErr := p.orch.Run(ctx, t)
	switch {
	case errors.Is(runErr, pipeline.ErrCancelled):
		if err := t.FinalizeCancel(); err != nil {
			log.Printf("[worker] job_id=%s finalize_cancel error=%v", jobID, err)
		}
		log.Printf("[worker] job_id=%s status=cancelled duration_ms=%d",
			jobID, time.Since(start).Milliseconds())
		return nil

	case runErr != nil:
		if err := t.Fail(runErr.Error()); err != nil {
			log.Printf("[worker] job_id=%s set_failed error=%v", jobID, err)
		}
		log.Printf("[worker] job_id=%s status=failed duration_ms=%d error=%v",
			jobID, time.Since(start).Milliseconds(), runErr)
		return runErr

	default:
		if err := t.Complete(result); err != nil {
			log.Printf("[worker] job_id=%s set_completed error=%v", jobID, err)
			return err
		}
		log.Printf("[worker] job_id=%s status=completed duration_ms=%d",
			jobID, time.Since(start).Milliseconds())
		return nil
	}
}
