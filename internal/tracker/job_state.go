package tracker

import (
	"time"

	"reconstruction-service/internal/entity"
)

// Job-level transitions. Status moves monotonically along
// pending -> processing -> {completed|failed|cancelled}; cancelled is only
// reachable from pending or processing.

// Start moves the job to processing and stamps started_at.
func (t *Tracker) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.job.Status != entity.StatusPending {
		return &InvalidTransitionError{
			Subject: "job " + t.job.ID.String(),
			From:    string(t.job.Status),
			To:      string(entity.StatusProcessing),
		}
	}
	now := time.Now()
	t.job.Status = entity.StatusProcessing
	t.job.StartedAt = &now
	t.job.Progress = 0
	t.job.Message = "processing started"
	return nil
}

// Complete moves a processing job to completed and attaches the result.
func (t *Tracker) Complete(result *entity.Result) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.job.Status != entity.StatusProcessing {
		return &InvalidTransitionError{
			Subject: "job " + t.job.ID.String(),
			From:    string(t.job.Status),
			To:      string(entity.StatusCompleted),
		}
	}
	now := time.Now()
	t.job.Status = entity.StatusCompleted
	t.job.CompletedAt = &now
	t.job.Progress = 100
	t.job.Message = "reconstruction completed"
	t.job.Result = result
	if t.job.StartedAt != nil {
		t.job.ProcessingSeconds = now.Sub(*t.job.StartedAt).Seconds()
	}
	return nil
}

// Fail moves a processing job to failed with the given error text.
func (t *Tracker) Fail(errText string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.job.Status.Terminal() {
		return &InvalidTransitionError{
			Subject: "job " + t.job.ID.String(),
			From:    string(t.job.Status),
			To:      string(entity.StatusFailed),
		}
	}
	now := time.Now()
	t.job.Status = entity.StatusFailed
	t.job.CompletedAt = &now
	t.job.Error = &errText
	t.job.Message = "reconstruction failed: " + errText
	if t.job.StartedAt != nil {
		t.job.ProcessingSeconds = now.Sub(*t.job.StartedAt).Seconds()
	}
	return nil
}

// RequestCancel flags the job for cancellation. A pending job is cancelled
// immediately; a processing job keeps the flag and its worker finalises the
// cancel between stages (never mid-subprocess).
func (t *Tracker) RequestCancel() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.job.Status {
	case entity.StatusPending:
		t.cancelLocked()
		return nil
	case entity.StatusProcessing:
		t.cancelRequested = true
		return nil
	default:
		return &InvalidTransitionError{
			Subject: "job " + t.job.ID.String(),
			From:    string(t.job.Status),
			To:      string(entity.StatusCancelled),
		}
	}
}

// CancelRequested reports whether a cancel is pending for a processing job.
func (t *Tracker) CancelRequested() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cancelRequested
}

// FinalizeCancel moves a flagged processing job to cancelled. Called by the
// job's own worker between stages.
func (t *Tracker) FinalizeCancel() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.job.Status != entity.StatusProcessing {
		return &InvalidTransitionError{
			Subject: "job " + t.job.ID.String(),
			From:    string(t.job.Status),
			To:      string(entity.StatusCancelled),
		}
	}
	t.cancelLocked()
	return nil
}

func (t *Tracker) cancelLocked() {
	now := time.Now()
	t.job.Status = entity.StatusCancelled
	t.job.CompletedAt = &now
	t.job.Message = "job cancelled"
	if t.job.StartedAt != nil {
		t.job.ProcessingSeconds = now.Sub(*t.job.StartedAt).Seconds()
	}
}

// TryEnqueue marks a pending job as handed to the queue. Returns false if
// the job was already enqueued or is past pending, so a double start never
// schedules the job twice.
func (t *Tracker) TryEnqueue() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.queued || t.job.Status != entity.StatusPending {
		return false
	}
	t.queued = true
	return true
}

// SetMessage updates the job's free-text message.
func (t *Tracker) SetMessage(msg string) {
	t.mu.Lock()
	t.job.Message = msg
	t.mu.Unlock()
}
