package tracker

import (
	"sync"
	"time"

	"reconstruction-service/internal/entity"
)

// Tracker wraps a job and serialises every state mutation behind one lock.
// The processing worker is the only writer; status pollers read through
// Snapshot and never observe a partially-updated step.
type Tracker struct {
	mu  sync.RWMutex
	job *entity.Job

	cancelRequested bool
	queued          bool
}

func New(job *entity.Job) *Tracker {
	return &Tracker{job: job}
}

func (t *Tracker) ID() string {
	return t.job.ID.String()
}

// Snapshot returns a point-in-time deep copy of the job.
func (t *Tracker) Snapshot() *entity.Job {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.job.Clone()
}

// AddStep appends a pending step. Step names are unique within a job.
func (t *Tracker) AddStep(name, message string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.job.Steps {
		if t.job.Steps[i].Name == name {
			return &DuplicateStepError{Name: name}
		}
	}
	t.job.Steps = append(t.job.Steps, entity.Step{
		Name:    name,
		Status:  entity.StepPending,
		Message: message,
	})
	return nil
}

// StartStep transitions a pending step to running. At most one step may be
// running at a time.
func (t *Tracker) StartStep(name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	step := t.find(name)
	if step == nil {
		return &StepNotFoundError{Name: name}
	}
	for i := range t.job.Steps {
		if t.job.Steps[i].Status == entity.StepRunning {
			return &ConcurrentStepError{Starting: name, Running: t.job.Steps[i].Name}
		}
	}
	if step.Status != entity.StepPending {
		return &InvalidTransitionError{
			Subject: "step " + name,
			From:    string(step.Status),
			To:      string(entity.StepRunning),
		}
	}
	now := time.Now()
	step.Status = entity.StepRunning
	step.StartedAt = &now
	return nil
}

// UpdateProgress clamps value to [0,100] and records it on a running step.
// Calls against completed or failed steps are ignored.
func (t *Tracker) UpdateProgress(name string, value int, message string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	step := t.find(name)
	if step == nil {
		return &StepNotFoundError{Name: name}
	}
	if step.Status == entity.StepCompleted || step.Status == entity.StepFailed {
		return nil
	}
	if step.Status != entity.StepRunning {
		return &InvalidTransitionError{
			Subject: "step " + name,
			From:    string(step.Status),
			To:      "progress update",
		}
	}
	step.Progress = clamp(value)
	if message != "" {
		step.Message = message
	}
	t.job.Progress = t.overallLocked()
	return nil
}

// CompleteStep transitions a running step to completed with progress 100.
func (t *Tracker) CompleteStep(name, message string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	step := t.find(name)
	if step == nil {
		return &StepNotFoundError{Name: name}
	}
	if step.Status != entity.StepRunning {
		return &InvalidTransitionError{
			Subject: "step " + name,
			From:    string(step.Status),
			To:      string(entity.StepCompleted),
		}
	}
	now := time.Now()
	step.Status = entity.StepCompleted
	step.Progress = 100
	step.CompletedAt = &now
	if message != "" {
		step.Message = message
	}
	t.job.Progress = t.overallLocked()
	return nil
}

// FailStep transitions a running step to failed. Terminal for the step; the
// orchestrator decides whether the job fails with it.
func (t *Tracker) FailStep(name, errText string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	step := t.find(name)
	if step == nil {
		return &StepNotFoundError{Name: name}
	}
	if step.Status != entity.StepRunning {
		return &InvalidTransitionError{
			Subject: "step " + name,
			From:    string(step.Status),
			To:      string(entity.StepFailed),
		}
	}
	now := time.Now()
	step.Status = entity.StepFailed
	step.CompletedAt = &now
	step.Error = &errText
	return nil
}

// OverallProgress is the floor-truncated mean of all step progress values,
// 0 when no steps exist.
func (t *Tracker) OverallProgress() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.overallLocked()
}

func (t *Tracker) overallLocked() int {
	if len(t.job.Steps) == 0 {
		return 0
	}
	total := 0
	for i := range t.job.Steps {
		total += t.job.Steps[i].Progress
	}
	p := total / len(t.job.Steps)
	if p > 100 {
		p = 100
	}
	return p
}

func (t *Tracker) find(name string) *entity.Step {
	for i := range t.job.Steps {
		if t.job.Steps[i].Name == name {
			return &t.job.Steps[i]
		}
	}
	return nil
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
