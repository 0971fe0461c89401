package entity

import "time"

type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// Step is one named phase of a job's pipeline. Steps are owned by their job
// and only ever mutated through the job's tracker.
type Step struct {
	Name        string     `json:"name"`
	Status      StepStatus `json:"status"`
	Progress    int        `json:"progress"`
	Message     string     `json:"message"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       *string    `json:"error,omitempty"`
}

func (s Step) clone() Step {
	c := s
	if s.StartedAt != nil {
		t := *s.StartedAt
		c.StartedAt = &t
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	if s.Error != nil {
		e := *s.Error
		c.Error = &e
	}
	return c
}
