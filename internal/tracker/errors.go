package tracker

import "fmt"

// Step/state-machine misuse errors. These indicate a bug in the caller and are
// returned to it rather than being recorded on the job.

type StepNotFoundError struct {
	Name string
}

func (e *StepNotFoundError) Error() string {
	return fmt.Sprintf("step %q not found", e.Name)
}

type DuplicateStepError struct {
	Name string
}

func (e *DuplicateStepError) Error() string {
	return fmt.Sprintf("step %q already exists", e.Name)
}

// InvalidTransitionError reports a step or job transition that the state
// machine forbids, e.g. starting a step that is not pending.
type InvalidTransitionError struct {
	Subject string
	From    string
	To      string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition for %s: %s -> %s", e.Subject, e.From, e.To)
}

// ConcurrentStepError reports an attempt to start a step while another step
// of the same job is still running. Stages execute strictly sequentially.
type ConcurrentStepError struct {
	Starting string
	Running  string
}

func (e *ConcurrentStepError) Error() string {
	return fmt.Sprintf("cannot start step %q: step %q is still running", e.Starting, e.Running)
}
