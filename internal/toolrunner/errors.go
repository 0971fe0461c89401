package toolrunner

import "fmt"

// ToolNotFoundError means the executable could not be located at all; the
// orchestrator aborts the job with an actionable message.
type ToolNotFoundError struct {
	Tool string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool %q not found in PATH", e.Tool)
}

// ToolTimeoutError means the process exceeded its stage timeout and was
// forcibly terminated; distinguishable from an exit-code failure so operators
// can tell "tool hung" from "tool rejected inputs".
type ToolTimeoutError struct {
	Tool    string
	Timeout string
}

func (e *ToolTimeoutError) Error() string {
	return fmt.Sprintf("tool %q timed out after %s", e.Tool, e.Timeout)
}

// ToolExecutionError wraps a nonzero exit with captured stderr. The runner
// itself returns nonzero exits as ordinary results; callers that treat them
// as fatal build this error from the result.
type ToolExecutionError struct {
	Tool     string
	ExitCode int
	Stderr   string
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %q exited with code %d: %s", e.Tool, e.ExitCode, e.Stderr)
}
