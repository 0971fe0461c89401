package toolrunner

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os/exec"
	"strings"
	"time"
)

const logTruncate = 400

// Invocation describes one external process run attributed to a job.
type Invocation struct {
	JobID   string
	Tool    string
	Args    []string
	Timeout time.Duration
}

// Result is the outcome of a finished process. A nonzero exit code is a
// normal result, not an error.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Runner executes external tools with a timeout and captured output.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (Result, error)
}

// Recorder persists invocation records for later per-job retrieval.
type Recorder interface {
	Record(ctx context.Context, inv Invocation, res Result, runErr error) error
}

type execRunner struct {
	recorder Recorder
}

// New returns a Runner backed by os/exec. recorder may be nil.
func New(recorder Recorder) Runner {
	return &execRunner{recorder: recorder}
}

func (r *execRunner) Run(ctx context.Context, inv Invocation) (Result, error) {
	if _, err := exec.LookPath(inv.Tool); err != nil {
		notFound := &ToolNotFoundError{Tool: inv.Tool}
		r.record(ctx, inv, Result{ExitCode: -1}, notFound)
		return Result{}, notFound
	}

	runCtx := ctx
	cancel := func() {}
	if inv.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, inv.Timeout)
	}
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, inv.Tool, inv.Args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		timeout := &ToolTimeoutError{Tool: inv.Tool, Timeout: inv.Timeout.String()}
		r.record(ctx, inv, res, timeout)
		r.logLine(inv, res, timeout)
		return Result{}, timeout
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			r.record(ctx, inv, res, err)
			return Result{}, err
		}
	}

	r.record(ctx, inv, res, nil)
	r.logLine(inv, res, nil)
	return res, nil
}

func (r *execRunner) record(ctx context.Context, inv Invocation, res Result, runErr error) {
	if r.recorder == nil {
		return
	}
	if err := r.recorder.Record(ctx, inv, res, runErr); err != nil {
		log.Printf("[runner] job_id=%s tool=%s record error=%v", inv.JobID, inv.Tool, err)
	}
}

func (r *execRunner) logLine(inv Invocation, res Result, runErr error) {
	log.Printf("[runner] job_id=%s tool=%s args=%q exit=%d duration_ms=%d err=%v stdout=%q stderr=%q",
		inv.JobID,
		inv.Tool,
		strings.Join(inv.Args, " "),
		res.ExitCode,
		res.Duration.Milliseconds(),
		runErr,
		truncate(res.Stdout),
		truncate(res.Stderr),
	)
}

func truncate(s string) string {
	if len(s) <= logTruncate {
		return s
	}
	return s[:logTruncate] + "..."
}

// CheckTool probes whether a tool responds to --help within 10 seconds.
// Used at startup to warn about missing native dependencies.
func CheckTool(ctx context.Context, r Runner, tool string) bool {
	res, err := r.Run(ctx, Invocation{
		Tool:    tool,
		Args:    []string{"--help"},
		Timeout: 10 * time.Second,
	})
	return err == nil && res.ExitCode == 0
}
