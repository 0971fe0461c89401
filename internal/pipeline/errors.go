package pipeline

import (
	"errors"
	"fmt"
)

// ErrCancelled aborts the stage loop when a cancel request is observed
// between stages. Not a failure; the worker finalises the cancel.
var ErrCancelled = errors.New("job cancelled")

// InputError rejects a job's file set before any stage output exists.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return "invalid input: " + e.Reason
}

// UnsupportedInputError flags a file whose extension is neither a supported
// video nor image container.
type UnsupportedInputError struct {
	File string
	Ext  string
}

func (e *UnsupportedInputError) Error() string {
	return fmt.Sprintf("unsupported input file %q (extension %q)", e.File, e.Ext)
}

// EmptyReconstructionError means the SfM mapper exited cleanly but produced
// no reconstruction directory, so there is no model to train on.
type EmptyReconstructionError struct {
	SparseDir string
}

func (e *EmptyReconstructionError) Error() string {
	return fmt.Sprintf("sparse reconstruction produced no model under %s", e.SparseDir)
}
