package stepsynth

import (
	"errors"
	"fmt"
)

var (
	// ErrBackendUnavailable reports that the live audio output could not be
	// created or resumed.
	ErrBackendUnavailable = errors.New("audio backend unavailable")
	// ErrDecodeFailure reports an unreadable sample file. No instrument is
	// created.
	ErrDecodeFailure = errors.New("sample decode failed")
	// ErrRenderFailure reports a failed offline render or export.
	ErrRenderFailure = errors.New("offline render failed")
)

// RenderError is the one error an offline render or export returns.
type RenderError struct {
	Stage string // "schedule", "render", "effects", "encode", "write"
	Cause error
}

func (e *RenderError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("offline render failed at %s", e.Stage)
	}
	return fmt.Sprintf("offline render failed at %s: %v", e.Stage, e.Cause)
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

func (e *RenderError) Is(target error) bool {
	return target == ErrRenderFailure
}

func renderError(stage string, cause error) *RenderError {
	return &RenderError{Stage: stage, Cause: cause}
}
