package pipeline

import (
	"fmt"
	"time"
)

// DecodeError indicates the submitted bytes are not a recognizable image.
// It is a client-input error, not an engine failure.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("image decode failed: %v", e.Err) }

func (e *DecodeError) Unwrap() error { return e.Err }

// EngineError indicates the detection or recognition capability failed or is
// unavailable. It is never retried inside the pipeline.
type EngineError struct {
	Stage string // "detection" or "recognition"
	Err   error
}

func (e *EngineError) Error() string { return fmt.Sprintf("%s engine failed: %v", e.Stage, e.Err) }

func (e *EngineError) Unwrap() error { return e.Err }

// TimeoutError indicates the pipeline exceeded its wall-clock budget. It is
// surfaced distinctly from EngineError so callers can apply a different
// retry policy.
type TimeoutError struct {
	Budget  time.Duration
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("recognition timed out after %s (budget %s)", e.Elapsed.Round(time.Millisecond), e.Budget)
}
