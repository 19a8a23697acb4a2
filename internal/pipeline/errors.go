package pipeline

import (
	"errors"
	"fmt"
)

var (
	ErrNotRetryable = errors.New("job has no failed network stage to retry")
	ErrJobNotIdle   = errors.New("job already has a run in progress or finished")
	ErrNoSource     = errors.New("job has no source media")
)

// PipelineError wraps a failed extraction or transcription call; the job
// keeps its captured media so the user can retry the last stage.
type PipelineError struct {
	Stage Stage
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline stage %s failed: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// IsPipeline checks if error represents a retryable pipeline failure
func IsPipeline(err error) bool {
	var pe *PipelineError
	return errors.As(err, &pe)
}
