package upload

import (
	"fmt"
	"time"

	"github.com/lwalthert/intuneapp/internal/data"
)

// BlockError is returned when a block could not be staged.
type BlockError struct {
	BlockID  string
	Attempts int
	Status   int // HTTP status of the last attempt, 0 for transport errors
	Err      error
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("stage block %s failed after %d attempt(s): %v", e.BlockID, e.Attempts, e.Err)
}

func (e *BlockError) Unwrap() error { return e.Err }

// StateError is returned when a content file enters a failure state.
type StateError struct {
	Observed data.UploadState
	Desired  data.UploadState
}

func (e *StateError) Error() string {
	return fmt.Sprintf("upload state is in a failed state of %s, was waiting for %s", e.Observed, e.Desired)
}

// TimeoutError is returned when a content file does not reach the desired state in time.
type TimeoutError struct {
	Desired data.UploadState
	Last    data.UploadState
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for upload state %s, current state is %s", e.Elapsed, e.Desired, e.Last)
}
