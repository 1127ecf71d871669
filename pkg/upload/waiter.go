package upload

import (
	"context"
	"fmt"
	"time"

	"github.com/lwalthert/intuneapp/internal/clock"
	"github.com/lwalthert/intuneapp/internal/data"
	"github.com/lwalthert/intuneapp/internal/logger"
)

// Defaults for Waiter.
const (
	DefaultPollInterval = 2 * time.Second
	DefaultWaitTimeout  = 10 * time.Minute
)

// Step is the outcome of observing a content file state.
type Step int

const (
	// StepPoll means the state is neither the desired one nor a failure.
	StepPoll Step = iota
	// StepDone means the desired state was reached.
	StepDone
	// StepFailed means the file is in a terminal failure state.
	StepFailed
)

// Next decides what to do after observing a state while waiting for desired.
func Next(observed, desired data.UploadState) Step {
	switch {
	case observed == desired:
		return StepDone
	case observed.IsFailure():
		return StepFailed
	default:
		return StepPoll
	}
}

// FileGetter fetches the current state of a content file.
type FileGetter interface {
	GetContentFile(ctx context.Context, ref data.ContentFileRef) (*data.ContentFile, error)
}

// Waiter polls a content file until it reaches a desired state.
type Waiter struct {
	files    FileGetter
	clock    clock.Clock
	interval time.Duration
	timeout  time.Duration
}

// WaiterOption configures a Waiter.
type WaiterOption func(*Waiter)

// WithPollInterval sets the delay between polls.
func WithPollInterval(d time.Duration) WaiterOption {
	return func(w *Waiter) { w.interval = d }
}

// WithWaitTimeout sets how long WaitFor polls before giving up.
func WithWaitTimeout(d time.Duration) WaiterOption {
	return func(w *Waiter) { w.timeout = d }
}

// WithWaiterClock sets the time source.
func WithWaiterClock(c clock.Clock) WaiterOption {
	return func(w *Waiter) { w.clock = c }
}

// NewWaiter creates a Waiter polling files.
func NewWaiter(files FileGetter, opts ...WaiterOption) *Waiter {
	w := &Waiter{
		files:    files,
		clock:    clock.Real(),
		interval: DefaultPollInterval,
		timeout:  DefaultWaitTimeout,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// WaitFor polls ref until its upload state equals desired and returns the file as
// last observed.
func (w *Waiter) WaitFor(ctx context.Context, ref data.ContentFileRef, desired data.UploadState) (*data.ContentFile, error) {
	logger.Infof(ctx, "Waiting for content file to have a state of %s", desired)

	start := w.clock.Now()

	for {
		file, err := w.files.GetContentFile(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("get content file %s: %w", ref, err)
		}

		switch Next(file.UploadState, desired) {
		case StepDone:
			logger.Infof(ctx, "Waited %s for content file to have a state of %s", clock.Since(w.clock, start), desired)
			return file, nil
		case StepFailed:
			return nil, &StateError{Observed: file.UploadState, Desired: desired}
		case StepPoll:
		}

		if elapsed := clock.Since(w.clock, start); elapsed > w.timeout {
			return nil, &TimeoutError{Desired: desired, Last: file.UploadState, Elapsed: elapsed}
		}

		if err := clock.Sleep(ctx, w.clock, w.interval); err != nil {
			return nil, err
		}
	}
}
