// Package provider translates internal job specifications into calls against
// external generation services and collapses each service's own status
// vocabulary and result envelope into one normalized shape. It is the only
// package aware of provider-specific request and response formats.
package provider

import (
	"context"
	"errors"
	"fmt"

	"mediaforge/internal/domain"
)

// State is the normalized three-way status every provider response maps into.
type State string

const (
	StatePending   State = "pending"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Status is the normalized poll envelope. Result is set only on
// StateSucceeded; Reason only on StateFailed.
type Status struct {
	State  State
	Result *domain.Result
	Reason string
}

// Adapter dispatches a job to one upstream provider and reports its progress.
// Submit returns an opaque task reference used for all subsequent polls.
// Poll never reports network-level trouble as StateFailed; those surface as
// *TransientError and are retried by the scheduler.
type Adapter interface {
	Name() string
	Submit(ctx context.Context, spec []byte) (string, error)
	Poll(ctx context.Context, ref string) (Status, error)
}

// SubmissionError means the provider rejected the request outright: no task
// exists, there is nothing to poll, and the job is terminally failed.
type SubmissionError struct {
	Provider string
	Reason   string
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("%s: submission rejected: %s", e.Provider, e.Reason)
}

// TransientError wraps a network or upstream 5xx failure during polling. The
// task may still be running; the caller retries up to its transient ceiling.
type TransientError struct {
	Provider string
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient poll failure: %v", e.Provider, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is retryable at the polling layer.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsSubmission reports whether err is a terminal submission rejection.
func IsSubmission(err error) bool {
	var se *SubmissionError
	return errors.As(err, &se)
}
