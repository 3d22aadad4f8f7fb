package domain

import (
	"context"
	"time"
)

// JobStore persists job records and their status transitions. Every Mark*
// method is a guarded single-row update: if the job is already in a terminal
// state the update matches no row and ErrTerminalState is returned, so
// redundant completion callbacks are safe to replay.
type JobStore interface {
	Create(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, id string) (*Job, error)
	ListByOwner(ctx context.Context, ownerID string, status JobStatus, limit int) ([]Job, error)

	// ClaimRunnable leases up to limit jobs that are ready to run: created
	// jobs whose input is bound, plus submitted and polling jobs with a
	// provider ref left over from a previous process (restart resume). A
	// leased job is not returned again until its lease expires.
	ClaimRunnable(ctx context.Context, limit int, lease time.Duration) ([]Job, error)

	MarkSubmitted(ctx context.Context, id, providerRef string) error
	MarkPolling(ctx context.Context, id string) error

	// TouchPoll persists attempt counters, stamps last_polled_at and renews
	// the lease. It only matches jobs still in polling, so a worker waking
	// after an external cancellation sees ErrTerminalState and retires.
	TouchPoll(ctx context.Context, id string, attempts, transients int, lease time.Duration) error

	MarkSucceeded(ctx context.Context, id string, result *Result) error
	MarkFailed(ctx context.Context, id string, kind ErrorKind, message string) error
	MarkTimedOut(ctx context.Context, id string, attempts int, message string) error
	Cancel(ctx context.Context, id string, message string) error

	// BindSuccessorInput copies an artifact ref into the input of the segment
	// at position within the timeline, only while that segment is still
	// created and unbound. It returns the bound segment's id, or ErrNotFound
	// when there is no such segment.
	BindSuccessorInput(ctx context.Context, timelineID string, position int, artifactRef string) (string, error)

	// CancelCreatedAfter cancels every segment of the timeline with a
	// position greater than the given one that has not yet left created, and
	// returns the cancelled jobs so their reservations can be released.
	CancelCreatedAfter(ctx context.Context, timelineID string, position int, message string) ([]Job, error)

	SegmentsByTimeline(ctx context.Context, timelineID string) ([]Job, error)

	// SucceededUncharged lists ids of jobs that reached succeeded but have no
	// charge recorded, used to re-run billing after a crash between the
	// result write and the charge.
	SucceededUncharged(ctx context.Context) ([]string, error)
}

// TimelineStore persists timelines together with their segment jobs.
type TimelineStore interface {
	Create(ctx context.Context, timeline *Timeline, segments []*Job) error
	GetByID(ctx context.Context, id string) (*Timeline, error)
}

// Ledger is the billing boundary: reservations at job creation, an
// exactly-once charge on confirmed success, and release on every other
// terminal outcome.
type Ledger interface {
	Account(ctx context.Context, ownerID string) (*Account, error)

	// Reserve places a hold on the owner's available balance. It returns the
	// available balance after the hold, or ErrInsufficientBalance without
	// side effects when available funds do not cover amount.
	Reserve(ctx context.Context, ownerID string, amount int64) (int64, error)

	// Unreserve returns a hold that never became a job row, compensating a
	// failed creation.
	Unreserve(ctx context.Context, ownerID string, amount int64) error

	// Charge settles the job's reservation against the balance. It is
	// idempotent keyed on job id: once cost_charged is set, further calls
	// are no-ops.
	Charge(ctx context.Context, jobID string) error

	// Release returns the job's reservation without touching the balance.
	// Idempotent; a no-op after a charge or earlier release.
	Release(ctx context.Context, jobID string) error

	Events(ctx context.Context, ownerID string, limit int) ([]BillingEvent, error)
}
