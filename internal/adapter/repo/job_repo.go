package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"mediaforge/internal/domain"
	"mediaforge/internal/infra"
)

// JobStorePG implements domain.JobStore on PostgreSQL. Status transitions are
// single guarded UPDATE statements; a transition attempted on a job that
// already left the allowed source states matches zero rows and is reported as
// domain.ErrTerminalState.
type JobStorePG struct {
	db infra.Querier
}

// NewJobStore creates a job store backed by PostgreSQL.
func NewJobStore(db infra.Querier) *JobStorePG {
	return &JobStorePG{db: db}
}

const jobColumns = `id, owner_id, kind, provider, provider_ref, status, input_spec, result_json,
	error_kind, error_message, cost_reserved, cost_charged, reservation_open,
	attempt_count, transient_errors, created_at, last_polled_at, terminal_at,
	COALESCE(timeline_id::text, ''), position, COALESCE(predecessor_id::text, ''), input_artifact_ref`

// Create inserts a new job record in the created state.
func (r *JobStorePG) Create(ctx context.Context, job *domain.Job) error {
	query := `
INSERT INTO jobs (id, owner_id, kind, provider, status, input_spec, cost_reserved, reservation_open,
                  timeline_id, position, predecessor_id, input_artifact_ref)
VALUES ($1, $2, $3, $4, $5, $6, $7, true, NULLIF($8, '')::uuid, $9, NULLIF($10, '')::uuid, $11);
`
	_, err := r.db.Exec(ctx, query,
		job.ID,
		job.OwnerID,
		job.Kind,
		job.Provider,
		domain.JobStatusCreated,
		job.InputSpec,
		job.CostReserved,
		job.TimelineID,
		job.Position,
		job.PredecessorID,
		job.InputArtifactRef,
	)
	return err
}

// GetByID fetches a job by its identifier.
func (r *JobStorePG) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	row := r.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1;`, id)
	return scanJob(row)
}

// ListByOwner returns the owner's jobs, newest first, optionally filtered by status.
func (r *JobStorePG) ListByOwner(ctx context.Context, ownerID string, status domain.JobStatus, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
SELECT ` + jobColumns + `
FROM jobs
WHERE owner_id = $1 AND ($2 = '' OR status = $2)
ORDER BY created_at DESC
LIMIT $3;
`
	rows, err := r.db.Query(ctx, query, ownerID, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

// ClaimRunnable leases runnable jobs: created jobs whose input is bound,
// plus submitted and polling jobs carried over from a previous process — a
// crash between the submit write and the first poll leaves the job in
// submitted with its provider ref persisted, and it must be picked up like
// any other resumable job. Leasing keeps two workers off the same job; an
// expired lease makes a crashed worker's job claimable again.
func (r *JobStorePG) ClaimRunnable(ctx context.Context, limit int, lease time.Duration) ([]domain.Job, error) {
	query := `
WITH runnable AS (
    SELECT id
    FROM jobs
    WHERE ((status = 'created' AND (timeline_id IS NULL OR input_artifact_ref <> ''))
        OR (status IN ('submitted', 'polling') AND provider_ref <> ''))
      AND (leased_until IS NULL OR leased_until < now())
    ORDER BY created_at ASC
    FOR UPDATE SKIP LOCKED
    LIMIT $1
)
UPDATE jobs j
SET leased_until = now() + $2
FROM runnable r
WHERE j.id = r.id
RETURNING ` + qualifyJobColumns("j") + `;
`
	rows, err := r.db.Query(ctx, query, limit, lease)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

// MarkSubmitted records the provider task reference. created -> submitted.
func (r *JobStorePG) MarkSubmitted(ctx context.Context, id, providerRef string) error {
	query := `
UPDATE jobs
SET status = 'submitted', provider_ref = $2
WHERE id = $1 AND status = 'created';
`
	return r.guarded(ctx, query, id, providerRef)
}

// MarkPolling moves a submitted job into active polling. Administrative.
func (r *JobStorePG) MarkPolling(ctx context.Context, id string) error {
	query := `
UPDATE jobs
SET status = 'polling'
WHERE id = $1 AND status = 'submitted';
`
	return r.guarded(ctx, query, id)
}

// TouchPoll persists attempt counters and renews the lease. Only polling
// jobs match, so a worker whose job was cancelled underneath it learns on
// the next touch.
func (r *JobStorePG) TouchPoll(ctx context.Context, id string, attempts, transients int, lease time.Duration) error {
	query := `
UPDATE jobs
SET attempt_count = $2, transient_errors = $3, last_polled_at = now(), leased_until = now() + $4
WHERE id = $1 AND status = 'polling';
`
	return r.guarded(ctx, query, id, attempts, transients, lease)
}

// MarkSucceeded writes the normalized result and finishes the job. The
// billing charge runs after this commit and is idempotent, so a crash in
// between is recovered by re-running the charge keyed on job id.
func (r *JobStorePG) MarkSucceeded(ctx context.Context, id string, result *domain.Result) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	query := `
UPDATE jobs
SET status = 'succeeded', result_json = $2, terminal_at = now(), leased_until = NULL
WHERE id = $1 AND status = 'polling';
`
	return r.guarded(ctx, query, id, resultJSON)
}

// MarkFailed finishes the job with a failure classification. A submission
// rejection fails a job straight out of created; provider-reported failures
// arrive from polling.
func (r *JobStorePG) MarkFailed(ctx context.Context, id string, kind domain.ErrorKind, message string) error {
	query := `
UPDATE jobs
SET status = 'failed', error_kind = $2, error_message = $3, terminal_at = now(), leased_until = NULL
WHERE id = $1 AND status IN ('created', 'submitted', 'polling');
`
	return r.guarded(ctx, query, id, string(kind), message)
}

// MarkTimedOut finishes a job that exhausted its attempt budget, persisting
// the final attempt count alongside.
func (r *JobStorePG) MarkTimedOut(ctx context.Context, id string, attempts int, message string) error {
	query := `
UPDATE jobs
SET status = 'timed_out', attempt_count = $2, error_kind = $3, error_message = $4,
    terminal_at = now(), leased_until = NULL
WHERE id = $1 AND status = 'polling';
`
	return r.guarded(ctx, query, id, attempts, string(domain.ErrorKindTimeout), message)
}

// Cancel terminates a job from any non-terminal state.
func (r *JobStorePG) Cancel(ctx context.Context, id string, message string) error {
	query := `
UPDATE jobs
SET status = 'cancelled', error_kind = $2, error_message = $3, terminal_at = now(), leased_until = NULL
WHERE id = $1 AND status IN ('created', 'submitted', 'polling');
`
	return r.guarded(ctx, query, id, string(domain.ErrorKindDependency), message)
}

// BindSuccessorInput copies the predecessor's extracted artifact into the
// next segment's input, only while that segment is still created and
// unbound. Binding is what makes the segment claimable.
func (r *JobStorePG) BindSuccessorInput(ctx context.Context, timelineID string, position int, artifactRef string) (string, error) {
	query := `
UPDATE jobs
SET input_artifact_ref = $3
WHERE timeline_id = $1 AND position = $2 AND status = 'created' AND input_artifact_ref = ''
RETURNING id;
`
	var id string
	if err := r.db.QueryRow(ctx, query, timelineID, position, artifactRef).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		return "", err
	}
	return id, nil
}

// CancelCreatedAfter cancels every later segment that has not yet left
// created and returns them so their reservations can be released. Segments
// already polling are left to finish; their provider cost is already spent.
func (r *JobStorePG) CancelCreatedAfter(ctx context.Context, timelineID string, position int, message string) ([]domain.Job, error) {
	query := `
UPDATE jobs
SET status = 'cancelled', error_kind = $3, error_message = $4, terminal_at = now(), leased_until = NULL
WHERE timeline_id = $1 AND position > $2 AND status = 'created'
RETURNING ` + jobColumns + `;
`
	rows, err := r.db.Query(ctx, query, timelineID, position, string(domain.ErrorKindDependency), message)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

// SegmentsByTimeline returns the timeline's segments in position order.
func (r *JobStorePG) SegmentsByTimeline(ctx context.Context, timelineID string) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE timeline_id = $1 ORDER BY position ASC;`
	rows, err := r.db.Query(ctx, query, timelineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

// SucceededUncharged lists jobs that finished successfully without a charge
// on record, for the startup billing reconciliation pass.
func (r *JobStorePG) SucceededUncharged(ctx context.Context) ([]string, error) {
	query := `SELECT id FROM jobs WHERE status = 'succeeded' AND cost_charged IS NULL;`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *JobStorePG) guarded(ctx context.Context, query string, args ...any) error {
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTerminalState
	}
	return nil
}

func qualifyJobColumns(alias string) string {
	return fmt.Sprintf(`%[1]s.id, %[1]s.owner_id, %[1]s.kind, %[1]s.provider, %[1]s.provider_ref, %[1]s.status,
	%[1]s.input_spec, %[1]s.result_json, %[1]s.error_kind, %[1]s.error_message, %[1]s.cost_reserved,
	%[1]s.cost_charged, %[1]s.reservation_open, %[1]s.attempt_count, %[1]s.transient_errors,
	%[1]s.created_at, %[1]s.last_polled_at, %[1]s.terminal_at, COALESCE(%[1]s.timeline_id::text, ''),
	%[1]s.position, COALESCE(%[1]s.predecessor_id::text, ''), %[1]s.input_artifact_ref`, alias)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var (
		job        domain.Job
		resultJSON []byte
		errorKind  string
		errorMsg   string
	)
	if err := row.Scan(
		&job.ID,
		&job.OwnerID,
		&job.Kind,
		&job.Provider,
		&job.ProviderRef,
		&job.Status,
		&job.InputSpec,
		&resultJSON,
		&errorKind,
		&errorMsg,
		&job.CostReserved,
		&job.CostCharged,
		&job.ReservationOpen,
		&job.AttemptCount,
		&job.TransientErrors,
		&job.CreatedAt,
		&job.LastPolledAt,
		&job.TerminalAt,
		&job.TimelineID,
		&job.Position,
		&job.PredecessorID,
		&job.InputArtifactRef,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if len(resultJSON) > 0 {
		var result domain.Result
		if err := json.Unmarshal(resultJSON, &result); err != nil {
			return nil, fmt.Errorf("decode result for job %s: %w", job.ID, err)
		}
		job.Result = &result
	}
	if errorKind != "" || errorMsg != "" {
		job.Error = &domain.JobError{Kind: domain.ErrorKind(errorKind), Message: errorMsg}
	}
	return &job, nil
}

func scanJobs(rows pgx.Rows) ([]domain.Job, error) {
	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

var _ domain.JobStore = (*JobStorePG)(nil)
