// Package billing settles generation-job reservations against token
// balances. A reservation is placed before a job exists, charged exactly
// once on confirmed success, and released untouched on every other terminal
// outcome. Charging is never tied to submission.
package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"mediaforge/internal/domain"
	"mediaforge/internal/infra"
)

// Reconciler implements domain.Ledger on PostgreSQL. Every balance mutation
// is a single guarded statement, so two jobs charging the same owner
// concurrently cannot lose an update.
type Reconciler struct {
	db              infra.Querier
	logger          zerolog.Logger
	startingBalance int64
}

// NewReconciler creates the billing ledger. startingBalance seeds accounts
// on first touch.
func NewReconciler(db infra.Querier, logger zerolog.Logger, startingBalance int64) *Reconciler {
	return &Reconciler{db: db, logger: logger, startingBalance: startingBalance}
}

// Account returns the owner's balance, creating the account with the
// configured starting grant on first sight.
func (r *Reconciler) Account(ctx context.Context, ownerID string) (*domain.Account, error) {
	if err := r.ensure(ctx, ownerID); err != nil {
		return nil, err
	}
	row := r.db.QueryRow(ctx, `
SELECT id, balance, reserved, created_at, updated_at
FROM accounts
WHERE id = $1;
`, ownerID)
	var account domain.Account
	if err := row.Scan(&account.ID, &account.Balance, &account.Reserved, &account.CreatedAt, &account.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &account, nil
}

// Reserve places a hold on the owner's available balance before the job row
// exists. The guard compares against balance minus existing holds in the
// same statement, so concurrent reservations cannot overcommit.
func (r *Reconciler) Reserve(ctx context.Context, ownerID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("reserve amount must be positive, got %d", amount)
	}
	if err := r.ensure(ctx, ownerID); err != nil {
		return 0, err
	}
	row := r.db.QueryRow(ctx, `
UPDATE accounts
SET reserved = reserved + $2, updated_at = now()
WHERE id = $1 AND balance - reserved >= $2
RETURNING balance - reserved;
`, ownerID, amount)
	var available int64
	if err := row.Scan(&available); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrInsufficientBalance
		}
		return 0, err
	}
	return available, nil
}

// Unreserve compensates a reservation whose job row was never created.
func (r *Reconciler) Unreserve(ctx context.Context, ownerID string, amount int64) error {
	_, err := r.db.Exec(ctx, `
UPDATE accounts
SET reserved = GREATEST(reserved - $2, 0), updated_at = now()
WHERE id = $1;
`, ownerID, amount)
	return err
}

// Charge settles the job's reservation against the owner's balance. The CTE
// claims the job row first: cost_charged must still be null and the
// reservation still open, so a second call (retry, duplicate completion,
// crash recovery) matches nothing and decrements nothing.
func (r *Reconciler) Charge(ctx context.Context, jobID string) error {
	row := r.db.QueryRow(ctx, `
WITH claimed AS (
    UPDATE jobs
    SET cost_charged = cost_reserved, reservation_open = false
    WHERE id = $1 AND status = 'succeeded' AND cost_charged IS NULL AND reservation_open
    RETURNING id, owner_id, kind, provider, cost_reserved
)
UPDATE accounts a
SET balance = a.balance - c.cost_reserved,
    reserved = a.reserved - c.cost_reserved,
    updated_at = now()
FROM claimed c
WHERE a.id = c.owner_id
RETURNING c.owner_id, c.kind, c.provider, c.cost_reserved;
`, jobID)

	var (
		ownerID  string
		kind     string
		provider string
		amount   int64
	)
	if err := row.Scan(&ownerID, &kind, &provider, &amount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Already charged, released, or not yet succeeded.
			r.logger.Debug().Str("job_id", jobID).Msg("billing: charge matched nothing, skipping")
			return nil
		}
		return err
	}

	r.appendEvent(ctx, ownerID, jobID, kind, provider, amount, domain.BillingEventCharged)
	r.logger.Info().Str("job_id", jobID).Str("owner_id", ownerID).Int64("amount", amount).Msg("billing: charged")
	return nil
}

// Release returns the job's reservation without touching the balance, for
// failed, timed-out and cancelled jobs. Idempotent through the same
// reservation_open guard as Charge.
func (r *Reconciler) Release(ctx context.Context, jobID string) error {
	row := r.db.QueryRow(ctx, `
WITH settled AS (
    UPDATE jobs
    SET reservation_open = false
    WHERE id = $1 AND reservation_open AND cost_charged IS NULL
    RETURNING id, owner_id, kind, provider, cost_reserved
)
UPDATE accounts a
SET reserved = GREATEST(a.reserved - s.cost_reserved, 0),
    updated_at = now()
FROM settled s
WHERE a.id = s.owner_id
RETURNING s.owner_id, s.kind, s.provider, s.cost_reserved;
`, jobID)

	var (
		ownerID  string
		kind     string
		provider string
		amount   int64
	)
	if err := row.Scan(&ownerID, &kind, &provider, &amount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("job_id", jobID).Msg("billing: release matched nothing, skipping")
			return nil
		}
		return err
	}

	r.appendEvent(ctx, ownerID, jobID, kind, provider, amount, domain.BillingEventReleased)
	r.logger.Info().Str("job_id", jobID).Str("owner_id", ownerID).Int64("amount", amount).Msg("billing: reservation released")
	return nil
}

// Events returns the owner's audit trail, newest first.
func (r *Reconciler) Events(ctx context.Context, ownerID string, limit int) ([]domain.BillingEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
SELECT id, owner_id, job_id, kind, provider, amount, event_type, created_at
FROM billing_events
WHERE owner_id = $1
ORDER BY created_at DESC
LIMIT $2;
`, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.BillingEvent
	for rows.Next() {
		var event domain.BillingEvent
		if err := rows.Scan(
			&event.ID,
			&event.OwnerID,
			&event.JobID,
			&event.Kind,
			&event.Provider,
			&event.Amount,
			&event.EventType,
			&event.CreatedAt,
		); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (r *Reconciler) ensure(ctx context.Context, ownerID string) error {
	_, err := r.db.Exec(ctx, `
INSERT INTO accounts (id, balance)
VALUES ($1, $2)
ON CONFLICT (id) DO NOTHING;
`, ownerID, r.startingBalance)
	return err
}

// The audit append rides behind the settled mutation; losing one entry is
// tolerable, losing a balance update is not.
func (r *Reconciler) appendEvent(ctx context.Context, ownerID, jobID, kind, provider string, amount int64, eventType string) {
	if _, err := r.db.Exec(ctx, `
INSERT INTO billing_events (owner_id, job_id, kind, provider, amount, event_type)
VALUES ($1, $2, $3, $4, $5, $6);
`, ownerID, jobID, kind, provider, amount, eventType); err != nil {
		r.logger.Error().Err(err).Str("job_id", jobID).Msg("billing: audit append failed")
	}
}

var _ domain.Ledger = (*Reconciler)(nil)
