package infra

import (
	"context"
	"fmt"
)

// Schema statements, applied in order at startup. Every statement is
// idempotent so both binaries can run Migrate unconditionally.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id          text PRIMARY KEY,
		balance     bigint NOT NULL DEFAULT 0,
		reserved    bigint NOT NULL DEFAULT 0,
		created_at  timestamptz NOT NULL DEFAULT now(),
		updated_at  timestamptz NOT NULL DEFAULT now(),
		CONSTRAINT accounts_reserved_within_balance CHECK (reserved >= 0 AND reserved <= balance)
	)`,
	`CREATE TABLE IF NOT EXISTS timelines (
		id             uuid PRIMARY KEY,
		owner_id       text NOT NULL,
		title          text NOT NULL DEFAULT '',
		segment_count  int NOT NULL,
		total_duration int NOT NULL DEFAULT 0,
		created_at     timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS jobs (
		id                 uuid PRIMARY KEY,
		owner_id           text NOT NULL,
		kind               text NOT NULL,
		provider           text NOT NULL DEFAULT '',
		provider_ref       text NOT NULL DEFAULT '',
		status             text NOT NULL DEFAULT 'created',
		input_spec         jsonb NOT NULL DEFAULT '{}'::jsonb,
		result_json        jsonb,
		error_kind         text NOT NULL DEFAULT '',
		error_message      text NOT NULL DEFAULT '',
		cost_reserved      bigint NOT NULL DEFAULT 0,
		cost_charged       bigint,
		reservation_open   boolean NOT NULL DEFAULT true,
		attempt_count      int NOT NULL DEFAULT 0,
		transient_errors   int NOT NULL DEFAULT 0,
		created_at         timestamptz NOT NULL DEFAULT now(),
		last_polled_at     timestamptz,
		terminal_at        timestamptz,
		leased_until       timestamptz,
		timeline_id        uuid REFERENCES timelines(id),
		position           int NOT NULL DEFAULT 0,
		predecessor_id     uuid,
		input_artifact_ref text NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS jobs_runnable_idx ON jobs (status, created_at)
		WHERE status IN ('created', 'submitted', 'polling')`,
	`CREATE INDEX IF NOT EXISTS jobs_owner_idx ON jobs (owner_id, created_at DESC)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS jobs_timeline_position_idx ON jobs (timeline_id, position)
		WHERE timeline_id IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS billing_events (
		id         uuid PRIMARY KEY DEFAULT gen_random_uuid(),
		owner_id   text NOT NULL,
		job_id     uuid NOT NULL,
		kind       text NOT NULL,
		provider   text NOT NULL DEFAULT '',
		amount     bigint NOT NULL,
		event_type text NOT NULL,
		created_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS billing_events_owner_idx ON billing_events (owner_id, created_at DESC)`,
}

// Migrate applies the schema to the connected database.
func Migrate(ctx context.Context, q Querier) error {
	for i, stmt := range migrations {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration %d: %w", i, err)
		}
	}
	return nil
}
