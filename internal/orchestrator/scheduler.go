// Package orchestrator drives generation jobs from creation to a terminal
// state: it claims runnable jobs, submits them to their provider, polls
// until the provider reports an outcome, settles billing and hands timeline
// segments to the dependency resolver. One lightweight worker runs per
// in-flight job under a bounded concurrency ceiling.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"mediaforge/internal/domain"
	"mediaforge/internal/infra"
	"mediaforge/internal/provider"
)

// AdapterSource resolves the provider adapter serving a job kind.
type AdapterSource interface {
	ForKind(kind domain.JobKind) (provider.Adapter, error)
}

// DependencyResolver reacts to terminal transitions of timeline segments.
type DependencyResolver interface {
	OnSegmentSucceeded(ctx context.Context, job *domain.Job, result *domain.Result) error
	OnSegmentFailed(ctx context.Context, job *domain.Job) error
}

// Config bounds the scheduler.
type Config struct {
	MaxInFlight   int64
	ClaimInterval time.Duration
	ClaimBatch    int
	Lease         time.Duration
	Policies      map[domain.JobKind]infra.PollPolicy
}

// Scheduler owns the claim loop and the per-job workers.
type Scheduler struct {
	cfg      Config
	jobs     domain.JobStore
	ledger   domain.Ledger
	adapters AdapterSource
	resolver DependencyResolver
	logger   zerolog.Logger
	sem      *semaphore.Weighted
}

// New assembles a scheduler. Policies missing a kind fall back to a
// conservative default rather than panicking on an unconfigured kind.
func New(cfg Config, jobs domain.JobStore, ledger domain.Ledger, adapters AdapterSource, resolver DependencyResolver, logger zerolog.Logger) *Scheduler {
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 16
	}
	if cfg.ClaimBatch <= 0 {
		cfg.ClaimBatch = 8
	}
	if cfg.ClaimInterval <= 0 {
		cfg.ClaimInterval = 2 * time.Second
	}
	if cfg.Lease <= 0 {
		cfg.Lease = time.Minute
	}
	return &Scheduler{
		cfg:      cfg,
		jobs:     jobs,
		ledger:   ledger,
		adapters: adapters,
		resolver: resolver,
		logger:   logger,
		sem:      semaphore.NewWeighted(cfg.MaxInFlight),
	}
}

// Run claims and processes jobs until ctx is cancelled, then waits for
// in-flight workers to retire. Jobs left mid-poll are resumable: their
// provider ref and attempt counters are persisted, and their lease expires.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info().
		Int64("max_in_flight", s.cfg.MaxInFlight).
		Int("claim_batch", s.cfg.ClaimBatch).
		Msg("orchestrator: started")

	s.reconcileCharges(ctx)

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("orchestrator: stopping, waiting for in-flight jobs")
			return ctx.Err()
		default:
		}

		claimed, err := s.jobs.ClaimRunnable(ctx, s.cfg.ClaimBatch, s.cfg.Lease)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error().Err(err).Msg("orchestrator: claim failed")
			s.wait(ctx, s.cfg.ClaimInterval)
			continue
		}
		if len(claimed) == 0 {
			s.wait(ctx, s.cfg.ClaimInterval)
			continue
		}

		for i := range claimed {
			job := claimed[i]
			if err := s.sem.Acquire(ctx, 1); err != nil {
				return ctx.Err()
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer s.sem.Release(1)
				s.runJob(ctx, &job)
			}()
		}
	}
}

// reconcileCharges re-runs billing for jobs that succeeded without a charge
// on record, recovering a crash between result write and settlement.
func (s *Scheduler) reconcileCharges(ctx context.Context) {
	ids, err := s.jobs.SucceededUncharged(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("orchestrator: charge reconciliation scan failed")
		return
	}
	for _, id := range ids {
		if err := s.ledger.Charge(ctx, id); err != nil {
			s.logger.Error().Err(err).Str("job_id", id).Msg("orchestrator: reconciled charge failed")
			continue
		}
		s.logger.Warn().Str("job_id", id).Msg("orchestrator: recovered missing charge")
	}
}

// policyFor returns the kind's polling bounds.
func (s *Scheduler) policyFor(kind domain.JobKind) infra.PollPolicy {
	if policy, ok := s.cfg.Policies[kind]; ok {
		return policy
	}
	return infra.PollPolicy{Interval: 5 * time.Second, MaxAttempts: 60, MaxTransient: 5}
}

// wait sleeps d or until ctx is cancelled. Returns false on cancellation.
func (s *Scheduler) wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
