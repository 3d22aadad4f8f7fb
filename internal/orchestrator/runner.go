package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"mediaforge/internal/domain"
	"mediaforge/internal/provider"
)

// runJob owns one job from claim to terminal state. Claimed jobs arrive as
// created (fresh submission) or, after a restart, as submitted or polling
// with the provider ref and counters already persisted.
func (s *Scheduler) runJob(ctx context.Context, job *domain.Job) {
	log := s.logger.With().
		Str("job_id", job.ID).
		Str("kind", string(job.Kind)).
		Str("owner_id", job.OwnerID).
		Logger()

	adapter, err := s.adapters.ForKind(job.Kind)
	if err != nil {
		s.failJob(ctx, job, domain.ErrorKindSubmission, err.Error(), log)
		return
	}

	ref := job.ProviderRef
	attempts := job.AttemptCount
	transients := job.TransientErrors
	policy := s.policyFor(job.Kind)

	if job.Status == domain.JobStatusCreated {
		spec := job.InputSpec
		if job.IsSegment() && job.InputArtifactRef != "" {
			spec, err = provider.WithFirstFrame(spec, job.InputArtifactRef)
			if err != nil {
				s.failJob(ctx, job, domain.ErrorKindSubmission, err.Error(), log)
				return
			}
		}

		ref, err = adapter.Submit(ctx, spec)
		if err != nil {
			// No provider task exists, nothing to poll: terminal.
			s.failJob(ctx, job, domain.ErrorKindSubmission, err.Error(), log)
			return
		}
		if err := s.jobs.MarkSubmitted(ctx, job.ID, ref); err != nil {
			s.logGuarded(err, log, "submitted")
			return
		}
		if err := s.jobs.MarkPolling(ctx, job.ID); err != nil {
			s.logGuarded(err, log, "polling")
			return
		}
		log.Info().Str("provider_ref", ref).Msg("orchestrator: job submitted")
	} else {
		// Resumed after a restart. A job claimed in submitted crashed between
		// the submit write and the first poll; move it to polling so the
		// touch guard below accepts it.
		if job.Status == domain.JobStatusSubmitted {
			if err := s.jobs.MarkPolling(ctx, job.ID); err != nil {
				s.logGuarded(err, log, "polling")
				return
			}
		}
		log.Info().Str("provider_ref", ref).Int("attempt_count", attempts).Msg("orchestrator: resuming job")
	}

	for {
		if !s.wait(ctx, policy.Interval) {
			// Shutdown; the lease expires and another claim resumes the job.
			return
		}

		if err := s.jobs.TouchPoll(ctx, job.ID, attempts, transients, s.cfg.Lease); err != nil {
			if errors.Is(err, domain.ErrTerminalState) {
				// Cancelled externally (or a duplicate worker finished it):
				// retire without another provider call.
				log.Info().Msg("orchestrator: job left polling externally, retiring worker")
				return
			}
			log.Error().Err(err).Msg("orchestrator: poll touch failed")
			continue
		}

		status, err := adapter.Poll(ctx, ref)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// Transient by contract: the adapter never maps network trouble
			// to a failed status. Capped separately from the attempt budget.
			transients++
			if transients >= policy.MaxTransient {
				s.timeoutJob(ctx, job, attempts,
					fmt.Sprintf("provider unreachable after %d transient errors", transients), log)
				return
			}
			log.Warn().Err(err).Int("transient_errors", transients).Msg("orchestrator: transient poll failure")
			continue
		}

		switch status.State {
		case provider.StatePending:
			attempts++
			if attempts >= policy.MaxAttempts {
				s.timeoutJob(ctx, job, attempts, "attempt budget exhausted", log)
				return
			}
		case provider.StateSucceeded:
			s.succeedJob(ctx, job, status.Result, log)
			return
		case provider.StateFailed:
			s.failJob(ctx, job, domain.ErrorKindProvider, status.Reason, log)
			return
		}
	}
}

// succeedJob writes the result, settles billing and unblocks a successor
// segment. The charge is idempotent on job id, so a crash after the result
// write is recovered by the startup reconciliation pass.
func (s *Scheduler) succeedJob(ctx context.Context, job *domain.Job, result *domain.Result, log zerolog.Logger) {
	if err := s.jobs.MarkSucceeded(ctx, job.ID, result); err != nil {
		s.logGuarded(err, log, "succeeded")
		return
	}
	if err := s.ledger.Charge(ctx, job.ID); err != nil {
		log.Error().Err(err).Msg("orchestrator: charge failed, reconciliation will retry")
	}
	if err := s.resolver.OnSegmentSucceeded(ctx, job, result); err != nil {
		log.Error().Err(err).Msg("orchestrator: successor binding failed")
	}
	log.Info().Int("artifacts", len(result.Artifacts)).Msg("orchestrator: job succeeded")
}

func (s *Scheduler) failJob(ctx context.Context, job *domain.Job, kind domain.ErrorKind, message string, log zerolog.Logger) {
	if err := s.jobs.MarkFailed(ctx, job.ID, kind, message); err != nil {
		s.logGuarded(err, log, "failed")
		return
	}
	if err := s.ledger.Release(ctx, job.ID); err != nil {
		log.Error().Err(err).Msg("orchestrator: reservation release failed")
	}
	if err := s.resolver.OnSegmentFailed(ctx, job); err != nil {
		log.Error().Err(err).Msg("orchestrator: dependency propagation failed")
	}
	log.Info().Str("error_kind", string(kind)).Str("reason", message).Msg("orchestrator: job failed")
}

func (s *Scheduler) timeoutJob(ctx context.Context, job *domain.Job, attempts int, message string, log zerolog.Logger) {
	if err := s.jobs.MarkTimedOut(ctx, job.ID, attempts, message); err != nil {
		s.logGuarded(err, log, "timed_out")
		return
	}
	if err := s.ledger.Release(ctx, job.ID); err != nil {
		log.Error().Err(err).Msg("orchestrator: reservation release failed")
	}
	if err := s.resolver.OnSegmentFailed(ctx, job); err != nil {
		log.Error().Err(err).Msg("orchestrator: dependency propagation failed")
	}
	log.Info().Int("attempt_count", attempts).Msg("orchestrator: job timed out")
}

// A guarded transition that matched nothing means the job is already
// terminal; redundant completions are logged and swallowed, never raised.
func (s *Scheduler) logGuarded(err error, log zerolog.Logger, target string) {
	if errors.Is(err, domain.ErrTerminalState) {
		log.Info().Str("target_status", target).Msg("orchestrator: transition on terminal job ignored")
		return
	}
	log.Error().Err(err).Str("target_status", target).Msg("orchestrator: transition failed")
}
