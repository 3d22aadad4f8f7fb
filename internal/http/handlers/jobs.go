package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"mediaforge/internal/domain"
)

type createJobRequest struct {
	Kind      domain.JobKind  `json:"kind"`
	InputSpec json.RawMessage `json:"input_spec"`
}

type createJobResponse struct {
	JobID            string           `json:"job_id"`
	Status           domain.JobStatus `json:"status"`
	CostReserved     int64            `json:"cost_reserved"`
	BalanceAvailable int64            `json:"balance_available"`
}

// CreateJob reserves the kind's cost and enqueues a job. The reservation
// happens before the row exists, so a job is never created for an owner who
// cannot afford it; the charge happens only when the provider confirms
// success.
func (a *App) CreateJob(w http.ResponseWriter, r *http.Request) {
	ownerID := a.currentOwnerID(r)
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing owner context")
		return
	}

	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if !req.Kind.Valid() {
		a.error(w, http.StatusBadRequest, "bad_request", "unsupported job kind")
		return
	}
	if req.Kind == domain.JobKindCompositeSegment {
		a.error(w, http.StatusBadRequest, "bad_request", "composite segments are created through timelines")
		return
	}
	if len(req.InputSpec) == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "input_spec required")
		return
	}

	cost := a.Costs[req.Kind]
	available, err := a.Ledger.Reserve(r.Context(), ownerID, cost)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientBalance) {
			a.error(w, http.StatusPaymentRequired, "insufficient_balance", "token balance does not cover this job")
			return
		}
		a.Logger.Error().Err(err).Msg("handlers: reserve failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to reserve tokens")
		return
	}

	job := &domain.Job{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		Kind:         req.Kind,
		Status:       domain.JobStatusCreated,
		InputSpec:    req.InputSpec,
		CostReserved: cost,
	}
	if err := a.Jobs.Create(r.Context(), job); err != nil {
		if unresErr := a.Ledger.Unreserve(r.Context(), ownerID, cost); unresErr != nil {
			a.Logger.Error().Err(unresErr).Str("owner_id", ownerID).Msg("handlers: unreserve after failed create")
		}
		a.Logger.Error().Err(err).Msg("handlers: job create failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to create job")
		return
	}

	a.json(w, http.StatusAccepted, createJobResponse{
		JobID:            job.ID,
		Status:           job.Status,
		CostReserved:     cost,
		BalanceAvailable: available,
	})
}

// GetJob returns the caller's view of one job.
func (a *App) GetJob(w http.ResponseWriter, r *http.Request) {
	ownerID := a.currentOwnerID(r)
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing owner context")
		return
	}
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}

	job, err := a.Jobs.GetByID(r.Context(), jobID)
	if err != nil || job.OwnerID != ownerID {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	a.json(w, http.StatusOK, viewOfJob(job))
}

// ListJobs returns the caller's jobs, optionally filtered by status.
func (a *App) ListJobs(w http.ResponseWriter, r *http.Request) {
	ownerID := a.currentOwnerID(r)
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing owner context")
		return
	}

	status := domain.JobStatus(r.URL.Query().Get("status"))
	jobs, err := a.Jobs.ListByOwner(r.Context(), ownerID, status, 50)
	if err != nil {
		a.Logger.Error().Err(err).Msg("handlers: list jobs failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list jobs")
		return
	}

	views := make([]jobView, 0, len(jobs))
	for i := range jobs {
		views = append(views, viewOfJob(&jobs[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"jobs": views})
}
