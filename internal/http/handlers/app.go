package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"mediaforge/internal/domain"
	"mediaforge/internal/middleware"
)

// App bundles the collaborators the route handlers need.
type App struct {
	Jobs      domain.JobStore
	Timelines domain.TimelineStore
	Ledger    domain.Ledger
	Costs     map[domain.JobKind]int64
	Logger    zerolog.Logger

	// MaxTimelineSegments caps one timeline request; zero means default.
	MaxTimelineSegments int
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]string{"error": errCode, "message": message})
}

func (a *App) currentOwnerID(r *http.Request) string {
	return middleware.OwnerIDFromContext(r.Context())
}

// jobView is the caller-facing shape of a job.
type jobView struct {
	ID               string            `json:"id"`
	Kind             domain.JobKind    `json:"kind"`
	Provider         string            `json:"provider"`
	Status           domain.JobStatus  `json:"status"`
	Result           *domain.Result    `json:"result,omitempty"`
	Error            *domain.JobError  `json:"error,omitempty"`
	CostReserved     int64             `json:"cost_reserved"`
	CostCharged      *int64            `json:"cost_charged,omitempty"`
	AttemptCount     int               `json:"attempt_count"`
	CreatedAt        time.Time         `json:"created_at"`
	TerminalAt       *time.Time        `json:"terminal_at,omitempty"`
	TimelineID       string            `json:"timeline_id,omitempty"`
	Position         *int              `json:"position,omitempty"`
	InputArtifactRef string            `json:"input_artifact_ref,omitempty"`
}

func viewOfJob(j *domain.Job) jobView {
	view := jobView{
		ID:           j.ID,
		Kind:         j.Kind,
		Provider:     j.Provider,
		Status:       j.Status,
		Result:       j.Result,
		Error:        j.Error,
		CostReserved: j.CostReserved,
		CostCharged:  j.CostCharged,
		AttemptCount: j.AttemptCount,
		CreatedAt:    j.CreatedAt,
		TerminalAt:   j.TerminalAt,
	}
	if j.IsSegment() {
		view.TimelineID = j.TimelineID
		position := j.Position
		view.Position = &position
		view.InputArtifactRef = j.InputArtifactRef
	}
	return view
}
