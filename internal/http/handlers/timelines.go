package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"mediaforge/internal/domain"
)

const defaultMaxTimelineSegments = 12

type timelineSegmentSpec struct {
	InputSpec       json.RawMessage `json:"input_spec"`
	DurationSeconds int             `json:"duration_seconds"`
	// FirstFrame seeds the opening segment; later segments inherit their
	// predecessor's extracted last frame.
	FirstFrame string `json:"first_frame,omitempty"`
}

type createTimelineRequest struct {
	Title    string                `json:"title"`
	Segments []timelineSegmentSpec `json:"segments"`
}

type createTimelineResponse struct {
	TimelineID   string   `json:"timeline_id"`
	SegmentIDs   []string `json:"segment_ids"`
	CostReserved int64    `json:"cost_reserved"`
}

// CreateTimeline reserves the full cost of every segment up front and
// persists the chain. Only the opening segment is immediately runnable; each
// later segment stays in created until its predecessor's last frame is bound.
func (a *App) CreateTimeline(w http.ResponseWriter, r *http.Request) {
	ownerID := a.currentOwnerID(r)
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing owner context")
		return
	}

	var req createTimelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	maxSegments := a.MaxTimelineSegments
	if maxSegments <= 0 {
		maxSegments = defaultMaxTimelineSegments
	}
	if len(req.Segments) == 0 || len(req.Segments) > maxSegments {
		a.error(w, http.StatusBadRequest, "bad_request", "timeline needs between 1 and max segments")
		return
	}
	if req.Segments[0].FirstFrame == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "opening segment requires first_frame")
		return
	}
	for i, segment := range req.Segments {
		if len(segment.InputSpec) == 0 {
			a.error(w, http.StatusBadRequest, "bad_request", "every segment requires input_spec")
			return
		}
		if i > 0 && segment.FirstFrame != "" {
			a.error(w, http.StatusBadRequest, "bad_request", "only the opening segment may carry first_frame")
			return
		}
	}

	segmentCost := a.Costs[domain.JobKindCompositeSegment]

	// All-or-nothing reservation: any shortfall returns the holds already
	// placed and rejects the whole timeline.
	var reserved int64
	for range req.Segments {
		if _, err := a.Ledger.Reserve(r.Context(), ownerID, segmentCost); err != nil {
			if reserved > 0 {
				if unresErr := a.Ledger.Unreserve(r.Context(), ownerID, reserved); unresErr != nil {
					a.Logger.Error().Err(unresErr).Str("owner_id", ownerID).Msg("handlers: timeline unreserve failed")
				}
			}
			if errors.Is(err, domain.ErrInsufficientBalance) {
				a.error(w, http.StatusPaymentRequired, "insufficient_balance", "token balance does not cover this timeline")
				return
			}
			a.Logger.Error().Err(err).Msg("handlers: timeline reserve failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to reserve tokens")
			return
		}
		reserved += segmentCost
	}

	timelineID := uuid.NewString()
	totalDuration := 0
	segments := make([]*domain.Job, 0, len(req.Segments))
	segmentIDs := make([]string, 0, len(req.Segments))
	predecessorID := ""
	for i, spec := range req.Segments {
		totalDuration += spec.DurationSeconds
		segment := &domain.Job{
			ID:               uuid.NewString(),
			OwnerID:          ownerID,
			Kind:             domain.JobKindCompositeSegment,
			Status:           domain.JobStatusCreated,
			InputSpec:        spec.InputSpec,
			CostReserved:     segmentCost,
			TimelineID:       timelineID,
			Position:         i,
			PredecessorID:    predecessorID,
			InputArtifactRef: spec.FirstFrame,
		}
		segments = append(segments, segment)
		segmentIDs = append(segmentIDs, segment.ID)
		predecessorID = segment.ID
	}

	timeline := &domain.Timeline{
		ID:            timelineID,
		OwnerID:       ownerID,
		Title:         req.Title,
		SegmentCount:  len(segments),
		TotalDuration: totalDuration,
	}
	if err := a.Timelines.Create(r.Context(), timeline, segments); err != nil {
		if unresErr := a.Ledger.Unreserve(r.Context(), ownerID, reserved); unresErr != nil {
			a.Logger.Error().Err(unresErr).Str("owner_id", ownerID).Msg("handlers: timeline unreserve failed")
		}
		a.Logger.Error().Err(err).Msg("handlers: timeline create failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to create timeline")
		return
	}

	a.json(w, http.StatusAccepted, createTimelineResponse{
		TimelineID:   timelineID,
		SegmentIDs:   segmentIDs,
		CostReserved: reserved,
	})
}

type timelineView struct {
	ID            string                `json:"id"`
	Title         string                `json:"title"`
	Status        domain.TimelineStatus `json:"status"`
	SegmentCount  int                   `json:"segment_count"`
	TotalDuration int                   `json:"total_duration"`
	Segments      []jobView             `json:"segments"`
}

// GetTimeline returns the timeline with its derived aggregate status.
func (a *App) GetTimeline(w http.ResponseWriter, r *http.Request) {
	ownerID := a.currentOwnerID(r)
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing owner context")
		return
	}
	timelineID := chi.URLParam(r, "timeline_id")
	if timelineID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "timeline_id required")
		return
	}

	timeline, err := a.Timelines.GetByID(r.Context(), timelineID)
	if err != nil || timeline.OwnerID != ownerID {
		a.error(w, http.StatusNotFound, "not_found", "timeline not found")
		return
	}
	segments, err := a.Jobs.SegmentsByTimeline(r.Context(), timelineID)
	if err != nil {
		a.Logger.Error().Err(err).Msg("handlers: timeline segments load failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load timeline")
		return
	}

	views := make([]jobView, 0, len(segments))
	for i := range segments {
		views = append(views, viewOfJob(&segments[i]))
	}
	a.json(w, http.StatusOK, timelineView{
		ID:            timeline.ID,
		Title:         timeline.Title,
		Status:        domain.TimelineStatusOf(segments),
		SegmentCount:  timeline.SegmentCount,
		TotalDuration: timeline.TotalDuration,
		Segments:      views,
	})
}
