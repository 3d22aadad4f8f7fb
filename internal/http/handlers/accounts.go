package handlers

import (
	"net/http"
	"time"
)

type accountView struct {
	ID        string `json:"id"`
	Balance   int64  `json:"balance"`
	Reserved  int64  `json:"reserved"`
	Available int64  `json:"available"`
}

// Account returns the caller's token balance and open reservations.
func (a *App) Account(w http.ResponseWriter, r *http.Request) {
	ownerID := a.currentOwnerID(r)
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing owner context")
		return
	}

	account, err := a.Ledger.Account(r.Context(), ownerID)
	if err != nil {
		a.Logger.Error().Err(err).Msg("handlers: account load failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load account")
		return
	}
	a.json(w, http.StatusOK, accountView{
		ID:        account.ID,
		Balance:   account.Balance,
		Reserved:  account.Reserved,
		Available: account.Available(),
	})
}

type billingEventView struct {
	JobID     string    `json:"job_id"`
	Kind      string    `json:"kind"`
	Provider  string    `json:"provider"`
	Amount    int64     `json:"amount"`
	EventType string    `json:"event_type"`
	CreatedAt time.Time `json:"created_at"`
}

// AccountEvents returns the caller's billing audit trail.
func (a *App) AccountEvents(w http.ResponseWriter, r *http.Request) {
	ownerID := a.currentOwnerID(r)
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing owner context")
		return
	}

	events, err := a.Ledger.Events(r.Context(), ownerID, 50)
	if err != nil {
		a.Logger.Error().Err(err).Msg("handlers: billing events load failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load billing events")
		return
	}
	views := make([]billingEventView, 0, len(events))
	for _, event := range events {
		views = append(views, billingEventView{
			JobID:     event.JobID,
			Kind:      string(event.Kind),
			Provider:  event.Provider,
			Amount:    event.Amount,
			EventType: event.EventType,
			CreatedAt: event.CreatedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"events": views})
}
