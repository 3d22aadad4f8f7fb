package domain

import "time"

// Account is a user's token balance. Reserved tracks holds placed by jobs
// that have not yet reached a terminal state; Balance only moves when a job
// is charged on confirmed success.
type Account struct {
	ID        string
	Balance   int64
	Reserved  int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Available is the portion of the balance not held by open reservations.
func (a *Account) Available() int64 {
	return a.Balance - a.Reserved
}

// BillingEvent is one entry of the append-only billing audit trail.
type BillingEvent struct {
	ID        string
	OwnerID   string
	JobID     string
	Kind      JobKind
	Provider  string
	Amount    int64
	EventType string
	CreatedAt time.Time
}

// Billing event types.
const (
	BillingEventReserved = "reserved"
	BillingEventCharged  = "charged"
	BillingEventReleased = "released"
)
