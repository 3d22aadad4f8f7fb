package testsupport

import (
	"context"
	"sync"
	"time"

	"mediaforge/internal/domain"
)

// MemoryLedger implements domain.Ledger in memory against a MemoryJobStore.
type MemoryLedger struct {
	mu       sync.Mutex
	store    *MemoryJobStore
	accounts map[string]*domain.Account
	events   []domain.BillingEvent
	starting int64
}

func NewMemoryLedger(store *MemoryJobStore, startingBalance int64) *MemoryLedger {
	return &MemoryLedger{
		store:    store,
		accounts: make(map[string]*domain.Account),
		starting: startingBalance,
	}
}

func (l *MemoryLedger) Account(_ context.Context, ownerID string) (*domain.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	account := l.ensure(ownerID)
	clone := *account
	return &clone, nil
}

func (l *MemoryLedger) Reserve(_ context.Context, ownerID string, amount int64) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	account := l.ensure(ownerID)
	if account.Balance-account.Reserved < amount {
		return 0, domain.ErrInsufficientBalance
	}
	account.Reserved += amount
	return account.Balance - account.Reserved, nil
}

func (l *MemoryLedger) Unreserve(_ context.Context, ownerID string, amount int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	account := l.ensure(ownerID)
	account.Reserved -= amount
	if account.Reserved < 0 {
		account.Reserved = 0
	}
	return nil
}

func (l *MemoryLedger) Charge(ctx context.Context, jobID string) error {
	job, err := l.store.GetByID(ctx, jobID)
	if err != nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if job.Status != domain.JobStatusSucceeded || job.CostCharged != nil || !job.ReservationOpen {
		return nil
	}
	amount := job.CostReserved
	l.store.mutate(jobID, func(j *domain.Job) {
		charged := amount
		j.CostCharged = &charged
		j.ReservationOpen = false
	})
	account := l.ensure(job.OwnerID)
	account.Balance -= amount
	account.Reserved -= amount
	l.append(job, amount, domain.BillingEventCharged)
	return nil
}

func (l *MemoryLedger) Release(ctx context.Context, jobID string) error {
	job, err := l.store.GetByID(ctx, jobID)
	if err != nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if job.CostCharged != nil || !job.ReservationOpen {
		return nil
	}
	amount := job.CostReserved
	l.store.mutate(jobID, func(j *domain.Job) {
		j.ReservationOpen = false
	})
	account := l.ensure(job.OwnerID)
	account.Reserved -= amount
	if account.Reserved < 0 {
		account.Reserved = 0
	}
	l.append(job, amount, domain.BillingEventReleased)
	return nil
}

func (l *MemoryLedger) Events(_ context.Context, ownerID string, limit int) ([]domain.BillingEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.BillingEvent
	for i := len(l.events) - 1; i >= 0; i-- {
		if l.events[i].OwnerID == ownerID {
			out = append(out, l.events[i])
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// SetBalance seeds an account for a test scenario.
func (l *MemoryLedger) SetBalance(ownerID string, balance int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	account := l.ensure(ownerID)
	account.Balance = balance
	account.Reserved = 0
}

func (l *MemoryLedger) ensure(ownerID string) *domain.Account {
	account, ok := l.accounts[ownerID]
	if !ok {
		account = &domain.Account{ID: ownerID, Balance: l.starting, CreatedAt: time.Now()}
		l.accounts[ownerID] = account
	}
	return account
}

func (l *MemoryLedger) append(job *domain.Job, amount int64, eventType string) {
	l.events = append(l.events, domain.BillingEvent{
		OwnerID:   job.OwnerID,
		JobID:     job.ID,
		Kind:      job.Kind,
		Provider:  job.Provider,
		Amount:    amount,
		EventType: eventType,
		CreatedAt: time.Now(),
	})
}

var _ domain.Ledger = (*MemoryLedger)(nil)
