package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"mediaforge/internal/domain"
)

func TestAccountReportsAvailableBalance(t *testing.T) {
	app, _, ledger := newTestApp(100)
	if _, err := ledger.Reserve(context.Background(), "owner-1", 30); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	r := authed(httptest.NewRequest(http.MethodGet, "/v1/accounts/me", nil), "owner-1")
	w, body := doJSON(t, app.Account, r)
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d", w.Code)
	}
	if body["balance"].(float64) != 100 || body["reserved"].(float64) != 30 || body["available"].(float64) != 70 {
		t.Fatalf("account view = %v", body)
	}
}

func TestAccountEventsReturnAuditTrail(t *testing.T) {
	app, jobs, ledger := newTestApp(100)
	ctx := context.Background()

	if _, err := ledger.Reserve(ctx, "owner-1", 10); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	job := &domain.Job{ID: "job-1", OwnerID: "owner-1", Kind: domain.JobKindImage, Provider: "flux", CostReserved: 10}
	_ = jobs.Create(ctx, job)
	_ = jobs.MarkSubmitted(ctx, "job-1", "task-1")
	_ = jobs.MarkPolling(ctx, "job-1")
	_ = jobs.MarkSucceeded(ctx, "job-1", &domain.Result{Artifacts: []string{"a.png"}})
	if err := ledger.Charge(ctx, "job-1"); err != nil {
		t.Fatalf("charge: %v", err)
	}

	r := authed(httptest.NewRequest(http.MethodGet, "/v1/accounts/me/events", nil), "owner-1")
	w, body := doJSON(t, app.AccountEvents, r)
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d", w.Code)
	}
	events := body["events"].([]any)
	if len(events) != 1 {
		t.Fatalf("events = %v", events)
	}
	event := events[0].(map[string]any)
	if event["event_type"] != domain.BillingEventCharged || event["amount"].(float64) != 10 {
		t.Fatalf("event = %v", event)
	}
}
