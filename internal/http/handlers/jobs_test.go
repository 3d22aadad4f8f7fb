package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"mediaforge/internal/domain"
	"mediaforge/internal/middleware"
	"mediaforge/internal/testsupport"
)

func newTestApp(startingBalance int64) (*App, *testsupport.MemoryJobStore, *testsupport.MemoryLedger) {
	jobs := testsupport.NewMemoryJobStore()
	ledger := testsupport.NewMemoryLedger(jobs, startingBalance)
	app := &App{
		Jobs:      jobs,
		Timelines: testsupport.NewMemoryTimelineStore(jobs),
		Ledger:    ledger,
		Costs: map[domain.JobKind]int64{
			domain.JobKindImage:            4,
			domain.JobKindVideo:            100,
			domain.JobKindCompositeSegment: 100,
		},
		Logger: zerolog.Nop(),
	}
	return app, jobs, ledger
}

func authed(r *http.Request, ownerID string) *http.Request {
	return r.WithContext(middleware.WithOwnerID(r.Context(), ownerID))
}

func doJSON(t *testing.T, handler http.HandlerFunc, r *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	handler(w, r)
	var body map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode response: %v (%s)", err, w.Body.String())
		}
	}
	return w, body
}

func TestCreateJobReservesAndAccepts(t *testing.T) {
	app, jobs, ledger := newTestApp(10)

	r := authed(httptest.NewRequest(http.MethodPost, "/v1/jobs",
		strings.NewReader(`{"kind":"image","input_spec":{"prompt":"a fox"}}`)), "owner-1")
	w, body := doJSON(t, app.CreateJob, r)

	if w.Code != http.StatusAccepted {
		t.Fatalf("code = %d, body = %v", w.Code, body)
	}
	if body["status"] != "created" {
		t.Fatalf("status = %v", body["status"])
	}
	if body["balance_available"].(float64) != 6 {
		t.Fatalf("balance_available = %v, want 6", body["balance_available"])
	}

	job, err := jobs.GetByID(context.Background(), body["job_id"].(string))
	if err != nil {
		t.Fatalf("created job not stored: %v", err)
	}
	if job.CostReserved != 4 || !job.ReservationOpen {
		t.Fatalf("job reservation = %d open=%v", job.CostReserved, job.ReservationOpen)
	}
	account, _ := ledger.Account(context.Background(), "owner-1")
	if account.Reserved != 4 {
		t.Fatalf("account reserved = %d", account.Reserved)
	}
}

func TestCreateJobInsufficientBalance(t *testing.T) {
	app, jobs, _ := newTestApp(10)

	r := authed(httptest.NewRequest(http.MethodPost, "/v1/jobs",
		strings.NewReader(`{"kind":"video","input_spec":{"prompt":"a storm"}}`)), "owner-1")
	w, body := doJSON(t, app.CreateJob, r)

	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("code = %d, body = %v", w.Code, body)
	}
	if listed, _ := jobs.ListByOwner(context.Background(), "owner-1", "", 10); len(listed) != 0 {
		t.Fatalf("job created despite failed reservation: %v", listed)
	}
}

func TestCreateJobRejectsBadInput(t *testing.T) {
	app, _, _ := newTestApp(100)
	cases := []string{
		`{"kind":"hologram","input_spec":{}}`,
		`{"kind":"composite_segment","input_spec":{}}`,
		`{"kind":"image"}`,
		`{"kind":`,
	}
	for _, payload := range cases {
		r := authed(httptest.NewRequest(http.MethodPost, "/v1/jobs", strings.NewReader(payload)), "owner-1")
		w, _ := doJSON(t, app.CreateJob, r)
		if w.Code != http.StatusBadRequest {
			t.Errorf("payload %s: code = %d, want 400", payload, w.Code)
		}
	}
}

func TestCreateJobWithoutOwnerIsUnauthorized(t *testing.T) {
	app, _, _ := newTestApp(100)
	r := httptest.NewRequest(http.MethodPost, "/v1/jobs", strings.NewReader(`{"kind":"image","input_spec":{}}`))
	w, _ := doJSON(t, app.CreateJob, r)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("code = %d, want 401", w.Code)
	}
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestGetJobHidesOtherOwners(t *testing.T) {
	app, jobs, _ := newTestApp(100)
	_ = jobs.Create(context.Background(), &domain.Job{ID: "job-1", OwnerID: "owner-1", Kind: domain.JobKindImage})

	r := authed(httptest.NewRequest(http.MethodGet, "/v1/jobs/job-1", nil), "owner-2")
	r = withURLParam(r, "job_id", "job-1")
	w, _ := doJSON(t, app.GetJob, r)
	if w.Code != http.StatusNotFound {
		t.Fatalf("cross-owner read returned %d, want 404", w.Code)
	}

	r = authed(httptest.NewRequest(http.MethodGet, "/v1/jobs/job-1", nil), "owner-1")
	r = withURLParam(r, "job_id", "job-1")
	w, body := doJSON(t, app.GetJob, r)
	if w.Code != http.StatusOK || body["id"] != "job-1" {
		t.Fatalf("owner read: code = %d body = %v", w.Code, body)
	}
}

func TestListJobsFiltersByStatus(t *testing.T) {
	app, jobs, _ := newTestApp(100)
	ctx := context.Background()
	_ = jobs.Create(ctx, &domain.Job{ID: "job-1", OwnerID: "owner-1", Kind: domain.JobKindImage})
	_ = jobs.Create(ctx, &domain.Job{ID: "job-2", OwnerID: "owner-1", Kind: domain.JobKindImage})
	_ = jobs.MarkSubmitted(ctx, "job-2", "task-2")
	_ = jobs.MarkPolling(ctx, "job-2")

	r := authed(httptest.NewRequest(http.MethodGet, "/v1/jobs?status=polling", nil), "owner-1")
	w, body := doJSON(t, app.ListJobs, r)
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d", w.Code)
	}
	listed := body["jobs"].([]any)
	if len(listed) != 1 || listed[0].(map[string]any)["id"] != "job-2" {
		t.Fatalf("filtered list = %v", listed)
	}
}
