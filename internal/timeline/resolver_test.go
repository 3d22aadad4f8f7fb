package timeline

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"mediaforge/internal/domain"
	"mediaforge/internal/testsupport"
)

func seedTimeline(t *testing.T, store *testsupport.MemoryJobStore, ledger *testsupport.MemoryLedger, owner string, count int) []*domain.Job {
	t.Helper()
	ctx := context.Background()
	segments := make([]*domain.Job, 0, count)
	predecessor := ""
	for i := 0; i < count; i++ {
		if _, err := ledger.Reserve(ctx, owner, 50); err != nil {
			t.Fatalf("reserve segment %d: %v", i, err)
		}
		segment := &domain.Job{
			ID:            "seg-" + string(rune('0'+i)),
			OwnerID:       owner,
			Kind:          domain.JobKindCompositeSegment,
			InputSpec:     []byte(`{"prompt":"scene"}`),
			CostReserved:  50,
			TimelineID:    "tl-1",
			Position:      i,
			PredecessorID: predecessor,
		}
		if i == 0 {
			segment.InputArtifactRef = "seed-frame"
		}
		if err := store.Create(ctx, segment); err != nil {
			t.Fatalf("create segment %d: %v", i, err)
		}
		segments = append(segments, segment)
		predecessor = segment.ID
	}
	return segments
}

func advanceToPolling(t *testing.T, store *testsupport.MemoryJobStore, id string) {
	t.Helper()
	ctx := context.Background()
	if err := store.MarkSubmitted(ctx, id, "task-"+id); err != nil {
		t.Fatalf("submit %s: %v", id, err)
	}
	if err := store.MarkPolling(ctx, id); err != nil {
		t.Fatalf("poll %s: %v", id, err)
	}
}

func TestSuccessBindsSuccessorInputBeforeItLeavesCreated(t *testing.T) {
	store := testsupport.NewMemoryJobStore()
	ledger := testsupport.NewMemoryLedger(store, 1000)
	resolver := NewResolver(store, ledger, zerolog.Nop())
	ctx := context.Background()

	segments := seedTimeline(t, store, ledger, "owner-1", 3)
	advanceToPolling(t, store, segments[0].ID)
	result := &domain.Result{Artifacts: []string{"https://cdn/clip0.mp4"}, LastArtifact: "frameA"}
	if err := store.MarkSucceeded(ctx, segments[0].ID, result); err != nil {
		t.Fatalf("succeed segment 0: %v", err)
	}

	if err := resolver.OnSegmentSucceeded(ctx, segments[0], result); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	successor, _ := store.GetByID(ctx, segments[1].ID)
	if successor.InputArtifactRef != "frameA" {
		t.Fatalf("successor input = %q, want frameA", successor.InputArtifactRef)
	}
	if successor.Status != domain.JobStatusCreated {
		t.Fatalf("successor status = %s, binding must happen before it leaves created", successor.Status)
	}
	// Segment 2 stays unbound until segment 1 succeeds.
	third, _ := store.GetByID(ctx, segments[2].ID)
	if third.InputArtifactRef != "" {
		t.Fatalf("segment 2 bound prematurely: %q", third.InputArtifactRef)
	}
}

func TestFailurePropagatesCancellationToUnstartedSegments(t *testing.T) {
	store := testsupport.NewMemoryJobStore()
	ledger := testsupport.NewMemoryLedger(store, 1000)
	resolver := NewResolver(store, ledger, zerolog.Nop())
	ctx := context.Background()

	segments := seedTimeline(t, store, ledger, "owner-1", 3)

	// Segment 1 fails mid-flight.
	if _, err := store.BindSuccessorInput(ctx, "tl-1", 1, "frameA"); err != nil {
		t.Fatalf("bind: %v", err)
	}
	advanceToPolling(t, store, segments[1].ID)
	if err := store.MarkFailed(ctx, segments[1].ID, domain.ErrorKindProvider, "render error"); err != nil {
		t.Fatalf("fail segment 1: %v", err)
	}
	failed, _ := store.GetByID(ctx, segments[1].ID)

	if err := resolver.OnSegmentFailed(ctx, failed); err != nil {
		t.Fatalf("resolve failure: %v", err)
	}

	third, _ := store.GetByID(ctx, segments[2].ID)
	if third.Status != domain.JobStatusCancelled {
		t.Fatalf("segment 2 status = %s, want cancelled", third.Status)
	}
	if third.Error == nil || third.Error.Kind != domain.ErrorKindDependency {
		t.Fatalf("segment 2 error = %+v, want dependency_cancelled", third.Error)
	}
	// A cancelled segment never reaches submitted.
	if err := store.MarkSubmitted(ctx, third.ID, "task-x"); err == nil {
		t.Fatalf("cancelled segment accepted submission")
	}
	// Its reservation is returned.
	account, _ := ledger.Account(ctx, "owner-1")
	if account.Reserved != 100 { // segments 0 and 1 still hold theirs
		t.Fatalf("reserved = %d, want 100", account.Reserved)
	}
}

func TestFailureLeavesPollingSegmentsRunning(t *testing.T) {
	store := testsupport.NewMemoryJobStore()
	ledger := testsupport.NewMemoryLedger(store, 1000)
	resolver := NewResolver(store, ledger, zerolog.Nop())
	ctx := context.Background()

	segments := seedTimeline(t, store, ledger, "owner-1", 3)

	// Segment 1 is already polling when segment 0 is re-reported failed; its
	// input was bound and its provider cost is spent, so it keeps running.
	if _, err := store.BindSuccessorInput(ctx, "tl-1", 1, "frameA"); err != nil {
		t.Fatalf("bind: %v", err)
	}
	advanceToPolling(t, store, segments[1].ID)

	advanceToPolling(t, store, segments[0].ID)
	if err := store.MarkFailed(ctx, segments[0].ID, domain.ErrorKindProvider, "render error"); err != nil {
		t.Fatalf("fail segment 0: %v", err)
	}
	failed, _ := store.GetByID(ctx, segments[0].ID)
	if err := resolver.OnSegmentFailed(ctx, failed); err != nil {
		t.Fatalf("resolve failure: %v", err)
	}

	running, _ := store.GetByID(ctx, segments[1].ID)
	if running.Status != domain.JobStatusPolling {
		t.Fatalf("polling segment was disturbed: %s", running.Status)
	}
	third, _ := store.GetByID(ctx, segments[2].ID)
	if third.Status != domain.JobStatusCancelled {
		t.Fatalf("created segment not cancelled: %s", third.Status)
	}
}

func TestLastSegmentSuccessIsTerminalNoop(t *testing.T) {
	store := testsupport.NewMemoryJobStore()
	ledger := testsupport.NewMemoryLedger(store, 1000)
	resolver := NewResolver(store, ledger, zerolog.Nop())
	ctx := context.Background()

	segments := seedTimeline(t, store, ledger, "owner-1", 1)
	result := &domain.Result{Artifacts: []string{"clip"}, LastArtifact: "frameZ"}
	if err := resolver.OnSegmentSucceeded(ctx, segments[0], result); err != nil {
		t.Fatalf("final segment success should be a no-op, got %v", err)
	}
}

func TestStandaloneJobsBypassResolver(t *testing.T) {
	store := testsupport.NewMemoryJobStore()
	ledger := testsupport.NewMemoryLedger(store, 1000)
	resolver := NewResolver(store, ledger, zerolog.Nop())
	ctx := context.Background()

	job := &domain.Job{ID: "job-1", OwnerID: "owner-1", Kind: domain.JobKindImage}
	if err := resolver.OnSegmentSucceeded(ctx, job, &domain.Result{Artifacts: []string{"x"}}); err != nil {
		t.Fatalf("standalone success: %v", err)
	}
	if err := resolver.OnSegmentFailed(ctx, job); err != nil {
		t.Fatalf("standalone failure: %v", err)
	}
}
