package domain

import "testing"

func TestTerminalStatuses(t *testing.T) {
	terminal := map[JobStatus]bool{
		JobStatusCreated:   false,
		JobStatusSubmitted: false,
		JobStatusPolling:   false,
		JobStatusSucceeded: true,
		JobStatusFailed:    true,
		JobStatusTimedOut:  true,
		JobStatusCancelled: true,
	}
	for status, want := range terminal {
		if got := status.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", status, got, want)
		}
	}
}

func TestIsSegment(t *testing.T) {
	segment := Job{Kind: JobKindCompositeSegment, TimelineID: "tl-1"}
	if !segment.IsSegment() {
		t.Error("composite segment with timeline not recognized")
	}
	standalone := Job{Kind: JobKindVideo}
	if standalone.IsSegment() {
		t.Error("standalone video treated as segment")
	}
}

func TestTimelineStatusOf(t *testing.T) {
	tests := []struct {
		name     string
		statuses []JobStatus
		want     TimelineStatus
	}{
		{"all succeeded", []JobStatus{JobStatusSucceeded, JobStatusSucceeded}, TimelineStatusSucceeded},
		{"any failed", []JobStatus{JobStatusSucceeded, JobStatusFailed, JobStatusCreated}, TimelineStatusFailed},
		{"timed out counts as failing", []JobStatus{JobStatusSucceeded, JobStatusTimedOut}, TimelineStatusFailed},
		{"cancelled counts as failing", []JobStatus{JobStatusSucceeded, JobStatusCancelled}, TimelineStatusFailed},
		{"still running", []JobStatus{JobStatusSucceeded, JobStatusPolling, JobStatusCreated}, TimelineStatusInProgress},
		{"nothing started", []JobStatus{JobStatusCreated, JobStatusCreated}, TimelineStatusInProgress},
		{"no segments", nil, TimelineStatusInProgress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segments := make([]Job, len(tt.statuses))
			for i, status := range tt.statuses {
				segments[i] = Job{Status: status}
			}
			if got := TimelineStatusOf(segments); got != tt.want {
				t.Errorf("TimelineStatusOf = %s, want %s", got, tt.want)
			}
		})
	}
}
