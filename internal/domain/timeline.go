package domain

import "time"

// TimelineStatus is the derived aggregate status of a timeline's segments.
type TimelineStatus string

const (
	TimelineStatusInProgress TimelineStatus = "in_progress"
	TimelineStatusSucceeded  TimelineStatus = "succeeded"
	TimelineStatusFailed     TimelineStatus = "failed"
)

// Timeline is an ordered collection of segment jobs chained so each segment
// starts from the last frame of its predecessor.
type Timeline struct {
	ID            string
	OwnerID       string
	Title         string
	SegmentCount  int
	TotalDuration int
	CreatedAt     time.Time
}

// TimelineStatusOf derives the aggregate status from the timeline's segments:
// succeeded only when every segment succeeded, failed as soon as any segment
// terminated unsuccessfully, otherwise still in progress.
func TimelineStatusOf(segments []Job) TimelineStatus {
	if len(segments) == 0 {
		return TimelineStatusInProgress
	}
	succeeded := 0
	for _, s := range segments {
		switch s.Status {
		case JobStatusSucceeded:
			succeeded++
		case JobStatusFailed, JobStatusTimedOut, JobStatusCancelled:
			return TimelineStatusFailed
		}
	}
	if succeeded == len(segments) {
		return TimelineStatusSucceeded
	}
	return TimelineStatusInProgress
}
