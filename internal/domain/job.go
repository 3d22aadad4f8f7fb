package domain

import "time"

// JobKind enumerates supported generation job categories.
type JobKind string

const (
	JobKindImage            JobKind = "image"
	JobKindVideo            JobKind = "video"
	JobKindAudio            JobKind = "audio"
	JobKindThreeD           JobKind = "three_d"
	JobKindTextTransform    JobKind = "text_transform"
	JobKindCompositeSegment JobKind = "composite_segment"
)

// Kinds lists every job kind the orchestrator accepts.
var Kinds = []JobKind{
	JobKindImage,
	JobKindVideo,
	JobKindAudio,
	JobKindThreeD,
	JobKindTextTransform,
	JobKindCompositeSegment,
}

// Valid reports whether k is a known job kind.
func (k JobKind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusCreated   JobStatus = "created"
	JobStatusSubmitted JobStatus = "submitted"
	JobStatusPolling   JobStatus = "polling"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusTimedOut  JobStatus = "timed_out"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether s is a final state. Stores enforce that a job in
// a terminal state never transitions again.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusSucceeded, JobStatusFailed, JobStatusTimedOut, JobStatusCancelled:
		return true
	}
	return false
}

// ErrorKind classifies terminal failures on the job record.
type ErrorKind string

const (
	ErrorKindSubmission ErrorKind = "submission_rejected"
	ErrorKindProvider   ErrorKind = "provider_failure"
	ErrorKindTimeout    ErrorKind = "timeout"
	ErrorKindDependency ErrorKind = "dependency_cancelled"
)

// JobError records why a job reached Failed, TimedOut or Cancelled.
type JobError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Result is the normalized output of a succeeded job: one or more artifact
// URIs plus whatever metadata the provider attached. LastArtifact is the
// continuation handle for timeline chaining; for video it is the extracted
// last frame.
type Result struct {
	Artifacts    []string          `json:"artifacts"`
	LastArtifact string            `json:"last_artifact,omitempty"`
	ProviderMeta map[string]string `json:"provider_meta,omitempty"`
}

// Job is one unit of work dispatched to an external generation provider and
// tracked to a terminal state.
type Job struct {
	ID          string
	OwnerID     string
	Kind        JobKind
	Provider    string
	ProviderRef string
	Status      JobStatus
	InputSpec   []byte

	Result *Result
	Error  *JobError

	CostReserved    int64
	CostCharged     *int64
	ReservationOpen bool

	AttemptCount    int
	TransientErrors int

	CreatedAt    time.Time
	LastPolledAt *time.Time
	TerminalAt   *time.Time

	// Segment fields; zero values on standalone jobs.
	TimelineID       string
	Position         int
	PredecessorID    string
	InputArtifactRef string
}

// IsSegment reports whether the job is an ordered unit of a timeline.
func (j *Job) IsSegment() bool {
	return j.TimelineID != ""
}
