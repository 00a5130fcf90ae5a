package analysis

import (
    "errors"
    "time"
)

// ErrUnknownJob is returned by read paths when no record exists for a job id.
var ErrUnknownJob = errors.New("unknown job")

// Kind selects the prompt set a job runs with. All kinds share the same
// chunk → batch → summarize → reduce pipeline.
type Kind string

const (
    KindSummary    Kind = "summary"
    KindTopics     Kind = "topics"
    KindComparison Kind = "comparison"
)

// ParseKind maps a submitted kind string to a known Kind, defaulting to summary.
func ParseKind(s string) Kind {
    switch Kind(s) {
    case KindTopics:
        return KindTopics
    case KindComparison:
        return KindComparison
    default:
        return KindSummary
    }
}

// Status is the job lifecycle state. Transitions move forward through the
// pipeline phases; any non-terminal status may jump to aborted or error.
type Status string

const (
    StatusQueued      Status = "queued"
    StatusExtracting  Status = "extracting"
    StatusChunking    Status = "chunking"
    StatusSummarizing Status = "summarizing"
    StatusFinalizing  Status = "finalizing"
    StatusCompleted   Status = "completed"
    StatusAborted     Status = "aborted"
    StatusError       Status = "error"
)

// Terminal reports whether no further mutation of the job may occur.
func (s Status) Terminal() bool {
    return s == StatusCompleted || s == StatusAborted || s == StatusError
}

// BatchStatus tracks one batch through the summarization loop.
type BatchStatus string

const (
    BatchPending    BatchStatus = "pending"
    BatchProcessing BatchStatus = "processing"
    BatchCompleted  BatchStatus = "completed"
    BatchError      BatchStatus = "error"
)

// BatchSummary is one batch's slot in the job record. Index is 1-based and
// stable once assigned; entries are updated in place, never reordered.
type BatchSummary struct {
    Index  int         `json:"index"`
    Status BatchStatus `json:"status"`
    Text   string      `json:"text,omitempty"`
}

// Job is the durable record of one analysis job. It has a single writer (the
// orchestrator goroutine running the job); everything else reads snapshots.
type Job struct {
    ID           string         `json:"job_id"`
    Kind         Kind           `json:"kind"`
    Status       Status         `json:"status"`
    Current      int            `json:"current"`
    Total        int            `json:"total"`
    Message      string         `json:"message,omitempty"`
    Batches      []BatchSummary `json:"batch_summaries"`
    FinalSummary string         `json:"final_summary,omitempty"`
    Error        string         `json:"error,omitempty"`
    CreatedAt    time.Time      `json:"created_at"`
    UpdatedAt    time.Time      `json:"updated_at"`
}

// New returns a queued job record.
func New(id string, kind Kind) *Job {
    now := time.Now().UTC()
    return &Job{
        ID:        id,
        Kind:      kind,
        Status:    StatusQueued,
        Message:   "queued",
        CreatedAt: now,
        UpdatedAt: now,
    }
}

// Snapshot returns a copy safe to hand to the publisher and subscribers.
func (j *Job) Snapshot() Job {
    snap := *j
    if j.Batches != nil {
        snap.Batches = make([]BatchSummary, len(j.Batches))
        copy(snap.Batches, j.Batches)
    }
    return snap
}

// Touch bumps the updated_at timestamp.
func (j *Job) Touch() { j.UpdatedAt = time.Now().UTC() }
