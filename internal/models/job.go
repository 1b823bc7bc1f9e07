package models

import "time"

// JobStatus is the lifecycle state of an analysis job.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transitions may leave this status.
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether moving from s to next is a legal lifecycle
// step. Transitions never re-enter pending and never leave a terminal state.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing || next == StatusCompleted || next == StatusFailed
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// Job is the durable record for one video-analysis request, stored in
// Firestore and mutated only by the processor for a given job ID.
type Job struct {
	JobID     string    `firestore:"jobId" json:"job_id"`
	SourceRef string    `firestore:"sourceRef" json:"video_url"`
	Status    JobStatus `firestore:"status" json:"status"`
	CreatedAt time.Time `firestore:"createdAt" json:"created_at"`
	UpdatedAt time.Time `firestore:"updatedAt" json:"updated_at"`

	StartedAt   *time.Time `firestore:"startedAt,omitempty" json:"started_at,omitempty"`
	CompletedAt *time.Time `firestore:"completedAt,omitempty" json:"completed_at,omitempty"`
	FailedAt    *time.Time `firestore:"failedAt,omitempty" json:"failed_at,omitempty"`

	Description        string          `firestore:"description,omitempty" json:"description,omitempty"`
	ConfidenceScore    float64         `firestore:"confidenceScore,omitempty" json:"confidence_score,omitempty"`
	VisualAnalysis     *VisualAnalysis `firestore:"visualAnalysis,omitempty" json:"visual_analysis,omitempty"`
	AudioAnalysis      *AudioAnalysis  `firestore:"audioAnalysis,omitempty" json:"audio_analysis,omitempty"`
	Error              string          `firestore:"error,omitempty" json:"error,omitempty"`
	ProcessingDuration float64         `firestore:"processingDuration,omitempty" json:"processing_duration,omitempty"`

	// ExpiresAt drives store-level retention; records past it are eligible
	// for deletion regardless of terminal state.
	ExpiresAt time.Time `firestore:"expiresAt" json:"-"`
}

// Elapsed returns the wall-clock seconds since the job started processing,
// or 0 if it never started.
func (j *Job) Elapsed(now time.Time) float64 {
	if j.StartedAt == nil {
		return 0
	}
	return now.Sub(*j.StartedAt).Seconds()
}
