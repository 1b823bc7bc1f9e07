package models

import "time"

// These structs define the JSON payloads exchanged between the API function,
// the Cloud Workflow trigger, and the processor function, plus the response
// bodies of the public API.

// ProcessRequest is the input to the processor function: one job to run.
type ProcessRequest struct {
	JobID  string        `json:"jobId"`
	Source ContentSource `json:"source"`
}

// ProcessResponse is the output of the processor function.
type ProcessResponse struct {
	JobID              string    `json:"jobId"`
	Status             JobStatus `json:"status"`
	Cached             bool      `json:"cached"`
	ProcessingDuration float64   `json:"processingDurationSeconds"`
}

// SubmitRequest is the body of POST /analyze.
type SubmitRequest struct {
	VideoURL string `json:"video_url"`
}

// SubmitResponse acknowledges an accepted submission.
type SubmitResponse struct {
	JobID                   string    `json:"job_id"`
	Status                  JobStatus `json:"status"`
	Message                 string    `json:"message"`
	EstimatedCompletionTime time.Time `json:"estimated_completion_time"`
}

// StatusResponse is the body of GET /status/{jobId}. The optional fields
// are populated per status: elapsed seconds while processing, error and
// failure time while failed, completion flags while completed.
type StatusResponse struct {
	JobID     string    `json:"job_id"`
	Status    JobStatus `json:"status"`
	VideoURL  string    `json:"video_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ElapsedSeconds *float64   `json:"elapsed_seconds,omitempty"`
	Error          string     `json:"error,omitempty"`
	FailedAt       *time.Time `json:"failed_at,omitempty"`

	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	HasDescription  *bool      `json:"has_description,omitempty"`
	ConfidenceScore *float64   `json:"confidence_score,omitempty"`
}

// ResultResponse is the body of GET /result/{jobId} for a completed job.
type ResultResponse struct {
	JobID              string          `json:"job_id"`
	Status             JobStatus       `json:"status"`
	VideoURL           string          `json:"video_url"`
	Description        string          `json:"description"`
	ConfidenceScore    float64         `json:"confidence_score"`
	CreatedAt          time.Time       `json:"created_at"`
	CompletedAt        *time.Time      `json:"completed_at,omitempty"`
	ProcessingDuration float64         `json:"processing_duration,omitempty"`
	VisualAnalysis     *VisualAnalysis `json:"visual_analysis,omitempty"`
	AudioAnalysis      *AudioAnalysis  `json:"audio_analysis,omitempty"`
}

// FailedResultResponse reports a failed job on the result endpoint.
type FailedResultResponse struct {
	JobID    string     `json:"job_id"`
	Status   JobStatus  `json:"status"`
	Error    string     `json:"error"`
	FailedAt *time.Time `json:"failed_at,omitempty"`
}

// RetryResponse signals that a result is not ready yet.
type RetryResponse struct {
	JobID   string    `json:"job_id"`
	Status  JobStatus `json:"status"`
	Message string    `json:"message"`
}

// JobSummary is one row of GET /jobs.
type JobSummary struct {
	JobID     string    `json:"job_id"`
	Status    JobStatus `json:"status"`
	VideoURL  string    `json:"video_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JobListResponse is the body of GET /jobs.
type JobListResponse struct {
	Jobs  []JobSummary `json:"jobs"`
	Count int          `json:"count"`
}

// ErrorResponse is the uniform error body of the API.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}
