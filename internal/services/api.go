package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/skylens/videopulse/internal/config"
	"github.com/skylens/videopulse/internal/fetch"
	"github.com/skylens/videopulse/internal/gcp"
	"github.com/skylens/videopulse/internal/models"
	"github.com/skylens/videopulse/internal/store"
)

const (
	defaultListLimit = 50
	maxListLimit     = 100
)

// JobTrigger starts asynchronous processing for a submitted job.
type JobTrigger interface {
	Trigger(ctx context.Context, req *models.ProcessRequest) error
}

// APIJobStore is the slice of the job store the API touches.
type APIJobStore interface {
	Create(ctx context.Context, job *models.Job) error
	Get(ctx context.Context, jobID string) (*models.Job, error)
	Fail(ctx context.Context, jobID, message string) error
	ListByStatus(ctx context.Context, status models.JobStatus, limit int) ([]*models.Job, error)
}

// APIFunction serves the public submit/status/result/jobs endpoints.
type APIFunction struct {
	jobs     APIJobStore
	trigger  JobTrigger
	fetchCfg config.FetchConfig
	apiCfg   config.APIConfig
	jobTTL   time.Duration
}

// NewAPI creates the API function wired to Firestore and Workflows.
func NewAPI(ctx context.Context) (*APIFunction, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, cfg.Project.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	trigger, err := gcp.NewWorkflowTrigger(ctx, cfg.Project.ProjectID, cfg.API.WorkflowLocation, cfg.API.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow trigger: %w", err)
	}

	return &APIFunction{
		jobs:     store.NewFirestoreJobStore(firestoreClient, cfg.Firestore),
		trigger:  trigger,
		fetchCfg: cfg.Fetch,
		apiCfg:   cfg.API,
		jobTTL:   cfg.Retention.JobTTL,
	}, nil
}

// Handle routes one HTTP request. Every response carries CORS headers and
// an X-Request-ID.
func (f *APIFunction) Handle(w http.ResponseWriter, r *http.Request) {
	requestID := newRequestID()
	setCORSHeaders(w.Header())
	w.Header().Set("X-Request-ID", requestID)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	path := strings.Trim(r.URL.Path, "/")
	parts := strings.Split(path, "/")
	switch {
	case r.Method == http.MethodPost && path == "analyze":
		f.handleSubmit(w, r, requestID)
	case r.Method == http.MethodGet && len(parts) == 2 && parts[0] == "status" && parts[1] != "":
		f.handleStatus(w, r, parts[1], requestID)
	case r.Method == http.MethodGet && len(parts) == 2 && parts[0] == "result" && parts[1] != "":
		f.handleResult(w, r, parts[1], requestID)
	case r.Method == http.MethodGet && path == "jobs":
		f.handleList(w, r, requestID)
	default:
		writeError(w, http.StatusNotFound, fmt.Sprintf("endpoint not found: %s /%s", r.Method, path), requestID)
	}
}

func (f *APIFunction) handleSubmit(w http.ResponseWriter, r *http.Request, requestID string) {
	var req models.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON in request body", requestID)
		return
	}
	if strings.TrimSpace(req.VideoURL) == "" {
		writeError(w, http.StatusBadRequest, "missing required field: video_url", requestID)
		return
	}
	if err := fetch.ValidateURL(f.fetchCfg, req.VideoURL); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid video URL: %v", err), requestID)
		return
	}

	now := time.Now()
	job := &models.Job{
		JobID:     uuid.NewString(),
		SourceRef: req.VideoURL,
		Status:    models.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(f.jobTTL),
	}
	if err := f.jobs.Create(r.Context(), job); err != nil {
		slog.Error("Failed to create job record.", "requestId", requestID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start video analysis", requestID)
		return
	}

	processReq := &models.ProcessRequest{JobID: job.JobID, Source: models.URLSource(req.VideoURL)}
	if err := f.trigger.Trigger(r.Context(), processReq); err != nil {
		slog.Error("Failed to trigger processor.", "jobId", job.JobID, "error", err)
		if failErr := f.jobs.Fail(r.Context(), job.JobID, fmt.Sprintf("failed to trigger processor: %v", err)); failErr != nil {
			slog.Error("CRITICAL: Failed to mark job failed after trigger error.", "jobId", job.JobID, "updateError", failErr)
		}
		writeError(w, http.StatusInternalServerError, "failed to start video analysis", requestID)
		return
	}

	slog.Info("Job submitted.", "jobId", job.JobID, "requestId", requestID)
	writeJSON(w, http.StatusAccepted, models.SubmitResponse{
		JobID:                   job.JobID,
		Status:                  models.StatusPending,
		Message:                 "Video analysis started",
		EstimatedCompletionTime: now.Add(f.apiCfg.EstimatedProcessing).UTC(),
	})
}

func (f *APIFunction) handleStatus(w http.ResponseWriter, r *http.Request, jobID, requestID string) {
	job, ok := f.loadJob(w, r, jobID, requestID)
	if !ok {
		return
	}

	resp := models.StatusResponse{
		JobID:     job.JobID,
		Status:    job.Status,
		VideoURL:  job.SourceRef,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
	switch job.Status {
	case models.StatusProcessing:
		elapsed := job.Elapsed(time.Now())
		resp.ElapsedSeconds = &elapsed
	case models.StatusFailed:
		resp.Error = job.Error
		resp.FailedAt = job.FailedAt
	case models.StatusCompleted:
		resp.CompletedAt = job.CompletedAt
		hasDescription := job.Description != ""
		resp.HasDescription = &hasDescription
		score := job.ConfidenceScore
		resp.ConfidenceScore = &score
	}
	writeJSON(w, http.StatusOK, resp)
}

func (f *APIFunction) handleResult(w http.ResponseWriter, r *http.Request, jobID, requestID string) {
	job, ok := f.loadJob(w, r, jobID, requestID)
	if !ok {
		return
	}

	switch job.Status {
	case models.StatusPending:
		writeJSON(w, http.StatusAccepted, models.RetryResponse{
			JobID: job.JobID, Status: job.Status, Message: "Analysis not yet started",
		})
	case models.StatusProcessing:
		writeJSON(w, http.StatusAccepted, models.RetryResponse{
			JobID: job.JobID, Status: job.Status, Message: "Analysis in progress",
		})
	case models.StatusFailed:
		writeJSON(w, http.StatusInternalServerError, models.FailedResultResponse{
			JobID: job.JobID, Status: job.Status, Error: job.Error, FailedAt: job.FailedAt,
		})
	case models.StatusCompleted:
		resp := models.ResultResponse{
			JobID:              job.JobID,
			Status:             job.Status,
			VideoURL:           job.SourceRef,
			Description:        job.Description,
			ConfidenceScore:    job.ConfidenceScore,
			CreatedAt:          job.CreatedAt,
			CompletedAt:        job.CompletedAt,
			ProcessingDuration: job.ProcessingDuration,
		}
		if strings.EqualFold(r.URL.Query().Get("include_analysis"), "true") {
			resp.VisualAnalysis = job.VisualAnalysis
			resp.AudioAnalysis = job.AudioAnalysis
		}
		writeJSON(w, http.StatusOK, resp)
	default:
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("unknown job status: %s", job.Status), requestID)
	}
}

func (f *APIFunction) handleList(w http.ResponseWriter, r *http.Request, requestID string) {
	status := models.JobStatus(r.URL.Query().Get("status"))
	switch status {
	case "", models.StatusPending, models.StatusProcessing, models.StatusCompleted, models.StatusFailed:
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status filter: %s", status), requestID)
		return
	}

	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", requestID)
			return
		}
		limit = n
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	jobs, err := f.jobs.ListByStatus(r.Context(), status, limit)
	if err != nil {
		slog.Error("Failed to list jobs.", "requestId", requestID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list jobs", requestID)
		return
	}

	summaries := make([]models.JobSummary, 0, len(jobs))
	for _, job := range jobs {
		summaries = append(summaries, models.JobSummary{
			JobID:     job.JobID,
			Status:    job.Status,
			VideoURL:  job.SourceRef,
			CreatedAt: job.CreatedAt,
			UpdatedAt: job.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, models.JobListResponse{Jobs: summaries, Count: len(summaries)})
}

// loadJob fetches a job and writes the 404/500 responses itself; callers
// proceed only when ok is true.
func (f *APIFunction) loadJob(w http.ResponseWriter, r *http.Request, jobID, requestID string) (*models.Job, bool) {
	job, err := f.jobs.Get(r.Context(), jobID)
	if errors.Is(err, store.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("job not found: %s", jobID), requestID)
		return nil, false
	}
	if err != nil {
		slog.Error("Failed to read job record.", "jobId", jobID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read job record", requestID)
		return nil, false
	}
	return job, true
}

func newRequestID() string {
	return uuid.NewString()[:8]
}

func setCORSHeaders(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	h.Set("Access-Control-Max-Age", "86400")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode response payload.", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message, requestID string) {
	writeJSON(w, status, models.ErrorResponse{Error: message, RequestID: requestID})
}
