package services

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/skylens/videopulse/internal/config"
	"github.com/skylens/videopulse/internal/gcp"
	"github.com/skylens/videopulse/internal/models"
	"github.com/skylens/videopulse/internal/store"
)

// GCSEvent is the payload of a storage object-finalize CloudEvent.
type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

// videoExtensions are the container formats accepted from direct uploads.
var videoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".avi":  true,
	".webm": true,
	".mkv":  true,
	".flv":  true,
	".wmv":  true,
	".mpeg": true,
	".mpg":  true,
	".m4v":  true,
	".3gp":  true,
}

// IngestJobStore is the slice of the job store the ingest path needs.
type IngestJobStore interface {
	Create(ctx context.Context, job *models.Job) error
}

// JobProcessor runs the orchestration for one job.
type JobProcessor interface {
	Process(ctx context.Context, req *models.ProcessRequest) (*models.ProcessResponse, error)
}

// IngestFunction turns object-finalize events into analysis jobs. Uploads
// land in a watched bucket; each video object gets a job record and runs
// through the same orchestration as URL submissions, minus the download.
type IngestFunction struct {
	jobs       IngestJobStore
	processor  JobProcessor
	workBucket string
	workPrefix string
	jobTTL     time.Duration
}

// NewIngest creates the ingest function with its own processor stack.
func NewIngest(ctx context.Context) (*IngestFunction, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	firestoreClient, err := gcp.NewFirestoreClient(ctx, cfg.Project.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	processor, err := NewProcessor(ctx)
	if err != nil {
		return nil, err
	}
	return &IngestFunction{
		jobs:       store.NewFirestoreJobStore(firestoreClient, cfg.Firestore),
		processor:  processor,
		workBucket: cfg.Storage.Bucket,
		workPrefix: cfg.Storage.Prefix,
		jobTTL:     cfg.Retention.JobTTL,
	}, nil
}

// Process handles one finalize event. Non-video objects and objects the
// pipeline itself uploaded are skipped, the latter so fetch uploads into
// the watched bucket cannot trigger a second round of analysis.
func (f *IngestFunction) Process(ctx context.Context, e GCSEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)

	if e.Bucket == "" || e.Name == "" || strings.HasSuffix(e.Name, "/") {
		logCtx.Info("Skipping event without an object.")
		return nil
	}
	if !videoExtensions[strings.ToLower(path.Ext(e.Name))] {
		logCtx.Info("Skipping non-video object.")
		return nil
	}
	if f.workPrefix != "" && e.Bucket == f.workBucket && strings.HasPrefix(e.Name, f.workPrefix+"/") {
		logCtx.Info("Skipping pipeline-owned object.")
		return nil
	}

	src := models.ObjectSource(e.Bucket, e.Name)
	now := time.Now()
	job := &models.Job{
		JobID:     uuid.NewString(),
		SourceRef: src.Ref(),
		Status:    models.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(f.jobTTL),
	}
	if err := f.jobs.Create(ctx, job); err != nil {
		logCtx.Error("Failed to create job record for upload.", "error", err)
		return fmt.Errorf("failed to create job record: %w", err)
	}
	logCtx = logCtx.With("jobId", job.JobID)
	logCtx.Info("Created job for uploaded object.")

	resp, err := f.processor.Process(ctx, &models.ProcessRequest{JobID: job.JobID, Source: src})
	if err != nil {
		return err
	}
	logCtx.Info("Ingest processing complete.", "cached", resp.Cached, "durationSeconds", resp.ProcessingDuration)
	return nil
}
