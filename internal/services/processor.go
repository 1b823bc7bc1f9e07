package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/skylens/videopulse/internal/analyze"
	"github.com/skylens/videopulse/internal/config"
	"github.com/skylens/videopulse/internal/describe"
	"github.com/skylens/videopulse/internal/fetch"
	"github.com/skylens/videopulse/internal/gcp"
	"github.com/skylens/videopulse/internal/models"
	"github.com/skylens/videopulse/internal/store"
)

// JobStore is the slice of the job store the processor mutates.
type JobStore interface {
	Get(ctx context.Context, jobID string) (*models.Job, error)
	MarkProcessing(ctx context.Context, jobID string) error
	Complete(ctx context.Context, jobID string, result *models.AnalysisResult, duration time.Duration) error
	Fail(ctx context.Context, jobID, message string) error
}

// ResultCache is the content-addressed cache keyed by source fingerprint.
type ResultCache interface {
	Get(ctx context.Context, fingerprint string) (*models.AnalysisResult, error)
	Put(ctx context.Context, fingerprint string, result *models.AnalysisResult) error
}

// ContentFetcher resolves a source into an analyzable bucket object and
// cleans up whatever the run owns afterwards.
type ContentFetcher interface {
	Fetch(ctx context.Context, jobID string, src models.ContentSource) (*fetch.Content, error)
	Cleanup(ctx context.Context, c *fetch.Content)
}

// VisualAnalyzer and AudioAnalyzer return degraded records instead of
// errors; the processor never inspects more than the record itself.
type VisualAnalyzer interface {
	Analyze(ctx context.Context, gcsURI string) *models.VisualAnalysis
}

type AudioAnalyzer interface {
	Analyze(ctx context.Context, gcsURI string) *models.AudioAnalysis
}

// Describer produces the final description, falling back internally.
type Describer interface {
	Describe(ctx context.Context, visual *models.VisualAnalysis, audio *models.AudioAnalysis, sourceRef string) (string, models.GenerationMetrics)
}

// ProcessorFunction orchestrates one video-analysis job end to end.
type ProcessorFunction struct {
	jobs      JobStore
	cache     ResultCache
	fetcher   ContentFetcher
	visual    VisualAnalyzer
	audio     AudioAnalyzer
	describer Describer
}

// NewProcessor creates a processor wired to the real GCP clients.
func NewProcessor(ctx context.Context) (*ProcessorFunction, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, cfg.Project.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	storageClient, err := gcp.NewStorageClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	videoClient, err := gcp.NewVideoIntelligenceClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create video intelligence client: %w", err)
	}
	vertexClient, err := gcp.NewVertexClient(ctx, cfg.Project.ProjectID, cfg.Project.Location, cfg.Generation)
	if err != nil {
		return nil, fmt.Errorf("failed to create vertex client: %w", err)
	}

	return &ProcessorFunction{
		jobs:      store.NewFirestoreJobStore(firestoreClient, cfg.Firestore),
		cache:     store.NewFirestoreResultCache(firestoreClient, cfg.Firestore, cfg.Retention.CacheTTL),
		fetcher:   fetch.NewFetcher(fetch.NewGCSObjectStore(storageClient), cfg.Fetch, cfg.Storage),
		visual:    analyze.NewVisualAnalyzer(analyze.VisualStarter(videoClient), cfg.Analysis),
		audio:     analyze.NewAudioAnalyzer(analyze.AudioStarter(videoClient, cfg.Analysis), cfg.Analysis),
		describer: describe.NewSynthesizer(vertexClient, cfg.Generation),
	}, nil
}

// Process runs the full pipeline for one job: cache check, fetch, parallel
// analysis, synthesis, scoring, persistence. Only fetch failures and
// terminal store writes fail the job; analysis and generation degrade.
func (f *ProcessorFunction) Process(ctx context.Context, req *models.ProcessRequest) (*models.ProcessResponse, error) {
	sourceRef := req.Source.Ref()
	logCtx := slog.With("jobId", req.JobID, "sourceRef", sourceRef)
	logCtx.Info("Starting video analysis job.")
	start := time.Now()

	job, err := f.jobs.Get(ctx, req.JobID)
	if err != nil {
		logCtx.Error("Failed to load job record.", "error", err)
		return nil, err
	}
	if job.Status.IsTerminal() {
		logCtx.Warn("Job is already terminal, skipping.", "status", job.Status)
		return &models.ProcessResponse{JobID: req.JobID, Status: job.Status}, nil
	}

	fingerprint := store.Fingerprint(sourceRef)
	if cached, err := f.cache.Get(ctx, fingerprint); err == nil {
		logCtx.Info("Cache hit, completing without analysis.", "fingerprint", fingerprint)
		if err := f.jobs.Complete(ctx, req.JobID, cached, time.Since(start)); err != nil {
			return nil, f.handleError(ctx, logCtx, req.JobID, "failed to persist cached result", err)
		}
		return &models.ProcessResponse{
			JobID:              req.JobID,
			Status:             models.StatusCompleted,
			Cached:             true,
			ProcessingDuration: time.Since(start).Seconds(),
		}, nil
	} else if !errors.Is(err, store.ErrCacheMiss) {
		logCtx.Warn("Cache lookup failed, proceeding with analysis.", "error", err)
	}

	if err := f.jobs.MarkProcessing(ctx, req.JobID); err != nil {
		return nil, f.handleError(ctx, logCtx, req.JobID, "failed to mark job processing", err)
	}

	content, err := f.fetcher.Fetch(ctx, req.JobID, req.Source)
	if err != nil {
		return nil, f.handleError(ctx, logCtx, req.JobID, "failed to fetch video content", err)
	}
	defer f.fetcher.Cleanup(ctx, content)

	visual, audio := f.runAnalysis(ctx, content.URI())

	description, metrics := f.describer.Describe(ctx, visual, audio, sourceRef)
	result := &models.AnalysisResult{
		Description:     description,
		ConfidenceScore: describe.ConfidenceScore(visual, audio, description),
		Visual:          visual,
		Audio:           audio,
		Metrics:         metrics,
	}

	if err := f.cache.Put(ctx, fingerprint, result); err != nil {
		logCtx.Warn("Failed to write cache entry.", "fingerprint", fingerprint, "error", err)
	}

	duration := time.Since(start)
	if err := f.jobs.Complete(ctx, req.JobID, result, duration); err != nil {
		return nil, f.handleError(ctx, logCtx, req.JobID, "failed to persist analysis result", err)
	}

	logCtx.Info("Video analysis job complete.",
		"durationSeconds", duration.Seconds(),
		"confidenceScore", result.ConfidenceScore,
		"fallbackDescription", metrics.Fallback,
		"visualError", visual.Error,
		"audioError", audio.Error,
	)
	return &models.ProcessResponse{
		JobID:              req.JobID,
		Status:             models.StatusCompleted,
		ProcessingDuration: duration.Seconds(),
	}, nil
}

// runAnalysis fans out to the two analyzers and joins both. Each goroutine
// writes its own slot; the analyzers degrade instead of failing, so the
// group never carries an error.
func (f *ProcessorFunction) runAnalysis(ctx context.Context, gcsURI string) (*models.VisualAnalysis, *models.AudioAnalysis) {
	var visual *models.VisualAnalysis
	var audio *models.AudioAnalysis

	eg, gctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		visual = f.visual.Analyze(gctx, gcsURI)
		return nil
	})
	eg.Go(func() error {
		audio = f.audio.Analyze(gctx, gcsURI)
		return nil
	})
	_ = eg.Wait()

	return visual, audio
}

// handleError marks the job failed best-effort and returns the original
// error. A secondary store failure is logged, never propagated in place of
// the first.
func (f *ProcessorFunction) handleError(ctx context.Context, logCtx *slog.Logger, jobID, message string, originalErr error) error {
	fullError := fmt.Sprintf("%s: %v", message, originalErr)
	logCtx.Error(message, "error", originalErr)
	if err := f.jobs.Fail(ctx, jobID, fullError); err != nil {
		logCtx.Error("CRITICAL: Failed to mark job failed after a processing error.", "updateError", err)
	}
	return fmt.Errorf("%s", fullError)
}
