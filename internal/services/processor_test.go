package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skylens/videopulse/internal/fetch"
	"github.com/skylens/videopulse/internal/models"
	"github.com/skylens/videopulse/internal/store"
)

type fakeJobs struct {
	job         *models.Job
	list        []*models.Job
	createErr   error
	getErr      error
	markErr     error
	completeErr error
	failErr     error
	listErr     error

	created          []*models.Job
	markedProcessing bool
	completedWith    *models.AnalysisResult
	failedWith       string
	listStatus       models.JobStatus
	listLimit        int
}

func (s *fakeJobs) Create(_ context.Context, job *models.Job) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, job)
	return nil
}

func (s *fakeJobs) Get(_ context.Context, jobID string) (*models.Job, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	if s.job == nil || s.job.JobID != jobID {
		return nil, store.ErrJobNotFound
	}
	return s.job, nil
}

func (s *fakeJobs) MarkProcessing(_ context.Context, jobID string) error {
	if s.markErr != nil {
		return s.markErr
	}
	s.markedProcessing = true
	return nil
}

func (s *fakeJobs) Complete(_ context.Context, jobID string, result *models.AnalysisResult, _ time.Duration) error {
	if s.completeErr != nil {
		return s.completeErr
	}
	s.completedWith = result
	return nil
}

func (s *fakeJobs) Fail(_ context.Context, jobID, message string) error {
	if s.failErr != nil {
		return s.failErr
	}
	s.failedWith = message
	return nil
}

func (s *fakeJobs) ListByStatus(_ context.Context, status models.JobStatus, limit int) ([]*models.Job, error) {
	s.listStatus = status
	s.listLimit = limit
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.list, nil
}

type fakeCache struct {
	entries map[string]*models.AnalysisResult
	getErr  error
	putErr  error
	stored  map[string]*models.AnalysisResult
}

func (c *fakeCache) Get(_ context.Context, fingerprint string) (*models.AnalysisResult, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	if result, ok := c.entries[fingerprint]; ok {
		return result, nil
	}
	return nil, store.ErrCacheMiss
}

func (c *fakeCache) Put(_ context.Context, fingerprint string, result *models.AnalysisResult) error {
	if c.putErr != nil {
		return c.putErr
	}
	if c.stored == nil {
		c.stored = map[string]*models.AnalysisResult{}
	}
	c.stored[fingerprint] = result
	return nil
}

type fakeFetcher struct {
	content *fetch.Content
	err     error

	fetchCalls int
	cleaned    []*fetch.Content
}

func (f *fakeFetcher) Fetch(_ context.Context, jobID string, src models.ContentSource) (*fetch.Content, error) {
	f.fetchCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.content, nil
}

func (f *fakeFetcher) Cleanup(_ context.Context, c *fetch.Content) {
	f.cleaned = append(f.cleaned, c)
}

type fakeVisual struct {
	record *models.VisualAnalysis
	calls  int
	gotURI string
}

func (a *fakeVisual) Analyze(_ context.Context, gcsURI string) *models.VisualAnalysis {
	a.calls++
	a.gotURI = gcsURI
	return a.record
}

type fakeAudio struct {
	record *models.AudioAnalysis
	calls  int
	gotURI string
}

func (a *fakeAudio) Analyze(_ context.Context, gcsURI string) *models.AudioAnalysis {
	a.calls++
	a.gotURI = gcsURI
	return a.record
}

type fakeDescriber struct {
	text    string
	metrics models.GenerationMetrics

	gotVisual *models.VisualAnalysis
	gotAudio  *models.AudioAnalysis
	gotRef    string
}

func (d *fakeDescriber) Describe(_ context.Context, visual *models.VisualAnalysis, audio *models.AudioAnalysis, sourceRef string) (string, models.GenerationMetrics) {
	d.gotVisual = visual
	d.gotAudio = audio
	d.gotRef = sourceRef
	return d.text, d.metrics
}

type processorHarness struct {
	jobs      *fakeJobs
	cache     *fakeCache
	fetcher   *fakeFetcher
	visual    *fakeVisual
	audio     *fakeAudio
	describer *fakeDescriber
	fn        *ProcessorFunction
}

func newHarness(job *models.Job) *processorHarness {
	h := &processorHarness{
		jobs:  &fakeJobs{job: job},
		cache: &fakeCache{},
		fetcher: &fakeFetcher{content: &fetch.Content{
			Bucket: "work-bucket", Object: "videos/" + job.JobID + ".mp4", Size: 1024, Owned: true,
		}},
		visual: &fakeVisual{record: &models.VisualAnalysis{
			Labels:     []models.Label{{Name: "dog", Confidence: 90, Occurrences: 3}},
			Categories: []string{"Animals"},
		}},
		audio: &fakeAudio{record: &models.AudioAnalysis{
			Transcript: "a dog barks", Confidence: 0.9, Language: "en-us", WordCount: 3,
		}},
		describer: &fakeDescriber{
			text:    "A cheerful dog barks at the camera.",
			metrics: models.GenerationMetrics{Model: "gemini-2.0-flash", OutputTokens: 12},
		},
	}
	h.fn = &ProcessorFunction{
		jobs:      h.jobs,
		cache:     h.cache,
		fetcher:   h.fetcher,
		visual:    h.visual,
		audio:     h.audio,
		describer: h.describer,
	}
	return h
}

func pendingJob(jobID, url string) *models.Job {
	now := time.Now()
	return &models.Job{
		JobID:     jobID,
		SourceRef: url,
		Status:    models.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func processRequest(job *models.Job) *models.ProcessRequest {
	return &models.ProcessRequest{JobID: job.JobID, Source: models.URLSource(job.SourceRef)}
}

func TestProcessHappyPath(t *testing.T) {
	job := pendingJob("job-1", "https://example.com/dog.mp4")
	h := newHarness(job)

	resp, err := h.fn.Process(context.Background(), processRequest(job))
	require.NoError(t, err)

	assert.Equal(t, "job-1", resp.JobID)
	assert.Equal(t, models.StatusCompleted, resp.Status)
	assert.False(t, resp.Cached)

	assert.True(t, h.jobs.markedProcessing)
	require.NotNil(t, h.jobs.completedWith)
	assert.Equal(t, "A cheerful dog barks at the camera.", h.jobs.completedWith.Description)
	assert.Same(t, h.visual.record, h.jobs.completedWith.Visual)
	assert.Same(t, h.audio.record, h.jobs.completedWith.Audio)
	assert.Empty(t, h.jobs.failedWith)

	assert.Equal(t, 1, h.visual.calls)
	assert.Equal(t, 1, h.audio.calls)
	assert.Equal(t, "gs://work-bucket/videos/job-1.mp4", h.visual.gotURI)
	assert.Equal(t, "gs://work-bucket/videos/job-1.mp4", h.audio.gotURI)
	assert.Equal(t, "https://example.com/dog.mp4", h.describer.gotRef)
}

func TestProcessScoresAllSignals(t *testing.T) {
	job := pendingJob("job-2", "https://example.com/dog.mp4")
	h := newHarness(job)

	_, err := h.fn.Process(context.Background(), processRequest(job))
	require.NoError(t, err)

	// visual 0.9, audio 0.9, description 35/200.
	expected := (0.9 + 0.9 + 35.0/200.0) / 3.0
	assert.InDelta(t, expected, h.jobs.completedWith.ConfidenceScore, 1e-9)
}

func TestProcessWritesCacheEntry(t *testing.T) {
	job := pendingJob("job-3", "https://example.com/dog.mp4")
	h := newHarness(job)

	_, err := h.fn.Process(context.Background(), processRequest(job))
	require.NoError(t, err)

	fingerprint := store.Fingerprint("https://example.com/dog.mp4")
	require.Contains(t, h.cache.stored, fingerprint)
	assert.Same(t, h.jobs.completedWith, h.cache.stored[fingerprint])
}

func TestProcessCacheHitSkipsPipeline(t *testing.T) {
	job := pendingJob("job-4", "https://example.com/dog.mp4")
	h := newHarness(job)
	cached := &models.AnalysisResult{Description: "Cached description.", ConfidenceScore: 0.8}
	h.cache.entries = map[string]*models.AnalysisResult{
		store.Fingerprint("https://example.com/dog.mp4"): cached,
	}

	resp, err := h.fn.Process(context.Background(), processRequest(job))
	require.NoError(t, err)

	assert.True(t, resp.Cached)
	assert.Equal(t, models.StatusCompleted, resp.Status)
	assert.Same(t, cached, h.jobs.completedWith)

	assert.False(t, h.jobs.markedProcessing)
	assert.Zero(t, h.fetcher.fetchCalls)
	assert.Zero(t, h.visual.calls)
	assert.Zero(t, h.audio.calls)
}

func TestProcessCacheLookupFailureFallsThrough(t *testing.T) {
	job := pendingJob("job-5", "https://example.com/dog.mp4")
	h := newHarness(job)
	h.cache.getErr = fmt.Errorf("firestore unavailable")

	resp, err := h.fn.Process(context.Background(), processRequest(job))
	require.NoError(t, err)

	assert.False(t, resp.Cached)
	assert.Equal(t, 1, h.visual.calls)
}

func TestProcessCachePutFailureStillCompletes(t *testing.T) {
	job := pendingJob("job-6", "https://example.com/dog.mp4")
	h := newHarness(job)
	h.cache.putErr = fmt.Errorf("firestore unavailable")

	resp, err := h.fn.Process(context.Background(), processRequest(job))
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, resp.Status)
	require.NotNil(t, h.jobs.completedWith)
}

func TestProcessTerminalJobSkipped(t *testing.T) {
	job := pendingJob("job-7", "https://example.com/dog.mp4")
	job.Status = models.StatusCompleted
	h := newHarness(job)

	resp, err := h.fn.Process(context.Background(), processRequest(job))
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, resp.Status)
	assert.Zero(t, h.fetcher.fetchCalls)
	assert.Nil(t, h.jobs.completedWith)
	assert.False(t, h.jobs.markedProcessing)
}

func TestProcessUnknownJob(t *testing.T) {
	job := pendingJob("job-8", "https://example.com/dog.mp4")
	h := newHarness(job)
	h.jobs.job = nil

	_, err := h.fn.Process(context.Background(), processRequest(job))
	require.ErrorIs(t, err, store.ErrJobNotFound)
	assert.Zero(t, h.fetcher.fetchCalls)
}

func TestProcessFetchFailureFailsJob(t *testing.T) {
	job := pendingJob("job-9", "https://example.com/gone.mp4")
	h := newHarness(job)
	h.fetcher.err = fmt.Errorf("unexpected status 404")

	_, err := h.fn.Process(context.Background(), processRequest(job))
	require.Error(t, err)

	assert.Contains(t, err.Error(), "failed to fetch video content")
	assert.Contains(t, h.jobs.failedWith, "unexpected status 404")
	assert.Zero(t, h.visual.calls)
	assert.Zero(t, h.audio.calls)
	assert.Empty(t, h.fetcher.cleaned)
	assert.Nil(t, h.jobs.completedWith)
}

func TestProcessDegradedAnalysisStillCompletes(t *testing.T) {
	job := pendingJob("job-10", "https://example.com/dog.mp4")
	h := newHarness(job)
	h.visual.record = &models.VisualAnalysis{Error: "visual analysis timed out after 5m0s"}
	h.audio.record = &models.AudioAnalysis{Error: "audio analysis failed: rpc error"}
	h.describer.text = "This video contains visual content that may be of interest to viewers."
	h.describer.metrics = models.GenerationMetrics{Model: "fallback-template", Fallback: true}

	resp, err := h.fn.Process(context.Background(), processRequest(job))
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, resp.Status)
	require.NotNil(t, h.jobs.completedWith)
	assert.NotEmpty(t, h.jobs.completedWith.Description)
	assert.Zero(t, h.jobs.completedWith.ConfidenceScore)
	assert.Equal(t, "visual analysis timed out after 5m0s", h.jobs.completedWith.Visual.Error)
	assert.Empty(t, h.jobs.failedWith)
}

func TestProcessCleansUpFetchedContent(t *testing.T) {
	job := pendingJob("job-11", "https://example.com/dog.mp4")
	h := newHarness(job)

	_, err := h.fn.Process(context.Background(), processRequest(job))
	require.NoError(t, err)

	require.Len(t, h.fetcher.cleaned, 1)
	assert.Same(t, h.fetcher.content, h.fetcher.cleaned[0])
}

func TestProcessCleansUpWhenCompleteFails(t *testing.T) {
	job := pendingJob("job-12", "https://example.com/dog.mp4")
	h := newHarness(job)
	h.jobs.completeErr = fmt.Errorf("write contention")

	_, err := h.fn.Process(context.Background(), processRequest(job))
	require.Error(t, err)

	assert.Contains(t, err.Error(), "failed to persist analysis result")
	assert.Contains(t, h.jobs.failedWith, "write contention")
	require.Len(t, h.fetcher.cleaned, 1)
}

func TestProcessMarkProcessingFailureFailsJob(t *testing.T) {
	job := pendingJob("job-13", "https://example.com/dog.mp4")
	h := newHarness(job)
	h.jobs.markErr = fmt.Errorf("write contention")

	_, err := h.fn.Process(context.Background(), processRequest(job))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to mark job processing")
	assert.Zero(t, h.fetcher.fetchCalls)
}

func TestProcessSecondaryFailureKeepsOriginalError(t *testing.T) {
	job := pendingJob("job-14", "https://example.com/gone.mp4")
	h := newHarness(job)
	h.fetcher.err = fmt.Errorf("unexpected status 404")
	h.jobs.failErr = fmt.Errorf("firestore down")

	_, err := h.fn.Process(context.Background(), processRequest(job))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 404")
	assert.NotContains(t, err.Error(), "firestore down")
}

func TestProcessObjectSourcePassesThrough(t *testing.T) {
	now := time.Now()
	job := &models.Job{
		JobID:     "job-15",
		SourceRef: "gs://uploads/raw.mp4",
		Status:    models.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	h := newHarness(job)
	h.fetcher.content = &fetch.Content{Bucket: "uploads", Object: "raw.mp4", Size: 2048, Owned: false}

	req := &models.ProcessRequest{JobID: job.JobID, Source: models.ObjectSource("uploads", "raw.mp4")}
	resp, err := h.fn.Process(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, resp.Status)
	assert.Equal(t, "gs://uploads/raw.mp4", h.visual.gotURI)
	assert.Equal(t, "gs://uploads/raw.mp4", h.describer.gotRef)
}
