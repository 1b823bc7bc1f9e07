package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skylens/videopulse/internal/models"
)

type fakeProcessor struct {
	err      error
	requests []*models.ProcessRequest
}

func (p *fakeProcessor) Process(_ context.Context, req *models.ProcessRequest) (*models.ProcessResponse, error) {
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	return &models.ProcessResponse{JobID: req.JobID, Status: models.StatusCompleted, ProcessingDuration: 12.5}, nil
}

func newIngestHarness() (*IngestFunction, *fakeJobs, *fakeProcessor) {
	jobs := &fakeJobs{}
	processor := &fakeProcessor{}
	f := &IngestFunction{
		jobs:       jobs,
		processor:  processor,
		workBucket: "work-bucket",
		workPrefix: "videos",
		jobTTL:     24 * time.Hour,
	}
	return f, jobs, processor
}

func TestIngestCreatesJobAndProcesses(t *testing.T) {
	f, jobs, processor := newIngestHarness()

	err := f.Process(context.Background(), GCSEvent{Bucket: "uploads", Name: "raw.mp4"})
	require.NoError(t, err)

	require.Len(t, jobs.created, 1)
	job := jobs.created[0]
	assert.Equal(t, "gs://uploads/raw.mp4", job.SourceRef)
	assert.Equal(t, models.StatusPending, job.Status)
	assert.True(t, job.ExpiresAt.After(job.CreatedAt))

	require.Len(t, processor.requests, 1)
	req := processor.requests[0]
	assert.Equal(t, job.JobID, req.JobID)
	assert.Equal(t, models.SourceObject, req.Source.Kind)
	assert.Equal(t, "uploads", req.Source.Bucket)
	assert.Equal(t, "raw.mp4", req.Source.Object)
}

func TestIngestAcceptsUppercaseExtensions(t *testing.T) {
	f, jobs, _ := newIngestHarness()

	require.NoError(t, f.Process(context.Background(), GCSEvent{Bucket: "uploads", Name: "CLIP.MP4"}))
	assert.Len(t, jobs.created, 1)
}

func TestIngestSkipsNonVideoObjects(t *testing.T) {
	f, jobs, processor := newIngestHarness()

	for _, name := range []string{"notes.txt", "report.pdf", "archive.tar.gz", "noext"} {
		require.NoError(t, f.Process(context.Background(), GCSEvent{Bucket: "uploads", Name: name}))
	}
	assert.Empty(t, jobs.created)
	assert.Empty(t, processor.requests)
}

func TestIngestSkipsEventsWithoutAnObject(t *testing.T) {
	f, jobs, _ := newIngestHarness()

	require.NoError(t, f.Process(context.Background(), GCSEvent{Bucket: "uploads", Name: "folder/"}))
	require.NoError(t, f.Process(context.Background(), GCSEvent{Bucket: "uploads"}))
	require.NoError(t, f.Process(context.Background(), GCSEvent{Name: "raw.mp4"}))
	assert.Empty(t, jobs.created)
}

func TestIngestSkipsPipelineOwnedObjects(t *testing.T) {
	f, jobs, _ := newIngestHarness()

	// Objects the fetch phase staged itself must not re-enter the pipeline.
	require.NoError(t, f.Process(context.Background(), GCSEvent{Bucket: "work-bucket", Name: "videos/job-1.mp4"}))
	assert.Empty(t, jobs.created)

	// The same prefix in a different bucket is a legitimate upload.
	require.NoError(t, f.Process(context.Background(), GCSEvent{Bucket: "uploads", Name: "videos/raw.mp4"}))
	assert.Len(t, jobs.created, 1)

	// Other prefixes in the working bucket are legitimate uploads too.
	require.NoError(t, f.Process(context.Background(), GCSEvent{Bucket: "work-bucket", Name: "dropbox/raw.mp4"}))
	assert.Len(t, jobs.created, 2)
}

func TestIngestPropagatesProcessorError(t *testing.T) {
	f, jobs, processor := newIngestHarness()
	processor.err = fmt.Errorf("failed to fetch video content")

	err := f.Process(context.Background(), GCSEvent{Bucket: "uploads", Name: "raw.mp4"})
	require.Error(t, err)
	assert.Len(t, jobs.created, 1)
}

func TestIngestPropagatesCreateFailure(t *testing.T) {
	f, jobs, processor := newIngestHarness()
	jobs.createErr = fmt.Errorf("firestore unavailable")

	err := f.Process(context.Background(), GCSEvent{Bucket: "uploads", Name: "raw.mp4"})
	require.Error(t, err)
	assert.Empty(t, processor.requests)
}
