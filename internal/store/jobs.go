// Package store persists job records and cached results in Firestore. The
// processor and API reach it only through the narrow interfaces they
// declare, so tests swap it for in-memory fakes.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/skylens/videopulse/internal/config"
	"github.com/skylens/videopulse/internal/models"
)

// ErrJobNotFound distinguishes an unknown job ID from store failures.
var ErrJobNotFound = errors.New("job not found")

// FirestoreJobStore keeps one document per job in the jobs collection,
// keyed by job ID.
type FirestoreJobStore struct {
	client     *firestore.Client
	collection string
}

func NewFirestoreJobStore(client *firestore.Client, cfg config.FirestoreConfig) *FirestoreJobStore {
	return &FirestoreJobStore{client: client, collection: cfg.JobsCollection}
}

func (s *FirestoreJobStore) doc(jobID string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(jobID)
}

// Create writes the initial record. The job ID is freshly generated per
// submission, so an already-exists failure is a store error, not a retry.
func (s *FirestoreJobStore) Create(ctx context.Context, job *models.Job) error {
	if _, err := s.doc(job.JobID).Create(ctx, job); err != nil {
		return fmt.Errorf("failed to create job record: %w", err)
	}
	return nil
}

func (s *FirestoreJobStore) Get(ctx context.Context, jobID string) (*models.Job, error) {
	snap, err := s.doc(jobID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read job record: %w", err)
	}
	var job models.Job
	if err := snap.DataTo(&job); err != nil {
		return nil, fmt.Errorf("failed to decode job record %s: %w", jobID, err)
	}
	return &job, nil
}

// MarkProcessing records that orchestration has picked the job up.
func (s *FirestoreJobStore) MarkProcessing(ctx context.Context, jobID string) error {
	now := time.Now()
	updates := []firestore.Update{
		{Path: "status", Value: models.StatusProcessing},
		{Path: "startedAt", Value: now},
		{Path: "updatedAt", Value: now},
	}
	if _, err := s.doc(jobID).Update(ctx, updates); err != nil {
		return fmt.Errorf("failed to mark job %s processing: %w", jobID, err)
	}
	return nil
}

// Complete writes the terminal completed state together with the full
// result payload in one update.
func (s *FirestoreJobStore) Complete(ctx context.Context, jobID string, result *models.AnalysisResult, duration time.Duration) error {
	now := time.Now()
	updates := []firestore.Update{
		{Path: "status", Value: models.StatusCompleted},
		{Path: "description", Value: result.Description},
		{Path: "confidenceScore", Value: result.ConfidenceScore},
		{Path: "visualAnalysis", Value: result.Visual},
		{Path: "audioAnalysis", Value: result.Audio},
		{Path: "processingDuration", Value: duration.Seconds()},
		{Path: "completedAt", Value: now},
		{Path: "updatedAt", Value: now},
	}
	if _, err := s.doc(jobID).Update(ctx, updates); err != nil {
		return fmt.Errorf("failed to complete job %s: %w", jobID, err)
	}
	return nil
}

// Fail writes the terminal failed state with a human-readable error.
func (s *FirestoreJobStore) Fail(ctx context.Context, jobID, message string) error {
	now := time.Now()
	updates := []firestore.Update{
		{Path: "status", Value: models.StatusFailed},
		{Path: "error", Value: message},
		{Path: "failedAt", Value: now},
		{Path: "updatedAt", Value: now},
	}
	if _, err := s.doc(jobID).Update(ctx, updates); err != nil {
		return fmt.Errorf("failed to mark job %s failed: %w", jobID, err)
	}
	return nil
}

// ListByStatus returns the most recently created jobs, optionally filtered
// to one status. Empty status lists across all states.
func (s *FirestoreJobStore) ListByStatus(ctx context.Context, jobStatus models.JobStatus, limit int) ([]*models.Job, error) {
	query := s.client.Collection(s.collection).Query
	if jobStatus != "" {
		query = query.Where("status", "==", string(jobStatus))
	}
	iter := query.OrderBy("createdAt", firestore.Desc).Limit(limit).Documents(ctx)
	defer iter.Stop()

	var jobs []*models.Job
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list jobs: %w", err)
		}
		var job models.Job
		if err := snap.DataTo(&job); err != nil {
			return nil, fmt.Errorf("failed to decode job record %s: %w", snap.Ref.ID, err)
		}
		jobs = append(jobs, &job)
	}
	return jobs, nil
}

// DeleteOlderThan removes terminal jobs created before the cutoff and
// returns how many were deleted. In-flight jobs are never touched.
func (s *FirestoreJobStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	iter := s.client.Collection(s.collection).
		Where("status", "in", []string{string(models.StatusCompleted), string(models.StatusFailed)}).
		Where("createdAt", "<", cutoff).
		Documents(ctx)
	defer iter.Stop()

	deleted := 0
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return deleted, fmt.Errorf("failed to scan expired jobs: %w", err)
		}
		if _, err := snap.Ref.Delete(ctx); err != nil {
			return deleted, fmt.Errorf("failed to delete job %s: %w", snap.Ref.ID, err)
		}
		deleted++
	}
	return deleted, nil
}
