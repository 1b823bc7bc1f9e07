package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/skylens/videopulse/internal/config"
	"github.com/skylens/videopulse/internal/gcp"
	"github.com/skylens/videopulse/internal/store"
)

// JanitorStore is the slice of the job store retention cleanup needs.
type JanitorStore interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// JanitorFunction removes terminal job records past the retention age.
// Cache entries expire through their own TTL and are not swept here.
type JanitorFunction struct {
	jobs JanitorStore
	age  time.Duration
}

// NewJanitor creates the janitor wired to Firestore.
func NewJanitor(ctx context.Context) (*JanitorFunction, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	firestoreClient, err := gcp.NewFirestoreClient(ctx, cfg.Project.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return &JanitorFunction{
		jobs: store.NewFirestoreJobStore(firestoreClient, cfg.Firestore),
		age:  cfg.Retention.CleanupAge,
	}, nil
}

// Sweep deletes completed and failed jobs older than the retention age.
func (f *JanitorFunction) Sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-f.age)
	logCtx := slog.With("cutoff", cutoff.Format(time.RFC3339))
	logCtx.Info("Starting retention sweep.")

	deleted, err := f.jobs.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		logCtx.Error("Retention sweep failed.", "deleted", deleted, "error", err)
		return fmt.Errorf("retention sweep failed: %w", err)
	}
	logCtx.Info("Retention sweep complete.", "deleted", deleted)
	return nil
}
