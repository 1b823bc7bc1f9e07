package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/skylens/videopulse/internal/config"
	"github.com/skylens/videopulse/internal/models"
)

// ErrCacheMiss covers both absent and expired entries; callers never need
// to distinguish the two.
var ErrCacheMiss = errors.New("cache miss")

// Fingerprint derives the cache key for a source reference.
func Fingerprint(sourceRef string) string {
	sum := sha256.Sum256([]byte(sourceRef))
	return hex.EncodeToString(sum[:])
}

// FirestoreResultCache stores one document per fingerprint. Writes replace
// the whole document, so concurrent population of the same fingerprint is
// last-write-wins with no torn entries.
type FirestoreResultCache struct {
	client     *firestore.Client
	collection string
	ttl        time.Duration
}

func NewFirestoreResultCache(client *firestore.Client, cfg config.FirestoreConfig, ttl time.Duration) *FirestoreResultCache {
	return &FirestoreResultCache{client: client, collection: cfg.CacheCollection, ttl: ttl}
}

func (c *FirestoreResultCache) doc(fingerprint string) *firestore.DocumentRef {
	return c.client.Collection(c.collection).Doc(fingerprint)
}

// Get returns the cached result or ErrCacheMiss. Expired entries are
// deleted opportunistically; a failed delete is logged and still reported
// as a miss.
func (c *FirestoreResultCache) Get(ctx context.Context, fingerprint string) (*models.AnalysisResult, error) {
	snap, err := c.doc(fingerprint).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}

	var entry models.CacheEntry
	if err := snap.DataTo(&entry); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry %s: %w", fingerprint, err)
	}
	if entry.Expired(time.Now()) {
		if _, err := snap.Ref.Delete(ctx); err != nil {
			slog.Warn("Failed to delete expired cache entry.", "fingerprint", fingerprint, "error", err)
		}
		return nil, ErrCacheMiss
	}
	return entry.Result(), nil
}

// Put writes the result under its fingerprint with the configured TTL.
func (c *FirestoreResultCache) Put(ctx context.Context, fingerprint string, result *models.AnalysisResult) error {
	now := time.Now()
	entry := models.CacheEntry{
		Fingerprint:     fingerprint,
		Description:     result.Description,
		ConfidenceScore: result.ConfidenceScore,
		VisualAnalysis:  result.Visual,
		AudioAnalysis:   result.Audio,
		CreatedAt:       now,
		ExpiresAt:       now.Add(c.ttl),
	}
	if _, err := c.doc(fingerprint).Set(ctx, entry); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}
