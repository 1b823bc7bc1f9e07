package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheEntryExpired(t *testing.T) {
	now := time.Now()
	entry := &CacheEntry{ExpiresAt: now.Add(time.Hour)}

	assert.False(t, entry.Expired(now))
	assert.False(t, entry.Expired(now.Add(time.Hour)))
	assert.True(t, entry.Expired(now.Add(time.Hour+time.Second)))
}

func TestCacheEntryResultStripsBookkeeping(t *testing.T) {
	entry := &CacheEntry{
		Fingerprint:     "abc",
		Description:     "A calm walk through a park.",
		ConfidenceScore: 0.82,
		VisualAnalysis:  &VisualAnalysis{Labels: []Label{{Name: "Park", Confidence: 88}}},
		AudioAnalysis:   &AudioAnalysis{Transcript: "birds singing"},
		CreatedAt:       time.Now(),
		ExpiresAt:       time.Now().Add(time.Hour),
	}

	result := entry.Result()

	require.NotNil(t, result)
	assert.Equal(t, entry.Description, result.Description)
	assert.Equal(t, entry.ConfidenceScore, result.ConfidenceScore)
	assert.Same(t, entry.VisualAnalysis, result.Visual)
	assert.Same(t, entry.AudioAnalysis, result.Audio)
	assert.False(t, result.Metrics.Fallback)
}
