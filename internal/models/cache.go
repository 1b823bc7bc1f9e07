package models

import "time"

// CacheEntry is the Firestore document for one cached analysis result,
// keyed by the fingerprint of the source reference. The entry carries the
// full result payload so a cache hit can complete a job without re-running
// any analysis.
type CacheEntry struct {
	Fingerprint     string          `firestore:"fingerprint"`
	Description     string          `firestore:"description"`
	ConfidenceScore float64         `firestore:"confidenceScore"`
	VisualAnalysis  *VisualAnalysis `firestore:"visualAnalysis,omitempty"`
	AudioAnalysis   *AudioAnalysis  `firestore:"audioAnalysis,omitempty"`
	CreatedAt       time.Time       `firestore:"createdAt"`
	ExpiresAt       time.Time       `firestore:"expiresAt"`
}

// Expired reports whether the entry is past its expiry at the given time.
func (e *CacheEntry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Result converts the entry into the payload handed back to callers.
// Bookkeeping fields (fingerprint, timestamps) are stripped; only result
// data crosses the cache boundary.
func (e *CacheEntry) Result() *AnalysisResult {
	return &AnalysisResult{
		Description:     e.Description,
		ConfidenceScore: e.ConfidenceScore,
		Visual:          e.VisualAnalysis,
		Audio:           e.AudioAnalysis,
	}
}
