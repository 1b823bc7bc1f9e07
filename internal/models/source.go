package models

import (
	"fmt"
	"net/url"
	"strings"
)

// SourceKind distinguishes how a job's content is obtained.
type SourceKind string

const (
	// SourceURL means the content must be downloaded from a remote URL
	// into the working bucket before analysis.
	SourceURL SourceKind = "url"
	// SourceObject means the content already exists as a bucket object
	// (for example via a direct upload) and only needs to be resolved.
	SourceObject SourceKind = "object"
)

// ContentSource identifies where a job's video comes from. Exactly one
// orchestration path consumes both kinds; the kind only decides how the
// fetch phase obtains the content and whether the run owns the object it
// analyzes.
type ContentSource struct {
	Kind   SourceKind `json:"kind"`
	URL    string     `json:"url,omitempty"`
	Bucket string     `json:"bucket,omitempty"`
	Object string     `json:"object,omitempty"`
}

// URLSource builds a source for a remote video URL.
func URLSource(rawURL string) ContentSource {
	return ContentSource{Kind: SourceURL, URL: rawURL}
}

// ObjectSource builds a source for a pre-uploaded bucket object.
func ObjectSource(bucket, object string) ContentSource {
	return ContentSource{Kind: SourceObject, Bucket: bucket, Object: object}
}

// Ref returns the canonical reference string for the source. It is the
// value persisted on the job record and the sole input to cache
// fingerprinting, so its form must stay stable.
func (s ContentSource) Ref() string {
	if s.Kind == SourceObject {
		return fmt.Sprintf("gs://%s/%s", s.Bucket, s.Object)
	}
	return s.URL
}

// streamingHosts are the watch-page domains treated as streaming-platform
// sources rather than direct file URLs.
var streamingHosts = []string{
	"youtube.com",
	"youtu.be",
	"vimeo.com",
	"twitch.tv",
}

// IsStreamingPlatformURL reports whether the reference points at a known
// streaming platform, matched by host suffix.
func IsStreamingPlatformURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range streamingHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}
