// Package config loads the pipeline configuration from the environment
// once at process start. Every component receives the sections it needs
// through its constructor; nothing reads the environment after Load.
//
// Environment variables (defaults in parentheses):
//
//	PROJECT_ID                    GCP project, required
//	VERTEX_AI_REGION              region for Vertex AI and Workflows (us-central1)
//	FIRESTORE_JOBS_COLLECTION     job records collection (video-analysis-jobs)
//	FIRESTORE_CACHE_COLLECTION    result cache collection (video-analysis-cache)
//	VIDEO_BUCKET                  working bucket for fetched content, required
//	VIDEO_PREFIX                  object prefix inside the bucket (videos)
//	MAX_VIDEO_SIZE_MB             download size cap (500)
//	DOWNLOAD_TIMEOUT              wall-clock bound for one download (300s)
//	MAX_URL_LENGTH                longest accepted source URL (2048)
//	ALLOWED_DOMAINS               CSV allow list, empty allows all
//	BLOCKED_DOMAINS               CSV block list
//	VISUAL_POLL_INTERVAL          visual annotation poll interval (5s)
//	VISUAL_POLL_TIMEOUT           visual annotation poll bound (300s)
//	AUDIO_POLL_INTERVAL           speech recognition poll interval (10s)
//	AUDIO_POLL_TIMEOUT            speech recognition poll bound (300s)
//	SPEECH_LANGUAGE_CODE          primary recognition language (en-US)
//	GEMINI_MODEL                  description model (gemini-1.5-flash)
//	GENERATION_MAX_TOKENS         output token bound (300)
//	GENERATION_TEMPERATURE        sampling temperature (0.7)
//	GENERATION_TIMEOUT            generation call bound (120s)
//	WORKFLOW_ID                   processing workflow (video-analysis-orchestrator)
//	WORKFLOW_LOCATION             workflow region (VERTEX_AI_REGION)
//	ESTIMATED_PROCESSING_SECONDS  completion estimate returned on submit (300)
//	JOB_TTL_DAYS                  job record retention (30)
//	CACHE_TTL_DAYS                cache entry retention (7)
//	CLEANUP_AGE_DAYS              janitor deletion age for terminal jobs (7)
//	CLEANUP_SCHEDULE              janitor cron expression (0 3 * * *)
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the root configuration for all pipeline processes.
type Config struct {
	Project    ProjectConfig
	Firestore  FirestoreConfig
	Storage    StorageConfig
	Fetch      FetchConfig
	Analysis   AnalysisConfig
	Generation GenerationConfig
	API        APIConfig
	Retention  RetentionConfig
}

// ProjectConfig identifies the GCP project and region.
type ProjectConfig struct {
	ProjectID string
	Location  string
}

// FirestoreConfig names the collections backing the job store and cache.
type FirestoreConfig struct {
	JobsCollection  string
	CacheCollection string
}

// StorageConfig names the working bucket for fetched video content.
type StorageConfig struct {
	Bucket string
	Prefix string
}

// FetchConfig bounds the content fetch phase.
type FetchConfig struct {
	MaxVideoSizeMB int64
	Timeout        time.Duration
	MaxURLLength   int
	AllowedDomains []string
	BlockedDomains []string
}

// MaxBytes returns the download cap in bytes.
func (c FetchConfig) MaxBytes() int64 {
	return c.MaxVideoSizeMB * 1024 * 1024
}

// AnalysisConfig bounds the two analyzer poll loops.
type AnalysisConfig struct {
	VisualPollInterval time.Duration
	VisualPollTimeout  time.Duration
	AudioPollInterval  time.Duration
	AudioPollTimeout   time.Duration
	LanguageCode       string
}

// GenerationConfig parameterizes the description model.
type GenerationConfig struct {
	Model           string
	MaxOutputTokens int32
	Temperature     float32
	Timeout         time.Duration
}

// APIConfig parameterizes the public API function.
type APIConfig struct {
	WorkflowID          string
	WorkflowLocation    string
	EstimatedProcessing time.Duration
}

// RetentionConfig drives record expiry and the janitor sweep.
type RetentionConfig struct {
	JobTTL          time.Duration
	CacheTTL        time.Duration
	CleanupAge      time.Duration
	CleanupSchedule string
}

// Load reads the full configuration from the environment and validates it.
func Load() (*Config, error) {
	region := getEnv("VERTEX_AI_REGION", "us-central1")

	cfg := &Config{
		Project: ProjectConfig{
			ProjectID: getEnv("PROJECT_ID", ""),
			Location:  region,
		},
		Firestore: FirestoreConfig{
			JobsCollection:  getEnv("FIRESTORE_JOBS_COLLECTION", "video-analysis-jobs"),
			CacheCollection: getEnv("FIRESTORE_CACHE_COLLECTION", "video-analysis-cache"),
		},
		Storage: StorageConfig{
			Bucket: getEnv("VIDEO_BUCKET", ""),
			Prefix: getEnv("VIDEO_PREFIX", "videos"),
		},
		Fetch: FetchConfig{
			MaxVideoSizeMB: getInt64("MAX_VIDEO_SIZE_MB", 500),
			Timeout:        getDuration("DOWNLOAD_TIMEOUT", 300*time.Second),
			MaxURLLength:   int(getInt64("MAX_URL_LENGTH", 2048)),
			AllowedDomains: getCSV("ALLOWED_DOMAINS"),
			BlockedDomains: getCSV("BLOCKED_DOMAINS"),
		},
		Analysis: AnalysisConfig{
			VisualPollInterval: getDuration("VISUAL_POLL_INTERVAL", 5*time.Second),
			VisualPollTimeout:  getDuration("VISUAL_POLL_TIMEOUT", 300*time.Second),
			AudioPollInterval:  getDuration("AUDIO_POLL_INTERVAL", 10*time.Second),
			AudioPollTimeout:   getDuration("AUDIO_POLL_TIMEOUT", 300*time.Second),
			LanguageCode:       getEnv("SPEECH_LANGUAGE_CODE", "en-US"),
		},
		Generation: GenerationConfig{
			Model:           getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
			MaxOutputTokens: int32(getInt64("GENERATION_MAX_TOKENS", 300)),
			Temperature:     getFloat32("GENERATION_TEMPERATURE", 0.7),
			Timeout:         getDuration("GENERATION_TIMEOUT", 120*time.Second),
		},
		API: APIConfig{
			WorkflowID:          getEnv("WORKFLOW_ID", "video-analysis-orchestrator"),
			WorkflowLocation:    getEnv("WORKFLOW_LOCATION", region),
			EstimatedProcessing: time.Duration(getInt64("ESTIMATED_PROCESSING_SECONDS", 300)) * time.Second,
		},
		Retention: RetentionConfig{
			JobTTL:          time.Duration(getInt64("JOB_TTL_DAYS", 30)) * 24 * time.Hour,
			CacheTTL:        time.Duration(getInt64("CACHE_TTL_DAYS", 7)) * 24 * time.Hour,
			CleanupAge:      time.Duration(getInt64("CLEANUP_AGE_DAYS", 7)) * 24 * time.Hour,
			CleanupSchedule: getEnv("CLEANUP_SCHEDULE", "0 3 * * *"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the invariants the pipeline depends on.
func (c *Config) Validate() error {
	if c.Project.ProjectID == "" {
		return fmt.Errorf("config: PROJECT_ID must be set")
	}
	if c.Storage.Bucket == "" {
		return fmt.Errorf("config: VIDEO_BUCKET must be set")
	}
	if c.Fetch.MaxVideoSizeMB <= 0 {
		return fmt.Errorf("config: MAX_VIDEO_SIZE_MB must be positive, got %d", c.Fetch.MaxVideoSizeMB)
	}
	if c.Analysis.VisualPollInterval <= 0 || c.Analysis.AudioPollInterval <= 0 {
		return fmt.Errorf("config: poll intervals must be positive")
	}
	if c.Analysis.VisualPollTimeout < c.Analysis.VisualPollInterval {
		return fmt.Errorf("config: VISUAL_POLL_TIMEOUT must not be shorter than the poll interval")
	}
	if c.Analysis.AudioPollTimeout < c.Analysis.AudioPollInterval {
		return fmt.Errorf("config: AUDIO_POLL_TIMEOUT must not be shorter than the poll interval")
	}
	if c.Generation.MaxOutputTokens <= 0 {
		return fmt.Errorf("config: GENERATION_MAX_TOKENS must be positive")
	}
	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		return fmt.Errorf("config: GENERATION_TEMPERATURE must be in [0, 2], got %g", c.Generation.Temperature)
	}
	if c.Retention.CacheTTL > c.Retention.JobTTL {
		return fmt.Errorf("config: CACHE_TTL_DAYS must not exceed JOB_TTL_DAYS")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getInt64(key string, fallback int64) int64 {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback
	}
	return v
}

func getFloat32(key string, fallback float32) float32 {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 32)
	if err != nil {
		return fallback
	}
	return float32(v)
}

// getDuration accepts Go duration strings ("45s", "2m") and falls back to
// interpreting a bare integer as seconds.
func getDuration(key string, fallback time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func getCSV(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
