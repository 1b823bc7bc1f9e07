// Package fetch resolves a job's content source into an object in the
// working bucket. A URL source is downloaded, size-checked and uploaded; an
// object source already in the bucket is only verified. Fetch failures are
// the one analysis-phase error that is fatal to a job.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/skylens/videopulse/internal/config"
	"github.com/skylens/videopulse/internal/models"
)

var (
	// ErrInvalidReference marks a source reference that can never resolve.
	ErrInvalidReference = errors.New("invalid source reference")
	// ErrContentTooLarge marks content over the configured size cap.
	ErrContentTooLarge = errors.New("content exceeds size limit")
	// ErrDomainNotAllowed marks a URL whose host fails the domain policy.
	ErrDomainNotAllowed = errors.New("domain not allowed")
)

// Content is the resolved analyzable media for one run.
type Content struct {
	Bucket string
	Object string
	Size   int64
	// Owned is true when this run created the object; only owned content
	// is deleted during cleanup.
	Owned bool
}

// URI returns the gs:// form consumed by the analyzers.
func (c *Content) URI() string {
	return fmt.Sprintf("gs://%s/%s", c.Bucket, c.Object)
}

// ObjectStore is the blob-store surface the fetcher needs.
type ObjectStore interface {
	Upload(ctx context.Context, bucket, object string, r io.Reader) (int64, error)
	Delete(ctx context.Context, bucket, object string) error
	Size(ctx context.Context, bucket, object string) (int64, error)
}

// Fetcher resolves content sources into working-bucket objects.
type Fetcher struct {
	httpClient *http.Client
	store      ObjectStore
	cfg        config.FetchConfig
	bucket     string
	prefix     string
}

// NewFetcher builds a fetcher on the given object store. The HTTP client
// carries the overall download wall-clock bound.
func NewFetcher(store ObjectStore, fetchCfg config.FetchConfig, storageCfg config.StorageConfig) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{Timeout: fetchCfg.Timeout},
		store:      store,
		cfg:        fetchCfg,
		bucket:     storageCfg.Bucket,
		prefix:     storageCfg.Prefix,
	}
}

// Fetch resolves the source for one job. URL sources are downloaded to a
// temp file, then uploaded with retries; object sources are verified in
// place and never owned by the run.
func (f *Fetcher) Fetch(ctx context.Context, jobID string, src models.ContentSource) (*Content, error) {
	switch src.Kind {
	case models.SourceObject:
		return f.resolveObject(ctx, src)
	case models.SourceURL:
		return f.download(ctx, jobID, src.URL)
	default:
		return nil, fmt.Errorf("%w: unknown source kind %q", ErrInvalidReference, src.Kind)
	}
}

// Cleanup removes transient content created by this run. Best-effort: a
// failed delete is logged, never returned, so it cannot mask the outcome
// of the run that owns it.
func (f *Fetcher) Cleanup(ctx context.Context, c *Content) {
	if c == nil || !c.Owned {
		return
	}
	if err := f.store.Delete(ctx, c.Bucket, c.Object); err != nil {
		slog.Warn("Failed to clean up transient content.", "gcsObject", c.Object, "error", err)
		return
	}
	slog.Info("Cleaned up transient content.", "gcsObject", c.Object)
}

func (f *Fetcher) resolveObject(ctx context.Context, src models.ContentSource) (*Content, error) {
	if src.Bucket == "" || src.Object == "" {
		return nil, fmt.Errorf("%w: object source requires bucket and object", ErrInvalidReference)
	}
	size, err := f.store.Size(ctx, src.Bucket, src.Object)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot resolve gs://%s/%s: %v", ErrInvalidReference, src.Bucket, src.Object, err)
	}
	if size > f.cfg.MaxBytes() {
		return nil, fmt.Errorf("%w: gs://%s/%s is %d bytes, cap is %d", ErrContentTooLarge, src.Bucket, src.Object, size, f.cfg.MaxBytes())
	}
	return &Content{Bucket: src.Bucket, Object: src.Object, Size: size, Owned: false}, nil
}

func (f *Fetcher) download(ctx context.Context, jobID, rawURL string) (*Content, error) {
	if err := ValidateURL(f.cfg, rawURL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download %s: unexpected status %d", rawURL, resp.StatusCode)
	}
	maxBytes := f.cfg.MaxBytes()
	if resp.ContentLength > maxBytes {
		return nil, fmt.Errorf("%w: content-length %d, cap is %d", ErrContentTooLarge, resp.ContentLength, maxBytes)
	}

	tempFile, err := os.CreateTemp("", "videopulse-*"+objectExt(rawURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		tempFile.Close()
		os.Remove(tempFile.Name())
	}()

	// Copy one byte past the cap so an undeclared oversized body is
	// detected without reading it to the end.
	n, err := io.Copy(tempFile, io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", rawURL, err)
	}
	if n > maxBytes {
		return nil, fmt.Errorf("%w: body exceeds cap of %d bytes", ErrContentTooLarge, maxBytes)
	}

	object := f.objectName(jobID, rawURL)
	size, err := f.uploadFile(ctx, tempFile.Name(), object)
	if err != nil {
		return nil, fmt.Errorf("failed to stage downloaded content: %w", err)
	}
	slog.Info("Fetched source content.", "url", rawURL, "gcsObject", object, "sizeBytes", size)
	return &Content{Bucket: f.bucket, Object: object, Size: size, Owned: true}, nil
}

// uploadFile uploads a local file with retries and exponential backoff,
// reopening the file for each attempt.
func (f *Fetcher) uploadFile(ctx context.Context, localPath, destObject string) (int64, error) {
	const maxRetries = 4
	var backoff = 1 * time.Second
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		size, err := func() (int64, error) {
			localFile, err := os.Open(localPath)
			if err != nil {
				return 0, fmt.Errorf("could not open local file %s: %w", localPath, err)
			}
			defer localFile.Close()

			writeCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
			defer cancel()

			return f.store.Upload(writeCtx, f.bucket, destObject, localFile)
		}()

		if err == nil {
			return size, nil
		}

		lastErr = err
		slog.Warn(
			"Upload failed, will retry.",
			"gcsObject", destObject,
			"attempt", i+1,
			"maxRetries", maxRetries,
			"backoff", backoff.String(),
			"error", err,
		)

		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			slog.Error("Context cancelled during backoff. Aborting retries.", "gcsObject", destObject, "error", ctx.Err())
			return 0, ctx.Err()
		}
	}
	slog.Error("Upload failed after all retries.", "gcsObject", destObject, "error", lastErr)
	return 0, fmt.Errorf("upload for %s failed after all retries: %w", destObject, lastErr)
}

var extPattern = regexp.MustCompile(`^\.[a-z0-9]{1,5}$`)

func objectExt(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ".mp4"
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if !extPattern.MatchString(ext) {
		return ".mp4"
	}
	return ext
}

func (f *Fetcher) objectName(jobID, rawURL string) string {
	return path.Join(f.prefix, jobID+objectExt(rawURL))
}

// ValidateURL applies the submission URL policy: scheme, host, length and
// domain lists. The API layer uses it to reject bad references before any
// job is created.
func ValidateURL(cfg config.FetchConfig, rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return fmt.Errorf("%w: empty URL", ErrInvalidReference)
	}
	if cfg.MaxURLLength > 0 && len(rawURL) > cfg.MaxURLLength {
		return fmt.Errorf("%w: URL longer than %d characters", ErrInvalidReference, cfg.MaxURLLength)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidReference, u.Scheme)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidReference)
	}

	host := strings.ToLower(u.Hostname())
	for _, blocked := range cfg.BlockedDomains {
		if matchesDomain(host, blocked) {
			return fmt.Errorf("%w: %s is blocked", ErrDomainNotAllowed, host)
		}
	}
	if len(cfg.AllowedDomains) > 0 {
		for _, allowed := range cfg.AllowedDomains {
			if matchesDomain(host, allowed) {
				return nil
			}
		}
		return fmt.Errorf("%w: %s is not on the allow list", ErrDomainNotAllowed, host)
	}
	return nil
}

func matchesDomain(host, domain string) bool {
	domain = strings.ToLower(strings.TrimSpace(domain))
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// GCSObjectStore implements ObjectStore on a Cloud Storage client.
type GCSObjectStore struct {
	client *storage.Client
}

// NewGCSObjectStore wraps a storage client.
func NewGCSObjectStore(client *storage.Client) *GCSObjectStore {
	return &GCSObjectStore{client: client}
}

func (s *GCSObjectStore) Upload(ctx context.Context, bucket, object string, r io.Reader) (int64, error) {
	w := s.client.Bucket(bucket).Object(object).NewWriter(ctx)
	n, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return 0, fmt.Errorf("io.Copy to GCS failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("failed to close GCS writer (finalize upload): %w", err)
	}
	return n, nil
}

func (s *GCSObjectStore) Delete(ctx context.Context, bucket, object string) error {
	err := s.client.Bucket(bucket).Object(object).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete gs://%s/%s: %w", bucket, object, err)
	}
	return nil
}

func (s *GCSObjectStore) Size(ctx context.Context, bucket, object string) (int64, error) {
	attrs, err := s.client.Bucket(bucket).Object(object).Attrs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to stat gs://%s/%s: %w", bucket, object, err)
	}
	return attrs.Size, nil
}
