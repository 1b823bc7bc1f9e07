package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skylens/videopulse/internal/config"
	"github.com/skylens/videopulse/internal/models"
)

type fakeStore struct {
	mu         sync.Mutex
	uploads    map[string][]byte
	failStores int
	sizes      map[string]int64
	deletes    []string
	deleteErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{uploads: map[string][]byte{}, sizes: map[string]int64{}}
}

func (s *fakeStore) key(bucket, object string) string { return bucket + "/" + object }

func (s *fakeStore) Upload(_ context.Context, bucket, object string, r io.Reader) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failStores > 0 {
		s.failStores--
		return 0, fmt.Errorf("transient upload failure")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	s.uploads[s.key(bucket, object)] = data
	return int64(len(data)), nil
}

func (s *fakeStore) Delete(_ context.Context, bucket, object string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deletes = append(s.deletes, s.key(bucket, object))
	return nil
}

func (s *fakeStore) Size(_ context.Context, bucket, object string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	size, ok := s.sizes[s.key(bucket, object)]
	if !ok {
		return 0, fmt.Errorf("object does not exist")
	}
	return size, nil
}

func testConfigs() (config.FetchConfig, config.StorageConfig) {
	return config.FetchConfig{
			MaxVideoSizeMB: 1,
			Timeout:        10 * time.Second,
			MaxURLLength:   2048,
		}, config.StorageConfig{
			Bucket: "work-bucket",
			Prefix: "videos",
		}
}

func TestFetchURLDownloadsAndStages(t *testing.T) {
	body := bytes.Repeat([]byte("v"), 1024)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer server.Close()

	store := newFakeStore()
	fetchCfg, storageCfg := testConfigs()
	f := NewFetcher(store, fetchCfg, storageCfg)

	content, err := f.Fetch(context.Background(), "job-1", models.URLSource(server.URL+"/clip.webm"))
	require.NoError(t, err)

	assert.Equal(t, "work-bucket", content.Bucket)
	assert.Equal(t, "videos/job-1.webm", content.Object)
	assert.Equal(t, int64(len(body)), content.Size)
	assert.True(t, content.Owned)
	assert.Equal(t, "gs://work-bucket/videos/job-1.webm", content.URI())
	assert.Equal(t, body, store.uploads["work-bucket/videos/job-1.webm"])
}

func TestFetchURLRejectsDeclaredOversize(t *testing.T) {
	body := bytes.Repeat([]byte("v"), 2*1024*1024)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.Write(body)
	}))
	defer server.Close()

	store := newFakeStore()
	fetchCfg, storageCfg := testConfigs()
	f := NewFetcher(store, fetchCfg, storageCfg)

	_, err := f.Fetch(context.Background(), "job-2", models.URLSource(server.URL+"/big.mp4"))
	require.ErrorIs(t, err, ErrContentTooLarge)
	assert.Empty(t, store.uploads)
}

func TestFetchURLRejectsStreamedOversize(t *testing.T) {
	// Stream past the cap without a Content-Length header.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		chunk := bytes.Repeat([]byte("v"), 256*1024)
		for i := 0; i < 5; i++ {
			w.Write(chunk)
			flusher.Flush()
		}
	}))
	defer server.Close()

	store := newFakeStore()
	fetchCfg, storageCfg := testConfigs()
	f := NewFetcher(store, fetchCfg, storageCfg)

	_, err := f.Fetch(context.Background(), "job-3", models.URLSource(server.URL+"/big.mp4"))
	require.ErrorIs(t, err, ErrContentTooLarge)
	assert.Empty(t, store.uploads)
}

func TestFetchURLSurfacesHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	store := newFakeStore()
	fetchCfg, storageCfg := testConfigs()
	f := NewFetcher(store, fetchCfg, storageCfg)

	_, err := f.Fetch(context.Background(), "job-4", models.URLSource(server.URL+"/missing.mp4"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestFetchURLRetriesUpload(t *testing.T) {
	body := []byte("retry me")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer server.Close()

	store := newFakeStore()
	store.failStores = 1
	fetchCfg, storageCfg := testConfigs()
	f := NewFetcher(store, fetchCfg, storageCfg)

	content, err := f.Fetch(context.Background(), "job-5", models.URLSource(server.URL+"/clip.mp4"))
	require.NoError(t, err)
	assert.Equal(t, body, store.uploads["work-bucket/"+content.Object])
}

func TestFetchObjectSource(t *testing.T) {
	store := newFakeStore()
	store.sizes["uploads/raw.mp4"] = 2048
	fetchCfg, storageCfg := testConfigs()
	f := NewFetcher(store, fetchCfg, storageCfg)

	content, err := f.Fetch(context.Background(), "job-6", models.ObjectSource("uploads", "raw.mp4"))
	require.NoError(t, err)
	assert.Equal(t, int64(2048), content.Size)
	assert.False(t, content.Owned)
	assert.Equal(t, "gs://uploads/raw.mp4", content.URI())
}

func TestFetchObjectSourceMissing(t *testing.T) {
	store := newFakeStore()
	fetchCfg, storageCfg := testConfigs()
	f := NewFetcher(store, fetchCfg, storageCfg)

	_, err := f.Fetch(context.Background(), "job-7", models.ObjectSource("uploads", "gone.mp4"))
	require.ErrorIs(t, err, ErrInvalidReference)
}

func TestFetchObjectSourceOversize(t *testing.T) {
	store := newFakeStore()
	store.sizes["uploads/huge.mp4"] = 10 * 1024 * 1024
	fetchCfg, storageCfg := testConfigs()
	f := NewFetcher(store, fetchCfg, storageCfg)

	_, err := f.Fetch(context.Background(), "job-8", models.ObjectSource("uploads", "huge.mp4"))
	require.ErrorIs(t, err, ErrContentTooLarge)
}

func TestCleanupDeletesOnlyOwnedContent(t *testing.T) {
	store := newFakeStore()
	fetchCfg, storageCfg := testConfigs()
	f := NewFetcher(store, fetchCfg, storageCfg)

	f.Cleanup(context.Background(), &Content{Bucket: "work-bucket", Object: "videos/a.mp4", Owned: true})
	f.Cleanup(context.Background(), &Content{Bucket: "uploads", Object: "raw.mp4", Owned: false})
	f.Cleanup(context.Background(), nil)

	assert.Equal(t, []string{"work-bucket/videos/a.mp4"}, store.deletes)
}

func TestCleanupSwallowsDeleteFailure(t *testing.T) {
	store := newFakeStore()
	store.deleteErr = fmt.Errorf("backend unavailable")
	fetchCfg, storageCfg := testConfigs()
	f := NewFetcher(store, fetchCfg, storageCfg)

	f.Cleanup(context.Background(), &Content{Bucket: "b", Object: "o", Owned: true})
}

func TestValidateURL(t *testing.T) {
	cfg := config.FetchConfig{MaxURLLength: 50}

	assert.NoError(t, ValidateURL(cfg, "https://example.com/video.mp4"))
	assert.NoError(t, ValidateURL(cfg, "http://example.com/video.mp4"))

	assert.ErrorIs(t, ValidateURL(cfg, ""), ErrInvalidReference)
	assert.ErrorIs(t, ValidateURL(cfg, "   "), ErrInvalidReference)
	assert.ErrorIs(t, ValidateURL(cfg, "ftp://example.com/v.mp4"), ErrInvalidReference)
	assert.ErrorIs(t, ValidateURL(cfg, "https:///nohost.mp4"), ErrInvalidReference)
	assert.ErrorIs(t, ValidateURL(cfg, "https://example.com/"+string(bytes.Repeat([]byte("a"), 60))), ErrInvalidReference)
}

func TestValidateURLDomainPolicy(t *testing.T) {
	cfg := config.FetchConfig{
		MaxURLLength:   2048,
		AllowedDomains: []string{"example.com"},
		BlockedDomains: []string{"bad.example.com"},
	}

	assert.NoError(t, ValidateURL(cfg, "https://example.com/v.mp4"))
	assert.NoError(t, ValidateURL(cfg, "https://cdn.example.com/v.mp4"))
	assert.ErrorIs(t, ValidateURL(cfg, "https://bad.example.com/v.mp4"), ErrDomainNotAllowed)
	assert.ErrorIs(t, ValidateURL(cfg, "https://other.org/v.mp4"), ErrDomainNotAllowed)
}

func TestObjectExt(t *testing.T) {
	assert.Equal(t, ".webm", objectExt("https://example.com/path/clip.webm?sig=abc"))
	assert.Equal(t, ".mp4", objectExt("https://example.com/stream"))
	assert.Equal(t, ".mp4", objectExt("https://example.com/file.superlongext"))
	assert.Equal(t, ".mov", objectExt("https://example.com/A/B/C.MOV"))
}
