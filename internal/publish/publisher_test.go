package publish

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jkmedia/shortscout/internal/shorts"
)

type stubStore struct {
	mu        sync.Mutex
	published map[string]time.Time
	failWith  error
}

func (s *stubStore) Upsert(context.Context, shorts.Candidate) (bool, error) { return false, nil }
func (s *stubStore) BackfillDuration(context.Context, string, int) error    { return nil }
func (s *stubStore) SelectPending(context.Context, []shorts.Partition) ([]shorts.Candidate, error) {
	return nil, nil
}
func (s *stubStore) Close() {}

func (s *stubStore) MarkPublished(_ context.Context, url string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	if s.published == nil {
		s.published = map[string]time.Time{}
	}
	s.published[url] = at
	return nil
}

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

func writeArtifacts(t *testing.T) shorts.Acquisition {
	t.Helper()
	dir := t.TempDir()
	media := filepath.Join(dir, "abc123.mp4")
	thumb := filepath.Join(dir, "abc123.jpg")
	require.NoError(t, os.WriteFile(media, []byte("video bytes"), 0o644))
	require.NoError(t, os.WriteFile(thumb, []byte("jpeg bytes"), 0o644))
	return shorts.Acquisition{MediaPath: media, ThumbnailPath: thumb, Strategy: shorts.AuthFallback}
}

func testCandidate() shorts.Candidate {
	return shorts.Candidate{
		URL:       "https://www.youtube.com/watch?v=abc123",
		Title:     "a short",
		Partition: shorts.Partition{Language: 1, Category: 2},
		Duration:  65,
	}
}

func TestPublishSuccessMarksAndCleans(t *testing.T) {
	t.Parallel()

	var gotFields map[string]string
	var gotFiles map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotFields = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			gotFields[k] = v[0]
		}
		gotFiles = map[string]string{}
		for k, fhs := range r.MultipartForm.File {
			gotFiles[k] = fhs[0].Header.Get("Content-Type")
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	store := &stubStore{}
	now := time.Unix(1700000000, 0).UTC()
	pub, err := New(Config{Endpoint: srv.URL}, store, fixedClock{at: now}, zap.NewNop())
	require.NoError(t, err)

	acq := writeArtifacts(t)
	cand := testCandidate()
	require.NoError(t, pub.Publish(context.Background(), cand, acq))

	require.Equal(t, map[string]string{
		"cliente":       "3",
		"categoria":     "2",
		"lingua":        "1",
		"url_originale": cand.URL,
		"lunghezza":     "65",
	}, gotFields)
	require.Equal(t, "video/mp4", gotFiles["file"])
	require.Equal(t, "image/jpeg", gotFiles["image"])

	require.Equal(t, now, store.published[cand.URL])
	require.NoFileExists(t, acq.MediaPath)
	require.NoFileExists(t, acq.ThumbnailPath)
}

func TestPublishNon200LeavesPendingButCleans(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	store := &stubStore{}
	pub, err := New(Config{Endpoint: srv.URL}, store, fixedClock{at: time.Now()}, zap.NewNop())
	require.NoError(t, err)

	acq := writeArtifacts(t)
	err = pub.Publish(context.Background(), testCandidate(), acq)
	require.Error(t, err)
	require.Contains(t, err.Error(), "429")

	require.Empty(t, store.published)
	require.NoFileExists(t, acq.MediaPath)
	require.NoFileExists(t, acq.ThumbnailPath)
}

func TestPublishTransportErrorCleans(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	srv.Close() // connection refused from here on

	store := &stubStore{}
	pub, err := New(Config{Endpoint: srv.URL}, store, fixedClock{at: time.Now()}, zap.NewNop())
	require.NoError(t, err)

	acq := writeArtifacts(t)
	require.Error(t, pub.Publish(context.Background(), testCandidate(), acq))
	require.NoFileExists(t, acq.MediaPath)
	require.NoFileExists(t, acq.ThumbnailPath)
}

func TestPublishMissingMediaFileCleansThumbnail(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	pub, err := New(Config{Endpoint: srv.URL}, &stubStore{}, fixedClock{at: time.Now()}, zap.NewNop())
	require.NoError(t, err)

	acq := writeArtifacts(t)
	require.NoError(t, os.Remove(acq.MediaPath))

	require.Error(t, pub.Publish(context.Background(), testCandidate(), acq))
	require.NoFileExists(t, acq.ThumbnailPath)
}

func TestPublishMarkFailureSurfaces(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	store := &stubStore{failWith: shorts.ErrNotFound}
	pub, err := New(Config{Endpoint: srv.URL}, store, fixedClock{at: time.Now()}, zap.NewNop())
	require.NoError(t, err)

	acq := writeArtifacts(t)
	err = pub.Publish(context.Background(), testCandidate(), acq)
	require.Error(t, err)
	require.True(t, errors.Is(err, shorts.ErrNotFound))
	require.NoFileExists(t, acq.MediaPath)
	require.NoFileExists(t, acq.ThumbnailPath)
}

func TestNewRequiresEndpoint(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, &stubStore{}, fixedClock{}, zap.NewNop())
	require.True(t, errors.Is(err, shorts.ErrEndpointMissing))
}
