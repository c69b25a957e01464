package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher() *HTTPFetcher {
	return NewHTTPFetcher(HTTPOptions{Timeout: 5 * time.Second, MaxRetries: 3})
}

func TestHTTPFetcher_DownloadToFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "suhi-cli/1.0", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("elevation-tile-bytes"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "dem.tif")
	f := newTestFetcher()

	n, err := f.DownloadToFile(context.Background(), srv.URL+"/dem.tif", path)
	require.NoError(t, err)
	assert.Equal(t, int64(20), n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "elevation-tile-bytes", string(data))
}

func TestHTTPFetcher_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := newTestFetcher()
	body, err := f.Download(context.Background(), srv.URL)
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))
	assert.EqualValues(t, 3, calls.Load())
}

func TestHTTPFetcher_NotFoundIsFatal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := newTestFetcher()
	_, err := f.Download(context.Background(), srv.URL)
	require.Error(t, err)
	// Client errors do not retry.
	assert.EqualValues(t, 1, calls.Load())
}

func TestHTTPFetcher_DownloadIfChanged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte("landuse"))
	}))
	defer srv.Close()

	f := newTestFetcher()
	ctx := context.Background()

	body, etag, changed, err := f.DownloadIfChanged(ctx, srv.URL, "")
	require.NoError(t, err)
	require.True(t, changed)
	assert.Equal(t, `"v1"`, etag)
	_, _ = io.ReadAll(body)
	_ = body.Close()

	body, etag, changed, err = f.DownloadIfChanged(ctx, srv.URL, `"v1"`)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Nil(t, body)
	assert.Equal(t, `"v1"`, etag)
}

func TestAdaptiveLimiter_Bounds(t *testing.T) {
	a := NewAdaptiveLimiter(10, 10)

	for range 20 {
		a.OnSuccess()
	}
	assert.EqualValues(t, 20, a.Limit()) // capped at 2x initial

	for range 20 {
		a.OnRateLimit()
	}
	assert.EqualValues(t, 2.5, a.Limit()) // floored at initial/4
}
