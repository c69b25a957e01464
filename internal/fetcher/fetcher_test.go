package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloader_HTTPScheme(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("dem-bytes"))
	}))
	defer srv.Close()

	d := NewDownloader()
	dest := filepath.Join(t.TempDir(), "elevation", "dem.tif")

	n, err := d.DownloadToFile(context.Background(), srv.URL+"/dem.tif", dest)
	require.NoError(t, err)
	assert.Equal(t, int64(len("dem-bytes")), n)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "dem-bytes", string(data))
}

func TestDownloader_RejectsUnknownScheme(t *testing.T) {
	d := NewDownloader()

	_, err := d.DownloadToFile(context.Background(), "gopher://example.com/dem.tif", t.TempDir()+"/dem.tif")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported input url scheme")
}
