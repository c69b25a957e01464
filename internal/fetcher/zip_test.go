package fetcher

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeZip builds a zip archive at path from name->content pairs.
func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	for name, content := range files {
		entry, err := w.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
}

func TestExtractZIP(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "boundary.zip")
	writeZip(t, zipPath, map[string]string{
		"boundary.shp": "shp-bytes",
		"boundary.dbf": "dbf-bytes",
	})

	dest := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(dest, 0o755))

	paths, err := ExtractZIP(zipPath, dest)
	require.NoError(t, err)
	assert.Len(t, paths, 2)

	data, err := os.ReadFile(filepath.Join(dest, "boundary.shp"))
	require.NoError(t, err)
	assert.Equal(t, "shp-bytes", string(data))
}

func TestExtractShapefile(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "boundary.zip")
	writeZip(t, zipPath, map[string]string{
		"city/boundary.shp": "shp",
		"city/boundary.shx": "shx",
		"city/boundary.dbf": "dbf",
		"city/boundary.prj": "prj",
	})

	dest := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(dest, 0o755))

	shp, err := ExtractShapefile(zipPath, dest)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "city", "boundary.shp"), shp)
}

func TestExtractShapefile_NoShp(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "notashapefile.zip")
	writeZip(t, zipPath, map[string]string{"readme.txt": "hi"})

	_, err := ExtractShapefile(zipPath, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no .shp")
}

func TestExtractZIP_RejectsZipSlip(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "evil.zip")
	writeZip(t, zipPath, map[string]string{"../escape.txt": "evil"})

	dest := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(dest, 0o755))

	_, err := ExtractZIP(zipPath, dest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zip slip")
}
