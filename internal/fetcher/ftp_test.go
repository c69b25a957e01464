package fetcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFTPURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		wantHost string
		wantPath string
		wantErr  bool
	}{
		{
			name:     "srtm tile url",
			url:      "ftp://srtm.csi.cgiar.org/SRTM_V41/SRTM_Data_GeoTiff/srtm_39_03.zip",
			wantHost: "srtm.csi.cgiar.org:21",
			wantPath: "/SRTM_V41/SRTM_Data_GeoTiff/srtm_39_03.zip",
		},
		{
			name:     "mirror with explicit port",
			url:      "ftp://dem.example.org:2121/tiles/n47_e015.tif",
			wantHost: "dem.example.org:2121",
			wantPath: "/tiles/n47_e015.tif",
		},
		{
			name:    "http scheme rejected",
			url:     "http://example.com/tile.tif",
			wantErr: true,
		},
		{
			name:    "empty path",
			url:     "ftp://srtm.csi.cgiar.org",
			wantErr: true,
		},
		{
			name:    "invalid url",
			url:     "://bad",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, path, err := parseFTPURL(tt.url)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.wantPath, path)
		})
	}
}

func TestNewFTPFetcher_Defaults(t *testing.T) {
	f := NewFTPFetcher(FTPOptions{})
	assert.Equal(t, 5*time.Minute, f.opts.Timeout)
	assert.Equal(t, "suhi-cli@localhost", f.opts.Email)
	assert.False(t, f.opts.DisableEPSV)
}

func TestDialOptions_EPSVToggle(t *testing.T) {
	ctx := context.Background()

	passive := NewFTPFetcher(FTPOptions{})
	assert.Len(t, passive.dialOptions(ctx), 2)

	active := NewFTPFetcher(FTPOptions{DisableEPSV: true})
	assert.Len(t, active.dialOptions(ctx), 3)
}
