// Package fetcher downloads the pipeline's static inputs: elevation
// models, land-use extracts and boundary archives, over HTTP or FTP.
package fetcher

import (
	"context"
	"net/url"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// Downloader dispatches input URLs to the HTTP or FTP fetcher by
// scheme, so a mirror list can mix both transports.
type Downloader struct {
	HTTP *HTTPFetcher
	FTP  *FTPFetcher
}

// NewDownloader builds a Downloader with the default geodata-mirror
// rate limiters and DEM-sized FTP timeouts.
func NewDownloader() *Downloader {
	return &Downloader{
		HTTP: NewHTTPFetcher(HTTPOptions{RateLimiters: DefaultRateLimiters()}),
		FTP:  NewFTPFetcher(FTPOptions{}),
	}
}

// DownloadToFile fetches rawURL into path, choosing the transport from
// the URL scheme and creating parent directories as needed. Returns
// bytes written.
func (d *Downloader) DownloadToFile(ctx context.Context, rawURL, path string) (int64, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0, eris.Wrapf(err, "parse input url %s", rawURL)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, eris.Wrapf(err, "create dir for %s", path)
	}
	switch u.Scheme {
	case "http", "https":
		return d.HTTP.DownloadToFile(ctx, rawURL, path)
	case "ftp":
		return d.FTP.DownloadToFile(ctx, rawURL, path)
	}
	return 0, eris.Errorf("unsupported input url scheme %q", u.Scheme)
}
