package fetcher

import (
	"context"
	"io"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Public elevation mirrors (CGIAR SRTM, national mapping agencies)
// serve multi-hundred-megabyte DEM tiles over anonymous FTP, so the
// transfer timeout is sized for tiles, not API calls.
const defaultFTPTimeout = 5 * time.Minute

// anonymousUser is the login the public geodata mirrors expect.
const anonymousUser = "anonymous"

// FTPOptions configures the FTP fetcher.
type FTPOptions struct {
	// Timeout bounds dialing and each tile transfer.
	Timeout time.Duration
	// Email is sent as the anonymous-login password; the mirrors ask
	// for a contact address there.
	Email string
	// DisableEPSV falls back to active transfer mode for mirrors whose
	// passive mode is unreachable.
	DisableEPSV bool
}

// FTPFetcher downloads DEM tiles from anonymous FTP mirrors.
type FTPFetcher struct {
	opts FTPOptions
}

// NewFTPFetcher creates an FTPFetcher with the given options.
func NewFTPFetcher(opts FTPOptions) *FTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = defaultFTPTimeout
	}
	if opts.Email == "" {
		opts.Email = "suhi-cli@localhost"
	}
	return &FTPFetcher{opts: opts}
}

// dialOptions assembles the connection options for one mirror dial.
func (f *FTPFetcher) dialOptions(ctx context.Context) []ftp.DialOption {
	opts := []ftp.DialOption{
		ftp.DialWithTimeout(f.opts.Timeout),
		ftp.DialWithContext(ctx),
	}
	if f.opts.DisableEPSV {
		opts = append(opts, ftp.DialWithDisabledEPSV(true))
	}
	return opts
}

// parseFTPURL extracts host (with port) and tile path from an FTP URL.
func parseFTPURL(rawURL string) (host string, path string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", eris.Wrap(err, "parse ftp url")
	}
	if u.Scheme != "ftp" {
		return "", "", eris.Errorf("expected ftp scheme, got %q", u.Scheme)
	}

	host = u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}

	path = u.Path
	if path == "" {
		return "", "", eris.New("empty path in ftp url")
	}

	return host, path, nil
}

// ftpConnReader ties a tile transfer to its control connection so that
// closing the reader also releases the mirror connection.
type ftpConnReader struct {
	resp *ftp.Response
	conn *ftp.ServerConn
}

func (r *ftpConnReader) Read(p []byte) (int, error) {
	return r.resp.Read(p)
}

func (r *ftpConnReader) Close() error {
	respErr := r.resp.Close()
	quitErr := r.conn.Quit()
	if respErr != nil {
		return eris.Wrap(respErr, "close ftp response")
	}
	if quitErr != nil {
		return eris.Wrap(quitErr, "quit ftp connection")
	}
	return nil
}

// Download logs into the mirror anonymously and retrieves the tile.
// The caller must close the returned ReadCloser to release the
// connection.
func (f *FTPFetcher) Download(ctx context.Context, ftpURL string) (io.ReadCloser, error) {
	host, path, err := parseFTPURL(ftpURL)
	if err != nil {
		return nil, err
	}

	log := zap.L().With(zap.String("component", "fetcher"))
	log.Debug("dialing elevation mirror", zap.String("host", host), zap.String("tile", path))

	conn, err := ftp.Dial(host, f.dialOptions(ctx)...)
	if err != nil {
		return nil, eris.Wrapf(err, "dial mirror %s", host)
	}

	if err := conn.Login(anonymousUser, f.opts.Email); err != nil {
		conn.Quit()
		return nil, eris.Wrapf(err, "anonymous login to %s", host)
	}

	resp, err := conn.Retr(path)
	if err != nil {
		conn.Quit()
		return nil, eris.Wrapf(err, "retrieve tile %s", path)
	}

	return &ftpConnReader{resp: resp, conn: conn}, nil
}

// DownloadToFile retrieves the tile into a local file, creating parent
// directories as needed. Returns bytes written.
func (f *FTPFetcher) DownloadToFile(ctx context.Context, ftpURL string, path string) (int64, error) {
	rc, err := f.Download(ctx, ftpURL)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, eris.Wrapf(err, "create dir for %s", path)
	}
	file, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrap(err, "create file")
	}
	defer file.Close()

	n, err := io.Copy(file, rc)
	if err != nil {
		return n, eris.Wrap(err, "write file")
	}

	return n, nil
}
