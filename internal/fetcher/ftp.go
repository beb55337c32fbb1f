package fetcher

import (
	"context"
	"io"
	"net"
	"net/url"
	"os"
	"path"
	"sort"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FTPOptions configures the FTP fetcher.
type FTPOptions struct {
	Timeout time.Duration
}

// FTPFetcher downloads files from the BKG open-data FTP mirror. Logins
// are anonymous.
type FTPFetcher struct {
	opts FTPOptions
}

// NewFTPFetcher creates a new FTPFetcher with the given options.
func NewFTPFetcher(opts FTPOptions) *FTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	return &FTPFetcher{opts: opts}
}

// parseFTPURL extracts host (with port) and path from an FTP URL.
func parseFTPURL(rawURL string) (host string, p string, err error) {
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

	p = u.Path
	if p == "" {
		return "", "", eris.New("empty path in ftp url")
	}

	return host, p, nil
}

func (f *FTPFetcher) connect(ctx context.Context, host string) (*ftp.ServerConn, error) {
	conn, err := ftp.Dial(host, ftp.DialWithTimeout(f.opts.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrap(err, "ftp dial")
	}
	if err := conn.Login("anonymous", "anonymous@"); err != nil {
		conn.Quit() //nolint:errcheck
		return nil, eris.Wrap(err, "ftp login")
	}
	return conn, nil
}

// ftpConnReader wraps an FTP response and connection so that closing
// the reader also closes the response and disconnects from the server.
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

// Download connects to the FTP server, retrieves the file, and returns
// a reader. The caller must close the returned ReadCloser to release
// the FTP connection.
func (f *FTPFetcher) Download(ctx context.Context, ftpURL string) (io.ReadCloser, error) {
	host, p, err := parseFTPURL(ftpURL)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("ftp: connecting", zap.String("host", host), zap.String("path", p))

	conn, err := f.connect(ctx, host)
	if err != nil {
		return nil, err
	}

	resp, err := conn.Retr(p)
	if err != nil {
		conn.Quit() //nolint:errcheck
		return nil, eris.Wrap(err, "ftp retrieve")
	}

	return &ftpConnReader{resp: resp, conn: conn}, nil
}

// DownloadToFile downloads the FTP URL to a local file. Returns bytes
// written.
func (f *FTPFetcher) DownloadToFile(ctx context.Context, ftpURL string, localPath string) (int64, error) {
	rc, err := f.Download(ctx, ftpURL)
	if err != nil {
		return 0, err
	}
	defer rc.Close() //nolint:errcheck

	file, err := os.Create(localPath)
	if err != nil {
		return 0, eris.Wrap(err, "create file")
	}
	defer file.Close() //nolint:errcheck

	n, err := io.Copy(file, rc)
	if err != nil {
		return n, eris.Wrap(err, "write file")
	}

	return n, nil
}

// ListFiles lists the file names in an FTP directory, sorted
// lexicographically. The BKG mirror versions its grid archives by
// name, so the last entry is the most recent release.
func (f *FTPFetcher) ListFiles(ctx context.Context, dirURL string) ([]string, error) {
	host, p, err := parseFTPURL(dirURL)
	if err != nil {
		return nil, err
	}

	conn, err := f.connect(ctx, host)
	if err != nil {
		return nil, err
	}
	defer conn.Quit() //nolint:errcheck

	entries, err := conn.List(p)
	if err != nil {
		return nil, eris.Wrap(err, "ftp list")
	}

	var names []string
	for _, e := range entries {
		if e.Type == ftp.EntryTypeFile {
			names = append(names, e.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// LatestFile returns the full FTP URL of the lexicographically last
// file in the directory.
func (f *FTPFetcher) LatestFile(ctx context.Context, dirURL string) (string, error) {
	names, err := f.ListFiles(ctx, dirURL)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", eris.Errorf("ftp: no files in %s", dirURL)
	}

	u, err := url.Parse(dirURL)
	if err != nil {
		return "", eris.Wrap(err, "parse ftp url")
	}
	u.Path = path.Join(u.Path, names[len(names)-1])
	return u.String(), nil
}
