package main

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/LW1989/red-data-database/internal/fetcher"
)

var (
	fetchDir       string
	fetchExtract   bool
	fetchIfChanged bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>...",
	Short: "Download census source archives over HTTP or FTP",
	Long:  "Downloads one or more source archives into the download directory. HTTP downloads can be made conditional on the server ETag; ZIP archives are optionally unpacked next to the download.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := fetchDir
		if dir == "" {
			dir = cfg.Fetch.Dir
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrap(err, "create download dir")
		}

		for _, rawURL := range args {
			if err := fetchOne(cmd.Context(), rawURL, dir); err != nil {
				return err
			}
		}
		return nil
	},
}

func fetchOne(ctx context.Context, rawURL, dir string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return eris.Wrapf(err, "parse url %s", rawURL)
	}
	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		return eris.Errorf("cannot derive a file name from %s", rawURL)
	}
	dest := filepath.Join(dir, name)
	log := zap.L().With(zap.String("url", rawURL), zap.String("dest", dest))

	switch u.Scheme {
	case "http", "https":
		if err := fetchHTTP(ctx, rawURL, dest, log); err != nil {
			return err
		}
	case "ftp":
		ftpf := fetcher.NewFTPFetcher(fetcher.FTPOptions{
			Timeout: time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		})
		n, err := ftpf.DownloadToFile(ctx, rawURL, dest)
		if err != nil {
			return eris.Wrapf(err, "fetch %s", rawURL)
		}
		log.Info("downloaded", zap.Int64("bytes", n))
	default:
		return eris.Errorf("unsupported scheme %q in %s", u.Scheme, rawURL)
	}

	if fetchExtract && strings.EqualFold(filepath.Ext(dest), ".zip") {
		extractDir := strings.TrimSuffix(dest, filepath.Ext(dest))
		files, err := fetcher.ExtractZIP(dest, extractDir)
		if err != nil {
			return eris.Wrapf(err, "extract %s", dest)
		}
		log.Info("extracted", zap.String("dir", extractDir), zap.Int("files", len(files)))
	}

	return nil
}

func fetchHTTP(ctx context.Context, rawURL, dest string, log *zap.Logger) error {
	httpf := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		Timeout:      time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		RateLimiters: fetcher.DefaultRateLimiters(),
	})

	if !fetchIfChanged {
		n, err := httpf.DownloadToFile(ctx, rawURL, dest)
		if err != nil {
			return eris.Wrapf(err, "fetch %s", rawURL)
		}
		log.Info("downloaded", zap.Int64("bytes", n))
		return nil
	}

	body, newETag, changed, err := httpf.DownloadIfChanged(ctx, rawURL, readETag(dest))
	if err != nil {
		return eris.Wrapf(err, "fetch %s", rawURL)
	}
	if !changed {
		log.Info("unchanged, skipping download")
		return nil
	}
	defer body.Close() //nolint:errcheck

	file, err := os.Create(dest)
	if err != nil {
		return eris.Wrap(err, "create file")
	}
	defer file.Close() //nolint:errcheck

	n, err := io.Copy(file, body)
	if err != nil {
		return eris.Wrap(err, "write file")
	}
	if newETag != "" {
		writeETag(dest, newETag)
	}
	log.Info("downloaded", zap.Int64("bytes", n), zap.String("etag", newETag))
	return nil
}

// readETag returns the ETag recorded for a previous download of dest,
// or empty when there is none.
func readETag(dest string) string {
	data, err := os.ReadFile(dest + ".etag")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// writeETag records the ETag next to the downloaded file. Failures are
// logged only: the worst case is a redundant re-download next time.
func writeETag(dest, etag string) {
	if err := os.WriteFile(dest+".etag", []byte(etag+"\n"), 0o644); err != nil {
		zap.L().Warn("etag sidecar write failed", zap.String("dest", dest), zap.Error(err))
	}
}

func init() {
	fetchCmd.Flags().StringVar(&fetchDir, "dir", "", "download directory (default from config)")
	fetchCmd.Flags().BoolVar(&fetchExtract, "extract", false, "unpack ZIP archives after download")
	fetchCmd.Flags().BoolVar(&fetchIfChanged, "if-changed", false, "skip HTTP downloads whose ETag has not changed")
	rootCmd.AddCommand(fetchCmd)
}
