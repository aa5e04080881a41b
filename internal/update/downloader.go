package update

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultChunkSize is the read/write unit of the download loop.
const DefaultChunkSize = 8 * 1024

// ErrCancelled is returned when the download context is cancelled mid-transfer.
var ErrCancelled = errors.New("download cancelled")

// Fetcher streams release packages to disk.
type Fetcher struct {
	client    *http.Client
	chunkSize int
	userAgent string
	now       func() time.Time
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithFetcherHTTPClient sets a custom HTTP client for the fetcher.
func WithFetcherHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.client = client
	}
}

// WithChunkSize sets the read buffer size. Values <= 0 are ignored.
func WithChunkSize(size int) FetcherOption {
	return func(f *Fetcher) {
		if size > 0 {
			f.chunkSize = size
		}
	}
}

// WithFetcherUserAgent sets the User-Agent header.
func WithFetcherUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// NewFetcher creates a new fetcher.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client: &http.Client{
			Timeout: 0, // packages can be large; cancellation goes through ctx
		},
		chunkSize: DefaultChunkSize,
		userAgent: "upkeep",
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Download streams url into dst, creating dst's parent directory if needed.
//
// onProgress is invoked after every chunk is written. The reported rate is
// cumulative bytes over elapsed time since the transfer started.
//
// If ctx is cancelled between chunks the partial file is removed and an error
// wrapping ErrCancelled is returned. Any other mid-stream failure leaves the
// partial file in place; callers must not treat it as valid.
func (f *Fetcher) Download(ctx context.Context, url, dst string, onProgress ProgressFunc) (err error) {
	log.Debugf("starting download from %s", url)

	if dir := filepath.Dir(dst); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create download directory: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/octet-stream")
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		}
		return &NetworkError{Op: "download", URL: url, Err: err}
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			log.Warnf("error closing response body: %v", cerr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return &NetworkError{
			Op:  "download",
			URL: url,
			Err: fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode),
		}
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create destination file %q: %w", dst, err)
	}
	cancelled := false
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", dst, cerr)
		}
		if cancelled {
			if rerr := os.Remove(dst); rerr != nil && !os.IsNotExist(rerr) {
				log.Warnf("failed to remove partial download %s: %v", dst, rerr)
			}
		}
	}()

	progress := Progress{TotalBytes: resp.ContentLength}
	if progress.TotalBytes < 0 {
		progress.TotalBytes = 0
	}

	buf := make([]byte, f.chunkSize)
	start := f.now()
	for {
		if ctx.Err() != nil {
			cancelled = true
			return fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		}

		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return fmt.Errorf("write %s: %w", dst, werr)
			}
			progress.BytesTransferred += int64(n)
			if elapsed := f.now().Sub(start); elapsed > 0 {
				progress.BytesPerSecond = int64(float64(progress.BytesTransferred) / elapsed.Seconds())
			}
			if onProgress != nil {
				onProgress(progress)
			}
		}

		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			if ctx.Err() != nil {
				cancelled = true
				return fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
			}
			return &NetworkError{Op: "download", URL: url, Err: rerr}
		}
	}

	if err := out.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", dst, err)
	}

	log.WithFields(log.Fields{
		"bytes": progress.BytesTransferred,
		"dst":   dst,
	}).Info("download complete")

	return nil
}
