package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
)

const (
	defaultDownloadAttempts = 3
	defaultDownloadDelay    = 500 * time.Millisecond
)

// ErrImageTooLarge is returned when a generated image exceeds the size cap.
var ErrImageTooLarge = errors.New("image exceeds size limit")

// DownloadError wraps a failure to fetch an image the vendor already
// generated. It is never retried as a whole generation, since that would be
// billed again.
type DownloadError struct {
	Err error
}

func (e *DownloadError) Error() string { return "image download failed: " + e.Err.Error() }

func (e *DownloadError) Unwrap() error { return e.Err }

// downloader saves generated images into the cache directory.
type downloader struct {
	dir        string
	httpClient *http.Client
	// maxBytes caps one image; zero means unlimited.
	maxBytes int64
	attempts uint
	delay    time.Duration
}

// fetch downloads rawURL, retrying transient failures on the download alone.
// The result is stored under the unescaped last segment of the URL path and
// the absolute file path is returned. Errors are wrapped in DownloadError.
func (d *downloader) fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", &DownloadError{Err: fmt.Errorf("invalid image url: %w", err)}
	}

	attempts := d.attempts
	if attempts == 0 {
		attempts = defaultDownloadAttempts
	}
	delay := d.delay
	if delay == 0 {
		delay = defaultDownloadDelay
	}

	dest, err := retry.DoWithData(
		func() (string, error) { return d.fetchOnce(ctx, u) },
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(isTransient),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return "", &DownloadError{Err: err}
	}
	return dest, nil
}

func (d *downloader) fetchOnce(ctx context.Context, u *url.URL) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build download request: %w", err)
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{StatusCode: resp.StatusCode, Message: "image download failed"}
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(d.dir, ".download-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	body := io.Reader(resp.Body)
	if d.maxBytes > 0 {
		body = io.LimitReader(resp.Body, d.maxBytes+1)
	}
	n, err := io.Copy(tmp, body)
	if err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to save image: %w", err)
	}
	if d.maxBytes > 0 && n > d.maxBytes {
		tmp.Close()
		return "", fmt.Errorf("%w: more than %d bytes", ErrImageTooLarge, d.maxBytes)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to save image: %w", err)
	}

	dest := filepath.Join(d.dir, cacheFileName(u))
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", fmt.Errorf("failed to store image: %w", err)
	}

	abs, err := filepath.Abs(dest)
	if err != nil {
		return "", fmt.Errorf("failed to resolve image path: %w", err)
	}
	return abs, nil
}

// cacheFileName returns the last path segment of u. URL.Path is already
// unescaped. Segments that cannot name a file get a random name.
func cacheFileName(u *url.URL) string {
	name := path.Base(u.Path)
	switch name {
	case "", ".", "..", "/":
		return uuid.NewString() + ".png"
	}
	return filepath.Base(filepath.FromSlash(name))
}
