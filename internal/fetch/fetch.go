// Package fetch downloads engine packages over HTTP.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Fetcher opens a byte stream for url. Callers close the returned reader.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// StatusError reports a non-success HTTP status.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("download %s: %s", e.URL, e.Status)
}

// HTTPFetcher fetches over net/http. A nil Client uses a client without a
// total timeout, since engine packages are large.
type HTTPFetcher struct {
	Client    *http.Client
	UserAgent string
}

// DefaultUserAgent is sent when HTTPFetcher.UserAgent is empty.
const DefaultUserAgent = "librebrowser/1.0"

// New returns an HTTPFetcher whose client aborts stalled handshakes.
func New() *HTTPFetcher {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.TLSHandshakeTimeout = 15 * time.Second
	tr.ResponseHeaderTimeout = 60 * time.Second
	return &HTTPFetcher{Client: &http.Client{Transport: tr}}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	ua := f.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode, Status: resp.Status}
	}
	return resp.Body, nil
}

// ToFile streams url into path, replacing any existing file. A failed
// transfer leaves no file behind.
func ToFile(ctx context.Context, f Fetcher, url, path string) (int64, error) {
	body, err := f.Fetch(ctx, url)
	if err != nil {
		return 0, err
	}
	defer func() { _ = body.Close() }()

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return 0, err
	}
	out, err := os.Create(filepath.Clean(path))
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return n, fmt.Errorf("download %s: %w", url, err)
	}
	return n, nil
}
