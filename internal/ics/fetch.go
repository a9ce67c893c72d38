package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	appLog "feedcal/internal/log"
)

const (
	// DefaultMaxBodyBytes caps how much of a feed body is read into memory.
	DefaultMaxBodyBytes int64 = 16 << 20

	defaultUserAgent = "feedcal/0.1"
)

// ErrBodyTooLarge is returned when a feed exceeds the configured body cap.
var ErrBodyTooLarge = errors.New("ics body exceeds size limit")

// Fetcher retrieves raw ICS documents over HTTP. It keeps no per-URL state,
// so a single Fetcher may serve many concurrent requests.
type Fetcher struct {
	client       *http.Client
	userAgent    string
	maxBodyBytes int64
}

// FetcherOption customizes a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBodyBytes overrides DefaultMaxBodyBytes.
func WithMaxBodyBytes(n int64) FetcherOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBodyBytes = n
		}
	}
}

// NewFetcher creates a new ICS Fetcher.
//
// The client-level timeout is only an upper bound; callers are expected to
// bound each request with a context deadline.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		userAgent:    defaultUserAgent,
		maxBodyBytes: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// GetDocument performs a GET against url and returns the body together with
// the HTTP status code. Non-2xx responses are not treated as errors here;
// err is only set for transport failures, context expiry and oversize bodies.
func (f *Fetcher) GetDocument(ctx context.Context, url string) ([]byte, int, error) {
	if url == "" {
		return nil, 0, errors.New("source URL is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "text/calendar, text/plain;q=0.9, */*;q=0.5")
	req.Header.Set("User-Agent", f.userAgent)

	appLog.Debug("ics fetch start", "url", RedactURL(url))

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	// Read one byte past the cap so oversize bodies can be detected.
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes+1))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	if int64(len(body)) > f.maxBodyBytes {
		return nil, resp.StatusCode, fmt.Errorf("%w (%d bytes)", ErrBodyTooLarge, f.maxBodyBytes)
	}

	appLog.Debug("ics fetch done", "url", RedactURL(url), "status", resp.StatusCode, "bytes", len(body))
	return body, resp.StatusCode, nil
}

// RedactURL hides sensitive parts of an ICS URL for logging purposes.
//
//	https://example.com/path/to/private.ics?token=abcd
//	-> https://example.com/...(redacted)
func RedactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	// Find scheme separator.
	i := -1
	for idx := 0; idx+2 < len(u); idx++ {
		if u[idx:idx+3] == "://" {
			i = idx + 3
			break
		}
	}
	if i == -1 {
		return "ics://...(redacted)"
	}

	// Find next slash (or query) after host.
	j := i
	for j < len(u) && u[j] != '/' && u[j] != '?' {
		j++
	}

	return u[:j] + redactedSuffix
}
