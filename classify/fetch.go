package classify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/luckyonesl/frigate-mqtt-pricure-viewer/errors"
)

// maxFetchBytes bounds the response body read so a misbehaving endpoint cannot
// exhaust memory.
const maxFetchBytes = 32 << 20 // 32 MiB

// DefaultFetchTimeout bounds how long a remote image fetch may stall the
// ingestion path.
const DefaultFetchTimeout = 5 * time.Second

// Fetcher retrieves remote images over HTTP with a bounded timeout and
// validates that the response body is a raw JPEG. Fetched bodies are never
// re-tested for base64 content.
type Fetcher struct {
	client *http.Client
	logger *slog.Logger
}

// NewFetcher creates a fetcher with the given timeout. A zero timeout falls
// back to DefaultFetchTimeout.
func NewFetcher(timeout time.Duration, logger *slog.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	if logger == nil {
		logger = slog.Default().With("component", "fetcher")
	}

	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Fetch performs an HTTP GET against url and returns the body when it is a
// raw JPEG. Network failures, timeouts, non-2xx statuses, and non-JPEG bodies
// all yield an error; the caller treats these as a permanent drop for the
// message being processed.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.WrapInvalid(err, "fetcher", "Fetch", "request construction")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.WrapTransient(err, "fetcher", "Fetch", "image download")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.WrapTransient(
			fmt.Errorf("unexpected status %d: %w", resp.StatusCode, errors.ErrFetchFailed),
			"fetcher", "Fetch", "image download")
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, errors.WrapTransient(err, "fetcher", "Fetch", "body read")
	}

	if !IsJPEG(body) {
		return nil, errors.WrapInvalid(errors.ErrNotAnImage, "fetcher", "Fetch", "JPEG validation")
	}

	f.logger.Debug("fetched remote image", "url", url, "size", len(body))
	return body, nil
}
