package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/kilowulf/livdoc/internal/apperr"
)

// HTTPFetcher downloads the raw document bytes from the upload provider's
// signed URL. The caller bounds the call with a context deadline; an
// unbounded hang is indistinguishable from a fetch failure.
type HTTPFetcher struct {
	client *http.Client
}

func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{client: &http.Client{}}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string, maxBytes int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrUpstream, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %v", apperr.ErrUpstream, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: fetch %s: status %d", apperr.ErrUpstream, url, resp.StatusCode)
	}

	// Read one byte past the limit to detect oversize without trusting
	// Content-Length.
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", apperr.ErrUpstream, err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", apperr.ErrPolicyExceeded, maxBytes)
	}

	return data, nil
}
