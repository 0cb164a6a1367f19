package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/amishk599/internradar/internal/model"
)

// Ensure HTTPFetcher implements model.Fetcher.
var _ model.Fetcher = (*HTTPFetcher)(nil)

// HTTPFetcher fetches static pages with a single GET per call.
// Retry and pacing are layered on top by the retry and ratelimit decorators.
type HTTPFetcher struct {
	client       *http.Client
	timeout      time.Duration
	userAgent    string
	maxBodyBytes int64
}

// NewHTTPFetcher creates a fetcher sharing client across all sources.
// timeout bounds each call; maxBodyBytes caps how much of a page is read.
func NewHTTPFetcher(client *http.Client, timeout time.Duration, userAgent string, maxBodyBytes int64) *HTTPFetcher {
	return &HTTPFetcher{
		client:       client,
		timeout:      timeout,
		userAgent:    userAgent,
		maxBodyBytes: maxBodyBytes,
	}
}

// Fetch performs one GET and classifies any failure as a *model.FetchError.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (model.Page, error) {
	reqCtx := ctx
	if f.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return model.Page{}, &model.FetchError{Kind: model.FetchPermanent, URL: url, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return model.Page{}, fmt.Errorf("fetch %s: %w", url, ctx.Err())
		}
		return model.Page{}, &model.FetchError{Kind: model.FetchTransient, URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return model.Page{}, &model.FetchError{
			Kind:       model.ClassifyStatus(resp.StatusCode),
			URL:        url,
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes))
	if err != nil {
		if ctx.Err() != nil {
			return model.Page{}, fmt.Errorf("fetch %s: %w", url, ctx.Err())
		}
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("read body: timed out after %v", f.timeout)
		}
		return model.Page{}, &model.FetchError{Kind: model.FetchTransient, URL: url, StatusCode: resp.StatusCode, Err: err}
	}

	return model.Page{URL: resp.Request.URL.String(), Body: body}, nil
}
