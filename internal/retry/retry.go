package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/amishk599/internradar/internal/model"
)

// Observer is notified of every attempt outcome. Metrics implement it.
type Observer interface {
	ObserveFetch(outcome string)
}

// RetryFetcher is a decorator that retries rate-limited and transient failures
// with exponential backoff and jitter before delegating to the wrapped Fetcher.
type RetryFetcher struct {
	inner       model.Fetcher
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	observer    Observer
	logger      *slog.Logger
}

// NewRetryFetcher wraps a Fetcher with retry logic.
// maxAttempts is the total number of attempts including the first (minimum 1).
// baseDelay is the delay before the second attempt, doubled on each subsequent
// one and capped at maxDelay.
func NewRetryFetcher(inner model.Fetcher, maxAttempts int, baseDelay, maxDelay time.Duration, logger *slog.Logger) *RetryFetcher {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if maxDelay < baseDelay {
		maxDelay = baseDelay
	}
	return &RetryFetcher{
		inner:       inner,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		maxDelay:    maxDelay,
		logger:      logger,
	}
}

// WithObserver sets the attempt observer and returns f.
func (f *RetryFetcher) WithObserver(o Observer) *RetryFetcher {
	f.observer = o
	return f
}

// Fetch attempts to fetch url, retrying on rate-limited and transient errors.
// Permanent failures return after the first attempt. When every attempt fails
// the last *model.FetchError is returned.
func (f *RetryFetcher) Fetch(ctx context.Context, url string) (model.Page, error) {
	var lastErr error
	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := f.backoffDelay(attempt-1, lastErr)

			f.logger.Warn("retrying fetch",
				"url", url,
				"attempt", attempt,
				"max_attempts", f.maxAttempts,
				"delay", delay,
				"error", lastErr,
			)

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return model.Page{}, fmt.Errorf("retry cancelled: %w", ctx.Err())
			case <-timer.C:
			}
		}

		page, err := f.inner.Fetch(ctx, url)
		if err == nil {
			f.observe("success")
			return page, nil
		}
		if ctx.Err() != nil {
			return model.Page{}, fmt.Errorf("fetch cancelled: %w", ctx.Err())
		}

		kind := Classify(err)
		f.observe(kind.String())
		if kind == model.FetchPermanent {
			return model.Page{}, err
		}
		lastErr = err
	}

	return model.Page{}, lastErr
}

// backoffDelay computes the delay before retry n (1-based) with ±30% jitter.
// If the error carries a Retry-After duration (HTTP 429), that takes precedence.
func (f *RetryFetcher) backoffDelay(n int, err error) time.Duration {
	var fetchErr *model.FetchError
	if errors.As(err, &fetchErr) && fetchErr.RetryAfter > 0 {
		return min(fetchErr.RetryAfter, f.maxDelay)
	}

	// Exponential: baseDelay * 2^(n-1)
	delay := f.baseDelay
	for i := 1; i < n && delay < f.maxDelay; i++ {
		delay *= 2
	}
	delay = min(delay, f.maxDelay)

	// Apply ±30% jitter
	jitter := float64(delay) * 0.3
	delay = time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)

	return delay
}

func (f *RetryFetcher) observe(outcome string) {
	if f.observer != nil {
		f.observer.ObserveFetch(outcome)
	}
}

// Classify returns the failure kind of err. Errors that are not a
// *model.FetchError (network, DNS, etc.) count as transient.
func Classify(err error) model.FetchErrorKind {
	var fetchErr *model.FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Kind
	}
	return model.FetchTransient
}
