package ratelimit

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/amishk599/internradar/internal/model"
)

// GlobalKey is the limiter key used when fetches are spaced globally.
const GlobalKey = "*"

// HostRateLimiter enforces a randomized minimum gap between consecutive
// requests sharing a key (an upstream host, or GlobalKey).
type HostRateLimiter struct {
	mu       sync.Mutex
	next     map[string]time.Time // key -> earliest start of the next request
	minDelay time.Duration
	maxDelay time.Duration
	perHost  bool
}

// NewHostRateLimiter creates a limiter whose gap is drawn uniformly from
// [minDelay, maxDelay] for every request. With perHost false every request
// shares GlobalKey.
func NewHostRateLimiter(minDelay, maxDelay time.Duration, perHost bool) *HostRateLimiter {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &HostRateLimiter{
		next:     make(map[string]time.Time),
		minDelay: minDelay,
		maxDelay: maxDelay,
		perHost:  perHost,
	}
}

// Key returns the limiter key for rawURL.
func (r *HostRateLimiter) Key(rawURL string) string {
	if !r.perHost {
		return GlobalKey
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return strings.ToLower(u.Hostname())
}

// Wait blocks until the request slot for key opens and reserves it.
// Returns an error if the context is cancelled while waiting.
func (r *HostRateLimiter) Wait(ctx context.Context, key string) error {
	r.mu.Lock()
	now := time.Now()
	start := now
	if next, ok := r.next[key]; ok && next.After(now) {
		start = next
	}
	r.next[key] = start.Add(r.gap())
	r.mu.Unlock()

	remaining := start.Sub(now)
	if remaining <= 0 {
		return nil
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("rate limiter wait for %s: %w", key, ctx.Err())
	case <-timer.C:
	}
	return nil
}

// Finish pushes the next slot for key so the gap also holds after a slow
// request completes.
func (r *HostRateLimiter) Finish(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	candidate := time.Now().Add(r.gap())
	if candidate.After(r.next[key]) {
		r.next[key] = candidate
	}
}

func (r *HostRateLimiter) gap() time.Duration {
	if r.maxDelay <= r.minDelay {
		return r.minDelay
	}
	return r.minDelay + rand.N(r.maxDelay-r.minDelay+1)
}

// RateLimitedFetcher is a decorator that enforces the inter-request gap
// before delegating to the wrapped Fetcher.
type RateLimitedFetcher struct {
	inner   model.Fetcher
	limiter *HostRateLimiter
}

// NewRateLimitedFetcher wraps a Fetcher with rate limiting.
// All fetchers driven by one orchestrator should share the same limiter instance.
func NewRateLimitedFetcher(inner model.Fetcher, limiter *HostRateLimiter) *RateLimitedFetcher {
	return &RateLimitedFetcher{
		inner:   inner,
		limiter: limiter,
	}
}

// Fetch waits for the rate limiter to allow a request, then delegates to
// the wrapped fetcher.
func (f *RateLimitedFetcher) Fetch(ctx context.Context, rawURL string) (model.Page, error) {
	key := f.limiter.Key(rawURL)
	if err := f.limiter.Wait(ctx, key); err != nil {
		return model.Page{}, err
	}
	defer f.limiter.Finish(key)
	return f.inner.Fetch(ctx, rawURL)
}
