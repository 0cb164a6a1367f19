package model

import (
	"fmt"
	"net/http"
	"time"
)

// FetchErrorKind classifies a failed fetch for the retry layer.
type FetchErrorKind int

const (
	FetchTransient FetchErrorKind = iota
	FetchRateLimited
	FetchPermanent
)

func (k FetchErrorKind) String() string {
	switch k {
	case FetchRateLimited:
		return "rate_limited"
	case FetchPermanent:
		return "permanent"
	default:
		return "transient"
	}
}

// FetchError wraps a failed fetch so retry logic can inspect it.
type FetchError struct {
	Kind       FetchErrorKind
	URL        string
	StatusCode int           // zero when no response was received
	RetryAfter time.Duration // from Retry-After header, zero if absent
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("fetch %s (%s): HTTP %d: %v", e.URL, e.Kind, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("fetch %s (%s): HTTP %d", e.URL, e.Kind, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("fetch %s (%s): %v", e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s (%s)", e.URL, e.Kind)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ClassifyStatus maps a non-2xx HTTP status to a fetch failure kind.
// 429 is rate limited, 408 and 5xx are transient, every other status is permanent.
func ClassifyStatus(code int) FetchErrorKind {
	switch {
	case code == http.StatusTooManyRequests:
		return FetchRateLimited
	case code == http.StatusRequestTimeout, code >= 500:
		return FetchTransient
	default:
		return FetchPermanent
	}
}
