package model

import (
	"context"
	"time"
)

// Job is one internship posting extracted from a source page.
// URL is the identity key: two jobs with the same URL are the same posting.
type Job struct {
	Source       string    // source name from the source file
	Title        string    // listing title
	Company      string    // optional
	URL          string    // canonical absolute link, fragment stripped
	Location     string    // optional
	Description  string    // optional, truncated by the extractor
	PostedDate   string    // optional, source-native format, never parsed
	DiscoveredAt time.Time // stamped at extraction
	Notified     bool
}

// Valid reports whether the job carries the fields required for dedup.
func (j Job) Valid() bool {
	return j.Title != "" && j.URL != ""
}

// Page is the raw content returned by a fetch strategy.
type Page struct {
	URL  string // final URL after redirects; relative links resolve against it
	Body []byte
}

// Fetcher resolves a URL into page content.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// JobStore is the persistent, URL-keyed dedup table.
type JobStore interface {
	// InsertIfAbsent persists job unless an entry with the same URL exists.
	// It reports whether a new entry was created.
	InsertIfAbsent(ctx context.Context, job Job) (bool, error)
	// MarkNotified flips notified to true for every given URL. Already
	// notified or unknown URLs are ignored.
	MarkNotified(ctx context.Context, urls []string) error
	// ListUnnotified returns up to limit entries still waiting on a digest,
	// oldest first. A limit <= 0 means no limit.
	ListUnnotified(ctx context.Context, limit int) ([]Job, error)
	Close() error
}

// Notifier delivers one digest covering every job in the batch.
// A nil error is a confirmed delivery.
type Notifier interface {
	Notify(ctx context.Context, jobs []Job) error
}

// JobFilter decides whether a job is a reportable internship opening.
type JobFilter interface {
	Match(job Job) bool
}
