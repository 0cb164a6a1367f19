package poller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/amishk599/internradar/internal/extract"
	"github.com/amishk599/internradar/internal/filter"
	"github.com/amishk599/internradar/internal/model"
)

// --- Mock/Fake Implementations ---

// MockFetcher returns a canned page or an error.
type MockFetcher struct {
	Body  string
	Err   error
	calls int
}

func (m *MockFetcher) Fetch(_ context.Context, url string) (model.Page, error) {
	m.calls++
	if m.Err != nil {
		return model.Page{}, m.Err
	}
	return model.Page{URL: url, Body: []byte(m.Body)}, nil
}

// InMemoryStore is a map-based store for testing dedup.
type InMemoryStore struct {
	mu       sync.Mutex
	jobs     map[string]model.Job
	failURLs map[string]bool
	onInsert func()
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{jobs: make(map[string]model.Job), failURLs: make(map[string]bool)}
}

func (s *InMemoryStore) InsertIfAbsent(_ context.Context, job model.Job) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.onInsert != nil {
		s.onInsert()
	}
	if s.failURLs[job.URL] {
		return false, errors.New("disk full")
	}
	if _, ok := s.jobs[job.URL]; ok {
		return false, nil
	}
	s.jobs[job.URL] = job
	return true, nil
}

func (s *InMemoryStore) MarkNotified(_ context.Context, urls []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range urls {
		if j, ok := s.jobs[u]; ok {
			j.Notified = true
			s.jobs[u] = j
		}
	}
	return nil
}

func (s *InMemoryStore) ListUnnotified(context.Context, int) ([]model.Job, error) { return nil, nil }
func (s *InMemoryStore) Close() error                                             { return nil }

// FailingExtractor always fails to parse.
type FailingExtractor struct{}

func (FailingExtractor) Extract(model.Source, model.Page) (extract.Result, error) {
	return extract.Result{}, errors.New("parse html: unexpected EOF")
}

// --- Helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSource() model.Source {
	return model.Source{
		Name: "acme",
		URL:  "https://careers.acme.com/jobs",
		Selectors: model.Selectors{
			model.FieldListings: "li.job",
			model.FieldTitle:    "h3",
			model.FieldLink:     "a",
		},
	}
}

// listingsHTML renders one <li class="job"> per title, linking to /jobs/<index>.
func listingsHTML(titles ...string) string {
	var b strings.Builder
	b.WriteString("<ul>")
	for i, title := range titles {
		fmt.Fprintf(&b, `<li class="job"><h3>%s</h3><a href="/jobs/%d">apply</a></li>`, title, i)
	}
	b.WriteString("</ul>")
	return b.String()
}

func newPoller(fetcher model.Fetcher, ex Extractor, store model.JobStore) *SourcePoller {
	return NewSourcePoller(
		testSource(),
		fetcher,
		ex,
		filter.NewRelevanceFilter([]string{"intern", "co-op"}, []string{"software", "data"}, nil),
		store,
		nil,
		discardLogger(),
	)
}

// --- Tests ---

func TestPoll_FilterAndDedup(t *testing.T) {
	store := NewInMemoryStore()
	store.jobs["https://careers.acme.com/jobs/1"] = model.Job{URL: "https://careers.acme.com/jobs/1"}

	fetcher := &MockFetcher{Body: listingsHTML(
		"Software Intern",         // new
		"Data Intern",             // already stored
		"Senior Software Manager", // not an internship
		"Software Co-op",          // new
	)}
	p := newPoller(fetcher, extract.New(0, nil), store)

	res, err := p.Poll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Listings != 4 || res.Relevant != 3 || res.Duplicates != 1 {
		t.Errorf("result = %+v", res)
	}
	if len(res.NewJobs) != 2 {
		t.Fatalf("new = %d, want 2", len(res.NewJobs))
	}
	if res.NewJobs[0].Title != "Software Intern" || res.NewJobs[1].Title != "Software Co-op" {
		t.Errorf("new jobs out of order: %+v", res.NewJobs)
	}
	if res.NewJobs[0].Source != "acme" {
		t.Errorf("Source = %q", res.NewJobs[0].Source)
	}
}

func TestPoll_FetchError(t *testing.T) {
	store := NewInMemoryStore()
	fetchErr := &model.FetchError{Kind: model.FetchPermanent, URL: "https://careers.acme.com/jobs", StatusCode: 404}
	p := newPoller(&MockFetcher{Err: fetchErr}, extract.New(0, nil), store)

	res, err := p.Poll(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var fe *model.FetchError
	if !errors.As(err, &fe) || fe.Kind != model.FetchPermanent {
		t.Errorf("expected wrapped permanent FetchError, got %v", err)
	}
	if len(res.NewJobs) != 0 || len(store.jobs) != 0 {
		t.Error("nothing should be inserted on fetch error")
	}
}

func TestPoll_ExtractError(t *testing.T) {
	p := newPoller(&MockFetcher{Body: "<html>"}, FailingExtractor{}, NewInMemoryStore())
	if _, err := p.Poll(context.Background()); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestPoll_StoreErrorExcludesRecord(t *testing.T) {
	store := NewInMemoryStore()
	store.failURLs["https://careers.acme.com/jobs/0"] = true

	p := newPoller(&MockFetcher{Body: listingsHTML("Software Intern", "Data Intern")}, extract.New(0, nil), store)

	res, err := p.Poll(context.Background())
	if err != nil {
		t.Fatalf("store errors must not fail the source, got %v", err)
	}
	if res.StoreErrors != 1 {
		t.Errorf("StoreErrors = %d, want 1", res.StoreErrors)
	}
	if len(res.NewJobs) != 1 || res.NewJobs[0].Title != "Data Intern" {
		t.Errorf("new jobs = %+v, want only Data Intern", res.NewJobs)
	}
}

func TestPoll_NoListingsIsNotAnError(t *testing.T) {
	p := newPoller(&MockFetcher{Body: "<div>site redesigned</div>"}, extract.New(0, nil), NewInMemoryStore())

	res, err := p.Poll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Listings != 0 || len(res.NewJobs) != 0 {
		t.Errorf("result = %+v, want empty", res)
	}
}

func TestPoll_CancelledMidInsertKeepsInserted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewInMemoryStore()
	store.onInsert = cancel // cancel as soon as the first insert starts

	p := newPoller(&MockFetcher{Body: listingsHTML("Software Intern", "Data Intern", "Software Co-op")}, extract.New(0, nil), store)

	res, err := p.Poll(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(res.NewJobs) != 1 || res.NewJobs[0].Title != "Software Intern" {
		t.Errorf("new jobs = %+v, want the one inserted before cancellation", res.NewJobs)
	}
}
