package inspect

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/amishk599/internradar/internal/extract"
	"github.com/amishk599/internradar/internal/filter"
	"github.com/amishk599/internradar/internal/model"
)

type stubFetcher struct {
	page model.Page
	err  error
}

func (f stubFetcher) Fetch(_ context.Context, _ string) (model.Page, error) {
	return f.page, f.err
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

func TestBuild_ClassifiesRecords(t *testing.T) {
	html := `<ul>
	<li class="job"><h3>Software Engineering Intern</h3><a href="/1">x</a></li>
	<li class="job"><h3>Senior Backend Engineer</h3><a href="/2">x</a></li>
	<li class="job"><h3>No link intern</h3></li>
	</ul>`
	f := stubFetcher{page: model.Page{URL: "https://careers.acme.com/jobs", Body: []byte(html)}}
	rf := filter.NewRelevanceFilter([]string{"intern"}, []string{"software"}, nil)

	report, err := Build(context.Background(), testSource(), f, extract.New(0, nil), rf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Listings != 3 || report.Discarded != 1 {
		t.Errorf("Listings/Discarded = %d/%d, want 3/1", report.Listings, report.Discarded)
	}
	if len(report.Records) != 2 {
		t.Fatalf("got %d records, want 2", len(report.Records))
	}
	if !report.Records[0].Relevant || report.Records[1].Relevant {
		t.Errorf("unexpected verdicts: %+v", report.Records)
	}
	if report.Relevant() != 1 {
		t.Errorf("Relevant() = %d, want 1", report.Relevant())
	}
}

func TestBuild_FetchError(t *testing.T) {
	f := stubFetcher{err: &model.FetchError{Kind: model.FetchPermanent, URL: "x", StatusCode: 404}}
	_, err := Build(context.Background(), testSource(), f, extract.New(0, nil), filter.NewRelevanceFilter([]string{"intern"}, nil, nil))
	var fetchErr *model.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected wrapped FetchError, got %v", err)
	}
}

func TestRenderRecords(t *testing.T) {
	if got := renderRecords(nil, 0, true); got != "  (no records)" {
		t.Errorf("empty render = %q", got)
	}

	records := []Record{
		{Job: model.Job{Title: "Data Intern", Company: "Acme", Location: "Remote"}, Relevant: true},
		{Job: model.Job{Title: "Staff Engineer"}},
	}
	out := renderRecords(records, 1, true)
	if !strings.Contains(out, "Data Intern") || !strings.Contains(out, "Acme · Remote") {
		t.Errorf("render missing first record: %q", out)
	}
	if !strings.Contains(out, "> ") {
		t.Errorf("render missing cursor: %q", out)
	}
	if !strings.Contains(out, "n/a") {
		t.Errorf("record without details should render n/a: %q", out)
	}
}

func TestRenderDetail(t *testing.T) {
	r := Record{Job: model.Job{
		Title:       "ML Intern",
		URL:         "https://acme.com/ml",
		Source:      "acme",
		Description: "Train models on real data",
	}, Relevant: true}
	out := renderDetail(r, 40)
	for _, want := range []string{"ML Intern", "https://acme.com/ml", "acme", "Description", "Train models on real data", "yes"} {
		if !strings.Contains(out, want) {
			t.Errorf("detail missing %q: %q", want, out)
		}
	}
	if strings.Contains(out, "Location") {
		t.Errorf("empty fields should be omitted: %q", out)
	}
}

func TestWordWrap(t *testing.T) {
	got := wordWrap("one two three four", 9)
	want := "one two\nthree\nfour"
	if got != want {
		t.Errorf("wordWrap = %q, want %q", got, want)
	}
	if wordWrap("   ", 10) != "" {
		t.Error("blank input should wrap to empty")
	}
}

func TestClamp(t *testing.T) {
	tests := []struct{ v, lo, hi, want int }{
		{-1, 0, 5, 0},
		{3, 0, 5, 3},
		{9, 0, 5, 5},
	}
	for _, tt := range tests {
		if got := clamp(tt.v, tt.lo, tt.hi); got != tt.want {
			t.Errorf("clamp(%d, %d, %d) = %d, want %d", tt.v, tt.lo, tt.hi, got, tt.want)
		}
	}
}

func TestInspectModel_Navigation(t *testing.T) {
	report := Report{Records: []Record{
		{Job: model.Job{Title: "A Intern", URL: "https://x/a"}, Relevant: true},
		{Job: model.Job{Title: "B Engineer", URL: "https://x/b"}},
		{Job: model.Job{Title: "C Intern", URL: "https://x/c"}, Relevant: true},
	}}
	var m tea.Model = newInspectModel(report)
	m, _ = m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})

	im := m.(inspectModel)
	if len(im.panes[paneExtracted]) != 3 || len(im.panes[paneRelevant]) != 2 {
		t.Fatalf("panes = %d/%d, want 3/2", len(im.panes[paneExtracted]), len(im.panes[paneRelevant]))
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	if got := m.(inspectModel).cursor[paneExtracted]; got != 2 {
		t.Errorf("cursor = %d, want clamped to 2", got)
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	im = m.(inspectModel)
	if im.view != viewDetail || im.detail.Job.Title != "A Intern" {
		t.Errorf("detail = %+v (view %d), want A Intern", im.detail, im.view)
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.(inspectModel).view != viewList {
		t.Error("esc should return to the list")
	}

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if !m.(inspectModel).wantQuit || cmd == nil {
		t.Error("q should quit")
	}
}

func TestPickerModel_Select(t *testing.T) {
	var m tea.Model = pickerModel{sources: []model.Source{{Name: "a"}, {Name: "b"}}, chosen: pickerPending}
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.(pickerModel).chosen != 1 || cmd == nil {
		t.Errorf("chosen = %d, want 1", m.(pickerModel).chosen)
	}
}

func TestLoaderModel_Done(t *testing.T) {
	var m tea.Model = newLoaderModel("acme", 0, nil)
	want := Report{Listings: 4}
	m, cmd := m.Update(reportDoneMsg{report: want})
	lm := m.(loaderModel)
	if !lm.done || lm.result.Listings != 4 || cmd == nil {
		t.Errorf("loader state = %+v", lm)
	}
	if lm.View() != "" {
		t.Error("finished loader should render nothing")
	}
}

func TestSourceLabel(t *testing.T) {
	got := sourceLabel(model.Source{Name: "acme", URL: "https://careers.acme.com/jobs", Render: model.RenderBrowser})
	if got != "acme (careers.acme.com, browser)" {
		t.Errorf("sourceLabel = %q", got)
	}
}
