// Package inspect is the interactive source inspector: pick a source, fetch
// and extract it once, and browse the records with their relevance verdicts.
// Nothing is written to the dedup store.
package inspect

import (
	"context"
	"fmt"
	"time"

	"github.com/amishk599/internradar/internal/extract"
	"github.com/amishk599/internradar/internal/model"
)

// Record is one extracted job with the filter's verdict.
type Record struct {
	Job      model.Job
	Relevant bool
}

// Report is the outcome of inspecting one source.
type Report struct {
	Source    model.Source
	FinalURL  string
	Listings  int
	Discarded int
	Records   []Record
	Elapsed   time.Duration
}

// Relevant returns how many records passed the filter.
func (r Report) Relevant() int {
	n := 0
	for _, rec := range r.Records {
		if rec.Relevant {
			n++
		}
	}
	return n
}

// Extractor turns a fetched page into job records.
type Extractor interface {
	Extract(src model.Source, page model.Page) (extract.Result, error)
}

// Build fetches src once and classifies every extracted record.
func Build(ctx context.Context, src model.Source, fetcher model.Fetcher, ex Extractor, filter model.JobFilter) (Report, error) {
	start := time.Now()
	page, err := fetcher.Fetch(ctx, src.URL)
	if err != nil {
		return Report{}, fmt.Errorf("fetch %s: %w", src.Name, err)
	}
	res, err := ex.Extract(src, page)
	if err != nil {
		return Report{}, fmt.Errorf("extract %s: %w", src.Name, err)
	}

	report := Report{
		Source:    src,
		FinalURL:  page.URL,
		Listings:  res.Listings,
		Discarded: res.Discarded,
		Records:   make([]Record, 0, len(res.Jobs)),
		Elapsed:   time.Since(start),
	}
	for _, j := range res.Jobs {
		report.Records = append(report.Records, Record{Job: j, Relevant: filter.Match(j)})
	}
	return report, nil
}
