package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/amishk599/internradar/internal/extract"
	"github.com/amishk599/internradar/internal/metrics"
	"github.com/amishk599/internradar/internal/model"
)

// Extractor turns a fetched page into job records.
type Extractor interface {
	Extract(src model.Source, page model.Page) (extract.Result, error)
}

// Result summarises one source's pass through the pipeline.
type Result struct {
	Source      string
	Listings    int
	Discarded   int
	Relevant    int
	Duplicates  int
	StoreErrors int
	NewJobs     []model.Job // inserted by this pass, in extraction order
}

// SourcePoller owns the pipeline for a single source:
// fetch → extract → filter → insert-if-absent.
type SourcePoller struct {
	Source    model.Source
	fetcher   model.Fetcher
	extractor Extractor
	filter    model.JobFilter
	store     model.JobStore
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewSourcePoller creates a poller wired with all its dependencies.
// m may be nil.
func NewSourcePoller(
	src model.Source,
	fetcher model.Fetcher,
	extractor Extractor,
	filter model.JobFilter,
	store model.JobStore,
	m *metrics.Metrics,
	logger *slog.Logger,
) *SourcePoller {
	return &SourcePoller{
		Source:    src,
		fetcher:   fetcher,
		extractor: extractor,
		filter:    filter,
		store:     store,
		metrics:   m,
		logger:    logger.With("source", src.Name),
	}
}

// Poll runs the pipeline once. An error means the source produced nothing
// usable (fetch or parse failure, or cancellation before any insert). Store
// failures on individual records are counted, not returned. When the context
// is cancelled mid-insert, the records already inserted are still returned
// alongside the context error.
func (p *SourcePoller) Poll(ctx context.Context) (Result, error) {
	res := Result{Source: p.Source.Name}

	page, err := p.fetcher.Fetch(ctx, p.Source.URL)
	if err != nil {
		p.metrics.SourceFailed(p.Source.Name, failureStage(ctx, "fetch"))
		return res, fmt.Errorf("polling %s: %w", p.Source.Name, err)
	}

	extracted, err := p.extractor.Extract(p.Source, page)
	if err != nil {
		p.metrics.SourceFailed(p.Source.Name, "extract")
		return res, fmt.Errorf("polling %s: %w", p.Source.Name, err)
	}
	res.Listings = extracted.Listings
	res.Discarded = extracted.Discarded

	if extracted.Listings == 0 {
		p.logger.Warn("no listings matched; page structure may have changed", "url", page.URL)
	} else if extracted.Discarded > 0 {
		p.logger.Debug("listings discarded", "discarded", extracted.Discarded, "listings", extracted.Listings)
	}

	for _, job := range extracted.Jobs {
		if !p.filter.Match(job) {
			continue
		}
		res.Relevant++

		if err := ctx.Err(); err != nil {
			p.metrics.ObserveSource(p.Source.Name, res.Listings, len(res.NewJobs), res.StoreErrors)
			return res, fmt.Errorf("polling %s: %w", p.Source.Name, err)
		}

		inserted, err := p.store.InsertIfAbsent(ctx, job)
		switch {
		case err != nil:
			res.StoreErrors++
			p.logger.Error("store insert failed", "url", job.URL, "error", err)
		case inserted:
			res.NewJobs = append(res.NewJobs, job)
		default:
			res.Duplicates++
		}
	}

	p.metrics.ObserveSource(p.Source.Name, res.Listings, len(res.NewJobs), res.StoreErrors)
	p.logger.Info("polled source",
		"listings", res.Listings,
		"relevant", res.Relevant,
		"new", len(res.NewJobs),
		"duplicates", res.Duplicates,
		"store_errors", res.StoreErrors,
	)
	return res, nil
}

func failureStage(ctx context.Context, stage string) string {
	if errors.Is(ctx.Err(), context.Canceled) {
		return "cancelled"
	}
	return stage
}
