package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/amishk599/internradar/internal/metrics"
	"github.com/amishk599/internradar/internal/model"
	"github.com/amishk599/internradar/internal/poller"
)

// detachedNotifyTimeout bounds digest delivery for a cycle whose context was
// cancelled after records had already been inserted.
const detachedNotifyTimeout = 30 * time.Second

// NewSchedule returns the cycle schedule: the cron expression when set,
// otherwise a fixed interval measured from the end of each cycle.
func NewSchedule(expr string, interval time.Duration) (cron.Schedule, error) {
	if expr == "" {
		return cron.Every(interval), nil
	}
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", expr, err)
	}
	return sched, nil
}

// CycleResult summarises one discovery cycle.
type CycleResult struct {
	ID        string
	Sources   int
	Failed    int
	Batch     []model.Job // new records in source order
	Delivered bool
}

// Scheduler owns the main loop: one immediate cycle, then one cycle per
// schedule tick. Each cycle runs every poller, aggregates the records they
// inserted, and hands them to the notifier as a single digest.
type Scheduler struct {
	pollers     []*poller.SourcePoller
	schedule    cron.Schedule
	concurrency int
	store       model.JobStore
	notifier    model.Notifier
	metrics     *metrics.Metrics
	logger      *slog.Logger
	now         func() time.Time
}

// NewScheduler creates a scheduler. concurrency bounds how many sources are
// polled at once; 1 processes them strictly one after another. m may be nil.
func NewScheduler(
	pollers []*poller.SourcePoller,
	schedule cron.Schedule,
	concurrency int,
	store model.JobStore,
	notifier model.Notifier,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Scheduler {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Scheduler{
		pollers:     pollers,
		schedule:    schedule,
		concurrency: concurrency,
		store:       store,
		notifier:    notifier,
		metrics:     m,
		logger:      logger,
		now:         time.Now,
	}
}

// Run runs one immediate cycle, then sleeps until the schedule's next tick
// and repeats. It returns nil when ctx is cancelled (graceful shutdown).
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("starting scheduler",
		"sources", len(s.pollers),
		"concurrency", s.concurrency,
	)

	s.RunCycle(ctx)

	for {
		next := s.schedule.Next(s.now())
		s.logger.Debug("sleeping until next cycle", "next", next.Format(time.RFC3339))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("shutting down scheduler")
			return nil
		case <-timer.C:
			s.RunCycle(ctx)
		}
	}
}

// RunCycle polls every source and delivers one digest if anything new was
// inserted. A failing source is logged and skipped. The notified flag is set
// only after the notifier confirms delivery.
func (s *Scheduler) RunCycle(ctx context.Context) CycleResult {
	res := CycleResult{ID: uuid.NewString(), Sources: len(s.pollers)}
	logger := s.logger.With("cycle_id", res.ID)
	start := s.now()
	logger.Info("cycle started", "sources", len(s.pollers))

	results := make([]poller.Result, len(s.pollers))
	var failed atomic.Int32

	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for i, p := range s.pollers {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			r, err := p.Poll(ctx)
			results[i] = r
			if err != nil {
				failed.Add(1)
				logger.Error("source failed", "source", p.Source.Name, "error", err)
			}
			return nil
		})
	}
	g.Wait()
	res.Failed = int(failed.Load())

	for _, r := range results {
		res.Batch = append(res.Batch, r.NewJobs...)
	}

	if len(res.Batch) > 0 {
		res.Delivered = s.deliver(ctx, logger, res.Batch)
	}

	finished := s.now()
	s.metrics.ObserveCycle(finished.Sub(start), finished)
	logger.Info("cycle complete",
		"sources", res.Sources,
		"failed", res.Failed,
		"batch", len(res.Batch),
		"delivered", res.Delivered,
		"duration", finished.Sub(start).Round(time.Millisecond).String(),
	)
	return res
}

func (s *Scheduler) deliver(ctx context.Context, logger *slog.Logger, batch []model.Job) bool {
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), detachedNotifyTimeout)
		defer cancel()
	}

	if err := s.notifier.Notify(ctx, batch); err != nil {
		s.metrics.ObserveNotification(false)
		logger.Error("digest delivery failed; records stay unnotified",
			"batch", len(batch),
			"error", err,
		)
		return false
	}
	s.metrics.ObserveNotification(true)

	urls := make([]string, len(batch))
	for i, j := range batch {
		urls[i] = j.URL
	}
	if err := s.store.MarkNotified(ctx, urls); err != nil {
		logger.Error("marking records notified failed", "batch", len(batch), "error", err)
	}
	return true
}
