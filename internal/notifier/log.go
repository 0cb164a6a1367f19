package notifier

import (
	"context"
	"log/slog"

	"github.com/amishk599/internradar/internal/model"
)

// Ensure LogNotifier implements model.Notifier.
var _ model.Notifier = (*LogNotifier)(nil)

// LogNotifier writes the digest to the given logger as structured messages.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier that logs each record via slog.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs a digest header and one line per record. It never fails.
func (n *LogNotifier) Notify(_ context.Context, jobs []model.Job) error {
	if len(jobs) == 0 {
		return nil
	}
	n.logger.Info("new internships", "batch", len(jobs))
	for _, j := range jobs {
		args := []any{"source", j.Source, "company", j.Company, "title", j.Title, "location", j.Location, "url", j.URL}
		if j.PostedDate != "" {
			args = append(args, "posted_date", j.PostedDate)
		}
		n.logger.Info("new internship", args...)
	}
	return nil
}
