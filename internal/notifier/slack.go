package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/amishk599/internradar/internal/model"
)

// Ensure SlackNotifier implements model.Notifier.
var _ model.Notifier = (*SlackNotifier)(nil)

// slackChunk is the number of records per message. Slack caps a message at
// 50 blocks; each record is one block plus the header and context blocks.
const slackChunk = 40

// SlackNotifier posts one digest to a Slack channel via Incoming Webhooks.
// Large digests are split into several messages paced at one per second.
type SlackNotifier struct {
	webhookURL string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewSlackNotifier returns a notifier that posts digests to webhookURL.
func NewSlackNotifier(webhookURL string, httpClient *http.Client, logger *slog.Logger) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
		logger:     logger,
	}
}

// Notify sends the digest. Delivery is confirmed only when every message of
// the digest was accepted; any failure returns an error.
func (s *SlackNotifier) Notify(ctx context.Context, jobs []model.Job) error {
	if len(jobs) == 0 {
		return nil
	}

	parts := (len(jobs) + slackChunk - 1) / slackChunk
	for part := 0; part < parts; part++ {
		start := part * slackChunk
		end := min(start+slackChunk, len(jobs))

		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("slack digest part %d/%d: %w", part+1, parts, err)
		}
		payload := buildDigestPayload(jobs[start:end], len(jobs), part+1, parts)
		if err := s.send(ctx, payload); err != nil {
			return fmt.Errorf("slack digest part %d/%d: %w", part+1, parts, err)
		}
	}

	s.logger.Info("slack digest sent", "batch", len(jobs), "messages", parts)
	return nil
}

func (s *SlackNotifier) send(ctx context.Context, payload slackPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	status, retryAfter, err := s.post(ctx, body)
	if err != nil {
		return err
	}
	if status == http.StatusTooManyRequests {
		s.logger.Warn("slack rate limited, retrying", "delay", retryAfter)
		timer := time.NewTimer(retryAfter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		status, _, err = s.post(ctx, body)
		if err != nil {
			return fmt.Errorf("retry: %w", err)
		}
	}
	if status != http.StatusOK {
		return fmt.Errorf("slack returned %d", status)
	}
	return nil
}

func (s *SlackNotifier) post(ctx context.Context, body []byte) (int, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return 0, 0, fmt.Errorf("build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("post to slack: %w", err)
	}
	defer resp.Body.Close()

	secs, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
	if secs <= 0 {
		secs = 1
	}
	return resp.StatusCode, time.Duration(secs) * time.Second, nil
}

// Block Kit payload types.

type slackPayload struct {
	Text   string       `json:"text"` // fallback for notifications
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func buildDigestPayload(jobs []model.Job, total, part, parts int) slackPayload {
	heading := fmt.Sprintf("🎓 %d new internship %s", total, plural(total, "posting", "postings"))
	if parts > 1 {
		heading += fmt.Sprintf(" (%d/%d)", part, parts)
	}

	blocks := []slackBlock{
		{Type: "header", Text: &slackText{Type: "plain_text", Text: heading}},
	}
	for _, j := range jobs {
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: slackLine(j)},
		})
	}
	blocks = append(blocks, slackBlock{
		Type: "context",
		Elements: []slackText{
			{Type: "mrkdwn", Text: "Sources: " + strings.Join(sourceNames(jobs), ", ")},
		},
	})

	return slackPayload{Text: heading, Blocks: blocks}
}

func slackLine(j model.Job) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*<%s|%s>*", j.URL, slackEscape(j.Title))
	var details []string
	if j.Company != "" {
		details = append(details, slackEscape(j.Company))
	}
	if j.Location != "" {
		details = append(details, slackEscape(j.Location))
	}
	if j.PostedDate != "" {
		details = append(details, "posted "+slackEscape(j.PostedDate))
	}
	if len(details) > 0 {
		b.WriteString("\n" + strings.Join(details, " · "))
	}
	return b.String()
}

// slackEscape escapes the three characters mrkdwn treats as control syntax.
func slackEscape(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
}
