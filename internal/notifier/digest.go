package notifier

import (
	"context"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/amishk599/internradar/internal/model"
)

var digestTemplate = template.Must(template.New("digest").Parse(
	`{{len .Jobs}} new internship {{if eq (len .Jobs) 1}}posting{{else}}postings{{end}} found:
{{range .Jobs}}
{{.Title}}{{if .Company}} at {{.Company}}{{end}}
{{- if .Location}}
  Location: {{.Location}}{{end}}
{{- if .PostedDate}}
  Posted: {{.PostedDate}}{{end}}
  Source: {{.Source}}
  {{.URL}}
{{end}}`))

type digestData struct {
	Jobs []model.Job
}

// renderDigest renders the plain-text digest used by the email transport.
func renderDigest(jobs []model.Job) (string, error) {
	var b strings.Builder
	if err := digestTemplate.Execute(&b, digestData{Jobs: jobs}); err != nil {
		return "", err
	}
	return b.String(), nil
}

func sourceNames(jobs []model.Job) []string {
	seen := make(map[string]bool)
	var names []string
	for _, j := range jobs {
		if j.Source != "" && !seen[j.Source] {
			seen[j.Source] = true
			names = append(names, j.Source)
		}
	}
	sort.Strings(names)
	return names
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// SendTestMessage sends a one-record sample digest to verify the integration works.
func SendTestMessage(ctx context.Context, n model.Notifier) error {
	testJob := model.Job{
		Source:       "test",
		Title:        "Software Engineering Intern (test notification)",
		Company:      "internradar",
		Location:     "Everywhere",
		URL:          "https://example.com/internradar/test",
		DiscoveredAt: time.Now(),
	}
	return n.Notify(ctx, []model.Job{testJob})
}
