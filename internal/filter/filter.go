package filter

import (
	"strings"

	"github.com/amishk599/internradar/internal/model"
)

// Ensure RelevanceFilter implements model.JobFilter.
var _ model.JobFilter = (*RelevanceFilter)(nil)

// RelevanceFilter decides whether a job is a reportable internship opening.
// It tests the title, description and company together, case-insensitively:
// at least one internship term must appear, then at least one keyword, and no
// exclude term may appear. An empty keyword list matches nothing.
type RelevanceFilter struct {
	internshipTerms []string
	keywords        []string
	excludes        []string
}

// NewRelevanceFilter returns a filter over the given term lists. Terms are
// lowercased once here so Match does no per-call normalisation of them.
func NewRelevanceFilter(internshipTerms, keywords, excludes []string) *RelevanceFilter {
	return &RelevanceFilter{
		internshipTerms: lowerAll(internshipTerms),
		keywords:        lowerAll(keywords),
		excludes:        lowerAll(excludes),
	}
}

// Match reports whether job passes every stage.
func (f *RelevanceFilter) Match(job model.Job) bool {
	text := strings.ToLower(job.Title + " " + job.Description + " " + job.Company)

	if !containsAny(text, f.internshipTerms) {
		return false
	}
	if !containsAny(text, f.keywords) {
		return false
	}
	if containsAny(text, f.excludes) {
		return false
	}
	return true
}

func containsAny(text string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

func lowerAll(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
