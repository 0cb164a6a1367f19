package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/andybalholm/cascadia"
	"gopkg.in/yaml.v3"

	"github.com/amishk599/internradar/internal/model"
)

// SkippedSource records a source entry that failed validation.
type SkippedSource struct {
	Name   string
	Reason string
}

// rawSource is one entry of the sources file. The file may be JSON or YAML,
// either a top-level list or an object with a "sources" key.
type rawSource struct {
	Name       string            `yaml:"name"`
	URL        string            `yaml:"url"`
	CareersURL string            `yaml:"careers_url"`
	Company    string            `yaml:"company"`
	Render     string            `yaml:"render"`
	Enabled    *bool             `yaml:"enabled"`
	Selectors  map[string]string `yaml:"selectors"`
}

// LoadSources reads the source definitions at path. Entries that are malformed
// or miss required selectors are returned in skipped instead of failing the load;
// only an unreadable or unparseable file is an error.
func LoadSources(path string) (sources []model.Source, skipped []SkippedSource, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read sources: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("parse sources: %w", err)
	}

	items, err := sourceItems(&doc)
	if err != nil {
		return nil, nil, err
	}

	seen := make(map[string]bool)
	for i, item := range items {
		var rs rawSource
		if err := item.Decode(&rs); err != nil {
			skipped = append(skipped, SkippedSource{Name: fmt.Sprintf("#%d", i+1), Reason: err.Error()})
			continue
		}
		if rs.Enabled != nil && !*rs.Enabled {
			continue
		}

		src, err := buildSource(rs)
		if err == nil && seen[src.Name] {
			err = fmt.Errorf("duplicate source name")
		}
		if err != nil {
			name := rs.Name
			if name == "" {
				name = fmt.Sprintf("#%d", i+1)
			}
			skipped = append(skipped, SkippedSource{Name: name, Reason: err.Error()})
			continue
		}
		seen[src.Name] = true
		sources = append(sources, src)
	}

	return sources, skipped, nil
}

func sourceItems(doc *yaml.Node) ([]*yaml.Node, error) {
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, errors.New("parse sources: empty document")
	}
	root := doc.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		return root.Content, nil
	case yaml.MappingNode:
		for i := 0; i+1 < len(root.Content); i += 2 {
			if root.Content[i].Value == "sources" && root.Content[i+1].Kind == yaml.SequenceNode {
				return root.Content[i+1].Content, nil
			}
		}
	}
	return nil, errors.New("parse sources: expected a list of sources or a \"sources\" key")
}

func buildSource(rs rawSource) (model.Source, error) {
	name := strings.TrimSpace(rs.Name)
	if name == "" {
		return model.Source{}, errors.New("missing name")
	}

	entry := rs.URL
	if entry == "" {
		entry = rs.CareersURL
	}
	u, err := url.Parse(strings.TrimSpace(entry))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return model.Source{}, fmt.Errorf("url/careers_url must be an absolute http(s) URL, got %q", entry)
	}

	render := model.Render(strings.ToLower(rs.Render))
	switch render {
	case "":
		render = model.RenderHTTP
	case model.RenderHTTP, model.RenderBrowser:
	default:
		return model.Source{}, fmt.Errorf("unknown render %q", rs.Render)
	}

	selectors, err := buildSelectors(rs.Selectors)
	if err != nil {
		return model.Source{}, err
	}

	return model.Source{
		Name:      name,
		URL:       u.String(),
		Company:   strings.TrimSpace(rs.Company),
		Render:    render,
		Selectors: selectors,
	}, nil
}

func buildSelectors(raw map[string]string) (model.Selectors, error) {
	known := make(map[model.Field]bool)
	for _, f := range model.RequiredFields {
		known[f] = true
	}
	for _, f := range model.OptionalFields {
		known[f] = true
	}

	selectors := make(model.Selectors, len(raw))
	for key, loc := range raw {
		f := model.Field(key)
		if !known[f] {
			return nil, fmt.Errorf("unknown selector %q", key)
		}
		css, _ := model.SplitLocator(loc)
		if css != "" {
			if _, err := cascadia.ParseGroup(css); err != nil {
				return nil, fmt.Errorf("selector %s: %w", key, err)
			}
		}
		selectors[f] = loc
	}

	for _, f := range model.RequiredFields {
		if _, ok := selectors[f]; !ok {
			return nil, fmt.Errorf("missing required selector %q", f)
		}
	}
	if css, _ := model.SplitLocator(selectors[model.FieldListings]); css == "" {
		return nil, errors.New("selector listings must not be empty")
	}

	return selectors, nil
}
