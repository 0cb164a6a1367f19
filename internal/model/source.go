package model

import "strings"

// Field enumerates the record fields a source can locate.
type Field string

const (
	FieldListings    Field = "listings"
	FieldTitle       Field = "title"
	FieldLink        Field = "link"
	FieldCompany     Field = "company"
	FieldLocation    Field = "location"
	FieldDescription Field = "description"
	FieldPostedDate  Field = "posted_date"
)

// RequiredFields must be present in every source's selector map.
var RequiredFields = []Field{FieldListings, FieldTitle, FieldLink}

// OptionalFields may be absent; a missing one yields an empty value.
var OptionalFields = []Field{FieldCompany, FieldLocation, FieldDescription, FieldPostedDate}

// Render selects the fetch strategy for a source.
type Render string

const (
	RenderHTTP    Render = "http"
	RenderBrowser Render = "browser"
)

// Selectors maps fields to locator expressions. A locator is a CSS selector,
// optionally suffixed with "@attr" to read an attribute instead of text.
type Selectors map[Field]string

// Get returns the locator for f and whether it was configured.
func (s Selectors) Get(f Field) (string, bool) {
	loc, ok := s[f]
	return loc, ok
}

// Source identifies one job board or company career page.
type Source struct {
	Name      string
	URL       string
	Company   string // static company name, used when no company selector resolves
	Render    Render
	Selectors Selectors
}

// SplitLocator separates a locator into its CSS selector and optional
// attribute name. "a.job@href" yields ("a.job", "href"); "h2" yields ("h2", "").
func SplitLocator(loc string) (css, attr string) {
	idx := strings.LastIndex(loc, "@")
	if idx < 0 || !isAttrName(loc[idx+1:]) {
		return strings.TrimSpace(loc), ""
	}
	return strings.TrimSpace(loc[:idx]), loc[idx+1:]
}

func isAttrName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == ':':
		default:
			return false
		}
	}
	return true
}
