package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mattn/go-runewidth"

	"github.com/amishk599/internradar/internal/model"
)

const ellipsis = "…"

// Result is the outcome of extracting one page.
type Result struct {
	Listings  int         // elements matched by the listings locator
	Discarded int         // listings that produced no valid record
	Jobs      []model.Job // valid records in document order
}

// Extractor turns a fetched page into job records using a source's selector
// map. It holds no per-page state and is safe for concurrent use.
type Extractor struct {
	maxDescription int
	now            func() time.Time
	fieldText      func(*goquery.Selection, model.Selectors, model.Field) string
}

// New creates an Extractor. Descriptions are cut to maxDescription display
// columns; zero or less disables truncation. now stamps DiscoveredAt and
// defaults to time.Now.
func New(maxDescription int, now func() time.Time) *Extractor {
	if now == nil {
		now = time.Now
	}
	return &Extractor{maxDescription: maxDescription, now: now, fieldText: text}
}

// Extract resolves every listing on page. A listings locator that matches
// nothing yields an empty Result and no error. The only error is an
// unparseable document.
func (e *Extractor) Extract(src model.Source, page model.Page) (Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return Result{}, fmt.Errorf("parse html for %s: %w", src.Name, err)
	}

	base, err := baseURL(doc, page.URL, src.URL)
	if err != nil {
		return Result{}, fmt.Errorf("resolve base url for %s: %w", src.Name, err)
	}

	listingsLoc, _ := src.Selectors.Get(model.FieldListings)
	listingsCSS, _ := model.SplitLocator(listingsLoc)
	if listingsCSS == "" {
		return Result{}, nil
	}

	discoveredAt := e.now().UTC()
	var res Result
	doc.Find(listingsCSS).Each(func(_ int, s *goquery.Selection) {
		res.Listings++
		job, ok := e.listing(src, base, s, discoveredAt)
		if !ok {
			res.Discarded++
			return
		}
		res.Jobs = append(res.Jobs, job)
	})
	return res, nil
}

// listing extracts one record. A panic while resolving any field discards
// only this listing.
func (e *Extractor) listing(src model.Source, base *url.URL, s *goquery.Selection, discoveredAt time.Time) (job model.Job, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			job, ok = model.Job{}, false
		}
	}()

	job = model.Job{
		Source:       src.Name,
		Title:        e.fieldText(s, src.Selectors, model.FieldTitle),
		Company:      e.fieldText(s, src.Selectors, model.FieldCompany),
		Location:     e.fieldText(s, src.Selectors, model.FieldLocation),
		Description:  e.fieldText(s, src.Selectors, model.FieldDescription),
		PostedDate:   e.fieldText(s, src.Selectors, model.FieldPostedDate),
		DiscoveredAt: discoveredAt,
	}
	if job.Company == "" {
		job.Company = src.Company
	}
	if e.maxDescription > 0 && runewidth.StringWidth(job.Description) > e.maxDescription {
		job.Description = runewidth.Truncate(job.Description, e.maxDescription, ellipsis)
	}

	job.URL = canonicalURL(base, link(s, src.Selectors))
	return job, job.Valid()
}

// resolve returns the element a locator points at inside a listing.
// An empty selector refers to the listing element itself.
func resolve(s *goquery.Selection, css string) *goquery.Selection {
	if css == "" {
		return s
	}
	return s.Find(css).First()
}

// text returns the whitespace-normalized value of an optional field, or ""
// when the field is not configured or matches nothing.
func text(s *goquery.Selection, sel model.Selectors, f model.Field) string {
	loc, ok := sel.Get(f)
	if !ok {
		return ""
	}
	css, attr := model.SplitLocator(loc)
	target := resolve(s, css)
	if target.Length() == 0 {
		return ""
	}
	if attr != "" {
		v, _ := target.Attr(attr)
		return collapse(v)
	}
	return collapse(target.Text())
}

// link returns the raw link target. Without an explicit attribute it reads
// href from the located element, then from its first descendant anchor.
func link(s *goquery.Selection, sel model.Selectors) string {
	loc, _ := sel.Get(model.FieldLink)
	css, attr := model.SplitLocator(loc)
	target := resolve(s, css)
	if target.Length() == 0 {
		return ""
	}
	if attr != "" {
		v, _ := target.Attr(attr)
		return strings.TrimSpace(v)
	}
	if v, ok := target.Attr("href"); ok {
		return strings.TrimSpace(v)
	}
	v, _ := target.Find("a[href]").First().Attr("href")
	return strings.TrimSpace(v)
}

// baseURL is the URL relative links resolve against: the document's
// <base href> if present, else the fetched page URL, else the source URL.
func baseURL(doc *goquery.Document, pageURL, sourceURL string) (*url.URL, error) {
	raw := pageURL
	if raw == "" {
		raw = sourceURL
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			base = base.ResolveReference(ref)
		}
	}
	return base, nil
}

// canonicalURL makes raw absolute against base and strips the fragment.
// Non-http(s) targets such as javascript: or mailto: yield "".
func canonicalURL(base *url.URL, raw string) string {
	if raw == "" {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	if abs.Host == "" {
		return ""
	}
	abs.Fragment = ""
	abs.RawFragment = ""
	return abs.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
