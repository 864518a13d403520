package extract

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Detector decides whether a probed page needs a rendering pass before
// candidate rows can be parsed out of it.
type Detector struct {
	minHTMLBytes int
	selectors    []string
	keywords     [][]byte
}

// NewDetector builds a heuristic detector. A page below minBytes, containing
// any keyword, or missing any of the required selectors is promoted to the
// headless renderer.
func NewDetector(minBytes int, selectors, keywords []string) *Detector {
	lowered := make([][]byte, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		lowered = append(lowered, bytes.ToLower([]byte(kw)))
	}
	return &Detector{
		minHTMLBytes: minBytes,
		selectors:    selectors,
		keywords:     lowered,
	}
}

// NewDefaultDetector builds a detector tuned for search result pages: the
// result list must be present in the static payload, and common script-only
// shells are promoted straight to the renderer.
func NewDefaultDetector(minBytes int) *Detector {
	return NewDetector(minBytes,
		[]string{resultRowSelector},
		[]string{"enable javascript", "unsupported browser"},
	)
}

// NeedsRender inspects the static body for signals that the result list is
// only materialized by JavaScript.
func (d *Detector) NeedsRender(body []byte) bool {
	if d == nil {
		return true
	}
	switch {
	case d.minHTMLBytes > 0 && len(body) < d.minHTMLBytes:
		return true
	case d.containsKeywords(body):
		return true
	default:
		return d.missingSelectors(body)
	}
}

func (d *Detector) containsKeywords(body []byte) bool {
	if len(body) == 0 || len(d.keywords) == 0 {
		return false
	}
	lower := bytes.ToLower(body)
	for _, kw := range d.keywords {
		if bytes.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func (d *Detector) missingSelectors(body []byte) bool {
	if len(d.selectors) == 0 || len(body) == 0 {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return true
	}
	for _, sel := range d.selectors {
		if sel == "" {
			continue
		}
		if doc.Find(sel).Length() == 0 {
			return true
		}
	}
	return false
}
