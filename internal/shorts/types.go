// Package shorts defines core types shared across the discovery pipeline.
package shorts

import (
	"fmt"
	"time"
)

// Partition is a (language, category) pair bounding fair selection.
// Both values come from configuration, never from page content.
type Partition struct {
	Language int `json:"language"`
	Category int `json:"category"`
}

// String renders the partition as "language/category" for logs and metric labels.
func (p Partition) String() string {
	return fmt.Sprintf("%d/%d", p.Language, p.Category)
}

// SearchTarget is a single discovery unit: the search URL to render and the
// partition every candidate found there belongs to.
type SearchTarget struct {
	URL       string
	Partition Partition
}

// RawCandidate is what the extractor pulls out of one result row before any
// normalization. Fields may be empty when the DOM was unrecognized.
type RawCandidate struct {
	Title        string
	URL          string
	ThumbnailURL string
	DurationText string
	Metadata     string
}

// Candidate is a cataloged piece of content keyed by its canonical URL.
type Candidate struct {
	URL          string
	Title        string
	ThumbnailURL string
	Partition    Partition

	// Duration in seconds. Zero means "not yet resolved"; such candidates
	// are never selected for publishing.
	Duration int

	// Metadata is the raw extraction line ("3 days ago", view counts...).
	// Informational only.
	Metadata string

	// PublishedAt is nil while the candidate is pending. Once set it is
	// immutable; there is no un-publish.
	PublishedAt *time.Time

	CreatedAt time.Time
}

// Published reports whether the candidate has been submitted downstream.
func (c Candidate) Published() bool {
	return c.PublishedAt != nil
}

// AuthStrategy identifies which credential source the acquisition engine
// resolved for a download.
type AuthStrategy int

// Strategies in fixed priority order. The first available one wins.
const (
	AuthCookieFile AuthStrategy = iota
	AuthNetrc
	AuthBrowserCookies
	AuthFallback
)

// String returns a stable label for logs.
func (s AuthStrategy) String() string {
	switch s {
	case AuthCookieFile:
		return "cookie_file"
	case AuthNetrc:
		return "netrc"
	case AuthBrowserCookies:
		return "browser_cookies"
	case AuthFallback:
		return "no_auth_fallback"
	default:
		return "unknown"
	}
}

// Acquisition holds the per-run artifacts produced for one candidate.
// It is never persisted; ownership passes from the acquisition engine to the
// publisher, which deletes both files before returning.
type Acquisition struct {
	MediaPath     string
	ThumbnailPath string
	Strategy      AuthStrategy
}

// RunSummary aggregates the outcome of one pipeline run.
type RunSummary struct {
	RunID      string    `json:"run_id"`
	Discovered int       `json:"discovered"`
	Selected   int       `json:"selected"`
	Published  int       `json:"published"`
	Failed     int       `json:"failed"`
	Started    time.Time `json:"started"`
	Finished   time.Time `json:"finished"`
}
