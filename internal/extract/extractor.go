package extract

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/jkmedia/shortscout/internal/shorts"
)

// PageExtractor implements shorts.Extractor with a probe-then-promote flow:
// a cheap static fetch first, a full headless render only when the detector
// says the result list is missing.
type PageExtractor struct {
	probe    *Probe
	renderer *Renderer
	detector *Detector
	logger   *zap.Logger
}

// NewPageExtractor wires the extraction stages. probe and detector may be nil
// to force the rendering path on every call.
func NewPageExtractor(probe *Probe, renderer *Renderer, detector *Detector, logger *zap.Logger) *PageExtractor {
	return &PageExtractor{
		probe:    probe,
		renderer: renderer,
		detector: detector,
		logger:   logger,
	}
}

// Extract produces the raw candidate rows of one search target.
func (e *PageExtractor) Extract(ctx context.Context, target shorts.SearchTarget) ([]shorts.RawCandidate, error) {
	html, err := e.pageHTML(ctx, target.URL)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", target.URL, err)
	}

	rows, err := ParseResults(html, e.logger)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", target.URL, err)
	}
	resolveRelativeURLs(target.URL, rows)

	e.logger.Info("extracted search page",
		zap.String("url", target.URL),
		zap.String("partition", target.Partition.String()),
		zap.Int("rows", len(rows)),
	)
	return rows, nil
}

func (e *PageExtractor) pageHTML(ctx context.Context, url string) (string, error) {
	if e.probe != nil {
		body, err := e.probe.Fetch(ctx, url)
		if err != nil {
			e.logger.Debug("probe fetch failed, promoting to renderer",
				zap.String("url", url), zap.Error(err))
		} else if !e.detector.NeedsRender(body) {
			return string(body), nil
		}
	}
	if e.renderer == nil {
		return "", fmt.Errorf("page requires rendering but no renderer is configured")
	}
	return e.renderer.Render(ctx, url)
}

// resolveRelativeURLs rewrites result hrefs and thumbnail references that
// are relative (or scheme-relative) against the search page URL.
func resolveRelativeURLs(pageURL string, rows []shorts.RawCandidate) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return
	}
	for i := range rows {
		rows[i].URL = absoluteURL(base, rows[i].URL)
		rows[i].ThumbnailURL = absoluteURL(base, rows[i].ThumbnailURL)
	}
}

func absoluteURL(base *url.URL, ref string) string {
	if ref == "" {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}
