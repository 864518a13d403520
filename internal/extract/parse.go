package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/jkmedia/shortscout/internal/shorts"
)

// resultRowSelector matches one video entry in the rendered results list.
const resultRowSelector = "ytd-video-renderer"

// Selector chains tried in order until one yields a value. The result page
// markup shifts frequently, so every field carries alternates observed in the
// wild.
var (
	titleSelectors = []string{
		"#video-title",
		"a#video-title-link",
		"h3 a[href]",
	}
	thumbnailSelectors = []string{
		"img.yt-core-image",
		"#thumbnail img",
	}
	thumbnailLinkSelectors = []string{
		"#thumbnail",
	}
	durationSelectors = []string{
		".badge-shape-wiz__text",
		"#text.ytd-thumbnail-overlay-time-status-renderer",
		"span#text.style-scope.ytd-thumbnail-overlay-time-status-renderer",
		"ytd-thumbnail-overlay-time-status-renderer span#text",
		"badge-shape .badge-shape-wiz__text",
		"div.badge-shape-wiz__text",
		"span.ytd-thumbnail-overlay-time-status-renderer",
	}
	metadataSelectors = []string{
		"#metadata-line",
	}
)

// skipMarkers flag rows that are not finished, publishable content.
var skipMarkers = []string{"premieres", "watching"}

// ParseResults walks the rendered page and extracts one RawCandidate per
// recognizable result row. Unrecognized rows are skipped, never fatal.
func ParseResults(html string, logger *zap.Logger) ([]shorts.RawCandidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var out []shorts.RawCandidate
	doc.Find(resultRowSelector).Each(func(i int, row *goquery.Selection) {
		raw, ok := parseRow(row)
		if !ok {
			logger.Debug("skipping result row", zap.Int("index", i))
			return
		}
		out = append(out, raw)
	})
	return out, nil
}

func parseRow(row *goquery.Selection) (shorts.RawCandidate, bool) {
	title, href := titleAndHref(row)
	if href == "" {
		return shorts.RawCandidate{}, false
	}

	metadata := firstText(row, metadataSelectors)
	lowerMeta := strings.ToLower(metadata)
	for _, marker := range skipMarkers {
		if strings.Contains(lowerMeta, marker) {
			return shorts.RawCandidate{}, false
		}
	}

	duration := firstText(row, durationSelectors)
	if duration != "" && !strings.Contains(duration, ":") {
		// Badge text like "LIVE" or "SHORTS" is not a timecode.
		duration = ""
	}

	thumb := firstAttr(row, thumbnailSelectors, "src")
	if thumb == "" {
		thumb = firstAttr(row, thumbnailLinkSelectors, "href")
	}

	return shorts.RawCandidate{
		Title:        title,
		URL:          href,
		ThumbnailURL: thumb,
		DurationText: duration,
		Metadata:     metadata,
	}, true
}

func titleAndHref(row *goquery.Selection) (title, href string) {
	for _, sel := range titleSelectors {
		node := row.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if h, ok := node.Attr("href"); ok && h != "" {
			return strings.TrimSpace(node.Text()), h
		}
		if title == "" {
			title = strings.TrimSpace(node.Text())
		}
	}
	return title, ""
}

// firstText returns the first non-empty trimmed text among the selectors.
func firstText(row *goquery.Selection, selectors []string) string {
	for _, sel := range selectors {
		text := strings.TrimSpace(row.Find(sel).First().Text())
		if text != "" {
			return text
		}
	}
	return ""
}

// firstAttr returns the first non-empty attribute value among the selectors.
func firstAttr(row *goquery.Selection, selectors []string, attr string) string {
	for _, sel := range selectors {
		if val, ok := row.Find(sel).First().Attr(attr); ok && val != "" {
			return val
		}
	}
	return ""
}
