package acquire

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/jkmedia/shortscout/internal/shorts"
)

// Canonical thumbnail dimensions expected by the downstream API.
const (
	thumbnailWidth  = 480
	thumbnailHeight = 270
)

// placeholderRefs are sentinel values the extractor emits when no thumbnail
// was found; a candidate cannot be published without one.
func isPlaceholderRef(ref string) bool {
	return ref == "" || strings.EqualFold(ref, "unknown")
}

// resolveThumbnail fetches the thumbnail reference, normalizes it to the
// canonical size, and writes it as <id>.jpg in the work dir.
func (e *Engine) resolveThumbnail(ctx context.Context, cand shorts.Candidate, id string) (string, error) {
	ref := strings.TrimSpace(cand.ThumbnailURL)
	if isPlaceholderRef(ref) {
		return "", fmt.Errorf("candidate %s: %w", cand.URL, shorts.ErrNoThumbnail)
	}

	fetchURL := normalizeThumbnailURL(ref)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return "", fmt.Errorf("thumbnail request: %w", err)
	}
	if e.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", e.cfg.UserAgent)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch thumbnail %s: %w", fetchURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch thumbnail %s: status %d", fetchURL, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return "", fmt.Errorf("fetch thumbnail %s: unexpected content type %q", fetchURL, ct)
	}

	img, err := imaging.Decode(resp.Body)
	if err != nil {
		return "", fmt.Errorf("decode thumbnail %s: %w", fetchURL, err)
	}

	resized := imaging.Resize(img, thumbnailWidth, thumbnailHeight, imaging.Lanczos)
	path := filepath.Join(e.cfg.WorkDir, id+".jpg")
	if err := imaging.Save(resized, path, imaging.JPEGQuality(90)); err != nil {
		e.removeFile(path)
		return "", fmt.Errorf("save thumbnail: %w", err)
	}
	return path, nil
}

// normalizeThumbnailURL rewrites AVIF variants to their JPEG twin and strips
// the signed query parameters that force a WebP response.
func normalizeThumbnailURL(ref string) string {
	if strings.Contains(ref, "avif") {
		return strings.ReplaceAll(ref, "avif", "jpg")
	}
	if i := strings.Index(ref, "?sqp="); i >= 0 {
		return ref[:i]
	}
	return ref
}
