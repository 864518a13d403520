package shorts

import (
	"fmt"
	"net/url"
	"strings"
)

// CanonicalURL normalizes a video URL into the catalog dedup key.
// The scheme and host are lowercased, fragments dropped, and every query
// parameter except the video identifier stripped. Shorts URLs keep only
// their path.
func CanonicalURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	if strings.Contains(u.Path, "/shorts/") {
		u.RawQuery = ""
		return u.String(), nil
	}

	id := u.Query().Get("v")
	if id == "" {
		return "", fmt.Errorf("url %q has no video identifier", rawURL)
	}
	q := url.Values{}
	q.Set("v", id)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// VideoID extracts the identifier used for deterministic local file names.
// It expects a canonical URL; for anything else it falls back to a sanitized
// form of the whole string so names stay collision-resistant.
func VideoID(canonicalURL string) string {
	u, err := url.Parse(canonicalURL)
	if err == nil {
		if id := u.Query().Get("v"); id != "" {
			return id
		}
		if i := strings.LastIndex(u.Path, "/shorts/"); i >= 0 {
			id := strings.Trim(u.Path[i+len("/shorts/"):], "/")
			if id != "" {
				return id
			}
		}
	}
	replacer := strings.NewReplacer("/", "_", ":", "_", "?", "_", "&", "_", "=", "_")
	return replacer.Replace(canonicalURL)
}
