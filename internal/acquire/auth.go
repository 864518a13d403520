// Package acquire downloads media and thumbnails for selected candidates.
package acquire

import (
	"os"

	"github.com/jkmedia/shortscout/internal/shorts"
)

// AuthConfig points at the credential material the download tool can use.
type AuthConfig struct {
	// CookieFile is a Netscape-format cookie export. Highest priority.
	CookieFile string
	// NetrcFile is a machine-level login record.
	NetrcFile string
	// BrowserProfileDir is a Chrome config directory to lift cookies from.
	BrowserProfileDir string
}

// ResolveStrategy picks the first available credential source, falling back
// to the conservative no-auth profile when none exists.
func ResolveStrategy(cfg AuthConfig) shorts.AuthStrategy {
	if fileExists(cfg.CookieFile) {
		return shorts.AuthCookieFile
	}
	if fileExists(cfg.NetrcFile) {
		return shorts.AuthNetrc
	}
	if dirExists(cfg.BrowserProfileDir) {
		return shorts.AuthBrowserCookies
	}
	return shorts.AuthFallback
}

const fallbackUserAgent = "Mozilla/5.0 (Linux; Android 10; SM-G973F) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36"

// strategyArgs translates a strategy into downloader flags. The fallback
// profile trades speed for a lower bot-detection profile: alternate player
// clients, skipped formats that demand auth, and longer sleeps.
func strategyArgs(strategy shorts.AuthStrategy, cfg AuthConfig) []string {
	switch strategy {
	case shorts.AuthCookieFile:
		return []string{"--cookies", cfg.CookieFile}
	case shorts.AuthNetrc:
		return []string{"--netrc", "--netrc-location", cfg.NetrcFile}
	case shorts.AuthBrowserCookies:
		return []string{"--cookies-from-browser", "chrome"}
	case shorts.AuthFallback:
		return []string{
			"--extractor-args", "youtube:player_client=mweb,web,android;skip=hls,dash;player_skip=webpage,configs",
			"--sleep-requests", "2",
			"--sleep-interval", "2",
			"--max-sleep-interval", "10",
			"--user-agent", fallbackUserAgent,
		}
	default:
		return nil
	}
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
