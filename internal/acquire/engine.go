package acquire

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jkmedia/shortscout/internal/hash/sha256"
	"github.com/jkmedia/shortscout/internal/metrics"
	"github.com/jkmedia/shortscout/internal/shorts"
)

// Config controls the acquisition engine.
type Config struct {
	// WorkDir receives the downloaded media and thumbnail files.
	WorkDir string
	// MaxAttempts bounds the download retry loop.
	MaxAttempts int
	// BackoffCap limits the exponential wait between attempts.
	BackoffCap time.Duration
	// Format is the downloader format preference.
	Format string
	// Binary overrides the yt-dlp executable path.
	Binary string
	// UserAgent is sent on thumbnail fetches.
	UserAgent string
	// ThumbnailTimeout bounds a single thumbnail fetch.
	ThumbnailTimeout time.Duration

	Auth AuthConfig
}

func (c *Config) applyDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = 30 * time.Second
	}
	if c.Format == "" {
		c.Format = "best[ext=mp4]/best"
	}
	if c.ThumbnailTimeout <= 0 {
		c.ThumbnailTimeout = 15 * time.Second
	}
}

// Engine implements shorts.Acquirer: media download with auth fallback and
// bounded retries, then thumbnail normalization. Partial files never survive
// a failed attempt.
type Engine struct {
	cfg    Config
	runner Runner
	client *http.Client
	sleep  shorts.Sleeper
	hasher *sha256.Hasher
	logger *zap.Logger
}

// New builds an engine with the real yt-dlp runner and HTTP client.
func New(cfg Config, sleeper shorts.Sleeper, logger *zap.Logger) *Engine {
	cfg.applyDefaults()
	return &Engine{
		cfg:    cfg,
		runner: NewRunner(cfg.Binary),
		client: &http.Client{Timeout: cfg.ThumbnailTimeout},
		sleep:  sleeper,
		hasher: sha256.New(),
		logger: logger,
	}
}

// NewWithDeps injects the runner and HTTP client, for tests.
func NewWithDeps(cfg Config, runner Runner, client *http.Client, sleeper shorts.Sleeper, logger *zap.Logger) *Engine {
	cfg.applyDefaults()
	return &Engine{cfg: cfg, runner: runner, client: client, sleep: sleeper, hasher: sha256.New(), logger: logger}
}

// Acquire downloads the candidate's media and thumbnail into the work dir.
// On any failure no local file is left behind.
func (e *Engine) Acquire(ctx context.Context, cand shorts.Candidate) (shorts.Acquisition, error) {
	id := shorts.VideoID(cand.URL)

	mediaPath, strategy, err := e.download(ctx, cand.URL, id)
	if err != nil {
		return shorts.Acquisition{}, err
	}

	thumbPath, err := e.resolveThumbnail(ctx, cand, id)
	if err != nil {
		e.removeFile(mediaPath)
		return shorts.Acquisition{}, err
	}

	digest, err := e.hasher.HashFile(mediaPath)
	if err != nil {
		e.logger.Warn("media checksum failed", zap.String("media", mediaPath), zap.Error(err))
	}

	e.logger.Info("candidate acquired",
		zap.String("url", cand.URL),
		zap.String("media", mediaPath),
		zap.String("thumbnail", thumbPath),
		zap.String("sha256", digest),
		zap.Stringer("strategy", strategy),
	)
	return shorts.Acquisition{
		MediaPath:     mediaPath,
		ThumbnailPath: thumbPath,
		Strategy:      strategy,
	}, nil
}

func (e *Engine) download(ctx context.Context, url, id string) (string, shorts.AuthStrategy, error) {
	strategy := ResolveStrategy(e.cfg.Auth)
	mediaPath := filepath.Join(e.cfg.WorkDir, id+".mp4")

	downgraded := false
	var lastErr error

	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			wait := backoff(attempt-1, e.cfg.BackoffCap)
			metrics.ObserveAcquireBackoff(wait)
			e.logger.Info("waiting before retry",
				zap.String("url", url),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
			)
			if err := e.sleep.Sleep(ctx, wait); err != nil {
				return "", strategy, fmt.Errorf("download canceled: %w", err)
			}
		}

		out, err := e.runner.Run(ctx, e.cfg.WorkDir, e.downloadArgs(url, id, strategy)...)
		if err == nil {
			if fileExists(mediaPath) {
				return mediaPath, strategy, nil
			}
			err = fmt.Errorf("downloader exited cleanly but %s is missing", filepath.Base(mediaPath))
		} else {
			err = fmt.Errorf("%w: %s", err, tail(out, 512))
		}

		e.removePartials(id)
		metrics.IncAcquireFailure()

		if isAuthFailure(err, out) && !downgraded {
			// Credentials look burned. Drop them once and go conservative.
			e.logger.Warn("auth or bot-detection failure, switching to no-auth fallback",
				zap.String("url", url),
				zap.Stringer("strategy", strategy),
			)
			strategy = shorts.AuthFallback
			downgraded = true
		}
		lastErr = err
		e.logger.Warn("download attempt failed",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}

	return "", strategy, fmt.Errorf("download %s failed after %d attempts: %w", url, e.cfg.MaxAttempts, lastErr)
}

func (e *Engine) downloadArgs(url, id string, strategy shorts.AuthStrategy) []string {
	args := []string{
		"-f", e.cfg.Format,
		"-o", id + ".%(ext)s",
		"--no-playlist",
		"--no-warnings",
		"--geo-bypass",
		"--socket-timeout", "60",
		"--retries", "2",
		"--fragment-retries", "2",
	}
	args = append(args, strategyArgs(strategy, e.cfg.Auth)...)
	return append(args, url)
}

// authFailureMarkers are the signatures the source emits for credential or
// automated-traffic challenges.
var authFailureMarkers = []string{"sign in to confirm", "bot"}

func isAuthFailure(err error, output string) bool {
	text := strings.ToLower(output)
	if err != nil {
		text += " " + strings.ToLower(err.Error())
	}
	for _, marker := range authFailureMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// backoff returns min(2^failures seconds, limit).
func backoff(failures int, limit time.Duration) time.Duration {
	if failures > 30 {
		return limit
	}
	d := time.Duration(1<<uint(failures)) * time.Second
	if d > limit {
		return limit
	}
	return d
}

// removePartials deletes every artifact of an aborted download so the next
// attempt cannot mistake a truncated file for a finished one.
func (e *Engine) removePartials(id string) {
	pattern := filepath.Join(e.cfg.WorkDir, id+".*")
	paths, err := filepath.Glob(pattern)
	if err != nil {
		e.logger.Warn("partial cleanup glob failed", zap.String("pattern", pattern), zap.Error(err))
		return
	}
	for _, p := range paths {
		e.removeFile(p)
	}
}

func (e *Engine) removeFile(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		e.logger.Warn("failed to remove file", zap.String("path", path), zap.Error(err))
	}
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
