// Package extract turns search result pages into raw candidate rows.
package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RendererConfig controls the headless rendering pass.
type RendererConfig struct {
	UserAgent      string
	AcceptLanguage string
	NavTimeout     time.Duration
	ScrollPause    time.Duration
	MaxScrolls     int
	NavQPS         float64
}

// Renderer loads a search page with JavaScript enabled, scrolls until the
// result list stops growing, and returns the final DOM snapshot.
type Renderer struct {
	cfg         RendererConfig
	allocator   context.Context
	allocCancel context.CancelFunc
	limiter     *rate.Limiter
	logger      *zap.Logger
}

// NewRenderer builds a chromedp-backed renderer. The browser process starts
// lazily on the first Render call.
func NewRenderer(cfg RendererConfig, logger *zap.Logger) (*Renderer, error) {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 45 * time.Second
	}
	if cfg.ScrollPause <= 0 {
		cfg.ScrollPause = 2 * time.Second
	}
	if cfg.MaxScrolls <= 0 {
		cfg.MaxScrolls = 8
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1920, 1080),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.NavQPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.NavQPS), 1)
	}

	return &Renderer{
		cfg:         cfg,
		allocator:   allocCtx,
		allocCancel: allocCancel,
		limiter:     limiter,
		logger:      logger,
	}, nil
}

// Close tears down the browser allocator.
func (r *Renderer) Close() {
	if r == nil {
		return
	}
	r.allocCancel()
}

// Render navigates to rawURL and returns the scrolled-out page HTML.
func (r *Renderer) Render(ctx context.Context, rawURL string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("render rate limit: %w", err)
	}

	tabCtx, cancelTab := chromedp.NewContext(r.allocator)
	defer cancelTab()

	taskCtx, cancelTask := context.WithTimeout(tabCtx, r.cfg.NavTimeout)
	defer cancelTask()

	stop := forwardCancel(ctx, cancelTask)
	defer stop()

	tasks := chromedp.Tasks{network.Enable()}
	if r.cfg.AcceptLanguage != "" {
		tasks = append(tasks, network.SetExtraHTTPHeaders(network.Headers{
			"Accept-Language": r.cfg.AcceptLanguage,
		}))
	}
	tasks = append(tasks,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body"),
	)
	if err := chromedp.Run(taskCtx, tasks); err != nil {
		return "", fmt.Errorf("navigate %s: %w", rawURL, err)
	}

	if err := r.scrollOut(taskCtx); err != nil {
		// A timeout mid-scroll still leaves a usable partial page.
		r.logger.Warn("scroll pass incomplete", zap.String("url", rawURL), zap.Error(err))
	}

	var html string
	if err := chromedp.Run(taskCtx, chromedp.OuterHTML("html", &html)); err != nil {
		return "", fmt.Errorf("snapshot dom: %w", err)
	}
	return html, nil
}

// scrollOut scrolls to the bottom until the document height stabilizes or the
// scroll budget runs out, so lazily-loaded result rows make it into the DOM.
func (r *Renderer) scrollOut(ctx context.Context) error {
	lastHeight := int64(-1)
	for i := 0; i < r.cfg.MaxScrolls; i++ {
		var height int64
		err := chromedp.Run(ctx,
			chromedp.Evaluate(`window.scrollTo(0, document.documentElement.scrollHeight); document.documentElement.scrollHeight`, &height),
			chromedp.Sleep(r.cfg.ScrollPause),
		)
		if err != nil {
			return err
		}
		if height == lastHeight {
			return nil
		}
		lastHeight = height
	}
	return nil
}

// forwardCancel propagates cancellation of the outer context into the
// chromedp task context, which otherwise only honors its own timeout.
func forwardCancel(outer context.Context, cancel context.CancelFunc) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-outer.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
