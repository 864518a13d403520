package extract

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// ProbeConfig controls the cheap, non-rendering fetch attempt.
type ProbeConfig struct {
	UserAgent      string
	RequestTimeout time.Duration
}

// Probe fetches the search page without JavaScript. Most result pages need a
// rendering pass anyway, but when the static payload already carries the
// result markup the probe saves a full browser round-trip.
type Probe struct {
	base   *colly.Collector
	logger *zap.Logger
}

// NewProbe constructs a colly-backed probe fetcher.
func NewProbe(cfg ProbeConfig, logger *zap.Logger) *Probe {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	base := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
	)
	base.AllowURLRevisit = true
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          16,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.RequestTimeout,
		ForceAttemptHTTP2:     true,
	})
	base.SetRequestTimeout(cfg.RequestTimeout)

	return &Probe{base: base, logger: logger}
}

// Fetch retrieves the page body without rendering.
func (p *Probe) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	collector := p.base.Clone()
	resultCh := make(chan probeResult, 1)
	var once sync.Once
	send := func(res probeResult) {
		once.Do(func() { resultCh <- res })
	}

	collector.OnResponse(func(r *colly.Response) {
		send(probeResult{body: append([]byte{}, r.Body...)})
	})
	collector.OnError(func(_ *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown colly error")
		}
		send(probeResult{err: err})
	})

	if err := collector.Visit(rawURL); err != nil {
		return nil, err
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return res.body, res.err
	default:
		return nil, errors.New("probe produced no result")
	}
}

type probeResult struct {
	body []byte
	err  error
}
