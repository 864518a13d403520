// Package app initializes and holds the long-lived services of the
// pipeline, acting as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jkmedia/shortscout/internal/acquire"
	"github.com/jkmedia/shortscout/internal/api"
	"github.com/jkmedia/shortscout/internal/catalog"
	"github.com/jkmedia/shortscout/internal/clock/system"
	"github.com/jkmedia/shortscout/internal/config"
	"github.com/jkmedia/shortscout/internal/extract"
	"github.com/jkmedia/shortscout/internal/logging"
	"github.com/jkmedia/shortscout/internal/pipeline"
	"github.com/jkmedia/shortscout/internal/publish"
	"github.com/jkmedia/shortscout/internal/shorts"
)

// App holds the shared services built from configuration. It is
// initialized once at startup and passed to the commands that need it.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	store    *catalog.Store
	renderer *extract.Renderer
	pipeline *pipeline.Pipeline
	server   *api.Server
}

// New builds every service the pipeline needs, failing fast when a
// critical dependency cannot be initialized.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	store, err := catalog.New(ctx, catalog.Config{
		DSN:             cfg.DB.DSN,
		MaxConns:        int32(cfg.DB.MaxConns),
		MinConns:        int32(cfg.DB.MinConns),
		MaxConnLifetime: time.Duration(cfg.DB.ConnLifetimeMinutes) * time.Minute,
	}, logging.ForComponent(logger, "catalog"))
	if err != nil {
		return nil, fmt.Errorf("init catalog: %w", err)
	}

	extractLogger := logging.ForComponent(logger, "extract")
	renderer, err := extract.NewRenderer(extract.RendererConfig{
		UserAgent:      cfg.Extract.UserAgent,
		AcceptLanguage: cfg.Extract.AcceptLanguage,
		NavTimeout:     time.Duration(cfg.Extract.NavTimeoutSeconds) * time.Second,
		ScrollPause:    time.Duration(cfg.Extract.ScrollPauseMs) * time.Millisecond,
		MaxScrolls:     cfg.Extract.MaxScrolls,
		NavQPS:         cfg.Extract.NavQPS,
	}, extractLogger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("init renderer: %w", err)
	}
	probe := extract.NewProbe(extract.ProbeConfig{
		UserAgent:      cfg.Extract.UserAgent,
		RequestTimeout: time.Duration(cfg.Extract.ProbeTimeoutSeconds) * time.Second,
	}, extractLogger)
	detector := extract.NewDefaultDetector(cfg.Extract.MinHTMLBytes)
	extractor := extract.NewPageExtractor(probe, renderer, detector, extractLogger)

	acquirer := acquire.New(acquire.Config{
		WorkDir:          cfg.Acquire.WorkDir,
		MaxAttempts:      cfg.Acquire.MaxAttempts,
		BackoffCap:       time.Duration(cfg.Acquire.BackoffCapSeconds) * time.Second,
		Format:           cfg.Acquire.Format,
		Binary:           cfg.Acquire.Binary,
		UserAgent:        cfg.Acquire.UserAgent,
		ThumbnailTimeout: time.Duration(cfg.Acquire.ThumbnailTimeoutSeconds) * time.Second,
		Auth: acquire.AuthConfig{
			CookieFile:        cfg.Acquire.CookieFile,
			NetrcFile:         cfg.Acquire.NetrcFile,
			BrowserProfileDir: cfg.Acquire.BrowserProfileDir,
		},
	}, system.NewSleeper(), logging.ForComponent(logger, "acquire"))

	clk := system.New()
	publisher, err := publish.New(publish.Config{
		Endpoint: cfg.Publish.Endpoint,
		ClientID: cfg.Publish.ClientID,
		Timeout:  time.Duration(cfg.Publish.TimeoutSeconds) * time.Second,
	}, store, clk, logging.ForComponent(logger, "publish"))
	if err != nil {
		renderer.Close()
		store.Close()
		return nil, fmt.Errorf("init publisher: %w", err)
	}

	pipe := pipeline.New(
		pipeline.Config{RunTimeout: cfg.RunTimeout()},
		cfg.Targets(),
		store,
		extractor,
		acquirer,
		publisher,
		clk,
		logging.ForComponent(logger, "pipeline"),
	)

	return &App{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		renderer: renderer,
		pipeline: pipe,
		server:   api.NewServer(logging.ForComponent(logger, "api")),
	}, nil
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Pipeline returns the assembled run pipeline.
func (a *App) Pipeline() *pipeline.Pipeline {
	return a.pipeline
}

// Store returns the candidate catalog.
func (a *App) Store() shorts.Store {
	return a.store
}

// Server returns the diagnostics HTTP server.
func (a *App) Server() *api.Server {
	return a.server
}

// ServeDiagnostics runs the diagnostics server until ctx is canceled,
// when the server is enabled in configuration.
func (a *App) ServeDiagnostics(ctx context.Context) {
	if !a.cfg.Server.Enabled {
		return
	}
	go func() {
		a.logger.Info("diagnostics server starting", zap.Int("port", a.cfg.Server.Port))
		if err := a.server.ListenAndServe(ctx, a.cfg.Server.Port); err != nil {
			a.logger.Error("diagnostics server failed", zap.Error(err))
		}
	}()
}

// Close shuts down all services. Called by a Cobra hook after the
// command finishes.
func (a *App) Close() {
	a.logger.Info("shutting down services")
	a.renderer.Close()
	a.store.Close()
	_ = a.logger.Sync()
}
