// Package pipeline coordinates a discovery and publish run: search pages
// are extracted and cataloged, then at most one pending candidate per
// partition is acquired and pushed to the distribution endpoint.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jkmedia/shortscout/internal/metrics"
	"github.com/jkmedia/shortscout/internal/shorts"
)

// Config holds run-level knobs.
type Config struct {
	// RunTimeout bounds a whole Run; zero means no deadline.
	RunTimeout time.Duration
}

// Pipeline wires the catalog, extractor, acquirer and publisher together.
// One candidate failing any stage never aborts the rest of the run.
type Pipeline struct {
	cfg       Config
	targets   []shorts.SearchTarget
	store     shorts.Store
	extractor shorts.Extractor
	acquirer  shorts.Acquirer
	publisher shorts.Publisher
	clock     shorts.Clock
	logger    *zap.Logger
}

// New builds a Pipeline over the given search targets.
func New(
	cfg Config,
	targets []shorts.SearchTarget,
	store shorts.Store,
	extractor shorts.Extractor,
	acquirer shorts.Acquirer,
	publisher shorts.Publisher,
	clock shorts.Clock,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		targets:   targets,
		store:     store,
		extractor: extractor,
		acquirer:  acquirer,
		publisher: publisher,
		clock:     clock,
		logger:    logger,
	}
}

// Run executes one full cycle: discovery over every target followed by a
// publish pass. It always returns a summary, even when every candidate
// failed; the error is non-nil only when the run could not proceed at
// all (catalog unavailable, context canceled before work started).
func (p *Pipeline) Run(ctx context.Context) (shorts.RunSummary, error) {
	summary := shorts.RunSummary{
		RunID:   uuid.NewString(),
		Started: p.clock.Now().UTC(),
	}
	logger := p.logger.With(zap.String("run_id", summary.RunID))

	if p.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.RunTimeout)
		defer cancel()
	}

	summary.Discovered = p.Discover(ctx)

	selected, published, failed, err := p.PublishPending(ctx)
	summary.Selected = selected
	summary.Published = published
	summary.Failed = failed
	summary.Finished = p.clock.Now().UTC()

	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	metrics.ObserveRun(outcome)

	logger.Info("run finished",
		zap.Int("discovered", summary.Discovered),
		zap.Int("selected", summary.Selected),
		zap.Int("published", summary.Published),
		zap.Int("failed", summary.Failed),
		zap.Duration("elapsed", summary.Finished.Sub(summary.Started)),
	)
	if err != nil {
		return summary, fmt.Errorf("run %s: %w", summary.RunID, err)
	}
	return summary, nil
}

// Discover walks every search target, extracts its result rows and
// upserts them into the catalog. A target that fails to extract is
// logged and skipped; the count of cataloged candidates is returned.
func (p *Pipeline) Discover(ctx context.Context) int {
	discovered := 0
	for _, target := range p.targets {
		if ctx.Err() != nil {
			p.logger.Warn("discovery cut short", zap.Error(ctx.Err()))
			break
		}
		logger := p.logger.With(
			zap.String("target", target.URL),
			zap.String("partition", target.Partition.String()),
		)

		rows, err := p.extractor.Extract(ctx, target)
		if err != nil {
			logger.Error("extract failed", zap.Error(err))
			continue
		}

		for _, raw := range rows {
			if p.catalogCandidate(ctx, target, raw, logger) {
				discovered++
			}
		}
	}
	return discovered
}

// catalogCandidate canonicalizes one raw result row and upserts it.
// Rows with no recognizable video URL are dropped; rows whose duration
// badge cannot be parsed are cataloged with a zero duration so a later
// run can backfill it.
func (p *Pipeline) catalogCandidate(ctx context.Context, target shorts.SearchTarget, raw shorts.RawCandidate, logger *zap.Logger) bool {
	canon, err := shorts.CanonicalURL(raw.URL)
	if err != nil {
		logger.Debug("dropping unrecognized result link",
			zap.String("href", raw.URL),
			zap.Error(err),
		)
		return false
	}

	seconds := 0
	if raw.DurationText != "" {
		seconds, err = shorts.ParseTimecode(raw.DurationText)
		if err != nil {
			logger.Warn("duration badge not parseable",
				zap.String("url", canon),
				zap.String("badge", raw.DurationText),
			)
			seconds = 0
		}
	}

	cand := shorts.Candidate{
		URL:          canon,
		Title:        raw.Title,
		ThumbnailURL: raw.ThumbnailURL,
		Partition:    target.Partition,
		Duration:     seconds,
		Metadata:     raw.Metadata,
	}
	created, err := p.store.Upsert(ctx, cand)
	if err != nil {
		logger.Error("upsert failed", zap.String("url", canon), zap.Error(err))
		return false
	}
	if created {
		metrics.ObserveDiscovered(target.Partition.String(), 1)
		return true
	}
	if seconds > 0 {
		if err := p.store.BackfillDuration(ctx, canon, seconds); err != nil {
			logger.Warn("duration backfill failed", zap.String("url", canon), zap.Error(err))
		}
	}
	return false
}

// PublishPending selects at most one pending candidate per partition and
// runs each through acquisition and publication. Failures are isolated
// per candidate; a selection error is fatal because nothing can proceed
// without the catalog.
func (p *Pipeline) PublishPending(ctx context.Context) (selected, published, failed int, err error) {
	partitions := uniquePartitions(p.targets)
	if len(partitions) == 0 {
		return 0, 0, 0, nil
	}

	work, err := p.store.SelectPending(ctx, partitions)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("select pending: %w", err)
	}
	selected = len(work)

	for _, cand := range work {
		if ctx.Err() != nil {
			p.logger.Warn("publish pass cut short",
				zap.Int("remaining", selected-published-failed),
				zap.Error(ctx.Err()),
			)
			break
		}
		logger := p.logger.With(
			zap.String("url", cand.URL),
			zap.String("partition", cand.Partition.String()),
		)
		metrics.ObserveSelected(cand.Partition.String())

		acq, aerr := p.acquirer.Acquire(ctx, cand)
		if aerr != nil {
			failed++
			logger.Error("acquisition failed", zap.Error(aerr))
			continue
		}
		if perr := p.publisher.Publish(ctx, cand, acq); perr != nil {
			failed++
			logger.Error("publish failed", zap.Error(perr))
			continue
		}
		published++
		logger.Info("candidate published", zap.Int("duration_seconds", cand.Duration))
	}
	return selected, published, failed, nil
}

// uniquePartitions returns the distinct partitions of the configured
// targets, in first-seen order so selection is deterministic.
func uniquePartitions(targets []shorts.SearchTarget) []shorts.Partition {
	seen := make(map[shorts.Partition]struct{}, len(targets))
	out := make([]shorts.Partition, 0, len(targets))
	for _, t := range targets {
		if _, ok := seen[t.Partition]; ok {
			continue
		}
		seen[t.Partition] = struct{}{}
		out = append(out, t.Partition)
	}
	return out
}
