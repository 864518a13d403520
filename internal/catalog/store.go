// Package catalog provides the Postgres-backed candidate store.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/jkmedia/shortscout/internal/shorts"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// dbConn is the slice of pgxpool.Pool the store actually uses, narrow enough
// for pgxmock to stand in during tests.
type dbConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Store persists candidates in a single Postgres table keyed by canonical URL.
type Store struct {
	pool   dbConn
	logger *zap.Logger
}

// New connects a pool and ensures the schema exists.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store := &Store{pool: pool, logger: logger}
	if err := store.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewWithConn constructs a store from an existing connection (primarily for
// testing with pgxmock).
func NewWithConn(conn dbConn, logger *zap.Logger) (*Store, error) {
	if conn == nil {
		return nil, fmt.Errorf("db connection is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{pool: conn, logger: logger}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const upsertSQL = `
INSERT INTO candidates (url, title, thumbnail_url, language, category, duration_seconds, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (url) DO UPDATE SET
	title = EXCLUDED.title,
	thumbnail_url = EXCLUDED.thumbnail_url,
	language = EXCLUDED.language,
	category = EXCLUDED.category
RETURNING (xmax = 0) AS inserted`

// Upsert inserts a candidate or refreshes its mutable attributes. The publish
// timestamp and a resolved duration are never overwritten here.
func (s *Store) Upsert(ctx context.Context, cand shorts.Candidate) (bool, error) {
	if cand.URL == "" {
		return false, fmt.Errorf("candidate url is required")
	}
	var inserted bool
	err := s.pool.QueryRow(ctx, upsertSQL,
		cand.URL,
		cand.Title,
		cand.ThumbnailURL,
		cand.Partition.Language,
		cand.Partition.Category,
		cand.Duration,
		cand.Metadata,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("upsert candidate: %w", err)
	}
	return inserted, nil
}

const backfillSQL = `
UPDATE candidates SET duration_seconds = $2
WHERE url = $1 AND duration_seconds = 0`

// BackfillDuration resolves a still-unknown duration. Misses are logged, not
// surfaced: an absent URL or an already-resolved row is not a caller problem.
func (s *Store) BackfillDuration(ctx context.Context, url string, seconds int) error {
	if seconds <= 0 {
		return fmt.Errorf("duration must be positive, got %d", seconds)
	}
	tag, err := s.pool.Exec(ctx, backfillSQL, url, seconds)
	if err != nil {
		return fmt.Errorf("backfill duration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		s.logger.Debug("duration backfill skipped",
			zap.String("url", url),
			zap.Int("seconds", seconds),
		)
	}
	return nil
}

const selectPendingSQL = `
SELECT url, title, thumbnail_url, language, category, duration_seconds, metadata, published_at, created_at
FROM candidates
WHERE language = $1 AND category = $2 AND published_at IS NULL AND duration_seconds > 0
ORDER BY created_at ASC
LIMIT 1
FOR UPDATE SKIP LOCKED`

// SelectPending picks the oldest eligible candidate per partition, in the
// given partition order. All lookups run in one transaction with row locks so
// a row handed out for one partition cannot satisfy a later one.
func (s *Store) SelectPending(ctx context.Context, partitions []shorts.Partition) ([]shorts.Candidate, error) {
	if len(partitions) == 0 {
		return nil, nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin select: %w", err)
	}
	defer func() {
		// No-op after a successful commit.
		_ = tx.Rollback(ctx)
	}()

	out := make([]shorts.Candidate, 0, len(partitions))
	for _, part := range partitions {
		cand, err := scanCandidate(tx.QueryRow(ctx, selectPendingSQL, part.Language, part.Category))
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("select pending for %s: %w", part, err)
		}
		out = append(out, cand)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit select: %w", err)
	}
	return out, nil
}

const markPublishedSQL = `
UPDATE candidates SET published_at = $2
WHERE url = $1 AND published_at IS NULL`

const publishedProbeSQL = `
SELECT published_at IS NOT NULL FROM candidates WHERE url = $1`

// MarkPublished stamps a candidate as published. Calling it again for the same
// URL is a no-op; an unknown URL is shorts.ErrNotFound.
func (s *Store) MarkPublished(ctx context.Context, url string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, markPublishedSQL, url, at)
	if err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var alreadyPublished bool
	err = s.pool.QueryRow(ctx, publishedProbeSQL, url).Scan(&alreadyPublished)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("mark published %q: %w", url, shorts.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("probe publish state: %w", err)
	}
	if alreadyPublished {
		s.logger.Debug("candidate already published", zap.String("url", url))
		return nil
	}
	// Unreachable unless the row mutated between the two statements.
	return fmt.Errorf("mark published %q: row not updated", url)
}

func scanCandidate(row pgx.Row) (shorts.Candidate, error) {
	var cand shorts.Candidate
	err := row.Scan(
		&cand.URL,
		&cand.Title,
		&cand.ThumbnailURL,
		&cand.Partition.Language,
		&cand.Partition.Category,
		&cand.Duration,
		&cand.Metadata,
		&cand.PublishedAt,
		&cand.CreatedAt,
	)
	if err != nil {
		return shorts.Candidate{}, err
	}
	return cand, nil
}
