package catalog

import (
	"context"
	"fmt"
)

// Schema statements executed at startup, mirroring the original single-table
// layout. The partial index backs the SelectPending fairness query.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS candidates (
	url              TEXT PRIMARY KEY,
	title            TEXT NOT NULL DEFAULT '',
	thumbnail_url    TEXT NOT NULL DEFAULT '',
	language         INTEGER NOT NULL,
	category         INTEGER NOT NULL,
	duration_seconds INTEGER NOT NULL DEFAULT 0,
	metadata         TEXT NOT NULL DEFAULT '',
	published_at     TIMESTAMPTZ,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE INDEX IF NOT EXISTS candidates_pending_idx
	ON candidates (language, category, created_at)
	WHERE published_at IS NULL AND duration_seconds > 0`,
}

func (s *Store) ensureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
