package shorts

import (
	"context"
	"time"
)

// Store persists candidates and their publish state.
type Store interface {
	// Upsert inserts a new candidate or refreshes the title, thumbnail and
	// partition of an existing one. It never touches the publish timestamp
	// or an already-resolved duration. The returned flag reports whether a
	// new row was created and exists for logging only.
	Upsert(ctx context.Context, cand Candidate) (created bool, err error)

	// BackfillDuration resolves the duration of a candidate whose duration
	// is still zero. Resolved rows and absent URLs are left untouched.
	BackfillDuration(ctx context.Context, url string, seconds int) error

	// SelectPending returns at most one pending candidate per requested
	// partition, oldest first within each partition. Partitions with no
	// eligible candidate are omitted. A row handed out for one partition is
	// not visible to the remaining partitions of the same call.
	SelectPending(ctx context.Context, partitions []Partition) ([]Candidate, error)

	// MarkPublished stamps the candidate as published. It returns
	// ErrNotFound for unknown URLs and is a no-op for rows that already
	// carry a publish timestamp.
	MarkPublished(ctx context.Context, url string, at time.Time) error

	Close()
}

// Extractor turns a rendered search results page into raw candidate rows.
// The sequence is best-effort: rows with unrecognized markup are omitted.
type Extractor interface {
	Extract(ctx context.Context, target SearchTarget) ([]RawCandidate, error)
}

// Acquirer downloads the media and thumbnail for a selected candidate.
type Acquirer interface {
	Acquire(ctx context.Context, cand Candidate) (Acquisition, error)
}

// Publisher submits an acquisition downstream and records the publish.
// Implementations must delete both local files on every return path.
type Publisher interface {
	Publish(ctx context.Context, cand Candidate, acq Acquisition) error
}

// Clock returns the current time (swappable for tests).
type Clock interface {
	Now() time.Time
}

// Sleeper blocks for a duration or until the context finishes.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}
