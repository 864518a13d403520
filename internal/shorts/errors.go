package shorts

import "errors"

// Sentinel errors shared across subsystems. Callers classify with errors.Is.
var (
	// ErrNotFound reports a catalog lookup for a URL that was never stored.
	ErrNotFound = errors.New("candidate not found")

	// ErrUnparseable reports a duration token that does not match MM:SS or
	// HH:MM:SS. Distinct from a genuine zero duration on purpose.
	ErrUnparseable = errors.New("unparseable timecode")

	// ErrNoThumbnail reports a candidate whose thumbnail reference is the
	// placeholder sentinel or resolves to nothing usable.
	ErrNoThumbnail = errors.New("thumbnail unresolved")

	// ErrEndpointMissing reports absent downstream endpoint configuration.
	// This is a fatal precondition, never retried.
	ErrEndpointMissing = errors.New("publish endpoint not configured")
)
