package shorts

import (
	"fmt"
	"strings"
)

// ParseTimecode converts a colon-delimited duration token ("1:05", "1:02:03")
// into total seconds. Any other shape returns ErrUnparseable so callers can
// tell "unknown duration" apart from a genuinely zero one.
func ParseTimecode(text string) (int, error) {
	parts := strings.Split(strings.TrimSpace(text), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("timecode %q: %w", text, ErrUnparseable)
	}

	values := make([]int, 0, len(parts))
	for _, part := range parts {
		n, ok := parseSegment(part)
		if !ok {
			return 0, fmt.Errorf("timecode %q: %w", text, ErrUnparseable)
		}
		values = append(values, n)
	}

	if len(values) == 2 {
		return values[0]*60 + values[1], nil
	}
	return values[0]*3600 + values[1]*60 + values[2], nil
}

// parseSegment accepts only non-empty runs of ASCII digits.
func parseSegment(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}
