package common

import "time"

// Freshness windows for the selection cache. The last value has no window:
// a cached copy is shown while a refresh always runs.
const (
	FreshnessHistory   = 30 * time.Minute
	FreshnessPositions = 30 * time.Minute
)

// IsFreshAt reports whether updated is within ttl of now.
// An entry is fresh while now - updated < ttl.
func IsFreshAt(updated, now time.Time, ttl time.Duration) bool {
	if updated.IsZero() {
		return false
	}
	return now.Sub(updated) < ttl
}
