package document

import "time"

// IsProtected reports whether d has aged into its audit-protection window:
// true once now - CreatedAt >= protectAfter. Protection is derived from the
// clock at every call, never cached; now is passed in explicitly so tests
// (and callers with an injected clock) control it. A zero protectAfter
// protects every document from the moment it is created.
func IsProtected(d *Document, now time.Time, protectAfter time.Duration) bool {
	return now.Sub(d.CreatedAt) >= protectAfter
}
