// Package cleanup enforces the log retention window on both log streams.
package cleanup

import "time"

// DefaultRetentionDays is the window applied when no custom window is given.
const DefaultRetentionDays = 90

// Cutoff returns the instant before which entries are expired: now minus days*24h.
// Non-positive windows yield a cutoff at or after now.
func Cutoff(days int, now time.Time) time.Time {
	return now.Add(-time.Duration(days) * 24 * time.Hour)
}

// Policy resolves the effective retention window for a run.
type Policy struct {
	DefaultDays int
}

// DefaultPolicy returns a Policy using DefaultRetentionDays.
func DefaultPolicy() Policy {
	return Policy{DefaultDays: DefaultRetentionDays}
}

// Resolve returns days when provided, otherwise the default window.
func (p Policy) Resolve(days *int) int {
	if days != nil {
		return *days
	}
	if p.DefaultDays == 0 {
		return DefaultRetentionDays
	}
	return p.DefaultDays
}
