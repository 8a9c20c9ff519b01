// Package logs implements client-side querying over loaded log entries: filtering,
// paging, option extraction, stats, and CSV export.
package logs

import (
	"fmt"
	"strings"
	"time"

	"github.com/narvanalabs/logkeeper/internal/models"
	"github.com/narvanalabs/logkeeper/internal/store"
)

// DateLayout is the day-granular layout accepted for From and To.
const DateLayout = "2006-01-02"

// All disables a predicate, as does an empty value.
const All = "all"

// Predicate reports whether an entry is kept.
type Predicate func(*models.LogEntry) bool

// And composes predicates with logical AND. Nil predicates are ignored, and an
// empty composition keeps everything.
func And(preds ...Predicate) Predicate {
	active := make([]Predicate, 0, len(preds))
	for _, p := range preds {
		if p != nil {
			active = append(active, p)
		}
	}
	return func(e *models.LogEntry) bool {
		for _, p := range active {
			if !p(e) {
				return false
			}
		}
		return true
	}
}

// Apply returns the entries kept by p, preserving input order. The input is not modified.
func Apply(entries []*models.LogEntry, p Predicate) []*models.LogEntry {
	out := make([]*models.LogEntry, 0, len(entries))
	for _, e := range entries {
		if p == nil || p(e) {
			out = append(out, e)
		}
	}
	return out
}

// Filter is the set of predicates a caller may combine over a loaded working set.
type Filter struct {
	Level  string
	Module string
	Action string
	Actor  string
	Status string
	// From and To are inclusive YYYY-MM-DD bounds.
	From string
	To   string
	// Search is a case-insensitive substring over message, module, action and actor.
	Search string
	// Location resolves From/To day boundaries. Nil means UTC.
	Location *time.Location
}

func active(v string) bool {
	return v != "" && !strings.EqualFold(v, All)
}

func (f Filter) location() *time.Location {
	if f.Location == nil {
		return time.UTC
	}
	return f.Location
}

// Bounds returns the inclusive time range selected by From and To. A nil bound is open.
func (f Filter) Bounds() (from, to *time.Time, err error) {
	loc := f.location()
	if active(f.From) {
		d, err := time.ParseInLocation(DateLayout, f.From, loc)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid from date %q: %w", f.From, err)
		}
		from = &d
	}
	if active(f.To) {
		d, err := time.ParseInLocation(DateLayout, f.To, loc)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid to date %q: %w", f.To, err)
		}
		end := d.AddDate(0, 0, 1).Add(-time.Millisecond)
		to = &end
	}
	return from, to, nil
}

// Predicate builds the AND of every active predicate.
func (f Filter) Predicate() (Predicate, error) {
	var preds []Predicate

	if active(f.Level) {
		level := models.Level(strings.ToLower(f.Level))
		preds = append(preds, func(e *models.LogEntry) bool { return e.Level == level })
	}
	if active(f.Module) {
		module := f.Module
		preds = append(preds, func(e *models.LogEntry) bool { return e.Module == module })
	}
	if active(f.Action) {
		action := f.Action
		preds = append(preds, func(e *models.LogEntry) bool { return e.Action == action })
	}
	if active(f.Actor) {
		actor := f.Actor
		preds = append(preds, func(e *models.LogEntry) bool { return e.Actor.Matches(actor) })
	}
	if active(f.Status) {
		status := f.Status
		preds = append(preds, func(e *models.LogEntry) bool { return e.Status == status })
	}

	from, to, err := f.Bounds()
	if err != nil {
		return nil, err
	}
	if from != nil {
		lo := *from
		preds = append(preds, func(e *models.LogEntry) bool { return !e.Timestamp.Before(lo) })
	}
	if to != nil {
		hi := *to
		preds = append(preds, func(e *models.LogEntry) bool { return !e.Timestamp.After(hi) })
	}

	if q := strings.TrimSpace(f.Search); q != "" {
		preds = append(preds, SearchPredicate(q))
	}

	return And(preds...), nil
}

// SearchPredicate matches q case-insensitively against message, module, action and
// the actor's name or email. Any single field matching is enough.
func SearchPredicate(q string) Predicate {
	needle := strings.ToLower(q)
	return func(e *models.LogEntry) bool {
		if strings.Contains(strings.ToLower(e.Message), needle) ||
			strings.Contains(strings.ToLower(e.Module), needle) ||
			strings.Contains(strings.ToLower(e.Action), needle) {
			return true
		}
		for _, s := range e.Actor.SearchText() {
			if strings.Contains(s, needle) {
				return true
			}
		}
		return false
	}
}

// Pushdown returns the subset of the filter a store can evaluate: level, module and
// the lower date bound. The full Predicate must still be applied to the results.
func (f Filter) Pushdown() (store.LogQuery, error) {
	var q store.LogQuery
	if active(f.Level) {
		level, err := models.ParseLevel(f.Level)
		if err != nil {
			return q, err
		}
		q.Level = level
	}
	if active(f.Module) {
		q.Module = f.Module
	}
	from, _, err := f.Bounds()
	if err != nil {
		return q, err
	}
	q.Since = from
	return q, nil
}
