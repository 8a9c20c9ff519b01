package logs

import (
	"sort"
	"time"

	"github.com/narvanalabs/logkeeper/internal/models"
)

// Stats are level counts over a loaded working set.
type Stats struct {
	Total   int `json:"total"`
	Info    int `json:"info"`
	Success int `json:"success"`
	Warning int `json:"warning"`
	Error   int `json:"error"`
	Today   int `json:"today"`
}

// ComputeStats counts entries per level and those at or after the start of now's day
// in now's location. Entries with an unknown level count toward Total only.
func ComputeStats(entries []*models.LogEntry, now time.Time) Stats {
	y, m, d := now.Date()
	startOfDay := time.Date(y, m, d, 0, 0, 0, 0, now.Location())

	var s Stats
	for _, e := range entries {
		s.Total++
		switch e.Level {
		case models.LevelInfo:
			s.Info++
		case models.LevelSuccess:
			s.Success++
		case models.LevelWarning:
			s.Warning++
		case models.LevelError:
			s.Error++
		}
		if !e.Timestamp.Before(startOfDay) {
			s.Today++
		}
	}
	return s
}

// ActorOption is one distinct actor in a working set.
type ActorOption struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// FilterOptions are the distinct discrete values present in a working set.
type FilterOptions struct {
	Modules []string      `json:"modules"`
	Actions []string      `json:"actions"`
	Actors  []ActorOption `json:"actors"`
}

// Options extracts sorted distinct modules, actions and actors from entries. Only the
// loaded entries are considered.
func Options(entries []*models.LogEntry) FilterOptions {
	modules := map[string]struct{}{}
	actions := map[string]struct{}{}
	actors := map[string]string{}

	for _, e := range entries {
		if e.Module != "" {
			modules[e.Module] = struct{}{}
		}
		if e.Action != "" {
			actions[e.Action] = struct{}{}
		}
		if key := e.Actor.Key(); key != "" {
			if _, seen := actors[key]; !seen {
				actors[key] = e.Actor.Label()
			}
		}
	}

	opts := FilterOptions{
		Modules: sortedKeys(modules),
		Actions: sortedKeys(actions),
		Actors:  make([]ActorOption, 0, len(actors)),
	}
	for key, label := range actors {
		opts.Actors = append(opts.Actors, ActorOption{Key: key, Label: label})
	}
	sort.Slice(opts.Actors, func(i, j int) bool {
		if opts.Actors[i].Label != opts.Actors[j].Label {
			return opts.Actors[i].Label < opts.Actors[j].Label
		}
		return opts.Actors[i].Key < opts.Actors[j].Key
	})
	return opts
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
