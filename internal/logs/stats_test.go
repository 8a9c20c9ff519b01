package logs

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/prop"
	"github.com/narvanalabs/logkeeper/internal/models"
)

func TestStatsInvariants(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("level buckets sum to total and today never exceeds total", prop.ForAll(
		func(entries []*models.LogEntry) bool {
			s := ComputeStats(entries, baseTime)
			return s.Info+s.Success+s.Warning+s.Error == s.Total &&
				s.Total == len(entries) &&
				s.Today <= s.Total
		},
		genEntries(),
	))

	properties.TestingRun(t)
}

func TestStatsTodayUsesLocalStartOfDay(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, loc)
	entries := []*models.LogEntry{
		{Level: models.LevelInfo, Timestamp: time.Date(2024, 1, 15, 0, 0, 0, 0, loc)},
		{Level: models.LevelError, Timestamp: time.Date(2024, 1, 14, 23, 59, 0, 0, loc)},
		// 2024-01-14 19:00 UTC is 2024-01-15 00:30 IST.
		{Level: models.LevelWarning, Timestamp: time.Date(2024, 1, 14, 19, 0, 0, 0, time.UTC)},
	}

	s := ComputeStats(entries, now)
	want := Stats{Total: 3, Info: 1, Error: 1, Warning: 1, Today: 2}
	if s != want {
		t.Errorf("got %+v, want %+v", s, want)
	}
}

func TestOptionsFromLoadedSet(t *testing.T) {
	entries := []*models.LogEntry{
		{Module: "users", Action: "update", Actor: models.StructuredActor(models.Performer{ID: "u2", Name: "Bob"})},
		{Module: "auth", Action: "login", Actor: models.StructuredActor(models.Performer{ID: "u1", Name: "Alice"})},
		{Module: "auth", Action: "login", Actor: models.LegacyActor("carol", "")},
		{Module: "", Action: "", Actor: models.NoActor()},
	}

	opts := Options(entries)
	if len(opts.Modules) != 2 || opts.Modules[0] != "auth" || opts.Modules[1] != "users" {
		t.Errorf("modules = %v", opts.Modules)
	}
	if len(opts.Actions) != 2 || opts.Actions[0] != "login" {
		t.Errorf("actions = %v", opts.Actions)
	}
	want := []ActorOption{{Key: "u1", Label: "Alice"}, {Key: "u2", Label: "Bob"}, {Key: "carol", Label: "carol"}}
	if len(opts.Actors) != len(want) {
		t.Fatalf("actors = %v", opts.Actors)
	}
	for i := range want {
		if opts.Actors[i] != want[i] {
			t.Errorf("actor %d = %+v, want %+v", i, opts.Actors[i], want[i])
		}
	}
}
