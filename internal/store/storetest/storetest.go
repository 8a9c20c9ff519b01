// Package storetest holds behaviour checks shared by every store backend.
package storetest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/narvanalabs/logkeeper/internal/models"
	"github.com/narvanalabs/logkeeper/internal/store"
)

// Opener returns an empty store. It is called once per subtest.
type Opener func(t *testing.T) store.Store

// base is truncated to microseconds, the coarsest precision of any backend.
var base = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// Run exercises open's store against the store contracts.
func Run(t *testing.T, open Opener) {
	t.Run("CreateAssignsIdentity", func(t *testing.T) { testCreate(t, open(t)) })
	t.Run("ListOrderAndPushdown", func(t *testing.T) { testList(t, open(t)) })
	t.Run("CursorPaging", func(t *testing.T) { testPaging(t, open(t)) })
	t.Run("ListOlderThan", func(t *testing.T) { testOlderThan(t, open(t)) })
	t.Run("DeleteBatch", func(t *testing.T) { testDeleteBatch(t, open(t)) })
	t.Run("ActorsAndDetails", func(t *testing.T) { testActors(t, open(t)) })
	t.Run("StreamsAreIsolated", func(t *testing.T) { testIsolation(t, open(t)) })
	t.Run("Admins", func(t *testing.T) { testAdmins(t, open(t)) })
}

func mustCreate(t *testing.T, ls store.LogStore, e *models.LogEntry) {
	t.Helper()
	if err := ls.Create(context.Background(), e); err != nil {
		t.Fatalf("create %s: %v", e.ID, err)
	}
}

func entry(id string, offset time.Duration, level models.Level, module string) *models.LogEntry {
	return &models.LogEntry{
		ID:        id,
		Timestamp: base.Add(offset),
		Level:     level,
		Module:    module,
		Message:   "message " + id,
	}
}

func idsOf(entries []*models.LogEntry) string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return fmt.Sprint(out)
}

func testCreate(t *testing.T, s store.Store) {
	ctx := context.Background()
	ls := s.Logs(models.StreamActivity)

	e := &models.LogEntry{Level: models.LevelInfo, Message: "no id"}
	mustCreate(t, ls, e)
	if e.ID == "" || e.Timestamp.IsZero() {
		t.Fatalf("expected id and timestamp to be assigned, got %q %v", e.ID, e.Timestamp)
	}

	dup := entry(e.ID, 0, models.LevelError, "auth")
	if err := ls.Create(ctx, dup); !errors.Is(err, store.ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID, got %v", err)
	}

	got, err := ls.List(ctx, store.LogQuery{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].Level != models.LevelInfo {
		t.Errorf("duplicate create must not overwrite, got %s", idsOf(got))
	}
}

func testList(t *testing.T, s store.Store) {
	ctx := context.Background()
	ls := s.Logs(models.StreamSystem)
	mustCreate(t, ls, entry("b", 0, models.LevelInfo, "auth"))
	mustCreate(t, ls, entry("a", 0, models.LevelError, "auth"))
	mustCreate(t, ls, entry("c", time.Hour, models.LevelError, "billing"))
	mustCreate(t, ls, entry("d", -time.Hour, models.LevelWarning, "auth"))

	since := base
	tests := []struct {
		name string
		q    store.LogQuery
		want string
	}{
		{"all, ties broken by id", store.LogQuery{}, "[c b a d]"},
		{"level", store.LogQuery{Level: models.LevelError}, "[c a]"},
		{"module", store.LogQuery{Module: "auth"}, "[b a d]"},
		{"since is inclusive", store.LogQuery{Since: &since}, "[c b a]"},
		{"limit", store.LogQuery{Limit: 2}, "[c b]"},
		{"combined", store.LogQuery{Level: models.LevelError, Module: "auth", Since: &since}, "[a]"},
	}
	for _, tt := range tests {
		got, err := ls.List(ctx, tt.q)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if idsOf(got) != tt.want {
			t.Errorf("%s: got %s, want %s", tt.name, idsOf(got), tt.want)
		}
	}
}

func testPaging(t *testing.T, s store.Store) {
	ctx := context.Background()
	ls := s.Logs(models.StreamActivity)
	for i := 0; i < 7; i++ {
		// Pairs share a timestamp so the id tie-break is exercised across pages.
		mustCreate(t, ls, entry(fmt.Sprintf("p%d", i), time.Duration(i/2)*time.Minute, models.LevelInfo, ""))
	}

	var (
		seen  []*models.LogEntry
		after *store.Cursor
	)
	for page := 0; page < 10; page++ {
		got, err := ls.List(ctx, store.LogQuery{After: after, Limit: 3})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		seen = append(seen, got...)
		if len(got) < 3 {
			break
		}
		// Round-trip through the opaque token like a client would.
		after, err = store.DecodeCursor(store.CursorFor(got[len(got)-1]).Encode())
		if err != nil {
			t.Fatalf("cursor: %v", err)
		}
	}
	if idsOf(seen) != "[p6 p5 p4 p3 p2 p1 p0]" {
		t.Errorf("paged order = %s", idsOf(seen))
	}
}

func testOlderThan(t *testing.T, s store.Store) {
	ctx := context.Background()
	ls := s.Logs(models.StreamActivity)
	mustCreate(t, ls, entry("new", time.Hour, models.LevelInfo, ""))
	mustCreate(t, ls, entry("edge", 0, models.LevelInfo, ""))
	mustCreate(t, ls, entry("old2", -time.Hour, models.LevelInfo, ""))
	mustCreate(t, ls, entry("old1", -2*time.Hour, models.LevelInfo, ""))
	mustCreate(t, ls, entry("old0", -2*time.Hour, models.LevelInfo, ""))

	got, err := ls.ListOlderThan(ctx, base, 0)
	if err != nil {
		t.Fatalf("older than: %v", err)
	}
	if idsOf(got) != "[old0 old1 old2]" {
		t.Errorf("expected strictly older entries oldest first, got %s", idsOf(got))
	}

	got, err = ls.ListOlderThan(ctx, base, 2)
	if err != nil {
		t.Fatalf("older than: %v", err)
	}
	if idsOf(got) != "[old0 old1]" {
		t.Errorf("limit: got %s", idsOf(got))
	}
}

func testDeleteBatch(t *testing.T, s store.Store) {
	ctx := context.Background()
	ls := s.Logs(models.StreamSystem)

	ids := make([]string, store.MaxAtomicBatchSize+1)
	for i := range ids {
		ids[i] = fmt.Sprintf("d%04d", i)
		mustCreate(t, ls, entry(ids[i], time.Duration(i)*time.Second, models.LevelInfo, ""))
	}

	if err := ls.DeleteBatch(ctx, ids); !errors.Is(err, store.ErrBatchTooLarge) {
		t.Fatalf("expected ErrBatchTooLarge, got %v", err)
	}
	remaining, err := ls.ListOlderThan(ctx, base.Add(time.Hour), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != len(ids) {
		t.Fatalf("oversized batch must delete nothing, %d left", len(remaining))
	}

	batch := append(ids[:store.MaxAtomicBatchSize:store.MaxAtomicBatchSize], "missing")
	batch = batch[1:]
	if err := ls.DeleteBatch(ctx, batch); err != nil {
		t.Fatalf("delete: %v", err)
	}
	remaining, err = ls.ListOlderThan(ctx, base.Add(time.Hour), 0)
	if err != nil {
		t.Fatal(err)
	}
	if idsOf(remaining) != fmt.Sprintf("[%s %s]", ids[0], ids[len(ids)-1]) {
		t.Errorf("remaining = %s", idsOf(remaining))
	}

	if err := ls.DeleteBatch(ctx, nil); err != nil {
		t.Errorf("empty batch: %v", err)
	}
}

func sameJSON(a, b json.RawMessage) bool {
	if len(a) == 0 || len(b) == 0 {
		return len(a) == len(b)
	}
	var va, vb any
	if json.Unmarshal(a, &va) != nil || json.Unmarshal(b, &vb) != nil {
		return false
	}
	return reflect.DeepEqual(va, vb)
}

func testActors(t *testing.T, s store.Store) {
	ctx := context.Background()
	ls := s.Logs(models.StreamActivity)

	in := []*models.LogEntry{
		{ID: "s", Actor: models.StructuredActor(models.Performer{ID: "u1", Email: "a@example.com", Name: "Alice", Role: "admin"}),
			Details: json.RawMessage(`{"ip": "10.0.0.1", "attempts": [1, 2]}`)},
		{ID: "l", Actor: models.LegacyActor("bob", "u2")},
		{ID: "n", Actor: models.NoActor()},
	}
	for i, e := range in {
		e.Timestamp = base.Add(time.Duration(-i) * time.Minute)
		e.Level = models.LevelSuccess
		e.Message = "m"
		e.SubModule = "sub"
		e.Status = "success"
		e.IPAddress = "10.0.0.1"
		e.UserAgent = "test"
		mustCreate(t, ls, e)
	}

	got, err := ls.List(ctx, store.LogQuery{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != len(in) {
		t.Fatalf("expected %d entries, got %d", len(in), len(got))
	}
	for i, want := range in {
		g := got[i]
		if g.ID != want.ID || g.Actor != want.Actor || !g.Timestamp.Equal(want.Timestamp) {
			t.Errorf("entry %s: got id=%s actor=%+v ts=%v", want.ID, g.ID, g.Actor, g.Timestamp)
		}
		if g.SubModule != "sub" || g.Status != "success" || g.IPAddress != "10.0.0.1" || g.UserAgent != "test" {
			t.Errorf("entry %s: fields not preserved: %+v", want.ID, g)
		}
		if !sameJSON(g.Details, want.Details) {
			t.Errorf("entry %s: details %s, want %s", want.ID, g.Details, want.Details)
		}
	}
}

func testIsolation(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustCreate(t, s.Logs(models.StreamActivity), entry("same", 0, models.LevelInfo, ""))
	mustCreate(t, s.Logs(models.StreamSystem), entry("same", 0, models.LevelError, ""))

	if err := s.Logs(models.StreamActivity).DeleteBatch(ctx, []string{"same"}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Logs(models.StreamSystem).List(ctx, store.LogQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Level != models.LevelError {
		t.Errorf("delete leaked across streams: %s", idsOf(got))
	}

	unknown := s.Logs(models.Stream("auditLogs"))
	if err := unknown.Create(ctx, entry("x", 0, models.LevelInfo, "")); !errors.Is(err, store.ErrUnknownStream) {
		t.Errorf("expected ErrUnknownStream, got %v", err)
	}
}

func testAdmins(t *testing.T, s store.Store) {
	ctx := context.Background()
	admins := s.Admins()

	a, err := admins.GetByID(ctx, "nobody")
	if err != nil || a != nil {
		t.Fatalf("unknown admin: got %+v, %v", a, err)
	}

	in := &models.Admin{ID: "root", Email: "root@example.com", Name: "Root", Role: models.RoleSuperAdmin}
	if err := admins.Upsert(ctx, in); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	in.Role = models.RoleModerator
	in.Disabled = true
	if err := admins.Upsert(ctx, in); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := admins.GetByID(ctx, "root")
	if err != nil || got == nil {
		t.Fatalf("get: %+v, %v", got, err)
	}
	if got.Email != "root@example.com" || got.Role != models.RoleModerator || !got.Disabled {
		t.Errorf("unexpected admin %+v", got)
	}
}
