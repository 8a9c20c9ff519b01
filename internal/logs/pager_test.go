package logs

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/narvanalabs/logkeeper/internal/models"
	"github.com/narvanalabs/logkeeper/internal/store"
	"github.com/narvanalabs/logkeeper/internal/store/memory"
)

func seedStream(t *testing.T, ls store.LogStore, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		err := ls.Create(context.Background(), &models.LogEntry{
			ID:        fmt.Sprintf("id-%03d", i),
			Timestamp: baseTime.Add(time.Duration(i) * time.Minute),
			Level:     models.LevelInfo,
			Message:   "m",
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
	}
}

func TestPagerLoadsDescendingPages(t *testing.T) {
	st := memory.New()
	ls := st.Logs(models.StreamActivity)
	seedStream(t, ls, 25)

	p := NewPager(ls, store.LogQuery{}, 10)
	var sizes []int
	for p.HasMore() {
		page, err := p.LoadMore(context.Background())
		if err != nil {
			t.Fatalf("LoadMore: %v", err)
		}
		sizes = append(sizes, len(page))
	}

	if fmt.Sprint(sizes) != "[10 10 5]" {
		t.Errorf("page sizes = %v", sizes)
	}
	got := p.Entries()
	if len(got) != 25 {
		t.Fatalf("expected 25 entries, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if !got[i-1].Timestamp.After(got[i].Timestamp) {
			t.Fatalf("entries not strictly descending at %d", i)
		}
	}

	p.Reset()
	if len(p.Entries()) != 0 || !p.HasMore() {
		t.Error("expected reset pager to start over")
	}
}

func TestPagerFullLastPageYieldsEmptyFinalPage(t *testing.T) {
	st := memory.New()
	ls := st.Logs(models.StreamSystem)
	seedStream(t, ls, 10)

	p := NewPager(ls, store.LogQuery{}, 5)
	for i := 0; i < 2; i++ {
		if _, err := p.LoadMore(context.Background()); err != nil {
			t.Fatalf("LoadMore: %v", err)
		}
	}
	if !p.HasMore() {
		t.Fatal("a full page must report more")
	}
	page, err := p.LoadMore(context.Background())
	if err != nil {
		t.Fatalf("LoadMore: %v", err)
	}
	if len(page) != 0 || p.HasMore() {
		t.Errorf("expected empty final page, got %d entries, hasMore=%v", len(page), p.HasMore())
	}
}

func TestFetchPageRejectsBadCursor(t *testing.T) {
	st := memory.New()
	if _, err := FetchPage(context.Background(), st.Logs(models.StreamActivity), store.LogQuery{}, 10, "%%%"); err == nil {
		t.Error("expected malformed cursor to fail")
	}
	if _, err := FetchPage(context.Background(), st.Logs(models.StreamActivity), store.LogQuery{}, 0, ""); err == nil {
		t.Error("expected zero page size to fail")
	}
}

func TestBrokerPublishesCreatedEntries(t *testing.T) {
	broker := NewBroker(nil)
	st := Publishing(memory.New(), broker)

	errorsOnly := broker.Subscribe(models.StreamSystem, func(e *models.LogEntry) bool { return e.Level == models.LevelError })
	defer broker.Unsubscribe(errorsOnly)
	activity := broker.Subscribe(models.StreamActivity, nil)
	defer broker.Unsubscribe(activity)

	ctx := context.Background()
	for _, e := range []struct {
		stream models.Stream
		level  models.Level
	}{
		{models.StreamSystem, models.LevelInfo},
		{models.StreamSystem, models.LevelError},
		{models.StreamActivity, models.LevelInfo},
	} {
		if err := st.Logs(e.stream).Create(ctx, &models.LogEntry{Level: e.level, Message: "m"}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	if len(errorsOnly.Ch) != 1 || len(activity.Ch) != 1 {
		t.Fatalf("expected one delivery each, got %d and %d", len(errorsOnly.Ch), len(activity.Ch))
	}
	if got := <-errorsOnly.Ch; got.Level != models.LevelError || got.ID == "" {
		t.Errorf("unexpected delivery %+v", got)
	}

	broker.Unsubscribe(activity)
	if broker.SubscriberCount() != 1 {
		t.Errorf("expected 1 subscriber, got %d", broker.SubscriberCount())
	}
}

func TestCompileExpr(t *testing.T) {
	pred, err := CompileExpr(`level == "error" && details.attempts > 2.0`)
	if err != nil {
		t.Fatalf("CompileExpr: %v", err)
	}
	hit := &models.LogEntry{Level: models.LevelError, Details: []byte(`{"attempts": 3}`)}
	miss := &models.LogEntry{Level: models.LevelError, Details: []byte(`{"attempts": 1}`)}
	noDetails := &models.LogEntry{Level: models.LevelError}
	if !pred(hit) || pred(miss) || pred(noDetails) {
		t.Error("unexpected expression results")
	}

	if p, err := CompileExpr("  "); err != nil || p != nil {
		t.Errorf("expected empty expression to compile to nil, got %v", err)
	}
	if _, err := CompileExpr(`level +`); err == nil {
		t.Error("expected syntax error")
	}
	if _, err := CompileExpr(`module`); err == nil {
		t.Error("expected non-bool expression to be rejected")
	}
}
