package logs

import (
	"context"
	"fmt"

	"github.com/narvanalabs/logkeeper/internal/models"
	"github.com/narvanalabs/logkeeper/internal/store"
)

// Page is one descending slice of a stream.
type Page struct {
	Entries    []*models.LogEntry `json:"entries"`
	NextCursor string             `json:"nextCursor,omitempty"`
	HasMore    bool               `json:"hasMore"`
}

// FetchPage loads up to size entries after cursor. HasMore is set when the page came
// back full, so a final empty page is possible.
func FetchPage(ctx context.Context, logs store.LogStore, q store.LogQuery, size int, cursor string) (*Page, error) {
	if size <= 0 {
		return nil, fmt.Errorf("page size must be positive, got %d", size)
	}
	if cursor != "" {
		after, err := store.DecodeCursor(cursor)
		if err != nil {
			return nil, err
		}
		q.After = after
	}
	q.Limit = size

	entries, err := logs.List(ctx, q)
	if err != nil {
		return nil, err
	}

	page := &Page{Entries: entries, HasMore: len(entries) == size}
	if page.HasMore {
		page.NextCursor = store.CursorFor(entries[len(entries)-1]).Encode()
	}
	return page, nil
}

// Pager accumulates pages of one stream into a working set.
type Pager struct {
	logs    store.LogStore
	query   store.LogQuery
	size    int
	loaded  []*models.LogEntry
	cursor  string
	hasMore bool
	started bool
}

// NewPager creates a pager over logs using the pushdown query q.
func NewPager(logs store.LogStore, q store.LogQuery, size int) *Pager {
	return &Pager{logs: logs, query: q, size: size, hasMore: true}
}

// LoadMore fetches the next page and appends it to the working set.
func (p *Pager) LoadMore(ctx context.Context) ([]*models.LogEntry, error) {
	if p.started && !p.hasMore {
		return nil, nil
	}
	page, err := FetchPage(ctx, p.logs, p.query, p.size, p.cursor)
	if err != nil {
		return nil, err
	}
	p.started = true
	p.loaded = append(p.loaded, page.Entries...)
	p.cursor = page.NextCursor
	p.hasMore = page.HasMore
	return page.Entries, nil
}

// Entries returns the accumulated working set, most recent first.
func (p *Pager) Entries() []*models.LogEntry { return p.loaded }

// HasMore reports whether the last page was full.
func (p *Pager) HasMore() bool { return p.hasMore }

// Reset discards the working set and restarts from the newest entry.
func (p *Pager) Reset() {
	p.loaded = nil
	p.cursor = ""
	p.hasMore = true
	p.started = false
}
