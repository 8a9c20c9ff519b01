// Package memory provides an in-process implementation of the store interfaces.
// It mirrors the constraints of the remote stores, including the atomic batch ceiling.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/narvanalabs/logkeeper/internal/models"
	"github.com/narvanalabs/logkeeper/internal/store"
)

// Store implements store.Store in memory.
type Store struct {
	mu     sync.RWMutex
	logs   map[models.Stream]*LogStore
	admins *AdminStore
}

// New creates an empty in-memory store with both streams.
func New() *Store {
	s := &Store{
		logs:   make(map[models.Stream]*LogStore),
		admins: &AdminStore{admins: make(map[string]*models.Admin)},
	}
	for _, stream := range models.Streams {
		s.logs[stream] = &LogStore{entries: make(map[string]*models.LogEntry)}
	}
	return s
}

// Logs returns the LogStore for a stream. Unknown streams get a store whose
// operations fail with store.ErrUnknownStream.
func (s *Store) Logs(stream models.Stream) store.LogStore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ls, ok := s.logs[stream]; ok {
		return ls
	}
	return unknownStream{}
}

// Admins returns the AdminStore.
func (s *Store) Admins() store.AdminStore {
	return s.admins
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }

// LogStore is a single in-memory stream.
type LogStore struct {
	mu      sync.RWMutex
	entries map[string]*models.LogEntry
}

// Create appends a copy of entry.
func (s *LogStore) Create(ctx context.Context, entry *models.LogEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[entry.ID]; exists {
		return fmt.Errorf("%w: %s", store.ErrDuplicateID, entry.ID)
	}
	cp := *entry
	s.entries[cp.ID] = &cp
	return nil
}

// List returns a descending page.
func (s *LogStore) List(ctx context.Context, q store.LogQuery) ([]*models.LogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.LogEntry
	for _, e := range s.entries {
		if q.Level != "" && e.Level != q.Level {
			continue
		}
		if q.Module != "" && e.Module != q.Module {
			continue
		}
		if q.Since != nil && e.Timestamp.Before(*q.Since) {
			continue
		}
		if q.After != nil && !before(e, q.After) {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID > out[j].ID
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// before reports whether e sorts strictly after the cursor in descending order.
func before(e *models.LogEntry, c *store.Cursor) bool {
	if e.Timestamp.Equal(c.Timestamp) {
		return e.ID < c.ID
	}
	return e.Timestamp.Before(c.Timestamp)
}

// ListOlderThan returns entries older than cutoff in ascending order.
func (s *LogStore) ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*models.LogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.LogEntry
	for _, e := range s.entries {
		if e.Timestamp.Before(cutoff) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DeleteBatch removes ids atomically. Oversized batches delete nothing.
func (s *LogStore) DeleteBatch(ctx context.Context, ids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := store.CheckBatch(ids); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.entries, id)
	}
	return nil
}

// Len returns the number of stored entries.
func (s *LogStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// AdminStore is an in-memory authorization store.
type AdminStore struct {
	mu     sync.RWMutex
	admins map[string]*models.Admin
}

// GetByID returns a copy of the admin or nil.
func (s *AdminStore) GetByID(ctx context.Context, id string) (*models.Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.admins[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

// Upsert stores a copy of admin.
func (s *AdminStore) Upsert(ctx context.Context, admin *models.Admin) error {
	if admin.ID == "" {
		admin.ID = uuid.New().String()
	}
	if admin.CreatedAt.IsZero() {
		admin.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *admin
	s.admins[cp.ID] = &cp
	return nil
}

type unknownStream struct{}

func (unknownStream) Create(context.Context, *models.LogEntry) error { return store.ErrUnknownStream }
func (unknownStream) List(context.Context, store.LogQuery) ([]*models.LogEntry, error) {
	return nil, store.ErrUnknownStream
}
func (unknownStream) ListOlderThan(context.Context, time.Time, int) ([]*models.LogEntry, error) {
	return nil, store.ErrUnknownStream
}
func (unknownStream) DeleteBatch(context.Context, []string) error { return store.ErrUnknownStream }
