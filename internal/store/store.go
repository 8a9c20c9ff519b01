// Package store provides database access interfaces and implementations.
package store

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/narvanalabs/logkeeper/internal/models"
)

// MaxAtomicBatchSize is the most delete operations a single atomic write may carry.
// Larger batches are rejected whole.
const MaxAtomicBatchSize = 500

// Common store errors.
var (
	// ErrNotFound is returned when a requested resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrBatchTooLarge is returned when an atomic write exceeds MaxAtomicBatchSize.
	ErrBatchTooLarge = fmt.Errorf("atomic batch exceeds %d operations", MaxAtomicBatchSize)

	// ErrDuplicateID is returned when an entry id already exists in its stream.
	ErrDuplicateID = errors.New("duplicate log entry id")

	// ErrUnknownStream is returned for a stream with no backing table.
	ErrUnknownStream = errors.New("unknown log stream")

	// ErrInvalidCursor is returned when a page token cannot be decoded.
	ErrInvalidCursor = errors.New("invalid cursor")
)

// Cursor is the last-seen record of a descending page.
type Cursor struct {
	Timestamp time.Time
	ID        string
}

// CursorFor returns the cursor positioned after entry.
func CursorFor(entry *models.LogEntry) *Cursor {
	return &Cursor{Timestamp: entry.Timestamp, ID: entry.ID}
}

// Encode serializes the cursor into an opaque URL-safe token.
func (c *Cursor) Encode() string {
	raw := strconv.FormatInt(c.Timestamp.UnixNano(), 10) + "|" + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token produced by Encode.
func DecodeCursor(token string) (*Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCursor, err)
	}
	ts, id, ok := strings.Cut(string(raw), "|")
	if !ok || id == "" {
		return nil, ErrInvalidCursor
	}
	nanos, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCursor, err)
	}
	return &Cursor{Timestamp: time.Unix(0, nanos).UTC(), ID: id}, nil
}

// LogQuery holds the predicates a backend can push down. Results are always ordered
// by timestamp descending, then id descending.
type LogQuery struct {
	Level  models.Level
	Module string
	Since  *time.Time
	After  *Cursor
	Limit  int
}

// LogStore defines operations on one append-only log stream.
type LogStore interface {
	// Create appends an entry, assigning an id and timestamp when missing.
	Create(ctx context.Context, entry *models.LogEntry) error
	// List returns a descending page matching the pushdown predicates.
	List(ctx context.Context, q LogQuery) ([]*models.LogEntry, error)
	// ListOlderThan returns entries with timestamp < cutoff in ascending order.
	// A limit <= 0 returns every match.
	ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*models.LogEntry, error)
	// DeleteBatch removes ids in one atomic write. Missing ids are ignored.
	DeleteBatch(ctx context.Context, ids []string) error
}

// AdminStore defines operations on the authorization store.
type AdminStore interface {
	// GetByID retrieves an admin, returning nil when none exists.
	GetByID(ctx context.Context, id string) (*models.Admin, error)
	// Upsert creates or replaces an admin record.
	Upsert(ctx context.Context, admin *models.Admin) error
}

// Store is the main interface for database operations.
type Store interface {
	// Logs returns the LogStore for a stream.
	Logs(stream models.Stream) LogStore
	// Admins returns the AdminStore.
	Admins() AdminStore
	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
	// Close closes the underlying connection.
	Close() error
}

// CheckBatch validates an atomic delete batch against MaxAtomicBatchSize.
func CheckBatch(ids []string) error {
	if len(ids) > MaxAtomicBatchSize {
		return fmt.Errorf("%w: got %d", ErrBatchTooLarge, len(ids))
	}
	return nil
}
