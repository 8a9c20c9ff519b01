// Package sqlite provides a single-node SQLite implementation of the store interfaces.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/narvanalabs/logkeeper/internal/models"
	"github.com/narvanalabs/logkeeper/internal/store"
	_ "modernc.org/sqlite"
)

const logColumns = `id, ts, level, module, sub_module, action, message,
	performed_by, legacy_user, legacy_user_id, details, status, ip_address, user_agent`

const logTableSchema = `
CREATE TABLE IF NOT EXISTS {table} (
  id TEXT PRIMARY KEY,
  ts INTEGER NOT NULL,
  level TEXT NOT NULL,
  module TEXT NOT NULL DEFAULT '',
  sub_module TEXT NOT NULL DEFAULT '',
  action TEXT NOT NULL DEFAULT '',
  message TEXT NOT NULL,
  performed_by TEXT,
  legacy_user TEXT NOT NULL DEFAULT '',
  legacy_user_id TEXT NOT NULL DEFAULT '',
  details TEXT,
  status TEXT NOT NULL DEFAULT '',
  ip_address TEXT NOT NULL DEFAULT '',
  user_agent TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_{table}_ts ON {table}(ts DESC, id DESC);
`

const adminSchema = `
CREATE TABLE IF NOT EXISTS admins (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL,
  name TEXT NOT NULL DEFAULT '',
  role TEXT NOT NULL,
  disabled INTEGER NOT NULL DEFAULT 0,
  created_at INTEGER NOT NULL
);
`

// Store implements store.Store on a SQLite file.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	logs   map[models.Stream]*LogStore
	admins *AdminStore
}

// New opens (creating if needed) the database at path and initializes the schema.
func New(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx := context.Background()
	for _, stream := range models.Streams {
		ddl := strings.ReplaceAll(logTableSchema, "{table}", stream.Table())
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("initializing %s: %w", stream.Table(), err)
		}
	}
	if _, err := db.ExecContext(ctx, adminSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing admins: %w", err)
	}

	s := &Store{
		db:     db,
		logger: logger,
		logs:   make(map[models.Stream]*LogStore),
		admins: &AdminStore{db: db},
	}
	for _, stream := range models.Streams {
		s.logs[stream] = &LogStore{db: db, table: stream.Table()}
	}
	logger.Info("opened SQLite database", "path", path)
	return s, nil
}

// Logs returns the LogStore for a stream.
func (s *Store) Logs(stream models.Stream) store.LogStore {
	if ls, ok := s.logs[stream]; ok {
		return ls
	}
	return &LogStore{db: s.db}
}

// Admins returns the AdminStore.
func (s *Store) Admins() store.AdminStore { return s.admins }

// Ping verifies the database handle.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// LogStore implements store.LogStore for one table.
type LogStore struct {
	db    *sql.DB
	table string
}

// Create appends an entry.
func (s *LogStore) Create(ctx context.Context, entry *models.LogEntry) error {
	if s.table == "" {
		return store.ErrUnknownStream
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	var performedBy any
	var legacyUser, legacyUserID string
	switch entry.Actor.Kind() {
	case models.ActorStructured:
		p, _ := entry.Actor.Performer()
		raw, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encoding performer: %w", err)
		}
		performedBy = string(raw)
	case models.ActorLegacy:
		l, _ := entry.Actor.Legacy()
		legacyUser, legacyUserID = l.User, l.UserID
	case models.ActorNone:
	}
	var details any
	if len(entry.Details) > 0 {
		details = string(entry.Details)
	}

	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`, s.table, logColumns),
		entry.ID, entry.Timestamp.UnixNano(), string(entry.Level), entry.Module, entry.SubModule,
		entry.Action, entry.Message, performedBy, legacyUser, legacyUserID, details,
		entry.Status, entry.IPAddress, entry.UserAgent,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %s", store.ErrDuplicateID, entry.ID)
		}
		return fmt.Errorf("insert log entry: %w", err)
	}
	return nil
}

// List returns a descending page.
func (s *LogStore) List(ctx context.Context, q store.LogQuery) ([]*models.LogEntry, error) {
	if s.table == "" {
		return nil, store.ErrUnknownStream
	}
	var where []string
	var args []any
	if q.Level != "" {
		where = append(where, "level = ?")
		args = append(args, string(q.Level))
	}
	if q.Module != "" {
		where = append(where, "module = ?")
		args = append(args, q.Module)
	}
	if q.Since != nil {
		where = append(where, "ts >= ?")
		args = append(args, q.Since.UnixNano())
	}
	if q.After != nil {
		where = append(where, "(ts < ? OR (ts = ? AND id < ?))")
		n := q.After.Timestamp.UnixNano()
		args = append(args, n, n, q.After.ID)
	}

	query := fmt.Sprintf("SELECT %s FROM %s", logColumns, s.table)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY ts DESC, id DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query logs: %w", err)
	}
	defer rows.Close()
	return scanLogs(rows)
}

// ListOlderThan returns entries older than cutoff, oldest first.
func (s *LogStore) ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*models.LogEntry, error) {
	if s.table == "" {
		return nil, store.ErrUnknownStream
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE ts < ? ORDER BY ts ASC, id ASC", logColumns, s.table)
	args := []any{cutoff.UnixNano()}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query expired logs: %w", err)
	}
	defer rows.Close()
	return scanLogs(rows)
}

// DeleteBatch removes ids inside one transaction.
func (s *LogStore) DeleteBatch(ctx context.Context, ids []string) error {
	if s.table == "" {
		return store.ErrUnknownStream
	}
	if err := store.CheckBatch(ids); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete batch: %w", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id IN (%s)", s.table, placeholders), args...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete log batch: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete batch: %w", err)
	}
	return nil
}

func scanLogs(rows *sql.Rows) ([]*models.LogEntry, error) {
	var out []*models.LogEntry
	for rows.Next() {
		var (
			e                        models.LogEntry
			ts                       int64
			level                    string
			performedBy, details     sql.NullString
			legacyUser, legacyUserID string
		)
		if err := rows.Scan(&e.ID, &ts, &level, &e.Module, &e.SubModule, &e.Action, &e.Message,
			&performedBy, &legacyUser, &legacyUserID, &details, &e.Status, &e.IPAddress, &e.UserAgent); err != nil {
			return nil, fmt.Errorf("scan log row: %w", err)
		}
		e.Timestamp = time.Unix(0, ts).UTC()
		e.Level = models.Level(level)
		if details.Valid && details.String != "" {
			e.Details = json.RawMessage(details.String)
		}
		if performedBy.Valid && performedBy.String != "" {
			var p models.Performer
			if err := json.Unmarshal([]byte(performedBy.String), &p); err != nil {
				return nil, fmt.Errorf("decode performer: %w", err)
			}
			e.Actor = models.StructuredActor(p)
		} else {
			e.Actor = models.LegacyActor(legacyUser, legacyUserID)
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate log rows: %w", err)
	}
	return out, nil
}

// AdminStore implements store.AdminStore.
type AdminStore struct {
	db *sql.DB
}

// GetByID returns the admin or nil.
func (s *AdminStore) GetByID(ctx context.Context, id string) (*models.Admin, error) {
	var (
		a        models.Admin
		role     string
		disabled int
		created  int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, role, disabled, created_at FROM admins WHERE id = ?`, id,
	).Scan(&a.ID, &a.Email, &a.Name, &role, &disabled, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query admin: %w", err)
	}
	a.Role = models.AdminRole(role)
	a.Disabled = disabled != 0
	a.CreatedAt = time.Unix(0, created).UTC()
	return &a, nil
}

// Upsert creates or replaces an admin.
func (s *AdminStore) Upsert(ctx context.Context, admin *models.Admin) error {
	if admin.ID == "" {
		admin.ID = uuid.New().String()
	}
	if admin.CreatedAt.IsZero() {
		admin.CreatedAt = time.Now().UTC()
	}
	disabled := 0
	if admin.Disabled {
		disabled = 1
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO admins (id, email, name, role, disabled, created_at) VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET email = excluded.email, name = excluded.name, role = excluded.role, disabled = excluded.disabled;`,
		admin.ID, admin.Email, admin.Name, string(admin.Role), disabled, admin.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("upsert admin: %w", err)
	}
	return nil
}
