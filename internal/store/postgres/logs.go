package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/narvanalabs/logkeeper/internal/models"
	"github.com/narvanalabs/logkeeper/internal/store"
)

const logColumns = `id, timestamp, level, module, sub_module, action, message,
	performed_by, legacy_user, legacy_user_id, details, status, ip_address, user_agent`

// LogStore implements store.LogStore for one stream table.
type LogStore struct {
	db     *sql.DB
	table  string
	logger *slog.Logger
}

// Create appends a log entry.
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

	performedBy, legacyUser, legacyUserID, err := encodeActor(entry.Actor)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`, s.table, logColumns)

	_, err = s.db.ExecContext(ctx, query,
		entry.ID,
		entry.Timestamp,
		string(entry.Level),
		entry.Module,
		entry.SubModule,
		entry.Action,
		entry.Message,
		performedBy,
		legacyUser,
		legacyUserID,
		nullJSON(entry.Details),
		entry.Status,
		entry.IPAddress,
		entry.UserAgent,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", store.ErrDuplicateID, entry.ID)
	}
	if err != nil {
		return fmt.Errorf("inserting log entry: %w", err)
	}
	return nil
}

// List retrieves a descending page using the pushdown predicates.
func (s *LogStore) List(ctx context.Context, q store.LogQuery) ([]*models.LogEntry, error) {
	if s.table == "" {
		return nil, store.ErrUnknownStream
	}

	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.Level != "" {
		where = append(where, "level = "+arg(string(q.Level)))
	}
	if q.Module != "" {
		where = append(where, "module = "+arg(q.Module))
	}
	if q.Since != nil {
		where = append(where, "timestamp >= "+arg(*q.Since))
	}
	if q.After != nil {
		where = append(where, fmt.Sprintf("(timestamp, id) < (%s, %s)", arg(q.After.Timestamp), arg(q.After.ID)))
	}

	query := fmt.Sprintf("SELECT %s FROM %s", logColumns, s.table)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp DESC, id DESC"
	if q.Limit > 0 {
		query += " LIMIT " + arg(q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying logs: %w", err)
	}
	defer rows.Close()

	return scanLogs(rows)
}

// ListOlderThan retrieves entries older than cutoff, oldest first.
func (s *LogStore) ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*models.LogEntry, error) {
	if s.table == "" {
		return nil, store.ErrUnknownStream
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE timestamp < $1 ORDER BY timestamp ASC, id ASC`, logColumns, s.table)
	args := []any{cutoff}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying expired logs: %w", err)
	}
	defer rows.Close()

	return scanLogs(rows)
}

// DeleteBatch removes ids in a single transaction.
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ANY($1)`, s.table)
	if _, err := tx.ExecContext(ctx, query, pq.Array(ids)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("failed to rollback transaction", "error", rbErr)
		}
		return fmt.Errorf("deleting log batch: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing log batch: %w", err)
	}
	return nil
}

// scanLogs scans multiple log entry rows.
func scanLogs(rows *sql.Rows) ([]*models.LogEntry, error) {
	var entries []*models.LogEntry

	for rows.Next() {
		entry := &models.LogEntry{}
		var (
			level                    string
			performedBy, details     []byte
			legacyUser, legacyUserID string
		)

		err := rows.Scan(
			&entry.ID,
			&entry.Timestamp,
			&level,
			&entry.Module,
			&entry.SubModule,
			&entry.Action,
			&entry.Message,
			&performedBy,
			&legacyUser,
			&legacyUserID,
			&details,
			&entry.Status,
			&entry.IPAddress,
			&entry.UserAgent,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning log row: %w", err)
		}

		entry.Level = models.Level(level)
		entry.Timestamp = entry.Timestamp.UTC()
		if len(details) > 0 {
			entry.Details = json.RawMessage(details)
		}
		entry.Actor, err = decodeActor(performedBy, legacyUser, legacyUserID)
		if err != nil {
			return nil, err
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating log rows: %w", err)
	}

	return entries, nil
}

// encodeActor splits an actor into the performed_by JSON column or the legacy columns.
func encodeActor(a models.Actor) (performedBy any, user, userID string, err error) {
	switch a.Kind() {
	case models.ActorStructured:
		p, _ := a.Performer()
		raw, err := json.Marshal(p)
		if err != nil {
			return nil, "", "", fmt.Errorf("encoding performer: %w", err)
		}
		return string(raw), "", "", nil
	case models.ActorLegacy:
		l, _ := a.Legacy()
		return nil, l.User, l.UserID, nil
	case models.ActorNone:
	}
	return nil, "", "", nil
}

// decodeActor rebuilds the tagged actor from its columns.
func decodeActor(performedBy []byte, user, userID string) (models.Actor, error) {
	if len(performedBy) > 0 && string(performedBy) != "null" {
		var p models.Performer
		if err := json.Unmarshal(performedBy, &p); err != nil {
			return models.NoActor(), fmt.Errorf("decoding performer: %w", err)
		}
		return models.StructuredActor(p), nil
	}
	return models.LegacyActor(user, userID), nil
}

// nullJSON maps an empty payload to SQL NULL.
func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
