package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/narvanalabs/logkeeper/internal/models"
)

const logTableSchema = `
	CREATE TABLE IF NOT EXISTS {table} (
		id TEXT PRIMARY KEY,
		timestamp TIMESTAMPTZ NOT NULL,
		level VARCHAR(16) NOT NULL CHECK (level IN ('info', 'success', 'warning', 'error')),
		module TEXT NOT NULL DEFAULT '',
		sub_module TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL,
		performed_by JSONB,
		legacy_user TEXT NOT NULL DEFAULT '',
		legacy_user_id TEXT NOT NULL DEFAULT '',
		details JSONB,
		status TEXT NOT NULL DEFAULT '',
		ip_address TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_{table}_timestamp ON {table}(timestamp DESC, id DESC);
	CREATE INDEX IF NOT EXISTS idx_{table}_level ON {table}(level, timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_{table}_module ON {table}(module, timestamp DESC);
`

const adminSchema = `
	CREATE TABLE IF NOT EXISTS admins (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		role VARCHAR(20) NOT NULL CHECK (role IN ('super_admin', 'admin', 'moderator')),
		disabled BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
`

// Migrate creates the log stream tables and the admins table if missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return migrate(ctx, s.db)
}

func migrate(ctx context.Context, db queryable) error {
	for _, stream := range models.Streams {
		ddl := strings.ReplaceAll(logTableSchema, "{table}", stream.Table())
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("creating %s: %w", stream.Table(), err)
		}
	}
	if _, err := db.ExecContext(ctx, adminSchema); err != nil {
		return fmt.Errorf("creating admins: %w", err)
	}
	return nil
}
