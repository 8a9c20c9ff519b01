package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/narvanalabs/logkeeper/internal/models"
	"github.com/narvanalabs/logkeeper/internal/store"
	"github.com/narvanalabs/logkeeper/internal/store/storetest"
)

func getTestDSN() string {
	return os.Getenv("TEST_DATABASE_URL")
}

// setupTestDB opens the test database, migrates it and empties every table.
func setupTestDB(t *testing.T) *PostgresStore {
	t.Helper()

	dsn := getTestDSN()
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping database tests")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Skipf("failed to open database: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("failed to ping database: %v", err)
	}

	s := newStore(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	for _, stream := range models.Streams {
		if _, err := db.ExecContext(ctx, "TRUNCATE "+stream.Table()); err != nil {
			t.Fatalf("truncate %s: %v", stream.Table(), err)
		}
	}
	if _, err := db.ExecContext(ctx, "TRUNCATE admins"); err != nil {
		t.Fatalf("truncate admins: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return s
}

func TestPostgresStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return setupTestDB(t) })
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := setupTestDB(t)
	if err := s.Migrate(context.Background()); err != nil {
		t.Errorf("second migrate: %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{io.EOF, false},
		{&stringError{"ERROR: duplicate key value violates unique constraint \"activity_logs_pkey\" (SQLSTATE 23505)"}, true},
		{fmt.Errorf("inserting log entry: %w", &pgconn.PgError{Code: "23505"}), true},
		{&pgconn.PgError{Code: "23503"}, false},
		{&pq.Error{Code: "23505"}, true},
		{&pq.Error{Code: "42P01"}, false},
	}
	for _, tt := range tests {
		if got := isUniqueViolation(tt.err); got != tt.want {
			t.Errorf("isUniqueViolation(%v) = %v", tt.err, got)
		}
	}
}

type stringError struct{ s string }

func (e *stringError) Error() string { return e.s }
