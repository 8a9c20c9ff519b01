package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/narvanalabs/logkeeper/internal/models"
)

// AdminStore implements store.AdminStore for PostgreSQL.
type AdminStore struct {
	db     queryable
	logger *slog.Logger
}

// GetByID retrieves an admin by ID.
func (s *AdminStore) GetByID(ctx context.Context, id string) (*models.Admin, error) {
	query := `SELECT id, email, name, role, disabled, created_at FROM admins WHERE id = $1`

	var admin models.Admin
	var role string
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&admin.ID, &admin.Email, &admin.Name, &role, &admin.Disabled, &admin.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying admin: %w", err)
	}
	admin.Role = models.AdminRole(role)
	return &admin, nil
}

// Upsert creates or replaces an admin record.
func (s *AdminStore) Upsert(ctx context.Context, admin *models.Admin) error {
	if admin.ID == "" {
		admin.ID = uuid.New().String()
	}
	if admin.CreatedAt.IsZero() {
		admin.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO admins (id, email, name, role, disabled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET email = $2, name = $3, role = $4, disabled = $5
	`, admin.ID, admin.Email, admin.Name, string(admin.Role), admin.Disabled, admin.CreatedAt)
	if err != nil {
		return fmt.Errorf("upserting admin: %w", err)
	}
	return nil
}
