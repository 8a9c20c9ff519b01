// Package driver opens the configured store backend.
package driver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/narvanalabs/logkeeper/internal/store"
	"github.com/narvanalabs/logkeeper/internal/store/memory"
	"github.com/narvanalabs/logkeeper/internal/store/postgres"
	"github.com/narvanalabs/logkeeper/internal/store/sqlite"
	"github.com/narvanalabs/logkeeper/pkg/config"
)

// Migrator is implemented by backends whose schema is created on demand.
type Migrator interface {
	Migrate(ctx context.Context) error
}

// Open connects to the backend named by cfg.Driver.
func Open(cfg config.StoreConfig, logger *slog.Logger) (store.Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		s, err := postgres.NewPostgresStore(postgres.DefaultConfig(cfg.DatabaseDSN), logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverSQLite:
		s, err := sqlite.New(cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// Migrate runs the backend's schema migration when it has one.
func Migrate(ctx context.Context, s store.Store) error {
	m, ok := s.(Migrator)
	if !ok {
		return nil
	}
	return m.Migrate(ctx)
}
