package driver

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/narvanalabs/logkeeper/internal/models"
	"github.com/narvanalabs/logkeeper/internal/store/memory"
	"github.com/narvanalabs/logkeeper/pkg/config"
)

func TestOpenMemory(t *testing.T) {
	s, err := Open(config.StoreConfig{Driver: config.DriverMemory}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok := s.(*memory.Store); !ok {
		t.Fatalf("got %T", s)
	}
	if err := Migrate(context.Background(), s); err != nil {
		t.Errorf("memory store has nothing to migrate: %v", err)
	}
}

func TestOpenSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "logs.db")
	s, err := Open(config.StoreConfig{Driver: config.DriverSQLite, SQLitePath: path}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if err := s.Logs(models.StreamActivity).Create(context.Background(), &models.LogEntry{
		Level:   models.LevelInfo,
		Message: "opened",
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(config.StoreConfig{Driver: "mongo"}, nil); err == nil {
		t.Error("expected unknown driver to fail")
	}
}
