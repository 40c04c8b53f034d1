package testdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/username/hermes/backend/src/database"
)

// SetupTestDB opens a fresh SQLite file under t.TempDir and applies the real migrations.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "hermes_test.db")
	db, err := database.Open(path)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	dir, err := migrationsDir()
	if err != nil {
		t.Fatalf("Failed to locate migrations: %v", err)
	}
	if err := database.Migrate(db, "file://"+filepath.ToSlash(dir), path); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

// migrationsDir walks up from the working directory to the module root.
func migrationsDir() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return filepath.Join(dir, "db", "migrations"), nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found above working directory")
		}
		dir = parent
	}
}
