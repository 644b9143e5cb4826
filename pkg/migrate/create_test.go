package migrate

import (
	"path/filepath"
	"testing"
	"time"
)

func TestCreateSQLMigrationRefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	path, err := createSQLMigration(dir, "seed badges", at)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if filepath.Base(path) != "20260301120000_seed_badges.sql" {
		t.Fatalf("unexpected file name %s", filepath.Base(path))
	}
	if _, err := createSQLMigration(dir, "seed badges", at); err == nil {
		t.Fatalf("expected existing file error")
	}
	if _, err := createSQLMigration(dir, "!!!", at); err == nil {
		t.Fatalf("expected empty name error")
	}
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	entries, err := embedded.ReadDir("migrations")
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}
	if len(entries) == 0 {
		t.Fatalf("expected embedded migrations")
	}
}
