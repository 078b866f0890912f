package db

import (
	"os"
	"path/filepath"
	"testing"
)

func writeMigrations(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func TestLoadMigrations(t *testing.T) {
	dir := t.TempDir()
	writeMigrations(t, dir, map[string]string{
		"0001_init.sql":     "CREATE TABLE document (id UUID PRIMARY KEY);",
		"0002_indexes.sql":  "CREATE INDEX idx_document_status ON document (status);",
		"0003_registry.sql": "CREATE TABLE patient (id UUID PRIMARY KEY);",
	})

	migrations, err := NewMigrator(nil, dir).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations: %v", err)
	}
	if len(migrations) != 3 {
		t.Fatalf("migrations = %d, want 3", len(migrations))
	}

	if migrations[0].Version != 1 || migrations[0].Name != "0001_init.sql" {
		t.Errorf("first migration = %d %q", migrations[0].Version, migrations[0].Name)
	}
	if migrations[0].SQL != "CREATE TABLE document (id UUID PRIMARY KEY);" {
		t.Errorf("SQL content = %q", migrations[0].SQL)
	}
}

func TestLoadMigrationsSortsByVersion(t *testing.T) {
	dir := t.TempDir()
	writeMigrations(t, dir, map[string]string{
		"0010_late.sql":   "SELECT 10;",
		"0002_second.sql": "SELECT 2;",
		"0001_first.sql":  "SELECT 1;",
		"0005_middle.sql": "SELECT 5;",
	})

	migrations, err := NewMigrator(nil, dir).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations: %v", err)
	}

	want := []int{1, 2, 5, 10}
	if len(migrations) != len(want) {
		t.Fatalf("migrations = %d, want %d", len(migrations), len(want))
	}
	for i, v := range want {
		if migrations[i].Version != v {
			t.Errorf("migrations[%d].Version = %d, want %d", i, migrations[i].Version, v)
		}
	}
}

func TestLoadMigrationsSkipsUnversionedFiles(t *testing.T) {
	dir := t.TempDir()
	writeMigrations(t, dir, map[string]string{
		"0001_valid.sql":  "SELECT 1;",
		"readme.sql":      "-- no version prefix",
		"notes.txt":       "not sql",
		"abc_invalid.sql": "-- non-numeric prefix",
	})

	migrations, err := NewMigrator(nil, dir).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations: %v", err)
	}
	if len(migrations) != 1 {
		t.Fatalf("migrations = %d, want 1", len(migrations))
	}
	if migrations[0].Version != 1 {
		t.Errorf("version = %d, want 1", migrations[0].Version)
	}
}

func TestLoadMigrationsEmptyDir(t *testing.T) {
	migrations, err := NewMigrator(nil, t.TempDir()).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations: %v", err)
	}
	if len(migrations) != 0 {
		t.Errorf("migrations = %d, want 0", len(migrations))
	}
}

func TestLoadMigrationsMissingDir(t *testing.T) {
	_, err := NewMigrator(nil, filepath.Join(t.TempDir(), "missing")).LoadMigrations()
	if err == nil {
		t.Error("expected error for missing directory")
	}
}
