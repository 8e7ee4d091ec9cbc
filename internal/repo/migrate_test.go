package repo

import (
	"strings"
	"testing"
)

func TestMigrationFiles_Sorted(t *testing.T) {
	files, err := migrationFiles()
	if err != nil {
		t.Fatalf("migrationFiles() error = %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 migrations, got %d: %v", len(files), files)
	}
	for i := 1; i < len(files); i++ {
		if files[i-1] >= files[i] {
			t.Errorf("migrations not sorted: %v", files)
		}
	}
}

func TestMigrations_CreateTables(t *testing.T) {
	var all strings.Builder
	files, err := migrationFiles()
	if err != nil {
		t.Fatalf("migrationFiles() error = %v", err)
	}
	for _, name := range files {
		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		all.Write(data)
	}

	for _, table := range []string{"attributes", "records", "bindings", "invocations"} {
		if !strings.Contains(all.String(), "CREATE TABLE IF NOT EXISTS "+table) {
			t.Errorf("table %s is not created by migrations", table)
		}
	}
	if !strings.Contains(all.String(), "UNIQUE (binding_id, event_id)") {
		t.Error("invocations must be unique per (binding_id, event_id)")
	}
}
