package persistence

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"testing/fstest"

	"go.uber.org/zap"
)

func TestMigrationFilesSortedSQLOnly(t *testing.T) {
	fsys := fstest.MapFS{
		"010_late.sql":   {Data: []byte("SELECT 1")},
		"002_second.sql": {Data: []byte("SELECT 1")},
		"001_first.sql":  {Data: []byte("SELECT 1")},
		"README.md":      {Data: []byte("notes")},
		"nested/x.sql":   {Data: []byte("SELECT 1")},
	}
	files, err := migrationFiles(fsys)
	if err != nil {
		t.Fatalf("migrationFiles: %v", err)
	}
	want := []string{"001_first.sql", "002_second.sql", "010_late.sql"}
	if len(files) != len(want) {
		t.Fatalf("got %v", files)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Fatalf("got %v, want %v", files, want)
		}
	}
}

func TestRepositoryMigrationsPresent(t *testing.T) {
	_, file, _, _ := runtime.Caller(0)
	dir := filepath.Join(filepath.Dir(file), "..", "..", DefaultMigrationsDir)
	files, err := migrationFiles(os.DirFS(dir))
	if err != nil {
		t.Fatalf("migrationFiles: %v", err)
	}
	if len(files) < 3 || files[0] != "001_tickets.sql" {
		t.Fatalf("unexpected migrations %v", files)
	}
}

func TestApplyMigrationsWithoutPool(t *testing.T) {
	if err := ApplyMigrations(context.Background(), nil, fstest.MapFS{}, zap.NewNop()); err == nil {
		t.Fatalf("expected error without pool")
	}
}
