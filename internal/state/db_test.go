package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// tempDBPath returns a path to a temp database file.
func tempDBPath(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	return filepath.Join(dir, "test.db")
}

// setupTestDB creates a new temporary database for testing.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(tempDBPath(t))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func TestOpen(t *testing.T) {
	path := tempDBPath(t)
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	// Check path is set correctly
	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}

	// Check file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("database file does not exist at %s", path)
	}
}

func TestOpen_CreatesParentDirectories(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b", "c")
	path := filepath.Join(nested, "test.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(nested); os.IsNotExist(err) {
		t.Errorf("parent directories not created: %s", nested)
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	// Try to open a database at a path that can't be created
	// (on Linux, we can't create files under /proc)
	_, err := Open("/proc/nonexistent/test.db")
	if err == nil {
		t.Error("expected error opening db at invalid path")
	}
}

func TestClose(t *testing.T) {
	db, err := Open(tempDBPath(t))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if err := db.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	// Subsequent operations should fail
	_, err = db.Query("SELECT 1")
	if err == nil {
		t.Error("expected error after close, got nil")
	}
}

func TestMigrate(t *testing.T) {
	db, err := Open(tempDBPath(t))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	// First migration
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	// Check tables exist
	tables := []string{"schema_version", "runs", "iterations"}
	for _, table := range tables {
		var count int
		row := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table)
		if err := row.Scan(&count); err != nil {
			t.Errorf("failed to check table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("table %s does not exist", table)
		}
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db := setupTestDB(t)

	// Running again should be a no-op
	if err := db.Migrate(); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}

	var version int
	row := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&version); err != nil {
		t.Fatalf("failed to read schema version: %v", err)
	}
	if version != 2 {
		t.Errorf("schema version = %d, want 2", version)
	}
}

func TestProjectDBPath(t *testing.T) {
	got := ProjectDBPath("/some/repo")
	want := filepath.Join("/some/repo", ".grind", "state.db")
	if got != want {
		t.Errorf("ProjectDBPath() = %q, want %q", got, want)
	}
}

func TestGlobalDBPath_RespectsXDG(t *testing.T) {
	os.Setenv("XDG_DATA_HOME", "/custom/data")
	defer os.Unsetenv("XDG_DATA_HOME")

	got := GlobalDBPath()
	want := filepath.Join("/custom/data", "grind", "grind.db")
	if got != want {
		t.Errorf("GlobalDBPath() = %q, want %q", got, want)
	}
}

func TestPurgeOldRuns(t *testing.T) {
	db := setupTestDB(t)

	old := &Run{
		ID:                "old-run",
		Prompt:            "p",
		CompletionPromise: "DONE",
		Model:             "m",
		StartedAt:         time.Now().Add(-48 * time.Hour),
		Outcome:           "completed",
	}
	recent := &Run{
		ID:                "recent-run",
		Prompt:            "p",
		CompletionPromise: "DONE",
		Model:             "m",
		StartedAt:         time.Now(),
		Outcome:           "completed",
	}
	inFlight := &Run{
		ID:                "old-active",
		Prompt:            "p",
		CompletionPromise: "DONE",
		Model:             "m",
		StartedAt:         time.Now().Add(-48 * time.Hour),
	}
	for _, r := range []*Run{old, recent, inFlight} {
		if err := db.CreateRun(r); err != nil {
			t.Fatalf("CreateRun(%s) failed: %v", r.ID, err)
		}
	}

	count, err := db.PurgeOldRuns(24 * time.Hour)
	if err != nil {
		t.Fatalf("PurgeOldRuns failed: %v", err)
	}
	if count != 1 {
		t.Errorf("purged %d runs, want 1 (in-flight runs are kept)", count)
	}

	if r, _ := db.GetRun("old-run"); r != nil {
		t.Error("old finished run should be purged")
	}
	if r, _ := db.GetRun("recent-run"); r == nil {
		t.Error("recent run should be kept")
	}
	if r, _ := db.GetRun("old-active"); r == nil {
		t.Error("in-flight run should be kept regardless of age")
	}
}
