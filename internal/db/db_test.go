package db

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hpungsan/tidy/internal/config"
)

func TestInit_Layout(t *testing.T) {
	baseDir := filepath.Join(t.TempDir(), "home", ".tidy")

	db, err := Init(baseDir)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer db.Close()

	for _, p := range []string{baseDir, filepath.Join(baseDir, "locks")} {
		info, err := os.Stat(p)
		if err != nil || !info.IsDir() {
			t.Errorf("%s: want directory, got err=%v", p, err)
		}
	}
	if _, err := os.Stat(filepath.Join(baseDir, "tidy.db")); err != nil {
		t.Errorf("journal file missing: %v", err)
	}

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		t.Fatalf("failed to query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("journal_mode = %s, want wal", journalMode)
	}
}

func TestInit_Schema(t *testing.T) {
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer db.Close()

	objects := []struct{ kind, name string }{
		{"table", "runs"},
		{"table", "moves"},
		{"index", "idx_runs_created"},
		{"index", "idx_runs_source_root"},
	}
	for _, o := range objects {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type=? AND name=?", o.kind, o.name).Scan(&name)
		if err != nil {
			t.Errorf("%s %s not found: %v", o.kind, o.name, err)
		}
	}
}

func TestInit_MovesCascadeWithRun(t *testing.T) {
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer db.Close()

	if err := InsertRun(db, newTestRun("01CASCADE", "/in", 100), testMoves()); err != nil {
		t.Fatalf("InsertRun() error = %v", err)
	}
	if _, err := db.Exec("DELETE FROM runs WHERE id = ?", "01CASCADE"); err != nil {
		t.Fatalf("delete run: %v", err)
	}

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM moves").Scan(&n); err != nil {
		t.Fatalf("count moves: %v", err)
	}
	if n != 0 {
		t.Errorf("moves left after run delete = %d, want 0", n)
	}

	// Orphan moves are rejected
	_, err = db.Exec("INSERT INTO moves (run_id, seq, source, destination, size) VALUES ('nope', 0, 'a', 'b', 0)")
	if err == nil {
		t.Error("expected foreign key violation for orphan move")
	}
}

func TestMigrate_Versions(t *testing.T) {
	tmpDir := t.TempDir()

	db1, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("first Init() error = %v", err)
	}
	if err := InsertRun(db1, newTestRun("01KEEP", "/data/in", 100), nil); err != nil {
		t.Fatalf("InsertRun() error = %v", err)
	}
	db1.Close()

	// Reopening skips applied migrations and keeps data
	db2, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("second Init() error = %v", err)
	}
	defer db2.Close()

	version, err := GetUserVersion(db2)
	if err != nil {
		t.Fatalf("GetUserVersion() error = %v", err)
	}
	if version != CurrentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, CurrentSchemaVersion)
	}
	if _, err := GetRun(db2, "01KEEP"); err != nil {
		t.Errorf("run lost across reopen: %v", err)
	}

	if err := SetUserVersion(db2, 99); err != nil {
		t.Fatalf("SetUserVersion() error = %v", err)
	}
	if version, _ = GetUserVersion(db2); version != 99 {
		t.Errorf("user_version = %d, want 99", version)
	}
}

func TestConfigurePool(t *testing.T) {
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer db.Close()

	ConfigurePool(db, nil)
	ConfigurePool(db, &config.Config{DBMaxOpenConns: 3})

	if got := db.Stats().MaxOpenConnections; got != 3 {
		t.Errorf("MaxOpenConnections = %d, want 3", got)
	}
}
