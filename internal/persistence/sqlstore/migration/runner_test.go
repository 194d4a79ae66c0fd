package migration

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+filepath.Join(t.TempDir(), "migrate.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunner_UpAppliesPendingOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openTestDB(t)
	files := fstest.MapFS{
		"001_create_items.sql": {Data: []byte("CREATE TABLE items (id VARCHAR(36) PRIMARY KEY, name VARCHAR(100) NOT NULL);")},
		"002_seed_items.sql":   {Data: []byte("INSERT INTO items (id, name) VALUES ('a', 'first');\nINSERT INTO items (id, name) VALUES ('b', 'second');")},
	}
	runner := NewRunner(db, files, quietLogger())

	applied, err := runner.Up(ctx)
	if err != nil {
		t.Fatalf("Up returned error: %v", err)
	}
	if applied != 2 {
		t.Fatalf("expected 2 migrations applied, got %d", applied)
	}

	applied, err = runner.Up(ctx)
	if err != nil || applied != 0 {
		t.Fatalf("expected second run to be a no-op, got %d, %v", applied, err)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM items").Scan(&count); err != nil {
		t.Fatalf("count items: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected seed rows once, got %d", count)
	}

	status, err := runner.Status(ctx)
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if status.CurrentVersion != "002" || len(status.Pending) != 0 || len(status.Applied) != 2 {
		t.Fatalf("unexpected status %+v", status)
	}
	if status.Applied[0].AppliedAt.IsZero() || status.Applied[0].Checksum == "" {
		t.Fatalf("expected bookkeeping columns filled, got %+v", status.Applied[0])
	}
}

func TestRunner_FailedMigrationRollsBack(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openTestDB(t)
	files := fstest.MapFS{
		"001_ok.sql":     {Data: []byte("CREATE TABLE ok_table (id INT);")},
		"002_broken.sql": {Data: []byte("INSERT INTO ok_table (id) VALUES (1);\nINSERT INTO missing_table (id) VALUES (1);")},
	}

	applied, err := NewRunner(db, files, quietLogger()).Up(ctx)
	var dbErr *DatabaseError
	if !errors.As(err, &dbErr) || dbErr.Version != "002" {
		t.Fatalf("expected database error for 002, got %v", err)
	}
	if applied != 1 {
		t.Fatalf("expected only the first migration applied, got %d", applied)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ok_table").Scan(&count); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected partial migration rolled back, got %d rows", count)
	}
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("count versions: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one recorded version, got %d", count)
	}
}

func TestRunner_StatusDetectsDrift(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openTestDB(t)
	original := fstest.MapFS{"001_init.sql": {Data: []byte("CREATE TABLE a (id INT);")}}
	if _, err := NewRunner(db, original, quietLogger()).Up(ctx); err != nil {
		t.Fatalf("Up returned error: %v", err)
	}

	edited := fstest.MapFS{"001_init.sql": {Data: []byte("CREATE TABLE a (id INT, name TEXT);")}}
	if _, err := NewRunner(db, edited, quietLogger()).Status(ctx); !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected checksum mismatch, got %v", err)
	}

	gap := fstest.MapFS{
		"001_init.sql":  original["001_init.sql"],
		"003_later.sql": {Data: []byte("CREATE TABLE c (id INT);")},
	}
	if _, err := NewRunner(db, gap, quietLogger()).Status(ctx); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected version gap conflict, got %v", err)
	}

	if _, err := NewRunner(db, fstest.MapFS{}, quietLogger()).Status(ctx); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected missing applied file conflict, got %v", err)
	}
}
