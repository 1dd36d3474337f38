package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"testing"
	"time"
)

func TestChecksumIsStableBlake2b(t *testing.T) {
	a := Checksum([]byte(`{"type":"doc"}`))
	if len(a) != 64 {
		t.Fatalf("expected a 256-bit hex digest, got %q", a)
	}
	if a != Checksum([]byte(`{"type":"doc"}`)) {
		t.Fatal("checksum is not deterministic")
	}
	if a == Checksum([]byte(`{"type":"doc" }`)) {
		t.Fatal("different content produced the same checksum")
	}
}

// openTestDB connects to OUTLINE_TEST_DATABASE_URL with a fresh public
// schema, skipping the test when it is not set.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("OUTLINE_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("OUTLINE_TEST_DATABASE_URL is not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := db.ExecContext(ctx, `DROP SCHEMA IF EXISTS public CASCADE; CREATE SCHEMA public;`); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	return db
}

func TestMigrationsRoundTripPostgres(t *testing.T) {
	db := openTestDB(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	migrationsDir := filepath.Join("..", "..", "db", "migrations")
	if err := ApplyMigrations(ctx, db, migrationsDir); err != nil {
		t.Fatalf("apply up migrations (pass 1): %v", err)
	}
	if err := ApplyMigrations(ctx, db, migrationsDir); err != nil {
		t.Fatalf("re-apply up migrations: %v", err)
	}
	if err := applyDownMigrations(ctx, db, migrationsDir); err != nil {
		t.Fatalf("apply down migrations: %v", err)
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM schema_migrations`); err != nil {
		t.Fatalf("clear schema_migrations: %v", err)
	}
	if err := ApplyMigrations(ctx, db, migrationsDir); err != nil {
		t.Fatalf("apply up migrations (pass 2): %v", err)
	}
}

func TestAppendStepsDetectsConflicts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if err := ApplyMigrations(ctx, db, filepath.Join("..", "..", "db", "migrations")); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	s := NewPostgresStore(db)

	doc := Document{ID: "doc-1", Title: "Doc", Content: json.RawMessage(`{"type":"doc"}`), Markdown: ""}
	if err := s.InsertDocument(ctx, doc); err != nil {
		t.Fatalf("InsertDocument() error = %v", err)
	}
	if err := s.InsertDocument(ctx, doc); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	next := doc
	next.Content = json.RawMessage(`{"type":"doc","content":[]}`)
	batch := StepBatch{DocumentID: doc.ID, Version: 1, Steps: json.RawMessage(`[]`), ClientID: "c1"}
	if err := s.AppendSteps(ctx, next, batch); err != nil {
		t.Fatalf("AppendSteps() error = %v", err)
	}
	if err := s.AppendSteps(ctx, next, batch); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	got, err := s.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetDocument() error = %v", err)
	}
	if got.Version != 1 || got.Checksum != Checksum(next.Content) {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
	steps, err := s.StepsSince(ctx, doc.ID, 0)
	if err != nil {
		t.Fatalf("StepsSince() error = %v", err)
	}
	if len(steps) != 1 || steps[0].ClientID != "c1" {
		t.Fatalf("unexpected steps: %+v", steps)
	}
	if _, err := s.GetDocument(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func applyDownMigrations(ctx context.Context, db *sql.DB, migrationsDir string) error {
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return err
	}

	pattern := regexp.MustCompile(`^(\d+)_.*\.down\.sql$`)
	var downs []string
	for _, entry := range entries {
		if !entry.IsDir() && pattern.MatchString(entry.Name()) {
			downs = append(downs, filepath.Join(migrationsDir, entry.Name()))
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(downs)))

	for _, path := range downs {
		sqlBytes, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx, string(sqlBytes)); err != nil {
			return err
		}
	}
	return nil
}
