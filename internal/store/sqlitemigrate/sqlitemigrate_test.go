package sqlitemigrate

import (
	"context"
	"database/sql"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func openInMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func count(t *testing.T, db *sql.DB, query string) int64 {
	t.Helper()
	var n int64
	if err := db.QueryRow(query).Scan(&n); err != nil {
		t.Fatalf("query %q: %v", query, err)
	}
	return n
}

func TestApplyRecordsEachFileOnce(t *testing.T) {
	db := openInMemoryDB(t)
	ctx := context.Background()
	files := fstest.MapFS{
		"0001_items.sql": {Data: []byte("-- +migrate Up\nCREATE TABLE items(id INTEGER PRIMARY KEY);\n-- +migrate Down\nDROP TABLE items;")},
		"0002_tags.sql":  {Data: []byte("CREATE TABLE tags(name TEXT);")},
		"README.md":      {Data: []byte("not a migration")},
	}

	if err := Apply(ctx, db, files, ""); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := Apply(ctx, db, files, ""); err != nil {
		t.Fatalf("second apply: %v", err)
	}

	if n := count(t, db, "SELECT COUNT(*) FROM schema_migrations"); n != 2 {
		t.Fatalf("recorded = %d, want 2", n)
	}
	if n := count(t, db, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('items', 'tags')"); n != 2 {
		t.Fatalf("tables = %d, want 2", n)
	}
}

func TestApplyFailsOnBadSQL(t *testing.T) {
	db := openInMemoryDB(t)
	files := fstest.MapFS{
		"0001_bad.sql": {Data: []byte("CREATE TABLE (")},
	}
	if err := Apply(context.Background(), db, files, ""); err == nil {
		t.Fatal("expected migration error")
	}
	if n := count(t, db, "SELECT COUNT(*) FROM schema_migrations"); n != 0 {
		t.Fatalf("failed migration recorded")
	}
}

func TestUpSection(t *testing.T) {
	cases := map[string]string{
		"-- +migrate Up\nA;\n-- +migrate Down\nB;": "\nA;\n",
		"-- +migrate Up\nA;":                       "\nA;",
		"PLAIN;":                                   "PLAIN;",
	}
	for in, want := range cases {
		if got := UpSection(in); got != want {
			t.Fatalf("UpSection(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestApplyRequiresDB(t *testing.T) {
	if err := Apply(context.Background(), nil, fstest.MapFS{}, ""); err == nil {
		t.Fatal("expected nil db error")
	}
}
