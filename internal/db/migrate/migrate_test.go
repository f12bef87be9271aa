package migrate

import (
	"context"
	"database/sql"
	"testing"
	"testing/fstest"

	_ "github.com/mattn/go-sqlite3"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRun_AppliesEmbeddedOnce(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()

	done, err := Run(ctx, db, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(done) != 2 || done[0] != "0001" || done[1] != "0002" {
		t.Fatalf("Run() applied %v; want [0001 0002]", done)
	}

	if _, err := db.Exec(`INSERT INTO stations (name) VALUES ('home')`); err != nil {
		t.Fatalf("insert station: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO readings (station_id, ts, temperature_c, humidity_pct, pressure, temp_top_c) VALUES (1, '2025-01-01T00:00:00Z', 20, 50, 25, 21)`); err != nil {
		t.Fatalf("insert reading: %v", err)
	}

	again, err := Run(ctx, db, nil)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("second Run() applied %v; want none", again)
	}
}

func TestRun_OrdersAndSkipsUnrelatedFiles(t *testing.T) {
	db := openMemory(t)
	fsys := fstest.MapFS{
		"sql/0002_second.sql": {Data: []byte(`ALTER TABLE a ADD COLUMN b TEXT;`)},
		"sql/0001_first.sql":  {Data: []byte(`CREATE TABLE a (id INTEGER);`)},
		"sql/README.md":       {Data: []byte(`not a migration`)},
	}

	done, err := run(context.Background(), db, fsys, nil)
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if len(done) != 2 || done[0] != "0001" || done[1] != "0002" {
		t.Fatalf("run() applied %v; want [0001 0002]", done)
	}
}

func TestRun_FailedMigrationIsNotRecorded(t *testing.T) {
	db := openMemory(t)
	fsys := fstest.MapFS{
		"sql/0001_broken.sql": {Data: []byte(`CREATE TABLE (`)},
	}

	if _, err := run(context.Background(), db, fsys, nil); err == nil {
		t.Fatal("run() = nil; want error for broken migration")
	}

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&n); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if n != 0 {
		t.Errorf("schema_migrations has %d rows; want 0", n)
	}
}
