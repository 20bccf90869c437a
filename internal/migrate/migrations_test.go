package migrate_test

import (
	"context"
	"testing"

	"taskboard/internal/db"
	"taskboard/internal/migrate"
)

func TestMigrateIsIdempotent(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()
	ctx := context.Background()

	v, err := migrate.Version(ctx, conn)
	if err != nil {
		t.Fatalf("version before migrate: %v", err)
	}
	if v != 0 {
		t.Fatalf("expected fresh version 0, got %d", v)
	}
	for i := 0; i < 2; i++ {
		if err := migrate.MigrateContext(ctx, conn); err != nil {
			t.Fatalf("migrate run %d: %v", i, err)
		}
	}
	latest, err := migrate.Latest()
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	v, err = migrate.Version(ctx, conn)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if v != latest {
		t.Fatalf("expected version %d, got %d", latest, v)
	}
	for _, table := range []string{"users", "tasks", "events"} {
		var name string
		if err := conn.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name); err != nil {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}
}
