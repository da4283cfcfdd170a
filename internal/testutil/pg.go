// Package testutil holds helpers for tests that need a real PostgreSQL or Redis.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"cabdispatch/internal/infra"
)

// Postgres returns a pool on CAB_TEST_DSN with migrations applied and all
// tables emptied. The test is skipped when the variable is not set.
func Postgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("CAB_TEST_DSN")
	if dsn == "" {
		t.Skip("CAB_TEST_DSN not set; skipping DB-backed tests")
	}

	ctx := context.Background()
	db, err := infra.NewDB(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(db.Close)

	root, err := RepoRoot()
	if err != nil {
		t.Fatalf("repo root: %v", err)
	}
	if err := infra.Migrate(ctx, db, filepath.Join(root, "migrations")); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if _, err := db.Exec(ctx, "TRUNCATE TABLE booking_events, bookings, cabs, drivers, users RESTART IDENTITY CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	return db
}

// Redis returns a client on CAB_TEST_REDIS_ADDR with the current database
// flushed. The test is skipped when the variable is not set.
func Redis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("CAB_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CAB_TEST_REDIS_ADDR not set; skipping Redis-backed tests")
	}
	ctx := context.Background()
	client, err := infra.NewRedis(ctx, addr)
	if err != nil {
		t.Fatalf("connect redis: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("flush redis: %v", err)
	}
	return client
}

func RepoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}
