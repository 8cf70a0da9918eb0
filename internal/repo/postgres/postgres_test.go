//go:build integration

package postgres

// go test -tags=integration ./internal/repo/postgres -count=1

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/checkmk-notify/internal/repo"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("NOTIFY_DATABASE_URL")
	if dsn == "" {
		t.Skip("NOTIFY_DATABASE_URL not set; skipping Postgres integration test")
	}
	ctx := context.Background()
	// Unique namespace per run so reruns don't see old rows.
	ns := fmt.Sprintf("test-%d", time.Now().UTC().UnixNano())
	store, err := New(ctx, dsn, ns, zap.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("schema: %v", err)
	}
	return store
}

func TestStateCRUD(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	// none yet
	if _, ok, err := store.Get(ctx, "host1_svcA"); err != nil || ok {
		t.Fatalf("expected missing, ok=%v err=%v", ok, err)
	}

	if err := store.Set(ctx, "host1_svcA", "41"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Set(ctx, "host1_svcA", "42"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	v, ok, err := store.Get(ctx, "host1_svcA")
	if err != nil || !ok || v != "42" {
		t.Fatalf("unexpected: v=%q ok=%v err=%v", v, ok, err)
	}

	all, err := store.List(ctx)
	if err != nil || len(all) != 1 {
		t.Fatalf("list: %v err=%v", all, err)
	}

	if err := store.Delete(ctx, "host1_svcA"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "host1_svcA"); ok {
		t.Fatalf("still present after delete")
	}
}

func TestDeleteUnchanged(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "old", "1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Set(ctx, "fresh", "2"); err != nil {
		t.Fatalf("set: %v", err)
	}
	n, err := store.DeleteUnchanged(ctx, map[string]string{"old": "1", "fresh": "1"})
	if err != nil || n != 1 {
		t.Fatalf("DeleteUnchanged: n=%d err=%v", n, err)
	}
	if v, ok, _ := store.Get(ctx, "fresh"); !ok || v != "2" {
		t.Fatalf("rewritten key lost: %q %v", v, ok)
	}
}

func TestAdvisoryLock(t *testing.T) {
	store := openStore(t)

	unlock, err := store.Lock(context.Background(), "host1_svcA")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if _, err := store.Lock(ctx, "host1_svcA"); !errors.Is(err, repo.ErrLockTimeout) {
		t.Fatalf("want ErrLockTimeout, got %v", err)
	}

	if err := unlock(); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	again, err := store.Lock(context.Background(), "host1_svcA")
	if err != nil {
		t.Fatalf("relock: %v", err)
	}
	_ = again()
}
