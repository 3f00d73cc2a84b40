package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testDB(t *testing.T) *SQLite {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleEntries(now time.Time) []Entry {
	return []Entry{
		{Key: "geocoding:aaa", Value: []byte(`{"name":"Manhattan"}`), ExpiresAt: now.Add(time.Hour)},
		{Key: "verification:bbb", Value: []byte(`{"score":80}`), ExpiresAt: now.Add(2 * time.Hour)},
		{Key: "updates:ccc", Value: []byte(`[]`), ExpiresAt: now.Add(-time.Minute)},
	}
}

func TestPutAndGet(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	now := time.Now()

	for _, e := range sampleEntries(now) {
		if err := db.Put(ctx, e); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	got, ok, err := db.Get(ctx, "geocoding:aaa")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatal("expected entry to exist")
	}
	if string(got.Value) != `{"name":"Manhattan"}` {
		t.Errorf("unexpected value %q", got.Value)
	}
	if got.ExpiresAt.UnixMilli() != now.Add(time.Hour).UnixMilli() {
		t.Errorf("unexpected expiry %v", got.ExpiresAt)
	}
}

func TestGetMissing(t *testing.T) {
	db := testDB(t)
	_, ok, err := db.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Error("expected miss for unknown key")
	}
}

func TestPutOverwrites(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	now := time.Now()

	if err := db.Put(ctx, Entry{Key: "k", Value: []byte("first"), ExpiresAt: now.Add(time.Hour)}); err != nil {
		t.Fatalf("first put: %v", err)
	}
	if err := db.Put(ctx, Entry{Key: "k", Value: []byte("second"), ExpiresAt: now.Add(2 * time.Hour)}); err != nil {
		t.Fatalf("second put: %v", err)
	}

	got, _, _ := db.Get(ctx, "k")
	if string(got.Value) != "second" {
		t.Errorf("expected last write to win, got %q", got.Value)
	}
	n, _ := db.Count(ctx)
	if n != 1 {
		t.Errorf("expected 1 entry after upsert, got %d", n)
	}
}

func TestDeleteExpired(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	now := time.Now()
	for _, e := range sampleEntries(now) {
		db.Put(ctx, e)
	}

	deleted, err := db.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 expired entry removed, got %d", deleted)
	}
	n, _ := db.Count(ctx)
	if n != 2 {
		t.Errorf("expected 2 remaining entries, got %d", n)
	}
}

func TestDeleteExpiredNothingToDelete(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	now := time.Now()
	db.Put(ctx, Entry{Key: "k", Value: []byte("v"), ExpiresAt: now.Add(time.Hour)})

	deleted, err := db.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if deleted != 0 {
		t.Errorf("expected 0 deleted, got %d", deleted)
	}
}

func TestDeleteIfExpired(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	now := time.Now()
	db.Put(ctx, Entry{Key: "stale", Value: []byte("v"), ExpiresAt: now.Add(-time.Minute)})
	db.Put(ctx, Entry{Key: "live", Value: []byte("v"), ExpiresAt: now.Add(time.Hour)})

	for _, key := range []string{"stale", "live", "missing"} {
		if err := db.DeleteIfExpired(ctx, key, now); err != nil {
			t.Fatalf("delete %s: %v", key, err)
		}
	}
	if _, ok, _ := db.Get(ctx, "stale"); ok {
		t.Error("expected stale entry to be gone")
	}
	if _, ok, _ := db.Get(ctx, "live"); !ok {
		t.Error("expected live entry to survive")
	}
}

func TestStats(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	for _, e := range sampleEntries(time.Now()) {
		db.Put(ctx, e)
	}

	count, size, err := db.Stats(ctx, dbPath)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if count != 3 {
		t.Errorf("expected count 3, got %d", count)
	}
	if size == 0 {
		t.Error("expected non-zero db size")
	}
}

func TestOpenCreatesDir(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sub", "deep", "test.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("opening db in nested dir: %v", err)
	}
	db.Close()

	if _, err := os.Stat(filepath.Dir(dbPath)); os.IsNotExist(err) {
		t.Error("expected directory to be created")
	}
}

func TestMemoryBackend(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	now := time.Now()
	for _, e := range sampleEntries(now) {
		m.Put(ctx, e)
	}

	if n, _ := m.Count(ctx); n != 3 {
		t.Errorf("expected 3 entries, got %d", n)
	}
	deleted, _ := m.DeleteExpired(ctx, now)
	if deleted != 1 {
		t.Errorf("expected 1 expired, got %d", deleted)
	}
	if _, ok, _ := m.Get(ctx, "updates:ccc"); ok {
		t.Error("expected expired entry removed")
	}
}
