package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"prism-kanban/domain"
)

// countingBackend counts reads that reach the underlying store.
type countingBackend struct {
	*SQLite
	columnReads int
	boardReads  int
	failReads   bool
}

func (b *countingBackend) Columns(ctx context.Context, board domain.BoardKey) ([]domain.ColumnEntity, error) {
	b.columnReads++
	if b.failReads {
		return nil, errors.New("backend down")
	}
	return b.SQLite.Columns(ctx, board)
}

func (b *countingBackend) Boards(ctx context.Context) ([]domain.BoardEntity, error) {
	b.boardReads++
	return b.SQLite.Boards(ctx)
}

func newTestCache(t *testing.T, ttl time.Duration) (*Cache, *countingBackend, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	base := &countingBackend{SQLite: newTestSQLite(t)}
	return NewCache(base, client, ttl), base, mr
}

func TestCacheColumnsMissThenHit(t *testing.T) {
	c, base, mr := newTestCache(t, time.Minute)
	ctx := context.Background()
	b, _ := domain.NewBoard("alice@example.com", "sprint", c)
	if err := b.Persist(ctx); err != nil {
		t.Fatalf("persist: %v", err)
	}

	for i := 0; i < 2; i++ {
		cols, err := c.Columns(ctx, b.Key())
		if err != nil {
			t.Fatalf("columns: %v", err)
		}
		if len(cols) != 3 || cols[1].Name != "in progress" {
			t.Fatalf("unexpected columns: %+v", cols)
		}
	}
	if base.columnReads != 1 {
		t.Fatalf("expected 1 backend read, got %d", base.columnReads)
	}
	key := rowsCacheKey(domain.TableColumns, b.Key().Partition())
	if ttl := mr.TTL(key); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected TTL: %v", ttl)
	}
}

func TestCacheEvictsOnWrite(t *testing.T) {
	c, base, mr := newTestCache(t, time.Minute)
	ctx := context.Background()
	b, _ := domain.NewBoard("alice@example.com", "sprint", c)
	if err := b.Persist(ctx); err != nil {
		t.Fatalf("persist: %v", err)
	}
	if _, err := c.Columns(ctx, b.Key()); err != nil {
		t.Fatalf("columns: %v", err)
	}
	if _, err := c.Boards(ctx); err != nil {
		t.Fatalf("boards: %v", err)
	}

	if err := b.RenameColumn(ctx, 0, "todo"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if mr.Exists(rowsCacheKey(domain.TableColumns, b.Key().Partition())) {
		t.Fatal("column cache survived a column write")
	}
	cols, err := c.Columns(ctx, b.Key())
	if err != nil || cols[0].Name != "todo" {
		t.Fatalf("stale columns after rename: %v %+v", err, cols)
	}
	if base.columnReads != 2 {
		t.Fatalf("expected 2 backend reads, got %d", base.columnReads)
	}

	if _, err := b.AllocateTaskID(ctx); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if mr.Exists(boardsCacheKey()) {
		t.Fatal("board cache survived a board write")
	}
	boards, err := c.Boards(ctx)
	if err != nil || boards[0].NextTaskID != 1 {
		t.Fatalf("stale boards: %v %+v", err, boards)
	}
	if base.boardReads != 2 {
		t.Fatalf("expected 2 board reads, got %d", base.boardReads)
	}
}

func TestCacheCorruptEntryFallsBack(t *testing.T) {
	c, base, mr := newTestCache(t, time.Minute)
	ctx := context.Background()
	key := domain.BoardKey{Creator: "alice@example.com", Name: "sprint"}
	if err := mr.Set(rowsCacheKey(domain.TableColumns, key.Partition()), "{not json"); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	cols, err := c.Columns(ctx, key)
	if err != nil {
		t.Fatalf("columns: %v", err)
	}
	if len(cols) != 0 || base.columnReads != 1 {
		t.Fatalf("expected empty backend read, got %d rows and %d reads", len(cols), base.columnReads)
	}
}

func TestCacheDoesNotStoreErrors(t *testing.T) {
	c, base, mr := newTestCache(t, time.Minute)
	base.failReads = true
	key := domain.BoardKey{Creator: "alice@example.com", Name: "sprint"}
	if _, err := c.Columns(context.Background(), key); err == nil {
		t.Fatal("expected backend error")
	}
	if mr.Exists(rowsCacheKey(domain.TableColumns, key.Partition())) {
		t.Fatal("error result was cached")
	}
}

func TestCacheZeroTTLSkipsStore(t *testing.T) {
	c, base, mr := newTestCache(t, 0)
	key := domain.BoardKey{Creator: "alice@example.com", Name: "sprint"}
	for i := 0; i < 2; i++ {
		if _, err := c.Columns(context.Background(), key); err != nil {
			t.Fatalf("columns: %v", err)
		}
	}
	if base.columnReads != 2 || len(mr.Keys()) != 0 {
		t.Fatalf("expected uncached reads, got %d reads and keys %v", base.columnReads, mr.Keys())
	}
}
