package storage

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"prism-kanban/domain"
)

// backend is a mirror that can also read its rows back.
type backend interface {
	domain.Mirror
	domain.Reader
}

// Cache wraps a backend with Redis-backed caching for read operations.
// Every write evicts the cached rows of the partition it touches.
type Cache struct {
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching wrapper using the provided Redis client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) Insert(ctx context.Context, row domain.Row) error {
	if err := c.base.Insert(ctx, row); err != nil {
		return err
	}
	c.evict(ctx, row.Table(), row.Key())
	return nil
}

func (c *Cache) Update(ctx context.Context, table domain.Table, key domain.Entity, field string, value any) error {
	if err := c.base.Update(ctx, table, key, field, value); err != nil {
		return err
	}
	c.evict(ctx, table, key)
	return nil
}

func (c *Cache) Delete(ctx context.Context, table domain.Table, key domain.Entity) error {
	if err := c.base.Delete(ctx, table, key); err != nil {
		return err
	}
	c.evict(ctx, table, key)
	return nil
}

func (c *Cache) Boards(ctx context.Context) ([]domain.BoardEntity, error) {
	return cached(ctx, c, boardsCacheKey(), c.base.Boards)
}

func (c *Cache) Columns(ctx context.Context, board domain.BoardKey) ([]domain.ColumnEntity, error) {
	return cached(ctx, c, rowsCacheKey(domain.TableColumns, board.Partition()), func(ctx context.Context) ([]domain.ColumnEntity, error) {
		return c.base.Columns(ctx, board)
	})
}

func (c *Cache) Tasks(ctx context.Context, board domain.BoardKey) ([]domain.TaskEntity, error) {
	return cached(ctx, c, rowsCacheKey(domain.TableTasks, board.Partition()), func(ctx context.Context) ([]domain.TaskEntity, error) {
		return c.base.Tasks(ctx, board)
	})
}

func (c *Cache) Members(ctx context.Context, board domain.BoardKey) ([]domain.MemberEntity, error) {
	return cached(ctx, c, rowsCacheKey(domain.TableMembers, board.Partition()), func(ctx context.Context) ([]domain.MemberEntity, error) {
		return c.base.Members(ctx, board)
	})
}

func cached[T any](ctx context.Context, c *Cache, key string, load func(context.Context) ([]T, error)) ([]T, error) {
	if rows, ok := loadFromCache[T](ctx, c, key); ok {
		return rows, nil
	}
	rows, err := load(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, rows)
	return rows, nil
}

func loadFromCache[T any](ctx context.Context, c *Cache, key string) ([]T, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			log.WithError(err).WithField("key", key).Warn("cache read failed")
			_ = c.redis.Del(ctx, key).Err()
		}
		return nil, false
	}
	var rows []T
	if err := sonic.Unmarshal(data, &rows); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return nil, false
	}
	return rows, true
}

func (c *Cache) store(ctx context.Context, key string, rows any) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := sonic.Marshal(rows)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, table domain.Table, key domain.Entity) {
	if c.redis == nil {
		return
	}
	k := rowsCacheKey(table, key.PartitionKey)
	if table == domain.TableBoards {
		k = boardsCacheKey()
	}
	if err := c.redis.Del(ctx, k).Err(); err != nil {
		log.WithError(err).WithField("key", k).Warn("cache eviction failed")
	}
}

func boardsCacheKey() string {
	return "kanban:" + string(domain.TableBoards)
}

func rowsCacheKey(table domain.Table, partition string) string {
	return "kanban:" + string(table) + ":" + partition
}
