package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	dom "TodoAPI/internal/domain"

	"github.com/redis/go-redis/v9"
)

// Keys are namespaced per owner so one user's writes only evict their own entries:
//
//	todo:{owner}:list:{skip}:{limit}
//	todo:{owner}:search:{query}
//	todo:{owner}:tag:{name}
//	todo:{owner}:overdue
//
// The invalidation generation lives outside that prefix at todo-gen:{owner},
// so InvalidateOwner never deletes it.
const (
	keyPrefix = "todo:"
	genPrefix = "todo-gen:"
)

// setIfGeneration writes KEYS[2] only while the generation at KEYS[1] still
// equals ARGV[1].
var setIfGeneration = redis.NewScript(`
local gen = tonumber(redis.call("GET", KEYS[1])) or 0
if gen ~= tonumber(ARGV[1]) then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
else
	redis.call("SET", KEYS[2], ARGV[2])
end
return 1
`)

// TodoCache caches read-heavy todo queries in Redis.
type TodoCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewTodoCache returns a new TodoCache.
func NewTodoCache(rdb *redis.Client, ttl time.Duration) *TodoCache {
	return &TodoCache{rdb: rdb, ttl: ttl}
}

func ownerPrefix(ownerID int64) string {
	return fmt.Sprintf("%s%d:", keyPrefix, ownerID)
}

func genKey(ownerID int64) string {
	return fmt.Sprintf("%s%d", genPrefix, ownerID)
}

func ListKey(ownerID int64, skip, limit int) string {
	return fmt.Sprintf("%slist:%d:%d", ownerPrefix(ownerID), skip, limit)
}

func SearchKey(ownerID int64, q string) string {
	return ownerPrefix(ownerID) + "search:" + normalizeQuery(q)
}

// TagKey keeps the tag name as-is; tag names are case-sensitive.
func TagKey(ownerID int64, name string) string {
	return ownerPrefix(ownerID) + "tag:" + name
}

func OverdueKey(ownerID int64) string {
	return ownerPrefix(ownerID) + "overdue"
}

// Get returns the cached list at key. A miss is (nil, nil).
func (c *TodoCache) Get(ctx context.Context, key string) ([]dom.Todo, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var list []dom.Todo
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []dom.Todo{}
	}
	return list, nil
}

// Generation returns the invalidation counter of ownerID. Read it before
// loading the data passed to Set.
func (c *TodoCache) Generation(ctx context.Context, ownerID int64) (int64, error) {
	n, err := c.rdb.Get(ctx, genKey(ownerID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// Set stores list at key with the cache TTL, unless ownerID has been
// invalidated since gen was read. It reports whether the entry was written.
func (c *TodoCache) Set(ctx context.Context, ownerID, gen int64, key string, list []dom.Todo) (bool, error) {
	if list == nil {
		list = []dom.Todo{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return false, err
	}
	n, err := setIfGeneration.Run(ctx, c.rdb, []string{genKey(ownerID), key}, gen, b, c.ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// InvalidateOwner bumps the generation of ownerID, then removes every cached
// query of that owner. Fills that loaded before the bump are discarded.
func (c *TodoCache) InvalidateOwner(ctx context.Context, ownerID int64) error {
	if err := c.rdb.Incr(ctx, genKey(ownerID)).Err(); err != nil {
		return err
	}
	iter := c.rdb.Scan(ctx, 0, ownerPrefix(ownerID)+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

func normalizeQuery(q string) string {
	return strings.TrimSpace(strings.ToLower(q))
}
