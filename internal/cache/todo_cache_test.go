package cache

import (
	"context"
	"testing"
	"time"

	dom "TodoAPI/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*TodoCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewTodoCache(rdb, time.Minute), mr
}

func TestTodoCacheGetSet(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	key := ListKey(1, 0, 100)

	got, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got, "miss")

	desc := "milk, eggs"
	due := time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC)
	want := []dom.Todo{{
		ID:          7,
		OwnerID:     1,
		Text:        "buy groceries",
		Description: &desc,
		Stage:       dom.StageTodo,
		Category:    dom.CategoryShopping,
		Priority:    dom.PriorityHigh,
		DueDate:     &due,
		Subtasks:    []dom.SubTask{{ID: 1, TodoID: 7, Text: "milk"}},
		Tags:        []dom.Tag{{ID: 2, Name: "errand"}},
	}}
	ok, err := c.Set(ctx, 1, 0, key, want)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err = c.Get(ctx, key)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "buy groceries", got[0].Text)
	assert.Equal(t, desc, *got[0].Description)
	assert.True(t, due.Equal(*got[0].DueDate))
	assert.Equal(t, "errand", got[0].Tags[0].Name)

	mr.FastForward(2 * time.Minute)
	got, err = c.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got, "entry expires after ttl")
}

func TestTodoCacheEmptyListIsHit(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	_, err := c.Set(ctx, 3, 0, OverdueKey(3), nil)
	require.NoError(t, err)
	got, err := c.Get(ctx, OverdueKey(3))
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestTodoCacheInvalidateOwner(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	list := []dom.Todo{{ID: 1, Text: "x"}}

	entries := []struct {
		owner int64
		key   string
	}{
		{1, ListKey(1, 0, 100)}, {1, SearchKey(1, "milk")}, {1, TagKey(1, "home")}, {1, OverdueKey(1)},
		{2, ListKey(2, 0, 100)}, {12, OverdueKey(12)},
	}
	for _, e := range entries {
		_, err := c.Set(ctx, e.owner, 0, e.key, list)
		require.NoError(t, err)
	}

	require.NoError(t, c.InvalidateOwner(ctx, 1))

	assert.False(t, mr.Exists(ListKey(1, 0, 100)))
	assert.False(t, mr.Exists(SearchKey(1, "milk")))
	assert.False(t, mr.Exists(TagKey(1, "home")))
	assert.False(t, mr.Exists(OverdueKey(1)))
	assert.True(t, mr.Exists(ListKey(2, 0, 100)), "other owners keep their entries")
	assert.True(t, mr.Exists(OverdueKey(12)), "owner 12 does not share owner 1's prefix")

	require.NoError(t, c.InvalidateOwner(ctx, 99), "nothing to delete")
}

func TestTodoCacheSetAfterInvalidateIsDropped(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	key := ListKey(1, 0, 100)

	gen, err := c.Generation(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, gen)

	require.NoError(t, c.InvalidateOwner(ctx, 1))
	require.NoError(t, c.InvalidateOwner(ctx, 2))

	ok, err := c.Set(ctx, 1, gen, key, []dom.Todo{{ID: 1, Text: "stale"}})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists(key))

	gen, err = c.Generation(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen, "generation survives the owner's key sweep")

	ok, err = c.Set(ctx, 1, gen, key, []dom.Todo{{ID: 1, Text: "fresh"}})
	require.NoError(t, err)
	assert.True(t, ok)
	got, err := c.Get(ctx, key)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "fresh", got[0].Text)
	assert.InDelta(t, time.Minute.Seconds(), mr.TTL(key).Seconds(), 1)
}

func TestCacheKeys(t *testing.T) {
	assert.Equal(t, "todo:5:list:10:20", ListKey(5, 10, 20))
	assert.Equal(t, "todo:5:search:milk", SearchKey(5, "  MiLK "))
	assert.Equal(t, "todo:5:tag:Home", TagKey(5, "Home"))
	assert.Equal(t, "todo:5:overdue", OverdueKey(5))
}
