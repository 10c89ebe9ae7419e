package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"TodoAPI/internal/cache"
	dom "TodoAPI/internal/domain"
	"TodoAPI/internal/logging"
	"TodoAPI/internal/repo"

	"golang.org/x/sync/singleflight"
)

// TodoService is the owner-scoped task store. Every method takes the id of
// the authenticated user; records of other users behave as missing.
type TodoService struct {
	todos    repo.TodoRepo
	subtasks repo.SubtaskRepo
	tags     repo.TagRepo
	cache    *cache.TodoCache
	now      func() time.Time
	sf       singleflight.Group
}

// NewTodoService creates a TodoService. If c is nil, caching is disabled.
func NewTodoService(todos repo.TodoRepo, subtasks repo.SubtaskRepo, tags repo.TagRepo, c *cache.TodoCache) *TodoService {
	return &TodoService{todos: todos, subtasks: subtasks, tags: tags, cache: c, now: time.Now}
}

// WithClock replaces the clock used for overdue checks.
func (s *TodoService) WithClock(now func() time.Time) *TodoService {
	s.now = now
	return s
}

func (s *TodoService) List(ctx context.Context, ownerID int64, skip, limit int) ([]dom.Todo, error) {
	return s.cached(ctx, ownerID, cache.ListKey(ownerID, skip, limit), func(ctx context.Context) ([]dom.Todo, error) {
		return s.todos.List(ctx, ownerID, skip, limit)
	})
}

func (s *TodoService) Get(ctx context.Context, ownerID, id int64) (dom.Todo, error) {
	return s.todos.GetByID(ctx, ownerID, id)
}

func (s *TodoService) Create(ctx context.Context, ownerID int64, t dom.NewTodo) (dom.Todo, error) {
	t = t.WithDefaults()
	t.Text = strings.TrimSpace(t.Text)
	if err := t.Validate(); err != nil {
		return dom.Todo{}, err
	}
	created, err := s.todos.Create(ctx, ownerID, t)
	if err != nil {
		return dom.Todo{}, err
	}
	s.invalidateCache(ctx, ownerID)
	return created, nil
}

// Update applies patch; fields left nil keep their stored values.
func (s *TodoService) Update(ctx context.Context, ownerID, id int64, patch dom.TodoPatch) (dom.Todo, error) {
	if patch.Text != nil {
		text := strings.TrimSpace(*patch.Text)
		patch.Text = &text
	}
	if err := patch.Validate(); err != nil {
		return dom.Todo{}, err
	}
	t, err := s.todos.Update(ctx, ownerID, id, patch)
	if err != nil {
		return dom.Todo{}, err
	}
	s.invalidateCache(ctx, ownerID)
	return t, nil
}

func (s *TodoService) Complete(ctx context.Context, ownerID, id int64) (dom.Todo, error) {
	done := true
	return s.Update(ctx, ownerID, id, dom.TodoPatch{Completed: &done})
}

// Delete removes the todo together with its subtasks and tag associations.
func (s *TodoService) Delete(ctx context.Context, ownerID, id int64) error {
	if err := s.todos.Delete(ctx, ownerID, id); err != nil {
		return err
	}
	s.invalidateCache(ctx, ownerID)
	return nil
}

// CreateSubtask adds a subtask and returns the parent todo with all its subtasks.
func (s *TodoService) CreateSubtask(ctx context.Context, ownerID, todoID int64, text string, completed bool) (dom.Todo, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return dom.Todo{}, fmt.Errorf("%w: text is required", dom.ErrInvalidInput)
	}
	if _, err := s.subtasks.Create(ctx, ownerID, todoID, text, completed); err != nil {
		return dom.Todo{}, err
	}
	s.invalidateCache(ctx, ownerID)
	return s.todos.GetByID(ctx, ownerID, todoID)
}

func (s *TodoService) UpdateSubtask(ctx context.Context, ownerID, todoID, id int64, patch dom.SubTaskPatch) (dom.SubTask, error) {
	if patch.Text != nil {
		text := strings.TrimSpace(*patch.Text)
		if text == "" {
			return dom.SubTask{}, fmt.Errorf("%w: text must not be empty", dom.ErrInvalidInput)
		}
		patch.Text = &text
	}
	st, err := s.subtasks.Update(ctx, ownerID, todoID, id, patch)
	if err != nil {
		return dom.SubTask{}, err
	}
	s.invalidateCache(ctx, ownerID)
	return st, nil
}

func (s *TodoService) DeleteSubtask(ctx context.Context, ownerID, todoID, id int64) error {
	if err := s.subtasks.Delete(ctx, ownerID, todoID, id); err != nil {
		return err
	}
	s.invalidateCache(ctx, ownerID)
	return nil
}

// AddTag attaches the tag named name, creating it if needed. Adding a tag the
// todo already carries returns the existing tag.
func (s *TodoService) AddTag(ctx context.Context, ownerID, todoID int64, name string) (dom.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return dom.Tag{}, fmt.Errorf("%w: tag name is required", dom.ErrInvalidInput)
	}
	tag, err := s.tags.AddToTodo(ctx, ownerID, todoID, name)
	if err != nil {
		return dom.Tag{}, err
	}
	s.invalidateCache(ctx, ownerID)
	return tag, nil
}

// RemoveTag detaches a tag. Removing a tag that is not attached succeeds.
func (s *TodoService) RemoveTag(ctx context.Context, ownerID, todoID, tagID int64) error {
	if err := s.tags.RemoveFromTodo(ctx, ownerID, todoID, tagID); err != nil {
		return err
	}
	s.invalidateCache(ctx, ownerID)
	return nil
}

// ListByTag lists the owner's todos carrying the tag. The name is trimmed
// like AddTag trims it.
func (s *TodoService) ListByTag(ctx context.Context, ownerID int64, name string) ([]dom.Todo, error) {
	name = strings.TrimSpace(name)
	return s.cached(ctx, ownerID, cache.TagKey(ownerID, name), func(ctx context.Context) ([]dom.Todo, error) {
		return s.todos.ListByTag(ctx, ownerID, name)
	})
}

func (s *TodoService) Search(ctx context.Context, ownerID int64, q string) ([]dom.Todo, error) {
	q = strings.TrimSpace(q)
	return s.cached(ctx, ownerID, cache.SearchKey(ownerID, q), func(ctx context.Context) ([]dom.Todo, error) {
		return s.todos.Search(ctx, ownerID, q)
	})
}

// Overdue lists incomplete todos whose due date has passed, earliest first.
func (s *TodoService) Overdue(ctx context.Context, ownerID int64) ([]dom.Todo, error) {
	return s.cached(ctx, ownerID, cache.OverdueKey(ownerID), func(ctx context.Context) ([]dom.Todo, error) {
		return s.todos.Overdue(ctx, ownerID, s.now().UTC())
	})
}

// cached serves key from Redis, filling it from load on a miss. Concurrent
// misses for the same key and generation share one load, which runs detached
// from the caller's cancellation. A fill is dropped if the owner was
// invalidated while it loaded. Cache failures fall through to load.
func (s *TodoService) cached(ctx context.Context, ownerID int64, key string, load func(context.Context) ([]dom.Todo, error)) ([]dom.Todo, error) {
	if s.cache == nil {
		return load(ctx)
	}
	gen, err := s.cache.Generation(ctx, ownerID)
	if err != nil {
		logging.FromContext(ctx).Warn("cache generation", "owner", ownerID, "err", err)
		return load(ctx)
	}
	v, err, _ := s.sf.Do(fmt.Sprintf("%s@%d", key, gen), func() (interface{}, error) {
		ctx := context.WithoutCancel(ctx)
		list, err := s.cache.Get(ctx, key)
		if err != nil {
			logging.FromContext(ctx).Warn("cache read", "key", key, "err", err)
		} else if list != nil {
			return list, nil
		}
		list, err = load(ctx)
		if err != nil {
			return nil, err
		}
		if _, err := s.cache.Set(ctx, ownerID, gen, key, list); err != nil {
			logging.FromContext(ctx).Warn("cache write", "key", key, "err", err)
		}
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]dom.Todo), nil
}

func (s *TodoService) invalidateCache(ctx context.Context, ownerID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateOwner(ctx, ownerID); err != nil {
		logging.FromContext(ctx).Warn("cache invalidate", "owner", ownerID, "err", err)
	}
}
