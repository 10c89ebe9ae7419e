// Package repotest provides an in-memory implementation of the repo
// interfaces with the same ownership and uniqueness rules as the Postgres schema.
package repotest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	dom "TodoAPI/internal/domain"
	"TodoAPI/internal/repo"
)

type link struct{ todoID, tagID int64 }

// Store holds every table. Use its accessor methods to get per-interface views.
type Store struct {
	mu       sync.Mutex
	now      func() time.Time
	seq      int64
	users    map[int64]dom.User
	todos    map[int64]dom.Todo
	subtasks map[int64]dom.SubTask
	tags     map[int64]dom.Tag
	links    map[link]struct{}

	// Err, when set, is returned by every call.
	Err error
}

func New() *Store {
	return &Store{
		now:      time.Now,
		users:    map[int64]dom.User{},
		todos:    map[int64]dom.Todo{},
		subtasks: map[int64]dom.SubTask{},
		tags:     map[int64]dom.Tag{},
		links:    map[link]struct{}{},
	}
}

func (s *Store) Users() repo.UserRepo       { return userRepo{s} }
func (s *Store) Todos() repo.TodoRepo       { return todoRepo{s} }
func (s *Store) Subtasks() repo.SubtaskRepo { return subtaskRepo{s} }
func (s *Store) Tags() repo.TagRepo         { return tagRepo{s} }

// LinkCount returns the number of todo_tags rows for todoID.
func (s *Store) LinkCount(todoID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for l := range s.links {
		if l.todoID == todoID {
			n++
		}
	}
	return n
}

// SubtaskCount returns the number of subtasks stored for todoID.
func (s *Store) SubtaskCount(todoID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, st := range s.subtasks {
		if st.TodoID == todoID {
			n++
		}
	}
	return n
}

// TagByName returns the stored tag with the exact name.
func (s *Store) TagByName(name string) (dom.Tag, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tags {
		if t.Name == name {
			return t, true
		}
	}
	return dom.Tag{}, false
}

func (s *Store) nextID() int64 {
	s.seq++
	return s.seq
}

// --- users

type userRepo struct{ s *Store }

func (r userRepo) GetByID(_ context.Context, id int64) (dom.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return dom.User{}, r.s.Err
	}
	u, ok := r.s.users[id]
	if !ok {
		return dom.User{}, dom.ErrNotFound
	}
	return u, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (dom.User, error) {
	return r.find(func(u dom.User) bool { return u.Email == email })
}

func (r userRepo) GetByUsername(_ context.Context, username string) (dom.User, error) {
	return r.find(func(u dom.User) bool { return u.Username == username })
}

func (r userRepo) find(match func(dom.User) bool) (dom.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return dom.User{}, r.s.Err
	}
	for _, u := range r.s.users {
		if match(u) {
			return u, nil
		}
	}
	return dom.User{}, dom.ErrNotFound
}

func (r userRepo) Create(_ context.Context, email, username, passwordHash string) (dom.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return dom.User{}, r.s.Err
	}
	if err := r.s.checkUnique(0, email, username); err != nil {
		return dom.User{}, err
	}
	now := r.s.now()
	u := dom.User{
		ID:             r.s.nextID(),
		Email:          email,
		Username:       username,
		HashedPassword: passwordHash,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.s.users[u.ID] = u
	return u, nil
}

func (r userRepo) Update(_ context.Context, id int64, fields repo.UserFields) (dom.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return dom.User{}, r.s.Err
	}
	u, ok := r.s.users[id]
	if !ok {
		return dom.User{}, dom.ErrNotFound
	}
	if fields.Email != nil {
		u.Email = *fields.Email
	}
	if fields.Username != nil {
		u.Username = *fields.Username
	}
	if fields.PasswordHash != nil {
		u.HashedPassword = *fields.PasswordHash
	}
	if err := r.s.checkUnique(id, u.Email, u.Username); err != nil {
		return dom.User{}, err
	}
	u.UpdatedAt = r.s.now()
	r.s.users[id] = u
	return u, nil
}

func (s *Store) checkUnique(selfID int64, email, username string) error {
	for _, other := range s.users {
		if other.ID == selfID {
			continue
		}
		if other.Email == email {
			return dom.ErrDuplicateEmail
		}
		if other.Username == username {
			return dom.ErrDuplicateUsername
		}
	}
	return nil
}

// --- todos

type todoRepo struct{ s *Store }

func (r todoRepo) Create(_ context.Context, ownerID int64, t dom.NewTodo) (dom.Todo, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return dom.Todo{}, r.s.Err
	}
	t = t.WithDefaults()
	now := r.s.now()
	todo := dom.Todo{
		ID:          r.s.nextID(),
		OwnerID:     ownerID,
		Text:        t.Text,
		Description: t.Description,
		Stage:       t.Stage,
		Category:    t.Category,
		Priority:    t.Priority,
		DueDate:     t.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.s.todos[todo.ID] = todo
	return r.s.hydrate(todo), nil
}

func (r todoRepo) GetByID(_ context.Context, ownerID, id int64) (dom.Todo, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return dom.Todo{}, r.s.Err
	}
	t, ok := r.s.owned(ownerID, id)
	if !ok {
		return dom.Todo{}, dom.ErrNotFound
	}
	return r.s.hydrate(t), nil
}

func (r todoRepo) List(_ context.Context, ownerID int64, skip, limit int) ([]dom.Todo, error) {
	all, err := r.filter(ownerID, func(dom.Todo) bool { return true })
	if err != nil {
		return nil, err
	}
	if skip >= len(all) {
		return []dom.Todo{}, nil
	}
	end := skip + limit
	if end > len(all) {
		end = len(all)
	}
	return all[skip:end], nil
}

func (r todoRepo) Update(_ context.Context, ownerID, id int64, patch dom.TodoPatch) (dom.Todo, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return dom.Todo{}, r.s.Err
	}
	t, ok := r.s.owned(ownerID, id)
	if !ok {
		return dom.Todo{}, dom.ErrNotFound
	}
	patch.Apply(&t)
	t.UpdatedAt = r.s.now()
	r.s.todos[id] = t
	return r.s.hydrate(t), nil
}

func (r todoRepo) Delete(_ context.Context, ownerID, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	if _, ok := r.s.owned(ownerID, id); !ok {
		return dom.ErrNotFound
	}
	delete(r.s.todos, id)
	for sid, st := range r.s.subtasks {
		if st.TodoID == id {
			delete(r.s.subtasks, sid)
		}
	}
	for l := range r.s.links {
		if l.todoID == id {
			delete(r.s.links, l)
		}
	}
	return nil
}

func (r todoRepo) Search(_ context.Context, ownerID int64, q string) ([]dom.Todo, error) {
	q = strings.ToLower(q)
	return r.filter(ownerID, func(t dom.Todo) bool {
		if strings.Contains(strings.ToLower(t.Text), q) {
			return true
		}
		return t.Description != nil && strings.Contains(strings.ToLower(*t.Description), q)
	})
}

func (r todoRepo) Overdue(_ context.Context, ownerID int64, now time.Time) ([]dom.Todo, error) {
	list, err := r.filter(ownerID, func(t dom.Todo) bool {
		return !t.Completed && t.DueDate != nil && t.DueDate.Before(now)
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].DueDate.Before(*list[j].DueDate) })
	return list, nil
}

func (r todoRepo) ListByTag(_ context.Context, ownerID int64, tagName string) ([]dom.Todo, error) {
	tag, ok := r.s.TagByName(tagName)
	if !ok {
		return r.filter(ownerID, func(dom.Todo) bool { return false })
	}
	r.s.mu.Lock()
	tagged := map[int64]bool{}
	for l := range r.s.links {
		if l.tagID == tag.ID {
			tagged[l.todoID] = true
		}
	}
	r.s.mu.Unlock()
	return r.filter(ownerID, func(t dom.Todo) bool { return tagged[t.ID] })
}

func (r todoRepo) filter(ownerID int64, keep func(dom.Todo) bool) ([]dom.Todo, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	out := []dom.Todo{}
	for _, t := range r.s.todos {
		if t.OwnerID == ownerID && keep(t) {
			out = append(out, r.s.hydrate(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) owned(ownerID, id int64) (dom.Todo, bool) {
	t, ok := s.todos[id]
	if !ok || t.OwnerID != ownerID {
		return dom.Todo{}, false
	}
	return t, true
}

// hydrate attaches subtasks (by id) and tags (by name). Caller holds mu.
func (s *Store) hydrate(t dom.Todo) dom.Todo {
	t.Subtasks = []dom.SubTask{}
	for _, st := range s.subtasks {
		if st.TodoID == t.ID {
			t.Subtasks = append(t.Subtasks, st)
		}
	}
	sort.Slice(t.Subtasks, func(i, j int) bool { return t.Subtasks[i].ID < t.Subtasks[j].ID })
	t.Tags = []dom.Tag{}
	for l := range s.links {
		if l.todoID == t.ID {
			t.Tags = append(t.Tags, s.tags[l.tagID])
		}
	}
	sort.Slice(t.Tags, func(i, j int) bool { return t.Tags[i].Name < t.Tags[j].Name })
	return t
}

// --- subtasks

type subtaskRepo struct{ s *Store }

func (r subtaskRepo) Create(_ context.Context, ownerID, todoID int64, text string, completed bool) (dom.SubTask, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return dom.SubTask{}, r.s.Err
	}
	if _, ok := r.s.owned(ownerID, todoID); !ok {
		return dom.SubTask{}, dom.ErrNotFound
	}
	st := dom.SubTask{ID: r.s.nextID(), TodoID: todoID, Text: text, Completed: completed, CreatedAt: r.s.now()}
	r.s.subtasks[st.ID] = st
	return st, nil
}

func (r subtaskRepo) Update(_ context.Context, ownerID, todoID, id int64, patch dom.SubTaskPatch) (dom.SubTask, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return dom.SubTask{}, r.s.Err
	}
	st, ok := r.s.ownedSubtask(ownerID, todoID, id)
	if !ok {
		return dom.SubTask{}, dom.ErrNotFound
	}
	if patch.Text != nil {
		st.Text = *patch.Text
	}
	if patch.Completed != nil {
		st.Completed = *patch.Completed
	}
	r.s.subtasks[id] = st
	return st, nil
}

func (r subtaskRepo) Delete(_ context.Context, ownerID, todoID, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	if _, ok := r.s.ownedSubtask(ownerID, todoID, id); !ok {
		return dom.ErrNotFound
	}
	delete(r.s.subtasks, id)
	return nil
}

func (s *Store) ownedSubtask(ownerID, todoID, id int64) (dom.SubTask, bool) {
	st, ok := s.subtasks[id]
	if !ok || st.TodoID != todoID {
		return dom.SubTask{}, false
	}
	if _, ok := s.owned(ownerID, todoID); !ok {
		return dom.SubTask{}, false
	}
	return st, true
}

// --- tags

type tagRepo struct{ s *Store }

func (r tagRepo) AddToTodo(_ context.Context, ownerID, todoID int64, name string) (dom.Tag, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return dom.Tag{}, r.s.Err
	}
	if _, ok := r.s.owned(ownerID, todoID); !ok {
		return dom.Tag{}, dom.ErrNotFound
	}
	var tag dom.Tag
	found := false
	for _, t := range r.s.tags {
		if t.Name == name {
			tag, found = t, true
			break
		}
	}
	if !found {
		tag = dom.Tag{ID: r.s.nextID(), Name: name, CreatedAt: r.s.now()}
		r.s.tags[tag.ID] = tag
	}
	r.s.links[link{todoID: todoID, tagID: tag.ID}] = struct{}{}
	return tag, nil
}

func (r tagRepo) RemoveFromTodo(_ context.Context, ownerID, todoID, tagID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	if _, ok := r.s.owned(ownerID, todoID); !ok {
		return dom.ErrNotFound
	}
	delete(r.s.links, link{todoID: todoID, tagID: tagID})
	return nil
}
