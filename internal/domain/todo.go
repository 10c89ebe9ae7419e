package domain

import (
	"fmt"
	"strings"
	"time"
)

// Stage is a free label: any stage may move to any other, and it is not tied to Completed.
type Stage string

const (
	StageTodo       Stage = "todo"
	StageInProgress Stage = "in_progress"
	StageDone       Stage = "done"
)

func (s Stage) Valid() bool {
	switch s {
	case StageTodo, StageInProgress, StageDone:
		return true
	}
	return false
}

type Category string

const (
	CategoryWork     Category = "work"
	CategoryPersonal Category = "personal"
	CategoryShopping Category = "shopping"
	CategoryHealth   Category = "health"
	CategoryOther    Category = "other"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryWork, CategoryPersonal, CategoryShopping, CategoryHealth, CategoryOther:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Domain entity: the source of truth for a to-do item.
// Does not depend on Gin, Postgres or Redis.
type Todo struct {
	ID          int64
	OwnerID     int64
	Text        string
	Description *string
	Completed   bool
	Stage       Stage
	Category    Category
	Priority    Priority
	DueDate     *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	Subtasks []SubTask
	Tags     []Tag
}

// SubTask belongs to exactly one Todo and is deleted with it.
type SubTask struct {
	ID        int64
	TodoID    int64
	Text      string
	Completed bool
	CreatedAt time.Time
}

// Tag is shared by every user; names are globally unique and case-sensitive.
type Tag struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// NewTodo holds the caller-supplied fields of a todo being created.
type NewTodo struct {
	Text        string
	Description *string
	Stage       Stage
	Category    Category
	Priority    Priority
	DueDate     *time.Time
}

// WithDefaults fills unset enums with stage=todo, category=other, priority=medium.
func (n NewTodo) WithDefaults() NewTodo {
	if n.Stage == "" {
		n.Stage = StageTodo
	}
	if n.Category == "" {
		n.Category = CategoryOther
	}
	if n.Priority == "" {
		n.Priority = PriorityMedium
	}
	return n
}

// Validate checks the text and the enum fields. Call after WithDefaults.
func (n NewTodo) Validate() error {
	if strings.TrimSpace(n.Text) == "" {
		return fmt.Errorf("%w: text is required", ErrInvalidInput)
	}
	return validateEnums(&n.Stage, &n.Category, &n.Priority)
}

func validateEnums(s *Stage, c *Category, p *Priority) error {
	if s != nil && !s.Valid() {
		return fmt.Errorf("%w: stage %q", ErrInvalidInput, *s)
	}
	if c != nil && !c.Valid() {
		return fmt.Errorf("%w: category %q", ErrInvalidInput, *c)
	}
	if p != nil && !p.Valid() {
		return fmt.Errorf("%w: priority %q", ErrInvalidInput, *p)
	}
	return nil
}

// TodoPatch carries a partial todo update. Nil fields are left untouched;
// the Clear flags set the nullable columns back to NULL.
type TodoPatch struct {
	Text             *string
	Description      *string
	ClearDescription bool
	Completed        *bool
	Stage            *Stage
	Category         *Category
	Priority         *Priority
	DueDate          *time.Time
	ClearDueDate     bool
}

// Empty reports whether the patch changes nothing.
func (p TodoPatch) Empty() bool {
	return p.Text == nil && p.Description == nil && !p.ClearDescription &&
		p.Completed == nil && p.Stage == nil && p.Category == nil &&
		p.Priority == nil && p.DueDate == nil && !p.ClearDueDate
}

func (p TodoPatch) Validate() error {
	if p.Text != nil && strings.TrimSpace(*p.Text) == "" {
		return fmt.Errorf("%w: text must not be empty", ErrInvalidInput)
	}
	return validateEnums(p.Stage, p.Category, p.Priority)
}

// Apply copies the present fields onto t. It does not touch UpdatedAt.
func (p TodoPatch) Apply(t *Todo) {
	if p.Text != nil {
		t.Text = *p.Text
	}
	if p.ClearDescription {
		t.Description = nil
	} else if p.Description != nil {
		d := *p.Description
		t.Description = &d
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	if p.Stage != nil {
		t.Stage = *p.Stage
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.ClearDueDate {
		t.DueDate = nil
	} else if p.DueDate != nil {
		d := *p.DueDate
		t.DueDate = &d
	}
}

// SubTaskPatch carries a partial subtask update.
type SubTaskPatch struct {
	Text      *string
	Completed *bool
}

func (p SubTaskPatch) Empty() bool {
	return p.Text == nil && p.Completed == nil
}
