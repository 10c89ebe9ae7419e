package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnumsValid(t *testing.T) {
	for _, s := range []Stage{StageTodo, StageInProgress, StageDone} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, Stage("archived").Valid())
	assert.False(t, Stage("").Valid())

	for _, c := range []Category{CategoryWork, CategoryPersonal, CategoryShopping, CategoryHealth, CategoryOther} {
		assert.True(t, c.Valid(), c)
	}
	assert.False(t, Category("Work").Valid(), "enums are lower-case")

	for _, p := range []Priority{PriorityLow, PriorityMedium, PriorityHigh} {
		assert.True(t, p.Valid(), p)
	}
	assert.False(t, Priority("urgent").Valid())
}

func TestNewTodoWithDefaults(t *testing.T) {
	n := NewTodo{Text: "x"}.WithDefaults()
	assert.Equal(t, StageTodo, n.Stage)
	assert.Equal(t, CategoryOther, n.Category)
	assert.Equal(t, PriorityMedium, n.Priority)

	n = NewTodo{Text: "x", Stage: StageDone, Category: CategoryWork, Priority: PriorityLow}.WithDefaults()
	assert.Equal(t, StageDone, n.Stage)
	assert.Equal(t, CategoryWork, n.Category)
	assert.Equal(t, PriorityLow, n.Priority)
}

func TestTodoPatchApply(t *testing.T) {
	desc := "old"
	due := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	base := Todo{Text: "t", Description: &desc, Stage: StageTodo, Priority: PriorityLow, DueDate: &due}

	t.Run("empty", func(t *testing.T) {
		assert.True(t, TodoPatch{}.Empty())
		got := base
		TodoPatch{}.Apply(&got)
		assert.Equal(t, base, got)
	})

	t.Run("only present fields", func(t *testing.T) {
		done := true
		stage := StageDone
		p := TodoPatch{Completed: &done, Stage: &stage}
		assert.False(t, p.Empty())

		got := base
		p.Apply(&got)
		assert.True(t, got.Completed)
		assert.Equal(t, StageDone, got.Stage)
		assert.Equal(t, "t", got.Text)
		assert.Equal(t, PriorityLow, got.Priority)
		assert.Equal(t, "old", *got.Description)
	})

	t.Run("clear", func(t *testing.T) {
		p := TodoPatch{ClearDescription: true, ClearDueDate: true}
		assert.False(t, p.Empty())
		got := base
		p.Apply(&got)
		assert.Nil(t, got.Description)
		assert.Nil(t, got.DueDate)
	})

	t.Run("copies values", func(t *testing.T) {
		newDesc := "new"
		got := base
		TodoPatch{Description: &newDesc}.Apply(&got)
		newDesc = "mutated"
		assert.Equal(t, "new", *got.Description)
	})
}

func TestPatchEmpty(t *testing.T) {
	name := "bob"
	assert.True(t, UserPatch{}.Empty())
	assert.False(t, UserPatch{Username: &name}.Empty())

	done := false
	assert.True(t, SubTaskPatch{}.Empty())
	assert.False(t, SubTaskPatch{Completed: &done}.Empty())
}

func TestValidate(t *testing.T) {
	assert.NoError(t, NewTodo{Text: "x"}.WithDefaults().Validate())
	assert.True(t, errors.Is(NewTodo{Text: " "}.WithDefaults().Validate(), ErrInvalidInput))
	assert.True(t, errors.Is(NewTodo{Text: "x"}.Validate(), ErrInvalidInput), "unset enums are invalid")

	assert.NoError(t, TodoPatch{}.Validate())
	c := Category("garden")
	assert.EqualError(t, TodoPatch{Category: &c}.Validate(), `invalid input: category "garden"`)
}
