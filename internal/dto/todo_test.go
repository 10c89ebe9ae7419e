package dto

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	dom "TodoAPI/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDueDateUnmarshal(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{`"2026-02-19"`, time.Date(2026, 2, 19, 0, 0, 0, 0, time.UTC)},
		{`"2026-02-19T10:30:00Z"`, time.Date(2026, 2, 19, 10, 30, 0, 0, time.UTC)},
		{`"2026-02-19T10:30:00+02:00"`, time.Date(2026, 2, 19, 8, 30, 0, 0, time.UTC)},
		{`"2026-02-19T10:30:00"`, time.Date(2026, 2, 19, 10, 30, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		var d DueDate
		require.NoError(t, json.Unmarshal([]byte(tc.in), &d), tc.in)
		assert.True(t, d.Set)
		require.NotNil(t, d.Value, tc.in)
		assert.True(t, tc.want.Equal(*d.Value), tc.in)
	}

	var d DueDate
	require.NoError(t, json.Unmarshal([]byte(`""`), &d))
	assert.True(t, d.Set)
	assert.Nil(t, d.Value)

	assert.Error(t, json.Unmarshal([]byte(`"19/02/2026"`), &d))
	assert.Error(t, json.Unmarshal([]byte(`42`), &d))
}

func TestUpdateTodoRequestToPatch(t *testing.T) {
	t.Run("omitted fields stay nil", func(t *testing.T) {
		var req UpdateTodoRequest
		require.NoError(t, json.Unmarshal([]byte(`{"completed":true}`), &req))
		p, err := req.ToPatch()
		require.NoError(t, err)
		assert.True(t, *p.Completed)
		assert.Nil(t, p.Text)
		assert.Nil(t, p.Description)
		assert.False(t, p.ClearDescription)
		assert.Nil(t, p.DueDate)
		assert.False(t, p.ClearDueDate)
	})

	t.Run("explicit null clears", func(t *testing.T) {
		var req UpdateTodoRequest
		require.NoError(t, json.Unmarshal([]byte(`{"description":null,"due_date":null}`), &req))
		p, err := req.ToPatch()
		require.NoError(t, err)
		assert.True(t, p.ClearDescription)
		assert.True(t, p.ClearDueDate)
	})

	t.Run("values", func(t *testing.T) {
		var req UpdateTodoRequest
		body := `{"text":"t","description":"d","stage":"in_progress","category":"work","priority":"high","due_date":"2026-01-01"}`
		require.NoError(t, json.Unmarshal([]byte(body), &req))
		p, err := req.ToPatch()
		require.NoError(t, err)
		assert.Equal(t, "t", *p.Text)
		assert.Equal(t, "d", *p.Description)
		assert.Equal(t, dom.StageInProgress, *p.Stage)
		assert.Equal(t, dom.CategoryWork, *p.Category)
		assert.Equal(t, dom.PriorityHigh, *p.Priority)
		assert.Equal(t, 2026, p.DueDate.Year())
	})

	t.Run("long description", func(t *testing.T) {
		long := strings.Repeat("x", maxDescriptionLen+1)
		req := UpdateTodoRequest{Description: NullableString{Set: true, Value: &long}}
		_, err := req.ToPatch()
		assert.Error(t, err)
	})
}

func TestNewTodoResponse(t *testing.T) {
	resp := NewTodoResponse(dom.Todo{ID: 3, OwnerID: 9, Text: "x", Stage: dom.StageTodo})
	assert.Equal(t, int64(9), resp.UserID)
	assert.NotNil(t, resp.Subtasks)
	assert.NotNil(t, resp.Tags)

	b, err := json.Marshal(NewTodoResponses(nil))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(b))
}
