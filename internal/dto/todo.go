package dto

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	dom "TodoAPI/internal/domain"
)

const maxDescriptionLen = 1000

var dueDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
}

func parseDueDate(s string) (time.Time, error) {
	for _, layout := range dueDateLayouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("due_date: use date (YYYY-MM-DD) or RFC3339 datetime")
}

// DueDate parses due_date from JSON as either date-only ("2006-01-02") or
// RFC3339. Date-only and zone-less values are taken as UTC. Set records that
// the key was present, so null can be told apart from an omitted field.
type DueDate struct {
	Set   bool
	Value *time.Time
}

func (d *DueDate) UnmarshalJSON(data []byte) error {
	d.Set = true
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("due_date: %w", err)
	}
	if raw == nil || strings.TrimSpace(*raw) == "" {
		d.Value = nil
		return nil
	}
	t, err := parseDueDate(strings.TrimSpace(*raw))
	if err != nil {
		return err
	}
	d.Value = &t
	return nil
}

// NullableString tells an explicit null apart from an omitted field.
type NullableString struct {
	Set   bool
	Value *string
}

func (n *NullableString) UnmarshalJSON(data []byte) error {
	n.Set = true
	return json.Unmarshal(data, &n.Value)
}

type CreateTodoRequest struct {
	Text        string  `json:"text" binding:"required,min=1,max=500"`
	Description *string `json:"description" binding:"omitempty,max=1000"`
	Stage       string  `json:"stage" binding:"omitempty,oneof=todo in_progress done"`
	Category    string  `json:"category" binding:"omitempty,oneof=work personal shopping health other"`
	Priority    string  `json:"priority" binding:"omitempty,oneof=low medium high"`
	DueDate     DueDate `json:"due_date"`
}

func (r CreateTodoRequest) ToNewTodo() dom.NewTodo {
	return dom.NewTodo{
		Text:        r.Text,
		Description: r.Description,
		Stage:       dom.Stage(r.Stage),
		Category:    dom.Category(r.Category),
		Priority:    dom.Priority(r.Priority),
		DueDate:     r.DueDate.Value,
	}
}

// UpdateTodoRequest is a partial update. Omitted fields are unchanged;
// description and due_date may be cleared with an explicit null.
type UpdateTodoRequest struct {
	Text        *string        `json:"text" binding:"omitempty,min=1,max=500"`
	Description NullableString `json:"description"`
	Completed   *bool          `json:"completed"`
	Stage       *string        `json:"stage" binding:"omitempty,oneof=todo in_progress done"`
	Category    *string        `json:"category" binding:"omitempty,oneof=work personal shopping health other"`
	Priority    *string        `json:"priority" binding:"omitempty,oneof=low medium high"`
	DueDate     DueDate        `json:"due_date"`
}

func (r UpdateTodoRequest) ToPatch() (dom.TodoPatch, error) {
	p := dom.TodoPatch{Text: r.Text, Completed: r.Completed}
	if r.Description.Set {
		switch {
		case r.Description.Value == nil:
			p.ClearDescription = true
		case utf8.RuneCountInString(*r.Description.Value) > maxDescriptionLen:
			return dom.TodoPatch{}, fmt.Errorf("description: must be at most %d characters", maxDescriptionLen)
		default:
			p.Description = r.Description.Value
		}
	}
	if r.Stage != nil {
		s := dom.Stage(*r.Stage)
		p.Stage = &s
	}
	if r.Category != nil {
		c := dom.Category(*r.Category)
		p.Category = &c
	}
	if r.Priority != nil {
		pr := dom.Priority(*r.Priority)
		p.Priority = &pr
	}
	if r.DueDate.Set {
		if r.DueDate.Value == nil {
			p.ClearDueDate = true
		} else {
			p.DueDate = r.DueDate.Value
		}
	}
	return p, nil
}

type CreateSubtaskRequest struct {
	Text      string `json:"text" binding:"required,min=1,max=500"`
	Completed bool   `json:"completed"`
}

type UpdateSubtaskRequest struct {
	Text      *string `json:"text" binding:"omitempty,min=1,max=500"`
	Completed *bool   `json:"completed"`
}

func (r UpdateSubtaskRequest) ToPatch() dom.SubTaskPatch {
	return dom.SubTaskPatch{Text: r.Text, Completed: r.Completed}
}

type TagRequest struct {
	Name string `json:"name" binding:"required,min=1,max=50"`
}

// ListTodosQuery binds GET /todos paging parameters.
type ListTodosQuery struct {
	Skip  int `form:"skip,default=0" binding:"min=0"`
	Limit int `form:"limit,default=100" binding:"min=1"`
}

type SubTaskResponse struct {
	ID        int64     `json:"id"`
	TodoID    int64     `json:"todo_id"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
}

type TagResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type TodoResponse struct {
	ID          int64             `json:"id"`
	UserID      int64             `json:"user_id"`
	Text        string            `json:"text"`
	Description *string           `json:"description"`
	Completed   bool              `json:"completed"`
	Stage       string            `json:"stage"`
	Category    string            `json:"category"`
	Priority    string            `json:"priority"`
	DueDate     *time.Time        `json:"due_date"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Subtasks    []SubTaskResponse `json:"subtasks"`
	Tags        []TagResponse     `json:"tags"`
}

func NewSubTaskResponse(s dom.SubTask) SubTaskResponse {
	return SubTaskResponse{
		ID:        s.ID,
		TodoID:    s.TodoID,
		Text:      s.Text,
		Completed: s.Completed,
		CreatedAt: s.CreatedAt,
	}
}

func NewTagResponse(t dom.Tag) TagResponse {
	return TagResponse{ID: t.ID, Name: t.Name, CreatedAt: t.CreatedAt}
}

func NewTodoResponse(t dom.Todo) TodoResponse {
	out := TodoResponse{
		ID:          t.ID,
		UserID:      t.OwnerID,
		Text:        t.Text,
		Description: t.Description,
		Completed:   t.Completed,
		Stage:       string(t.Stage),
		Category:    string(t.Category),
		Priority:    string(t.Priority),
		DueDate:     t.DueDate,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		Subtasks:    make([]SubTaskResponse, len(t.Subtasks)),
		Tags:        make([]TagResponse, len(t.Tags)),
	}
	for i, s := range t.Subtasks {
		out.Subtasks[i] = NewSubTaskResponse(s)
	}
	for i, tag := range t.Tags {
		out.Tags[i] = NewTagResponse(tag)
	}
	return out
}

// NewTodoResponses maps a list; the result is never nil so it encodes as [].
func NewTodoResponses(list []dom.Todo) []TodoResponse {
	out := make([]TodoResponse, len(list))
	for i := range list {
		out[i] = NewTodoResponse(list[i])
	}
	return out
}
