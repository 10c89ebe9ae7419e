package repo

import (
	"context"
	"fmt"
	"time"

	dom "TodoAPI/internal/domain"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

var todoFields = []string{
	"id", "owner_id", "text", "description", "completed", "stage",
	"category", "priority", "due_date", "created_at", "updated_at",
}

var todoColumns = columns("", todoFields...)

// TodoRepo persists todos. Every method is scoped to ownerID; a todo owned by
// someone else is reported as dom.ErrNotFound.
type TodoRepo interface {
	Create(ctx context.Context, ownerID int64, t dom.NewTodo) (dom.Todo, error)
	GetByID(ctx context.Context, ownerID, id int64) (dom.Todo, error)
	List(ctx context.Context, ownerID int64, skip, limit int) ([]dom.Todo, error)
	Update(ctx context.Context, ownerID, id int64, patch dom.TodoPatch) (dom.Todo, error)
	Delete(ctx context.Context, ownerID, id int64) error
	Search(ctx context.Context, ownerID int64, q string) ([]dom.Todo, error)
	Overdue(ctx context.Context, ownerID int64, now time.Time) ([]dom.Todo, error)
	ListByTag(ctx context.Context, ownerID int64, tagName string) ([]dom.Todo, error)
}

type todoRow struct {
	ID          int64      `db:"id"`
	OwnerID     int64      `db:"owner_id"`
	Text        string     `db:"text"`
	Description *string    `db:"description"`
	Completed   bool       `db:"completed"`
	Stage       string     `db:"stage"`
	Category    string     `db:"category"`
	Priority    string     `db:"priority"`
	DueDate     *time.Time `db:"due_date"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

func (r todoRow) toDomain() dom.Todo {
	return dom.Todo{
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		Text:        r.Text,
		Description: r.Description,
		Completed:   r.Completed,
		Stage:       dom.Stage(r.Stage),
		Category:    dom.Category(r.Category),
		Priority:    dom.Priority(r.Priority),
		DueDate:     r.DueDate,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

type PGTodoRepo struct {
	db *sqlx.DB
}

func NewPGTodoRepo(db *sqlx.DB) *PGTodoRepo {
	return &PGTodoRepo{db: db}
}

func (r *PGTodoRepo) Create(ctx context.Context, ownerID int64, t dom.NewTodo) (dom.Todo, error) {
	t = t.WithDefaults()
	query := `
		INSERT INTO todos (owner_id, text, description, stage, category, priority, due_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + todoColumns
	var row todoRow
	err := r.db.GetContext(ctx, &row, query,
		ownerID, t.Text, t.Description, string(t.Stage), string(t.Category), string(t.Priority), t.DueDate,
	)
	if err != nil {
		return dom.Todo{}, fmt.Errorf("insert todo: %w", err)
	}
	out := row.toDomain()
	out.Subtasks = []dom.SubTask{}
	out.Tags = []dom.Tag{}
	return out, nil
}

func (r *PGTodoRepo) GetByID(ctx context.Context, ownerID, id int64) (dom.Todo, error) {
	query := `SELECT ` + todoColumns + ` FROM todos WHERE id = $1 AND owner_id = $2`
	var row todoRow
	if err := r.db.GetContext(ctx, &row, query, id, ownerID); err != nil {
		if isNoRows(err) {
			return dom.Todo{}, dom.ErrNotFound
		}
		return dom.Todo{}, fmt.Errorf("get todo: %w", err)
	}
	list, err := r.withRelations(ctx, []todoRow{row})
	if err != nil {
		return dom.Todo{}, err
	}
	return list[0], nil
}

func (r *PGTodoRepo) List(ctx context.Context, ownerID int64, skip, limit int) ([]dom.Todo, error) {
	query := `SELECT ` + todoColumns + ` FROM todos WHERE owner_id = $1 ORDER BY id LIMIT $2 OFFSET $3`
	return r.selectTodos(ctx, "list todos", query, ownerID, limit, skip)
}

// Update applies the present fields of patch and bumps updated_at.
func (r *PGTodoRepo) Update(ctx context.Context, ownerID, id int64, patch dom.TodoPatch) (dom.Todo, error) {
	b := psql.Update("todos").Set("updated_at", sq.Expr("NOW()"))
	if patch.Text != nil {
		b = b.Set("text", *patch.Text)
	}
	if patch.ClearDescription {
		b = b.Set("description", nil)
	} else if patch.Description != nil {
		b = b.Set("description", *patch.Description)
	}
	if patch.Completed != nil {
		b = b.Set("completed", *patch.Completed)
	}
	if patch.Stage != nil {
		b = b.Set("stage", string(*patch.Stage))
	}
	if patch.Category != nil {
		b = b.Set("category", string(*patch.Category))
	}
	if patch.Priority != nil {
		b = b.Set("priority", string(*patch.Priority))
	}
	if patch.ClearDueDate {
		b = b.Set("due_date", nil)
	} else if patch.DueDate != nil {
		b = b.Set("due_date", *patch.DueDate)
	}
	query, args, err := b.
		Where(sq.Eq{"id": id, "owner_id": ownerID}).
		Suffix("RETURNING " + todoColumns).
		ToSql()
	if err != nil {
		return dom.Todo{}, fmt.Errorf("build todo update: %w", err)
	}
	var row todoRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNoRows(err) {
			return dom.Todo{}, dom.ErrNotFound
		}
		return dom.Todo{}, fmt.Errorf("update todo: %w", err)
	}
	list, err := r.withRelations(ctx, []todoRow{row})
	if err != nil {
		return dom.Todo{}, err
	}
	return list[0], nil
}

// Delete removes the todo. Subtasks and tag associations go with it through
// ON DELETE CASCADE; tags themselves stay.
func (r *PGTodoRepo) Delete(ctx context.Context, ownerID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM todos WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	if n == 0 {
		return dom.ErrNotFound
	}
	return nil
}

func (r *PGTodoRepo) Search(ctx context.Context, ownerID int64, q string) ([]dom.Todo, error) {
	pattern := "%" + escapeLike(q) + "%"
	query := `
		SELECT ` + todoColumns + `
		FROM todos WHERE owner_id = $1 AND (text ILIKE $2 OR description ILIKE $2)
		ORDER BY id`
	return r.selectTodos(ctx, "search todos", query, ownerID, pattern)
}

func (r *PGTodoRepo) Overdue(ctx context.Context, ownerID int64, now time.Time) ([]dom.Todo, error) {
	query := `
		SELECT ` + todoColumns + `
		FROM todos WHERE owner_id = $1 AND completed = FALSE AND due_date IS NOT NULL AND due_date < $2
		ORDER BY due_date ASC, id`
	return r.selectTodos(ctx, "overdue todos", query, ownerID, now)
}

func (r *PGTodoRepo) ListByTag(ctx context.Context, ownerID int64, tagName string) ([]dom.Todo, error) {
	query := `
		SELECT ` + columns("t", todoFields...) + `
		FROM todos t
		JOIN todo_tags tt ON tt.todo_id = t.id
		JOIN tags g ON g.id = tt.tag_id
		WHERE t.owner_id = $1 AND g.name = $2
		ORDER BY t.id`
	return r.selectTodos(ctx, "list todos by tag", query, ownerID, tagName)
}

func (r *PGTodoRepo) selectTodos(ctx context.Context, op, query string, args ...any) ([]dom.Todo, error) {
	var rows []todoRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return r.withRelations(ctx, rows)
}

// withRelations converts rows and loads their subtasks (by id) and tags (by name).
func (r *PGTodoRepo) withRelations(ctx context.Context, rows []todoRow) ([]dom.Todo, error) {
	out := make([]dom.Todo, len(rows))
	if len(rows) == 0 {
		return out, nil
	}
	ids := make([]int64, len(rows))
	index := make(map[int64]int, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
		out[i].Subtasks = []dom.SubTask{}
		out[i].Tags = []dom.Tag{}
		ids[i] = row.ID
		index[row.ID] = i
	}

	query, args, err := psql.Select(subtaskColumns).
		From("subtasks").
		Where(sq.Eq{"todo_id": ids}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build subtask query: %w", err)
	}
	var subtasks []subtaskRow
	if err := r.db.SelectContext(ctx, &subtasks, query, args...); err != nil {
		return nil, fmt.Errorf("load subtasks: %w", err)
	}
	for _, s := range subtasks {
		if i, ok := index[s.TodoID]; ok {
			out[i].Subtasks = append(out[i].Subtasks, s.toDomain())
		}
	}

	query, args, err = psql.Select("tt.todo_id", "g.id", "g.name", "g.created_at").
		From("todo_tags tt").
		Join("tags g ON g.id = tt.tag_id").
		Where(sq.Eq{"tt.todo_id": ids}).
		OrderBy("g.name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build tag query: %w", err)
	}
	var tags []todoTagRow
	if err := r.db.SelectContext(ctx, &tags, query, args...); err != nil {
		return nil, fmt.Errorf("load tags: %w", err)
	}
	for _, t := range tags {
		if i, ok := index[t.TodoID]; ok {
			out[i].Tags = append(out[i].Tags, t.tagRow.toDomain())
		}
	}
	return out, nil
}
