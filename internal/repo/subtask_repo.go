package repo

import (
	"context"
	"fmt"
	"time"

	dom "TodoAPI/internal/domain"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

var subtaskColumns = columns("", "id", "todo_id", "text", "completed", "created_at")

// ownedBySubtaskParent restricts subtasks to those whose parent todo belongs to the owner.
const ownedBySubtaskParent = "EXISTS (SELECT 1 FROM todos WHERE todos.id = subtasks.todo_id AND todos.owner_id = ?)"

// SubtaskRepo persists subtasks through their parent todo's ownership.
type SubtaskRepo interface {
	Create(ctx context.Context, ownerID, todoID int64, text string, completed bool) (dom.SubTask, error)
	Update(ctx context.Context, ownerID, todoID, id int64, patch dom.SubTaskPatch) (dom.SubTask, error)
	Delete(ctx context.Context, ownerID, todoID, id int64) error
}

type subtaskRow struct {
	ID        int64     `db:"id"`
	TodoID    int64     `db:"todo_id"`
	Text      string    `db:"text"`
	Completed bool      `db:"completed"`
	CreatedAt time.Time `db:"created_at"`
}

func (r subtaskRow) toDomain() dom.SubTask {
	return dom.SubTask{
		ID:        r.ID,
		TodoID:    r.TodoID,
		Text:      r.Text,
		Completed: r.Completed,
		CreatedAt: r.CreatedAt,
	}
}

type PGSubtaskRepo struct {
	db *sqlx.DB
}

func NewPGSubtaskRepo(db *sqlx.DB) *PGSubtaskRepo {
	return &PGSubtaskRepo{db: db}
}

// Create inserts a subtask only if the parent todo exists and is owned by ownerID.
func (r *PGSubtaskRepo) Create(ctx context.Context, ownerID, todoID int64, text string, completed bool) (dom.SubTask, error) {
	query := `
		INSERT INTO subtasks (todo_id, text, completed)
		SELECT id, $3, $4 FROM todos WHERE id = $1 AND owner_id = $2
		RETURNING ` + subtaskColumns
	var row subtaskRow
	if err := r.db.GetContext(ctx, &row, query, todoID, ownerID, text, completed); err != nil {
		if isNoRows(err) {
			return dom.SubTask{}, dom.ErrNotFound
		}
		return dom.SubTask{}, fmt.Errorf("insert subtask: %w", err)
	}
	return row.toDomain(), nil
}

func (r *PGSubtaskRepo) Update(ctx context.Context, ownerID, todoID, id int64, patch dom.SubTaskPatch) (dom.SubTask, error) {
	var (
		query string
		args  []any
		err   error
	)
	if patch.Empty() {
		query, args, err = psql.Select(subtaskColumns).
			From("subtasks").
			Where(sq.Eq{"id": id, "todo_id": todoID}).
			Where(ownedBySubtaskParent, ownerID).
			ToSql()
	} else {
		b := psql.Update("subtasks")
		if patch.Text != nil {
			b = b.Set("text", *patch.Text)
		}
		if patch.Completed != nil {
			b = b.Set("completed", *patch.Completed)
		}
		query, args, err = b.
			Where(sq.Eq{"id": id, "todo_id": todoID}).
			Where(ownedBySubtaskParent, ownerID).
			Suffix("RETURNING " + subtaskColumns).
			ToSql()
	}
	if err != nil {
		return dom.SubTask{}, fmt.Errorf("build subtask update: %w", err)
	}
	var row subtaskRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNoRows(err) {
			return dom.SubTask{}, dom.ErrNotFound
		}
		return dom.SubTask{}, fmt.Errorf("update subtask: %w", err)
	}
	return row.toDomain(), nil
}

func (r *PGSubtaskRepo) Delete(ctx context.Context, ownerID, todoID, id int64) error {
	query, args, err := psql.Delete("subtasks").
		Where(sq.Eq{"id": id, "todo_id": todoID}).
		Where(ownedBySubtaskParent, ownerID).
		ToSql()
	if err != nil {
		return fmt.Errorf("build subtask delete: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete subtask: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete subtask: %w", err)
	}
	if n == 0 {
		return dom.ErrNotFound
	}
	return nil
}
