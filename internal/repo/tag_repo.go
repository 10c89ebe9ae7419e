package repo

import (
	"context"
	"fmt"
	"time"

	dom "TodoAPI/internal/domain"

	"github.com/jmoiron/sqlx"
)

// TagRepo manages the global tag set and the todo_tags association.
type TagRepo interface {
	AddToTodo(ctx context.Context, ownerID, todoID int64, name string) (dom.Tag, error)
	RemoveFromTodo(ctx context.Context, ownerID, todoID, tagID int64) error
}

type tagRow struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
}

func (r tagRow) toDomain() dom.Tag {
	return dom.Tag{ID: r.ID, Name: r.Name, CreatedAt: r.CreatedAt}
}

type todoTagRow struct {
	TodoID int64 `db:"todo_id"`
	tagRow
}

type PGTagRepo struct {
	db *sqlx.DB
}

func NewPGTagRepo(db *sqlx.DB) *PGTagRepo {
	return &PGTagRepo{db: db}
}

// AddToTodo gets or creates the tag by exact name and links it to the owned
// todo. The tag name constraint and the (todo_id, tag_id) key make it safe
// under concurrent callers; linking twice is a no-op.
func (r *PGTagRepo) AddToTodo(ctx context.Context, ownerID, todoID int64, name string) (dom.Tag, error) {
	var tag tagRow
	err := inTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := lockOwnedTodo(ctx, tx, ownerID, todoID); err != nil {
			return err
		}
		// DO UPDATE (not DO NOTHING) so RETURNING yields the row a concurrent insert committed.
		err := tx.GetContext(ctx, &tag, `
			INSERT INTO tags (name) VALUES ($1)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id, name, created_at`, name)
		if err != nil {
			return fmt.Errorf("get or create tag: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO todo_tags (todo_id, tag_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING`, todoID, tag.ID)
		if err != nil {
			return fmt.Errorf("link tag: %w", err)
		}
		return nil
	})
	if err != nil {
		return dom.Tag{}, err
	}
	return tag.toDomain(), nil
}

// RemoveFromTodo unlinks the tag. A missing link on an owned todo is not an error.
func (r *PGTagRepo) RemoveFromTodo(ctx context.Context, ownerID, todoID, tagID int64) error {
	return inTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := lockOwnedTodo(ctx, tx, ownerID, todoID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM todo_tags WHERE todo_id = $1 AND tag_id = $2`, todoID, tagID); err != nil {
			return fmt.Errorf("unlink tag: %w", err)
		}
		return nil
	})
}

func lockOwnedTodo(ctx context.Context, tx *sqlx.Tx, ownerID, todoID int64) error {
	var id int64
	err := tx.GetContext(ctx, &id, `SELECT id FROM todos WHERE id = $1 AND owner_id = $2 FOR UPDATE`, todoID, ownerID)
	if err != nil {
		if isNoRows(err) {
			return dom.ErrNotFound
		}
		return fmt.Errorf("lock todo: %w", err)
	}
	return nil
}
