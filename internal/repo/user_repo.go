package repo

import (
	"context"
	"fmt"
	"time"

	dom "TodoAPI/internal/domain"
	"TodoAPI/internal/utils"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

const (
	constraintUserEmail    = "users_email_key"
	constraintUserUsername = "users_username_key"
)

var userColumns = columns("", "id", "email", "username", "hashed_password", "created_at", "updated_at")

// UserRepo provides user persistence.
type UserRepo interface {
	GetByID(ctx context.Context, id int64) (dom.User, error)
	GetByEmail(ctx context.Context, email string) (dom.User, error)
	GetByUsername(ctx context.Context, username string) (dom.User, error)
	Create(ctx context.Context, email, username, passwordHash string) (dom.User, error)
	Update(ctx context.Context, id int64, fields UserFields) (dom.User, error)
}

// UserFields are the columns a profile update may touch. Nil means unchanged.
type UserFields struct {
	Email        *string
	Username     *string
	PasswordHash *string
}

type userRow struct {
	ID             int64     `db:"id"`
	Email          string    `db:"email"`
	Username       string    `db:"username"`
	HashedPassword string    `db:"hashed_password"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func (r userRow) toDomain() dom.User {
	return dom.User{
		ID:             r.ID,
		Email:          r.Email,
		Username:       r.Username,
		HashedPassword: r.HashedPassword,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

// PGUserRepo implements UserRepo with Postgres.
type PGUserRepo struct {
	db *sqlx.DB
}

// NewPGUserRepo returns a new PGUserRepo.
func NewPGUserRepo(db *sqlx.DB) *PGUserRepo {
	return &PGUserRepo{db: db}
}

func (r *PGUserRepo) GetByID(ctx context.Context, id int64) (dom.User, error) {
	return r.getBy(ctx, "id", id)
}

func (r *PGUserRepo) GetByEmail(ctx context.Context, email string) (dom.User, error) {
	return r.getBy(ctx, "email", email)
}

func (r *PGUserRepo) GetByUsername(ctx context.Context, username string) (dom.User, error) {
	return r.getBy(ctx, "username", username)
}

func (r *PGUserRepo) getBy(ctx context.Context, column string, value any) (dom.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = $1`
	var row userRow
	if err := r.db.GetContext(ctx, &row, query, value); err != nil {
		if isNoRows(err) {
			return dom.User{}, dom.ErrNotFound
		}
		return dom.User{}, fmt.Errorf("get user by %s: %w", column, err)
	}
	return row.toDomain(), nil
}

// Create inserts a new user and returns it.
func (r *PGUserRepo) Create(ctx context.Context, email, username, passwordHash string) (dom.User, error) {
	query := `
		INSERT INTO users (email, username, hashed_password)
		VALUES ($1, $2, $3)
		RETURNING ` + userColumns
	var row userRow
	if err := r.db.GetContext(ctx, &row, query, email, username, passwordHash); err != nil {
		if dup := duplicateUserError(err); dup != nil {
			return dom.User{}, dup
		}
		return dom.User{}, fmt.Errorf("insert user: %w", err)
	}
	return row.toDomain(), nil
}

// Update applies the present fields and bumps updated_at.
func (r *PGUserRepo) Update(ctx context.Context, id int64, fields UserFields) (dom.User, error) {
	b := psql.Update("users").Set("updated_at", sq.Expr("NOW()"))
	if fields.Email != nil {
		b = b.Set("email", *fields.Email)
	}
	if fields.Username != nil {
		b = b.Set("username", *fields.Username)
	}
	if fields.PasswordHash != nil {
		b = b.Set("hashed_password", *fields.PasswordHash)
	}
	query, args, err := b.Where(sq.Eq{"id": id}).Suffix("RETURNING " + userColumns).ToSql()
	if err != nil {
		return dom.User{}, fmt.Errorf("build user update: %w", err)
	}
	var row userRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNoRows(err) {
			return dom.User{}, dom.ErrNotFound
		}
		if dup := duplicateUserError(err); dup != nil {
			return dom.User{}, dup
		}
		return dom.User{}, fmt.Errorf("update user: %w", err)
	}
	return row.toDomain(), nil
}

// duplicateUserError maps a unique violation on users to its domain error.
func duplicateUserError(err error) error {
	switch utils.UniqueViolationConstraint(err) {
	case constraintUserEmail:
		return dom.ErrDuplicateEmail
	case constraintUserUsername:
		return dom.ErrDuplicateUsername
	}
	return nil
}
