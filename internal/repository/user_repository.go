package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/todo-service/internal/apperror"
	"github.com/iliyamo/todo-service/internal/model"
)

const userColumns = "id, email, name, password_hash, created_at, updated_at"

// UserRepo is the credential store over the `users` table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts a user with an already hashed password and returns the
// stored row. A duplicate email yields apperror.UniqueConstraint.
func (r *UserRepo) Create(ctx context.Context, email, name, passwordHash string, now time.Time) (model.User, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, name, password_hash, created_at, updated_at) VALUES (?,?,?,?,?)",
		email, name, passwordHash, now, now)
	if err != nil {
		if isDuplicateKey(err) {
			return model.User{}, apperror.UniqueConstraint("email")
		}
		return model.User{}, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.User{}, fmt.Errorf("insert user id: %w", err)
	}
	return model.User{
		ID:           uint64(id),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// GetByEmail fetches a user by exact email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, apperror.RecordNotFound("User", email)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, apperror.RecordNotFound("User", id)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// List returns every user ordered by id.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UserChanges are the column values to write; nil fields are untouched.
// PasswordHash must already be hashed.
type UserChanges struct {
	Email        *string
	Name         *string
	PasswordHash *string
}

// Update applies changes to the user and returns the stored row.
func (r *UserRepo) Update(ctx context.Context, id uint64, ch UserChanges, now time.Time) (model.User, error) {
	sets := []string{"updated_at=?"}
	args := []any{now}
	if ch.Email != nil {
		sets = append(sets, "email=?")
		args = append(args, *ch.Email)
	}
	if ch.Name != nil {
		sets = append(sets, "name=?")
		args = append(args, *ch.Name)
	}
	if ch.PasswordHash != nil {
		sets = append(sets, "password_hash=?")
		args = append(args, *ch.PasswordHash)
	}
	args = append(args, id)

	res, err := r.DB.ExecContext(ctx, "UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id=?", args...)
	if err != nil {
		if isDuplicateKey(err) {
			return model.User{}, apperror.UniqueConstraint("email")
		}
		return model.User{}, fmt.Errorf("update user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.User{}, apperror.RecordNotFound("User", id)
	}
	return r.GetByID(ctx, id)
}

// Delete removes the user and every todo they own in one transaction. The
// schema also cascades, but the explicit delete keeps the behaviour
// independent of foreign key enforcement.
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	return WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM todos WHERE user_id=?", id); err != nil {
			return fmt.Errorf("delete user todos: %w", err)
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete user rows: %w", err)
		}
		if n == 0 {
			return apperror.RecordNotFound("User", id)
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(s rowScanner) (model.User, error) {
	var u model.User
	err := s.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}
