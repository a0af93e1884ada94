package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/todo-service/internal/apperror"
	"github.com/iliyamo/todo-service/internal/model"
)

const todoColumns = "id, user_id, title, description, completed, created_at, updated_at"

// sortColumns maps the public sort field to its column.
var sortColumns = map[string]string{
	model.SortCreatedAt: "created_at",
	model.SortTitle:     "title",
	model.SortCompleted: "completed",
}

// TodoRepo accesses the `todos` table. Every statement filters by owner.
type TodoRepo struct {
	db   DBTX
	conn *sql.DB
	// lockRows enables SELECT ... FOR UPDATE, which only MySQL understands.
	lockRows bool
}

func NewTodoRepo(db *sql.DB) *TodoRepo {
	_, isMySQL := db.Driver().(*mysql.MySQLDriver)
	return &TodoRepo{db: db, conn: db, lockRows: isMySQL}
}

// InTx runs fn with a repository bound to a single transaction. The
// transaction commits when fn returns nil.
func (r *TodoRepo) InTx(ctx context.Context, fn func(tx *TodoRepo) error) error {
	return WithTx(ctx, r.conn, func(tx *sql.Tx) error {
		return fn(&TodoRepo{db: tx, conn: r.conn, lockRows: r.lockRows})
	})
}

// Create inserts a todo for userID and returns the stored row.
func (r *TodoRepo) Create(ctx context.Context, userID uint64, in model.NewTodo, now time.Time) (model.Todo, error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO todos (user_id, title, description, completed, created_at, updated_at) VALUES (?,?,?,?,?,?)",
		userID, in.Title, nullString(in.Description), in.Completed, now, now)
	if isForeignKeyViolation(err) {
		// The owner was deleted while its access token is still valid.
		return model.Todo{}, apperror.RecordNotFound("User", userID)
	}
	if err != nil {
		return model.Todo{}, fmt.Errorf("insert todo: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Todo{}, fmt.Errorf("insert todo id: %w", err)
	}
	return model.Todo{
		ID:          uint64(id),
		UserID:      userID,
		Title:       in.Title,
		Description: in.Description,
		Completed:   in.Completed,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// List returns one page of the user's todos and the total number of rows
// matching the same filter. q must be normalized.
func (r *TodoRepo) List(ctx context.Context, userID uint64, q model.TodoQuery) ([]model.Todo, int64, error) {
	where, args := listFilter(userID, q)

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM todos WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count todos: %w", err)
	}

	dir := "DESC"
	if q.SortOrder == model.SortAsc {
		dir = "ASC"
	}
	col, ok := sortColumns[q.SortBy]
	if !ok {
		col = "created_at"
	}
	query := fmt.Sprintf("SELECT %s FROM todos WHERE %s ORDER BY %s %s, id %s LIMIT ? OFFSET ?",
		todoColumns, where, col, dir, dir)
	rows, err := r.db.QueryContext(ctx, query, append(args, q.Limit, q.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("list todos: %w", err)
	}
	defer rows.Close()

	todos := []model.Todo{}
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan todo: %w", err)
		}
		todos = append(todos, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate todos: %w", err)
	}
	return todos, total, nil
}

func listFilter(userID uint64, q model.TodoQuery) (string, []any) {
	conds := []string{"user_id = ?"}
	args := []any{userID}
	if s := strings.TrimSpace(q.Search); s != "" {
		pattern := "%" + escapeLike(strings.ToLower(s)) + "%"
		conds = append(conds, "(LOWER(title) LIKE ? ESCAPE '!' OR LOWER(COALESCE(description, '')) LIKE ? ESCAPE '!')")
		args = append(args, pattern, pattern)
	}
	if q.Completed != nil {
		conds = append(conds, "completed = ?")
		args = append(args, *q.Completed)
	}
	return strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func escapeLike(s string) string { return likeEscaper.Replace(s) }

// Get fetches one todo owned by userID. A todo of another user is
// reported as not found.
func (r *TodoRepo) Get(ctx context.Context, id, userID uint64) (model.Todo, error) {
	t, err := scanTodo(r.db.QueryRowContext(ctx,
		"SELECT "+todoColumns+" FROM todos WHERE id=? AND user_id=?", id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Todo{}, apperror.RecordNotFound("Todo", id)
	}
	if err != nil {
		return model.Todo{}, fmt.Errorf("get todo: %w", err)
	}
	return t, nil
}

// Update applies a partial update and returns the stored row.
func (r *TodoRepo) Update(ctx context.Context, id, userID uint64, upd model.TodoUpdate, now time.Time) (model.Todo, error) {
	sets, args := todoSets(upd, now)
	args = append(args, id, userID)
	res, err := r.db.ExecContext(ctx, "UPDATE todos SET "+sets+" WHERE id=? AND user_id=?", args...)
	if err != nil {
		return model.Todo{}, fmt.Errorf("update todo: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.Todo{}, apperror.RecordNotFound("Todo", id)
	}
	return r.Get(ctx, id, userID)
}

// Delete removes one todo owned by userID.
func (r *TodoRepo) Delete(ctx context.Context, id, userID uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM todos WHERE id=? AND user_id=?", id, userID)
	if err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete todo rows: %w", err)
	}
	if n == 0 {
		return apperror.RecordNotFound("Todo", id)
	}
	return nil
}

// Stats counts all and completed todos of the user.
func (r *TodoRepo) Stats(ctx context.Context, userID uint64) (total, completed int64, err error) {
	err = r.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(CASE WHEN completed THEN 1 ELSE 0 END), 0) FROM todos WHERE user_id=?",
		userID).Scan(&total, &completed)
	if err != nil {
		return 0, 0, fmt.Errorf("todo stats: %w", err)
	}
	return total, completed, nil
}

// OwnedIDs returns which of ids exist and belong to userID. Inside a
// MySQL transaction the matching rows stay locked until commit.
func (r *TodoRepo) OwnedIDs(ctx context.Context, userID uint64, ids []uint64) (map[uint64]bool, error) {
	owned := make(map[uint64]bool, len(ids))
	if len(ids) == 0 {
		return owned, nil
	}
	query := "SELECT id FROM todos WHERE user_id=? AND id IN (" + placeholders(len(ids)) + ")"
	if r.lockRows {
		query += " FOR UPDATE"
	}
	rows, err := r.db.QueryContext(ctx, query, idArgs(userID, ids)...)
	if err != nil {
		return nil, fmt.Errorf("select owned todos: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan owned todo: %w", err)
		}
		owned[id] = true
	}
	return owned, rows.Err()
}

// UpdateMany applies upd to every listed todo of the user.
func (r *TodoRepo) UpdateMany(ctx context.Context, userID uint64, ids []uint64, upd model.TodoUpdate, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	sets, args := todoSets(upd, now)
	args = append(args, idArgs(userID, ids)...)
	res, err := r.db.ExecContext(ctx,
		"UPDATE todos SET "+sets+" WHERE user_id=? AND id IN ("+placeholders(len(ids))+")", args...)
	if err != nil {
		return 0, fmt.Errorf("batch update todos: %w", err)
	}
	return res.RowsAffected()
}

// DeleteMany removes every listed todo of the user.
func (r *TodoRepo) DeleteMany(ctx context.Context, userID uint64, ids []uint64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM todos WHERE user_id=? AND id IN ("+placeholders(len(ids))+")", idArgs(userID, ids)...)
	if err != nil {
		return 0, fmt.Errorf("batch delete todos: %w", err)
	}
	return res.RowsAffected()
}

func todoSets(upd model.TodoUpdate, now time.Time) (string, []any) {
	sets := []string{"updated_at=?"}
	args := []any{now}
	if upd.Title != nil {
		sets = append(sets, "title=?")
		args = append(args, *upd.Title)
	}
	if upd.Description != nil {
		sets = append(sets, "description=?")
		args = append(args, *upd.Description)
	}
	if upd.Completed != nil {
		sets = append(sets, "completed=?")
		args = append(args, *upd.Completed)
	}
	return strings.Join(sets, ", "), args
}

func idArgs(userID uint64, ids []uint64) []any {
	args := make([]any, 0, len(ids)+1)
	args = append(args, userID)
	for _, id := range ids {
		args = append(args, id)
	}
	return args
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func scanTodo(s rowScanner) (model.Todo, error) {
	var (
		t    model.Todo
		desc sql.NullString
	)
	if err := s.Scan(&t.ID, &t.UserID, &t.Title, &desc, &t.Completed, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return model.Todo{}, err
	}
	if desc.Valid {
		d := desc.String
		t.Description = &d
	}
	return t, nil
}
