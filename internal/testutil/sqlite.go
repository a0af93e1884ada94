// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// sqliteSchema mirrors the MySQL migrations closely enough for the
// repositories' portable SQL.
const sqliteSchema = `
CREATE TABLE users (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    email         TEXT     NOT NULL UNIQUE,
    name          TEXT     NOT NULL,
    password_hash TEXT     NOT NULL,
    created_at    DATETIME NOT NULL,
    updated_at    DATETIME NOT NULL
);
CREATE TABLE todos (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id     INTEGER  NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    title       TEXT     NOT NULL,
    description TEXT     NULL,
    completed   BOOLEAN  NOT NULL DEFAULT 0,
    created_at  DATETIME NOT NULL,
    updated_at  DATETIME NOT NULL
);
CREATE INDEX idx_todos_user_created ON todos (user_id, created_at);
`

var dbSeq atomic.Int64

// OpenSQLite returns a fresh in-memory database with the service schema.
// The pool is limited to one connection so a transaction and the test never
// race for the shared in-memory file.
func OpenSQLite(t *testing.T) *sql.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:todo_test_%d?mode=memory&cache=shared&_pragma=foreign_keys(1)&_time_format=sqlite", dbSeq.Add(1))
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(sqliteSchema)
	require.NoError(t, err)
	return db
}

// Clock is a manually advanced time source.
type Clock struct {
	now atomic.Int64
}

// NewClock starts at a fixed UTC instant.
func NewClock() *Clock {
	c := &Clock{}
	c.now.Store(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC).UnixNano())
	return c
}

func (c *Clock) Now() time.Time { return time.Unix(0, c.now.Load()).UTC() }

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) { c.now.Add(int64(d)) }

// InsertUser adds a user row directly and returns its id.
func InsertUser(t *testing.T, db *sql.DB, email, name, hash string) uint64 {
	t.Helper()
	now := time.Now().UTC()
	res, err := db.ExecContext(context.Background(),
		"INSERT INTO users (email, name, password_hash, created_at, updated_at) VALUES (?,?,?,?,?)",
		email, name, hash, now, now)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return uint64(id)
}
