package model

import (
	"encoding/json"
	"math"
	"time"
)

// Field limits and listing defaults.
const (
	TitleMaxLen       = 100
	DescriptionMaxLen = 500

	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100

	SortCreatedAt = "createdAt"
	SortTitle     = "title"
	SortCompleted = "completed"

	SortAsc  = "asc"
	SortDesc = "desc"
)

// Todo mirrors the `todos` table. Description is nil when not set.
type Todo struct {
	ID          uint64    `json:"id"`
	UserID      uint64    `json:"userId"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// NewTodo is validated creation input.
type NewTodo struct {
	Title       string
	Description *string
	Completed   bool
}

// TodoUpdate is a partial update; nil fields are left unchanged.
type TodoUpdate struct {
	Title       *string
	Description *string
	Completed   *bool
}

func (u TodoUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Completed == nil
}

// TodoQuery selects one page of a user's todos. The json field order is
// part of the listing cache key, so it must stay stable.
type TodoQuery struct {
	Search    string `json:"search"`
	Completed *bool  `json:"completed"`
	Page      int    `json:"page"`
	Limit     int    `json:"limit"`
	SortBy    string `json:"sortBy"`
	SortOrder string `json:"sortOrder"`
}

// Normalize fills defaults so equivalent queries share one cache key.
func (q TodoQuery) Normalize() TodoQuery {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.Limit < 1 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	switch q.SortBy {
	case SortCreatedAt, SortTitle, SortCompleted:
	default:
		q.SortBy = SortCreatedAt
	}
	if q.SortOrder != SortAsc {
		q.SortOrder = SortDesc
	}
	return q
}

// Offset is the number of rows skipped before the page.
func (q TodoQuery) Offset() int { return (q.Page - 1) * q.Limit }

// Serialize renders the normalized query deterministically.
func (q TodoQuery) Serialize() string {
	b, _ := json.Marshal(q.Normalize())
	return string(b)
}

// PageMeta describes a page within the full filtered result.
type PageMeta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"totalPages"`
}

// NewPageMeta computes totalPages = ceil(total/limit).
func NewPageMeta(total int64, page, limit int) PageMeta {
	pages := 0
	if limit > 0 {
		pages = int(math.Ceil(float64(total) / float64(limit)))
	}
	return PageMeta{Total: total, Page: page, Limit: limit, TotalPages: pages}
}

type TodoPage struct {
	Data []Todo   `json:"data"`
	Meta PageMeta `json:"meta"`
}

type TodoStats struct {
	Total          int64   `json:"total"`
	Completed      int64   `json:"completed"`
	Pending        int64   `json:"pending"`
	CompletionRate float64 `json:"completionRate"`
}

// NewTodoStats derives pending and the completion percentage; an empty
// list has a rate of 0.
func NewTodoStats(total, completed int64) TodoStats {
	s := TodoStats{Total: total, Completed: completed, Pending: total - completed}
	if total > 0 {
		s.CompletionRate = float64(completed) / float64(total) * 100
	}
	return s
}

// BatchResult reports how many rows a batch operation touched.
type BatchResult struct {
	Count int64 `json:"count"`
}

// Ack acknowledges an operation without a payload.
type Ack struct {
	Success bool `json:"success"`
}
