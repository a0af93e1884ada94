// Package queue carries domain events over RabbitMQ. Services publish
// through a Publisher; the Consumer drains the queue into an audit log.
package queue

import "time"

// Event types.
const (
	TodoCreated      = "todo.created"
	TodoUpdated      = "todo.updated"
	TodoDeleted      = "todo.deleted"
	TodoBatchUpdated = "todo.batch_updated"
	TodoBatchDeleted = "todo.batch_deleted"
	UserRegistered   = "user.registered"
	UserDeleted      = "user.deleted"
)

// TodoEvent describes a completed change. TodoIDs is empty for user events.
type TodoEvent struct {
	Type       string    `json:"type"`
	UserID     uint64    `json:"userId"`
	TodoIDs    []uint64  `json:"todoIds,omitempty"`
	Count      int64     `json:"count"`
	OccurredAt time.Time `json:"occurredAt"`
}
