package models

import "time"

// LogEntry is an append-only audit record
type LogEntry struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	UserID    *int64    `json:"user_id,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// LogFilter narrows a log listing. Zero values are ignored; set fields
// combine with AND. Search is a case-insensitive substring match on Message.
type LogFilter struct {
	Type   string
	UserID int64
	Search string
	Limit  int
	Offset int
}
