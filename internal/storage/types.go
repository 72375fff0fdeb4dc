package storage

import (
	"context"
	"errors"
	"time"
)

var ErrClosed = errors.New("storage closed")

// Config selects a backend.
//
//	"file":   <path>.audit.jsonl, append-only JSON lines
//	"sqlite": SQLite database at path (needs -tags sqlite)
//
// An empty driver or "none" disables storage.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration
}

// AuditEntry is one reminder action.
type AuditEntry struct {
	At          time.Time `json:"at"`
	Owner       int64     `json:"owner"`
	Action      string    `json:"action"`
	DueAt       time.Time `json:"due_at"`
	Message     string    `json:"message"`
	PrevDueAt   time.Time `json:"prev_due_at,omitzero"`
	PrevMessage string    `json:"prev_message,omitempty"`
	Error       string    `json:"error,omitempty"`
}

type Store interface {
	AppendAudit(ctx context.Context, e AuditEntry) error
	// RecentAudit returns up to limit entries for owner, newest first.
	RecentAudit(ctx context.Context, owner int64, limit int) ([]AuditEntry, error)
	Close() error
}
