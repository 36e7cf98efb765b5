package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no record exists for a label.
var ErrNotFound = errors.New("session record not found")

// Session statuses recorded in the ledger.
const (
	StatusLaunched    = "launched"
	StatusExitedEarly = "exited_early"
	StatusExited      = "exited"
	StatusClosed      = "closed"
)

// Record is the last known state of one profile session. The ledger is
// informational only; liveness is always probed, never read from here.
// UpdatedAt should be in UTC.
type Record struct {
	Label      string    `json:"label"`
	PID        int       `json:"pid"`
	LastStatus string    `json:"last_status"`
	LaunchID   string    `json:"launch_id"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Store keeps one Record per label.
type Store interface {
	EnsureSchema(ctx context.Context) error
	Record(ctx context.Context, rec Record) error
	GetByLabel(ctx context.Context, label string) (Record, error)
	List(ctx context.Context) ([]Record, error)
	Delete(ctx context.Context, label string) error
	Close() error
}
