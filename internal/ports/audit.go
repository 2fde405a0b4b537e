package ports

import (
	"context"
	"time"
)

// AuthEvent records one session state transition for a browser client.
type AuthEvent struct {
	ID            string
	ClientID      string
	FromState     string
	ToState       string
	Authenticated bool
	Username      string
	Roles         []string
	OccurredAt    time.Time
}

// AuthEventRepository stores session transitions for audit.
type AuthEventRepository interface {
	Record(ctx context.Context, ev AuthEvent) error
	ListByClient(ctx context.Context, clientID string, limit int) ([]AuthEvent, error)
}
