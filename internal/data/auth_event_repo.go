package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/target/microshop-ui/internal/data/pgxutil"
	apperrors "github.com/target/microshop-ui/internal/errors"
	"github.com/target/microshop-ui/internal/ports"
)

const (
	defaultAuthEventLimit = 50
	maxAuthEventLimit     = 500
)

// AuthEventRepo implements ports.AuthEventRepository using PostgreSQL.
type AuthEventRepo struct {
	DB  *sql.DB
	now func() time.Time
}

var _ ports.AuthEventRepository = (*AuthEventRepo)(nil)

// NewAuthEventRepo creates a new AuthEventRepo with the given database connection.
func NewAuthEventRepo(db *sql.DB) *AuthEventRepo {
	return &AuthEventRepo{DB: db, now: time.Now}
}

const authEventColumns = `id, client_id, from_state, to_state, authenticated, username, roles, occurred_at`

type authEventRow struct {
	ID            uuid.UUID `db:"id"`
	ClientID      string    `db:"client_id"`
	FromState     string    `db:"from_state"`
	ToState       string    `db:"to_state"`
	Authenticated bool      `db:"authenticated"`
	Username      string    `db:"username"`
	Roles         []string  `db:"roles"`
	OccurredAt    time.Time `db:"occurred_at"`
}

// Record inserts one transition. Missing IDs and timestamps are filled in.
func (r *AuthEventRepo) Record(ctx context.Context, ev ports.AuthEvent) error {
	if strings.TrimSpace(ev.ClientID) == "" {
		return apperrors.ValidationField("client_id", "client_id is required")
	}

	id := uuid.New()
	if ev.ID != "" {
		parsed, err := uuid.Parse(ev.ID)
		if err != nil {
			return apperrors.ValidationField("id", "id must be a UUID")
		}
		id = parsed
	}
	occurred := ev.OccurredAt
	if occurred.IsZero() {
		occurred = r.now()
	}
	roles := ev.Roles
	if roles == nil {
		roles = []string{}
	}

	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO auth_events (`+authEventColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, id, ev.ClientID, ev.FromState, ev.ToState, ev.Authenticated, ev.Username, roles, occurred.UTC())
	if err != nil {
		return fmt.Errorf("record auth event: %w", apperrors.MapDBError(err))
	}
	return nil
}

// ListByClient returns the newest events for a client first.
func (r *AuthEventRepo) ListByClient(ctx context.Context, clientID string, limit int) ([]ports.AuthEvent, error) {
	if strings.TrimSpace(clientID) == "" {
		return nil, errors.New("client_id is required")
	}
	switch {
	case limit <= 0:
		limit = defaultAuthEventLimit
	case limit > maxAuthEventLimit:
		limit = maxAuthEventLimit
	}

	var rows []authEventRow
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		res, err := conn.Query(ctx, `
			SELECT `+authEventColumns+`
			FROM auth_events
			WHERE client_id = $1
			ORDER BY occurred_at DESC, id
			LIMIT $2
		`, clientID, limit)
		if err != nil {
			return err
		}
		rows, err = pgx.CollectRows(res, pgx.RowToStructByName[authEventRow])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list auth events: %w", apperrors.MapDBError(err))
	}

	out := make([]ports.AuthEvent, 0, len(rows))
	for _, row := range rows {
		out = append(out, ports.AuthEvent{
			ID:            row.ID.String(),
			ClientID:      row.ClientID,
			FromState:     row.FromState,
			ToState:       row.ToState,
			Authenticated: row.Authenticated,
			Username:      row.Username,
			Roles:         row.Roles,
			OccurredAt:    row.OccurredAt,
		})
	}
	return out, nil
}

// Prune deletes events older than the cutoff and returns how many were removed.
func (r *AuthEventRepo) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM auth_events WHERE occurred_at < $1`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune auth events: %w", apperrors.MapDBError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune auth events: %w", err)
	}
	return n, nil
}
