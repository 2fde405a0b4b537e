package data

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/target/microshop-ui/internal/errors"
	"github.com/target/microshop-ui/internal/ports"
	"github.com/target/microshop-ui/internal/testutil"
)

func TestAuthEventRepo_RecordAndList(t *testing.T) {
	db := testutil.SetupAutoDB(t)
	repo := NewAuthEventRepo(db)
	ctx := context.Background()
	base := testutil.TestTime()

	events := []ports.AuthEvent{
		{ClientID: "c1", FromState: "uninitialized", ToState: "initializing", OccurredAt: base},
		{ClientID: "c1", FromState: "initializing", ToState: "ready", OccurredAt: base.Add(time.Second)},
		{
			ID: uuid.NewString(), ClientID: "c1", FromState: "ready", ToState: "ready",
			Authenticated: true, Username: "alice", Roles: []string{"ADMIN", "CLIENT"},
			OccurredAt: base.Add(2 * time.Second),
		},
		{ClientID: "c2", FromState: "uninitialized", ToState: "initializing", OccurredAt: base},
	}
	for _, ev := range events {
		require.NoError(t, repo.Record(ctx, ev))
	}

	got, err := repo.ListByClient(ctx, "c1", 10)
	require.NoError(t, err)
	require.Len(t, got, 3)

	newest := got[0]
	assert.Equal(t, events[2].ID, newest.ID)
	assert.True(t, newest.Authenticated)
	assert.Equal(t, "alice", newest.Username)
	assert.Equal(t, []string{"ADMIN", "CLIENT"}, newest.Roles)
	assert.True(t, newest.OccurredAt.Equal(base.Add(2*time.Second)))

	assert.Equal(t, "initializing", got[2].ToState)
	assert.Empty(t, got[2].Roles)

	limited, err := repo.ListByClient(ctx, "c1", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestAuthEventRepo_RecordValidation(t *testing.T) {
	repo := NewAuthEventRepo(nil)
	ctx := context.Background()

	err := repo.Record(ctx, ports.AuthEvent{})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, "client_id", apperrors.GetField(err))

	err = repo.Record(ctx, ports.AuthEvent{ID: "not-a-uuid", ClientID: "c"})
	require.Error(t, err)
	assert.Equal(t, "id", apperrors.GetField(err))

	_, err = repo.ListByClient(ctx, " ", 10)
	require.Error(t, err)
}

func TestAuthEventRepo_DuplicateID(t *testing.T) {
	db := testutil.SetupAutoDB(t)
	repo := NewAuthEventRepo(db)
	ctx := context.Background()

	ev := ports.AuthEvent{ID: uuid.NewString(), ClientID: "dup", FromState: "a", ToState: "b"}
	require.NoError(t, repo.Record(ctx, ev))

	err := repo.Record(ctx, ev)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}

func TestAuthEventRepo_Prune(t *testing.T) {
	db := testutil.SetupAutoDB(t)
	repo := NewAuthEventRepo(db)
	ctx := context.Background()
	base := testutil.TestTime()

	require.NoError(t, repo.Record(ctx, ports.AuthEvent{ClientID: "p", FromState: "a", ToState: "b", OccurredAt: base}))
	require.NoError(t, repo.Record(ctx, ports.AuthEvent{ClientID: "p", FromState: "b", ToState: "c", OccurredAt: base.Add(time.Hour)}))

	n, err := repo.Prune(ctx, base.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	left, err := repo.ListByClient(ctx, "p", 0)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "c", left[0].ToState)
}
