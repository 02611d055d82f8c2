package auth

import (
	"context"
	"testing"
	"time"

	"github.com/elee1766/gauntletfuse/src/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuth(t *testing.T) (*Authenticator, *storage.Store) {
	t.Helper()
	db, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store := storage.NewStore(db)
	return New(store), store
}

func TestCurrentUser(t *testing.T) {
	a, _ := newTestAuth(t)
	ctx := context.Background()

	user, err := a.EnsureUser(ctx, "test@example.com", "Test")
	require.NoError(t, err)

	again, err := a.EnsureUser(ctx, "test@example.com", "Other")
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)

	token, err := a.IssueToken(ctx, UserID(user.ID), time.Hour)
	require.NoError(t, err)

	got, err := a.CurrentUser(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, UserID(user.ID), got)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"whitespace", "  "},
		{"unknown", "deadbeef"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.CurrentUser(ctx, tt.token)
			assert.ErrorIs(t, err, ErrUnauthenticated)
		})
	}

	t.Run("expired", func(t *testing.T) {
		a.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		defer func() { a.now = time.Now }()
		_, err := a.CurrentUser(ctx, token)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("revoked", func(t *testing.T) {
		require.NoError(t, a.Revoke(ctx, token))
		_, err := a.CurrentUser(ctx, token)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})
}

func TestIssueTokenUnknownUser(t *testing.T) {
	a, _ := newTestAuth(t)
	_, err := a.IssueToken(context.Background(), "ghost", time.Hour)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRequireOwner(t *testing.T) {
	assert.NoError(t, RequireOwner("alice", "alice"))
	assert.ErrorIs(t, RequireOwner("bob", "alice"), ErrForbidden)
	assert.ErrorIs(t, RequireOwner("", "alice"), ErrUnauthenticated)

	alice := "alice"
	assert.True(t, CanRead("bob", nil))
	assert.True(t, CanRead("alice", &alice))
	assert.False(t, CanRead("bob", &alice))
}
