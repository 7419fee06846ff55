package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfeidau/murmur/internal/session"
)

func openTestStore(t *testing.T, path string) *TokenStore {
	t.Helper()
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestTokenStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, filepath.Join(t.TempDir(), "murmur.db"))

	_, err := s.Load(ctx)
	require.ErrorIs(t, err, session.ErrNoToken)

	require.NoError(t, s.Save(ctx, "token-1"))
	token, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token-1", token)

	require.NoError(t, s.Save(ctx, "token-2"))
	token, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token-2", token)

	require.NoError(t, s.Clear(ctx))
	_, err = s.Load(ctx)
	require.ErrorIs(t, err, session.ErrNoToken)

	require.NoError(t, s.Clear(ctx))
}

func TestTokenStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "murmur.db")

	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Save(ctx, "persisted"))
	require.NoError(t, first.Close())

	second := openTestStore(t, path)
	token, err := second.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "persisted", token)
}

func TestTokenStore_BacksSession(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, filepath.Join(t.TempDir(), "murmur.db"))

	store := session.NewStore(s)
	st, err := store.Bootstrap(ctx)
	require.NoError(t, err)
	assert.False(t, st.IsAuthenticated)
	assert.False(t, st.IsLoading)

	_, err = store.Login(ctx, "not-a-jwt")
	require.ErrorIs(t, err, session.ErrInvalidToken)

	_, err = s.Load(ctx)
	require.ErrorIs(t, err, session.ErrNoToken)
}
