package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFileTokenStore(t *testing.T) {
	t.Run("creates directory with correct permissions", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "murmur")

		store, err := NewFileTokenStore(dir)
		require.NoError(t, err)
		assert.NotNil(t, store)

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
		assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
	})

	t.Run("uses default directory when baseDir is empty", func(t *testing.T) {
		t.Setenv("HOME", t.TempDir())

		store, err := NewFileTokenStore("")
		require.NoError(t, err)
		assert.Contains(t, store.Path(), ".murmur")
	})
}

func TestFileTokenStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewFileTokenStore(dir)
	require.NoError(t, err)

	_, err = store.Load(ctx)
	require.ErrorIs(t, err, ErrNoToken)

	require.NoError(t, store.Save(ctx, "token-1"))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	// A second store over the same directory sees the token.
	reopened, err := NewFileTokenStore(dir)
	require.NoError(t, err)
	token, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token-1", token)

	require.NoError(t, store.Save(ctx, "token-2"))
	token, err = reopened.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token-2", token)

	require.NoError(t, store.Clear(ctx))
	_, err = reopened.Load(ctx)
	require.ErrorIs(t, err, ErrNoToken)

	// Clearing twice is fine.
	require.NoError(t, store.Clear(ctx))

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileTokenStore_CorruptFile(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileTokenStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(store.Path(), []byte("{not json"), 0600))

	_, err = store.Load(ctx)
	require.ErrorIs(t, err, ErrInvalidToken)
	assert.NotErrorIs(t, err, ErrNoToken)
}

func TestFileTokenStore_CorruptFileClearedOnBootstrap(t *testing.T) {
	ctx := context.Background()
	tokens, err := NewFileTokenStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(tokens.Path(), []byte("{not json"), 0600))

	st, err := NewStore(tokens).Bootstrap(ctx)
	require.NoError(t, err)
	assertLoggedOut(t, st)

	_, err = os.Stat(tokens.Path())
	require.ErrorIs(t, err, os.ErrNotExist)

	// the next run starts cleanly logged out
	st, err = NewStore(tokens).Bootstrap(ctx)
	require.NoError(t, err)
	assertLoggedOut(t, st)
}

func TestFileTokenStore_BootstrapsSession(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tokens, err := NewFileTokenStore(dir)
	require.NoError(t, err)

	first := NewStore(tokens)
	_, err = first.Bootstrap(ctx)
	require.NoError(t, err)
	_, err = first.Login(ctx, validToken(t))
	require.NoError(t, err)

	// A fresh process reconstructs the session from disk.
	reopened, err := NewFileTokenStore(dir)
	require.NoError(t, err)
	second := NewStore(reopened)
	st, err := second.Bootstrap(ctx)
	require.NoError(t, err)
	assert.True(t, st.IsAuthenticated)
	assert.Equal(t, "ana", st.User.Username)
}
