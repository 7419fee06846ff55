package feed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wolfeidau/murmur/internal/apitest"
	"github.com/wolfeidau/murmur/internal/client"
	"github.com/wolfeidau/murmur/internal/models"
	"github.com/wolfeidau/murmur/internal/session"
)

type fixture struct {
	srv     *apitest.Server
	session *session.Store
	client  *client.Client
	alice   models.User
	bob     models.User
}

// newFixture starts a fake API and a session logged in as alice.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	srv := apitest.New()
	t.Cleanup(srv.Close)

	f := &fixture{srv: srv}
	f.alice = srv.CreateUser(models.User{Username: "alice", Email: "alice@example.com"}, "pw")
	f.bob = srv.CreateUser(models.User{Username: "bob", Email: "bob@example.com"}, "pw")

	f.session = session.NewStore(session.NewMemoryTokenStore(""))
	_, err := f.session.Bootstrap(ctx)
	require.NoError(t, err)
	_, err = f.session.Login(ctx, srv.Token(f.alice.ID))
	require.NoError(t, err)

	cfg := client.DefaultConfig()
	cfg.ServerURL = srv.URL()
	cfg.Timeout = 5 * time.Second
	f.client, err = client.New(cfg, f.session)
	require.NoError(t, err)

	return f
}

func TestEntry_ToggleLike(t *testing.T) {
	e := Entry{LikeCount: 3}
	e.ToggleLike()
	require.Equal(t, 4, e.LikeCount)
	require.True(t, e.Liked)

	e.ToggleLike()
	require.Equal(t, 3, e.LikeCount)
	require.False(t, e.Liked)

	inconsistent := Entry{LikeCount: 0, Liked: true}
	inconsistent.ToggleLike()
	require.Zero(t, inconsistent.LikeCount)
}

func TestNewView_RequiresBootstrappedSession(t *testing.T) {
	loading := session.NewStore(session.NewMemoryTokenStore(""))

	_, err := NewPostsFeed(loading, nil)
	require.ErrorIs(t, err, ErrSessionLoading)
	_, err = NewCommentSection(loading, nil, 1)
	require.ErrorIs(t, err, ErrSessionLoading)
	_, err = NewProfileView(loading, nil)
	require.ErrorIs(t, err, ErrSessionLoading)
}
