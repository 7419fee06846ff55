package commands

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfeidau/murmur/internal/client"
	"github.com/wolfeidau/murmur/internal/config"
	"github.com/wolfeidau/murmur/internal/feed"
	"github.com/wolfeidau/murmur/internal/optimistic"
)

func TestPostCreateCmd(t *testing.T) {
	f := newFixture(t, config.DriverFile)
	f.login(t)

	out := f.mustRun(t, &PostCreateCmd{Content: "first post"})
	assert.Regexp(t, `^Created post \d+\n$`, out)

	out = f.mustRun(t, &FeedCmd{Width: 60})
	assert.Contains(t, out, "first post")
	assert.NotContains(t, out, "[private]")
}

func TestPostCreateCmd_Private(t *testing.T) {
	f := newFixture(t, config.DriverFile)
	f.login(t)

	f.mustRun(t, &PostCreateCmd{Content: "just for me", Private: true})

	out := f.mustRun(t, &FeedCmd{Width: 60})
	assert.Contains(t, out, "[private] just for me")
}

func TestPostCreateCmd_Empty(t *testing.T) {
	f := newFixture(t, config.DriverFile)
	f.login(t)

	_, err := f.run(t, &PostCreateCmd{Content: "   "})
	require.ErrorIs(t, err, feed.ErrEmptyContent)
	assert.Equal(t, 0, f.srv.Calls(http.MethodPost, "posts/create/"))
}

func TestPostCreateCmd_LoggedOut(t *testing.T) {
	f := newFixture(t, config.DriverFile)

	_, err := f.run(t, &PostCreateCmd{Content: "hello"})
	require.ErrorIs(t, err, client.ErrNotAuthenticated)
}

func TestPostEditAndDeleteCmd(t *testing.T) {
	f := newFixture(t, config.DriverFile)
	p := f.srv.CreatePost(f.alice.ID, "draft", true)
	f.login(t)

	out := f.mustRun(t, &PostEditCmd{ID: p.ID, Content: "final"})
	assert.Contains(t, out, "Updated post")

	got, ok := f.srv.Post(p.ID)
	require.True(t, ok)
	assert.Equal(t, "final", got.Content)

	out = f.mustRun(t, &PostDeleteCmd{ID: p.ID})
	assert.Contains(t, out, "Deleted post")

	_, ok = f.srv.Post(p.ID)
	assert.False(t, ok)
}

func TestPostDeleteCmd_NotOwner(t *testing.T) {
	f := newFixture(t, config.DriverFile)
	p := f.srv.CreatePost(f.bob.ID, "bob's", true)
	f.login(t)

	_, err := f.run(t, &PostDeleteCmd{ID: p.ID})
	require.Error(t, err)
	assert.True(t, client.IsStatus(err, http.StatusForbidden))

	_, ok := f.srv.Post(p.ID)
	assert.True(t, ok)
}

func TestPostLikeCmd_Toggles(t *testing.T) {
	f := newFixture(t, config.DriverFile)
	p := f.srv.CreatePost(f.bob.ID, "like me", true)
	f.srv.LikePostAs(p.ID, f.bob.ID)
	f.login(t)

	out := f.mustRun(t, &PostLikeCmd{ID: p.ID})
	assert.Contains(t, out, "Liked post")
	assert.Contains(t, out, "(2 likes)")

	out = f.mustRun(t, &PostLikeCmd{ID: p.ID})
	assert.Contains(t, out, "Unliked post")
	assert.Contains(t, out, "(1 like)")
}

func TestPostLikeCmd_ServerFailureRollsBack(t *testing.T) {
	f := newFixture(t, config.DriverFile)
	p := f.srv.CreatePost(f.bob.ID, "like me", true)
	f.login(t)

	restore := f.srv.Fail(http.MethodPost, "posts/"+itoa(p.ID)+"/like/", http.StatusInternalServerError, 1)
	defer restore()

	_, err := f.run(t, &PostLikeCmd{ID: p.ID})
	require.Error(t, err)
	assert.True(t, client.IsStatus(err, http.StatusInternalServerError))

	got, _ := f.srv.Post(p.ID)
	assert.Empty(t, got.Likes)
}

func TestPostLikeCmd_Unknown(t *testing.T) {
	f := newFixture(t, config.DriverFile)
	f.login(t)

	_, err := f.run(t, &PostLikeCmd{ID: 999})
	require.ErrorIs(t, err, optimistic.ErrNotFound)
}

func TestPostDislikeCmd_ConflictsWithLike(t *testing.T) {
	f := newFixture(t, config.DriverFile)
	p := f.srv.CreatePost(f.bob.ID, "hmm", true)
	f.login(t)

	out := f.mustRun(t, &PostDislikeCmd{ID: p.ID})
	assert.Contains(t, out, "Disliked post")
	assert.Contains(t, out, "(1 dislike)")

	_, err := f.run(t, &PostLikeCmd{ID: p.ID})
	require.ErrorIs(t, err, feed.ErrReactionConflict)
	assert.Equal(t, 0, f.srv.Calls(http.MethodPost, "posts/"+itoa(p.ID)+"/like/"))

	out = f.mustRun(t, &PostDislikeCmd{ID: p.ID})
	assert.Contains(t, out, "Removed dislike from post")
}

func TestPostRepostCmd(t *testing.T) {
	f := newFixture(t, config.DriverFile)
	p := f.srv.CreatePost(f.bob.ID, "worth sharing", true)
	f.login(t)

	out := f.mustRun(t, &PostRepostCmd{ID: p.ID, Content: "look"})
	assert.Contains(t, out, "Reposted post")
	assert.Contains(t, out, "[repost of "+itoa(p.ID)+"] look")
}
