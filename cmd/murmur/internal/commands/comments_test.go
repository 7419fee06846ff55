package commands

import (
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfeidau/murmur/internal/config"
	"github.com/wolfeidau/murmur/internal/feed"
	"github.com/wolfeidau/murmur/internal/optimistic"
)

func TestCommentsListCmd_Ranking(t *testing.T) {
	f := newFixture(t, config.DriverFile)
	p := f.srv.CreatePost(f.bob.ID, "post", true)
	popular := f.srv.CreateComment(f.bob.ID, p.ID, "popular opinion")
	f.srv.CreateComment(f.bob.ID, p.ID, "fresh take")
	f.srv.LikeCommentAs(popular.ID, f.alice.ID)
	f.srv.LikeCommentAs(popular.ID, f.bob.ID)
	f.login(t)

	out := f.mustRun(t, &CommentsListCmd{PostID: p.ID, Width: 60})
	assert.Less(t, strings.Index(out, "fresh take"), strings.Index(out, "popular opinion"))
	assert.Contains(t, out, "2*")
	assert.Contains(t, out, "2 comments\n")

	out = f.mustRun(t, &CommentsListCmd{PostID: p.ID, Top: true, Width: 60})
	assert.Less(t, strings.Index(out, "popular opinion"), strings.Index(out, "fresh take"))
}

func TestCommentsListCmd_Empty(t *testing.T) {
	f := newFixture(t, config.DriverFile)
	p := f.srv.CreatePost(f.bob.ID, "post", true)
	f.login(t)

	out := f.mustRun(t, &CommentsListCmd{PostID: p.ID, Width: 60})
	assert.Equal(t, "No comments on post "+itoa(p.ID)+".\n", out)
}

func TestCommentsListCmd_WithReplies(t *testing.T) {
	f := newFixture(t, config.DriverFile)
	p := f.srv.CreatePost(f.bob.ID, "post", true)
	c := f.srv.CreateComment(f.bob.ID, p.ID, "a comment")
	f.srv.CreateSubComment(f.alice.ID, c.ID, "a reply")
	f.login(t)

	out := f.mustRun(t, &CommentsListCmd{PostID: p.ID, Replies: c.ID, Width: 60})
	assert.Contains(t, out, "Replies to comment "+itoa(c.ID))
	assert.Contains(t, out, "a reply")

	_, err := f.run(t, &CommentsListCmd{PostID: p.ID, Replies: 999, Width: 60})
	require.ErrorIs(t, err, optimistic.ErrNotFound)
}

func TestCommentsAddEditDeleteCmd(t *testing.T) {
	f := newFixture(t, config.DriverFile)
	p := f.srv.CreatePost(f.bob.ID, "post", true)
	f.login(t)

	out := f.mustRun(t, &CommentsAddCmd{PostID: p.ID, Content: "nice"})
	require.Regexp(t, `^Added comment \d+ to post \d+\n$`, out)
	id, err := strconv.ParseInt(strings.Fields(out)[2], 10, 64)
	require.NoError(t, err)

	f.mustRun(t, &CommentsEditCmd{PostID: p.ID, ID: id, Content: "very nice"})
	c, ok := f.srv.Comment(id)
	require.True(t, ok)
	assert.Equal(t, "very nice", c.Content)

	out = f.mustRun(t, &CommentsDeleteCmd{PostID: p.ID, ID: id})
	assert.Equal(t, "Deleted comment "+itoa(id)+"\n", out)
	_, ok = f.srv.Comment(id)
	assert.False(t, ok)
}

func TestCommentsAddCmd_Empty(t *testing.T) {
	f := newFixture(t, config.DriverFile)
	p := f.srv.CreatePost(f.bob.ID, "post", true)
	f.login(t)

	_, err := f.run(t, &CommentsAddCmd{PostID: p.ID, Content: ""})
	require.ErrorIs(t, err, feed.ErrEmptyContent)
	assert.Equal(t, 0, f.srv.Calls(http.MethodPost, "comments/create/"))
}

func TestCommentsDeleteCmd_PostAuthorMayDelete(t *testing.T) {
	f := newFixture(t, config.DriverFile)
	p := f.srv.CreatePost(f.alice.ID, "alice's post", true)
	c := f.srv.CreateComment(f.bob.ID, p.ID, "spam")
	f.login(t)

	f.mustRun(t, &CommentsDeleteCmd{PostID: p.ID, ID: c.ID})
	_, ok := f.srv.Comment(c.ID)
	assert.False(t, ok)
}

func TestCommentsLikeCmd(t *testing.T) {
	f := newFixture(t, config.DriverFile)
	p := f.srv.CreatePost(f.bob.ID, "post", true)
	c := f.srv.CreateComment(f.bob.ID, p.ID, "a comment")
	f.login(t)

	out := f.mustRun(t, &CommentsLikeCmd{PostID: p.ID, ID: c.ID})
	assert.Equal(t, "Liked comment "+itoa(c.ID)+" (1 like)\n", out)

	got, _ := f.srv.Comment(c.ID)
	assert.Equal(t, []int64{f.alice.ID}, got.Likes)
}

func TestRepliesCmds(t *testing.T) {
	f := newFixture(t, config.DriverFile)
	p := f.srv.CreatePost(f.bob.ID, "post", true)
	c := f.srv.CreateComment(f.bob.ID, p.ID, "a comment")
	f.login(t)

	out := f.mustRun(t, &RepliesListCmd{CommentID: c.ID, Width: 60})
	assert.Equal(t, "No replies to comment "+itoa(c.ID)+".\n", out)

	out = f.mustRun(t, &RepliesAddCmd{CommentID: c.ID, Content: "agreed"})
	require.Regexp(t, `^Added reply \d+ to comment \d+\n$`, out)
	id, err := strconv.ParseInt(strings.Fields(out)[2], 10, 64)
	require.NoError(t, err)

	out = f.mustRun(t, &RepliesLikeCmd{CommentID: c.ID, ID: id})
	assert.Equal(t, "Liked reply "+itoa(id)+" (1 like)\n", out)

	out = f.mustRun(t, &RepliesListCmd{CommentID: c.ID, Width: 60})
	assert.Contains(t, out, "agreed")
	assert.Contains(t, out, "1*")
}

func TestRepliesAddCmd_Empty(t *testing.T) {
	f := newFixture(t, config.DriverFile)
	p := f.srv.CreatePost(f.bob.ID, "post", true)
	c := f.srv.CreateComment(f.bob.ID, p.ID, "a comment")
	f.login(t)

	_, err := f.run(t, &RepliesAddCmd{CommentID: c.ID, Content: " \n"})
	require.ErrorIs(t, err, feed.ErrEmptyContent)
}
