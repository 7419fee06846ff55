package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfeidau/murmur/internal/models"
	"github.com/wolfeidau/murmur/internal/optimistic"
)

func newLoadedSection(t *testing.T, f *fixture, postID int64) *CommentSection {
	t.Helper()
	s, err := NewCommentSection(f.session, f.client, postID)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.Load(context.Background()))
	return s
}

func commentIDs(comments []Comment) []int64 {
	ids := make([]int64, len(comments))
	for i, c := range comments {
		ids[i] = c.ID
	}
	return ids
}

func TestCommentSection_Ranking(t *testing.T) {
	f := newFixture(t)
	p := f.srv.CreatePost(f.bob.ID, "post", true)

	oldest := f.srv.CreateComment(f.bob.ID, p.ID, "oldest")
	popular := f.srv.CreateComment(f.bob.ID, p.ID, "popular")
	newest := f.srv.CreateComment(f.bob.ID, p.ID, "newest")
	f.srv.LikeCommentAs(popular.ID, f.alice.ID)
	f.srv.LikeCommentAs(popular.ID, f.bob.ID)
	f.srv.LikeCommentAs(oldest.ID, f.bob.ID)

	s := newLoadedSection(t, f, p.ID)

	assert.Equal(t, []int64{newest.ID, popular.ID, oldest.ID}, commentIDs(s.Comments()))

	s.SetRanking(RankTop)
	assert.Equal(t, []int64{popular.ID, oldest.ID, newest.ID}, commentIDs(s.Comments()))

	got, _ := s.Get(popular.ID)
	assert.True(t, got.Liked)
	assert.Equal(t, 2, got.LikeCount)
}

func TestCommentSection_AddAndEdit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.srv.CreatePost(f.bob.ID, "post", true)
	s := newLoadedSection(t, f, p.ID)

	_, err := s.Add(ctx, "")
	require.ErrorIs(t, err, ErrEmptyContent)
	require.ErrorIs(t, err, models.ErrInvalidRequest)
	assert.Zero(t, f.srv.Calls(http.MethodPost, "comments/create/"))

	c, err := s.Add(ctx, "nice post")
	require.NoError(t, err)
	assert.Equal(t, p.ID, c.PostID)
	assert.Equal(t, 1, s.Len())

	require.NoError(t, s.Edit(ctx, c.ID, "very nice post"))
	got, _ := s.Get(c.ID)
	assert.Equal(t, "very nice post", got.Content)
}

func TestCommentSection_LikeRollback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.srv.CreatePost(f.bob.ID, "post", true)
	c := f.srv.CreateComment(f.bob.ID, p.ID, "comment")
	s := newLoadedSection(t, f, p.ID)

	path := fmt.Sprintf("comments/%d/like/", c.ID)
	f.srv.Fail(http.MethodPost, path, http.StatusBadGateway, 1)

	require.Error(t, s.Like(ctx, c.ID))
	got, _ := s.Get(c.ID)
	assert.Equal(t, 0, got.LikeCount)
	assert.False(t, got.Liked)

	require.NoError(t, s.Like(ctx, c.ID))
	got, _ = s.Get(c.ID)
	assert.Equal(t, 1, got.LikeCount)
}

func TestCommentSection_DuplicateLikeWhilePending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.srv.CreatePost(f.bob.ID, "post", true)
	c := f.srv.CreateComment(f.bob.ID, p.ID, "comment")
	s := newLoadedSection(t, f, p.ID)

	path := fmt.Sprintf("comments/%d/like/", c.ID)
	entered, release := f.srv.Hold(http.MethodPost, path, 0)
	defer release()

	result := make(chan error, 1)
	go func() { result <- s.Like(ctx, c.ID) }()
	<-entered

	require.ErrorIs(t, s.Like(ctx, c.ID), optimistic.ErrPending)
	require.ErrorIs(t, s.Delete(ctx, c.ID), optimistic.ErrPending)

	release()
	require.NoError(t, <-result)
	assert.Equal(t, 1, f.srv.Calls(http.MethodPost, path))

	got, _ := s.Get(c.ID)
	assert.Equal(t, 1, got.LikeCount)
}

func TestCommentSection_Expansion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.srv.CreatePost(f.bob.ID, "post", true)
	c1 := f.srv.CreateComment(f.bob.ID, p.ID, "one")
	c2 := f.srv.CreateComment(f.bob.ID, p.ID, "two")
	s := newLoadedSection(t, f, p.ID)

	assert.Zero(t, s.Expanded())
	assert.Equal(t, c1.ID, s.ToggleExpanded(c1.ID))
	assert.Equal(t, c2.ID, s.ToggleExpanded(c2.ID))
	assert.Equal(t, int64(0), s.ToggleExpanded(c2.ID))

	s.ToggleExpanded(c1.ID)
	f.srv.CreateSubComment(f.alice.ID, c1.ID, "hi")
	require.NoError(t, s.Delete(ctx, c1.ID))
	assert.Zero(t, s.Expanded())
}

func TestCommentSection_DeleteByPostAuthor(t *testing.T) {
	f := newFixture(t)
	p := f.srv.CreatePost(f.alice.ID, "mine", true)
	c := f.srv.CreateComment(f.bob.ID, p.ID, "bob's comment")
	s := newLoadedSection(t, f, p.ID)

	require.NoError(t, s.Delete(context.Background(), c.ID))
	assert.Zero(t, s.Len())
}

func TestReplySection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.srv.CreatePost(f.bob.ID, "post", true)
	c := f.srv.CreateComment(f.bob.ID, p.ID, "comment")
	existing := f.srv.CreateSubComment(f.bob.ID, c.ID, "first reply")
	s := newLoadedSection(t, f, p.ID)

	_, err := s.Replies(9999)
	require.ErrorIs(t, err, optimistic.ErrNotFound)

	replies, err := s.Replies(c.ID)
	require.NoError(t, err)
	defer replies.Close()
	require.NoError(t, replies.Load(ctx))
	require.Len(t, replies.Replies(), 1)

	_, err = replies.Add(ctx, " ")
	require.ErrorIs(t, err, ErrEmptyContent)

	added, err := replies.Add(ctx, "second reply")
	require.NoError(t, err)
	assert.Equal(t, c.ID, added.CommentID)
	assert.Equal(t, []int64{added.ID, existing.ID}, []int64{replies.Replies()[0].ID, replies.Replies()[1].ID})

	require.NoError(t, replies.Like(ctx, existing.ID))
	got, _ := replies.Get(existing.ID)
	assert.Equal(t, 1, got.LikeCount)
	assert.True(t, got.Liked)

	f.srv.Fail(http.MethodPost, fmt.Sprintf("subcomments/%d/like/", existing.ID), http.StatusInternalServerError, 1)
	require.Error(t, replies.Like(ctx, existing.ID))
	got, _ = replies.Get(existing.ID)
	assert.Equal(t, 1, got.LikeCount)
	assert.True(t, got.Liked)
}

func TestReplySection_ClosedWithCommentSection(t *testing.T) {
	f := newFixture(t)
	p := f.srv.CreatePost(f.bob.ID, "post", true)
	c := f.srv.CreateComment(f.bob.ID, p.ID, "comment")
	s := newLoadedSection(t, f, p.ID)

	replies, err := s.Replies(c.ID)
	require.NoError(t, err)
	defer replies.Close()

	entered, release := f.srv.Hold(http.MethodGet, fmt.Sprintf("comments/%d/subcomments/list/", c.ID), 0)
	defer release()

	result := make(chan error, 1)
	go func() { result <- replies.Load(context.Background()) }()
	<-entered

	s.Close()
	err = <-result
	require.True(t, errors.Is(err, context.Canceled), "got %v", err)

	require.ErrorIs(t, replies.Load(context.Background()), ErrClosed)

	_, err = s.Replies(c.ID)
	require.ErrorIs(t, err, ErrClosed)
}

func TestReplySection_CloseLeavesCommentSectionOpen(t *testing.T) {
	f := newFixture(t)
	p := f.srv.CreatePost(f.bob.ID, "post", true)
	c := f.srv.CreateComment(f.bob.ID, p.ID, "comment")
	s := newLoadedSection(t, f, p.ID)

	replies, err := s.Replies(c.ID)
	require.NoError(t, err)
	replies.Close()

	require.ErrorIs(t, replies.Load(context.Background()), ErrClosed)
	require.NoError(t, s.Load(context.Background()))
}
