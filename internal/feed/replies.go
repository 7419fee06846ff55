package feed

import (
	"context"

	"github.com/wolfeidau/murmur/internal/models"
	"github.com/wolfeidau/murmur/internal/optimistic"
	"github.com/wolfeidau/murmur/internal/session"
)

// Reply is a sub-comment as the current user sees it.
type Reply struct {
	Entry
	CommentID int64
}

func NewReply(sc models.SubComment, viewer int64) Reply {
	return Reply{
		Entry:     newEntry(sc.ID, sc.Author, sc.Content, sc.CreatedAt, sc.Likes, viewer),
		CommentID: sc.Comment,
	}
}

func replyID(r Reply) int64 { return r.ID }

// ReplySection lists the replies to one comment, newest first.
type ReplySection struct {
	view
	api       CommentsAPI
	commentID int64
	list      *optimistic.List[Reply]
}

func NewReplySection(sess *session.Store, api CommentsAPI, commentID int64, opts ...Option) (*ReplySection, error) {
	v, err := newView(sess, opts)
	if err != nil {
		return nil, err
	}
	return &ReplySection{
		view:      v,
		api:       api,
		commentID: commentID,
		list:      newList(replyID, v.opts),
	}, nil
}

func (s *ReplySection) CommentID() int64 { return s.commentID }

func (s *ReplySection) Load(ctx context.Context) error {
	ctx, done, err := s.scope(ctx)
	if err != nil {
		return err
	}
	defer done()

	replies, err := s.api.ListSubComments(ctx, s.commentID)
	if err != nil {
		return err
	}

	viewer := s.viewer()
	items := make([]Reply, 0, len(replies))
	for _, r := range replies {
		items = append(items, NewReply(r, viewer))
	}
	s.list.Reset(items)
	return nil
}

func (s *ReplySection) Replies() []Reply {
	return s.list.Sorted(optimistic.Comparator(func(r Reply) optimistic.SortKey { return r.sortKey() }, optimistic.ByRecent))
}

func (s *ReplySection) Get(id int64) (Reply, bool) {
	return s.list.Get(id)
}

func (s *ReplySection) Add(ctx context.Context, content string) (Reply, error) {
	if err := checkContent(content); err != nil {
		return Reply{}, err
	}
	ctx, done, err := s.scope(ctx)
	if err != nil {
		return Reply{}, err
	}
	defer done()

	created, err := s.api.CreateSubComment(ctx, s.commentID, models.SubCommentInput{Content: content})
	if err != nil {
		return Reply{}, err
	}

	item := NewReply(*created, s.viewer())
	s.list.Prepend(item)
	return item, nil
}

func (s *ReplySection) Like(ctx context.Context, id int64) error {
	if _, err := s.requireViewer(); err != nil {
		return err
	}
	ctx, done, err := s.scope(ctx)
	if err != nil {
		return err
	}
	defer done()

	return s.list.Update(ctx, "reply.like", id, func(r *Reply) error {
		r.ToggleLike()
		return nil
	}, func(ctx context.Context) (*Reply, error) {
		_, err := s.api.LikeSubComment(ctx, id)
		return nil, err
	})
}
