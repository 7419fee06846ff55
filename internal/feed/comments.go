package feed

import (
	"context"
	"sync"

	"github.com/wolfeidau/murmur/internal/models"
	"github.com/wolfeidau/murmur/internal/optimistic"
	"github.com/wolfeidau/murmur/internal/session"
)

// CommentsAPI is the subset of the API client comment and reply sections use.
type CommentsAPI interface {
	ListComments(ctx context.Context, postID int64) ([]models.Comment, error)
	CreateComment(ctx context.Context, in models.CommentInput) (*models.Comment, error)
	UpdateComment(ctx context.Context, id int64, in models.CommentInput) (*models.Comment, error)
	DeleteComment(ctx context.Context, id int64) error
	LikeComment(ctx context.Context, id int64) (*models.Message, error)
	ListSubComments(ctx context.Context, commentID int64) ([]models.SubComment, error)
	CreateSubComment(ctx context.Context, commentID int64, in models.SubCommentInput) (*models.SubComment, error)
	LikeSubComment(ctx context.Context, id int64) (*models.Message, error)
}

// Ranking selects the display order of comments.
type Ranking int

const (
	RankRecent Ranking = iota // newest first
	RankTop                   // most liked first, then newest
)

func (r Ranking) order() func(a, b optimistic.SortKey) int {
	if r == RankTop {
		return optimistic.ByTop
	}
	return optimistic.ByRecent
}

// Comment is a comment as the current user sees it.
type Comment struct {
	Entry
	PostID int64
}

func NewComment(c models.Comment, viewer int64) Comment {
	return Comment{
		Entry:  newEntry(c.ID, c.Author, c.Content, c.CreatedAt, c.Likes, viewer),
		PostID: c.Post,
	}
}

func commentID(c Comment) int64 { return c.ID }

// CommentSection lists and edits the comments of one post. At most one
// comment has its replies expanded at a time.
type CommentSection struct {
	view
	api    CommentsAPI
	postID int64
	list   *optimistic.List[Comment]

	mu       sync.RWMutex
	ranking  Ranking
	expanded int64
}

func NewCommentSection(sess *session.Store, api CommentsAPI, postID int64, opts ...Option) (*CommentSection, error) {
	v, err := newView(sess, opts)
	if err != nil {
		return nil, err
	}
	return &CommentSection{
		view:   v,
		api:    api,
		postID: postID,
		list:   newList(commentID, v.opts),
	}, nil
}

func (s *CommentSection) PostID() int64 { return s.postID }

func (s *CommentSection) Load(ctx context.Context) error {
	ctx, done, err := s.scope(ctx)
	if err != nil {
		return err
	}
	defer done()

	comments, err := s.api.ListComments(ctx, s.postID)
	if err != nil {
		return err
	}

	viewer := s.viewer()
	items := make([]Comment, 0, len(comments))
	for _, c := range comments {
		items = append(items, NewComment(c, viewer))
	}
	s.list.Reset(items)
	return nil
}

func (s *CommentSection) SetRanking(r Ranking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ranking = r
}

// Comments returns the comments in the current ranking.
func (s *CommentSection) Comments() []Comment {
	s.mu.RLock()
	ranking := s.ranking
	s.mu.RUnlock()

	return s.list.Sorted(optimistic.Comparator(func(c Comment) optimistic.SortKey { return c.sortKey() }, ranking.order()))
}

func (s *CommentSection) Get(id int64) (Comment, bool) {
	return s.list.Get(id)
}

func (s *CommentSection) Len() int {
	return s.list.Len()
}

// ToggleExpanded expands id's replies, collapsing any other comment, or
// collapses id if it is already expanded. It returns the expanded id, zero for none.
func (s *CommentSection) ToggleExpanded(id int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expanded == id {
		s.expanded = 0
	} else {
		s.expanded = id
	}
	return s.expanded
}

func (s *CommentSection) Expanded() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expanded
}

// Add posts a comment and prepends the server's copy.
func (s *CommentSection) Add(ctx context.Context, content string) (Comment, error) {
	if err := checkContent(content); err != nil {
		return Comment{}, err
	}
	ctx, done, err := s.scope(ctx)
	if err != nil {
		return Comment{}, err
	}
	defer done()

	created, err := s.api.CreateComment(ctx, models.CommentInput{Post: s.postID, Content: content})
	if err != nil {
		return Comment{}, err
	}

	item := NewComment(*created, s.viewer())
	s.list.Prepend(item)
	return item, nil
}

func (s *CommentSection) Edit(ctx context.Context, id int64, content string) error {
	if err := checkContent(content); err != nil {
		return err
	}
	ctx, done, err := s.scope(ctx)
	if err != nil {
		return err
	}
	defer done()

	viewer := s.viewer()
	return s.list.Update(ctx, "comment.edit", id, func(c *Comment) error {
		c.Content = content
		return nil
	}, func(ctx context.Context) (*Comment, error) {
		updated, err := s.api.UpdateComment(ctx, id, models.CommentInput{Post: s.postID, Content: content})
		if err != nil {
			return nil, err
		}
		item := NewComment(*updated, viewer)
		return &item, nil
	})
}

func (s *CommentSection) Delete(ctx context.Context, id int64) error {
	ctx, done, err := s.scope(ctx)
	if err != nil {
		return err
	}
	defer done()

	err = s.list.Remove(ctx, "comment.delete", id, func(ctx context.Context) error {
		return s.api.DeleteComment(ctx, id)
	})
	if err == nil {
		s.mu.Lock()
		if s.expanded == id {
			s.expanded = 0
		}
		s.mu.Unlock()
	}
	return err
}

// Like toggles the current user's like on a comment.
func (s *CommentSection) Like(ctx context.Context, id int64) error {
	if _, err := s.requireViewer(); err != nil {
		return err
	}
	ctx, done, err := s.scope(ctx)
	if err != nil {
		return err
	}
	defer done()

	return s.list.Update(ctx, "comment.like", id, func(c *Comment) error {
		c.ToggleLike()
		return nil
	}, func(ctx context.Context) (*Comment, error) {
		_, err := s.api.LikeComment(ctx, id)
		return nil, err
	})
}

// Replies opens the reply section of a comment in this section. It shares the
// section's session and options and is closed when the section is.
func (s *CommentSection) Replies(commentID int64) (*ReplySection, error) {
	if s.ctx.Err() != nil {
		return nil, ErrClosed
	}
	if _, ok := s.list.Get(commentID); !ok {
		return nil, optimistic.ErrNotFound
	}
	v := s.child()
	return &ReplySection{
		view:      v,
		api:       s.api,
		commentID: commentID,
		list:      newList(replyID, v.opts),
	}, nil
}
