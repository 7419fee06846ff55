// Package feed holds the client side views of the social API: the posts feed,
// a post's comment section, a comment's replies and the profile directory.
//
// Every view keeps its entities in an optimistic.List, so likes, edits,
// deletes and follows show immediately and are rolled back if the API rejects
// them. A view is bound to a session that has finished loading and owns a
// context that Close cancels, aborting any request still in flight.
package feed

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/wolfeidau/murmur/internal/client"
	"github.com/wolfeidau/murmur/internal/models"
	"github.com/wolfeidau/murmur/internal/optimistic"
	"github.com/wolfeidau/murmur/internal/session"
)

var (
	// ErrEmptyContent is returned, without calling the API, for blank posts, comments and replies.
	ErrEmptyContent = fmt.Errorf("%w: content must not be empty", models.ErrInvalidRequest)

	// ErrReactionConflict is returned when liking a disliked post or disliking a liked one.
	ErrReactionConflict = fmt.Errorf("%w: remove the opposite reaction first", models.ErrInvalidRequest)

	// ErrSessionLoading is returned when a view is opened before the session has bootstrapped.
	ErrSessionLoading = errors.New("session is still loading")

	// ErrClosed is returned by operations on a closed view.
	ErrClosed = errors.New("view closed")
)

// Entry is the part every likeable entity shares.
type Entry struct {
	ID        int64
	Author    models.User
	Content   string
	CreatedAt time.Time
	LikeCount int
	Liked     bool
}

func newEntry(id int64, author models.User, content string, createdAt time.Time, likes []int64, viewer int64) Entry {
	return Entry{
		ID:        id,
		Author:    author,
		Content:   content,
		CreatedAt: createdAt,
		LikeCount: len(likes),
		Liked:     viewer != 0 && slices.Contains(likes, viewer),
	}
}

// ToggleLike flips Liked and moves LikeCount by one, never below zero.
func (e *Entry) ToggleLike() {
	if e.Liked {
		e.Liked = false
		e.LikeCount = max(0, e.LikeCount-1)
		return
	}
	e.Liked = true
	e.LikeCount++
}

func (e Entry) sortKey() optimistic.SortKey {
	return optimistic.SortKey{ID: e.ID, CreatedAt: e.CreatedAt, Likes: e.LikeCount}
}

type options struct {
	observer optimistic.Observer
}

// Option configures a view.
type Option func(*options)

// WithObserver reports every optimistic mutation made by the view.
func WithObserver(o optimistic.Observer) Option {
	return func(opts *options) { opts.observer = o }
}

func newList[T any](idOf func(T) int64, opts options) *optimistic.List[T] {
	if opts.observer == nil {
		return optimistic.NewList(idOf)
	}
	return optimistic.NewList(idOf, optimistic.WithObserver[T](opts.observer))
}

// view is embedded by every view type.
type view struct {
	session *session.Store
	ctx     context.Context
	cancel  context.CancelFunc
	opts    options
}

func newView(sess *session.Store, opts []Option) (view, error) {
	select {
	case <-sess.Ready():
	default:
		return view{}, ErrSessionLoading
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return view{session: sess, ctx: ctx, cancel: cancel, opts: o}, nil
}

// Close cancels in-flight requests. Later operations return ErrClosed.
func (v *view) Close() {
	v.cancel()
}

// child returns a view that is closed along with v.
func (v *view) child() view {
	ctx, cancel := context.WithCancel(v.ctx)
	return view{session: v.session, ctx: ctx, cancel: cancel, opts: v.opts}
}

// scope derives a context cancelled by either ctx or Close.
func (v *view) scope(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if v.ctx.Err() != nil {
		return nil, nil, ErrClosed
	}
	scoped, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(v.ctx, cancel)
	return scoped, func() {
		stop()
		cancel()
	}, nil
}

// viewer is the logged in user's id, zero when logged out.
func (v *view) viewer() int64 {
	id, ok := v.session.Identity()
	if !ok {
		return 0
	}
	return id.ID
}

func (v *view) requireViewer() (int64, error) {
	id := v.viewer()
	if id == 0 {
		return 0, client.ErrNotAuthenticated
	}
	return id, nil
}

func checkContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}
	return nil
}
