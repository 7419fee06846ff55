package feed

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/wolfeidau/murmur/internal/models"
	"github.com/wolfeidau/murmur/internal/optimistic"
	"github.com/wolfeidau/murmur/internal/session"
)

// PostsAPI is the subset of the API client the posts feed uses.
type PostsAPI interface {
	ListPosts(ctx context.Context) ([]models.Post, error)
	CreatePost(ctx context.Context, in models.PostInput) (*models.Post, error)
	UpdatePost(ctx context.Context, id int64, in models.PostInput) (*models.Post, error)
	DeletePost(ctx context.Context, id int64) error
	LikePost(ctx context.Context, id int64) (*models.Message, error)
	DislikePost(ctx context.Context, id int64) (*models.Message, error)
	Repost(ctx context.Context, in models.RepostInput) (*models.Repost, error)
	ListComments(ctx context.Context, postID int64) ([]models.Comment, error)
}

// Post is a feed entry as the current user sees it.
type Post struct {
	Entry
	Image        string
	IsPublic     bool
	UpdatedAt    time.Time
	RepostedFrom *int64
	DislikeCount int
	Disliked     bool
	CommentCount int
}

// NewPost derives the viewer specific counters from the wire representation.
func NewPost(p models.Post, viewer int64) Post {
	return Post{
		Entry:        newEntry(p.ID, p.Author, p.Content, p.CreatedAt, p.Likes, viewer),
		Image:        p.Image,
		IsPublic:     p.IsPublic,
		UpdatedAt:    p.UpdatedAt,
		RepostedFrom: p.RepostedFrom,
		DislikeCount: len(p.Dislikes),
		Disliked:     viewer != 0 && p.DislikedBy(viewer),
	}
}

// ToggleDislike flips Disliked and moves DislikeCount by one, never below zero.
func (p *Post) ToggleDislike() {
	if p.Disliked {
		p.Disliked = false
		p.DislikeCount = max(0, p.DislikeCount-1)
		return
	}
	p.Disliked = true
	p.DislikeCount++
}

func postID(p Post) int64 { return p.ID }

// PostsFeed is the home feed.
type PostsFeed struct {
	view
	api  PostsAPI
	list *optimistic.List[Post]

	mu     sync.RWMutex
	search string
	author string
}

func NewPostsFeed(sess *session.Store, api PostsAPI, opts ...Option) (*PostsFeed, error) {
	v, err := newView(sess, opts)
	if err != nil {
		return nil, err
	}
	return &PostsFeed{
		view: v,
		api:  api,
		list: newList(postID, v.opts),
	}, nil
}

// Load replaces the feed with the server's posts.
func (f *PostsFeed) Load(ctx context.Context) error {
	ctx, done, err := f.scope(ctx)
	if err != nil {
		return err
	}
	defer done()

	posts, err := f.api.ListPosts(ctx)
	if err != nil {
		return err
	}

	viewer := f.viewer()
	counts := f.commentCounts()

	items := make([]Post, 0, len(posts))
	for _, p := range posts {
		item := NewPost(p, viewer)
		item.CommentCount = counts[p.ID]
		items = append(items, item)
	}
	f.list.Reset(items)
	return nil
}

func (f *PostsFeed) commentCounts() map[int64]int {
	counts := map[int64]int{}
	for _, p := range f.list.Items() {
		counts[p.ID] = p.CommentCount
	}
	return counts
}

// LoadCommentCounts fetches the comment count of every listed post.
func (f *PostsFeed) LoadCommentCounts(ctx context.Context) error {
	ctx, done, err := f.scope(ctx)
	if err != nil {
		return err
	}
	defer done()

	for _, p := range f.list.Items() {
		comments, err := f.api.ListComments(ctx, p.ID)
		if err != nil {
			return err
		}
		if current, ok := f.list.Get(p.ID); ok {
			current.CommentCount = len(comments)
			f.list.Replace(current)
		}
	}
	return nil
}

// SetSearch filters Posts to those whose content or author username contains q, ignoring case.
func (f *PostsFeed) SetSearch(q string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.search = strings.ToLower(strings.TrimSpace(q))
}

// SetAuthor filters Posts to a single author's username. Empty clears the filter.
func (f *PostsFeed) SetAuthor(username string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.author = username
}

// Posts returns the visible posts newest first.
func (f *PostsFeed) Posts() []Post {
	f.mu.RLock()
	search, author := f.search, f.author
	f.mu.RUnlock()

	sorted := f.list.Sorted(optimistic.Comparator(func(p Post) optimistic.SortKey { return p.sortKey() }, optimistic.ByRecent))

	out := sorted[:0]
	for _, p := range sorted {
		if author != "" && p.Author.Username != author {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Content), search) &&
			!strings.Contains(strings.ToLower(p.Author.Username), search) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (f *PostsFeed) Get(id int64) (Post, bool) {
	return f.list.Get(id)
}

func (f *PostsFeed) IsPending(id int64) bool {
	return f.list.IsPending(id)
}

// Create publishes a post and prepends the server's copy.
func (f *PostsFeed) Create(ctx context.Context, content, image string, public bool) (Post, error) {
	if err := checkContent(content); err != nil {
		return Post{}, err
	}
	ctx, done, err := f.scope(ctx)
	if err != nil {
		return Post{}, err
	}
	defer done()

	created, err := f.api.CreatePost(ctx, models.PostInput{Content: content, Image: image, IsPublic: &public})
	if err != nil {
		return Post{}, err
	}

	item := NewPost(*created, f.viewer())
	f.list.Prepend(item)
	return item, nil
}

// Edit replaces a post's content optimistically.
func (f *PostsFeed) Edit(ctx context.Context, id int64, content string) error {
	if err := checkContent(content); err != nil {
		return err
	}
	ctx, done, err := f.scope(ctx)
	if err != nil {
		return err
	}
	defer done()

	viewer := f.viewer()
	return f.list.Update(ctx, "post.edit", id, func(p *Post) error {
		p.Content = content
		return nil
	}, func(ctx context.Context) (*Post, error) {
		updated, err := f.api.UpdatePost(ctx, id, models.PostInput{Content: content})
		if err != nil {
			return nil, err
		}
		return f.reconcile(*updated, viewer), nil
	})
}

// reconcile converts a server copy, keeping the locally known comment count.
func (f *PostsFeed) reconcile(p models.Post, viewer int64) *Post {
	item := NewPost(p, viewer)
	if current, ok := f.list.Get(p.ID); ok {
		item.CommentCount = current.CommentCount
	}
	return &item
}

// Delete removes a post optimistically, restoring it in place on failure.
func (f *PostsFeed) Delete(ctx context.Context, id int64) error {
	ctx, done, err := f.scope(ctx)
	if err != nil {
		return err
	}
	defer done()

	return f.list.Remove(ctx, "post.delete", id, func(ctx context.Context) error {
		return f.api.DeletePost(ctx, id)
	})
}

// Like toggles the current user's like. A disliked post must be un-disliked first.
func (f *PostsFeed) Like(ctx context.Context, id int64) error {
	if _, err := f.requireViewer(); err != nil {
		return err
	}
	ctx, done, err := f.scope(ctx)
	if err != nil {
		return err
	}
	defer done()

	return f.list.Update(ctx, "post.like", id, func(p *Post) error {
		if p.Disliked {
			return ErrReactionConflict
		}
		p.ToggleLike()
		return nil
	}, func(ctx context.Context) (*Post, error) {
		_, err := f.api.LikePost(ctx, id)
		return nil, err
	})
}

// Dislike toggles the current user's dislike. A liked post must be unliked first.
func (f *PostsFeed) Dislike(ctx context.Context, id int64) error {
	if _, err := f.requireViewer(); err != nil {
		return err
	}
	ctx, done, err := f.scope(ctx)
	if err != nil {
		return err
	}
	defer done()

	return f.list.Update(ctx, "post.dislike", id, func(p *Post) error {
		if p.Liked {
			return ErrReactionConflict
		}
		p.ToggleDislike()
		return nil
	}, func(ctx context.Context) (*Post, error) {
		_, err := f.api.DislikePost(ctx, id)
		return nil, err
	})
}

// Repost shares a post and reloads the feed so the new entry appears.
func (f *PostsFeed) Repost(ctx context.Context, id int64, content string) (*models.Repost, error) {
	if _, err := f.requireViewer(); err != nil {
		return nil, err
	}
	scoped, done, err := f.scope(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	repost, err := f.api.Repost(scoped, models.RepostInput{PostID: id, Content: content})
	if err != nil {
		return nil, err
	}
	return repost, f.Load(ctx)
}
