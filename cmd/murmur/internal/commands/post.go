package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfeidau/murmur/internal/feed"
	"github.com/wolfeidau/murmur/internal/util"
)

// PostCmd groups the post mutations.
type PostCmd struct {
	Create  PostCreateCmd  `cmd:"" help:"Publish a post"`
	Edit    PostEditCmd    `cmd:"" help:"Replace a post's content"`
	Delete  PostDeleteCmd  `cmd:"" help:"Delete a post"`
	Like    PostLikeCmd    `cmd:"" help:"Like or unlike a post"`
	Dislike PostDislikeCmd `cmd:"" help:"Dislike or remove a dislike from a post"`
	Repost  PostRepostCmd  `cmd:"" help:"Share a post"`
}

// loadFeed opens the posts feed and loads it so mutations can find their post.
func (a *app) loadFeed(ctx context.Context) (*feed.PostsFeed, error) {
	posts, err := feed.NewPostsFeed(a.session, a.client, a.options()...)
	if err != nil {
		return nil, err
	}
	if err := posts.Load(ctx); err != nil {
		posts.Close()
		return nil, fmt.Errorf("failed to load feed: %w", err)
	}
	return posts, nil
}

type PostCreateCmd struct {
	Content string `arg:"" help:"Post content"`
	Image   string `help:"Image URL to attach"`
	Private bool   `help:"Only visible to you"`
}

func (c *PostCreateCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.withApp(ctx, func(a *app) error {
		posts, err := feed.NewPostsFeed(a.session, a.client, a.options()...)
		if err != nil {
			return err
		}
		defer posts.Close()

		p, err := posts.Create(ctx, c.Content, c.Image, !c.Private)
		if err != nil {
			return fmt.Errorf("failed to create post: %w", err)
		}
		fmt.Fprintf(a.out, "Created post %d\n", p.ID)
		return nil
	})
}

type PostEditCmd struct {
	ID      int64  `arg:"" help:"Post ID"`
	Content string `arg:"" help:"New content"`
}

func (c *PostEditCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.withApp(ctx, func(a *app) error {
		posts, err := a.loadFeed(ctx)
		if err != nil {
			return err
		}
		defer posts.Close()

		if err := posts.Edit(ctx, c.ID, c.Content); err != nil {
			return fmt.Errorf("failed to edit post %d: %w", c.ID, err)
		}
		fmt.Fprintf(a.out, "Updated post %d\n", c.ID)
		return nil
	})
}

type PostDeleteCmd struct {
	ID int64 `arg:"" help:"Post ID"`
}

func (c *PostDeleteCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.withApp(ctx, func(a *app) error {
		posts, err := a.loadFeed(ctx)
		if err != nil {
			return err
		}
		defer posts.Close()

		if err := posts.Delete(ctx, c.ID); err != nil {
			return fmt.Errorf("failed to delete post %d: %w", c.ID, err)
		}
		fmt.Fprintf(a.out, "Deleted post %d\n", c.ID)
		return nil
	})
}

type PostLikeCmd struct {
	ID int64 `arg:"" help:"Post ID"`
}

func (c *PostLikeCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.withApp(ctx, func(a *app) error {
		posts, err := a.loadFeed(ctx)
		if err != nil {
			return err
		}
		defer posts.Close()

		if err := posts.Like(ctx, c.ID); err != nil {
			return fmt.Errorf("failed to like post %d: %w", c.ID, err)
		}
		p, _ := posts.Get(c.ID)
		fmt.Fprintf(a.out, "%s post %d (%s)\n", likeVerb(p.Liked), c.ID, util.Plural(p.LikeCount, "like", "likes"))
		return nil
	})
}

type PostDislikeCmd struct {
	ID int64 `arg:"" help:"Post ID"`
}

func (c *PostDislikeCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.withApp(ctx, func(a *app) error {
		posts, err := a.loadFeed(ctx)
		if err != nil {
			return err
		}
		defer posts.Close()

		if err := posts.Dislike(ctx, c.ID); err != nil {
			return fmt.Errorf("failed to dislike post %d: %w", c.ID, err)
		}
		p, _ := posts.Get(c.ID)
		verb := "Removed dislike from"
		if p.Disliked {
			verb = "Disliked"
		}
		fmt.Fprintf(a.out, "%s post %d (%s)\n", verb, c.ID, util.Plural(p.DislikeCount, "dislike", "dislikes"))
		return nil
	})
}

type PostRepostCmd struct {
	ID      int64  `arg:"" help:"Post ID to share"`
	Content string `arg:"" optional:"" help:"Text to add to the repost"`
}

func (c *PostRepostCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.withApp(ctx, func(a *app) error {
		posts, err := feed.NewPostsFeed(a.session, a.client, a.options()...)
		if err != nil {
			return err
		}
		defer posts.Close()

		if _, err := posts.Repost(ctx, c.ID, c.Content); err != nil {
			return fmt.Errorf("failed to repost %d: %w", c.ID, err)
		}
		fmt.Fprintf(a.out, "Reposted post %d\n\n", c.ID)

		items := posts.Posts()
		printPosts(a.out, items[:min(5, len(items))], 60, time.Now())
		return nil
	})
}
