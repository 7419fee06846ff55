package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/wolfeidau/murmur/internal/feed"
	"github.com/wolfeidau/murmur/internal/util"
)

// CommentsCmd groups the comment operations. Every subcommand names the post
// the comment belongs to.
type CommentsCmd struct {
	List   CommentsListCmd   `cmd:"" help:"List the comments on a post"`
	Add    CommentsAddCmd    `cmd:"" help:"Comment on a post"`
	Edit   CommentsEditCmd   `cmd:"" help:"Replace a comment's content"`
	Delete CommentsDeleteCmd `cmd:"" help:"Delete a comment"`
	Like   CommentsLikeCmd   `cmd:"" help:"Like or unlike a comment"`
}

func (a *app) loadComments(ctx context.Context, postID int64) (*feed.CommentSection, error) {
	section, err := feed.NewCommentSection(a.session, a.client, postID, a.options()...)
	if err != nil {
		return nil, err
	}
	if err := section.Load(ctx); err != nil {
		section.Close()
		return nil, fmt.Errorf("failed to load comments for post %d: %w", postID, err)
	}
	return section, nil
}

type CommentsListCmd struct {
	PostID  int64 `arg:"" help:"Post ID"`
	Top     bool  `help:"Most liked first instead of newest first"`
	Replies int64 `help:"Also list the replies to this comment"`
	Width   int   `help:"Maximum width of the comment column" default:"60"`
}

func (c *CommentsListCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.withApp(ctx, func(a *app) error {
		section, err := a.loadComments(ctx, c.PostID)
		if err != nil {
			return err
		}
		defer section.Close()

		if c.Top {
			section.SetRanking(feed.RankTop)
		}

		comments := section.Comments()
		if len(comments) == 0 {
			fmt.Fprintf(a.out, "No comments on post %d.\n", c.PostID)
			return nil
		}

		now := time.Now()
		entries := make([]feed.Entry, 0, len(comments))
		for _, cm := range comments {
			entries = append(entries, cm.Entry)
		}
		printEntries(a.out, "COMMENT", entries, c.Width, now)
		fmt.Fprintf(a.out, "\n%s\n", util.Plural(section.Len(), "comment", "comments"))

		if c.Replies == 0 {
			return nil
		}
		section.ToggleExpanded(c.Replies)
		replies, err := section.Replies(section.Expanded())
		if err != nil {
			return err
		}
		defer replies.Close()
		if err := replies.Load(ctx); err != nil {
			return fmt.Errorf("failed to load replies: %w", err)
		}

		fmt.Fprintf(a.out, "\nReplies to comment %d:\n", c.Replies)
		printReplies(a.out, replies.Replies(), c.Width, now)
		return nil
	})
}

type CommentsAddCmd struct {
	PostID  int64  `arg:"" help:"Post ID"`
	Content string `arg:"" help:"Comment text"`
}

func (c *CommentsAddCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.withApp(ctx, func(a *app) error {
		section, err := feed.NewCommentSection(a.session, a.client, c.PostID, a.options()...)
		if err != nil {
			return err
		}
		defer section.Close()

		cm, err := section.Add(ctx, c.Content)
		if err != nil {
			return fmt.Errorf("failed to comment on post %d: %w", c.PostID, err)
		}
		fmt.Fprintf(a.out, "Added comment %d to post %d\n", cm.ID, c.PostID)
		return nil
	})
}

type CommentsEditCmd struct {
	PostID  int64  `arg:"" help:"Post ID"`
	ID      int64  `arg:"" help:"Comment ID"`
	Content string `arg:"" help:"New text"`
}

func (c *CommentsEditCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.withApp(ctx, func(a *app) error {
		section, err := a.loadComments(ctx, c.PostID)
		if err != nil {
			return err
		}
		defer section.Close()

		if err := section.Edit(ctx, c.ID, c.Content); err != nil {
			return fmt.Errorf("failed to edit comment %d: %w", c.ID, err)
		}
		fmt.Fprintf(a.out, "Updated comment %d\n", c.ID)
		return nil
	})
}

type CommentsDeleteCmd struct {
	PostID int64 `arg:"" help:"Post ID"`
	ID     int64 `arg:"" help:"Comment ID"`
}

func (c *CommentsDeleteCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.withApp(ctx, func(a *app) error {
		section, err := a.loadComments(ctx, c.PostID)
		if err != nil {
			return err
		}
		defer section.Close()

		if err := section.Delete(ctx, c.ID); err != nil {
			return fmt.Errorf("failed to delete comment %d: %w", c.ID, err)
		}
		fmt.Fprintf(a.out, "Deleted comment %d\n", c.ID)
		return nil
	})
}

type CommentsLikeCmd struct {
	PostID int64 `arg:"" help:"Post ID"`
	ID     int64 `arg:"" help:"Comment ID"`
}

func (c *CommentsLikeCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.withApp(ctx, func(a *app) error {
		section, err := a.loadComments(ctx, c.PostID)
		if err != nil {
			return err
		}
		defer section.Close()

		if err := section.Like(ctx, c.ID); err != nil {
			return fmt.Errorf("failed to like comment %d: %w", c.ID, err)
		}
		cm, _ := section.Get(c.ID)
		fmt.Fprintf(a.out, "%s comment %d (%s)\n", likeVerb(cm.Liked), c.ID, util.Plural(cm.LikeCount, "like", "likes"))
		return nil
	})
}

// RepliesCmd groups the reply operations on a single comment.
type RepliesCmd struct {
	List RepliesListCmd `cmd:"" help:"List the replies to a comment"`
	Add  RepliesAddCmd  `cmd:"" help:"Reply to a comment"`
	Like RepliesLikeCmd `cmd:"" help:"Like or unlike a reply"`
}

func (a *app) loadReplies(ctx context.Context, commentID int64) (*feed.ReplySection, error) {
	section, err := feed.NewReplySection(a.session, a.client, commentID, a.options()...)
	if err != nil {
		return nil, err
	}
	if err := section.Load(ctx); err != nil {
		section.Close()
		return nil, fmt.Errorf("failed to load replies to comment %d: %w", commentID, err)
	}
	return section, nil
}

type RepliesListCmd struct {
	CommentID int64 `arg:"" help:"Comment ID"`
	Width     int   `help:"Maximum width of the reply column" default:"60"`
}

func (c *RepliesListCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.withApp(ctx, func(a *app) error {
		section, err := a.loadReplies(ctx, c.CommentID)
		if err != nil {
			return err
		}
		defer section.Close()

		replies := section.Replies()
		if len(replies) == 0 {
			fmt.Fprintf(a.out, "No replies to comment %d.\n", c.CommentID)
			return nil
		}
		printReplies(a.out, replies, c.Width, time.Now())
		return nil
	})
}

type RepliesAddCmd struct {
	CommentID int64  `arg:"" help:"Comment ID"`
	Content   string `arg:"" help:"Reply text"`
}

func (c *RepliesAddCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.withApp(ctx, func(a *app) error {
		section, err := feed.NewReplySection(a.session, a.client, c.CommentID, a.options()...)
		if err != nil {
			return err
		}
		defer section.Close()

		r, err := section.Add(ctx, c.Content)
		if err != nil {
			return fmt.Errorf("failed to reply to comment %d: %w", c.CommentID, err)
		}
		fmt.Fprintf(a.out, "Added reply %d to comment %d\n", r.ID, c.CommentID)
		return nil
	})
}

type RepliesLikeCmd struct {
	CommentID int64 `arg:"" help:"Comment ID"`
	ID        int64 `arg:"" help:"Reply ID"`
}

func (c *RepliesLikeCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.withApp(ctx, func(a *app) error {
		section, err := a.loadReplies(ctx, c.CommentID)
		if err != nil {
			return err
		}
		defer section.Close()

		if err := section.Like(ctx, c.ID); err != nil {
			return fmt.Errorf("failed to like reply %d: %w", c.ID, err)
		}
		r, _ := section.Get(c.ID)
		fmt.Fprintf(a.out, "%s reply %d (%s)\n", likeVerb(r.Liked), c.ID, util.Plural(r.LikeCount, "like", "likes"))
		return nil
	})
}

func likeVerb(liked bool) string {
	if liked {
		return "Liked"
	}
	return "Unliked"
}

func printReplies(out io.Writer, replies []feed.Reply, width int, now time.Time) {
	entries := make([]feed.Entry, 0, len(replies))
	for _, r := range replies {
		entries = append(entries, r.Entry)
	}
	printEntries(out, "REPLY", entries, width, now)
}

func printEntries(out io.Writer, column string, entries []feed.Entry, width int, now time.Time) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tAUTHOR\t%s\tLIKES\tPOSTED\n", column)
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			e.ID,
			e.Author.Username,
			util.Truncate(e.Content, width),
			marked(e.LikeCount, e.Liked),
			util.Ago(e.CreatedAt, now),
		)
	}
	w.Flush()
}
