package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/murmur/internal/client"
	"github.com/wolfeidau/murmur/internal/feed"
	"github.com/wolfeidau/murmur/internal/models"
	"github.com/wolfeidau/murmur/internal/util"
)

// FeedCmd prints the post feed, optionally refreshing it until interrupted.
type FeedCmd struct {
	Search   string        `help:"Only show posts whose content or author contains this text"`
	Author   string        `help:"Only show posts by this username"`
	Watch    bool          `help:"Watch for changes" default:"false"`
	Interval time.Duration `help:"Refresh interval when watching" default:"10s"`
	Width    int           `help:"Maximum width of the post column" default:"60"`
}

func (f *FeedCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.withApp(ctx, func(a *app) error {
		posts, err := feed.NewPostsFeed(a.session, a.client, a.options()...)
		if err != nil {
			return err
		}
		defer posts.Close()

		posts.SetSearch(f.Search)
		posts.SetAuthor(f.Author)

		// comment lists need a token, so anonymous feeds go without counts
		counts := a.session.State().IsAuthenticated

		if f.Watch {
			return f.watch(ctx, a.out, posts, counts)
		}
		if err := f.refresh(ctx, posts, counts); err != nil {
			return err
		}
		f.print(a.out, posts, time.Now())
		return nil
	})
}

func (f *FeedCmd) refresh(ctx context.Context, posts *feed.PostsFeed, counts bool) error {
	if err := posts.Load(ctx); err != nil {
		return fmt.Errorf("failed to load feed: %w", err)
	}
	if !counts {
		return nil
	}
	if err := posts.LoadCommentCounts(ctx); err != nil {
		return fmt.Errorf("failed to load comment counts: %w", err)
	}
	return nil
}

// watch reloads on every tick. Consecutive failures stretch the interval
// exponentially; the first success restores it.
func (f *FeedCmd) watch(ctx context.Context, out io.Writer, posts *feed.PostsFeed, counts bool) error {
	if f.Interval <= 0 {
		return fmt.Errorf("%w: --interval must be positive", models.ErrInvalidRequest)
	}

	fmt.Fprintln(out, "Watching feed (press Ctrl+C to stop)...")
	fmt.Fprintln(out)

	if err := f.refresh(ctx, posts, counts); err != nil {
		return err
	}
	f.print(out, posts, time.Now())

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = f.Interval
	retry.MaxInterval = 10 * f.Interval

	ticker := time.NewTicker(f.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := f.refresh(ctx, posts, counts); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				wait := retry.NextBackOff()
				log.Warn().Err(err).Dur("retry_in", wait).Msg("feed refresh failed")
				fmt.Fprintf(out, "Error updating feed: %s (retrying in %s)\n", client.Describe(err), wait.Round(time.Second))
				ticker.Reset(wait)
				continue
			}
			retry.Reset()
			ticker.Reset(f.Interval)

			fmt.Fprint(out, "\033[2J\033[H")
			fmt.Fprintf(out, "Feed (updated at %s)\n\n", time.Now().Format("15:04:05"))
			f.print(out, posts, time.Now())
		}
	}
}

func (f *FeedCmd) print(out io.Writer, posts *feed.PostsFeed, now time.Time) {
	items := posts.Posts()
	if len(items) == 0 {
		fmt.Fprintln(out, "No posts found.")
		return
	}
	printPosts(out, items, f.Width, now)
	fmt.Fprintf(out, "\n%s\n", util.Plural(len(items), "post", "posts"))
}

func printPosts(out io.Writer, posts []feed.Post, width int, now time.Time) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tAUTHOR\tPOST\tLIKES\tDISLIKES\tCOMMENTS\tPOSTED")
	for _, p := range posts {
		content := p.Content
		if p.RepostedFrom != nil {
			content = fmt.Sprintf("[repost of %d] %s", *p.RepostedFrom, content)
		}
		if !p.IsPublic {
			content = "[private] " + content
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%s\n",
			p.ID,
			p.Author.Username,
			util.Truncate(content, width),
			marked(p.LikeCount, p.Liked),
			marked(p.DislikeCount, p.Disliked),
			p.CommentCount,
			util.Ago(p.CreatedAt, now),
		)
	}
	w.Flush()
}

// marked renders a reaction count with a star when the viewer reacted.
func marked(n int, mine bool) string {
	s := strconv.Itoa(util.NonNegative(n))
	if mine {
		s += "*"
	}
	return s
}
