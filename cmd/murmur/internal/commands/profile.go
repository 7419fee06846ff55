package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/wolfeidau/murmur/internal/feed"
	"github.com/wolfeidau/murmur/internal/models"
	"github.com/wolfeidau/murmur/internal/optimistic"
	"github.com/wolfeidau/murmur/internal/util"
)

type ProfileCmd struct {
	Show ProfileShowCmd `cmd:"" help:"Show a profile"`
	List ProfileListCmd `cmd:"" help:"List every profile"`
	Edit ProfileEditCmd `cmd:"" help:"Edit your own profile"`
}

func (a *app) loadProfiles(ctx context.Context) (*feed.ProfileView, error) {
	view, err := feed.NewProfileView(a.session, a.client, a.options()...)
	if err != nil {
		return nil, err
	}
	if err := view.Load(ctx); err != nil {
		view.Close()
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}
	return view, nil
}

// findProfile resolves username against the loaded directory.
func findProfile(view *feed.ProfileView, username string) (feed.Profile, error) {
	p, ok := view.Find(username)
	if !ok {
		return feed.Profile{}, fmt.Errorf("user %q: %w", username, optimistic.ErrNotFound)
	}
	return p, nil
}

type ProfileShowCmd struct {
	Username string `arg:"" optional:"" help:"Username, defaults to you"`
}

func (c *ProfileShowCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.withApp(ctx, func(a *app) error {
		username := c.Username
		if username == "" {
			id, ok := a.session.Identity()
			if !ok {
				return fmt.Errorf("%w: give a username or log in", models.ErrInvalidRequest)
			}
			username = id.Username
		}

		view, err := a.loadProfiles(ctx)
		if err != nil {
			return err
		}
		defer view.Close()

		p, err := findProfile(view, username)
		if err != nil {
			return err
		}
		p, err = view.Show(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("failed to fetch profile: %w", err)
		}

		printProfile(a.out, p)
		return nil
	})
}

func printProfile(out io.Writer, p feed.Profile) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Username:\t%s\n", p.Username)
	fmt.Fprintf(w, "Name:\t%s\n", p.DisplayName())
	for _, field := range []struct{ label, value string }{
		{"Email:", p.Email},
		{"Bio:", p.Bio},
		{"Location:", p.Location},
		{"Website:", p.Website},
		{"Born:", p.DateOfBirth},
	} {
		if field.value != "" {
			fmt.Fprintf(w, "%s\t%s\n", field.label, field.value)
		}
	}
	fmt.Fprintf(w, "Followers:\t%d\n", p.FollowerCount)
	fmt.Fprintf(w, "Following:\t%d\n", len(p.Following))
	if p.IsFollowing {
		fmt.Fprintf(w, "\tYou follow %s\n", p.Username)
	}
	w.Flush()
}

type ProfileListCmd struct{}

func (c *ProfileListCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.withApp(ctx, func(a *app) error {
		view, err := a.loadProfiles(ctx)
		if err != nil {
			return err
		}
		defer view.Close()

		printProfiles(a.out, view.Profiles())
		return nil
	})
}

func printProfiles(out io.Writer, profiles []feed.Profile) {
	if len(profiles) == 0 {
		fmt.Fprintln(out, "No users found.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSERNAME\tNAME\tFOLLOWERS\tFOLLOWING")
	for _, p := range profiles {
		following := ""
		if p.IsFollowing {
			following = "*"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", p.ID, p.Username, util.Truncate(p.DisplayName(), 30), p.FollowerCount, following)
	}
	w.Flush()
}

// ProfileEditCmd sets the given fields on your profile. Omitted flags are left unchanged.
type ProfileEditCmd struct {
	FirstName   *string `help:"First name"`
	LastName    *string `help:"Last name"`
	Email       *string `help:"Email address"`
	Bio         *string `help:"Short biography"`
	Gender      *string `help:"Gender"`
	Location    *string `help:"Location"`
	PhoneNumber *string `help:"Phone number"`
	Website     *string `help:"Website URL"`
	DateOfBirth *string `help:"Date of birth (YYYY-MM-DD)"`
}

func (c *ProfileEditCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.withApp(ctx, func(a *app) error {
		view, err := feed.NewProfileView(a.session, a.client, a.options()...)
		if err != nil {
			return err
		}
		defer view.Close()

		p, err := view.Edit(ctx, models.ProfileUpdate{
			FirstName:   c.FirstName,
			LastName:    c.LastName,
			Email:       c.Email,
			Bio:         c.Bio,
			Gender:      c.Gender,
			Location:    c.Location,
			PhoneNumber: c.PhoneNumber,
			Website:     c.Website,
			DateOfBirth: c.DateOfBirth,
		})
		if err != nil {
			return fmt.Errorf("failed to update profile: %w", err)
		}

		fmt.Fprintln(a.out, "Profile updated.")
		printProfile(a.out, p)
		return nil
	})
}

// FollowCmd toggles whether you follow a user.
type FollowCmd struct {
	Username string `arg:"" help:"Username"`
}

func (c *FollowCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.withApp(ctx, func(a *app) error {
		view, err := a.loadProfiles(ctx)
		if err != nil {
			return err
		}
		defer view.Close()

		p, err := findProfile(view, c.Username)
		if err != nil {
			return err
		}
		if err := view.ToggleFollow(ctx, p.ID); err != nil {
			return fmt.Errorf("failed to follow %s: %w", c.Username, err)
		}

		p, _ = view.Get(p.ID)
		verb := "Unfollowed"
		if p.IsFollowing {
			verb = "Following"
		}
		fmt.Fprintf(a.out, "%s %s (%s)\n", verb, p.Username, util.Plural(p.FollowerCount, "follower", "followers"))
		return nil
	})
}

type FollowersCmd struct {
	Username string `arg:"" help:"Username"`
}

func (c *FollowersCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.withApp(ctx, func(a *app) error {
		view, err := feed.NewProfileView(a.session, a.client, a.options()...)
		if err != nil {
			return err
		}
		defer view.Close()

		profiles, err := view.Followers(ctx, c.Username)
		if err != nil {
			return fmt.Errorf("failed to list followers of %s: %w", c.Username, err)
		}
		printProfiles(a.out, profiles)
		return nil
	})
}

type FollowingCmd struct {
	Username string `arg:"" help:"Username"`
}

func (c *FollowingCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.withApp(ctx, func(a *app) error {
		view, err := feed.NewProfileView(a.session, a.client, a.options()...)
		if err != nil {
			return err
		}
		defer view.Close()

		profiles, err := view.Following(ctx, c.Username)
		if err != nil {
			return fmt.Errorf("failed to list who %s follows: %w", c.Username, err)
		}
		printProfiles(a.out, profiles)
		return nil
	})
}
