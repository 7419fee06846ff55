package commands

import (
	"context"
	"fmt"

	"github.com/wolfeidau/murmur/internal/models"
	"github.com/wolfeidau/murmur/internal/session"
)

// LoginCmd exchanges credentials for a token and persists it.
type LoginCmd struct {
	Username string `arg:"" help:"Username"`
	Password string `help:"Password" env:"MURMUR_PASSWORD" required:""`
}

func (l *LoginCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.withApp(ctx, func(a *app) error {
		st, err := a.session.Authenticate(ctx, a.client, l.Username, l.Password)
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
		fmt.Fprintf(a.out, "Logged in as %s\n", st.User.Username)
		return nil
	})
}

// LogoutCmd clears the persisted token.
type LogoutCmd struct{}

func (l *LogoutCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.withApp(ctx, func(a *app) error {
		if err := a.session.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Logged out.")
		return nil
	})
}

// WhoamiCmd prints the identity held in the persisted token.
type WhoamiCmd struct{}

func (w *WhoamiCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.withApp(ctx, func(a *app) error {
		id, ok := a.session.Identity()
		if !ok {
			fmt.Fprintln(a.out, "Not logged in.")
			return nil
		}

		fmt.Fprintf(a.out, "%s (id %d)\n", id.Username, id.ID)
		if id.Email != "" {
			fmt.Fprintf(a.out, "Email:       %s\n", id.Email)
		}
		fmt.Fprintf(a.out, "Token:       %s\n", session.Fingerprint(a.session.Token()))
		fmt.Fprintf(a.out, "Server:      %s\n", a.client.ServerURL())
		return nil
	})
}

// RegisterCmd creates an account and optionally logs straight in.
type RegisterCmd struct {
	Username  string `arg:"" help:"Username"`
	Email     string `help:"Email address" required:""`
	Password  string `help:"Password" env:"MURMUR_PASSWORD" required:""`
	FirstName string `help:"First name"`
	LastName  string `help:"Last name"`
	Login     bool   `help:"Log in after registering" default:"true" negatable:""`
}

func (r *RegisterCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.withApp(ctx, func(a *app) error {
		res, err := a.client.Register(ctx, models.Registration{
			Username:  r.Username,
			Email:     r.Email,
			Password:  r.Password,
			Password2: r.Password,
			FirstName: r.FirstName,
			LastName:  r.LastName,
		})
		if err != nil {
			return fmt.Errorf("registration failed: %w", err)
		}
		fmt.Fprintf(a.out, "%s: %s\n", res.Message, res.User.Username)

		if !r.Login {
			return nil
		}
		st, err := a.session.Authenticate(ctx, a.client, r.Username, r.Password)
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
		fmt.Fprintf(a.out, "Logged in as %s\n", st.User.Username)
		return nil
	})
}
