package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/murmur/internal/client"
	"github.com/wolfeidau/murmur/internal/config"
	"github.com/wolfeidau/murmur/internal/feed"
	"github.com/wolfeidau/murmur/internal/session"
	"github.com/wolfeidau/murmur/internal/store/sqlite"
	"github.com/wolfeidau/murmur/internal/telemetry"
)

type Globals struct {
	Debug   bool
	Version string
	Config  string
	Server  string

	// Out receives command output, os.Stdout when nil.
	Out io.Writer
}

func (g *Globals) stdout() io.Writer {
	if g.Out != nil {
		return g.Out
	}
	return os.Stdout
}

// loadConfig resolves the config file, MURMUR_* variables and flags, in that order.
func (g *Globals) loadConfig() (*config.Config, error) {
	path := g.Config
	if path == "" {
		path = config.DefaultPath()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if g.Server != "" {
		cfg.ServerURL = g.Server
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// app is everything a command needs to talk to the API.
type app struct {
	cfg     *config.Config
	session *session.Store
	client  *client.Client
	out     io.Writer
	closers []func(context.Context) error
}

// open loads the config, restores the session and builds the API client.
// The caller must Close the returned app.
func (g *Globals) open(ctx context.Context) (*app, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, out: g.stdout()}

	shutdown, err := telemetry.InitTelemetry(ctx, cfg.Telemetry.Enabled, "murmur", g.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise telemetry: %w", err)
	}
	a.closers = append(a.closers, shutdown)

	tokens, err := a.openTokenStore()
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}

	a.session = session.NewStore(tokens)

	metrics := telemetry.GetMetrics()
	unsubscribe := a.session.Subscribe(func(st session.State) {
		metrics.SessionChanged(ctx, st.IsAuthenticated)
	})
	a.closers = append(a.closers, func(context.Context) error {
		unsubscribe()
		return nil
	})

	if _, err := a.session.Bootstrap(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to restore session, continuing logged out")
	}

	a.client, err = client.New(client.Config{
		ServerURL:    cfg.ServerURL,
		Timeout:      cfg.Timeout,
		CacheEnabled: cfg.Cache.Enabled,
		CacheDir:     cfg.Cache.Dir,
		Debug:        g.Debug,
	}, a.session)
	if err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	log.Debug().
		Str("server", a.client.ServerURL()).
		Str("storage", cfg.Storage.Driver).
		Bool("authenticated", a.session.State().IsAuthenticated).
		Msg("murmur ready")

	return a, nil
}

func (a *app) openTokenStore() (session.TokenStore, error) {
	switch a.cfg.Storage.Driver {
	case config.DriverSQLite:
		path := a.cfg.SQLitePath()
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
		st, err := sqlite.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open token database: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return st.Close() })
		return st, nil
	default:
		st, err := session.NewFileTokenStore(a.cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open token store: %w", err)
		}
		return st, nil
	}
}

// Close releases the app's resources in reverse order of acquisition.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for _, c := range slices.Backward(a.closers) {
		if err := c(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *app) options() []feed.Option {
	return []feed.Option{feed.WithObserver(telemetry.GetMetrics())}
}

// withApp opens the app, runs fn and closes it again.
func (g *Globals) withApp(ctx context.Context, fn func(a *app) error) (err error) {
	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(context.WithoutCancel(ctx)); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close cleanly")
		}
	}()
	return fn(a)
}

// VersionCmd prints the build version.
type VersionCmd struct{}

func (v *VersionCmd) Run(ctx context.Context, globals *Globals) error {
	fmt.Fprintf(globals.stdout(), "murmur %s\n", globals.Version)
	return nil
}
