package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"

	mhttp "github.com/wolfeidau/murmur/internal/http"
	"github.com/wolfeidau/murmur/internal/models"
)

const maxResponseBytes = 4 << 20

// ErrNotAuthenticated is returned by endpoints that need a bearer token when none is held.
var ErrNotAuthenticated = errors.New("not authenticated")

// Config holds common client configuration
type Config struct {
	ServerURL    string
	Timeout      time.Duration
	CacheEnabled bool
	CacheDir     string // empty means in-memory when caching is enabled
	Debug        bool
}

// DefaultConfig returns a default client configuration
func DefaultConfig() Config {
	return Config{
		ServerURL:    "http://127.0.0.1:8000/api/",
		Timeout:      30 * time.Second,
		CacheEnabled: true,
	}
}

// BearerSource supplies the current access token, empty when logged out.
// *session.Store satisfies it.
type BearerSource interface {
	Token() string
}

// Client talks to the social API. It is safe for concurrent use.
type Client struct {
	baseURL *url.URL
	bearer  BearerSource
	anon    *http.Client
	authed  *http.Client
}

// New builds a client whose transport chain is, from the network inwards:
// gzip, HTTP cache, OpenTelemetry, request id and bearer auth.
func New(cfg Config, bearer BearerSource) (*Client, error) {
	base, err := url.Parse(cfg.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid server url %q: must be absolute", cfg.ServerURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	var transport http.RoundTripper = gzhttp.Transport(http.DefaultTransport)
	if cfg.CacheEnabled {
		transport = newCachingTransport(cfg.CacheDir, transport)
	}
	transport = otelhttp.NewTransport(transport)
	transport = mhttp.NewRequestIDTransport(transport)

	c := &Client{
		baseURL: base,
		bearer:  bearer,
		anon:    &http.Client{Transport: transport, Timeout: cfg.Timeout},
	}

	c.authed = &http.Client{
		Transport: &oauth2.Transport{
			Source: bearerTokenSource{bearer: bearer},
			Base:   transport,
		},
		Timeout: cfg.Timeout,
	}

	return c, nil
}

// ServerURL returns the normalised API base.
func (c *Client) ServerURL() string {
	return c.baseURL.String()
}

type bearerTokenSource struct {
	bearer BearerSource
}

func (b bearerTokenSource) Token() (*oauth2.Token, error) {
	if b.bearer == nil {
		return nil, ErrNotAuthenticated
	}
	tok := b.bearer.Token()
	if tok == "" {
		return nil, ErrNotAuthenticated
	}
	// Read on every request so login and logout take effect immediately.
	return &oauth2.Token{AccessToken: tok, TokenType: "Bearer"}, nil
}

type authMode int

const (
	authNone     authMode = iota // never send a bearer token
	authOptional                 // send one when logged in
	authRequired                 // fail fast with ErrNotAuthenticated when logged out
)

func (c *Client) hasToken() bool {
	return c.bearer != nil && c.bearer.Token() != ""
}

func (c *Client) httpClient(mode authMode) (*http.Client, error) {
	switch mode {
	case authNone:
		return c.anon, nil
	case authOptional:
		if c.hasToken() {
			return c.authed, nil
		}
		return c.anon, nil
	default:
		if !c.hasToken() {
			return nil, ErrNotAuthenticated
		}
		return c.authed, nil
	}
}

// do sends a JSON request and decodes the response into out when out is non-nil.
// A decoded out implementing models.Validator is validated before returning.
func (c *Client) do(ctx context.Context, mode authMode, method, path string, body, out any) error {
	hc, err := c.httpClient(mode)
	if err != nil {
		return err
	}

	// The "./" prefix keeps usernames containing ':' from parsing as a scheme.
	ref, err := url.Parse("./" + path)
	if err != nil {
		return fmt.Errorf("invalid path %q: %w", path, err)
	}
	endpoint := c.baseURL.ResolveReference(ref)

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) && errors.Is(uerr.Err, ErrNotAuthenticated) {
			return ErrNotAuthenticated
		}
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	log.Debug().
		Str("method", method).
		Str("path", endpoint.Path).
		Int("status", resp.StatusCode).
		Str("request_id", resp.Header.Get(mhttp.RequestIDHeader)).
		Bool("cached", resp.Header.Get("X-From-Cache") == "1").
		Dur("duration", time.Since(started)).
		Msg("api call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("%w: %s %s: %v", models.ErrInvalidResponse, method, path, err)
	}

	if v, ok := out.(models.Validator); ok {
		if err := v.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// validatable is a pointer to E that validates itself.
type validatable[E any] interface {
	*E
	models.Validator
}

// getList fetches a JSON array and validates every element.
func getList[E any, P validatable[E]](ctx context.Context, c *Client, mode authMode, path string) ([]E, error) {
	var items []E
	if err := c.do(ctx, mode, http.MethodGet, path, nil, &items); err != nil {
		return nil, err
	}
	for i := range items {
		if err := P(&items[i]).Validate(); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}
	if items == nil {
		items = []E{}
	}
	return items, nil
}
