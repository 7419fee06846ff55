// Package session holds the client's authentication state: the decoded
// identity behind a bearer token, persisted to a durable token store so a
// fresh process can pick the session back up.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrNoToken is returned by a TokenStore when no token has been persisted.
var ErrNoToken = errors.New("no persisted token")

// TokenStore is the durable slot holding the bearer token.
type TokenStore interface {
	// Load returns the persisted token or ErrNoToken.
	Load(ctx context.Context) (string, error)

	// Save persists the token, replacing any previous one.
	Save(ctx context.Context, token string) error

	// Clear removes the persisted token. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}

// Authenticator exchanges a username and password for a bearer token.
type Authenticator interface {
	ObtainToken(ctx context.Context, username, password string) (string, error)
}

// State is a snapshot of the session.
type State struct {
	IsAuthenticated bool
	Token           string
	User            *Identity
	IsLoading       bool
}

// Store owns the session state machine:
//
//	loading --bootstrap--> authenticated | logged out
//	authenticated --logout--> logged out
//	logged out --login--> authenticated
type Store struct {
	tokens TokenStore
	now    func() time.Time

	mu          sync.RWMutex
	state       State
	nextSubID   int
	subscribers map[int]func(State)

	ready     chan struct{}
	readyOnce sync.Once
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a store in the loading state. Call Bootstrap before use.
func NewStore(tokens TokenStore, opts ...Option) *Store {
	s := &Store{
		tokens:      tokens,
		now:         time.Now,
		state:       State{IsLoading: true},
		subscribers: make(map[int]func(State)),
		ready:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bootstrap resolves the loading phase from the persisted token. A missing
// token resolves to logged out. An unreadable record or a token that is
// undecodable or expired also resolves to logged out and clears the slot.
// Only the first call does any work.
func (s *Store) Bootstrap(ctx context.Context) (State, error) {
	if !s.State().IsLoading {
		return s.State(), nil
	}

	token, err := s.tokens.Load(ctx)
	if errors.Is(err, ErrNoToken) {
		log.Debug().Msg("no persisted token, starting logged out")
		s.transition(State{})
		return s.State(), nil
	}
	if errors.Is(err, ErrInvalidToken) {
		log.Info().Err(err).Msg("discarding unreadable persisted token")
		return s.State(), s.logout(ctx)
	}
	if err != nil {
		log.Warn().Err(err).Msg("failed to read persisted token, starting logged out")
		s.transition(State{})
		return s.State(), fmt.Errorf("failed to load token: %w", err)
	}

	claims, err := s.decode(token)
	if err != nil {
		log.Info().Err(err).Str("fingerprint", Fingerprint(token)).Msg("discarding persisted token")
		return s.State(), s.logout(ctx)
	}

	identity := claims.Identity()
	s.transition(State{
		IsAuthenticated: true,
		Token:           token,
		User:            &identity,
	})

	log.Debug().
		Str("fingerprint", Fingerprint(token)).
		Str("username", identity.Username).
		Msg("session restored")

	return s.State(), nil
}

// Login decodes the token, persists it and marks the session authenticated.
// An expired token logs the session out and clears the persisted token. A token
// that cannot be decoded leaves the current session and storage untouched;
// a store still loading resolves to logged out. Either error is logged and returned.
func (s *Store) Login(ctx context.Context, token string) (State, error) {
	claims, err := s.decode(token)
	if errors.Is(err, ErrTokenExpired) {
		log.Error().Err(err).Msg("login failed")
		if clearErr := s.logout(ctx); clearErr != nil {
			return s.State(), errors.Join(err, clearErr)
		}
		return s.State(), err
	}
	if err != nil {
		log.Error().Err(err).Msg("login failed, keeping current session")
		if s.State().IsLoading {
			s.transition(State{})
		}
		return s.State(), err
	}

	if err := s.tokens.Save(ctx, token); err != nil {
		return s.State(), fmt.Errorf("failed to persist token: %w", err)
	}

	identity := claims.Identity()
	s.transition(State{
		IsAuthenticated: true,
		Token:           token,
		User:            &identity,
	})

	log.Info().
		Str("fingerprint", Fingerprint(token)).
		Str("username", identity.Username).
		Msg("logged in")

	return s.State(), nil
}

// Authenticate obtains a token for the credentials and logs in with it.
func (s *Store) Authenticate(ctx context.Context, auth Authenticator, username, password string) (State, error) {
	token, err := auth.ObtainToken(ctx, username, password)
	if err != nil {
		return s.State(), err
	}
	return s.Login(ctx, token)
}

// Logout clears the persisted token and the in-memory identity.
func (s *Store) Logout(ctx context.Context) error {
	if err := s.logout(ctx); err != nil {
		return err
	}
	log.Info().Msg("logged out")
	return nil
}

// State returns a copy of the current session state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyState(s.state)
}

// Token returns the current bearer token, or "" when logged out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Token
}

// Identity returns the logged in user.
func (s *Store) Identity() (Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.User == nil {
		return Identity{}, false
	}
	return *s.state.User, true
}

// Ready is closed once the loading phase has finished.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// Wait blocks until the loading phase has finished or ctx is done.
func (s *Store) Wait(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers fn to be called after every transition. The returned
// function removes the subscription.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

func (s *Store) decode(token string) (*Claims, error) {
	claims, err := DecodeToken(token)
	if err != nil {
		return nil, err
	}
	if claims.Expired(s.now()) {
		return nil, fmt.Errorf("%w: expired at %s", ErrTokenExpired, claims.ExpiresAt.Time.Format(time.RFC3339))
	}
	return claims, nil
}

func (s *Store) logout(ctx context.Context) error {
	err := s.tokens.Clear(ctx)
	s.transition(State{})
	if err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	return nil
}

func (s *Store) transition(next State) {
	next.IsLoading = false

	s.mu.Lock()
	s.state = next
	subs := make([]func(State), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	s.readyOnce.Do(func() { close(s.ready) })

	for _, fn := range subs {
		fn(copyState(next))
	}
}

func copyState(st State) State {
	if st.User != nil {
		u := *st.User
		st.User = &u
	}
	return st
}
