// Package models holds the wire schemas of the social API. Every response is
// decoded into one of these types and validated before the rest of the
// client touches it.
package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidResponse is returned when a decoded response is missing required fields.
	ErrInvalidResponse = errors.New("invalid response")

	// ErrInvalidRequest is returned when a request body fails client side validation.
	ErrInvalidRequest = errors.New("invalid request")
)

// Validator is implemented by every response schema.
type Validator interface {
	Validate() error
}

// TokenPair is the body returned by POST /token/.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

func (t *TokenPair) Validate() error {
	if t.Access == "" {
		return fmt.Errorf("%w: token response has no access token", ErrInvalidResponse)
	}
	return nil
}

// Credentials is the body of POST /token/.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Message is the body of the like, dislike and other action endpoints.
type Message struct {
	Message string `json:"message"`
}

func (m *Message) Validate() error { return nil }

// FollowResult is the body returned by POST /follow-unfollow/{username}/.
type FollowResult struct {
	Message        string `json:"message"`
	IsFollowing    bool   `json:"is_following"`
	FollowersCount int    `json:"followers_count"`
}

func (f *FollowResult) Validate() error {
	if f.FollowersCount < 0 {
		return fmt.Errorf("%w: negative followers count", ErrInvalidResponse)
	}
	return nil
}

// RegisterResult is the body returned by POST /register/.
type RegisterResult struct {
	User    User   `json:"user"`
	Message string `json:"message"`
}

func (r *RegisterResult) Validate() error {
	if r.User.Username == "" {
		return fmt.Errorf("%w: registration response has no username", ErrInvalidResponse)
	}
	return nil
}
