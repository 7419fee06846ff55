package session

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mr-tron/base58"
)

var (
	// ErrInvalidToken is returned when a bearer token cannot be decoded.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when a bearer token's exp claim is in the past.
	ErrTokenExpired = errors.New("token expired")
)

// UserID accepts both numeric and string user_id claims.
type UserID int64

func (u *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*u = 0
		return nil
	}
	id, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("user_id: %w", err)
	}
	*u = UserID(id)
	return nil
}

// Claims are the claims the API puts in its access tokens.
type Claims struct {
	jwt.RegisteredClaims
	UserID    UserID `json:"user_id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Identity is the user derived from a decoded token.
type Identity struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Identity returns the user described by the claims.
func (c *Claims) Identity() Identity {
	return Identity{
		ID:        int64(c.UserID),
		Username:  c.Username,
		Email:     c.Email,
		FirstName: c.FirstName,
		LastName:  c.LastName,
	}
}

// Expired reports whether the token expired before now. Tokens without an
// exp claim never expire on the client.
func (c *Claims) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(now)
}

// DecodeToken decodes the claims of a bearer token without verifying its
// signature. The client never holds the signing key; the API stays the
// authority on whether a token is acceptable.
func DecodeToken(token string) (*Claims, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.UserID <= 0 {
		return nil, fmt.Errorf("%w: missing user_id claim", ErrInvalidToken)
	}

	return claims, nil
}

// Fingerprint returns a Base58 SHA-256 digest of the token, safe to log.
func Fingerprint(token string) string {
	hash := sha256.Sum256([]byte(token))
	return base58.Encode(hash[:8])
}
