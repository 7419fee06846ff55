package client

import (
	"context"
	"net/http"

	"github.com/wolfeidau/murmur/internal/models"
	"github.com/wolfeidau/murmur/internal/session"
)

var _ session.Authenticator = (*Client)(nil)

// ObtainToken exchanges credentials for an access token via POST /token/.
func (c *Client) ObtainToken(ctx context.Context, username, password string) (string, error) {
	var pair models.TokenPair
	err := c.do(ctx, authNone, http.MethodPost, "token/", models.Credentials{
		Username: username,
		Password: password,
	}, &pair)
	if err != nil {
		return "", err
	}
	return pair.Access, nil
}

// Register creates an account. The request is validated before it is sent.
func (c *Client) Register(ctx context.Context, reg models.Registration) (*models.RegisterResult, error) {
	if err := reg.Validate(); err != nil {
		return nil, err
	}

	var res models.RegisterResult
	if err := c.do(ctx, authNone, http.MethodPost, "register/", reg, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
