package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/wolfeidau/murmur/internal/models"
)

func (c *Client) ListProfiles(ctx context.Context) ([]models.User, error) {
	return getList[models.User](ctx, c, authRequired, "profiles/")
}

func (c *Client) GetProfile(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, authRequired, http.MethodGet, fmt.Sprintf("profiles/%d/", id), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateProfile sends only the fields set in in.
func (c *Client) UpdateProfile(ctx context.Context, id int64, in models.ProfileUpdate) (*models.User, error) {
	if in.IsEmpty() {
		return nil, fmt.Errorf("%w: no profile fields to update", models.ErrInvalidRequest)
	}

	var user models.User
	if err := c.do(ctx, authRequired, http.MethodPut, fmt.Sprintf("profiles/%d/edit/", id), in, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) Followers(ctx context.Context, username string) ([]models.User, error) {
	return getList[models.User](ctx, c, authRequired, url.PathEscape(username)+"/followers/")
}

func (c *Client) Following(ctx context.Context, username string) ([]models.User, error) {
	return getList[models.User](ctx, c, authRequired, url.PathEscape(username)+"/following/")
}

// ToggleFollow follows username, or unfollows when already following.
func (c *Client) ToggleFollow(ctx context.Context, username string) (*models.FollowResult, error) {
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", models.ErrInvalidRequest)
	}

	var res models.FollowResult
	if err := c.do(ctx, authRequired, http.MethodPost, "follow-unfollow/"+url.PathEscape(username)+"/", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
