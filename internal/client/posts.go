package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/wolfeidau/murmur/internal/models"
)

// ListPosts returns the public feed plus the caller's own private posts when logged in.
func (c *Client) ListPosts(ctx context.Context) ([]models.Post, error) {
	return getList[models.Post](ctx, c, authOptional, "posts/")
}

func (c *Client) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	var post models.Post
	if err := c.do(ctx, authRequired, http.MethodGet, fmt.Sprintf("posts/%d/", id), nil, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) CreatePost(ctx context.Context, in models.PostInput) (*models.Post, error) {
	var post models.Post
	if err := c.do(ctx, authRequired, http.MethodPost, "posts/create/", in, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) UpdatePost(ctx context.Context, id int64, in models.PostInput) (*models.Post, error) {
	var post models.Post
	if err := c.do(ctx, authRequired, http.MethodPut, fmt.Sprintf("posts/%d/", id), in, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) DeletePost(ctx context.Context, id int64) error {
	return c.do(ctx, authRequired, http.MethodDelete, fmt.Sprintf("posts/%d/", id), nil, nil)
}

// LikePost toggles the caller's like on a post.
func (c *Client) LikePost(ctx context.Context, id int64) (*models.Message, error) {
	return c.action(ctx, fmt.Sprintf("posts/%d/like/", id))
}

// DislikePost toggles the caller's dislike on a post.
func (c *Client) DislikePost(ctx context.Context, id int64) (*models.Message, error) {
	return c.action(ctx, fmt.Sprintf("posts/%d/dislike/", id))
}

func (c *Client) Repost(ctx context.Context, in models.RepostInput) (*models.Repost, error) {
	var repost models.Repost
	if err := c.do(ctx, authRequired, http.MethodPost, "posts/repost/", in, &repost); err != nil {
		return nil, err
	}
	return &repost, nil
}

func (c *Client) action(ctx context.Context, path string) (*models.Message, error) {
	var msg models.Message
	if err := c.do(ctx, authRequired, http.MethodPost, path, nil, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
