package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/wolfeidau/murmur/internal/models"
)

func (c *Client) ListComments(ctx context.Context, postID int64) ([]models.Comment, error) {
	return getList[models.Comment](ctx, c, authRequired, fmt.Sprintf("posts/%d/comments/", postID))
}

func (c *Client) CreateComment(ctx context.Context, in models.CommentInput) (*models.Comment, error) {
	var comment models.Comment
	if err := c.do(ctx, authRequired, http.MethodPost, "comments/create/", in, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

func (c *Client) UpdateComment(ctx context.Context, id int64, in models.CommentInput) (*models.Comment, error) {
	var comment models.Comment
	if err := c.do(ctx, authRequired, http.MethodPut, fmt.Sprintf("comments/%d/", id), in, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

func (c *Client) DeleteComment(ctx context.Context, id int64) error {
	return c.do(ctx, authRequired, http.MethodDelete, fmt.Sprintf("comments/%d/", id), nil, nil)
}

func (c *Client) LikeComment(ctx context.Context, id int64) (*models.Message, error) {
	return c.action(ctx, fmt.Sprintf("comments/%d/like/", id))
}

func (c *Client) ListSubComments(ctx context.Context, commentID int64) ([]models.SubComment, error) {
	return getList[models.SubComment](ctx, c, authRequired, fmt.Sprintf("comments/%d/subcomments/list/", commentID))
}

func (c *Client) CreateSubComment(ctx context.Context, commentID int64, in models.SubCommentInput) (*models.SubComment, error) {
	var sub models.SubComment
	if err := c.do(ctx, authRequired, http.MethodPost, fmt.Sprintf("comments/%d/subcomments/", commentID), in, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

func (c *Client) LikeSubComment(ctx context.Context, id int64) (*models.Message, error) {
	return c.action(ctx, fmt.Sprintf("subcomments/%d/like/", id))
}
