package models

import (
	"fmt"
	"slices"
	"time"
)

// Comment is a top level comment on a post.
type Comment struct {
	ID        int64     `json:"id"`
	Post      int64     `json:"post"`
	Author    User      `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Likes     []int64   `json:"likes"`
}

// LikedBy reports whether userID is in the likes list.
func (c *Comment) LikedBy(userID int64) bool {
	return slices.Contains(c.Likes, userID)
}

func (c *Comment) Validate() error {
	if c.ID <= 0 {
		return fmt.Errorf("%w: comment id must be positive, got %d", ErrInvalidResponse, c.ID)
	}
	if c.Post <= 0 {
		return fmt.Errorf("%w: comment %d has no post", ErrInvalidResponse, c.ID)
	}
	if err := c.Author.Validate(); err != nil {
		return fmt.Errorf("comment %d author: %w", c.ID, err)
	}
	if c.CreatedAt.IsZero() {
		return fmt.Errorf("%w: comment %d has no created_at", ErrInvalidResponse, c.ID)
	}
	return nil
}

// CommentInput is the body of POST /comments/create/ and PUT /comments/{id}/.
type CommentInput struct {
	Post    int64  `json:"post"`
	Content string `json:"content"`
}

// SubComment is a reply to a comment.
type SubComment struct {
	ID        int64     `json:"id"`
	Comment   int64     `json:"comment"`
	Author    User      `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Likes     []int64   `json:"likes"`
}

// LikedBy reports whether userID is in the likes list.
func (s *SubComment) LikedBy(userID int64) bool {
	return slices.Contains(s.Likes, userID)
}

func (s *SubComment) Validate() error {
	if s.ID <= 0 {
		return fmt.Errorf("%w: sub-comment id must be positive, got %d", ErrInvalidResponse, s.ID)
	}
	if s.Comment <= 0 {
		return fmt.Errorf("%w: sub-comment %d has no comment", ErrInvalidResponse, s.ID)
	}
	if err := s.Author.Validate(); err != nil {
		return fmt.Errorf("sub-comment %d author: %w", s.ID, err)
	}
	if s.CreatedAt.IsZero() {
		return fmt.Errorf("%w: sub-comment %d has no created_at", ErrInvalidResponse, s.ID)
	}
	return nil
}

// SubCommentInput is the body of POST /comments/{id}/subcomments/.
type SubCommentInput struct {
	Content string `json:"content"`
}
