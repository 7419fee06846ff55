package models

import (
	"fmt"
	"slices"
	"time"
)

// Post is a feed entry.
type Post struct {
	ID           int64     `json:"id"`
	Author       User      `json:"author"`
	Content      string    `json:"content"`
	Image        string    `json:"image,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Likes        []int64   `json:"likes"`
	Dislikes     []int64   `json:"dislikes"`
	IsPublic     bool      `json:"is_public"`
	RepostedFrom *int64    `json:"reposted_from,omitempty"`
}

// LikedBy reports whether userID is in the likes list.
func (p *Post) LikedBy(userID int64) bool {
	return slices.Contains(p.Likes, userID)
}

// DislikedBy reports whether userID is in the dislikes list.
func (p *Post) DislikedBy(userID int64) bool {
	return slices.Contains(p.Dislikes, userID)
}

func (p *Post) Validate() error {
	if p.ID <= 0 {
		return fmt.Errorf("%w: post id must be positive, got %d", ErrInvalidResponse, p.ID)
	}
	if err := p.Author.Validate(); err != nil {
		return fmt.Errorf("post %d author: %w", p.ID, err)
	}
	if p.CreatedAt.IsZero() {
		return fmt.Errorf("%w: post %d has no created_at", ErrInvalidResponse, p.ID)
	}
	return nil
}

// PostInput is the body of POST /posts/create/ and PUT /posts/{id}/.
type PostInput struct {
	Content  string `json:"content"`
	Image    string `json:"image,omitempty"`
	IsPublic *bool  `json:"is_public,omitempty"`
}

// RepostInput is the body of POST /posts/repost/.
type RepostInput struct {
	PostID  int64  `json:"post_id"`
	Content string `json:"content,omitempty"`
}

// Repost is the body returned by POST /posts/repost/.
type Repost struct {
	Content      string `json:"content"`
	Image        string `json:"image,omitempty"`
	RepostedFrom int64  `json:"reposted_from"`
}

func (r *Repost) Validate() error {
	if r.RepostedFrom <= 0 {
		return fmt.Errorf("%w: repost has no reposted_from", ErrInvalidResponse)
	}
	return nil
}
