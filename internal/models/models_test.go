package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const postJSON = `{
	"id": 7,
	"author": {"id": 1, "username": "ana", "first_name": "Ana", "last_name": "Lima",
		"profile_picture": null, "followers": [2], "following": [], "is_following": false},
	"content": "hello",
	"image": null,
	"created_at": "2024-05-01T12:34:56.789012Z",
	"updated_at": "2024-05-01T12:34:56.789012Z",
	"likes": [2, 3],
	"dislikes": [4],
	"is_public": true
}`

func TestPost_Decode(t *testing.T) {
	var p Post
	require.NoError(t, json.Unmarshal([]byte(postJSON), &p))
	require.NoError(t, p.Validate())

	assert.Equal(t, int64(7), p.ID)
	assert.Equal(t, "ana", p.Author.Username)
	assert.Empty(t, p.Image)
	assert.Empty(t, p.Author.ProfilePicture)
	assert.True(t, p.LikedBy(3))
	assert.False(t, p.LikedBy(4))
	assert.True(t, p.DislikedBy(4))
	assert.Equal(t, time.Date(2024, 5, 1, 12, 34, 56, 789012000, time.UTC), p.CreatedAt.UTC())
}

func TestPost_Validate(t *testing.T) {
	valid := func() Post {
		return Post{
			ID:        1,
			Author:    User{ID: 1, Username: "ana"},
			CreatedAt: time.Now(),
		}
	}

	tests := []struct {
		name   string
		mutate func(p *Post)
	}{
		{name: "zero id", mutate: func(p *Post) { p.ID = 0 }},
		{name: "missing author", mutate: func(p *Post) { p.Author = User{} }},
		{name: "author without username", mutate: func(p *Post) { p.Author.Username = "" }},
		{name: "missing created_at", mutate: func(p *Post) { p.CreatedAt = time.Time{} }},
	}

	p := valid()
	require.NoError(t, p.Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid()
			tt.mutate(&p)
			require.ErrorIs(t, p.Validate(), ErrInvalidResponse)
		})
	}
}

func TestComment_Validate(t *testing.T) {
	c := Comment{ID: 1, Post: 2, Author: User{ID: 1, Username: "ana"}, CreatedAt: time.Now()}
	require.NoError(t, c.Validate())

	c.Post = 0
	require.ErrorIs(t, c.Validate(), ErrInvalidResponse)
}

func TestSubComment_Validate(t *testing.T) {
	s := SubComment{ID: 1, Comment: 2, Author: User{ID: 1, Username: "ana"}, CreatedAt: time.Now()}
	require.NoError(t, s.Validate())
	require.True(t, (&SubComment{Likes: []int64{1}}).LikedBy(1))

	s.Comment = 0
	require.ErrorIs(t, s.Validate(), ErrInvalidResponse)
}

func TestTokenPair_Validate(t *testing.T) {
	require.ErrorIs(t, (&TokenPair{}).Validate(), ErrInvalidResponse)
	require.NoError(t, (&TokenPair{Access: "abc"}).Validate())
}

func TestFollowResult_Validate(t *testing.T) {
	require.ErrorIs(t, (&FollowResult{FollowersCount: -1}).Validate(), ErrInvalidResponse)
	require.NoError(t, (&FollowResult{FollowersCount: 0}).Validate())
}

func TestUser_DisplayName(t *testing.T) {
	u := User{Username: "ana"}
	assert.Equal(t, "ana", u.DisplayName())

	u.FirstName = "Ana"
	u.LastName = "Lima"
	assert.Equal(t, "Ana Lima", u.DisplayName())
}

func TestRegistration_Validate(t *testing.T) {
	tests := []struct {
		name    string
		reg     Registration
		wantErr bool
	}{
		{
			name: "valid",
			reg:  Registration{Username: "ana", Email: "ana@example.com", Password: "pw", Password2: "pw"},
		},
		{
			name:    "missing username",
			reg:     Registration{Email: "ana@example.com", Password: "pw", Password2: "pw"},
			wantErr: true,
		},
		{
			name:    "missing email",
			reg:     Registration{Username: "ana", Password: "pw", Password2: "pw"},
			wantErr: true,
		},
		{
			name:    "password mismatch",
			reg:     Registration{Username: "ana", Email: "ana@example.com", Password: "pw", Password2: "other"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.reg.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidRequest)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestProfileUpdate_IsEmpty(t *testing.T) {
	require.True(t, ProfileUpdate{}.IsEmpty())
	bio := "hi"
	require.False(t, ProfileUpdate{Bio: &bio}.IsEmpty())
}
