package models

import (
	"fmt"
	"strings"
)

// User is a profile as returned by the profile, follower and author fields of the API.
type User struct {
	ID             int64   `json:"id"`
	Username       string  `json:"username"`
	Email          string  `json:"email,omitempty"`
	FirstName      string  `json:"first_name"`
	LastName       string  `json:"last_name"`
	Bio            string  `json:"bio,omitempty"`
	Gender         string  `json:"gender,omitempty"`
	ProfilePicture string  `json:"profile_picture,omitempty"`
	Location       string  `json:"location,omitempty"`
	PhoneNumber    string  `json:"phone_number,omitempty"`
	Website        string  `json:"website,omitempty"`
	DateOfBirth    string  `json:"date_of_birth,omitempty"` // YYYY-MM-DD
	Age            *int    `json:"age,omitempty"`
	Followers      []int64 `json:"followers"`
	Following      []int64 `json:"following"`
	IsFollowing    bool    `json:"is_following"`
}

// DisplayName returns "First Last", falling back to the username.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// FollowersCount returns the number of followers listed on the profile.
func (u *User) FollowersCount() int {
	return len(u.Followers)
}

// Validate checks the fields every other part of the client relies on.
func (u *User) Validate() error {
	if u.ID <= 0 {
		return fmt.Errorf("%w: user id must be positive, got %d", ErrInvalidResponse, u.ID)
	}
	if u.Username == "" {
		return fmt.Errorf("%w: user %d has no username", ErrInvalidResponse, u.ID)
	}
	return nil
}

// ProfileUpdate is the body of PUT /profiles/{id}/edit/. Nil fields are left unchanged.
type ProfileUpdate struct {
	FirstName   *string `json:"first_name,omitempty"`
	LastName    *string `json:"last_name,omitempty"`
	Email       *string `json:"email,omitempty"`
	Bio         *string `json:"bio,omitempty"`
	Gender      *string `json:"gender,omitempty"`
	Location    *string `json:"location,omitempty"`
	PhoneNumber *string `json:"phone_number,omitempty"`
	Website     *string `json:"website,omitempty"`
	DateOfBirth *string `json:"date_of_birth,omitempty"`
}

// IsEmpty reports whether no field is set.
func (p ProfileUpdate) IsEmpty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Email == nil && p.Bio == nil &&
		p.Gender == nil && p.Location == nil && p.PhoneNumber == nil && p.Website == nil &&
		p.DateOfBirth == nil
}

// Registration is the body of POST /register/.
type Registration struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// Validate mirrors the server side checks that can be done before a round trip.
func (r Registration) Validate() error {
	switch {
	case strings.TrimSpace(r.Username) == "":
		return fmt.Errorf("%w: username is required", ErrInvalidRequest)
	case strings.TrimSpace(r.Email) == "":
		return fmt.Errorf("%w: email is required", ErrInvalidRequest)
	case r.Password == "":
		return fmt.Errorf("%w: password is required", ErrInvalidRequest)
	case r.Password != r.Password2:
		return fmt.Errorf("%w: password fields do not match", ErrInvalidRequest)
	}
	return nil
}
