package feed

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/wolfeidau/murmur/internal/models"
	"github.com/wolfeidau/murmur/internal/optimistic"
	"github.com/wolfeidau/murmur/internal/session"
)

// ProfilesAPI is the subset of the API client the profile view uses.
type ProfilesAPI interface {
	ListProfiles(ctx context.Context) ([]models.User, error)
	GetProfile(ctx context.Context, id int64) (*models.User, error)
	UpdateProfile(ctx context.Context, id int64, in models.ProfileUpdate) (*models.User, error)
	Followers(ctx context.Context, username string) ([]models.User, error)
	Following(ctx context.Context, username string) ([]models.User, error)
	ToggleFollow(ctx context.Context, username string) (*models.FollowResult, error)
}

// Profile is a user profile with a follower count the follow toggle can adjust.
type Profile struct {
	models.User
	FollowerCount int
}

func NewProfile(u models.User) Profile {
	return Profile{User: u, FollowerCount: u.FollowersCount()}
}

func profileID(p Profile) int64 { return p.ID }

// ProfileView is the profile directory and follow toggle.
type ProfileView struct {
	view
	api  ProfilesAPI
	list *optimistic.List[Profile]
}

func NewProfileView(sess *session.Store, api ProfilesAPI, opts ...Option) (*ProfileView, error) {
	v, err := newView(sess, opts)
	if err != nil {
		return nil, err
	}
	return &ProfileView{
		view: v,
		api:  api,
		list: newList(profileID, v.opts),
	}, nil
}

// Load replaces the directory with every profile.
func (v *ProfileView) Load(ctx context.Context) error {
	ctx, done, err := v.scope(ctx)
	if err != nil {
		return err
	}
	defer done()

	users, err := v.api.ListProfiles(ctx)
	if err != nil {
		return err
	}

	items := make([]Profile, 0, len(users))
	for _, u := range users {
		items = append(items, NewProfile(u))
	}
	v.list.Reset(items)
	return nil
}

// Show fetches one profile and adds or refreshes it in the directory.
func (v *ProfileView) Show(ctx context.Context, id int64) (Profile, error) {
	ctx, done, err := v.scope(ctx)
	if err != nil {
		return Profile{}, err
	}
	defer done()

	u, err := v.api.GetProfile(ctx, id)
	if err != nil {
		return Profile{}, err
	}

	p := NewProfile(*u)
	if !v.list.Replace(p) {
		v.list.Prepend(p)
	}
	return p, nil
}

// Find returns the listed profile with the given username.
func (v *ProfileView) Find(username string) (Profile, bool) {
	for _, p := range v.list.Items() {
		if p.Username == username {
			return p, true
		}
	}
	return Profile{}, false
}

func (v *ProfileView) Get(id int64) (Profile, bool) {
	return v.list.Get(id)
}

// Profiles returns the directory ordered by id.
func (v *ProfileView) Profiles() []Profile {
	return v.list.Sorted(func(a, b Profile) int { return cmp.Compare(a.ID, b.ID) })
}

// ToggleFollow follows or unfollows the profile optimistically and then takes
// the follow state and follower count from the server's answer.
func (v *ProfileView) ToggleFollow(ctx context.Context, id int64) error {
	viewer, err := v.requireViewer()
	if err != nil {
		return err
	}
	if id == viewer {
		return fmt.Errorf("%w: you cannot follow yourself", models.ErrInvalidRequest)
	}
	ctx, done, err := v.scope(ctx)
	if err != nil {
		return err
	}
	defer done()

	var username string
	return v.list.Update(ctx, "profile.follow", id, func(p *Profile) error {
		username = p.Username
		if p.IsFollowing {
			p.IsFollowing = false
			p.FollowerCount = max(0, p.FollowerCount-1)
			p.Followers = slices.DeleteFunc(slices.Clone(p.Followers), func(f int64) bool { return f == viewer })
		} else {
			p.IsFollowing = true
			p.FollowerCount++
			p.Followers = append(slices.Clone(p.Followers), viewer)
		}
		return nil
	}, func(ctx context.Context) (*Profile, error) {
		res, err := v.api.ToggleFollow(ctx, username)
		if err != nil {
			return nil, err
		}
		current, ok := v.list.Get(id)
		if !ok {
			return nil, nil
		}
		current.IsFollowing = res.IsFollowing
		current.FollowerCount = res.FollowersCount
		return &current, nil
	})
}

// Edit updates the logged in user's own profile.
func (v *ProfileView) Edit(ctx context.Context, in models.ProfileUpdate) (Profile, error) {
	viewer, err := v.requireViewer()
	if err != nil {
		return Profile{}, err
	}
	ctx, done, err := v.scope(ctx)
	if err != nil {
		return Profile{}, err
	}
	defer done()

	u, err := v.api.UpdateProfile(ctx, viewer, in)
	if err != nil {
		return Profile{}, err
	}

	p := NewProfile(*u)
	if !v.list.Replace(p) {
		v.list.Prepend(p)
	}
	return p, nil
}

// Followers lists who follows username.
func (v *ProfileView) Followers(ctx context.Context, username string) ([]Profile, error) {
	return v.related(ctx, username, v.api.Followers)
}

// Following lists who username follows.
func (v *ProfileView) Following(ctx context.Context, username string) ([]Profile, error) {
	return v.related(ctx, username, v.api.Following)
}

func (v *ProfileView) related(ctx context.Context, username string, fetch func(context.Context, string) ([]models.User, error)) ([]Profile, error) {
	ctx, done, err := v.scope(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	users, err := fetch(ctx, username)
	if err != nil {
		return nil, err
	}

	out := make([]Profile, 0, len(users))
	for _, u := range users {
		out = append(out, NewProfile(u))
	}
	return out, nil
}
