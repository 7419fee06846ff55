package apitest

import (
	"cmp"
	"encoding/json"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"github.com/wolfeidau/murmur/internal/models"
)

type authedHandler func(w http.ResponseWriter, r *http.Request, viewer *user)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func detail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

func fieldError(w http.ResponseWriter, field, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string][]string{field: {msg}})
}

func (s *Server) viewer(r *http.Request) (*user, bool, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, false, nil
	}
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil, true, errMalformedAuth
	}
	id, err := s.verify(raw)
	if err != nil {
		return nil, true, err
	}

	s.mu.Lock()
	u, found := s.users[id]
	s.mu.Unlock()
	if !found {
		return nil, true, errUnknownUser
	}
	return u, true, nil
}

type apiError string

func (e apiError) Error() string { return string(e) }

const (
	errMalformedAuth apiError = "malformed authorization header"
	errUnknownUser   apiError = "user not found"
)

func (s *Server) authed(h authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, present, err := s.viewer(r)
		if !present {
			detail(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
			return
		}
		if err != nil {
			detail(w, http.StatusUnauthorized, "Given token not valid for any token type")
			return
		}
		h(w, r, u)
	}
}

func (s *Server) optional(h authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, present, err := s.viewer(r)
		if present && err != nil {
			detail(w, http.StatusUnauthorized, "Given token not valid for any token type")
			return
		}
		h(w, r, u)
	}
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

func viewerID(u *user) int64 {
	if u == nil {
		return 0
	}
	return u.ID
}

func sortedKeys(m map[int64]bool) []int64 {
	out := make([]int64, 0, len(m))
	for k, v := range m {
		if v {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}

// The render helpers must be called with s.mu held.

func (s *Server) renderUser(u *user, viewer int64) models.User {
	out := u.User
	out.Following = sortedKeys(u.following)
	out.Followers = []int64{}
	for _, other := range s.users {
		if other.following[u.ID] {
			out.Followers = append(out.Followers, other.ID)
		}
	}
	slices.Sort(out.Followers)
	out.IsFollowing = viewer != 0 && slices.Contains(out.Followers, viewer)
	return out
}

func (s *Server) renderPost(p *post, viewer int64) models.Post {
	out := p.Post
	if author, ok := s.users[p.authorID]; ok {
		out.Author = s.renderUser(author, viewer)
	}
	out.Likes = sortedKeys(p.likes)
	out.Dislikes = sortedKeys(p.dislikes)
	return out
}

func (s *Server) renderComment(c *comment) models.Comment {
	out := c.Comment
	if author, ok := s.users[c.authorID]; ok {
		out.Author = s.renderUser(author, 0)
	}
	out.Likes = sortedKeys(c.likes)
	return out
}

func (s *Server) renderSubComment(sc *subComment) models.SubComment {
	out := sc.SubComment
	if author, ok := s.users[sc.authorID]; ok {
		out.Author = s.renderUser(author, 0)
	}
	out.Likes = sortedKeys(sc.likes)
	return out
}

func newestFirst[T any](items []T, at func(T) time.Time, id func(T) int64) {
	slices.SortFunc(items, func(a, b T) int {
		if c := at(b).Compare(at(a)); c != 0 {
			return c
		}
		return cmp.Compare(id(b), id(a))
	})
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var creds models.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		detail(w, http.StatusBadRequest, "malformed request body")
		return
	}

	s.mu.Lock()
	var found *user
	for _, u := range s.users {
		if u.Username == creds.Username {
			found = u
			break
		}
	}
	s.mu.Unlock()

	if found == nil || bcrypt.CompareHashAndPassword(found.passwordHash, []byte(creds.Password)) != nil {
		detail(w, http.StatusUnauthorized, "No active account found with the given credentials")
		return
	}

	access, err := s.sign(found, s.now().Add(s.ttl), "access")
	if err != nil {
		detail(w, http.StatusInternalServerError, err.Error())
		return
	}
	refresh, err := s.sign(found, s.now().Add(24*time.Hour), "refresh")
	if err != nil {
		detail(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, models.TokenPair{Access: access, Refresh: refresh})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var reg models.Registration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		detail(w, http.StatusBadRequest, "malformed request body")
		return
	}

	switch {
	case reg.Username == "":
		fieldError(w, "username", "This field may not be blank.")
		return
	case reg.Email == "":
		fieldError(w, "email", "This field may not be blank.")
		return
	case reg.Password != reg.Password2:
		fieldError(w, "password", "Password fields do not match.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == reg.Username {
			fieldError(w, "username", "Username is already taken.")
			return
		}
		if u.Email == reg.Email {
			fieldError(w, "email", "Email is already in use.")
			return
		}
	}

	created, err := s.createUser(models.User{
		Username:  reg.Username,
		Email:     reg.Email,
		FirstName: reg.FirstName,
		LastName:  reg.LastName,
	}, reg.Password)
	if err != nil {
		detail(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, models.RegisterResult{
		User:    s.renderUser(created, 0),
		Message: "User created successfully",
	})
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request, viewer *user) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, s.renderUser(u, viewer.ID))
	}
	slices.SortFunc(out, func(a, b models.User) int { return cmp.Compare(a.ID, b.ID) })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request, viewer *user) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[pathID(r)]
	if !ok {
		detail(w, http.StatusNotFound, "No User matches the given query.")
		return
	}
	writeJSON(w, http.StatusOK, s.renderUser(u, viewer.ID))
}

func (s *Server) handleEditProfile(w http.ResponseWriter, r *http.Request, viewer *user) {
	var in models.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		detail(w, http.StatusBadRequest, "malformed request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[pathID(r)]
	if !ok {
		detail(w, http.StatusNotFound, "No User matches the given query.")
		return
	}
	if u.ID != viewer.ID {
		detail(w, http.StatusForbidden, "You do not have permission to edit this profile.")
		return
	}

	for dst, src := range map[*string]*string{
		&u.FirstName:   in.FirstName,
		&u.LastName:    in.LastName,
		&u.Email:       in.Email,
		&u.Bio:         in.Bio,
		&u.Gender:      in.Gender,
		&u.Location:    in.Location,
		&u.PhoneNumber: in.PhoneNumber,
		&u.Website:     in.Website,
		&u.DateOfBirth: in.DateOfBirth,
	} {
		if src != nil {
			*dst = *src
		}
	}

	writeJSON(w, http.StatusOK, s.renderUser(u, viewer.ID))
}

func (s *Server) userByName(name string) (*user, bool) {
	for _, u := range s.users {
		if u.Username == name {
			return u, true
		}
	}
	return nil, false
}

func (s *Server) handleFollowToggle(w http.ResponseWriter, r *http.Request, viewer *user) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.userByName(mux.Vars(r)["username"])
	if !ok {
		detail(w, http.StatusNotFound, "No User matches the given query.")
		return
	}
	if target.ID == viewer.ID {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "You cannot follow yourself."})
		return
	}

	res := models.FollowResult{}
	if viewer.following[target.ID] {
		delete(viewer.following, target.ID)
		res.Message = "You have unfollowed the user."
	} else {
		viewer.following[target.ID] = true
		res.IsFollowing = true
		res.Message = "You are now following the user."
	}
	res.FollowersCount = len(s.renderUser(target, 0).Followers)

	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleFollowers(w http.ResponseWriter, r *http.Request, viewer *user) {
	s.listRelated(w, r, viewer, func(target, other *user) bool { return other.following[target.ID] })
}

func (s *Server) handleFollowing(w http.ResponseWriter, r *http.Request, viewer *user) {
	s.listRelated(w, r, viewer, func(target, other *user) bool { return target.following[other.ID] })
}

func (s *Server) listRelated(w http.ResponseWriter, r *http.Request, viewer *user, related func(target, other *user) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.userByName(mux.Vars(r)["username"])
	if !ok {
		detail(w, http.StatusNotFound, "No User matches the given query.")
		return
	}

	out := []models.User{}
	for _, other := range s.users {
		if related(target, other) {
			out = append(out, s.renderUser(other, viewer.ID))
		}
	}
	slices.SortFunc(out, func(a, b models.User) int { return cmp.Compare(a.ID, b.ID) })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request, viewer *user) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vid := viewerID(viewer)
	out := []models.Post{}
	for _, p := range s.posts {
		if p.IsPublic || (vid != 0 && p.authorID == vid) {
			out = append(out, s.renderPost(p, vid))
		}
	}
	newestFirst(out, func(p models.Post) time.Time { return p.CreatedAt }, func(p models.Post) int64 { return p.ID })
	writeJSON(w, http.StatusOK, out)
}

// visiblePost looks up a post the viewer may see. Call with s.mu held.
func (s *Server) visiblePost(w http.ResponseWriter, r *http.Request, viewer *user) (*post, bool) {
	p, ok := s.posts[pathID(r)]
	if !ok {
		detail(w, http.StatusNotFound, "No Post matches the given query.")
		return nil, false
	}
	if !p.IsPublic && p.authorID != viewer.ID {
		detail(w, http.StatusForbidden, "You do not have permission to view this post.")
		return nil, false
	}
	return p, true
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request, viewer *user) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.visiblePost(w, r, viewer)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.renderPost(p, viewer.ID))
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request, viewer *user) {
	var in models.PostInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		detail(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if strings.TrimSpace(in.Content) == "" {
		fieldError(w, "content", "This field may not be blank.")
		return
	}

	public := true
	if in.IsPublic != nil {
		public = *in.IsPublic
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.createPost(viewer.ID, in.Content, public, nil)
	p.Image = in.Image
	writeJSON(w, http.StatusCreated, s.renderPost(p, viewer.ID))
}

func (s *Server) handleUpdatePost(w http.ResponseWriter, r *http.Request, viewer *user) {
	var in models.PostInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		detail(w, http.StatusBadRequest, "malformed request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.visiblePost(w, r, viewer)
	if !ok {
		return
	}
	if p.authorID != viewer.ID {
		detail(w, http.StatusForbidden, "You do not have permission to edit this post.")
		return
	}
	if strings.TrimSpace(in.Content) == "" {
		fieldError(w, "content", "This field may not be blank.")
		return
	}

	p.Content = in.Content
	if in.Image != "" {
		p.Image = in.Image
	}
	if in.IsPublic != nil {
		p.IsPublic = *in.IsPublic
	}
	p.UpdatedAt = s.tick()

	writeJSON(w, http.StatusOK, s.renderPost(p, viewer.ID))
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request, viewer *user) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.visiblePost(w, r, viewer)
	if !ok {
		return
	}
	if p.authorID != viewer.ID {
		detail(w, http.StatusForbidden, "You do not have permission to delete this post.")
		return
	}

	delete(s.posts, p.ID)
	for id, c := range s.comments {
		if c.Post == p.ID {
			delete(s.comments, id)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRepost(w http.ResponseWriter, r *http.Request, viewer *user) {
	var in models.RepostInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		detail(w, http.StatusBadRequest, "malformed request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.posts[in.PostID]
	if !ok {
		detail(w, http.StatusNotFound, "No Post matches the given query.")
		return
	}

	content := in.Content
	if content == "" {
		content = original.Content
	}
	from := original.ID
	p := s.createPost(viewer.ID, content, true, &from)
	p.Image = original.Image

	writeJSON(w, http.StatusCreated, models.Repost{Content: p.Content, Image: p.Image, RepostedFrom: from})
}

func toggle(set map[int64]bool, id int64) bool {
	if set[id] {
		delete(set, id)
		return false
	}
	set[id] = true
	return true
}

func (s *Server) handleLikePost(w http.ResponseWriter, r *http.Request, viewer *user) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[pathID(r)]
	if !ok {
		detail(w, http.StatusNotFound, "No Post matches the given query.")
		return
	}
	if toggle(p.likes, viewer.ID) {
		writeJSON(w, http.StatusOK, models.Message{Message: "You have liked the post."})
		return
	}
	writeJSON(w, http.StatusOK, models.Message{Message: "You have unliked the post."})
}

func (s *Server) handleDislikePost(w http.ResponseWriter, r *http.Request, viewer *user) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[pathID(r)]
	if !ok {
		detail(w, http.StatusNotFound, "No Post matches the given query.")
		return
	}
	if toggle(p.dislikes, viewer.ID) {
		writeJSON(w, http.StatusOK, models.Message{Message: "You have disliked the post."})
		return
	}
	writeJSON(w, http.StatusOK, models.Message{Message: "You have undisliked the post."})
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request, viewer *user) {
	s.mu.Lock()
	defer s.mu.Unlock()

	postID := pathID(r)
	if _, ok := s.posts[postID]; !ok {
		detail(w, http.StatusNotFound, "No Post matches the given query.")
		return
	}

	out := []models.Comment{}
	for _, c := range s.comments {
		if c.Post == postID {
			out = append(out, s.renderComment(c))
		}
	}
	newestFirst(out, func(c models.Comment) time.Time { return c.CreatedAt }, func(c models.Comment) int64 { return c.ID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request, viewer *user) {
	var in models.CommentInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		detail(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if strings.TrimSpace(in.Content) == "" {
		fieldError(w, "content", "This field may not be blank.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[in.Post]; !ok {
		detail(w, http.StatusNotFound, "No Post matches the given query.")
		return
	}
	writeJSON(w, http.StatusCreated, s.renderComment(s.createComment(viewer.ID, in.Post, in.Content)))
}

func (s *Server) handleUpdateComment(w http.ResponseWriter, r *http.Request, viewer *user) {
	var in models.CommentInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		detail(w, http.StatusBadRequest, "malformed request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[pathID(r)]
	if !ok {
		detail(w, http.StatusNotFound, "No Comment matches the given query.")
		return
	}
	if c.authorID != viewer.ID {
		detail(w, http.StatusForbidden, "You do not have permission to edit this comment.")
		return
	}
	if strings.TrimSpace(in.Content) == "" {
		fieldError(w, "content", "This field may not be blank.")
		return
	}

	c.Content = in.Content
	writeJSON(w, http.StatusOK, s.renderComment(c))
}

func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request, viewer *user) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[pathID(r)]
	if !ok {
		detail(w, http.StatusNotFound, "No Comment matches the given query.")
		return
	}

	// The post author may also remove comments on their post.
	postAuthor := int64(0)
	if p, ok := s.posts[c.Post]; ok {
		postAuthor = p.authorID
	}
	if c.authorID != viewer.ID && postAuthor != viewer.ID {
		detail(w, http.StatusForbidden, "You do not have permission to delete this comment.")
		return
	}

	delete(s.comments, c.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLikeComment(w http.ResponseWriter, r *http.Request, viewer *user) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[pathID(r)]
	if !ok {
		detail(w, http.StatusNotFound, "No Comment matches the given query.")
		return
	}
	if toggle(c.likes, viewer.ID) {
		writeJSON(w, http.StatusOK, models.Message{Message: "You have liked the comment."})
		return
	}
	writeJSON(w, http.StatusOK, models.Message{Message: "You have unliked the comment."})
}

func (s *Server) handleListSubComments(w http.ResponseWriter, r *http.Request, viewer *user) {
	s.mu.Lock()
	defer s.mu.Unlock()

	commentID := pathID(r)
	if _, ok := s.comments[commentID]; !ok {
		detail(w, http.StatusNotFound, "No Comment matches the given query.")
		return
	}

	out := []models.SubComment{}
	for _, sc := range s.subComments {
		if sc.Comment == commentID {
			out = append(out, s.renderSubComment(sc))
		}
	}
	newestFirst(out, func(c models.SubComment) time.Time { return c.CreatedAt }, func(c models.SubComment) int64 { return c.ID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateSubComment(w http.ResponseWriter, r *http.Request, viewer *user) {
	var in models.SubCommentInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		detail(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if strings.TrimSpace(in.Content) == "" {
		fieldError(w, "content", "This field may not be blank.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	commentID := pathID(r)
	if _, ok := s.comments[commentID]; !ok {
		detail(w, http.StatusNotFound, "No Comment matches the given query.")
		return
	}
	writeJSON(w, http.StatusCreated, s.renderSubComment(s.createSubComment(viewer.ID, commentID, in.Content)))
}

func (s *Server) handleLikeSubComment(w http.ResponseWriter, r *http.Request, viewer *user) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, ok := s.subComments[pathID(r)]
	if !ok {
		detail(w, http.StatusNotFound, "No SubComment matches the given query.")
		return
	}
	if toggle(sc.likes, viewer.ID) {
		writeJSON(w, http.StatusOK, models.Message{Message: "You have liked the sub-comment."})
		return
	}
	writeJSON(w, http.StatusOK, models.Message{Message: "You have unliked the sub-comment."})
}
