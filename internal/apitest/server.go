// Package apitest runs an in-process fake of the social API for tests. It keeps
// users, posts, comments and replies in memory, signs HS256 access tokens and can
// inject failures or hold requests open on chosen endpoints.
package apitest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	mhttp "github.com/wolfeidau/murmur/internal/http"
	"github.com/wolfeidau/murmur/internal/models"
	"github.com/wolfeidau/murmur/internal/session"
)

type user struct {
	models.User
	passwordHash []byte
	following    map[int64]bool
}

type post struct {
	models.Post
	authorID int64
	likes    map[int64]bool
	dislikes map[int64]bool
}

type comment struct {
	models.Comment
	authorID int64
	likes    map[int64]bool
}

type subComment struct {
	models.SubComment
	authorID int64
	likes    map[int64]bool
}

type fault struct {
	method    string
	path      string
	status    int
	remaining int // <= 0 means until removed
	hold      chan struct{}
	entered   chan struct{}
	closeOnce sync.Once
}

func (f *fault) release() {
	if f.hold != nil {
		f.closeOnce.Do(func() { close(f.hold) })
	}
}

// Server is a fake API server. Create it with New and Close it when done.
type Server struct {
	srv    *httptest.Server
	logger zerolog.Logger
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu          sync.Mutex
	nextID      int64
	clock       time.Time
	users       map[int64]*user
	posts       map[int64]*post
	comments    map[int64]*comment
	subComments map[int64]*subComment
	faults      []*fault
	calls       map[string]int
}

type Option func(*Server)

// WithTokenTTL sets the lifetime of issued access tokens.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Server) { s.ttl = ttl }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// New starts a fake API server.
func New(opts ...Option) *Server {
	s := &Server{
		logger:      zerolog.Nop(),
		secret:      []byte(uuid.NewString()),
		ttl:         time.Hour,
		now:         time.Now,
		clock:       time.Now().UTC().Add(-24 * time.Hour).Truncate(time.Second),
		users:       map[int64]*user{},
		posts:       map[int64]*post{},
		comments:    map[int64]*comment{},
		subComments: map[int64]*subComment{},
		calls:       map[string]int{},
	}

	for _, opt := range opts {
		opt(s)
	}

	handler := mhttp.RequestIDMiddleware()(mhttp.AccessLog(s.logger)(s.intercept(s.routes())))
	s.srv = httptest.NewServer(handler)

	return s
}

// URL is the API base, ending in /api/.
func (s *Server) URL() string {
	return s.srv.URL + "/api/"
}

func (s *Server) Close() {
	s.mu.Lock()
	for _, f := range s.faults {
		f.release()
	}
	s.mu.Unlock()
	s.srv.Close()
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/token/", s.handleToken).Methods(http.MethodPost)
	api.HandleFunc("/register/", s.handleRegister).Methods(http.MethodPost)

	api.HandleFunc("/profiles/", s.authed(s.handleListProfiles)).Methods(http.MethodGet)
	api.HandleFunc("/profiles/{id:[0-9]+}/", s.authed(s.handleGetProfile)).Methods(http.MethodGet)
	api.HandleFunc("/profiles/{id:[0-9]+}/edit/", s.authed(s.handleEditProfile)).Methods(http.MethodPut, http.MethodPatch)
	api.HandleFunc("/follow-unfollow/{username}/", s.authed(s.handleFollowToggle)).Methods(http.MethodPost)

	api.HandleFunc("/posts/", s.optional(s.handleListPosts)).Methods(http.MethodGet)
	api.HandleFunc("/posts/create/", s.authed(s.handleCreatePost)).Methods(http.MethodPost)
	api.HandleFunc("/posts/repost/", s.authed(s.handleRepost)).Methods(http.MethodPost)
	api.HandleFunc("/posts/{id:[0-9]+}/", s.authed(s.handleGetPost)).Methods(http.MethodGet)
	api.HandleFunc("/posts/{id:[0-9]+}/", s.authed(s.handleUpdatePost)).Methods(http.MethodPut, http.MethodPatch)
	api.HandleFunc("/posts/{id:[0-9]+}/", s.authed(s.handleDeletePost)).Methods(http.MethodDelete)
	api.HandleFunc("/posts/{id:[0-9]+}/like/", s.authed(s.handleLikePost)).Methods(http.MethodPost)
	api.HandleFunc("/posts/{id:[0-9]+}/dislike/", s.authed(s.handleDislikePost)).Methods(http.MethodPost)
	api.HandleFunc("/posts/{id:[0-9]+}/comments/", s.authed(s.handleListComments)).Methods(http.MethodGet)

	api.HandleFunc("/comments/create/", s.authed(s.handleCreateComment)).Methods(http.MethodPost)
	api.HandleFunc("/comments/{id:[0-9]+}/", s.authed(s.handleUpdateComment)).Methods(http.MethodPut, http.MethodPatch)
	api.HandleFunc("/comments/{id:[0-9]+}/", s.authed(s.handleDeleteComment)).Methods(http.MethodDelete)
	api.HandleFunc("/comments/{id:[0-9]+}/like/", s.authed(s.handleLikeComment)).Methods(http.MethodPost)
	api.HandleFunc("/comments/{id:[0-9]+}/subcomments/", s.authed(s.handleCreateSubComment)).Methods(http.MethodPost)
	api.HandleFunc("/comments/{id:[0-9]+}/subcomments/list/", s.authed(s.handleListSubComments)).Methods(http.MethodGet)
	api.HandleFunc("/subcomments/{id:[0-9]+}/like/", s.authed(s.handleLikeSubComment)).Methods(http.MethodPost)

	api.HandleFunc("/{username}/followers/", s.authed(s.handleFollowers)).Methods(http.MethodGet)
	api.HandleFunc("/{username}/following/", s.authed(s.handleFollowing)).Methods(http.MethodGet)

	return r
}

func callKey(method, path string) string {
	return method + " " + strings.TrimPrefix(path, "/")
}

// intercept counts calls and applies injected faults before routing.
func (s *Server) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api/")
		key := callKey(r.Method, path)

		s.mu.Lock()
		s.calls[key]++
		var matched *fault
		for i, f := range s.faults {
			if f.method == r.Method && f.path == path {
				matched = f
				if f.remaining > 0 {
					f.remaining--
					if f.remaining == 0 {
						s.faults = slices.Delete(s.faults, i, i+1)
					}
				}
				break
			}
		}
		s.mu.Unlock()

		if matched != nil && matched.hold != nil {
			if matched.entered != nil {
				select {
				case matched.entered <- struct{}{}:
				default:
				}
			}
			select {
			case <-matched.hold:
			case <-r.Context().Done():
				return
			}
		}

		if matched != nil && matched.status != 0 {
			writeJSON(w, matched.status, map[string]string{"detail": http.StatusText(matched.status)})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Fail makes the next times calls to method path (relative to /api/, e.g.
// "posts/5/like/") answer with status. times <= 0 fails until the returned func is called.
func (s *Server) Fail(method, path string, status, times int) (restore func()) {
	f := &fault{method: method, path: strings.TrimPrefix(path, "/"), status: status, remaining: times}
	s.addFault(f)
	return func() { s.removeFault(f) }
}

// Hold blocks calls to method path until release is called. entered receives a
// value each time a request starts waiting. When status is non-zero the held
// request then fails with it.
func (s *Server) Hold(method, path string, status int) (entered <-chan struct{}, release func()) {
	f := &fault{
		method:  method,
		path:    strings.TrimPrefix(path, "/"),
		status:  status,
		hold:    make(chan struct{}),
		entered: make(chan struct{}, 16),
	}
	s.addFault(f)

	return f.entered, func() {
		s.removeFault(f)
		f.release()
	}
}

func (s *Server) addFault(f *fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, f)
}

func (s *Server) removeFault(f *fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = slices.DeleteFunc(s.faults, func(x *fault) bool { return x == f })
}

// Calls returns how many requests reached method path (relative to /api/).
func (s *Server) Calls(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[callKey(method, path)]
}

func (s *Server) id() int64 {
	s.nextID++
	return s.nextID
}

// tick returns strictly increasing creation times.
func (s *Server) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

// CreateUser seeds an account. Only Username, Email, FirstName and LastName of u are used.
func (s *Server) CreateUser(u models.User, password string) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	created, err := s.createUser(u, password)
	if err != nil {
		panic(fmt.Sprintf("apitest: create user: %v", err))
	}
	return s.renderUser(created, 0)
}

func (s *Server) createUser(u models.User, password string) (*user, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}

	created := &user{
		User: models.User{
			ID:        s.id(),
			Username:  u.Username,
			Email:     u.Email,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Bio:       u.Bio,
		},
		passwordHash: hash,
		following:    map[int64]bool{},
	}
	s.users[created.ID] = created
	return created, nil
}

// CreatePost seeds a post authored by authorID.
func (s *Server) CreatePost(authorID int64, content string, public bool) models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renderPost(s.createPost(authorID, content, public, nil), 0)
}

func (s *Server) createPost(authorID int64, content string, public bool, from *int64) *post {
	at := s.tick()
	p := &post{
		Post: models.Post{
			ID:           s.id(),
			Content:      content,
			CreatedAt:    at,
			UpdatedAt:    at,
			IsPublic:     public,
			RepostedFrom: from,
		},
		authorID: authorID,
		likes:    map[int64]bool{},
		dislikes: map[int64]bool{},
	}
	s.posts[p.ID] = p
	return p
}

// CreateComment seeds a comment on postID.
func (s *Server) CreateComment(authorID, postID int64, content string) models.Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renderComment(s.createComment(authorID, postID, content))
}

func (s *Server) createComment(authorID, postID int64, content string) *comment {
	c := &comment{
		Comment: models.Comment{
			ID:        s.id(),
			Post:      postID,
			Content:   content,
			CreatedAt: s.tick(),
		},
		authorID: authorID,
		likes:    map[int64]bool{},
	}
	s.comments[c.ID] = c
	return c
}

// CreateSubComment seeds a reply on commentID.
func (s *Server) CreateSubComment(authorID, commentID int64, content string) models.SubComment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renderSubComment(s.createSubComment(authorID, commentID, content))
}

func (s *Server) createSubComment(authorID, commentID int64, content string) *subComment {
	sc := &subComment{
		SubComment: models.SubComment{
			ID:        s.id(),
			Comment:   commentID,
			Content:   content,
			CreatedAt: s.tick(),
		},
		authorID: authorID,
		likes:    map[int64]bool{},
	}
	s.subComments[sc.ID] = sc
	return sc
}

// LikePostAs records a like on a post by userID, bypassing HTTP.
func (s *Server) LikePostAs(postID, userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.posts[postID]; ok {
		p.likes[userID] = true
	}
}

// LikeCommentAs records a like on a comment by userID, bypassing HTTP.
func (s *Server) LikeCommentAs(commentID, userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.comments[commentID]; ok {
		c.likes[userID] = true
	}
}

// Post returns the stored post as an anonymous viewer sees it.
func (s *Server) Post(id int64) (models.Post, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return models.Post{}, false
	}
	return s.renderPost(p, 0), true
}

// Comment returns the stored comment.
func (s *Server) Comment(id int64) (models.Comment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[id]
	if !ok {
		return models.Comment{}, false
	}
	return s.renderComment(c), true
}

// Token issues an access token for userID using the server TTL.
func (s *Server) Token(userID int64) string {
	return s.TokenWithExpiry(userID, s.now().Add(s.ttl))
}

// TokenWithExpiry issues an access token for userID expiring at exp.
func (s *Server) TokenWithExpiry(userID int64, exp time.Time) string {
	s.mu.Lock()
	u, ok := s.users[userID]
	s.mu.Unlock()
	if !ok {
		panic(fmt.Sprintf("apitest: unknown user %d", userID))
	}

	tok, err := s.sign(u, exp, "access")
	if err != nil {
		panic(fmt.Sprintf("apitest: sign token: %v", err))
	}
	return tok
}

type tokenClaims struct {
	session.Claims
	TokenType string `json:"token_type"`
}

func (s *Server) sign(u *user, exp time.Time, kind string) (string, error) {
	claims := tokenClaims{
		Claims: session.Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				IssuedAt:  jwt.NewNumericDate(s.now()),
				ExpiresAt: jwt.NewNumericDate(exp),
			},
			UserID:    session.UserID(u.ID),
			Username:  u.Username,
			Email:     u.Email,
			FirstName: u.FirstName,
			LastName:  u.LastName,
		},
		TokenType: kind,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Server) verify(raw string) (int64, error) {
	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return 0, err
	}
	if claims.TokenType != "access" {
		return 0, fmt.Errorf("token has type %q", claims.TokenType)
	}
	return int64(claims.UserID), nil
}
