package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"gamereviews/internal/auth"
	"gamereviews/internal/ratelimiter"
	"gamereviews/internal/steamspy"
	"gamereviews/internal/store"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type ctxType = context.Context

// mockDB is a single in-memory backing store shared by the per-entity
// mocks so cross-entity invariants behave like the real schema.
type mockDB struct {
	mu       sync.Mutex
	nextID   int64
	users    map[int64]*store.User
	games    map[int64]*store.Game
	taxonomy map[int64]map[string][]string
	comments map[int64]*store.Comment
	reviews  map[int64]*store.Review
	likes    map[int64]map[int64]bool // commentID -> set of userIDs
}

func newMockDB() *mockDB {
	return &mockDB{
		users:    map[int64]*store.User{},
		games:    map[int64]*store.Game{},
		taxonomy: map[int64]map[string][]string{},
		comments: map[int64]*store.Comment{},
		reviews:  map[int64]*store.Review{},
		likes:    map[int64]map[int64]bool{},
	}
}

func (db *mockDB) id() int64 {
	db.nextID++
	return db.nextID
}

func newMockStorage() (store.Storage, *mockDB) {
	db := newMockDB()
	return store.Storage{
		Users:    &mockUsers{db},
		Games:    &mockGames{db},
		Comments: &mockComments{db},
		Reviews:  &mockReviews{db},
		Likes:    &mockLikes{db},
	}, db
}

type mockUsers struct{ db *mockDB }

func (m *mockUsers) Create(_ ctxType, user *store.User) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, u := range m.db.users {
		if u.Email == user.Email {
			return store.ErrDuplicateEmail
		}
		if u.Username == user.Username {
			return store.ErrDuplicateUsername
		}
	}
	user.Role = "user"
	if len(m.db.users) == 0 {
		user.Role = "admin"
	}
	user.ID = m.db.id()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	cp := *user
	m.db.users[user.ID] = &cp
	return nil
}

func (m *mockUsers) GetByID(_ ctxType, id int64) (*store.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	u, ok := m.db.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *mockUsers) GetByEmail(_ ctxType, email string) (*store.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, u := range m.db.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockUsers) UpdateProfile(_ ctxType, id int64, updates map[string]interface{}) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	u, ok := m.db.users[id]
	if !ok {
		return store.ErrNotFound
	}
	if v, ok := updates["username"]; ok {
		name := v.(string)
		for otherID, other := range m.db.users {
			if otherID != id && other.Username == name {
				return store.ErrDuplicateUsername
			}
		}
		u.Username = name
	}
	if v, ok := updates["description"]; ok {
		s := v.(string)
		u.Description = &s
	}
	if v, ok := updates["publication"]; ok {
		s := v.(string)
		u.Publication = &s
	}
	return nil
}

func (m *mockUsers) SetProfilePicture(_ ctxType, url string, id int64) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	u, ok := m.db.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.ImageURL = &url
	return nil
}

func (m *mockUsers) UpdateRole(_ ctxType, id int64, role string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	firstID := int64(0)
	for uid := range m.db.users {
		if firstID == 0 || uid < firstID {
			firstID = uid
		}
	}
	if id == firstID {
		return store.ErrFirstAccountRole
	}
	u, ok := m.db.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.Role = role
	return nil
}

func (m *mockUsers) Delete(_ ctxType, id int64) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.db.users, id)
	for rid, rv := range m.db.reviews {
		if rv.UserID == id {
			delete(m.db.reviews, rid)
		}
	}
	return nil
}

type mockGames struct{ db *mockDB }

func (m *mockGames) Create(_ ctxType, game *store.Game, taxonomies map[string][]string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if game.ParentID != nil {
		parent, ok := m.db.games[*game.ParentID]
		if !ok {
			return store.ErrNotFound
		}
		if parent.ParentID != nil {
			return store.ErrNestedDLC
		}
	}
	for kind := range taxonomies {
		switch kind {
		case store.TaxonomyTags, store.TaxonomyCategories, store.TaxonomyPlatforms:
		default:
			// Nothing is persisted on a bad kind, same as a rolled-back tx.
			return fmt.Errorf("unknown taxonomy kind: %s", kind)
		}
	}
	game.ID = m.db.id()
	game.Code = fmt.Sprintf("g%06d", game.ID)
	game.CreatedAt = time.Now()
	game.UpdatedAt = game.CreatedAt
	cp := *game
	m.db.games[game.ID] = &cp
	for kind, values := range taxonomies {
		if len(values) == 0 {
			continue
		}
		if m.db.taxonomy[game.ID] == nil {
			m.db.taxonomy[game.ID] = map[string][]string{}
		}
		m.db.taxonomy[game.ID][kind] = append([]string{}, values...)
	}
	return nil
}

func (m *mockGames) GetByID(_ ctxType, id int64) (*store.Game, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	g, ok := m.db.games[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (m *mockGames) GetByCode(_ ctxType, code string) (*store.Game, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, g := range m.db.games {
		if g.Code == code {
			cp := *g
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockGames) List(_ ctxType, limit, offset int) ([]store.Game, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	games := []store.Game{}
	for _, g := range m.db.games {
		games = append(games, *g)
	}
	sort.Slice(games, func(i, j int) bool { return games[i].ID > games[j].ID })
	if offset >= len(games) {
		return []store.Game{}, nil
	}
	games = games[offset:]
	if len(games) > limit {
		games = games[:limit]
	}
	return games, nil
}

func (m *mockGames) Update(_ ctxType, id int64, updates map[string]interface{}) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	g, ok := m.db.games[id]
	if !ok {
		return store.ErrNotFound
	}
	if v, ok := updates["title"]; ok {
		g.Title = v.(string)
	}
	if v, ok := updates["description"]; ok {
		g.Description = v.(string)
	}
	if v, ok := updates["developer"]; ok {
		g.Developer = v.(string)
	}
	if v, ok := updates["publisher"]; ok {
		g.Publisher = v.(string)
	}
	if v, ok := updates["genre"]; ok {
		g.Genre = v.(string)
	}
	if v, ok := updates["release_date"]; ok {
		g.ReleaseDate = v.(time.Time)
	}
	if v, ok := updates["steam_app_id"]; ok {
		appID := v.(int64)
		g.SteamAppID = &appID
	}
	return nil
}

func (m *mockGames) Delete(_ ctxType, id int64) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.games[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.db.games, id)
	delete(m.db.taxonomy, id)
	for cid, c := range m.db.comments {
		if c.GameID == id {
			delete(m.db.comments, cid)
			delete(m.db.likes, cid)
		}
	}
	for rid, rv := range m.db.reviews {
		if rv.GameID == id {
			delete(m.db.reviews, rid)
		}
	}
	return nil
}

func (m *mockGames) GetChildren(_ ctxType, id int64) ([]store.Game, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	children := []store.Game{}
	for _, g := range m.db.games {
		if g.ParentID != nil && *g.ParentID == id {
			children = append(children, *g)
		}
	}
	sort.Slice(children, func(i, j int) bool {
		return children[i].ReleaseDate.Before(children[j].ReleaseDate)
	})
	return children, nil
}

func (m *mockGames) ReplaceTaxonomy(_ ctxType, gameID int64, kind string, values []string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.games[gameID]; !ok {
		return store.ErrNotFound
	}
	if m.db.taxonomy[gameID] == nil {
		m.db.taxonomy[gameID] = map[string][]string{}
	}
	m.db.taxonomy[gameID][kind] = append([]string{}, values...)
	return nil
}

func (m *mockGames) GetTaxonomy(_ ctxType, gameID int64, kind string) ([]string, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	return m.db.taxonomy[gameID][kind], nil
}

func (m *mockGames) AddMediaURL(_ ctxType, gameID int64, field, url string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	g, ok := m.db.games[gameID]
	if !ok {
		return store.ErrNotFound
	}
	switch field {
	case "image_url":
		g.ImageURL = &url
	case "video_url":
		g.VideoURL = &url
	default:
		return fmt.Errorf("invalid media field: %s", field)
	}
	return nil
}

type mockComments struct{ db *mockDB }

func (m *mockComments) Create(_ ctxType, c *store.Comment) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.games[c.GameID]; !ok {
		return store.ErrNotFound
	}
	if c.ParentID != nil {
		parent, ok := m.db.comments[*c.ParentID]
		if !ok {
			return store.ErrNotFound
		}
		if parent.GameID != c.GameID {
			return store.ErrCrossGameReply
		}
	}
	c.ID = m.db.id()
	c.CreatedAt = time.Now()
	cp := *c
	m.db.comments[c.ID] = &cp
	return nil
}

func (m *mockComments) GetByID(_ ctxType, id int64) (*store.Comment, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	c, ok := m.db.comments[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	if u, ok := m.db.users[c.UserID]; ok {
		cp.Username = u.Username
	}
	cp.LikeCount = len(m.db.likes[id])
	return &cp, nil
}

func (m *mockComments) ListTopLevel(_ ctxType, gameID int64) ([]store.Comment, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	out := []store.Comment{}
	for _, c := range m.db.comments {
		if c.GameID == gameID && c.ParentID == nil {
			cp := *c
			cp.LikeCount = len(m.db.likes[c.ID])
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *mockComments) GetReplies(_ ctxType, commentID int64) ([]store.Comment, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	out := []store.Comment{}
	for _, c := range m.db.comments {
		if c.ParentID != nil && *c.ParentID == commentID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockComments) UpdateBody(_ ctxType, commentID, userID int64, body string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	c, ok := m.db.comments[commentID]
	if !ok || c.UserID != userID {
		return store.ErrNotFound
	}
	c.Body = body
	c.Edited = true
	return nil
}

func (m *mockComments) Delete(_ ctxType, commentID int64) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.comments[commentID]; !ok {
		return store.ErrNotFound
	}
	m.deleteSubtree(commentID)
	return nil
}

func (m *mockComments) deleteSubtree(commentID int64) {
	delete(m.db.comments, commentID)
	delete(m.db.likes, commentID)
	for cid, c := range m.db.comments {
		if c.ParentID != nil && *c.ParentID == commentID {
			m.deleteSubtree(cid)
		}
	}
}

type mockReviews struct{ db *mockDB }

func (m *mockReviews) Create(_ ctxType, r *store.Review) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.games[r.GameID]; !ok {
		return store.ErrNotFound
	}
	for _, existing := range m.db.reviews {
		if existing.UserID == r.UserID && existing.GameID == r.GameID {
			return store.ErrDuplicateReview
		}
	}
	r.ID = m.db.id()
	r.CreatedAt = time.Now()
	cp := *r
	m.db.reviews[r.ID] = &cp
	return nil
}

func (m *mockReviews) GetByUserAndGame(_ ctxType, userID, gameID int64) (*store.Review, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, r := range m.db.reviews {
		if r.UserID == userID && r.GameID == gameID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockReviews) listWhere(match func(*store.Review) bool) []store.Review {
	out := []store.Review{}
	for _, r := range m.db.reviews {
		if match(r) {
			cp := *r
			if u, ok := m.db.users[r.UserID]; ok {
				cp.Username = u.Username
				cp.Publication = u.Publication
			}
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (m *mockReviews) ListByGame(_ ctxType, gameID int64) ([]store.Review, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	return m.listWhere(func(r *store.Review) bool { return r.GameID == gameID }), nil
}

func (m *mockReviews) Latest(_ ctxType, gameID int64, n int) ([]store.Review, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	out := m.listWhere(func(r *store.Review) bool { return r.GameID == gameID })
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (m *mockReviews) ListByUser(_ ctxType, userID int64) ([]store.Review, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	return m.listWhere(func(r *store.Review) bool { return r.UserID == userID }), nil
}

func (m *mockReviews) Stats(_ ctxType, gameID int64) (int, float64, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	count := 0
	sum := 0
	for _, r := range m.db.reviews {
		if r.GameID == gameID {
			count++
			sum += r.Rating
		}
	}
	if count == 0 {
		return 0, 0, nil
	}
	return count, float64(sum) / float64(count), nil
}

func (m *mockReviews) IncrementHelpful(_ ctxType, reviewID int64) error {
	return m.bump(reviewID, func(r *store.Review) { r.HelpfulCount++ })
}

func (m *mockReviews) IncrementReport(_ ctxType, reviewID int64) error {
	return m.bump(reviewID, func(r *store.Review) { r.ReportCount++ })
}

func (m *mockReviews) bump(reviewID int64, f func(*store.Review)) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	r, ok := m.db.reviews[reviewID]
	if !ok {
		return store.ErrNotFound
	}
	f(r)
	return nil
}

type mockLikes struct{ db *mockDB }

func (m *mockLikes) Like(_ ctxType, userID, commentID int64) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if _, ok := m.db.comments[commentID]; !ok {
		return store.ErrNotFound
	}
	if m.db.likes[commentID][userID] {
		return store.ErrAlreadyLiked
	}
	if m.db.likes[commentID] == nil {
		m.db.likes[commentID] = map[int64]bool{}
	}
	m.db.likes[commentID][userID] = true
	return nil
}

func (m *mockLikes) Unlike(_ ctxType, userID, commentID int64) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if !m.db.likes[commentID][userID] {
		return store.ErrNotFound
	}
	delete(m.db.likes[commentID], userID)
	return nil
}

func (m *mockLikes) CountForComment(_ ctxType, commentID int64) (int, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	return len(m.db.likes[commentID]), nil
}

type mockMailer struct{}

func (mockMailer) Send(templateFile, username, email string, data any) (int, error) {
	return http.StatusOK, nil
}

func newTestApplication(t *testing.T) (*application, *mockDB) {
	t.Helper()

	storage, db := newMockStorage()

	cld, err := cloudinary.NewFromParams("test-cloud", "key", "secret")
	require.NoError(t, err)

	app := &application{
		config: config{
			addr:        ":0",
			env:         "test",
			frontendURL: "http://localhost:5173",
			rateLimiter: ratelimiter.Config{Enabled: false},
		},
		store:         storage,
		logger:        zap.NewNop().Sugar(),
		cld:           cld,
		mailer:        mockMailer{},
		authenticator: auth.NewJWTAuthenticator("test-secret", "test-refresh-secret", "gamereviews", "gamereviews", time.Hour, 24*time.Hour),
		steamspy:      steamspy.NewClient(time.Second),
	}
	return app, db
}

func executeRequest(req *http.Request, mux http.Handler) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func jsonRequest(t *testing.T, method, target string, payload any) *http.Request {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func authorize(t *testing.T, app *application, req *http.Request, user *store.User) *http.Request {
	t.Helper()
	token, _, err := app.authenticator.GenerateTokens(user.ID, user.Role)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

// registerUser drives the real registration endpoint and returns the stored
// user so tests exercise the first-account-becomes-admin path for real.
func registerUser(t *testing.T, app *application, mux http.Handler, username, email string) *store.User {
	t.Helper()
	req := jsonRequest(t, http.MethodPost, "/v1/authentication/user", RegisterUserPayload{
		Username: username,
		Email:    email,
		Password: "sup3rsecret",
	})
	rr := executeRequest(req, mux)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var envelope struct {
		Data store.User `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &envelope))

	user, err := app.store.Users.GetByID(req.Context(), envelope.Data.ID)
	require.NoError(t, err)
	return user
}

func createGame(t *testing.T, app *application, mux http.Handler, admin *store.User, title string) *store.Game {
	t.Helper()
	req := jsonRequest(t, http.MethodPost, "/v1/games", CreateGamePayload{
		Title:       title,
		Description: "a game",
		ReleaseDate: "2024-03-01",
		Developer:   "studio",
		Genre:       "rpg",
	})
	rr := executeRequest(authorize(t, app, req, admin), mux)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var envelope struct {
		Data store.Game `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &envelope))
	return &envelope.Data
}

func promote(t *testing.T, app *application, mux http.Handler, admin, target *store.User, role string) *store.User {
	t.Helper()
	req := jsonRequest(t, http.MethodPut, fmt.Sprintf("/v1/admin/users/%d/role", target.ID), changeRolePayload{Role: role})
	rr := executeRequest(authorize(t, app, req, admin), mux)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	updated, err := app.store.Users.GetByID(req.Context(), target.ID)
	require.NoError(t, err)
	return updated
}
