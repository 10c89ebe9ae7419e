package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"TodoAPI/internal/auth"
	"TodoAPI/internal/cache"
	"TodoAPI/internal/config"
	"TodoAPI/internal/dto"
	"TodoAPI/internal/repo/repotest"

	"github.com/alicebob/miniredis/v2"
	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testServer struct {
	t      *testing.T
	router *gin.Engine
	store  *repotest.Store
}

func newTestServer(t *testing.T, withRedis bool) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokens, err := auth.NewTokenIssuer(auth.TokenConfig{Secret: "test-secret", Algorithm: "HS256"})
	require.NoError(t, err)

	store := repotest.New()
	cfg := config.Config{}
	cfg.App.Env = "test"
	cfg.App.Version = "v0.0.0-test"

	d := Deps{
		Config:   cfg,
		Logger:   log.New(io.Discard),
		Users:    store.Users(),
		Todos:    store.Todos(),
		Subtasks: store.Subtasks(),
		Tags:     store.Tags(),
		Tokens:   tokens,
		Hasher:   auth.NewBcryptHasher(bcrypt.MinCost),
		Ping:     func(context.Context) error { return nil },
	}
	if withRedis {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })
		d.Cache = cache.NewTodoCache(rdb, time.Minute)
		d.Denylist = auth.NewDenylist(rdb)
	}
	return &testServer{t: t, router: NewRouter(d), store: store}
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(s.t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) register(email, username, password string) {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/v1/register", "", gin.H{"email": email, "username": username, "password": password})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
}

func (s *testServer) login(username, password string) string {
	s.t.Helper()
	form := url.Values{"username": {username}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())

	var tok dto.TokenResponse
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &tok))
	assert.Equal(s.t, "bearer", tok.TokenType)
	return tok.AccessToken
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t, false)
	s.register("alice@x.com", "alice", "pw1")

	w := s.do(http.MethodPost, "/api/v1/register", "", gin.H{"email": "alice@x.com", "username": "alice2", "password": "pw"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "email already registered")

	w = s.do(http.MethodPost, "/api/v1/register", "", gin.H{"email": "a2@x.com", "username": "alice", "password": "pw"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "username already taken")

	w = s.do(http.MethodPost, "/api/v1/register", "", gin.H{"email": "not-an-email", "username": "x", "password": "pw"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/v1/login", "", gin.H{"username": "alice", "password": "pw1"})
	require.Equal(t, http.StatusOK, w.Code, "JSON login")
	assert.NotEmpty(t, decode[dto.TokenResponse](t, w).AccessToken)

	w = s.do(http.MethodPost, "/api/v1/login", "", gin.H{"username": "alice", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))

	w = s.do(http.MethodPost, "/api/v1/login", "", gin.H{"username": "mallory", "password": "pw1"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token := s.login("alice", "pw1")
	w = s.do(http.MethodGet, "/api/v1/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[dto.UserResponse](t, w)
	assert.Equal(t, "alice", me.Username)
	assert.Equal(t, "alice@x.com", me.Email)
	assert.NotContains(t, w.Body.String(), "password")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t, false)

	for _, tc := range []struct{ method, path, token string }{
		{http.MethodGet, "/api/v1/me", ""},
		{http.MethodGet, "/api/v1/todos", ""},
		{http.MethodGet, "/api/v1/todos", "garbage"},
		{http.MethodPost, "/api/v1/logout", ""},
	} {
		w := s.do(tc.method, tc.path, tc.token, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, tc.path)
		assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
	}
}

func TestUpdateMe(t *testing.T) {
	s := newTestServer(t, false)
	s.register("alice@x.com", "alice", "pw1")
	s.register("bob@x.com", "bob", "pw2")
	token := s.login("alice", "pw1")

	w := s.do(http.MethodPut, "/api/v1/me", token, gin.H{"email": "bob@x.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPut, "/api/v1/me", token, gin.H{"email": "alice@new.com"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice@new.com", decode[dto.UserResponse](t, w).Email)
	assert.Equal(t, "alice", decode[dto.UserResponse](t, w).Username)

	w = s.do(http.MethodPut, "/api/v1/me", token, gin.H{"username": "alicia"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/v1/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "token subject no longer resolves after a rename")

	s.login("alicia", "pw1")
}

func TestMultiBytePasswordOverLimitIs400(t *testing.T) {
	s := newTestServer(t, false)
	long := strings.Repeat("é", 72)

	w := s.do(http.MethodPost, "/api/v1/register", "", gin.H{"email": "carol@x.com", "username": "carol", "password": long})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "password longer than 72 bytes")

	s.register("carol@x.com", "carol", "pw1")
	token := s.login("carol", "pw1")
	w = s.do(http.MethodPut, "/api/v1/me", token, gin.H{"password": long})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	s.login("carol", "pw1")
}

func TestTodoLifecycle(t *testing.T) {
	s := newTestServer(t, true)
	s.register("alice@x.com", "alice", "pw1")
	s.register("bob@x.com", "bob", "pw2")
	alice := s.login("alice", "pw1")
	bob := s.login("bob", "pw2")

	w := s.do(http.MethodPost, "/api/v1/todos", alice, gin.H{"text": "Buy milk", "category": "shopping", "due_date": "2020-01-01"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	todo := decode[dto.TodoResponse](t, w)
	assert.Equal(t, "todo", todo.Stage)
	assert.Equal(t, "medium", todo.Priority)
	assert.Equal(t, "shopping", todo.Category)
	assert.False(t, todo.Completed)
	assert.Equal(t, []dto.SubTaskResponse{}, todo.Subtasks)
	assert.Equal(t, []dto.TagResponse{}, todo.Tags)

	todoPath := "/api/v1/todos/" + itoa(todo.ID)

	w = s.do(http.MethodGet, todoPath, bob, nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "other users see nothing")
	w = s.do(http.MethodPut, todoPath, bob, gin.H{"text": "hijack"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(http.MethodDelete, todoPath, bob, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(http.MethodPost, todoPath+"/tags", bob, gin.H{"name": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/api/v1/todos", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	w = s.do(http.MethodGet, "/api/v1/todos/overdue", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]dto.TodoResponse](t, w), 1)

	w = s.do(http.MethodPut, todoPath, alice, gin.H{"completed": true})
	require.Equal(t, http.StatusOK, w.Code)
	updated := decode[dto.TodoResponse](t, w)
	assert.True(t, updated.Completed)
	assert.Equal(t, "Buy milk", updated.Text)
	assert.Equal(t, "shopping", updated.Category)

	w = s.do(http.MethodGet, "/api/v1/todos/overdue", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]dto.TodoResponse](t, w), "cache was invalidated by the update")

	w = s.do(http.MethodPut, todoPath, alice, gin.H{"due_date": nil, "stage": "done"})
	require.Equal(t, http.StatusOK, w.Code)
	updated = decode[dto.TodoResponse](t, w)
	assert.Nil(t, updated.DueDate)
	assert.Equal(t, "done", updated.Stage)

	w = s.do(http.MethodPut, todoPath, alice, gin.H{"priority": "urgent"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, todoPath+"/subtasks", alice, gin.H{"text": "2 litres"})
	require.Equal(t, http.StatusCreated, w.Code)
	withSub := decode[dto.TodoResponse](t, w)
	require.Len(t, withSub.Subtasks, 1)
	sub := withSub.Subtasks[0]

	w = s.do(http.MethodPut, todoPath+"/subtasks/"+itoa(sub.ID), alice, gin.H{"completed": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[dto.SubTaskResponse](t, w).Completed)

	w = s.do(http.MethodPut, todoPath+"/subtasks/"+itoa(sub.ID), bob, gin.H{"completed": false})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, todoPath+"/tags", alice, gin.H{"name": "errand"})
	require.Equal(t, http.StatusCreated, w.Code)
	tag := decode[dto.TagResponse](t, w)
	w = s.do(http.MethodPost, todoPath+"/tags", alice, gin.H{"name": "errand"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, tag.ID, decode[dto.TagResponse](t, w).ID)

	w = s.do(http.MethodGet, "/api/v1/todos/tags/errand", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	tagged := decode[[]dto.TodoResponse](t, w)
	require.Len(t, tagged, 1)
	assert.Equal(t, todo.ID, tagged[0].ID)
	require.Len(t, tagged[0].Tags, 1)

	w = s.do(http.MethodGet, "/api/v1/todos/tags/errand", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	w = s.do(http.MethodGet, "/api/v1/todos/search?q=MILK", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]dto.TodoResponse](t, w), 1)

	w = s.do(http.MethodDelete, todoPath+"/tags/"+itoa(tag.ID), alice, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(http.MethodDelete, todoPath+"/tags/"+itoa(tag.ID), alice, nil)
	assert.Equal(t, http.StatusNoContent, w.Code, "removing an absent tag succeeds")

	w = s.do(http.MethodDelete, todoPath, alice, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Zero(t, s.store.SubtaskCount(todo.ID))

	w = s.do(http.MethodGet, todoPath, alice, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(http.MethodDelete, todoPath+"/tags/"+itoa(tag.ID), alice, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListPagingParams(t *testing.T) {
	s := newTestServer(t, false)
	s.register("alice@x.com", "alice", "pw1")
	token := s.login("alice", "pw1")
	for _, text := range []string{"a", "b", "c"} {
		w := s.do(http.MethodPost, "/api/v1/todos", token, gin.H{"text": text})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := s.do(http.MethodGet, "/api/v1/todos?skip=1&limit=1", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[[]dto.TodoResponse](t, w)
	require.Len(t, page, 1)
	assert.Equal(t, "b", page[0].Text)

	w = s.do(http.MethodGet, "/api/v1/todos?limit=0", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(http.MethodGet, "/api/v1/todos?skip=-1", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(http.MethodGet, "/api/v1/todos/abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	s := newTestServer(t, true)
	s.register("alice@x.com", "alice", "pw1")
	token := s.login("alice", "pw1")

	w := s.do(http.MethodPost, "/api/v1/logout", token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(http.MethodGet, "/api/v1/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	fresh := s.login("alice", "pw1")
	w = s.do(http.MethodGet, "/api/v1/me", fresh, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStorageFailureIs500(t *testing.T) {
	s := newTestServer(t, false)
	s.register("alice@x.com", "alice", "pw1")
	token := s.login("alice", "pw1")

	s.store.Err = errors.New("connection reset")
	w := s.do(http.MethodGet, "/api/v1/me", token, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection reset")
}

func TestServiceEndpoints(t *testing.T) {
	s := newTestServer(t, false)

	w := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true,"env":"test"}`, w.Body.String())

	w = s.do(http.MethodGet, "/version", "", nil)
	assert.JSONEq(t, `{"version":"v0.0.0-test"}`, w.Body.String())

	w = s.do(http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestHealthReportsDatabaseFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", healthHandler(config.Config{}, func(context.Context) error { return errors.New("down") }))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCORSConfig(t *testing.T) {
	c := corsConfig(config.CORSConfig{AllowOrigins: []string{"*"}})
	assert.True(t, c.AllowAllOrigins)
	assert.Empty(t, c.AllowOrigins)

	c = corsConfig(config.CORSConfig{AllowOrigins: []string{"http://localhost:3000"}})
	assert.False(t, c.AllowAllOrigins)
	assert.Equal(t, []string{"http://localhost:3000"}, c.AllowOrigins)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
