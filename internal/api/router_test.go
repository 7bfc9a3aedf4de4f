package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/openblog/backend/internal/auth"
	"github.com/openblog/backend/internal/blog"
	apperrors "github.com/openblog/backend/internal/errors"
	"github.com/openblog/backend/internal/health"
	"github.com/openblog/backend/internal/logger"
	"github.com/openblog/backend/internal/metrics"
)

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Success    bool            `json:"success"`
	Code       string          `json:"code"`
}

type testServer struct {
	*httptest.Server
	store *memStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	log := logger.New(&logger.Config{Output: io.Discard, Level: logger.LevelError})
	store := newMemStore()
	users := memUsers{store}
	m := metrics.New()

	tokens := auth.NewTokenService(auth.TokenConfig{
		AccessSecret:  "access-secret-for-tests",
		RefreshSecret: "refresh-secret-for-tests",
		AccessTTL:     time.Hour,
		RefreshTTL:    24 * time.Hour,
	}, users)
	blogService := blog.NewService(memBlogs{store}, stubUploader{}, log)
	authService := auth.NewService(users, &auth.BcryptHasher{Cost: bcrypt.MinCost}, tokens, stubUploader{}, m, log,
		auth.WithProfileListener(blogService))

	router := NewRouter(Deps{
		Users:   auth.NewHandlers(authService, auth.CookieWriter{}, 1<<20),
		Blogs:   blog.NewHandlers(blogService, 1<<20),
		Gate:    auth.NewGate(tokens, users, auth.WithRejectHook(m.RecordGateRejection)),
		Health:  health.NewHandler(health.NewChecker(&health.CheckerConfig{Version: "test"})),
		Metrics: m,
		Logger:  log,
	})

	srv := httptest.NewServer(apperrors.RequestIDMiddleware(m.Middleware(router.Route)(router)))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, store: store}
}

// client returns an http.Client with its own cookie jar.
func (s *testServer) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func multipartBody(t *testing.T, fields map[string]string, fileField, fileName string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, err = fw.Write([]byte("\x89PNG fake image"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func do(t *testing.T, c *http.Client, method, url string, body io.Reader, contentType, bearer string) (*http.Response, envelope) {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), "body: %s", raw)
	}
	return resp, env
}

func (s *testServer) register(t *testing.T, c *http.Client, name, email string) {
	t.Helper()
	body, ct := multipartBody(t, map[string]string{
		"fullName": name,
		"username": strings.ToLower(strings.ReplaceAll(name, " ", "")),
		"email":    email,
		"password": "hunter22",
	}, "avatar", "me.png")

	resp, env := do(t, c, http.MethodPost, s.URL+"/api/v1/users/register", body, ct, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.Message)
	assert.NotContains(t, string(env.Data), "hunter22")
	assert.NotContains(t, string(env.Data), "password")
}

type loginData struct {
	User         auth.Principal `json:"user"`
	AccessToken  string         `json:"accessToken"`
	RefreshToken string         `json:"refreshToken"`
}

func (s *testServer) login(t *testing.T, c *http.Client, email string) (*http.Response, loginData) {
	t.Helper()
	body := strings.NewReader(`{"email":"` + email + `","password":"hunter22"}`)
	resp, env := do(t, c, http.MethodPost, s.URL+"/api/v1/users/login", body, "application/json", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)

	var data loginData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return resp, data
}

func TestRouter_BlogLifecycle(t *testing.T) {
	srv := newTestServer(t)
	alice, bob := srv.client(t), srv.client(t)

	srv.register(t, alice, "Alice Writer", "alice@example.com")
	srv.register(t, bob, "Bob Reader", "bob@example.com")

	resp, aliceLogin := srv.login(t, alice, "alice@example.com")
	cookies := map[string]*http.Cookie{}
	for _, c := range resp.Cookies() {
		cookies[c.Name] = c
	}
	require.Contains(t, cookies, auth.AccessTokenCookie)
	require.Contains(t, cookies, auth.RefreshTokenCookie)
	assert.True(t, cookies[auth.AccessTokenCookie].HttpOnly)
	assert.Equal(t, aliceLogin.AccessToken, cookies[auth.AccessTokenCookie].Value)
	assert.Equal(t, aliceLogin.RefreshToken, cookies[auth.RefreshTokenCookie].Value)
	assert.NotEmpty(t, aliceLogin.RefreshToken)

	_, bobLogin := srv.login(t, bob, "bob@example.com")

	for _, u := range srv.store.users {
		assert.True(t, strings.HasPrefix(u.PasswordHash, "$2"), "password must be stored as a bcrypt digest")
	}

	// Alice publishes using her cookie.
	body, ct := multipartBody(t, map[string]string{"title": "Hello World!", "content": "first post"}, "featureImage", "cover.png")
	resp, env := do(t, alice, http.MethodPost, srv.URL+"/api/v1/blog/create-blog", body, ct, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.Message)

	var created blog.View
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Regexp(t, regexp.MustCompile(`^hello-world-[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`), created.Slug)
	require.NotNil(t, created.Author)
	assert.Equal(t, aliceLogin.User.ID, created.Author.ID)

	blogURL := func(op string) string { return srv.URL + "/api/v1/blog/" + op + "/" + created.ID.String() }

	// Public read needs no credentials.
	resp, env = do(t, http.DefaultClient, http.MethodGet, blogURL("get-blog"), nil, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("ETag"))

	// Bob, authenticated by bearer token, may not edit Alice's post.
	body, ct = multipartBody(t, map[string]string{"title": "Hijacked"}, "", "")
	resp, env = do(t, http.DefaultClient, http.MethodPatch, blogURL("update-blog"), body, ct, bobLogin.AccessToken)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.False(t, env.Success)

	resp, _ = do(t, http.DefaultClient, http.MethodDelete, blogURL("delete-blog"), nil, "", bobLogin.AccessToken)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// The owner can update and the slug follows the post id.
	body, ct = multipartBody(t, map[string]string{"title": "Hello Again"}, "", "")
	resp, env = do(t, alice, http.MethodPatch, blogURL("update-blog"), body, ct, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)
	var updated blog.View
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, "hello-again-"+created.ID.String(), updated.Slug)
	assert.Equal(t, "first post", updated.Content)

	resp, _ = do(t, alice, http.MethodDelete, blogURL("delete-blog"), nil, "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, env = do(t, http.DefaultClient, http.MethodGet, blogURL("get-blog"), nil, "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, apperrors.CodeNotFound, env.Code)
}

func TestRouter_DuplicateRegistration(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t)
	srv.register(t, c, "Alice Writer", "alice@example.com")

	body, ct := multipartBody(t, map[string]string{
		"fullName": "Someone Else",
		"username": "someone",
		"email":    "ALICE@example.com",
		"password": "whatever1",
	}, "avatar", "a.png")
	resp, env := do(t, c, http.MethodPost, srv.URL+"/api/v1/users/register", body, ct, "")

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, apperrors.CodeConflict, env.Code)
	assert.Len(t, srv.store.users, 1)
}

func TestRouter_LoginFailures(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t)
	srv.register(t, c, "Alice Writer", "alice@example.com")

	resp, _ := do(t, c, http.MethodPost, srv.URL+"/api/v1/users/login",
		strings.NewReader(`{"email":"alice@example.com","password":"wrong"}`), "application/json", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, resp.Cookies())

	resp, _ = do(t, c, http.MethodPost, srv.URL+"/api/v1/users/login",
		strings.NewReader(`{"email":"nobody@example.com","password":"hunter22"}`), "application/json", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_ProtectedRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		method, path, bearer string
	}{
		{http.MethodGet, "/api/v1/users/current-user", ""},
		{http.MethodPost, "/api/v1/users/logout", ""},
		{http.MethodPost, "/api/v1/blog/create-blog", ""},
		{http.MethodGet, "/api/v1/blog/get-my-blogs", ""},
		{http.MethodGet, "/api/v1/blog/get-my-blogs", "not-a-jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			resp, env := do(t, http.DefaultClient, tt.method, srv.URL+tt.path, nil, "", tt.bearer)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, apperrors.CodeUnauthorized, env.Code)
		})
	}

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(raw), `openblog_auth_gate_rejections_total{reason="missing_token"} 4`)
	assert.Contains(t, string(raw), `openblog_auth_gate_rejections_total{reason="invalid_token"} 1`)
}

func TestRouter_PublicListAndMyBlogs(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t)
	srv.register(t, c, "Alice Writer", "alice@example.com")
	srv.login(t, c, "alice@example.com")

	resp, env := do(t, http.DefaultClient, http.MethodGet, srv.URL+"/api/v1/blog/get-all-blogs", nil, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(env.Data))

	resp, env = do(t, c, http.MethodGet, srv.URL+"/api/v1/blog/get-my-blogs", nil, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(env.Data))

	resp, _ = do(t, c, http.MethodGet, srv.URL+"/api/v1/blog/get-my-blog/not-a-uuid", nil, "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_LogoutClearsSession(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t)
	srv.register(t, c, "Alice Writer", "alice@example.com")
	srv.login(t, c, "alice@example.com")

	resp, env := do(t, c, http.MethodGet, srv.URL+"/api/v1/users/current-user", nil, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(env.Data), "alice@example.com")

	resp, _ = do(t, c, http.MethodPost, srv.URL+"/api/v1/users/logout", nil, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, c, http.MethodGet, srv.URL+"/api/v1/users/current-user", nil, "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRouter_HealthAndUnknownRoute(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp2, env := do(t, http.DefaultClient, http.MethodGet, srv.URL+"/api/v1/nope", nil, "", "")
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
	assert.False(t, env.Success)
	assert.NotEmpty(t, resp2.Header.Get(apperrors.RequestIDHeader))
}

func TestRouter_Route(t *testing.T) {
	router := NewRouter(Deps{
		Users:  &auth.Handlers{},
		Blogs:  &blog.Handlers{},
		Gate:   &auth.Gate{},
		Health: health.NewHandler(health.NewChecker(&health.CheckerConfig{Version: "test"})),
	})

	tests := []struct {
		method, path, want string
	}{
		{http.MethodGet, "/api/v1/blog/get-blog/550e8400-e29b-41d4-a716-446655440000", "/api/v1/blog/get-blog/{id}"},
		{http.MethodDelete, "/api/v1/blog/delete-blog/anything", "/api/v1/blog/delete-blog/{id}"},
		{http.MethodPost, "/api/v1/users/login", "/api/v1/users/login"},
		{http.MethodGet, "/health", "/health"},
		{http.MethodGet, "/api/v1/nope", metrics.UnmatchedRoute},
		{http.MethodGet, "/random/abc123", metrics.UnmatchedRoute},
		{http.MethodGet, "/api/v1/users/login", metrics.UnmatchedRoute},
		{http.MethodGet, "/api//v1/users/../login", metrics.UnmatchedRoute},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "http://example.com"+tt.path, nil)
			assert.Equal(t, tt.want, router.Route(req))
		})
	}
}

func TestRouter_UnknownPathsShareOneMetricSeries(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/api/v1/nope", "/x/1", "/x/2", "/y/3/z"} {
		resp, _ := do(t, http.DefaultClient, http.MethodGet, srv.URL+path, nil, "", "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	}

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	body := string(raw)

	assert.Contains(t, body, `openblog_http_requests_total{method="GET",route="unmatched",status="404"} 4`)
	for _, path := range []string{"/api/v1/nope", "/x/1", "/y/3/z"} {
		assert.NotContains(t, body, `route="`+path+`"`)
	}
}

func TestRouter_ProfileUpdateRefreshesBlogAuthor(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t)
	srv.register(t, c, "Alice Writer", "alice@example.com")
	srv.login(t, c, "alice@example.com")

	body, ct := multipartBody(t, map[string]string{"title": "Post", "content": "body"}, "featureImage", "cover.png")
	resp, env := do(t, c, http.MethodPost, srv.URL+"/api/v1/blog/create-blog", body, ct, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.Message)
	var created blog.View
	require.NoError(t, json.Unmarshal(env.Data, &created))

	resp, env = do(t, c, http.MethodPatch, srv.URL+"/api/v1/users/update",
		strings.NewReader(`{"fullName":"Alice Renamed","username":"alicewriter","email":"alice@example.com"}`), "application/json", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)

	resp, env = do(t, http.DefaultClient, http.MethodGet, srv.URL+"/api/v1/blog/get-blog/"+created.ID.String(), nil, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got blog.View
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.NotNil(t, got.Author)
	assert.Equal(t, "Alice Renamed", got.Author.FullName)
}
