package router

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/pipeline-service/internal/auth"
	"github.com/iliyamo/pipeline-service/internal/config"
	"github.com/iliyamo/pipeline-service/internal/database"
	"github.com/iliyamo/pipeline-service/internal/service"
)

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := database.Open(ctx, database.Source{URL: "sqlite:" + filepath.Join(t.TempDir(), "api.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(ctx, db, log))

	tokens := auth.NewTokenService("test-secret")
	authSvc, err := service.NewAuthService(auth.NewHasher(bcrypt.MinCost), tokens)
	require.NoError(t, err)

	return New(Deps{
		Config:    config.Config{CORSOrigins: []string{"http://localhost:8081"}},
		DB:        db,
		Gate:      auth.NewGate(tokens),
		Auth:      authSvc,
		Pipelines: service.NewPipelineService(nil, log),
		Log:       log,
	})
}

type call struct {
	method, path, token, body string
	form                      url.Values
}

func do(t *testing.T, e *echo.Echo, c call) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	switch {
	case c.form != nil:
		req = httptest.NewRequest(c.method, c.path, strings.NewReader(c.form.Encode()))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	case c.body != "":
		req = httptest.NewRequest(c.method, c.path, strings.NewReader(c.body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	default:
		req = httptest.NewRequest(c.method, c.path, nil)
	}
	if c.token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+c.token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func signupAndLogin(t *testing.T, e *echo.Echo, user, pw, email string) string {
	t.Helper()
	rec := do(t, e, call{method: http.MethodPost, path: "/signup",
		body: fmt.Sprintf(`{"username":%q,"password":%q,"email":%q}`, user, pw, email)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"message":"User created successfully"}`, rec.Body.String())

	rec = do(t, e, call{method: http.MethodPost, path: "/login",
		body: fmt.Sprintf(`{"username":%q,"password":%q}`, user, pw)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var tok struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tok))
	assert.Equal(t, "bearer", tok.TokenType)
	require.NotEmpty(t, tok.AccessToken)
	return tok.AccessToken
}

func TestPublicRoutes(t *testing.T) {
	e := newTestServer(t)

	rec := do(t, e, call{method: http.MethodGet, path: "/"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Welcome to AI Data Pipeline API"}`, rec.Body.String())

	rec = do(t, e, call{method: http.MethodGet, path: "/healthz"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestOwnershipFlow(t *testing.T) {
	e := newTestServer(t)
	alice := signupAndLogin(t, e, "alice", "pw1", "a@x.com")
	bob := signupAndLogin(t, e, "bob", "pw2", "b@x.com")

	rec := do(t, e, call{method: http.MethodPost, path: "/pipelines", token: alice, body: `{"name":"p1","status":"new"}`})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var created struct {
		Message string `json:"message"`
		ID      uint64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "Pipeline created", created.Message)
	require.NotZero(t, created.ID)
	item := fmt.Sprintf("/pipelines/%d", created.ID)

	rec = do(t, e, call{method: http.MethodGet, path: "/pipelines", token: alice})
	require.Equal(t, http.StatusOK, rec.Code)
	var list []struct {
		ID        uint64 `json:"id"`
		Name      string `json:"name"`
		Status    string `json:"status"`
		CreatedAt string `json:"created_at"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)
	assert.Equal(t, "p1", list[0].Name)
	_, err := time.Parse(time.RFC3339, list[0].CreatedAt)
	assert.NoError(t, err)

	rec = do(t, e, call{method: http.MethodGet, path: "/pipelines", token: bob})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	notFound := `{"error":"pipeline not found or not authorized"}`
	for _, c := range []call{
		{method: http.MethodGet, path: item, token: bob},
		{method: http.MethodPut, path: item, token: bob, body: `{"name":"x","status":"y"}`},
		{method: http.MethodDelete, path: item, token: bob},
		{method: http.MethodGet, path: "/pipelines/999", token: alice},
		{method: http.MethodGet, path: "/pipelines/abc", token: alice},
	} {
		rec := do(t, e, c)
		assert.Equal(t, http.StatusNotFound, rec.Code, "%s %s", c.method, c.path)
		assert.JSONEq(t, notFound, rec.Body.String())
	}

	rec = do(t, e, call{method: http.MethodGet, path: item, token: alice})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"new"`)

	rec = do(t, e, call{method: http.MethodPut, path: item, token: alice, body: `{"name":"p1","status":"running"}`})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"message":"Pipeline updated"}`, rec.Body.String())

	rec = do(t, e, call{method: http.MethodGet, path: item, token: alice})
	assert.Contains(t, rec.Body.String(), `"status":"running"`)

	rec = do(t, e, call{method: http.MethodDelete, path: item, token: alice})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Pipeline deleted"}`, rec.Body.String())

	rec = do(t, e, call{method: http.MethodGet, path: "/pipelines", token: alice})
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestSignupDuplicateAndValidation(t *testing.T) {
	e := newTestServer(t)
	signupAndLogin(t, e, "alice", "pw1", "a@x.com")

	dup := `{"error":"username or email already registered"}`
	rec := do(t, e, call{method: http.MethodPost, path: "/signup", body: `{"username":"alice","password":"x","email":"new@x.com"}`})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, dup, rec.Body.String())

	rec = do(t, e, call{method: http.MethodPost, path: "/signup", body: `{"username":"alice2","password":"x","email":"a@x.com"}`})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, dup, rec.Body.String())

	rec = do(t, e, call{method: http.MethodPost, path: "/signup", body: `{"username":"","password":"x","email":"c@x.com"}`})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "username is required")

	rec = do(t, e, call{method: http.MethodPost, path: "/signup", body: `{not json`})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	e := newTestServer(t)
	signupAndLogin(t, e, "alice", "pw1", "a@x.com")

	wrong := do(t, e, call{method: http.MethodPost, path: "/login", body: `{"username":"alice","password":"nope"}`})
	unknown := do(t, e, call{method: http.MethodPost, path: "/login", body: `{"username":"ghost","password":"pw1"}`})

	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, wrong.Code, unknown.Code)
	assert.Equal(t, wrong.Body.String(), unknown.Body.String())
	assert.JSONEq(t, `{"error":"incorrect username or password"}`, wrong.Body.String())
}

func TestLoginWithPasswordForm(t *testing.T) {
	e := newTestServer(t)
	signupAndLogin(t, e, "alice", "pw1", "a@x.com")

	rec := do(t, e, call{method: http.MethodPost, path: "/login",
		form: url.Values{"username": {"alice"}, "password": {"pw1"}, "grant_type": {"password"}}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"token_type":"bearer"`)
}

func TestMe(t *testing.T) {
	e := newTestServer(t)
	tok := signupAndLogin(t, e, "alice", "pw1", "A@X.com")

	rec := do(t, e, call{method: http.MethodGet, path: "/me", token: tok})
	require.Equal(t, http.StatusOK, rec.Code)
	var me struct {
		Username  string `json:"username"`
		Email     string `json:"email"`
		CreatedAt string `json:"created_at"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "alice", me.Username)
	assert.Equal(t, "a@x.com", me.Email)
	_, err := time.Parse("2006-01-02 15:04:05", me.CreatedAt)
	assert.NoError(t, err)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	e := newTestServer(t)
	tok := signupAndLogin(t, e, "alice", "pw1", "a@x.com")
	tampered := tok[:len(tok)-2] + "xx"
	if tampered == tok {
		tampered = tok[:len(tok)-2] + "yy"
	}

	for _, c := range []call{
		{method: http.MethodGet, path: "/me"},
		{method: http.MethodGet, path: "/pipelines"},
		{method: http.MethodPost, path: "/pipelines", body: `{"name":"p","status":"s"}`},
		{method: http.MethodGet, path: "/pipelines/1"},
		{method: http.MethodPut, path: "/pipelines/1", body: `{"name":"p","status":"s"}`},
		{method: http.MethodDelete, path: "/pipelines/1"},
		{method: http.MethodGet, path: "/me", token: "garbage"},
		{method: http.MethodGet, path: "/pipelines", token: tampered},
	} {
		rec := do(t, e, c)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", c.method, c.path)
		assert.Equal(t, "Bearer", rec.Header().Get(echo.HeaderWWWAuthenticate))
	}
}

func TestCORSPreflight(t *testing.T) {
	e := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/pipelines", nil)
	req.Header.Set(echo.HeaderOrigin, "http://localhost:8081")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:8081", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestConcurrentSignupSameUsername(t *testing.T) {
	e := newTestServer(t)
	const n = 8

	codes := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(
				fmt.Sprintf(`{"username":"alice","password":"pw1","email":"a%d@x.com"}`, i)))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			codes[i] = rec.Code
		}(i)
	}
	wg.Wait()

	created, rejected := 0, 0
	for _, code := range codes {
		switch code {
		case http.StatusOK:
			created++
		case http.StatusBadRequest:
			rejected++
		}
	}
	assert.Equal(t, 1, created, "codes %v", codes)
	assert.Equal(t, n-1, rejected, "codes %v", codes)
}
