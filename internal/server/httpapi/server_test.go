package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"

	"github.com/cghughes/authd/internal/logging"
	"github.com/cghughes/authd/internal/server/config"
	"github.com/cghughes/authd/internal/server/db"
	"github.com/cghughes/authd/internal/server/repositories/repomanager"
	"github.com/cghughes/authd/internal/server/services"
)

const testSchema = `
CREATE TABLE users (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  display_name TEXT NOT NULL,
  email TEXT NOT NULL UNIQUE,
  password TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'user'
);
CREATE TABLE tokens (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  value TEXT NOT NULL,
  user_id INTEGER NOT NULL,
  expires TIMESTAMP NOT NULL,
  type TEXT NOT NULL,
  blacklisted INTEGER NOT NULL DEFAULT 0
);
`

// captureSender records reset tokens instead of delivering mail.
type captureSender struct {
	tokens []string
}

func (s *captureSender) SendResetPasswordEmail(_ context.Context, _, token string) error {
	s.tokens = append(s.tokens, token)
	return nil
}

func newTestServer(t *testing.T) (*Server, *captureSender) {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	_, err = sqlDB.Exec(testSchema)
	require.NoError(t, err)

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	pool := db.NewPoolFromDB(sqlDB, logger)
	binder := db.NewBinder(pool, time.Minute, logger)
	t.Cleanup(binder.Close)
	sessions := db.NewTxManager(binder, logger)

	rm := repomanager.NewPostgresRepositoryManager()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = "test-secret"

	us := services.NewUserService(sessions, rm)
	ts := services.NewTokenService(sessions, rm, cfg)
	sender := &captureSender{}
	as := services.NewAuthService(us, ts, sessions, rm, sender, logger)

	return NewServer(":0", sessions, as, us, ts, logger), sender
}

func doJSON(t *testing.T, s *Server, method, target, bearer, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestRegisterLoginAndProtectedRoutes(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/v1/auth/register", "",
		`{"displayName":"Alice","email":"alice@example.com","password":"pw"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	reg := decode[authResponse](t, rec)
	require.Positive(t, reg.User.ID)
	require.NotEmpty(t, reg.Tokens.Access.Token)
	require.NotEmpty(t, reg.Tokens.Refresh.Token)
	assert.Equal(t, "user", reg.User.Role)

	// duplicate email
	rec = doJSON(t, s, http.MethodPost, "/v1/auth/register", "",
		`{"displayName":"Alice","email":"alice@example.com","password":"pw"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// the directory is closed without a valid access token
	rec = doJSON(t, s, http.MethodGet, "/v1/users", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/v1/users", "garbage", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// a refresh token is no substitute for an access token
	rec = doJSON(t, s, http.MethodGet, "/v1/users", reg.Tokens.Refresh.Token, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/v1/users", reg.Tokens.Access.Token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decode[[]userResponse](t, rec)
	require.Len(t, listed, 1)
	assert.Equal(t, "alice@example.com", listed[0].Email)
}

func TestLoginValidation(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/v1/auth/register", "",
		`{"displayName":"Alice","email":"alice@example.com","password":"pw"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/v1/auth/login", "",
		`{"email":"alice@example.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decode[errorResponse](t, rec)
	assert.Equal(t, "Incorrect email or password", resp.Message)

	rec = doJSON(t, s, http.MethodPost, "/v1/auth/login", "", `{"email":"alice@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/v1/auth/login", "",
		`{"email":"alice@example.com","password":"pw"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRefreshAndLogoutOverHTTP(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/v1/auth/register", "",
		`{"displayName":"Alice","email":"alice@example.com","password":"pw"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	reg := decode[authResponse](t, rec)

	rec = doJSON(t, s, http.MethodPost, "/v1/auth/refresh-tokens", "",
		`{"refreshToken":"`+reg.Tokens.Refresh.Token+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rotated := decode[tokenPairResponse](t, rec)
	require.NotEmpty(t, rotated.Refresh.Token)

	// the consumed token is dead
	rec = doJSON(t, s, http.MethodPost, "/v1/auth/refresh-tokens", "",
		`{"refreshToken":"`+reg.Tokens.Refresh.Token+`"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decode[errorResponse](t, rec)
	assert.Equal(t, "Please authenticate", resp.Message)

	rec = doJSON(t, s, http.MethodPost, "/v1/auth/logout", "",
		`{"refreshToken":"`+rotated.Refresh.Token+`"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/v1/auth/logout", "",
		`{"refreshToken":"`+rotated.Refresh.Token+`"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPasswordResetOverHTTP(t *testing.T) {
	s, sender := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/v1/auth/register", "",
		`{"displayName":"Alice","email":"alice@example.com","password":"old-pw"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/v1/auth/forgot-password", "",
		`{"email":"alice@example.com"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, sender.tokens, 1)

	rec = doJSON(t, s, http.MethodPost, "/v1/auth/forgot-password", "",
		`{"email":"ghost@example.com"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/v1/auth/reset-password?token="+sender.tokens[0], "",
		`{"password":"new-pw"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/v1/auth/login", "",
		`{"email":"alice@example.com","password":"old-pw"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/v1/auth/login", "",
		`{"email":"alice@example.com","password":"new-pw"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	// replaying the consumed token collapses to the opaque failure
	rec = doJSON(t, s, http.MethodPost, "/v1/auth/reset-password?token="+sender.tokens[0], "",
		`{"password":"again"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decode[errorResponse](t, rec)
	assert.Equal(t, "Password reset failed", resp.Message)
}

func TestUserCRUDOverHTTP(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/v1/auth/register", "",
		`{"displayName":"Admin","email":"admin@example.com","password":"pw"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	reg := decode[authResponse](t, rec)
	access := reg.Tokens.Access.Token

	rec = doJSON(t, s, http.MethodPost, "/v1/users", access,
		`{"displayName":"Bob","email":"bob@example.com","password":"pw","role":"admin"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	bob := decode[userResponse](t, rec)
	assert.Equal(t, "admin", bob.Role)

	rec = doJSON(t, s, http.MethodGet, "/v1/users/9999", access, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/v1/users/abc", access, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, s, http.MethodPatch, "/v1/users/"+itoa(bob.ID), access,
		`{"displayName":"Robert"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[userResponse](t, rec)
	assert.Equal(t, "Robert", updated.DisplayName)
	assert.Equal(t, "bob@example.com", updated.Email)

	// moving onto a taken email is rejected
	rec = doJSON(t, s, http.MethodPatch, "/v1/users/"+itoa(bob.ID), access,
		`{"email":"admin@example.com"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, s, http.MethodDelete, "/v1/users/"+itoa(bob.ID), access, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, s, http.MethodDelete, "/v1/users/"+itoa(bob.ID), access, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
