package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/skvorcov/auth_service/internal/middleware"
	"github.com/skvorcov/auth_service/internal/models"
	"github.com/skvorcov/auth_service/internal/repo"
	"github.com/skvorcov/auth_service/internal/service"
	"github.com/skvorcov/auth_service/internal/session"
	"github.com/skvorcov/auth_service/internal/token"
)

type httpEnv struct {
	e   *echo.Echo
	svc *service.AuthService
}

func newHTTPEnv(t *testing.T) *httpEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.RefreshToken{}))

	gormRepo := repo.New(db)
	signer := &token.Signer{Secret: []byte("test-jwt-secret")}
	registry := token.NewMemoryRegistry()

	svc := &service.AuthService{
		Repo:      gormRepo,
		Sessions:  &session.Manager{Store: gormRepo, RefreshTTL: 24 * time.Hour},
		Signer:    signer,
		Revoked:   registry,
		AccessTTL: 15 * time.Minute,
	}

	e := echo.New()
	Register(e, &Deps{
		AuthHandler: &AuthHTTP{Svc: svc},
		Auth:        middleware.NewBearerAuth(signer, registry),
	})

	return &httpEnv{e: e, svc: svc}
}

func (env *httpEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func decodeTokens(t *testing.T, rec *httptest.ResponseRecorder) (access, refresh string) {
	t.Helper()

	var resp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.AccessToken, resp.RefreshToken
}

func TestRegisterEndpoint(t *testing.T) {
	t.Parallel()

	env := newHTTPEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/register",
		map[string]string{"email": "a@x.com", "password": "Secret123"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	access, refresh := decodeTokens(t, rec)
	assert.NotEmpty(t, access)
	assert.NotEmpty(t, refresh)

	rec = env.do(t, http.MethodPost, "/api/auth/register",
		map[string]string{"email": "a@x.com", "password": "Secret123"}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/register",
		map[string]string{"email": "a@x.com", "password": "short"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginEndpoint(t *testing.T) {
	t.Parallel()

	env := newHTTPEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/register",
		map[string]string{"email": "a@x.com", "password": "Secret123"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/login",
		map[string]string{"email": "a@x.com", "password": "Secret123"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	access, refresh := decodeTokens(t, rec)
	assert.NotEmpty(t, access)
	assert.NotEmpty(t, refresh)

	rec = env.do(t, http.MethodPost, "/api/auth/login",
		map[string]string{"email": "a@x.com", "password": "WrongSecret1"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshEndpoint(t *testing.T) {
	t.Parallel()

	env := newHTTPEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/register",
		map[string]string{"email": "a@x.com", "password": "Secret123"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	_, refresh := decodeTokens(t, rec)

	rec = env.do(t, http.MethodPost, "/api/auth/refresh",
		map[string]string{"refresh_token": refresh}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	_, rotated := decodeTokens(t, rec)
	assert.NotEqual(t, refresh, rotated)

	// the consumed value is rejected
	rec = env.do(t, http.MethodPost, "/api/auth/refresh",
		map[string]string{"refresh_token": refresh}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/refresh",
		map[string]string{"refresh_token": ""}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogoutEndpoint(t *testing.T) {
	t.Parallel()

	env := newHTTPEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/register",
		map[string]string{"email": "a@x.com", "password": "Secret123"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	access, refresh := decodeTokens(t, rec)

	rec = env.do(t, http.MethodPost, "/api/auth/logout", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "logout requires a bearer token")

	rec = env.do(t, http.MethodPost, "/api/auth/logout", nil,
		map[string]string{echo.HeaderAuthorization: "Bearer " + access})
	require.Equal(t, http.StatusNoContent, rec.Code)

	// revoked access token no longer passes the auth middleware
	rec = env.do(t, http.MethodPost, "/api/auth/logout", nil,
		map[string]string{echo.HeaderAuthorization: "Bearer " + access})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// and the refresh token died with the session
	rec = env.do(t, http.MethodPost, "/api/auth/refresh",
		map[string]string{"refresh_token": refresh}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
