// internal/api/v2/auth_test.go
package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/africaresearchbase/arb/internal/datastore"
	"github.com/africaresearchbase/arb/internal/security"
)

func jsonRequest(e *echo.Echo, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRegister(t *testing.T) {
	t.Run("creates account and returns token", func(t *testing.T) {
		ds := &mockDataStore{}
		ds.On("GetUserByEmail", "amina@example.org").Return(datastore.User{}, datastore.ErrUserNotFound)
		ds.On("CreateUser", mock.AnythingOfType("*datastore.User")).Return(nil)

		c, e := newTestController(ds, testSettings())
		ctx, rec := jsonRequest(e, http.MethodPost, "/api/v2/auth/register",
			`{"email":"Amina@Example.org","password":"long-enough-password","display_name":"Amina"}`)

		require.NoError(t, c.Register(ctx))
		assert.Equal(t, http.StatusCreated, rec.Code)

		body := decodeBody(t, rec)
		assert.Equal(t, true, body["success"])
		assert.NotEmpty(t, body["token"])
		ds.AssertExpectations(t)
	})

	t.Run("rejects short password", func(t *testing.T) {
		ds := &mockDataStore{}
		c, e := newTestController(ds, testSettings())
		ctx, rec := jsonRequest(e, http.MethodPost, "/api/v2/auth/register",
			`{"email":"amina@example.org","password":"short"}`)

		require.NoError(t, c.Register(ctx))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects duplicate email", func(t *testing.T) {
		ds := &mockDataStore{}
		ds.On("GetUserByEmail", "amina@example.org").Return(datastore.User{ID: "existing"}, nil)

		c, e := newTestController(ds, testSettings())
		ctx, rec := jsonRequest(e, http.MethodPost, "/api/v2/auth/register",
			`{"email":"amina@example.org","password":"long-enough-password"}`)

		require.NoError(t, c.Register(ctx))
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestLogin(t *testing.T) {
	settings := testSettings()
	svc := security.NewService(&settings.Security)
	hash, err := svc.HashPassword("long-enough-password")
	require.NoError(t, err)

	user := datastore.User{ID: "user-1", Email: "amina@example.org", PasswordHash: hash}

	t.Run("valid credentials", func(t *testing.T) {
		ds := &mockDataStore{}
		ds.On("GetUserByEmail", "amina@example.org").Return(user, nil)

		c, e := newTestController(ds, settings)
		ctx, rec := jsonRequest(e, http.MethodPost, "/api/v2/auth/login",
			`{"email":"amina@example.org","password":"long-enough-password"}`)

		require.NoError(t, c.Login(ctx))
		assert.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody(t, rec)
		token, _ := body["token"].(string)
		require.NotEmpty(t, token)

		claims, err := svc.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, "user-1", claims.UserID)
	})

	t.Run("wrong password", func(t *testing.T) {
		ds := &mockDataStore{}
		ds.On("GetUserByEmail", "amina@example.org").Return(user, nil)

		c, e := newTestController(ds, settings)
		ctx, rec := jsonRequest(e, http.MethodPost, "/api/v2/auth/login",
			`{"email":"amina@example.org","password":"not-the-password"}`)

		require.NoError(t, c.Login(ctx))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown email gets the same message", func(t *testing.T) {
		ds := &mockDataStore{}
		ds.On("GetUserByEmail", "nobody@example.org").Return(datastore.User{}, datastore.ErrUserNotFound)

		c, e := newTestController(ds, settings)
		ctx, rec := jsonRequest(e, http.MethodPost, "/api/v2/auth/login",
			`{"email":"nobody@example.org","password":"whatever-password"}`)

		require.NoError(t, c.Login(ctx))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Invalid email or password")
	})
}

func TestAuthMiddleware(t *testing.T) {
	settings := testSettings()

	okHandler := func(ctx echo.Context) error {
		return ctx.String(http.StatusOK, ctx.Get(ctxUserID).(string))
	}

	t.Run("valid bearer token", func(t *testing.T) {
		ds := &mockDataStore{}
		c, e := newTestController(ds, settings)

		token, err := c.auth.IssueToken("user-1", "amina@example.org")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/v2/points", http.NoBody)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
		rec := httptest.NewRecorder()
		ctx := e.NewContext(req, rec)

		require.NoError(t, c.AuthMiddleware()(okHandler)(ctx))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "user-1", rec.Body.String())
	})

	t.Run("valid api key", func(t *testing.T) {
		ds := &mockDataStore{}
		key := "arb_testkey"
		ds.On("GetUserByAPIKeyHash", security.HashAPIKey(key)).
			Return(datastore.User{ID: "user-2", Email: "k@example.org"}, nil)

		c, e := newTestController(ds, settings)

		req := httptest.NewRequest(http.MethodGet, "/api/v2/points", http.NoBody)
		req.Header.Set("X-Api-Key", key)
		rec := httptest.NewRecorder()
		ctx := e.NewContext(req, rec)

		require.NoError(t, c.AuthMiddleware()(okHandler)(ctx))
		assert.Equal(t, "user-2", rec.Body.String())
	})

	t.Run("missing credentials", func(t *testing.T) {
		ds := &mockDataStore{}
		c, e := newTestController(ds, settings)

		req := httptest.NewRequest(http.MethodGet, "/api/v2/points", http.NoBody)
		rec := httptest.NewRecorder()
		ctx := e.NewContext(req, rec)

		require.NoError(t, c.AuthMiddleware()(okHandler)(ctx))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestCreateAPIKey(t *testing.T) {
	settings := testSettings()

	ds := &mockDataStore{}
	ds.On("GetUser", "user-1").Return(datastore.User{ID: "user-1", Email: "amina@example.org"}, nil)
	ds.On("UpdateUser", mock.MatchedBy(func(u *datastore.User) bool {
		return u.ID == "user-1" && u.APIKeyHash != ""
	})).Return(nil)

	c, e := newTestController(ds, settings)
	ctx, rec := jsonRequest(e, http.MethodPost, "/api/v2/auth/apikey", "")
	ctx.Set(ctxUserID, "user-1")

	require.NoError(t, c.CreateAPIKey(ctx))
	assert.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody(t, rec)
	apiKey, _ := body["api_key"].(string)
	assert.True(t, strings.HasPrefix(apiKey, "arb_"))
	ds.AssertExpectations(t)
}
