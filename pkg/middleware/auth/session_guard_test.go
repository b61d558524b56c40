package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/models"
)

type fakeSessions struct {
	user      *models.User
	token     string
	loggedOut bool
}

func (f *fakeSessions) WaitLoaded(ctx context.Context) error { return nil }

func (f *fakeSessions) User() (models.User, bool) {
	if f.user == nil {
		return models.User{}, false
	}
	return *f.user, true
}

func (f *fakeSessions) Token() string { return f.token }

func (f *fakeSessions) Logout(context.Context) error {
	f.loggedOut = true
	f.user, f.token = nil, ""
	return nil
}

func run(t *testing.T, mw echo.MiddlewareFunc) (int, echo.Context) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	err := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c)
	if err != nil {
		he, ok := err.(*echo.HTTPError)
		require.True(t, ok, "unexpected error %v", err)
		return he.Code, c
	}
	return rec.Code, c
}

func expiredToken(t *testing.T) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}).SignedString([]byte("k"))
	require.NoError(t, err)
	return s
}

func TestSessionGuard(t *testing.T) {
	t.Parallel()

	buyer := &models.User{ID: "u1", Role: models.RoleBuyer}
	seller := &models.User{ID: "u2", Role: models.RoleSeller}
	pending := &models.User{ID: "u3", Role: models.RolePending}

	tests := []struct {
		name     string
		sessions *fakeSessions
		mw       func(g *SessionGuard) echo.MiddlewareFunc
		want     int
	}{
		{"anonymous", &fakeSessions{}, func(g *SessionGuard) echo.MiddlewareFunc { return g.RequireSession }, http.StatusUnauthorized},
		{"buyer", &fakeSessions{user: buyer, token: "t"}, func(g *SessionGuard) echo.MiddlewareFunc { return g.RequireSession }, http.StatusOK},
		{"pending blocked", &fakeSessions{user: pending, token: "t"}, func(g *SessionGuard) echo.MiddlewareFunc { return g.RequireSession }, http.StatusConflict},
		{"pending signed in", &fakeSessions{user: pending, token: "t"}, func(g *SessionGuard) echo.MiddlewareFunc { return g.RequireSignedIn }, http.StatusOK},
		{"buyer role ok", &fakeSessions{user: buyer, token: "t"}, func(g *SessionGuard) echo.MiddlewareFunc { return g.RequireRole(models.RoleBuyer) }, http.StatusOK},
		{"seller wrong role", &fakeSessions{user: seller, token: "t"}, func(g *SessionGuard) echo.MiddlewareFunc { return g.RequireRole(models.RoleBuyer) }, http.StatusForbidden},
		{"pending role route", &fakeSessions{user: pending, token: "t"}, func(g *SessionGuard) echo.MiddlewareFunc { return g.RequireRole(models.RoleBuyer) }, http.StatusConflict},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			code, _ := run(t, tt.mw(NewSessionGuard(tt.sessions)))
			assert.Equal(t, tt.want, code)
		})
	}
}

func TestSessionGuard_ExpiredTokenLogsOut(t *testing.T) {
	t.Parallel()

	s := &fakeSessions{user: &models.User{ID: "u1", Role: models.RoleBuyer}, token: expiredToken(t)}
	code, _ := run(t, NewSessionGuard(s).RequireSession)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.True(t, s.loggedOut)
}

func TestSessionGuard_SetsUserContext(t *testing.T) {
	t.Parallel()

	s := &fakeSessions{user: &models.User{ID: "u1", Role: models.RoleBuyer}, token: "t"}
	_, c := run(t, NewSessionGuard(s).RequireSession)
	assert.Equal(t, "u1", c.Get("user_id"))
	assert.Equal(t, "Buyer", c.Get("role"))
}
