package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/session"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

type Sessions interface {
	WaitLoaded(ctx context.Context) error
	User() (models.User, bool)
	Token() string
	Logout(ctx context.Context) error
}

// SessionGuard gates local routes on the state of the shared session store.
type SessionGuard struct {
	Sessions Sessions
	Now      func() time.Time
}

func NewSessionGuard(s Sessions) *SessionGuard {
	return &SessionGuard{Sessions: s, Now: time.Now}
}

type ValidatorFunc func(u models.User) error

// RequireSession lets through a signed-in user who has finished onboarding.
func (g *SessionGuard) RequireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return g.requireWithValidator(next, requireOnboarded)
}

// RequireSignedIn lets through any signed-in user, including one still onboarding.
func (g *SessionGuard) RequireSignedIn(next echo.HandlerFunc) echo.HandlerFunc {
	return g.requireWithValidator(next, nil)
}

// RequireRole is RequireSession restricted to the given roles.
func (g *SessionGuard) RequireRole(roles ...models.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return g.requireWithValidator(next, func(u models.User) error {
			if err := requireOnboarded(u); err != nil {
				return err
			}
			for _, r := range roles {
				if u.Role == r {
					return nil
				}
			}
			return echo.NewHTTPError(http.StatusForbidden, "not enough rights")
		})
	}
}

func requireOnboarded(u models.User) error {
	if u.Role == models.RolePending {
		return echo.NewHTTPError(http.StatusConflict, "onboarding required")
	}
	return nil
}

func (g *SessionGuard) requireWithValidator(next echo.HandlerFunc, validator ValidatorFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		l := logging.FromContext(ctx)

		if err := g.Sessions.WaitLoaded(ctx); err != nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "session still loading")
		}

		u, ok := g.Sessions.User()
		token := g.Sessions.Token()
		if !ok || token == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "not signed in")
		}

		if session.TokenExpired(token, g.Now()) {
			l.Info("session_expired", "user_id", u.ID)
			if err := g.Sessions.Logout(ctx); err != nil {
				l.Error("logout_error", "error", err)
			}
			return echo.NewHTTPError(http.StatusUnauthorized, "session expired")
		}

		if validator != nil {
			if err := validator(u); err != nil {
				return err
			}
		}

		setUserContext(c, u)
		return next(c)
	}
}

func setUserContext(c echo.Context, u models.User) {
	c.Set("user_id", u.ID)
	c.Set("role", string(u.Role))
}
