package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/session"
	"github.com/Skotchmaster/storefront/internal/uistate"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

type AccountAPI interface {
	ExchangeLogin(ctx context.Context, provider, credential string) (*models.Session, error)
	CompleteOnboarding(ctx context.Context, req models.OnboardingRequest) (*models.Session, error)
	UpdateProfile(ctx context.Context, req models.ProfileUpdate) (*models.User, error)
	DeleteAccount(ctx context.Context) error
}

type SessionHTTP struct {
	Store *session.Store
	API   AccountAPI
	UI    *uistate.Toggles
}

func (h *SessionHTTP) GetSession(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Store.Snapshot())
}

func (h *SessionHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "session.login")

	var req struct {
		Provider   string `json:"provider"`
		Credential string `json:"credential"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, "invalid body")
	}
	if req.Provider == "" {
		req.Provider = "google"
	}
	if strings.TrimSpace(req.Credential) == "" {
		l.Warn("login_error", "status", 400)
		return c.JSON(http.StatusBadRequest, "credential required")
	}

	sess, err := h.API.ExchangeLogin(ctx, req.Provider, req.Credential)
	if err != nil {
		status := upstreamStatus(err)
		l.Error("login_error", "status", status, "error", err)
		return c.JSON(status, upstreamMessage(err))
	}

	if err := h.Store.Login(ctx, *sess); err != nil {
		// signed in for this process, just not durable
		l.Warn("login_persist_error", "error", err)
	}

	l.Info("user signed in", "user_id", sess.User.ID, "role", string(sess.User.Role))
	return c.JSON(http.StatusOK, h.Store.Snapshot())
}

func (h *SessionHTTP) CompleteOnboarding(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "session.onboarding")

	var req models.OnboardingRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("onboarding_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, "invalid body")
	}
	if req.Role != models.RoleBuyer && req.Role != models.RoleSeller {
		l.Warn("onboarding_error", "status", 400, "role", string(req.Role))
		return c.JSON(http.StatusBadRequest, "role must be Buyer or Seller")
	}
	if strings.TrimSpace(req.BusinessName) == "" || strings.TrimSpace(req.Phone) == "" {
		return c.JSON(http.StatusBadRequest, "businessName and phone required")
	}

	sess, err := h.API.CompleteOnboarding(ctx, req)
	if err != nil {
		status := upstreamStatus(err)
		l.Error("onboarding_error", "status", status, "error", err)
		return c.JSON(status, upstreamMessage(err))
	}

	if sess.Token == "" {
		err = h.Store.UpdateUser(ctx, sess.User)
	} else {
		err = h.Store.Login(ctx, *sess)
	}
	if err != nil && !errors.Is(err, session.ErrUnauthenticated) {
		l.Warn("onboarding_persist_error", "error", err)
	}

	l.Info("onboarding completed", "user_id", sess.User.ID, "role", string(sess.User.Role))
	return c.JSON(http.StatusOK, h.Store.Snapshot())
}

func (h *SessionHTTP) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "session.logout")

	if err := h.Store.Logout(ctx); err != nil {
		l.Warn("logout_persist_error", "error", err)
	}
	if h.UI != nil {
		h.UI.Reset()
	}

	l.Info("user signed out")
	return c.NoContent(http.StatusNoContent)
}

func (h *SessionHTTP) UpdateProfile(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "profile.update")

	var req models.ProfileUpdate
	if err := c.Bind(&req); err != nil {
		l.Warn("update_profile_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, "invalid body")
	}
	if strings.TrimSpace(req.Name) == "" {
		return c.JSON(http.StatusBadRequest, "name required")
	}

	u, err := h.API.UpdateProfile(ctx, req)
	if err != nil {
		status := upstreamStatus(err)
		l.Error("update_profile_error", "status", status, "error", err)
		return c.JSON(status, upstreamMessage(err))
	}

	if err := h.Store.UpdateUser(ctx, *u); err != nil {
		if errors.Is(err, session.ErrUnauthenticated) {
			return c.JSON(http.StatusUnauthorized, "not signed in")
		}
		l.Warn("update_profile_persist_error", "error", err)
	}

	l.Info("profile updated", "user_id", u.ID)
	return c.JSON(http.StatusOK, u)
}

func (h *SessionHTTP) DeleteAccount(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "profile.delete")

	if err := h.API.DeleteAccount(ctx); err != nil {
		status := upstreamStatus(err)
		l.Error("delete_account_error", "status", status, "error", err)
		return c.JSON(status, upstreamMessage(err))
	}

	if err := h.Store.Logout(ctx); err != nil {
		l.Warn("logout_persist_error", "error", err)
	}
	if h.UI != nil {
		h.UI.Reset()
	}

	l.Info("account deleted")
	return c.NoContent(http.StatusNoContent)
}
