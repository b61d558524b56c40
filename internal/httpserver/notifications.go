package httpserver

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/service/notify"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

type NotificationHTTP struct {
	Svc *notify.Service
	Bus *events.Bus
	Now func() time.Time
}

type notificationView struct {
	models.Notification
	TimeAgo string `json:"timeAgo"`
}

type notificationList struct {
	Notifications []notificationView `json:"notifications"`
	UnreadCount   int                `json:"unreadCount"`
	Loading       bool               `json:"loading"`
	Error         string             `json:"error,omitempty"`
}

func (h *NotificationHTTP) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *NotificationHTTP) view() notificationList {
	snap := h.Svc.Snapshot()
	now := h.now()
	out := notificationList{
		Notifications: make([]notificationView, len(snap.Notifications)),
		UnreadCount:   snap.UnreadCount,
		Loading:       snap.Loading,
		Error:         snap.Error,
	}
	for i, n := range snap.Notifications {
		out.Notifications[i] = notificationView{Notification: n, TimeAgo: notify.TimeAgo(now, n.CreatedAt)}
	}
	return out
}

func (h *NotificationHTTP) List(c echo.Context) error {
	return c.JSON(http.StatusOK, h.view())
}

func (h *NotificationHTTP) Stats(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "notifications.stats")

	st, err := h.Svc.Stats(ctx)
	if err != nil {
		status := upstreamStatus(err)
		l.Error("notification_stats_error", "status", status, "error", err)
		return c.JSON(status, "failed to fetch notification stats")
	}
	return c.JSON(http.StatusOK, st)
}

// Refresh asks the poller for an immediate fetch through the event bus.
func (h *NotificationHTTP) Refresh(c echo.Context) error {
	h.Bus.Emit(events.RefreshNotifications, nil)
	return c.NoContent(http.StatusAccepted)
}

// Mutations are optimistic: the local change stands even when the backend
// call fails, and the failure shows up in the error field.
func (h *NotificationHTTP) MarkAsRead(c echo.Context) error {
	_ = h.Svc.MarkAsRead(c.Request().Context(), c.Param("id"))
	return c.JSON(http.StatusOK, h.view())
}

func (h *NotificationHTTP) MarkAllAsRead(c echo.Context) error {
	_ = h.Svc.MarkAllAsRead(c.Request().Context())
	return c.JSON(http.StatusOK, h.view())
}

func (h *NotificationHTTP) Delete(c echo.Context) error {
	_ = h.Svc.Delete(c.Request().Context(), c.Param("id"))
	return c.JSON(http.StatusOK, h.view())
}

func (h *NotificationHTTP) ClearAll(c echo.Context) error {
	_ = h.Svc.ClearAll(c.Request().Context())
	return c.JSON(http.StatusOK, h.view())
}
