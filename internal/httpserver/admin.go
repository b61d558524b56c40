package httpserver

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

type AdminAPI interface {
	AdminStats(ctx context.Context) (*models.AdminStats, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	DeleteUser(ctx context.Context, userID string) error
	UpdateUserStatus(ctx context.Context, userID string, status models.UserStatus) error
	ListAllOrders(ctx context.Context) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status models.OrderStatus) error
}

type AdminHTTP struct {
	API AdminAPI
}

type adminDashboard struct {
	Stats        models.AdminStats `json:"stats"`
	RecentOrders []models.Order    `json:"recentOrders"`
}

const recentOrdersShown = 5

// Dashboard loads the platform counters and the latest orders together.
func (h *AdminHTTP) Dashboard(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.dashboard")

	var (
		stats  *models.AdminStats
		orders []models.Order
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stats, err = h.API.AdminStats(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		orders, err = h.API.ListAllOrders(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		status := upstreamStatus(err)
		l.Error("admin_dashboard_error", "status", status, "error", err)
		return c.JSON(status, upstreamMessage(err))
	}

	if len(orders) > recentOrdersShown {
		orders = orders[:recentOrdersShown]
	}
	return c.JSON(http.StatusOK, adminDashboard{Stats: *stats, RecentOrders: orders})
}

func (h *AdminHTTP) Stats(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.stats")

	stats, err := h.API.AdminStats(ctx)
	if err != nil {
		status := upstreamStatus(err)
		l.Error("admin_stats_error", "status", status, "error", err)
		return c.JSON(status, upstreamMessage(err))
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *AdminHTTP) ListUsers(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.list_users")

	role := models.Role(c.QueryParam("role"))
	users, err := h.API.ListUsers(ctx)
	if err != nil {
		status := upstreamStatus(err)
		l.Error("list_users_error", "status", status, "error", err)
		return c.JSON(status, upstreamMessage(err))
	}

	out := make([]models.User, 0, len(users))
	for _, u := range users {
		if u.Status == "" {
			u.Status = models.UserActive
		}
		if role == "" || u.Role == role {
			out = append(out, u)
		}
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminHTTP) DeleteUser(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.delete_user")

	id := c.Param("id")
	if isSelf(c, id) {
		return c.JSON(http.StatusConflict, "you cannot delete your own account here")
	}
	if err := h.API.DeleteUser(ctx, id); err != nil {
		status := upstreamStatus(err)
		l.Error("delete_user_error", "status", status, "target_id", id, "error", err)
		return c.JSON(status, upstreamMessage(err))
	}

	l.Info("user deleted", "target_id", id)
	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHTTP) UpdateUserStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.update_user_status")

	var req struct {
		Status models.UserStatus `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("update_user_status_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, "invalid body")
	}
	if !req.Status.Valid() {
		return c.JSON(http.StatusBadRequest, "status must be active or suspended")
	}

	id := c.Param("id")
	if isSelf(c, id) {
		return c.JSON(http.StatusConflict, "you cannot change your own status")
	}
	if err := h.API.UpdateUserStatus(ctx, id, req.Status); err != nil {
		status := upstreamStatus(err)
		l.Error("update_user_status_error", "status", status, "target_id", id, "error", err)
		return c.JSON(status, upstreamMessage(err))
	}

	l.Info("user status updated", "target_id", id, "user_status", string(req.Status))
	return c.JSON(http.StatusOK, req)
}

func (h *AdminHTTP) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.list_orders")

	want, err := statusFilter(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, err.Error())
	}

	orders, err := h.API.ListAllOrders(ctx)
	if err != nil {
		status := upstreamStatus(err)
		l.Error("admin_list_orders_error", "status", status, "error", err)
		return c.JSON(status, upstreamMessage(err))
	}
	return c.JSON(http.StatusOK, filterOrders(orders, want))
}

func (h *AdminHTTP) UpdateOrderStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.update_order_status")

	status, err := bindOrderStatus(c)
	if err != nil {
		l.Warn("admin_update_order_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, err.Error())
	}

	id := c.Param("id")
	if err := h.API.UpdateOrderStatus(ctx, id, status); err != nil {
		code := upstreamStatus(err)
		l.Error("admin_update_order_error", "status", code, "order_id", id, "error", err)
		return c.JSON(code, upstreamMessage(err))
	}

	l.Info("order status updated", "order_id", id, "order_status", string(status))
	return c.JSON(http.StatusOK, map[string]models.OrderStatus{"status": status})
}

func isSelf(c echo.Context, id string) bool {
	me, _ := c.Get("user_id").(string)
	return me != "" && me == id
}
