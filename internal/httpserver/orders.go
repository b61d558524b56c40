package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

type OrdersAPI interface {
	ListBuyerOrders(ctx context.Context) ([]models.Order, error)
	ListSellerProducts(ctx context.Context) ([]models.Product, error)
	CreateSellerProduct(ctx context.Context, in models.ProductInput) (*models.Product, error)
	DeleteSellerProduct(ctx context.Context, productID string) error
	ListSellerOrders(ctx context.Context) ([]models.Order, error)
	UpdateSellerOrderStatus(ctx context.Context, orderID string, status models.OrderStatus) error
}

// OrdersHTTP serves the buyer's order history and the seller's stock and
// incoming orders.
type OrdersHTTP struct {
	API OrdersAPI
}

func (h *OrdersHTTP) ListBuyerOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "orders.list")

	want, err := statusFilter(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, err.Error())
	}

	orders, err := h.API.ListBuyerOrders(ctx)
	if err != nil {
		status := upstreamStatus(err)
		l.Error("list_orders_error", "status", status, "error", err)
		return c.JSON(status, upstreamMessage(err))
	}
	return c.JSON(http.StatusOK, filterOrders(orders, want))
}

func (h *OrdersHTTP) ListSellerProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "seller.list_products")

	products, err := h.API.ListSellerProducts(ctx)
	if err != nil {
		status := upstreamStatus(err)
		l.Error("list_seller_products_error", "status", status, "error", err)
		return c.JSON(status, upstreamMessage(err))
	}
	return c.JSON(http.StatusOK, products)
}

func (h *OrdersHTTP) CreateSellerProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "seller.create_product")

	var in models.ProductInput
	if err := c.Bind(&in); err != nil {
		l.Warn("create_product_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, "invalid body")
	}
	in.Name = strings.TrimSpace(in.Name)
	switch {
	case in.Name == "":
		return c.JSON(http.StatusBadRequest, "name required")
	case !in.Price.GreaterThan(decimal.Zero):
		return c.JSON(http.StatusBadRequest, "price must be positive")
	case in.Stock < 0:
		return c.JSON(http.StatusBadRequest, "stock cannot be negative")
	}

	p, err := h.API.CreateSellerProduct(ctx, in)
	if err != nil {
		status := upstreamStatus(err)
		l.Error("create_product_error", "status", status, "error", err)
		return c.JSON(status, upstreamMessage(err))
	}

	l.Info("product created", "product_id", p.ID)
	return c.JSON(http.StatusCreated, p)
}

func (h *OrdersHTTP) DeleteSellerProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "seller.delete_product")

	id := c.Param("id")
	if err := h.API.DeleteSellerProduct(ctx, id); err != nil {
		status := upstreamStatus(err)
		l.Error("delete_product_error", "status", status, "product_id", id, "error", err)
		return c.JSON(status, upstreamMessage(err))
	}

	l.Info("product deleted", "product_id", id)
	return c.NoContent(http.StatusNoContent)
}

func (h *OrdersHTTP) ListSellerOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "seller.list_orders")

	want, err := statusFilter(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, err.Error())
	}

	orders, err := h.API.ListSellerOrders(ctx)
	if err != nil {
		status := upstreamStatus(err)
		l.Error("list_seller_orders_error", "status", status, "error", err)
		return c.JSON(status, upstreamMessage(err))
	}
	return c.JSON(http.StatusOK, filterOrders(orders, want))
}

func (h *OrdersHTTP) UpdateSellerOrderStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "seller.update_order")

	status, err := bindOrderStatus(c)
	if err != nil {
		l.Warn("update_order_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, err.Error())
	}

	id := c.Param("id")
	if err := h.API.UpdateSellerOrderStatus(ctx, id, status); err != nil {
		code := upstreamStatus(err)
		l.Error("update_order_error", "status", code, "order_id", id, "error", err)
		return c.JSON(code, upstreamMessage(err))
	}

	l.Info("order status updated", "order_id", id, "order_status", string(status))
	return c.JSON(http.StatusOK, map[string]models.OrderStatus{"status": status})
}

var (
	errInvalidBody        = errors.New("invalid body")
	errUnknownOrderStatus = errors.New("unknown order status")
)

func bindOrderStatus(c echo.Context) (models.OrderStatus, error) {
	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return "", errInvalidBody
	}
	st, ok := models.ParseOrderStatus(req.Status)
	if !ok {
		return "", errUnknownOrderStatus
	}
	return st, nil
}

// statusFilter reads the optional ?status= query; empty means every order.
func statusFilter(c echo.Context) (models.OrderStatus, error) {
	raw := c.QueryParam("status")
	if raw == "" || strings.EqualFold(raw, "all") {
		return "", nil
	}
	st, ok := models.ParseOrderStatus(raw)
	if !ok {
		return "", errUnknownOrderStatus
	}
	return st, nil
}

func filterOrders(orders []models.Order, want models.OrderStatus) []models.Order {
	out := make([]models.Order, 0, len(orders))
	for _, o := range orders {
		if want == "" || strings.EqualFold(string(o.Status), string(want)) {
			out = append(out, o)
		}
	}
	return out
}
