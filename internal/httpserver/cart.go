package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/session"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

type CartHTTP struct {
	Store *session.Store
}

type cartResponse struct {
	Items     map[string]int `json:"items"`
	ItemCount int            `json:"itemCount"`
}

func (h *CartHTTP) view() cartResponse {
	return cartResponse{Items: h.Store.Cart(), ItemCount: h.Store.CartItemCount()}
}

func (h *CartHTTP) GetCart(c echo.Context) error {
	return c.JSON(http.StatusOK, h.view())
}

func (h *CartHTTP) AddToCart(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "add.cart")

	id := c.Param("id")
	if id == "" {
		l.Warn("add_to_cart_error", "status", 400)
		return c.JSON(http.StatusBadRequest, "product id required")
	}
	h.Store.AddToCart(id)

	l.Debug("item added to cart", "product_id", id)
	return c.JSON(http.StatusOK, h.view())
}

func (h *CartHTTP) RemoveFromCart(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "delete.one.from.cart")

	id := c.Param("id")
	if _, ok := h.Store.Cart()[id]; !ok {
		l.Warn("delete_one_from_cart_not_found", "status", 404, "product_id", id)
		return c.JSON(http.StatusNotFound, "item not found")
	}
	h.Store.RemoveFromCart(id)
	return c.JSON(http.StatusOK, h.view())
}

func (h *CartHTTP) ClearCart(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "delete.all.from.cart")

	h.Store.ClearCart()

	l.Info("cart successfully cleared")
	return c.JSON(http.StatusOK, h.view())
}
