package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/service/checkout"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

type CheckoutHTTP struct {
	Svc *checkout.Service
}

func (h *CheckoutHTTP) PlaceOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout.place_order")

	var req struct {
		DeliveryAddress *models.Address `json:"deliveryAddress"`
	}
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			l.Warn("place_order_error", "status", 400, "error", err)
			return c.JSON(http.StatusBadRequest, "invalid body")
		}
	}

	res, err := h.Svc.PlaceOrder(ctx, req.DeliveryAddress)
	switch {
	case err == nil:
		l.Info("orders placed", "count", len(res.Succeeded))
		return c.JSON(http.StatusCreated, res)
	case errors.Is(err, checkout.ErrEmptyCart):
		return c.JSON(http.StatusBadRequest, err.Error())
	case errors.Is(err, checkout.ErrMissingAddress):
		return c.JSON(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, checkout.ErrPartialPlacement):
		l.Warn("place_order_partial", "status", 207, "error", err)
		return c.JSON(http.StatusMultiStatus, res)
	default:
		status := upstreamStatus(err)
		l.Error("place_order_error", "status", status, "error", err)
		return c.JSON(status, "failed to place order")
	}
}
