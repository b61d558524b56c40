package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/uistate"
)

type UIHTTP struct {
	Toggles *uistate.Toggles
}

func (h *UIHTTP) List(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Toggles.Snapshot())
}

func (h *UIHTTP) Toggle(c echo.Context) error {
	name := c.Param("name")
	if !h.Toggles.Known(name) {
		return c.JSON(http.StatusNotFound, "unknown panel")
	}
	open := h.Toggles.Toggle(name)
	return c.JSON(http.StatusOK, map[string]bool{name: open})
}
