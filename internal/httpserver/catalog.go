package httpserver

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/service/catalog"
	"github.com/Skotchmaster/storefront/internal/service/search"
	"github.com/Skotchmaster/storefront/internal/util"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

type CatalogHTTP struct {
	Svc *catalog.Service
	// Searcher is nil when no Elasticsearch cluster is configured.
	Searcher *search.Service
}

type productPage struct {
	Products []models.Product `json:"products"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	Size     int              `json:"size"`
	MaxPrice decimal.Decimal  `json:"maxPrice"`
}

func (h *CatalogHTTP) ListProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "list.products")

	f := catalog.Filter{
		Search:   c.QueryParam("search"),
		Category: c.QueryParam("category"),
	}
	var err error
	if f.SortBy, err = catalog.ParseSort(c.QueryParam("sort")); err != nil {
		l.Warn("list_products_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, err.Error())
	}
	if f.MinPrice, err = parsePrice(c.QueryParam("min")); err != nil {
		return c.JSON(http.StatusBadRequest, "invalid min price")
	}
	if f.MaxPrice, err = parsePrice(c.QueryParam("max")); err != nil {
		return c.JSON(http.StatusBadRequest, "invalid max price")
	}

	listing, err := h.Svc.List(ctx, f)
	if err != nil {
		status := upstreamStatus(err)
		l.Error("list_products_error", "status", status, "error", err)
		return c.JSON(status, "failed to fetch products")
	}

	page, size := queryInt(c, "page", 1), queryInt(c, "size", util.DefaultPageSize)
	items, total := util.Page(listing.Products, page, size)
	_, limit := util.Calculate(page, size)
	if page < 1 {
		page = 1
	}

	return c.JSON(http.StatusOK, productPage{
		Products: items,
		Total:    total,
		Page:     page,
		Size:     limit,
		MaxPrice: listing.MaxPrice,
	})
}

func (h *CatalogHTTP) Search(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "search.products")

	if h.Searcher == nil {
		return c.JSON(http.StatusServiceUnavailable, "search is not configured")
	}

	res, err := h.Searcher.Search(ctx, c.QueryParam("q"), queryInt(c, "page", 1), queryInt(c, "size", util.DefaultPageSize))
	if err != nil {
		if errors.Is(err, search.ErrEmptyQuery) {
			return c.JSON(http.StatusBadRequest, err.Error())
		}
		l.Error("search_error", "status", 502, "error", err)
		return c.JSON(http.StatusBadGateway, "search failed")
	}
	return c.JSON(http.StatusOK, res)
}

func parsePrice(s string) (decimal.NullDecimal, error) {
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

func queryInt(c echo.Context, name string, def int) int {
	v, err := strconv.Atoi(c.QueryParam(name))
	if err != nil {
		return def
	}
	return v
}
