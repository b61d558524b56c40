package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/storefront/internal/models"
)

type SortKey string

const (
	SortName      SortKey = "name"
	SortNameDesc  SortKey = "name-desc"
	SortPriceLow  SortKey = "price-low"
	SortPriceHigh SortKey = "price-high"
	SortStock     SortKey = "stock"
)

const CategoryAll = "all"

type Filter struct {
	Search   string
	Category string
	MinPrice decimal.NullDecimal
	MaxPrice decimal.NullDecimal
	SortBy   SortKey
}

func (f Filter) matches(p models.Product) bool {
	name := strings.ToLower(p.Name)
	if f.Search != "" && !strings.Contains(name, strings.ToLower(f.Search)) {
		return false
	}
	if c := strings.ToLower(f.Category); c != "" && c != CategoryAll {
		if strings.ToLower(p.Category) != c && !strings.Contains(name, c) {
			return false
		}
	}
	if f.MinPrice.Valid && p.Price.LessThan(f.MinPrice.Decimal) {
		return false
	}
	if f.MaxPrice.Valid && p.Price.GreaterThan(f.MaxPrice.Decimal) {
		return false
	}
	return true
}

// Apply returns the products matching f, sorted by f.SortBy. The input is not modified.
func Apply(products []models.Product, f Filter) []models.Product {
	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if f.matches(p) {
			out = append(out, p)
		}
	}

	var less func(a, b models.Product) bool
	switch f.SortBy {
	case SortName, "":
		less = func(a, b models.Product) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) }
	case SortNameDesc:
		less = func(a, b models.Product) bool { return strings.ToLower(a.Name) > strings.ToLower(b.Name) }
	case SortPriceLow:
		less = func(a, b models.Product) bool { return a.Price.LessThan(b.Price) }
	case SortPriceHigh:
		less = func(a, b models.Product) bool { return a.Price.GreaterThan(b.Price) }
	case SortStock:
		less = func(a, b models.Product) bool { return a.Stock > b.Stock }
	}
	if less != nil {
		sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	}
	return out
}

// MaxPrice is the highest price in products, zero for an empty list.
func MaxPrice(products []models.Product) decimal.Decimal {
	max := decimal.Zero
	for _, p := range products {
		if p.Price.GreaterThan(max) {
			max = p.Price
		}
	}
	return max
}

func ParseSort(s string) (SortKey, error) {
	switch k := SortKey(s); k {
	case "", SortName, SortNameDesc, SortPriceLow, SortPriceHigh, SortStock:
		return k, nil
	default:
		return "", fmt.Errorf("unknown sort key %q", s)
	}
}

type ProductLister interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
}

type Service struct {
	API ProductLister
}

type Listing struct {
	Products []models.Product `json:"products"`
	MaxPrice decimal.Decimal  `json:"maxPrice"`
}

func (s *Service) List(ctx context.Context, f Filter) (*Listing, error) {
	all, err := s.API.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return &Listing{Products: Apply(all, f), MaxPrice: MaxPrice(all)}, nil
}
