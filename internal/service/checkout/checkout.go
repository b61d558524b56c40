package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/internal/models"
)

var (
	ErrEmptyCart        = errors.New("your cart is empty")
	ErrMissingAddress   = errors.New("delivery address required")
	ErrPartialPlacement = errors.New("failed to place one or more orders")
)

type OrderAPI interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
	PlaceOrder(ctx context.Context, req models.OrderRequest, idempotencyKey string) (*models.Order, error)
}

type CartStore interface {
	Cart() map[string]int
	User() (models.User, bool)
	Subtract(quantities map[string]int)
}

type GroupResult struct {
	SellerID   string          `json:"sellerId"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	ProductIDs []string        `json:"productIds"`
	Order      *models.Order   `json:"order,omitempty"`
	Error      string          `json:"error,omitempty"`

	quantities map[string]int
	err        error
}

type Result struct {
	Succeeded []GroupResult `json:"succeeded"`
	Failed    []GroupResult `json:"failed"`
}

// OrderPlacedEvent is the payload of events.OrderPlaced.
type OrderPlacedEvent struct {
	OrderIDs  []string `json:"orderIds"`
	SellerIDs []string `json:"sellerIds"`
}

type Service struct {
	API         OrderAPI
	Cart        CartStore
	Bus         *events.Bus
	Log         *slog.Logger
	Concurrency int

	newKey func() string
}

func NewService(api OrderAPI, cart CartStore, bus *events.Bus, log *slog.Logger, concurrency int) *Service {
	if log == nil {
		log = slog.Default()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Service{API: api, Cart: cart, Bus: bus, Log: log, Concurrency: concurrency, newKey: uuid.NewString}
}

// PlaceOrder submits one order per seller group of the current cart.
//
// Each group succeeds or fails on its own. The quantities a successful group
// submitted leave the cart and failed groups stay for a retry. When every
// group went through the whole snapshot is subtracted. Items added while the
// orders were in flight are never removed. When any group fails the error
// wraps ErrPartialPlacement and the per-group errors.
func (s *Service) PlaceOrder(ctx context.Context, address *models.Address) (*Result, error) {
	l := s.Log.With("svc", "checkout.place_order")

	cart := s.Cart.Cart()
	if len(cart) == 0 {
		return nil, ErrEmptyCart
	}

	addr, err := s.deliveryAddress(address)
	if err != nil {
		return nil, err
	}

	catalog, err := s.API.ListProducts(ctx)
	if err != nil {
		l.Error("place_order_error", "reason", "cannot load catalog", "error", err)
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	groups := Compose(cart, catalog)
	if len(groups) == 0 {
		l.Warn("place_order_error", "reason", "no resolvable cart items", "cart_lines", len(cart))
		return nil, ErrEmptyCart
	}

	results := s.submit(ctx, groups, addr)

	res := &Result{}
	var errs []error
	var placed OrderPlacedEvent
	for _, r := range results {
		if r.err != nil {
			res.Failed = append(res.Failed, r)
			errs = append(errs, fmt.Errorf("seller %s: %w", r.SellerID, r.err))
			continue
		}
		res.Succeeded = append(res.Succeeded, r)
		placed.SellerIDs = append(placed.SellerIDs, r.SellerID)
		if r.Order != nil {
			placed.OrderIDs = append(placed.OrderIDs, r.Order.ID)
		}
	}

	if len(res.Failed) == 0 {
		s.Cart.Subtract(cart)
	} else {
		submitted := make(map[string]int)
		for _, r := range res.Succeeded {
			for id, q := range r.quantities {
				submitted[id] += q
			}
		}
		s.Cart.Subtract(submitted)
	}

	if len(res.Succeeded) > 0 && s.Bus != nil {
		s.Bus.Emit(events.OrderPlaced, placed)
	}

	if len(errs) > 0 {
		l.Warn("place_order_partial", "succeeded", len(res.Succeeded), "failed", len(res.Failed))
		return res, fmt.Errorf("%w: %w", ErrPartialPlacement, errors.Join(errs...))
	}

	l.Info("place_order_success", "orders", len(res.Succeeded))
	return res, nil
}

func (s *Service) submit(ctx context.Context, groups []Group, addr models.Address) []GroupResult {
	results := make([]GroupResult, len(groups))
	newKey := s.newKey
	if newKey == nil {
		newKey = uuid.NewString
	}
	limit := s.Concurrency
	if limit < 1 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, grp := range groups {
		i, grp := i, grp
		key := newKey()
		g.Go(func() error {
			r := GroupResult{
				SellerID:   grp.SellerID,
				TotalPrice: grp.TotalPrice,
				ProductIDs: grp.ProductIDs(),
				quantities: make(map[string]int, len(grp.Lines)),
			}
			for _, line := range grp.Lines {
				r.quantities[line.ID] += line.Quantity
			}
			order, err := s.API.PlaceOrder(ctx, models.OrderRequest{
				Cart:            grp.Lines,
				SellerID:        grp.SellerID,
				TotalPrice:      grp.TotalPrice,
				DeliveryAddress: addr,
			}, key)
			if err != nil {
				s.Log.Error("order_submit_error", "seller_id", grp.SellerID, "error", err)
				r.err = err
				r.Error = err.Error()
			} else {
				r.Order = order
			}
			results[i] = r
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (s *Service) deliveryAddress(explicit *models.Address) (models.Address, error) {
	if explicit != nil && !explicit.IsZero() {
		return *explicit, nil
	}
	if u, ok := s.Cart.User(); ok && u.Address != nil && !u.Address.IsZero() {
		return *u.Address, nil
	}
	return models.Address{}, ErrMissingAddress
}
