package checkout

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/storefront/internal/models"
)

// Group is the part of a cart that becomes one order for one seller.
type Group struct {
	SellerID   string             `json:"sellerId"`
	SellerName string             `json:"sellerName,omitempty"`
	Lines      []models.OrderLine `json:"lines"`
	TotalPrice decimal.Decimal    `json:"totalPrice"`
}

func (g Group) ProductIDs() []string {
	ids := make([]string, 0, len(g.Lines))
	for _, l := range g.Lines {
		ids = append(ids, l.ID)
	}
	return ids
}

// Compose resolves cart lines against the current catalog and splits them by
// seller. Lines whose product is gone or has no seller are dropped. Totals use
// the catalog price, not anything cached in the cart. Groups come back sorted
// by seller id and lines by product id.
func Compose(cart map[string]int, catalog []models.Product) []Group {
	byID := make(map[string]models.Product, len(catalog))
	for _, p := range catalog {
		byID[p.ID] = p
	}

	bySeller := make(map[string]*Group)
	for productID, qty := range cart {
		if qty <= 0 {
			continue
		}
		p, ok := byID[productID]
		if !ok {
			continue
		}
		sellerID := p.SellerID()
		if sellerID == "" {
			continue
		}

		g, ok := bySeller[sellerID]
		if !ok {
			g = &Group{SellerID: sellerID, SellerName: p.Seller.Name, TotalPrice: decimal.Zero}
			bySeller[sellerID] = g
		}
		g.Lines = append(g.Lines, models.OrderLine{Product: p, Quantity: qty})
		g.TotalPrice = g.TotalPrice.Add(p.Price.Mul(decimal.NewFromInt(int64(qty))))
	}

	out := make([]Group, 0, len(bySeller))
	for _, g := range bySeller {
		sort.Slice(g.Lines, func(i, j int) bool { return g.Lines[i].ID < g.Lines[j].ID })
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SellerID < out[j].SellerID })
	return out
}
