package cart

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
)

// Totals are the aggregates derived from a set of cart or order lines.
type Totals struct {
	TotalPrice           int64
	TotalDiscountedPrice int64
	TotalItems           int
	Discount             int64
}

// ComputeTotals sums the snapshotted prices of items. Totals are never stored independently of items.
func ComputeTotals(items []models.CartItem) Totals {
	original := decimal.Zero
	discounted := decimal.Zero
	count := 0
	for _, item := range items {
		qty := decimal.NewFromInt(int64(item.Quantity))
		original = original.Add(decimal.NewFromInt(item.Price).Mul(qty))
		discounted = discounted.Add(decimal.NewFromInt(item.DiscountedPrice).Mul(qty))
		count += item.Quantity
	}
	return Totals{
		TotalPrice:           original.IntPart(),
		TotalDiscountedPrice: discounted.IntPart(),
		TotalItems:           count,
		Discount:             original.Sub(discounted).IntPart(),
	}
}

func applyTotals(cart *models.Cart, totals Totals) {
	cart.TotalPrice = totals.TotalPrice
	cart.TotalDiscountedPrice = totals.TotalDiscountedPrice
	cart.TotalItems = totals.TotalItems
	cart.Discount = totals.Discount
}
