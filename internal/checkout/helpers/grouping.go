package helpers

import (
	"bytes"
	"slices"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
)

// GroupItemsBySeller partitions cart items by the seller of their product.
// Items whose product is missing or has no seller are returned separately.
func GroupItemsBySeller(items []models.CartItem, products map[uuid.UUID]models.Product) (map[uuid.UUID][]models.CartItem, []models.CartItem) {
	grouped := make(map[uuid.UUID][]models.CartItem)
	var skipped []models.CartItem
	for _, item := range items {
		listing, ok := products[item.ProductID]
		if !ok || listing.SellerID == nil || *listing.SellerID == uuid.Nil {
			skipped = append(skipped, item)
			continue
		}
		grouped[*listing.SellerID] = append(grouped[*listing.SellerID], item)
	}
	return grouped, skipped
}

// SortedSellerIDs returns the partition keys in byte order.
func SortedSellerIDs(grouped map[uuid.UUID][]models.CartItem) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(grouped))
	for id := range grouped {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int {
		return bytes.Compare(a[:], b[:])
	})
	return ids
}

// SellerTotals captures pre-calculated totals for one seller partition.
type SellerTotals struct {
	SellerID        uuid.UUID
	OriginalPrice   int64
	DiscountedPrice int64
	Discount        int64
	TotalItems      int
}

// ComputeSellerTotals sums the partition's snapshotted prices.
func ComputeSellerTotals(sellerID uuid.UUID, items []models.CartItem) SellerTotals {
	original := decimal.Zero
	discounted := decimal.Zero
	totals := SellerTotals{SellerID: sellerID}
	for _, item := range items {
		qty := decimal.NewFromInt(int64(item.Quantity))
		original = original.Add(decimal.NewFromInt(item.Price).Mul(qty))
		discounted = discounted.Add(decimal.NewFromInt(item.DiscountedPrice).Mul(qty))
		totals.TotalItems += item.Quantity
	}
	totals.OriginalPrice = original.IntPart()
	totals.DiscountedPrice = discounted.IntPart()
	if discount := original.Sub(discounted); discount.IsPositive() {
		totals.Discount = discount.IntPart()
	}
	return totals
}

// ComputeTotalsBySeller returns pre-computed totals keyed by seller.
func ComputeTotalsBySeller(grouped map[uuid.UUID][]models.CartItem) map[uuid.UUID]SellerTotals {
	results := make(map[uuid.UUID]SellerTotals, len(grouped))
	for sellerID, items := range grouped {
		results[sellerID] = ComputeSellerTotals(sellerID, items)
	}
	return results
}
