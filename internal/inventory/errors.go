package inventory

import (
	"fmt"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
)

// SizeNotFound reports a (product, size) pair with no inventory row.
func SizeNotFound(productID uuid.UUID, size string) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("size %q not found for product %s", size, productID)).
		WithReason(pkgerrors.ReasonSizeNotFound).
		WithDetails(map[string]any{
			"product_id": productID.String(),
			"size":       size,
		})
}

// InsufficientStock reports a reservation that exceeded on-hand quantity.
func InsufficientStock(productID uuid.UUID, size string, requested, available int) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("insufficient stock for product %s size %q", productID, size)).
		WithReason(pkgerrors.ReasonInsufficientStock).
		WithDetails(map[string]any{
			"product_id": productID.String(),
			"size":       size,
			"requested":  requested,
			"available":  available,
		})
}
