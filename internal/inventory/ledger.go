package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
)

// Ledger is the authoritative stock counter keyed by (product, size).
// Every operation runs on the caller's transaction.
type Ledger interface {
	CheckAvailability(ctx context.Context, tx *gorm.DB, productID uuid.UUID, size string, qty int) (bool, error)
	Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, size string, qty int) error
	Restore(ctx context.Context, tx *gorm.DB, productID uuid.UUID, size string, qty int) error
	AdjustQuantitySold(ctx context.Context, tx *gorm.DB, productID uuid.UUID, delta int) error
}

type ledger struct{}

// NewLedger returns the relational ledger implementation.
func NewLedger() Ledger {
	return ledger{}
}

func (ledger) CheckAvailability(ctx context.Context, tx *gorm.DB, productID uuid.UUID, size string, qty int) (bool, error) {
	if err := validate(tx, productID, size, qty); err != nil {
		return false, err
	}
	variant, err := findVariant(ctx, tx, productID, size)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return variant.Quantity >= qty, nil
}

// Reserve decrements stock with a single conditional UPDATE so two callers can
// never both take the last unit; zero rows affected means the guard failed.
func (ledger) Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, size string, qty int) error {
	if err := validate(tx, productID, size, qty); err != nil {
		return err
	}
	size = normalizeSize(size)

	res := tx.WithContext(ctx).
		Model(&models.InventorySize{}).
		Where("product_id = ? AND size = ? AND quantity >= ?", productID, size, qty).
		Update("quantity", gorm.Expr("quantity - ?", qty))
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve inventory")
	}
	if res.RowsAffected == 0 {
		variant, err := findVariant(ctx, tx, productID, size)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return SizeNotFound(productID, size)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory size")
		}
		return InsufficientStock(productID, size, qty, variant.Quantity)
	}

	if err := adjustSold(ctx, tx, productID, qty); err != nil {
		return err
	}
	return nil
}

func (ledger) Restore(ctx context.Context, tx *gorm.DB, productID uuid.UUID, size string, qty int) error {
	if err := validate(tx, productID, size, qty); err != nil {
		return err
	}
	size = normalizeSize(size)

	res := tx.WithContext(ctx).
		Model(&models.InventorySize{}).
		Where("product_id = ? AND size = ?", productID, size).
		Update("quantity", gorm.Expr("quantity + ?", qty))
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "restore inventory")
	}
	if res.RowsAffected == 0 {
		return SizeNotFound(productID, size)
	}
	return nil
}

func (ledger) AdjustQuantitySold(ctx context.Context, tx *gorm.DB, productID uuid.UUID, delta int) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if delta == 0 {
		return nil
	}
	return adjustSold(ctx, tx, productID, delta)
}

func adjustSold(ctx context.Context, tx *gorm.DB, productID uuid.UUID, delta int) error {
	res := tx.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Update("quantity_sold", gorm.Expr("CASE WHEN quantity_sold + ? < 0 THEN 0 ELSE quantity_sold + ? END", delta, delta))
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "adjust quantity sold")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s not found", productID))
	}
	return nil
}

func findVariant(ctx context.Context, tx *gorm.DB, productID uuid.UUID, size string) (*models.InventorySize, error) {
	var variant models.InventorySize
	err := tx.WithContext(ctx).
		Where("product_id = ? AND size = ?", productID, normalizeSize(size)).
		First(&variant).Error
	if err != nil {
		return nil, err
	}
	return &variant, nil
}

func validate(tx *gorm.DB, productID uuid.UUID, size string, qty int) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if normalizeSize(size) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "size required")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	return nil
}

func normalizeSize(size string) string {
	return strings.TrimSpace(size)
}
