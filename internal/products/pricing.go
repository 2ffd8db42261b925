package product

import (
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
)

var hundred = decimal.NewFromInt(100)

// DiscountedPrice returns price × (1 − percent/100) rounded to whole currency units.
func DiscountedPrice(price int64, percent int) int64 {
	if percent <= 0 {
		return price
	}
	if percent >= 100 {
		return 0
	}
	factor := hundred.Sub(decimal.NewFromInt(int64(percent))).Div(hundred)
	return decimal.NewFromInt(price).Mul(factor).Round(0).IntPart()
}

// ValidateDiscount rejects percentages outside [0, 100].
func ValidateDiscount(percent int) error {
	if percent < 0 || percent > 100 {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount_percent must be between 0 and 100")
	}
	return nil
}
