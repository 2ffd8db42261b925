package cart

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
)

type cartResponse struct {
	ID                   uuid.UUID          `json:"id"`
	UserID               uuid.UUID          `json:"user_id"`
	TotalPrice           int64              `json:"total_price"`
	TotalDiscountedPrice int64              `json:"total_discounted_price"`
	Discount             int64              `json:"discount"`
	TotalItems           int                `json:"total_items"`
	Items                []cartItemResponse `json:"items"`
}

type cartItemResponse struct {
	ID              uuid.UUID `json:"id"`
	ProductID       uuid.UUID `json:"product_id"`
	Size            string    `json:"size"`
	Quantity        int       `json:"quantity"`
	Price           int64     `json:"price"`
	DiscountedPrice int64     `json:"discounted_price"`
	DiscountPercent int       `json:"discount_percent"`
}

func newCartResponse(cart *models.Cart) cartResponse {
	if cart == nil {
		return cartResponse{Items: []cartItemResponse{}}
	}
	items := make([]cartItemResponse, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, cartItemResponse{
			ID:              item.ID,
			ProductID:       item.ProductID,
			Size:            item.Size,
			Quantity:        item.Quantity,
			Price:           item.Price,
			DiscountedPrice: item.DiscountedPrice,
			DiscountPercent: item.DiscountPercent,
		})
	}
	return cartResponse{
		ID:                   cart.ID,
		UserID:               cart.UserID,
		TotalPrice:           cart.TotalPrice,
		TotalDiscountedPrice: cart.TotalDiscountedPrice,
		Discount:             cart.Discount,
		TotalItems:           cart.TotalItems,
		Items:                items,
	}
}
