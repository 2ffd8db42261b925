package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	"github.com/angelmondragon/orderflow-backend/pkg/types"
)

// OrderResponse is the public shape of a seller order.
type OrderResponse struct {
	ID                   uuid.UUID             `json:"id"`
	UserID               uuid.UUID             `json:"user_id"`
	SellerID             uuid.UUID             `json:"seller_id"`
	Status               enums.OrderStatus     `json:"status"`
	PaymentStatus        enums.PaymentStatus   `json:"payment_status"`
	PaymentMethod        enums.PaymentMethod   `json:"payment_method"`
	ShippingAddress      types.ShippingAddress `json:"shipping_address"`
	OriginalPrice        int64                 `json:"original_price"`
	Discount             int64                 `json:"discount"`
	TotalDiscountedPrice int64                 `json:"total_discounted_price"`
	TotalItems           int                   `json:"total_items"`
	OrderDate            time.Time             `json:"order_date"`
	DeliveryDate         *time.Time            `json:"delivery_date,omitempty"`
	Items                []OrderItemResponse   `json:"items"`
}

type OrderItemResponse struct {
	ID              uuid.UUID `json:"id"`
	ProductID       uuid.UUID `json:"product_id"`
	Size            string    `json:"size"`
	Quantity        int       `json:"quantity"`
	Price           int64     `json:"price"`
	DiscountedPrice int64     `json:"discounted_price"`
	DiscountPercent int       `json:"discount_percent"`
	DeliveryDate    time.Time `json:"delivery_date"`
}

func NewOrderResponse(order models.Order) OrderResponse {
	items := make([]OrderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemResponse{
			ID:              item.ID,
			ProductID:       item.ProductID,
			Size:            item.Size,
			Quantity:        item.Quantity,
			Price:           item.Price,
			DiscountedPrice: item.DiscountedPrice,
			DiscountPercent: item.DiscountPercent,
			DeliveryDate:    item.DeliveryDate,
		})
	}
	return OrderResponse{
		ID:                   order.ID,
		UserID:               order.UserID,
		SellerID:             order.SellerID,
		Status:               order.Status,
		PaymentStatus:        order.PaymentStatus,
		PaymentMethod:        order.PaymentMethod,
		ShippingAddress:      order.ShippingAddress,
		OriginalPrice:        order.OriginalPrice,
		Discount:             order.Discount,
		TotalDiscountedPrice: order.TotalDiscountedPrice,
		TotalItems:           order.TotalItems,
		OrderDate:            order.OrderDate,
		DeliveryDate:         order.DeliveryDate,
		Items:                items,
	}
}

func NewOrderResponses(orders []models.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for _, order := range orders {
		out = append(out, NewOrderResponse(order))
	}
	return out
}
