package response

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Order struct {
	ID             uuid.UUID       `json:"id"`
	Status         string          `json:"status"`
	Items          []OrderItem     `json:"items"`
	DeliveryMethod string          `json:"delivery_method"`
	ShippingPrice  decimal.Decimal `json:"shipping_price"`
	Total          decimal.Decimal `json:"total"`
	CreatedAt      time.Time       `json:"created_at"`
}

type OrderItem struct {
	ProductID  uuid.UUID       `json:"product_id"`
	Name       string          `json:"product_name"`
	PictureURL string          `json:"picture_url"`
	Price      decimal.Decimal `json:"price"`
	Quantity   int32           `json:"quantity"`
}

// TrackingEvent is one parsed line of the plain-text tracking feed.
type TrackingEvent struct {
	At     time.Time
	Status string
}
