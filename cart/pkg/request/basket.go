package request

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Basket is the full-replace payload. Every mutation sends the whole basket
// in the last known server shape; the server echo replaces local state.
type Basket struct {
	ID               uuid.UUID       `validate:"required" json:"id"`
	Items            []BasketItem    `json:"items"`
	DeliveryMethodID *uuid.UUID      `json:"delivery_method_id,omitempty"`
	ShippingPrice    decimal.Decimal `json:"shipping_price"`
}

type BasketItem struct {
	ID         uuid.UUID       `json:"id"`
	ProductID  uuid.UUID       `validate:"required"       json:"product_id"`
	Name       string          `json:"product_name"`
	PictureURL string          `json:"picture_url"`
	Price      decimal.Decimal `validate:"required"       json:"price"`
	Quantity   int32           `validate:"required,gte=1" json:"quantity"`
}

type AddItem struct {
	ProductID uuid.UUID `validate:"required"       json:"product_id"`
	Quantity  int32     `validate:"required,gte=1" json:"quantity"`
}
