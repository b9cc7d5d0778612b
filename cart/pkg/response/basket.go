package response

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Basket struct {
	ID               uuid.UUID       `json:"id"`
	Items            []BasketItem    `json:"items"`
	DeliveryMethodID *uuid.UUID      `json:"delivery_method_id,omitempty"`
	ShippingPrice    decimal.Decimal `json:"shipping_price"`
}

// BasketItem snapshots the product's display fields at the time of adding.
type BasketItem struct {
	ID         uuid.UUID       `json:"id"`
	ProductID  uuid.UUID       `json:"product_id"`
	Name       string          `json:"product_name"`
	PictureURL string          `json:"picture_url"`
	Price      decimal.Decimal `json:"price"`
	Quantity   int32           `json:"quantity"`
}

func (b Basket) Subtotal() decimal.Decimal {
	subtotal := decimal.Zero
	for _, item := range b.Items {
		subtotal = subtotal.Add(item.Price.Mul(decimal.NewFromInt32(item.Quantity)))
	}
	return subtotal
}

// Total is the displayed total, computed client side. The server never
// confirms it before submission.
func (b Basket) Total() decimal.Decimal {
	return b.Subtotal().Add(b.ShippingPrice)
}

func (b Basket) ItemCount() int32 {
	count := int32(0)
	for _, item := range b.Items {
		count += item.Quantity
	}
	return count
}

func (b Basket) IsEmpty() bool {
	return len(b.Items) == 0
}
