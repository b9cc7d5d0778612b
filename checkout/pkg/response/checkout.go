package response

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DeliveryMethod is a read-only catalog entry; the checkout flow selects
// one but never owns it.
type DeliveryMethod struct {
	ID           uuid.UUID       `json:"id"`
	ShortName    string          `json:"short_name"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	DeliveryTime string          `json:"delivery_time"`
}

// CreatedOrder is the transient reference the client keeps after a create,
// used to reach the confirmation view.
type CreatedOrder struct {
	ID uuid.UUID `json:"id"`
}
