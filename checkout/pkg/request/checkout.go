package request

import "github.com/google/uuid"

// Address is the shipping form. Phone and instructions are optional; the
// rest gates the address step.
type Address struct {
	FirstName    string `validate:"required" json:"first_name"`
	LastName     string `validate:"required" json:"last_name"`
	Street       string `validate:"required" json:"street"`
	City         string `validate:"required" json:"city"`
	Country      string `validate:"required" json:"country"`
	Phone        string `json:"phone,omitempty"`
	Instructions string `json:"instructions,omitempty"`
}

type CreateOrder struct {
	BasketID         uuid.UUID `validate:"required" json:"basket_id"`
	DeliveryMethodID uuid.UUID `validate:"required" json:"delivery_method_id"`
	ShipToAddress    Address   `validate:"required" json:"ship_to_address"`
}
