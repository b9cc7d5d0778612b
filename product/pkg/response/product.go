package response

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	PictureURL  string          `json:"picture_url"`
	Category    string          `json:"category"`
	Type        string          `json:"type"`
}

type Category struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type ProductType struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}
