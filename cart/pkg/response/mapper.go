package response

import "github.com/tavolo/ordering/cart/pkg/request"

// Request maps the basket back into the full-replace payload shape.
func (b Basket) Request() request.Basket {
	items := make([]request.BasketItem, len(b.Items))
	for i, item := range b.Items {
		items[i] = request.BasketItem{
			ID:         item.ID,
			ProductID:  item.ProductID,
			Name:       item.Name,
			PictureURL: item.PictureURL,
			Price:      item.Price,
			Quantity:   item.Quantity,
		}
	}
	return request.Basket{
		ID:               b.ID,
		Items:            items,
		DeliveryMethodID: b.DeliveryMethodID,
		ShippingPrice:    b.ShippingPrice,
	}
}
