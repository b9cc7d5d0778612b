package log

const (
	KeyAppName = "app"
	KeyTag     = "tag"
	KeyProcess = "process"
	KeyConfig  = "config"

	KeyBasketID         = "basketId"
	KeyBasketItemID     = "basketItemId"
	KeyBasketItems      = "basketItems"
	KeyProductID        = "productId"
	KeyQuantity         = "quantity"
	KeyDeliveryMethodID = "deliveryMethodId"
	KeyOrderID          = "orderId"
	KeyUserID           = "userId"
	KeyEmail            = "email"
	KeyStep             = "step"
	KeyStorageKey       = "storageKey"

	KeyRequestMethod = "requestMethod"
	KeyRequestURL    = "requestURL"
	KeyStatusCode    = "statusCode"
	KeyResponseBody  = "responseBody"
)
