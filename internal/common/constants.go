package common

const (
	AppName = "tavolo"

	AppMenuView     = "menu-view"
	AppCartView     = "cart-view"
	AppCheckoutView = "checkout-view"
	AppAccountView  = "account-view"
	AppOrdersView   = "orders-view"
)
