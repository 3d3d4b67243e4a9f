package domain

import "github.com/marc100s/store-core/internal/money"

// Product is the read-only slice of the catalog the cart needs: identity for
// display plus current stock for validation.
type Product struct {
	ID    string       `json:"id"`
	Name  string       `json:"name"`
	Slug  string       `json:"slug"`
	Image string       `json:"image"`
	Price money.Amount `json:"price"`
	Stock int          `json:"stock"`
}

// UserProfile carries the checkout state collected before order creation.
type UserProfile struct {
	UserID        string           `json:"user_id"`
	Address       *ShippingAddress `json:"shipping_address,omitempty"`
	PaymentMethod string           `json:"payment_method"`
}
