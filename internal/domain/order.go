package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/marc100s/store-core/internal/money"
)

// PaymentResultStatus values mirror the provider lifecycle we track on the
// order itself: pending while an intent is outstanding, completed once the
// webhook confirms settlement.
const (
	PaymentStatusPending   = "PENDING"
	PaymentStatusCompleted = "COMPLETED"
)

// ShippingAddress is a value snapshot taken at order creation, never a live
// reference to the user's profile.
type ShippingAddress struct {
	FullName   string `json:"full_name"`
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// PaymentResult binds an order to its provider-side payment intent and, once
// paid, to the settlement details. It is set with a pending status when an
// intent is created and finalized exactly once by the webhook.
type PaymentResult struct {
	ProviderRef string       `json:"provider_ref"`
	Status      string       `json:"status"`
	PayerEmail  string       `json:"payer_email,omitempty"`
	AmountPaid  money.Amount `json:"amount_paid"`
}

type Order struct {
	ID            uuid.UUID       `json:"id"`
	UserID        string          `json:"user_id"`
	Address       ShippingAddress `json:"shipping_address"`
	PaymentMethod string          `json:"payment_method"`

	ItemsPrice    money.Amount `json:"items_price"`
	ShippingPrice money.Amount `json:"shipping_price"`
	TaxPrice      money.Amount `json:"tax_price"`
	TotalPrice    money.Amount `json:"total_price"`

	IsPaid      bool       `json:"is_paid"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
	IsDelivered bool       `json:"is_delivered"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`

	PaymentResult *PaymentResult `json:"payment_result,omitempty"`

	Items []OrderItem `json:"items"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OrderItem is an immutable snapshot of a cart line at purchase time; later
// product edits never touch it.
type OrderItem struct {
	ProductID string       `json:"product_id"`
	Name      string       `json:"name"`
	Slug      string       `json:"slug"`
	Image     string       `json:"image"`
	Price     money.Amount `json:"price"`
	Quantity  int          `json:"quantity"`
}

// NewOrderFromCart snapshots the cart into a fresh unpaid order. Prices,
// names and images come from the cart lines, not from a re-read of the live
// product, so purchase-time pricing is preserved.
func NewOrderFromCart(userID string, addr ShippingAddress, paymentMethod string, cart *Cart) *Order {
	items := make([]OrderItem, 0, len(cart.Items))
	for _, it := range cart.Items {
		items = append(items, OrderItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			Slug:      it.Slug,
			Image:     it.Image,
			Price:     it.Price,
			Quantity:  it.Quantity,
		})
	}

	return &Order{
		ID:            uuid.New(),
		UserID:        userID,
		Address:       addr,
		PaymentMethod: paymentMethod,
		ItemsPrice:    cart.ItemsPrice,
		ShippingPrice: cart.ShippingPrice,
		TaxPrice:      cart.TaxPrice,
		TotalPrice:    cart.TotalPrice,
		Items:         items,
	}
}
