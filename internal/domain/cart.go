package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/marc100s/store-core/internal/money"
)

// Identity names the owner of a cart: the authenticated user when there is
// one, otherwise the anonymous session cart token from the browser cookie.
// During the sign-in merge both are present transiently.
type Identity struct {
	UserID        string
	SessionCartID string
}

func (id Identity) IsZero() bool {
	return id.UserID == "" && id.SessionCartID == ""
}

type Cart struct {
	ID            uuid.UUID  `json:"id"`
	UserID        string     `json:"user_id,omitempty"`
	SessionCartID string     `json:"session_cart_id,omitempty"`
	Items         []CartItem `json:"items"`

	ItemsPrice    money.Amount `json:"items_price"`
	ShippingPrice money.Amount `json:"shipping_price"`
	TaxPrice      money.Amount `json:"tax_price"`
	TotalPrice    money.Amount `json:"total_price"`

	// Revision guards read-modify-write cart updates; every successful
	// write bumps it and conditions on the previously read value.
	Revision int64 `json:"revision"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CartItem struct {
	ProductID string       `json:"product_id"`
	Name      string       `json:"name"`
	Slug      string       `json:"slug"`
	Image     string       `json:"image"`
	Price     money.Amount `json:"price"`
	Quantity  int          `json:"quantity"`
}

func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

// Item returns the line for productID, or nil.
func (c *Cart) Item(productID string) *CartItem {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return &c.Items[i]
		}
	}
	return nil
}

type Totals struct {
	ItemsPrice    money.Amount
	ShippingPrice money.Amount
	TaxPrice      money.Amount
	TotalPrice    money.Amount
}

var (
	freeShippingThreshold = money.MustParse("100")
	flatShippingPrice     = money.MustParse("10")
	taxRate               = money.MustParse("0.21")
)

// ComputeTotals derives the four monetary totals from the item list. Stored
// totals are always a pure function of the items: itemsPrice = sum of
// price*qty, flat 10 shipping under the 100 threshold, 21% tax on items,
// everything rounded half-up to cents.
func ComputeTotals(items []CartItem) Totals {
	itemsPrice := money.Zero()
	for _, it := range items {
		itemsPrice = itemsPrice.Add(it.Price.MulInt(it.Quantity))
	}
	itemsPrice = itemsPrice.Round2()

	shipping := flatShippingPrice.Round2()
	if itemsPrice.GreaterThan(freeShippingThreshold) {
		shipping = money.Zero().Round2()
	}

	tax := itemsPrice.Mul(taxRate).Round2()

	return Totals{
		ItemsPrice:    itemsPrice,
		ShippingPrice: shipping,
		TaxPrice:      tax,
		TotalPrice:    itemsPrice.Add(shipping).Add(tax).Round2(),
	}
}

// ApplyTotals stamps a recomputation of the current items onto the cart.
func (c *Cart) ApplyTotals() {
	t := ComputeTotals(c.Items)
	c.ItemsPrice = t.ItemsPrice
	c.ShippingPrice = t.ShippingPrice
	c.TaxPrice = t.TaxPrice
	c.TotalPrice = t.TotalPrice
}
