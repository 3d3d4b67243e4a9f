package domain

import (
	"testing"

	"github.com/marc100s/store-core/internal/money"
	"github.com/stretchr/testify/assert"
)

func TestComputeTotals_UnderFreeShippingThreshold(t *testing.T) {
	items := []CartItem{
		{ProductID: "p1", Price: money.MustParse("25.00"), Quantity: 3},
	}

	totals := ComputeTotals(items)

	assert.Equal(t, "75.00", totals.ItemsPrice.String())
	assert.Equal(t, "10.00", totals.ShippingPrice.String())
	assert.Equal(t, "15.75", totals.TaxPrice.String())
	assert.Equal(t, "100.75", totals.TotalPrice.String())
}

func TestComputeTotals_FreeShipping(t *testing.T) {
	items := []CartItem{
		{ProductID: "p1", Price: money.MustParse("150.00"), Quantity: 1},
	}

	totals := ComputeTotals(items)

	assert.Equal(t, "150.00", totals.ItemsPrice.String())
	assert.Equal(t, "0.00", totals.ShippingPrice.String())
	assert.Equal(t, "31.50", totals.TaxPrice.String())
	assert.Equal(t, "181.50", totals.TotalPrice.String())
}

func TestComputeTotals_ExactlyAtThresholdShipsFlat(t *testing.T) {
	items := []CartItem{
		{ProductID: "p1", Price: money.MustParse("100.00"), Quantity: 1},
	}

	totals := ComputeTotals(items)

	assert.Equal(t, "10.00", totals.ShippingPrice.String())
}

func TestComputeTotals_Empty(t *testing.T) {
	totals := ComputeTotals(nil)

	assert.Equal(t, "0.00", totals.ItemsPrice.String())
	assert.Equal(t, "10.00", totals.ShippingPrice.String())
	assert.Equal(t, "0.00", totals.TaxPrice.String())
	assert.Equal(t, "10.00", totals.TotalPrice.String())
}

func TestComputeTotals_TaxRoundsHalfUp(t *testing.T) {
	items := []CartItem{{ProductID: "p1", Price: money.MustParse("0.05"), Quantity: 5}}
	totals := ComputeTotals(items)
	assert.Equal(t, "0.25", totals.ItemsPrice.String())
	assert.Equal(t, "0.05", totals.TaxPrice.String()) // 0.0525 rounds to 0.05

	items = []CartItem{{ProductID: "p1", Price: money.MustParse("0.50"), Quantity: 1}}
	totals = ComputeTotals(items)
	assert.Equal(t, "0.11", totals.TaxPrice.String()) // 0.105 rounds half-up
}

func TestNewOrderFromCart_SnapshotsLinesAndTotals(t *testing.T) {
	cart := &Cart{
		Items: []CartItem{
			{ProductID: "p1", Name: "Mug", Slug: "mug", Image: "/img/mug.jpg", Price: money.MustParse("25.00"), Quantity: 3},
		},
	}
	cart.ApplyTotals()

	addr := ShippingAddress{FullName: "Jo Doe", Street: "1 Main St", City: "Gent", PostalCode: "9000", Country: "BE"}
	order := NewOrderFromCart("u1", addr, "stripe", cart)

	assert.Equal(t, "u1", order.UserID)
	assert.Equal(t, addr, order.Address)
	assert.Equal(t, "100.75", order.TotalPrice.String())
	assert.Len(t, order.Items, 1)
	assert.Equal(t, "Mug", order.Items[0].Name)
	assert.Equal(t, "25.00", order.Items[0].Price.String())
	assert.False(t, order.IsPaid)
	assert.Nil(t, order.PaymentResult)
}
