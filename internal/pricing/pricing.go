// Package pricing computes the money breakdown of a cart.
package pricing

import (
	"github.com/safar/go-storefront/internal/models"
	"github.com/shopspring/decimal"
)

var (
	FreeShippingThreshold = decimal.RequireFromString("50.00")
	ShippingFee           = decimal.RequireFromString("9.99")
	TaxRate               = decimal.RequireFromString("0.08")
)

func Subtotal(lines []models.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.LineTotal())
	}
	return total
}

// Quote prices lines: shipping is waived from FreeShippingThreshold upward and
// tax is TaxRate of the subtotal rounded to cents. An empty cart costs nothing.
func Quote(lines []models.CartLine) models.Pricing {
	subtotal := Subtotal(lines)
	if subtotal.IsZero() {
		return models.Pricing{Subtotal: subtotal, Shipping: decimal.Zero, Tax: decimal.Zero, Total: decimal.Zero}
	}

	shipping := ShippingFee
	if subtotal.GreaterThanOrEqual(FreeShippingThreshold) {
		shipping = decimal.Zero
	}
	tax := subtotal.Mul(TaxRate).Round(2)

	return models.Pricing{
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Total:    subtotal.Add(shipping).Add(tax),
	}
}
