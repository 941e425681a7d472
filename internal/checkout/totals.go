package checkout

import (
	"github.com/shopspring/decimal"

	"storefront/internal/models"
)

var TaxRate = decimal.RequireFromString("0.16")

const PendingLabel = "pendiente"

// Totals are recomputed from the cart and the latest quote. Shipping and
// Total stay nil while no quote has been received.
type Totals struct {
	Subtotal decimal.Decimal  `json:"subtotal"`
	Tax      decimal.Decimal  `json:"tax"`
	Shipping *decimal.Decimal `json:"shipping"`
	Total    *decimal.Decimal `json:"total"`
	Pending  bool             `json:"pending"`
}

func ComputeTotals(subtotal decimal.Decimal, quote *models.ShippingQuote) Totals {
	subtotal = subtotal.Round(2)
	t := Totals{
		Subtotal: subtotal,
		Tax:      subtotal.Mul(TaxRate).Round(2),
		Pending:  quote == nil,
	}
	if quote == nil {
		return t
	}

	shipping := decimal.NewFromFloat(quote.ShippingCost).Round(2)
	total := subtotal.Add(shipping).Add(t.Tax)
	t.Shipping = &shipping
	t.Total = &total
	return t
}

// DisplayTotal renders the final total, or the pending label.
func (t Totals) DisplayTotal() string {
	if t.Total == nil {
		return PendingLabel
	}
	return t.Total.StringFixed(2)
}

func (t Totals) shippingOrZero() decimal.Decimal {
	if t.Shipping == nil {
		return decimal.Zero
	}
	return *t.Shipping
}
