package cart

import (
	"time"

	"github.com/shopspring/decimal"
)

type Item struct {
	Ref         ItemRef `json:"id"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
	Name        string  `json:"name"`
	VariantName string  `json:"variantName,omitempty"`
	ImagePath   string  `json:"imagePath,omitempty"`
}

func (i Item) LineTotal() decimal.Decimal {
	return decimal.NewFromFloat(i.UnitPrice).Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Cart struct {
	UserID    string    `json:"userId"`
	Items     []Item    `json:"items"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	if c == nil {
		return total
	}
	for _, item := range c.Items {
		total = total.Add(item.LineTotal())
	}
	return total.Round(2)
}

// Units is the number of pieces in the cart, used for the parcel weight.
func (c *Cart) Units() int {
	if c == nil {
		return 0
	}
	units := 0
	for _, item := range c.Items {
		units += item.Quantity
	}
	return units
}

func (c *Cart) find(ref ItemRef) int {
	for i, item := range c.Items {
		if item.Ref.Equal(ref) {
			return i
		}
	}
	return -1
}
