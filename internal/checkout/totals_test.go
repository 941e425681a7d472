package checkout

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/models"
)

func TestComputeTotals_PendingWithoutQuote(t *testing.T) {
	totals := ComputeTotals(decimal.NewFromInt(1000), nil)

	assert.True(t, totals.Pending)
	assert.Nil(t, totals.Shipping)
	assert.Nil(t, totals.Total)
	assert.True(t, totals.Tax.Equal(decimal.NewFromInt(160)))
	assert.Equal(t, PendingLabel, totals.DisplayTotal())
}

func TestComputeTotals_WithQuote(t *testing.T) {
	totals := ComputeTotals(decimal.NewFromInt(1000), &models.ShippingQuote{ShippingCost: 150})

	assert.False(t, totals.Pending)
	require.NotNil(t, totals.Total)
	assert.True(t, totals.Tax.Equal(decimal.NewFromInt(160)))
	assert.True(t, totals.Shipping.Equal(decimal.NewFromInt(150)))
	assert.True(t, totals.Total.Equal(decimal.NewFromInt(1310)))
	assert.Equal(t, "1310.00", totals.DisplayTotal())
}

func TestComputeTotals_FreeShippingIsNotPending(t *testing.T) {
	totals := ComputeTotals(decimal.RequireFromString("199.90"), &models.ShippingQuote{ShippingCost: 0})

	require.NotNil(t, totals.Total)
	assert.Equal(t, "31.98", totals.Tax.StringFixed(2))
	assert.Equal(t, "231.88", totals.DisplayTotal())
}

func TestParcelFor(t *testing.T) {
	tests := []struct {
		units int
		want  float64
	}{
		{0, 0.5},
		{3, 0.5},
		{5, 0.5},
		{7, 0.7},
		{12, 1.2},
	}
	for _, tt := range tests {
		p := parcelFor(tt.units, DefaultUnitWeightKg)
		assert.Equal(t, tt.want, p.WeightKg, "units=%d", tt.units)
		assert.Equal(t, float64(20), p.LengthCm)
		assert.Equal(t, float64(15), p.WidthCm)
		assert.Equal(t, float64(10), p.HeightCm)
	}
}
