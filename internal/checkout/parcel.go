package checkout

import "github.com/shopspring/decimal"

const (
	DefaultUnitWeightKg = 0.1
	minParcelWeightKg   = 0.5

	parcelLengthCm = 20
	parcelWidthCm  = 15
	parcelHeightCm = 10
	packagingType  = "caja"
)

// Parcel is the declared package for a quote. Only the weight depends on
// the cart.
type Parcel struct {
	WeightKg float64 `json:"peso"`
	LengthCm float64 `json:"largo"`
	WidthCm  float64 `json:"ancho"`
	HeightCm float64 `json:"alto"`
}

func parcelFor(units int, unitWeightKg float64) Parcel {
	weight := decimal.NewFromFloat(unitWeightKg).Mul(decimal.NewFromInt(int64(units)))
	if weight.LessThan(decimal.NewFromFloat(minParcelWeightKg)) {
		weight = decimal.NewFromFloat(minParcelWeightKg)
	}
	return Parcel{
		WeightKg: weight.Round(3).InexactFloat64(),
		LengthCm: parcelLengthCm,
		WidthCm:  parcelWidthCm,
		HeightCm: parcelHeightCm,
	}
}
