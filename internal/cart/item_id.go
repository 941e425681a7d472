package cart

import (
	"errors"
	"strconv"
	"strings"
)

var ErrInvalidItemID = errors.New("invalid cart item id")

const baseSuffix = "base"

// ItemRef identifies what a cart line points at: either the base product
// (VariantID nil) or one of its variants. Its string form is the composite
// "<productId>-<variantId>" or "<productId>-base".
type ItemRef struct {
	ProductID int64
	VariantID *int64
}

func BaseItem(productID int64) ItemRef {
	return ItemRef{ProductID: productID}
}

func VariantItem(productID, variantID int64) ItemRef {
	return ItemRef{ProductID: productID, VariantID: &variantID}
}

func (r ItemRef) HasVariant() bool {
	return r.VariantID != nil
}

func (r ItemRef) String() string {
	suffix := baseSuffix
	if r.VariantID != nil {
		suffix = strconv.FormatInt(*r.VariantID, 10)
	}
	return strconv.FormatInt(r.ProductID, 10) + "-" + suffix
}

func (r ItemRef) Equal(other ItemRef) bool {
	if r.ProductID != other.ProductID || r.HasVariant() != other.HasVariant() {
		return false
	}
	return !r.HasVariant() || *r.VariantID == *other.VariantID
}

// ParseItemID decodes a composite cart item id.
func ParseItemID(id string) (ItemRef, error) {
	productPart, variantPart, ok := strings.Cut(strings.TrimSpace(id), "-")
	if !ok || productPart == "" || variantPart == "" {
		return ItemRef{}, ErrInvalidItemID
	}

	productID, err := strconv.ParseInt(productPart, 10, 64)
	if err != nil || productID <= 0 {
		return ItemRef{}, ErrInvalidItemID
	}

	if variantPart == baseSuffix {
		return BaseItem(productID), nil
	}

	variantID, err := strconv.ParseInt(variantPart, 10, 64)
	if err != nil || variantID <= 0 {
		return ItemRef{}, ErrInvalidItemID
	}
	return VariantItem(productID, variantID), nil
}

func (r ItemRef) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *ItemRef) UnmarshalText(text []byte) error {
	parsed, err := ParseItemID(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
