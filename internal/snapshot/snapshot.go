// Package snapshot converts cart, order and refund value objects into the
// payment provider's line-item schema. Everything here is a pure function of
// its input; nothing reads ambient cart state.
package snapshot

import (
	"strings"

	"github.com/shopspring/decimal"
)

type LineKind string

const (
	LineProduct LineKind = "product"
	LineFee     LineKind = "fee"
)

// Line is one product or fee row. Total and Tax are the row totals in major
// units; Total includes Tax.
type Line struct {
	ProductID   string
	VariationID string
	SKU         string
	Name        string
	Kind        LineKind
	Quantity    int
	Total       decimal.Decimal
	Tax         decimal.Decimal
}

// ShippingLine is one shipping package. PickupPointID is set when the
// customer chose a pickup point for this package.
type ShippingLine struct {
	MethodID          string
	InstanceID        string
	Title             string
	Total             decimal.Decimal
	Tax               decimal.Decimal
	Operator          string
	OperatorProductID string
	PickupPointID     string
}

type DiscountKind string

const (
	DiscountGiftCard DiscountKind = "gift_card"
	DiscountCoupon   DiscountKind = "coupon"
)

// Discount is a gift card or coupon redemption. Amount is the positive value
// deducted from the total.
type Discount struct {
	Kind   DiscountKind
	Code   string
	Label  string
	Amount decimal.Decimal
}

// Context is the cart or order being mirrored. Total is authoritative: item
// rounding never changes what the customer pays.
type Context struct {
	Reference string
	Currency  string
	Total     decimal.Decimal
	Lines     []Line
	Shipping  []ShippingLine
	Discounts []Discount
}

// RefundContext describes one refund record. Lines and Shipping hold the
// refunded rows only; an empty set refunds Amount without items.
type RefundContext struct {
	Reference string
	Currency  string
	Amount    decimal.Decimal
	Reason    string
	Lines     []Line
	Shipping  []ShippingLine
}

// Options tune how the snapshot is laid out.
type Options struct {
	// ShippingAsOption sends the first shipping package as shipping_option
	// rather than as an item.
	ShippingAsOption bool
}

func normalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
