package snapshot

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"storefront-checkout-backend/internal/payments"
)

const roundingLineID = "rounding"

var hundred = decimal.NewFromInt(100)

// MinorUnits converts a major-unit amount to minor units, rounding half away
// from zero.
func MinorUnits(value decimal.Decimal) int64 {
	return value.Mul(hundred).Round(0).IntPart()
}

// VatRate derives the integer percentage the provider expects from the item
// amount and its VAT amount.
func VatRate(amount, vatAmount int64) int64 {
	if amount == 0 {
		return 0
	}
	return decimal.NewFromInt(vatAmount).
		Div(decimal.NewFromInt(amount)).
		Mul(hundred).
		Round(0).
		IntPart()
}

// Build converts a cart or order into the provider's order schema.
func Build(c Context, opts Options) payments.Order {
	order := payments.Order{
		Amount:            MinorUnits(c.Total),
		Currency:          normalizeCurrency(c.Currency),
		MerchantReference: c.Reference,
	}

	for _, line := range c.Lines {
		order.Items = append(order.Items, LineItem(line))
	}

	shipping := c.Shipping
	if opts.ShippingAsOption && len(shipping) > 0 {
		option := ShippingOptionFor(shipping[0])
		order.ShippingOption = &option
		shipping = shipping[1:]
	}
	for _, line := range shipping {
		order.Items = append(order.Items, ShippingItem(line))
	}

	for _, discount := range c.Discounts {
		order.Items = append(order.Items, DiscountItem(discount))
	}

	covered := order.ItemsTotal()
	if order.ShippingOption != nil {
		covered += order.ShippingOption.Amount
	}
	if diff := order.Amount - covered; diff != 0 {
		order.Items = append(order.Items, RoundingItem(diff))
	}

	order.VatAmount = vatTotal(order)
	return order
}

// BuildRefund converts a refund record into the order schema used by the
// refund call. Items are included only when the refund names rows.
func BuildRefund(rc RefundContext) payments.Order {
	order := payments.Order{
		Amount:            MinorUnits(rc.Amount.Abs()),
		Currency:          normalizeCurrency(rc.Currency),
		MerchantReference: rc.Reference,
	}

	for _, line := range rc.Lines {
		line.Quantity = absInt(line.Quantity)
		line.Total = line.Total.Abs()
		line.Tax = line.Tax.Abs()
		order.Items = append(order.Items, LineItem(line))
	}
	for _, line := range rc.Shipping {
		line.Total = line.Total.Abs()
		line.Tax = line.Tax.Abs()
		order.Items = append(order.Items, ShippingItem(line))
	}

	if len(order.Items) > 0 {
		if diff := order.Amount - order.ItemsTotal(); diff != 0 {
			order.Items = append(order.Items, RoundingItem(diff))
		}
	}

	order.VatAmount = vatTotal(order)
	return order
}

// LineItem maps a product or fee row. The id prefers the SKU, then the
// variation, then the product; line_id prefers the variation, then the
// product, so the same goods carry the same line_id in every call.
func LineItem(line Line) payments.LineItem {
	amount := MinorUnits(line.Total)
	vatAmount := MinorUnits(line.Tax)

	itemType := payments.ItemTypeProduct
	if line.Kind == LineFee {
		itemType = payments.ItemTypeFee
	}

	quantity := line.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	lineID := firstNonEmpty(line.VariationID, line.ProductID)
	if lineID == "" {
		lineID = string(itemType) + ":" + slug(line.Name)
	}

	return payments.LineItem{
		ID:          firstNonEmpty(line.SKU, line.VariationID, line.ProductID, lineID),
		LineID:      lineID,
		Description: line.Name,
		Quantity:    quantity,
		Amount:      amount,
		VatAmount:   vatAmount,
		Vat:         VatRate(amount, vatAmount),
		Type:        itemType,
	}
}

// ShippingLineID identifies a shipping package. Pickup points extend the id
// with operator and pickup point so alternatives never collide.
func ShippingLineID(line ShippingLine) string {
	id := line.MethodID + ":" + line.InstanceID
	if line.PickupPointID != "" {
		id += ":" + line.Operator + ":" + line.PickupPointID
	}
	return id
}

// ShippingItem maps a shipping package to an item.
func ShippingItem(line ShippingLine) payments.LineItem {
	amount := MinorUnits(line.Total)
	vatAmount := MinorUnits(line.Tax)
	lineID := ShippingLineID(line)

	return payments.LineItem{
		ID:          lineID,
		LineID:      lineID,
		Description: line.Title,
		Quantity:    1,
		Amount:      amount,
		VatAmount:   vatAmount,
		Vat:         VatRate(amount, vatAmount),
		Type:        payments.ItemTypeShipping,
	}
}

// ShippingOptionFor maps a shipping package to the shipping_option field.
func ShippingOptionFor(line ShippingLine) payments.ShippingOption {
	amount := MinorUnits(line.Total)
	vatAmount := MinorUnits(line.Tax)
	lineID := ShippingLineID(line)

	return payments.ShippingOption{
		ID:                lineID,
		LineID:            lineID,
		Title:             line.Title,
		Amount:            amount,
		VatAmount:         vatAmount,
		Vat:               VatRate(amount, vatAmount),
		Operator:          line.Operator,
		OperatorProductID: line.OperatorProductID,
	}
}

// DiscountItem maps a gift card or coupon to a negative item without VAT.
func DiscountItem(discount Discount) payments.LineItem {
	itemType := payments.ItemTypeCoupon
	if discount.Kind == DiscountGiftCard {
		itemType = payments.ItemTypeGiftCard
	}

	description := discount.Label
	if description == "" {
		description = fmt.Sprintf("%s %s", strings.ReplaceAll(string(itemType), "_", " "), discount.Code)
	}

	return payments.LineItem{
		ID:          discount.Code,
		LineID:      string(itemType) + ":" + discount.Code,
		Description: description,
		Quantity:    1,
		Amount:      -MinorUnits(discount.Amount.Abs()),
		Type:        itemType,
	}
}

// RoundingItem carries the signed difference between the authoritative
// total and the item sum.
func RoundingItem(diff int64) payments.LineItem {
	return payments.LineItem{
		ID:          roundingLineID,
		LineID:      roundingLineID,
		Description: "Rounding",
		Quantity:    1,
		Amount:      diff,
		Type:        payments.ItemTypeRounding,
	}
}

func vatTotal(order payments.Order) int64 {
	var total int64
	for _, item := range order.Items {
		total += item.VatAmount
	}
	if order.ShippingOption != nil {
		total += order.ShippingOption.VatAmount
	}
	return total
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func slug(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	return strings.Join(strings.Fields(value), "-")
}

func absInt(value int) int {
	if value < 0 {
		return -value
	}
	return value
}
