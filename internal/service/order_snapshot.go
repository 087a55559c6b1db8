package service

import (
	"storefront-checkout-backend/internal/models"
	"storefront-checkout-backend/internal/snapshot"
)

// OrderContext describes a persisted order for the snapshot builder. The
// same line ids as the checkout cart are produced because both derive them
// from product and variation ids.
func OrderContext(order *models.Order) snapshot.Context {
	ctx := snapshot.Context{
		Reference: order.Reference(),
		Currency:  order.Currency,
		Total:     order.Total,
	}

	for _, line := range order.Lines {
		switch line.Kind {
		case models.OrderLineShipping:
			ctx.Shipping = append(ctx.Shipping, shippingLine(line))
		case models.OrderLineGiftCard, models.OrderLineCoupon:
			ctx.Discounts = append(ctx.Discounts, snapshot.Discount{
				Kind:   snapshot.DiscountKind(line.Kind),
				Code:   line.Code,
				Label:  line.Name,
				Amount: line.Total.Abs(),
			})
		default:
			ctx.Lines = append(ctx.Lines, productLine(line, line.Quantity))
		}
	}

	return ctx
}

// RefundContext describes one refund record of order.
func RefundContext(order *models.Order, refund *models.OrderRefund, reason string) snapshot.RefundContext {
	if reason == "" {
		reason = refund.Reason
	}

	rc := snapshot.RefundContext{
		Reference: order.Reference(),
		Currency:  order.Currency,
		Amount:    refund.Amount,
		Reason:    reason,
	}

	for _, refunded := range refund.Lines {
		line := refunded.OrderLine
		line.Total = refunded.Total
		line.Tax = refunded.Tax

		if line.Kind == models.OrderLineShipping {
			rc.Shipping = append(rc.Shipping, shippingLine(line))
			continue
		}
		rc.Lines = append(rc.Lines, productLine(line, refunded.Quantity))
	}

	return rc
}

func productLine(line models.OrderLine, quantity int) snapshot.Line {
	kind := snapshot.LineProduct
	if line.Kind == models.OrderLineFee {
		kind = snapshot.LineFee
	}

	return snapshot.Line{
		ProductID:   line.ProductID,
		VariationID: line.VariationID,
		SKU:         line.SKU,
		Name:        line.Name,
		Kind:        kind,
		Quantity:    quantity,
		Total:       line.Total,
		Tax:         line.Tax,
	}
}

func shippingLine(line models.OrderLine) snapshot.ShippingLine {
	return snapshot.ShippingLine{
		MethodID:          line.MethodID,
		InstanceID:        line.InstanceID,
		Title:             line.Name,
		Total:             line.Total,
		Tax:               line.Tax,
		Operator:          line.Operator,
		OperatorProductID: line.OperatorProductID,
		PickupPointID:     line.PickupPointID,
	}
}
