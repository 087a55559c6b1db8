package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"storefront-checkout-backend/internal/payments"
	"storefront-checkout-backend/internal/snapshot"
)

type CheckoutSessionState string

const (
	CheckoutSessionCreated    CheckoutSessionState = "created"
	CheckoutSessionLocked     CheckoutSessionState = "locked"
	CheckoutSessionUnlocked   CheckoutSessionState = "unlocked"
	CheckoutSessionSuperseded CheckoutSessionState = "superseded"
)

// CheckoutSession is the server-held record of one checkout attempt, keyed by
// the customer's browsing session.
type CheckoutSession struct {
	Key               string               `json:"key"`
	SessionID         string               `json:"session_id"`
	MerchantReference string               `json:"merchant_reference"`
	SnapshotHash      string               `json:"snapshot_hash"`
	State             CheckoutSessionState `json:"state"`
	PendingUpdate     bool                 `json:"pending_update,omitempty"`
	OrderID           uint                 `json:"order_id,omitempty"`
	ExpiresAt         time.Time            `json:"expires_at"`
	UpdatedAt         time.Time            `json:"updated_at"`
}

// Expired reports whether the record can no longer be reused at now.
func (s *CheckoutSession) Expired(now time.Time) bool {
	if s == nil || s.State == CheckoutSessionSuperseded {
		return true
	}
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// CheckoutSessionResponse is what the storefront receives.
type CheckoutSessionResponse struct {
	SessionID         string               `json:"session_id"`
	MerchantReference string               `json:"merchant_reference"`
	State             CheckoutSessionState `json:"state"`
	ExpiresAt         time.Time            `json:"expires_at"`
	Updated           bool                 `json:"updated"`
	PendingUpdate     bool                 `json:"pending_update"`
}

type CartLineRequest struct {
	ProductID   string          `json:"product_id" binding:"required_without=SKU"`
	VariationID string          `json:"variation_id"`
	SKU         string          `json:"sku"`
	Name        string          `json:"name" binding:"required,max=255"`
	Fee         bool            `json:"fee"`
	Quantity    int             `json:"quantity" binding:"min=0"`
	Total       decimal.Decimal `json:"total"`
	Tax         decimal.Decimal `json:"tax"`
}

type CartShippingRequest struct {
	MethodID          string          `json:"method_id" binding:"required"`
	InstanceID        string          `json:"instance_id"`
	Title             string          `json:"title"`
	Total             decimal.Decimal `json:"total"`
	Tax               decimal.Decimal `json:"tax"`
	Operator          string          `json:"operator"`
	OperatorProductID string          `json:"operator_product_id"`
	PickupPointID     string          `json:"pickup_point_id"`
}

type CartDiscountRequest struct {
	Kind   string          `json:"kind" binding:"required,oneof=gift_card coupon"`
	Code   string          `json:"code" binding:"required,max=128"`
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

// CartRequest is the priced cart posted by the storefront. Prices are taken
// as-is; this service never recomputes them.
type CartRequest struct {
	Reference string                `json:"merchant_reference" binding:"omitempty,reference"`
	Currency  string                `json:"currency" binding:"required,currency"`
	Total     decimal.Decimal       `json:"total"`
	Lines     []CartLineRequest     `json:"lines" binding:"required,min=1,dive"`
	Shipping  []CartShippingRequest `json:"shipping" binding:"dive"`
	Discounts []CartDiscountRequest `json:"discounts" binding:"dive"`
	Email     string                `json:"email" binding:"omitempty,email"`
	Phone     string                `json:"phone"`
}

// Context converts the request into the snapshot value object.
func (r *CartRequest) Context() snapshot.Context {
	ctx := snapshot.Context{
		Reference: strings.TrimSpace(r.Reference),
		Currency:  r.Currency,
		Total:     r.Total,
	}
	for _, line := range r.Lines {
		kind := snapshot.LineProduct
		if line.Fee {
			kind = snapshot.LineFee
		}
		ctx.Lines = append(ctx.Lines, snapshot.Line{
			ProductID:   line.ProductID,
			VariationID: line.VariationID,
			SKU:         line.SKU,
			Name:        line.Name,
			Kind:        kind,
			Quantity:    line.Quantity,
			Total:       line.Total,
			Tax:         line.Tax,
		})
	}
	for _, shipping := range r.Shipping {
		ctx.Shipping = append(ctx.Shipping, snapshot.ShippingLine{
			MethodID:          shipping.MethodID,
			InstanceID:        shipping.InstanceID,
			Title:             shipping.Title,
			Total:             shipping.Total,
			Tax:               shipping.Tax,
			Operator:          shipping.Operator,
			OperatorProductID: shipping.OperatorProductID,
			PickupPointID:     shipping.PickupPointID,
		})
	}
	for _, discount := range r.Discounts {
		ctx.Discounts = append(ctx.Discounts, snapshot.Discount{
			Kind:   snapshot.DiscountKind(discount.Kind),
			Code:   discount.Code,
			Label:  discount.Label,
			Amount: discount.Amount,
		})
	}
	return ctx
}

// Customer returns the optional prefill data for the hosted checkout.
func (r *CartRequest) Customer() *payments.Customer {
	email := strings.TrimSpace(r.Email)
	phone := strings.TrimSpace(r.Phone)
	if email == "" && phone == "" {
		return nil
	}
	return &payments.Customer{Email: email, PhoneNumber: phone}
}

// BindOrderRequest ties a placed order to the checkout attempt it came from.
type BindOrderRequest struct {
	MerchantReference string `json:"merchant_reference" binding:"required,reference"`
}

type FinalizeCheckoutRequest struct {
	OrderID       uint   `json:"order_id" binding:"required"`
	TransactionID string `json:"transaction_id" binding:"required,max=128"`
}
