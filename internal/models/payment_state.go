package models

// PaymentState is the single closed record of what happened to an order's
// authorization. Captured and canceled exclude each other and are never
// unset; refunded can only follow captured.
type PaymentState string

const (
	PaymentStateNone     PaymentState = "none"
	PaymentStateCaptured PaymentState = "captured"
	PaymentStateCanceled PaymentState = "canceled"
	PaymentStateRefunded PaymentState = "refunded"
)

var validPaymentTransitions = map[PaymentState]map[PaymentState]bool{
	PaymentStateNone:     {PaymentStateCaptured: true, PaymentStateCanceled: true},
	PaymentStateCaptured: {PaymentStateRefunded: true},
	PaymentStateCanceled: {},
	PaymentStateRefunded: {},
}

// CanTransition reports whether from → to is a legal payment state change.
func CanTransition(from, to PaymentState) bool {
	if from == "" {
		from = PaymentStateNone
	}
	return validPaymentTransitions[from][to]
}

// IsCaptured is true once money was captured, including later refunds.
func (s PaymentState) IsCaptured() bool {
	return s == PaymentStateCaptured || s == PaymentStateRefunded
}

func (s PaymentState) IsCanceled() bool {
	return s == PaymentStateCanceled
}

// OrderStatus is the storefront's order workflow status.
type OrderStatus string

const (
	OrderStatusPending      OrderStatus = "pending"
	OrderStatusProcessing   OrderStatus = "processing"
	OrderStatusOnHold       OrderStatus = "on-hold"
	OrderStatusManualReview OrderStatus = "manual-review"
	OrderStatusCompleted    OrderStatus = "completed"
	OrderStatusCancelled    OrderStatus = "cancelled"
	OrderStatusRefunded     OrderStatus = "refunded"
	OrderStatusFailed       OrderStatus = "failed"
)

// ValidOrderStatus reports whether status is one of the known statuses.
func ValidOrderStatus(status OrderStatus) bool {
	switch status {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusOnHold, OrderStatusManualReview,
		OrderStatusCompleted, OrderStatusCancelled, OrderStatusRefunded, OrderStatusFailed:
		return true
	}
	return false
}
