package service

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound           = errors.New("order not found")
	ErrRefundNotFound          = errors.New("refund not found")
	ErrCheckoutSessionNotFound = errors.New("checkout session not found")
	ErrSessionSuperseded       = errors.New("checkout session already completed")
	ErrMissingSessionKey       = errors.New("browsing session key is required")
	ErrInvalidOrderStatus      = errors.New("invalid order status")
	ErrInvalidReference        = errors.New("invalid merchant reference")
	// ErrOrderNotBound is returned by Finalize when the order was not placed
	// from the caller's checkout attempt.
	ErrOrderNotBound = errors.New("order was not placed from this checkout attempt")
	// ErrOrderBound is returned when an order or attempt reference is already
	// bound to something else.
	ErrOrderBound = errors.New("order is bound to another checkout attempt")
)

// SessionError is a failed session operation. Message is the provider's
// folded error text, safe to show in the checkout notice.
type SessionError struct {
	Op      string
	Message string
	Err     error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("checkout session %s failed: %s", e.Op, e.Message)
}

func (e *SessionError) Unwrap() error { return e.Err }
