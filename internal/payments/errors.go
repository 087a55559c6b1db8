package payments

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrRefundNotSupported is returned when a refund is requested for an
	// order whose payment was never captured; the operator should cancel.
	ErrRefundNotSupported = errors.New("refund is not possible before the payment is captured")
	// ErrStateConflict marks operations that conflict with the current
	// payment state (capture after cancel and similar). Callers resolve it
	// as a no-op.
	ErrStateConflict = errors.New("payment state conflict")
	// ErrNoTransaction is returned when an order has no provider transaction.
	ErrNoTransaction = errors.New("order has no payment transaction")
	// ErrNotAuthorized is returned when a transaction is in a state that
	// cannot pay for an order (voided, failed).
	ErrNotAuthorized = errors.New("transaction is not authorized")
)

// AuthError is a credential or token failure. It is fatal for the current
// operation; the cached token is discarded.
type AuthError struct {
	Status  int
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("payment provider authentication failed: %v", e.Err)
	case e.Message != "":
		return fmt.Sprintf("payment provider authentication failed (%d): %s", e.Status, e.Message)
	default:
		return fmt.Sprintf("payment provider authentication failed with status %d", e.Status)
	}
}

func (e *AuthError) Unwrap() error { return e.Err }

// TransportError wraps network failures and timeouts. Callers may retry.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("payment provider %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProviderError is a business error reported by the provider; Message is
// meant to be shown verbatim to the operator or customer.
type ProviderError struct {
	Op      string
	Status  int
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("payment provider %s failed with status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("payment provider %s failed: %s", e.Op, e.Message)
}

// SessionLocked reports whether the provider rejected a session change
// because the session is locked by the customer.
func (e *ProviderError) SessionLocked() bool {
	if e == nil {
		return false
	}
	if e.Status == http.StatusLocked || e.Status == http.StatusConflict {
		return true
	}
	return strings.Contains(strings.ToLower(e.Code+" "+e.Message), "locked")
}

// ReferenceMismatchError is returned when a transaction's merchant reference
// does not match the local order. It is never corrected automatically.
type ReferenceMismatchError struct {
	TransactionID        string
	OrderReference       string
	TransactionReference string
}

func (e *ReferenceMismatchError) Error() string {
	return fmt.Sprintf("transaction %s belongs to merchant reference %q, not %q",
		e.TransactionID, e.TransactionReference, e.OrderReference)
}

// VerifyReference checks the join key between a local order and a
// provider transaction.
func VerifyReference(orderReference string, tx Transaction) error {
	if tx.MerchantReference != orderReference || orderReference == "" {
		return &ReferenceMismatchError{
			TransactionID:        tx.ID,
			OrderReference:       orderReference,
			TransactionReference: tx.MerchantReference,
		}
	}
	return nil
}

// AmountMismatchError is returned when a transaction does not cover the
// order it is applied to.
type AmountMismatchError struct {
	TransactionID       string
	OrderAmount         int64
	OrderCurrency       string
	TransactionAmount   int64
	TransactionCurrency string
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("transaction %s is %d %s, order total is %d %s",
		e.TransactionID, e.TransactionAmount, e.TransactionCurrency, e.OrderAmount, e.OrderCurrency)
}

// VerifyAmount checks that tx was authorized for exactly amount minor units
// in currency.
func VerifyAmount(amount int64, currency string, tx Transaction) error {
	if tx.Amount != amount || !strings.EqualFold(strings.TrimSpace(tx.Currency), strings.TrimSpace(currency)) {
		return &AmountMismatchError{
			TransactionID:       tx.ID,
			OrderAmount:         amount,
			OrderCurrency:       currency,
			TransactionAmount:   tx.Amount,
			TransactionCurrency: tx.Currency,
		}
	}
	return nil
}

// IsTransportError reports whether err is a retryable transport failure.
func IsTransportError(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}
