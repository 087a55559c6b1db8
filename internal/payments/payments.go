package payments

import (
	"context"
	"time"
)

// ItemType classifies an order line sent to the provider.
type ItemType string

const (
	ItemTypeProduct  ItemType = "product"
	ItemTypeFee      ItemType = "fee"
	ItemTypeShipping ItemType = "shipping"
	ItemTypeGiftCard ItemType = "gift_card"
	ItemTypeCoupon   ItemType = "coupon"
	ItemTypeRounding ItemType = "rounding"
)

// LineItem describes one order line in minor currency units. LineID must be
// identical between session creation and later capture/refund calls for the
// same goods; the provider correlates partial operations through it.
type LineItem struct {
	ID          string   `json:"id"`
	LineID      string   `json:"line_id"`
	Description string   `json:"description"`
	Quantity    int      `json:"quantity"`
	Amount      int64    `json:"amount"`
	VatAmount   int64    `json:"vat_amount"`
	Vat         int64    `json:"vat"`
	Type        ItemType `json:"type,omitempty"`
}

// ShippingOption is the selected shipping when it is sent outside the items.
type ShippingOption struct {
	ID                string `json:"id"`
	LineID            string `json:"line_id"`
	Title             string `json:"title"`
	Amount            int64  `json:"amount"`
	VatAmount         int64  `json:"vat_amount"`
	Vat               int64  `json:"vat"`
	Operator          string `json:"operator,omitempty"`
	OperatorProductID string `json:"operator_product_id,omitempty"`
}

// Order is the provider's view of a cart or order.
type Order struct {
	Amount            int64           `json:"amount"`
	Currency          string          `json:"currency"`
	MerchantReference string          `json:"merchant_reference"`
	VatAmount         int64           `json:"vat_amount"`
	Items             []LineItem      `json:"items,omitempty"`
	ShippingOption    *ShippingOption `json:"shipping_option,omitempty"`
}

// ItemsTotal sums the amounts of all items.
func (o Order) ItemsTotal() int64 {
	var total int64
	for _, item := range o.Items {
		total += item.Amount
	}
	return total
}

// Customer carries optional customer data prefilled in the hosted checkout.
type Customer struct {
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// SessionURLs are the return (browser) and callback (server) URLs.
type SessionURLs struct {
	ReturnURL   string `json:"return_url"`
	CallbackURL string `json:"callback_url,omitempty"`
}

// SessionRequest is the body of a session create call.
type SessionRequest struct {
	URL       SessionURLs `json:"url"`
	Order     Order       `json:"order"`
	ProfileID string      `json:"profile_id"`
	Customer  *Customer   `json:"customer,omitempty"`
}

// SessionUpdate is the body of a session update call.
type SessionUpdate struct {
	Order Order `json:"order"`
}

// SessionStatus is derived from the remote session fields.
type SessionStatus string

const (
	SessionInitiated  SessionStatus = "initiated"
	SessionAuthorized SessionStatus = "authorized"
	SessionExpired    SessionStatus = "expired"
)

// Session is the remote checkout session.
type Session struct {
	ID            string     `json:"id"`
	Order         Order      `json:"order"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	TransactionID string     `json:"transaction_id,omitempty"`
	Locked        bool       `json:"locked,omitempty"`
	CancelledAt   *time.Time `json:"cancelled_at,omitempty"`
}

// Status reports whether the session is still usable at now.
func (s Session) Status(now time.Time) SessionStatus {
	switch {
	case s.TransactionID != "":
		return SessionAuthorized
	case s.CancelledAt != nil:
		return SessionExpired
	case s.ExpiresAt != nil && !now.Before(*s.ExpiresAt):
		return SessionExpired
	default:
		return SessionInitiated
	}
}

// TransactionStatus values reported by the provider.
type TransactionStatus string

const (
	TransactionAuthorized        TransactionStatus = "AUTHORIZED"
	TransactionCaptured          TransactionStatus = "CAPTURED"
	TransactionPartiallyCaptured TransactionStatus = "PARTIALLY_CAPTURED"
	TransactionPartiallyRefunded TransactionStatus = "PARTIALLY_REFUNDED"
	TransactionRefunded          TransactionStatus = "REFUNDED"
	TransactionVoided            TransactionStatus = "AUTHORIZATION_VOIDED"
	TransactionOnHold            TransactionStatus = "ON_HOLD"
	TransactionFailed            TransactionStatus = "FAILED"
)

// IsCaptured reports whether money has been captured, including captures
// that were later refunded.
func (s TransactionStatus) IsCaptured() bool {
	switch s {
	case TransactionCaptured, TransactionPartiallyRefunded, TransactionRefunded:
		return true
	}
	return false
}

// Transaction is the remote record of an authorized payment.
type Transaction struct {
	ID                string            `json:"id"`
	MerchantReference string            `json:"merchant_reference"`
	Amount            int64             `json:"amount"`
	Currency          string            `json:"currency"`
	Status            TransactionStatus `json:"status"`
	SessionID         string            `json:"session_id,omitempty"`
	Items             []LineItem        `json:"items,omitempty"`
	CreatedAt         *time.Time        `json:"created_at,omitempty"`
}

// CaptureRequest captures an authorization. Amount must equal the sum of
// the items.
type CaptureRequest struct {
	Amount           int64      `json:"amount"`
	CaptureReference string     `json:"capture_reference"`
	Items            []LineItem `json:"items,omitempty"`
}

// RefundRequest refunds a captured transaction.
type RefundRequest struct {
	Amount          int64      `json:"amount"`
	Reason          string     `json:"reason,omitempty"`
	RefundReference string     `json:"refund_reference"`
	Items           []LineItem `json:"items,omitempty"`
}

// ErrorDetail is the normalized provider error.
type ErrorDetail struct {
	Code     string   `json:"code,omitempty"`
	Message  string   `json:"message"`
	Messages []string `json:"messages,omitempty"`
}

// Result is the normalized outcome of a provider call. Business errors
// (non-2xx with a body) are reported here rather than as Go errors.
type Result[T any] struct {
	IsError bool
	Code    int
	Value   T
	Error   *ErrorDetail
}

// Err converts a business error result into a *ProviderError.
func (r *Result[T]) Err(op string) error {
	if r == nil || !r.IsError {
		return nil
	}
	message := ""
	code := ""
	if r.Error != nil {
		message = r.Error.Message
		code = r.Error.Code
	}
	return &ProviderError{Op: op, Status: r.Code, Code: code, Message: message}
}

// SessionProvider covers the remote session lifecycle.
type SessionProvider interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Result[Session], error)
	GetSession(ctx context.Context, sessionID string) (*Result[Session], error)
	UpdateSession(ctx context.Context, sessionID string, req SessionUpdate, withoutLock bool) (*Result[Session], error)
	LockSession(ctx context.Context, sessionID string) (*Result[Session], error)
	UnlockSession(ctx context.Context, sessionID string) (*Result[Session], error)
}

// TransactionProvider covers operations on authorized transactions.
type TransactionProvider interface {
	GetTransaction(ctx context.Context, transactionID string) (*Result[Transaction], error)
	CaptureTransaction(ctx context.Context, transactionID string, req CaptureRequest) (*Result[Transaction], error)
	VoidTransaction(ctx context.Context, transactionID string) (*Result[Transaction], error)
	RefundTransaction(ctx context.Context, transactionID string, req RefundRequest) (*Result[Transaction], error)
	UpdateTransactionReference(ctx context.Context, transactionID, merchantReference string) (*Result[Transaction], error)
}

// Provider is the full client surface used by the services.
type Provider interface {
	SessionProvider
	TransactionProvider
}
