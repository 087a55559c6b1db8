// Package events publishes payment state changes for downstream consumers
// (fulfilment, accounting).
package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	TypePaymentConfirmed = "PaymentConfirmed"
	TypePaymentOnHold    = "PaymentOnHold"
	TypePaymentCaptured  = "PaymentCaptured"
	TypePaymentCanceled  = "PaymentCanceled"
	TypePaymentRefunded  = "PaymentRefunded"

	envelopeVersion = 1
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// PaymentEvent is the payload of every payment event.
type PaymentEvent struct {
	Type          string `json:"-"`
	OrderID       uint   `json:"order_id"`
	TransactionID string `json:"transaction_id,omitempty"`
	PaymentState  string `json:"payment_state"`
	OrderStatus   string `json:"order_status,omitempty"`
	Amount        int64  `json:"amount,omitempty"`
	Currency      string `json:"currency,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// PartitionKey keeps all events of one order in order.
func PartitionKey(orderID uint) []byte {
	return []byte(strconv.FormatUint(uint64(orderID), 10))
}

// Wrap builds the envelope for event.
func Wrap(producer string, event PaymentEvent, now time.Time) (Envelope, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     event.Type,
		EventVersion:  envelopeVersion,
		OccurredAt:    now.UTC(),
		Producer:      producer,
		CorrelationID: strconv.FormatUint(uint64(event.OrderID), 10),
		Payload:       payload,
	}, nil
}

// Publisher receives payment events after a local transition was applied.
type Publisher interface {
	Publish(ctx context.Context, event PaymentEvent) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, PaymentEvent) error { return nil }
