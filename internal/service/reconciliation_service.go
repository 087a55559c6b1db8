package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"storefront-checkout-backend/internal/events"
	"storefront-checkout-backend/internal/models"
	"storefront-checkout-backend/internal/payments"
	"storefront-checkout-backend/internal/repository"
	"storefront-checkout-backend/internal/snapshot"
	"storefront-checkout-backend/pkg/lang"
	"storefront-checkout-backend/pkg/logger"
	"storefront-checkout-backend/pkg/validator"
)

// Outcome describes what a reconciliation operation did.
type Outcome string

const (
	// OutcomeApplied means the provider was called and the local order changed.
	OutcomeApplied Outcome = "applied"
	// OutcomeMirrored means the local order was aligned with the remote
	// status without a mutating remote call.
	OutcomeMirrored Outcome = "mirrored"
	// OutcomeNoop means nothing had to be done.
	OutcomeNoop Outcome = "noop"
	// OutcomeOnHold means the order was put on hold for an operator.
	OutcomeOnHold Outcome = "on_hold"
)

// EventKind enumerates everything that can drive the order state machine.
type EventKind string

const (
	EventAuthorized      EventKind = "authorized"
	EventCaptureReported EventKind = "capture_reported"
	EventRefundReported  EventKind = "refund_reported"
	EventVoidReported    EventKind = "void_reported"
	EventStatusCompleted EventKind = "status_completed"
	EventStatusCancelled EventKind = "status_cancelled"
	EventStatusRefunded  EventKind = "status_refunded"
)

type Event struct {
	Kind          EventKind
	OrderID       uint
	TransactionID string
	RefundID      uint
	Reason        string
}

type ReconciliationService struct {
	orders    repository.OrderRepository
	provider  payments.TransactionProvider
	publisher events.Publisher
	catalog   *lang.Catalog
	now       func() time.Time
}

func NewReconciliationService(orders repository.OrderRepository, provider payments.TransactionProvider, publisher events.Publisher, catalog *lang.Catalog) *ReconciliationService {
	if orders == nil || provider == nil {
		return nil
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if catalog == nil {
		catalog = lang.NewCatalog()
	}
	initPaymentMetrics()
	return &ReconciliationService{
		orders:    orders,
		provider:  provider,
		publisher: publisher,
		catalog:   catalog,
		now:       time.Now,
	}
}

// SetClock overrides the time source.
func (s *ReconciliationService) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Confirm applies an authorization to the order. It is safe to call for
// every delivery of the same callback.
func (s *ReconciliationService) Confirm(ctx context.Context, orderID uint, transactionID string) (outcome Outcome, err error) {
	defer func() { observeReconciliation("confirm", outcome, err) }()

	order, err := s.loadOrder(orderID)
	if err != nil {
		return "", err
	}

	tx, err := s.fetchTransaction(ctx, order, transactionID)
	if err != nil {
		return "", err
	}
	if err := payments.VerifyAmount(snapshot.MinorUnits(order.Total), order.Currency, *tx); err != nil {
		logger.Warn("Payment transaction does not cover order total", map[string]interface{}{
			"security":             true,
			"order_id":             order.ID,
			"transaction_id":       tx.ID,
			"order_amount":         snapshot.MinorUnits(order.Total),
			"order_currency":       order.Currency,
			"transaction_amount":   tx.Amount,
			"transaction_currency": tx.Currency,
		})
		return "", err
	}

	switch {
	case tx.Status == payments.TransactionOnHold:
		if order.DatePaid != nil || (order.TransactionID == tx.ID && order.Status == models.OrderStatusManualReview) {
			return OutcomeNoop, nil
		}
		held, err := s.orders.HoldUnpaid(order.ID, tx.ID, models.OrderStatusManualReview)
		if err != nil {
			return "", err
		}
		if !held {
			return OutcomeNoop, nil
		}
		order.TransactionID = tx.ID
		s.noteOnce(order.ID, fmt.Sprintf("Payment %s is held for manual review by the payment provider.", tx.ID))
		s.publish(ctx, order, events.TypePaymentOnHold, models.OrderStatusManualReview, "")
		return OutcomeOnHold, nil

	case tx.Status == payments.TransactionAuthorized || tx.Status == payments.TransactionPartiallyCaptured || tx.Status.IsCaptured():
		applied, err := s.orders.MarkPaid(order.ID, tx.ID, models.OrderStatusProcessing, s.now())
		if err != nil {
			return "", err
		}
		if !applied {
			return OutcomeNoop, nil
		}
		order.TransactionID = tx.ID
		order.Status = models.OrderStatusProcessing
		s.noteOnce(order.ID, fmt.Sprintf("Payment authorized. Transaction ID: %s", tx.ID))
		if tx.Status.IsCaptured() {
			if _, err := s.transition(ctx, order, models.PaymentStateCaptured, events.TypePaymentCaptured); err != nil {
				return "", err
			}
		}
		s.publish(ctx, order, events.TypePaymentConfirmed, models.OrderStatusProcessing, "")
		return OutcomeApplied, nil

	default:
		return "", fmt.Errorf("%w: transaction %s has status %s", payments.ErrNotAuthorized, tx.ID, tx.Status)
	}
}

// Capture charges the authorization. Already captured or canceled orders
// are left alone.
func (s *ReconciliationService) Capture(ctx context.Context, orderID uint) (outcome Outcome, err error) {
	defer func() { observeReconciliation("capture", outcome, err) }()

	order, err := s.loadOrder(orderID)
	if err != nil {
		return "", err
	}

	switch {
	case order.PaymentState.IsCaptured():
		s.noteOnce(order.ID, "Payment is already captured; capture skipped.")
		return OutcomeNoop, nil
	case order.PaymentState.IsCanceled():
		s.noteOnce(order.ID, "Payment was canceled and can no longer be captured.")
		return OutcomeNoop, nil
	case order.TransactionID == "":
		return "", payments.ErrNoTransaction
	}

	tx, err := s.fetchTransaction(ctx, order, order.TransactionID)
	if err != nil {
		return s.remoteFailure(ctx, order, "capture", err)
	}

	switch tx.Status {
	case payments.TransactionCaptured, payments.TransactionPartiallyRefunded, payments.TransactionRefunded:
		s.noteOnce(order.ID, "Payment was already captured at the payment provider.")
		return s.mirror(ctx, order, models.PaymentStateCaptured, events.TypePaymentCaptured)
	case payments.TransactionVoided:
		s.noteOnce(order.ID, "Payment authorization was voided at the payment provider; capture is not possible.")
		return s.mirror(ctx, order, models.PaymentStateCanceled, events.TypePaymentCanceled)
	case payments.TransactionPartiallyCaptured, payments.TransactionOnHold:
		s.hold(order, fmt.Sprintf("Payment is %s at the payment provider and must be captured there.", tx.Status))
		return OutcomeOnHold, fmt.Errorf("%w: transaction status %s", payments.ErrStateConflict, tx.Status)
	case payments.TransactionAuthorized:
	default:
		s.hold(order, fmt.Sprintf("Payment has status %s and cannot be captured.", tx.Status))
		return OutcomeOnHold, fmt.Errorf("%w: transaction status %s", payments.ErrNotAuthorized, tx.Status)
	}

	snap := snapshot.Build(OrderContext(order), snapshot.Options{})
	request := payments.CaptureRequest{
		Amount:           snap.ItemsTotal(),
		CaptureReference: order.Reference(),
		Items:            snap.Items,
	}

	result, err := s.provider.CaptureTransaction(ctx, tx.ID, request)
	if err != nil {
		return s.remoteFailure(ctx, order, "capture", err)
	}
	if result.IsError {
		return s.remoteFailure(ctx, order, "capture", result.Err("capture_transaction"))
	}

	applied, err := s.transition(ctx, order, models.PaymentStateCaptured, events.TypePaymentCaptured)
	if err != nil {
		return "", err
	}
	if !applied {
		return OutcomeNoop, nil
	}
	s.noteOnce(order.ID, fmt.Sprintf("Payment captured: %s %s.", formatMinor(request.Amount), order.Currency))
	return OutcomeApplied, nil
}

// Cancel voids the authorization. A captured payment cannot be canceled;
// the order is left unchanged.
func (s *ReconciliationService) Cancel(ctx context.Context, orderID uint) (outcome Outcome, err error) {
	defer func() { observeReconciliation("cancel", outcome, err) }()

	order, err := s.loadOrder(orderID)
	if err != nil {
		return "", err
	}

	switch {
	case order.PaymentState.IsCaptured():
		s.noteOnce(order.ID, "Payment is captured and cannot be canceled; refund it instead.")
		return OutcomeNoop, nil
	case order.PaymentState.IsCanceled():
		return OutcomeNoop, nil
	case order.TransactionID == "":
		return OutcomeNoop, nil
	}

	tx, err := s.fetchTransaction(ctx, order, order.TransactionID)
	if err != nil {
		return s.remoteFailure(ctx, order, "cancel", err)
	}

	switch tx.Status {
	case payments.TransactionCaptured, payments.TransactionPartiallyRefunded, payments.TransactionRefunded:
		s.noteOnce(order.ID, "Payment was already captured at the payment provider and cannot be canceled.")
		return s.mirror(ctx, order, models.PaymentStateCaptured, events.TypePaymentCaptured)
	case payments.TransactionVoided, payments.TransactionFailed:
		return s.mirror(ctx, order, models.PaymentStateCanceled, events.TypePaymentCanceled)
	case payments.TransactionPartiallyCaptured:
		s.hold(order, "Payment is partially captured and must be settled at the payment provider.")
		return OutcomeOnHold, fmt.Errorf("%w: transaction status %s", payments.ErrStateConflict, tx.Status)
	}

	result, err := s.provider.VoidTransaction(ctx, tx.ID)
	if err != nil {
		return s.remoteFailure(ctx, order, "cancel", err)
	}
	if result.IsError {
		return s.remoteFailure(ctx, order, "cancel", result.Err("void_transaction"))
	}

	applied, err := s.transition(ctx, order, models.PaymentStateCanceled, events.TypePaymentCanceled)
	if err != nil {
		return "", err
	}
	if !applied {
		return OutcomeNoop, nil
	}
	s.noteOnce(order.ID, "Payment authorization canceled.")
	return OutcomeApplied, nil
}

// Refund sends one refund record to the provider. Orders whose payment was
// never captured fail with ErrRefundNotSupported before any remote call.
func (s *ReconciliationService) Refund(ctx context.Context, orderID, refundID uint, reason string) (outcome Outcome, err error) {
	defer func() { observeReconciliation("refund", outcome, err) }()

	order, err := s.loadOrder(orderID)
	if err != nil {
		return "", err
	}

	if !order.PaymentState.IsCaptured() {
		s.noteOnce(order.ID, "Refund rejected: the payment is not captured. Cancel the order instead.")
		return "", payments.ErrRefundNotSupported
	}
	if order.TransactionID == "" {
		return "", payments.ErrNoTransaction
	}

	var refund *models.OrderRefund
	if refundID == 0 {
		refund, err = s.orders.PendingRefund(order.ID)
	} else {
		refund, err = s.orders.GetRefund(order.ID, refundID)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrRefundNotFound
		}
		return "", err
	}
	if refund.ProcessedAt != nil {
		return OutcomeNoop, nil
	}

	tx, err := s.fetchTransaction(ctx, order, order.TransactionID)
	if err != nil {
		return s.remoteFailure(ctx, order, "refund", err)
	}

	snap := snapshot.BuildRefund(RefundContext(order, refund, reason))
	request := payments.RefundRequest{
		Amount:          snap.Amount,
		Reason:          validator.SanitizeString(firstNonBlank(reason, refund.Reason)),
		RefundReference: order.Reference(),
		Items:           snap.Items,
	}

	result, err := s.provider.RefundTransaction(ctx, tx.ID, request)
	if err != nil {
		return s.remoteFailure(ctx, order, "refund", err)
	}
	if result.IsError {
		return s.remoteFailure(ctx, order, "refund", result.Err("refund_transaction"))
	}

	processed, err := s.orders.MarkRefundProcessed(refund.ID, s.now())
	if err != nil {
		return "", err
	}
	if !processed {
		return OutcomeNoop, nil
	}
	s.noteOnce(order.ID, fmt.Sprintf("Refunded %s %s (refund #%d).", formatMinor(request.Amount), order.Currency, refund.ID))

	if result.Value.Status == payments.TransactionRefunded {
		if _, err := s.transition(ctx, order, models.PaymentStateRefunded, events.TypePaymentRefunded); err != nil {
			return "", err
		}
	} else {
		s.publish(ctx, order, events.TypePaymentRefunded, order.Status, request.Reason)
	}
	return OutcomeApplied, nil
}

// IsCaptured prefers the live transaction status and falls back to the
// local state when the provider is unreachable.
func (s *ReconciliationService) IsCaptured(ctx context.Context, orderID uint) (bool, error) {
	order, err := s.loadOrder(orderID)
	if err != nil {
		return false, err
	}
	if status, ok := s.liveStatus(ctx, order); ok {
		return status.IsCaptured(), nil
	}
	return order.PaymentState.IsCaptured(), nil
}

// IsCanceled prefers the live transaction status and falls back to the
// local state when the provider is unreachable.
func (s *ReconciliationService) IsCanceled(ctx context.Context, orderID uint) (bool, error) {
	order, err := s.loadOrder(orderID)
	if err != nil {
		return false, err
	}
	if status, ok := s.liveStatus(ctx, order); ok {
		return status == payments.TransactionVoided, nil
	}
	return order.PaymentState.IsCanceled(), nil
}

// PaymentStatus summarizes local and remote payment state for operators.
func (s *ReconciliationService) PaymentStatus(ctx context.Context, orderID uint) (*models.PaymentStatusResponse, error) {
	order, err := s.loadOrder(orderID)
	if err != nil {
		return nil, err
	}

	captured, err := s.IsCaptured(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	canceled, err := s.IsCanceled(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	response := &models.PaymentStatusResponse{
		OrderID:       order.ID,
		Status:        order.Status,
		PaymentState:  order.PaymentState,
		TransactionID: order.TransactionID,
		Captured:      captured,
		Canceled:      canceled,
	}
	if status, ok := s.liveStatus(ctx, order); ok {
		response.RemoteStatus = string(status)
	}
	return response, nil
}

// ChangeStatus applies a back-office status change and runs the payment
// operation it implies. Payment failures end up as order notes and never
// block the status change.
func (s *ReconciliationService) ChangeStatus(ctx context.Context, orderID uint, status models.OrderStatus) error {
	if !models.ValidOrderStatus(status) {
		return ErrInvalidOrderStatus
	}
	if _, err := s.loadOrder(orderID); err != nil {
		return err
	}
	if err := s.orders.UpdateStatus(orderID, status); err != nil {
		return err
	}

	switch status {
	case models.OrderStatusCompleted:
		return s.Dispatch(ctx, Event{Kind: EventStatusCompleted, OrderID: orderID})
	case models.OrderStatusCancelled:
		return s.Dispatch(ctx, Event{Kind: EventStatusCancelled, OrderID: orderID})
	case models.OrderStatusRefunded:
		return s.Dispatch(ctx, Event{Kind: EventStatusRefunded, OrderID: orderID})
	}
	return nil
}

// Dispatch routes an event to the matching operation.
func (s *ReconciliationService) Dispatch(ctx context.Context, event Event) error {
	var err error
	switch event.Kind {
	case EventAuthorized:
		_, err = s.Confirm(ctx, event.OrderID, event.TransactionID)
		return err
	case EventCaptureReported:
		_, err = s.reported(ctx, event, models.PaymentStateCaptured)
		return err
	case EventVoidReported:
		_, err = s.reported(ctx, event, models.PaymentStateCanceled)
		return err
	case EventRefundReported:
		_, err = s.reported(ctx, event, models.PaymentStateRefunded)
		return err
	case EventStatusCompleted:
		_, err = s.Capture(ctx, event.OrderID)
	case EventStatusCancelled:
		_, err = s.Cancel(ctx, event.OrderID)
	case EventStatusRefunded:
		_, err = s.Refund(ctx, event.OrderID, event.RefundID, event.Reason)
	default:
		return fmt.Errorf("unknown payment event %q", event.Kind)
	}

	if err != nil {
		logger.FromContext(ctx).WithError(err).WithFields(map[string]interface{}{
			"order_id": event.OrderID,
			"event":    event.Kind,
		}).Warn("Payment operation for order status change failed")
	}
	return nil
}

// reported mirrors an operation performed in the provider's back office.
func (s *ReconciliationService) reported(ctx context.Context, event Event, target models.PaymentState) (Outcome, error) {
	order, err := s.loadOrder(event.OrderID)
	if err != nil {
		return "", err
	}

	transactionID := order.TransactionID
	if transactionID == "" {
		transactionID = event.TransactionID
	}
	if transactionID == "" {
		return "", payments.ErrNoTransaction
	}

	tx, err := s.fetchTransaction(ctx, order, transactionID)
	if err != nil {
		return "", err
	}

	switch target {
	case models.PaymentStateCaptured:
		if !tx.Status.IsCaptured() {
			return OutcomeNoop, nil
		}
		s.noteOnce(order.ID, "Payment captured at the payment provider.")
		return s.mirror(ctx, order, models.PaymentStateCaptured, events.TypePaymentCaptured)
	case models.PaymentStateCanceled:
		if tx.Status != payments.TransactionVoided {
			return OutcomeNoop, nil
		}
		s.noteOnce(order.ID, "Payment authorization voided at the payment provider.")
		return s.mirror(ctx, order, models.PaymentStateCanceled, events.TypePaymentCanceled)
	default:
		switch tx.Status {
		case payments.TransactionPartiallyRefunded:
			s.noteOnce(order.ID, "Payment partially refunded at the payment provider.")
			return s.mirror(ctx, order, models.PaymentStateCaptured, events.TypePaymentCaptured)
		case payments.TransactionRefunded:
			s.noteOnce(order.ID, "Payment refunded at the payment provider.")
			if _, err := s.mirror(ctx, order, models.PaymentStateCaptured, events.TypePaymentCaptured); err != nil {
				return "", err
			}
			return s.mirror(ctx, order, models.PaymentStateRefunded, events.TypePaymentRefunded)
		}
		return OutcomeNoop, nil
	}
}

// NotePaymentError records a failed or abandoned payment on the order in
// the customer's language. The transaction must belong to the order.
// Repeated deliveries add the note once.
func (s *ReconciliationService) NotePaymentError(ctx context.Context, orderID uint, transactionID, code, locale string) error {
	order, err := s.loadOrder(orderID)
	if err != nil {
		return err
	}
	if _, err := s.fetchTransaction(ctx, order, transactionID); err != nil {
		return err
	}
	if locale == "" {
		locale = order.Locale
	}

	var message string
	switch code {
	case "authorization":
		message = s.catalog.Message(locale, lang.MsgPaymentAuthorizationFailed)
	case "failed":
		message = s.catalog.Message(locale, lang.MsgPaymentFailed)
	case "cancelled", "canceled":
		message = s.catalog.Message(locale, lang.MsgPaymentCanceled)
	default:
		logger.FromContext(ctx).WithFields(map[string]interface{}{
			"order_id":   order.ID,
			"error_code": validator.SanitizeString(code),
		}).Info("Unrecognized payment error code")
		message = s.catalog.Message(locale, lang.MsgPaymentUnknownError)
	}

	s.noteOnce(order.ID, message)
	return nil
}

func (s *ReconciliationService) loadOrder(orderID uint) (*models.Order, error) {
	order, err := s.orders.GetByID(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

// fetchTransaction loads the transaction and checks that it belongs to
// order. A mismatch is logged as a security event and never corrected.
func (s *ReconciliationService) fetchTransaction(ctx context.Context, order *models.Order, transactionID string) (*payments.Transaction, error) {
	if transactionID == "" {
		return nil, payments.ErrNoTransaction
	}

	result, err := s.provider.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if result.IsError {
		return nil, result.Err("get_transaction")
	}

	tx := result.Value
	if tx.ID == "" {
		tx.ID = transactionID
	}
	if err := payments.VerifyReference(order.Reference(), tx); err != nil {
		logger.Warn("Payment transaction does not belong to order", map[string]interface{}{
			"security":              true,
			"order_id":              order.ID,
			"transaction_id":        transactionID,
			"transaction_reference": tx.MerchantReference,
		})
		return nil, err
	}
	return &tx, nil
}

func (s *ReconciliationService) liveStatus(ctx context.Context, order *models.Order) (payments.TransactionStatus, bool) {
	if order.TransactionID == "" {
		return "", false
	}
	tx, err := s.fetchTransaction(ctx, order, order.TransactionID)
	if err != nil {
		logger.FromContext(ctx).WithError(err).WithField("order_id", order.ID).Warn("Using local payment state, provider status unavailable")
		return "", false
	}
	return tx.Status, true
}

// remoteFailure records a failed provider call. Business errors put the
// order on hold with the provider's text; transport errors only add a note
// since the operation can be retried.
func (s *ReconciliationService) remoteFailure(ctx context.Context, order *models.Order, operation string, err error) (Outcome, error) {
	var mismatch *payments.ReferenceMismatchError
	if errors.As(err, &mismatch) {
		return "", err
	}

	var providerErr *payments.ProviderError
	if errors.As(err, &providerErr) {
		s.hold(order, fmt.Sprintf("Payment %s failed: %s", operation, validator.SanitizeString(providerErr.Message)))
		return OutcomeOnHold, err
	}

	logger.FromContext(ctx).WithError(err).WithFields(map[string]interface{}{
		"order_id":  order.ID,
		"operation": operation,
	}).Warn("Payment provider unavailable")
	s.noteOnce(order.ID, fmt.Sprintf("Payment %s could not reach the payment provider; try again later.", operation))
	return "", err
}

func (s *ReconciliationService) hold(order *models.Order, note string) {
	if err := s.orders.UpdateStatus(order.ID, models.OrderStatusOnHold); err != nil {
		logger.Error(err, "Failed to put order on hold", map[string]interface{}{"order_id": order.ID})
	}
	order.Status = models.OrderStatusOnHold
	s.noteOnce(order.ID, note)
}

// mirror aligns the local payment state with the remote one.
func (s *ReconciliationService) mirror(ctx context.Context, order *models.Order, target models.PaymentState, eventType string) (Outcome, error) {
	applied, err := s.transition(ctx, order, target, eventType)
	if err != nil {
		return "", err
	}
	if !applied {
		return OutcomeNoop, nil
	}
	return OutcomeMirrored, nil
}

// transition moves the payment state forward from its current value. Only
// the caller that wins the conditional update publishes the event.
func (s *ReconciliationService) transition(ctx context.Context, order *models.Order, target models.PaymentState, eventType string) (bool, error) {
	from := order.PaymentState
	if from == "" {
		from = models.PaymentStateNone
	}
	if from == target || !models.CanTransition(from, target) {
		return false, nil
	}

	applied, err := s.orders.TransitionPaymentState(order.ID, from, target)
	if err != nil {
		return false, err
	}
	if !applied {
		return false, nil
	}

	order.PaymentState = target
	s.publish(ctx, order, eventType, order.Status, "")
	return true, nil
}

func (s *ReconciliationService) publish(ctx context.Context, order *models.Order, eventType string, status models.OrderStatus, reason string) {
	event := events.PaymentEvent{
		Type:          eventType,
		OrderID:       order.ID,
		TransactionID: order.TransactionID,
		PaymentState:  string(order.PaymentState),
		OrderStatus:   string(status),
		Currency:      order.Currency,
		Reason:        reason,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.Error(err, "Failed to publish payment event", map[string]interface{}{
			"order_id": order.ID,
			"event":    eventType,
		})
	}
}

func (s *ReconciliationService) noteOnce(orderID uint, content string) {
	exists, err := s.orders.HasNote(orderID, content)
	if err != nil {
		logger.Error(err, "Failed to check order notes", map[string]interface{}{"order_id": orderID})
		return
	}
	if exists {
		return
	}
	if err := s.orders.AddNote(orderID, content); err != nil {
		logger.Error(err, "Failed to add order note", map[string]interface{}{"order_id": orderID})
	}
}

func formatMinor(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/100, amount%100)
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
