package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"storefront-checkout-backend/internal/models"
	"storefront-checkout-backend/internal/payments"
	"storefront-checkout-backend/internal/repository"
	"storefront-checkout-backend/internal/snapshot"
	"storefront-checkout-backend/pkg/logger"
	"storefront-checkout-backend/pkg/validator"
)

const defaultSessionTTL = 2 * time.Hour

type SessionServiceConfig struct {
	ProfileID        string
	ReturnURL        string
	CallbackURL      string
	TTL              time.Duration
	ShippingAsOption bool
	Now              func() time.Time
}

// SessionService owns the remote session of each checkout attempt. Records
// are keyed by the customer's browsing session key.
type SessionService struct {
	provider payments.Provider
	store    repository.CheckoutSessionStore
	meta     repository.OrderMetaRepository
	config   SessionServiceConfig
}

func NewSessionService(provider payments.Provider, store repository.CheckoutSessionStore, meta repository.OrderMetaRepository, cfg SessionServiceConfig) *SessionService {
	if provider == nil || store == nil {
		return nil
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultSessionTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	initPaymentMetrics()
	return &SessionService{provider: provider, store: store, meta: meta, config: cfg}
}

func (s *SessionService) options() snapshot.Options {
	return snapshot.Options{ShippingAsOption: s.config.ShippingAsOption}
}

// Create starts a checkout attempt, or reuses the live one for the same
// merchant reference. The returned flag reports whether the provider was
// sent new content.
func (s *SessionService) Create(ctx context.Context, key string, cart snapshot.Context, customer *payments.Customer) (*models.CheckoutSession, bool, error) {
	if strings.TrimSpace(key) == "" {
		return nil, false, ErrMissingSessionKey
	}

	record, err := s.store.Get(key)
	if err != nil && !errors.Is(err, repository.ErrCheckoutSessionNotFound) {
		return nil, false, err
	}

	now := s.config.Now()
	if record != nil && !record.Expired(now) && (cart.Reference == "" || cart.Reference == record.MerchantReference) {
		cart.Reference = record.MerchantReference
		return s.push(ctx, record, cart)
	}

	if cart.Reference == "" {
		cart.Reference = uuid.NewString()
	}

	order := snapshot.Build(cart, s.options())
	result, err := s.provider.CreateSession(ctx, payments.SessionRequest{
		URL: payments.SessionURLs{
			ReturnURL:   s.config.ReturnURL,
			CallbackURL: s.config.CallbackURL,
		},
		Order:     order,
		ProfileID: s.config.ProfileID,
		Customer:  customer,
	})
	if err != nil {
		observeSession("create", "error")
		return nil, false, &SessionError{Op: "create", Message: err.Error(), Err: err}
	}
	if result.IsError {
		observeSession("create", "rejected")
		providerErr := result.Err("create_session")
		return nil, false, &SessionError{Op: "create", Message: result.Error.Message, Err: providerErr}
	}

	expiresAt := now.Add(s.config.TTL)
	if remote := result.Value.ExpiresAt; remote != nil && remote.Before(expiresAt) {
		expiresAt = *remote
	}

	record = &models.CheckoutSession{
		Key:               key,
		SessionID:         result.Value.ID,
		MerchantReference: cart.Reference,
		SnapshotHash:      snapshot.Hash(order),
		State:             models.CheckoutSessionCreated,
		ExpiresAt:         expiresAt,
		UpdatedAt:         now,
	}
	if err := s.save(record); err != nil {
		return nil, false, err
	}

	observeSession("create", "created")
	logger.FromContext(ctx).WithField("session_id", record.SessionID).Info("Checkout session created")
	return record, true, nil
}

// Update mirrors the current cart into the remote session. Unchanged
// content is not sent again.
func (s *SessionService) Update(ctx context.Context, key string, cart snapshot.Context) (*models.CheckoutSession, bool, error) {
	record, err := s.Current(key)
	if err != nil {
		return nil, false, err
	}
	cart.Reference = record.MerchantReference
	return s.push(ctx, record, cart)
}

func (s *SessionService) push(ctx context.Context, record *models.CheckoutSession, cart snapshot.Context) (*models.CheckoutSession, bool, error) {
	order := snapshot.Build(cart, s.options())
	hash := snapshot.Hash(order)
	if hash == record.SnapshotHash {
		if record.PendingUpdate {
			record.PendingUpdate = false
			if err := s.save(record); err != nil {
				return nil, false, err
			}
		}
		observeSession("update", "unchanged")
		return record, false, nil
	}

	result, err := s.provider.UpdateSession(ctx, record.SessionID, payments.SessionUpdate{Order: order}, true)
	if err != nil {
		observeSession("update", "error")
		return nil, false, &SessionError{Op: "update", Message: err.Error(), Err: err}
	}
	if result.IsError {
		providerErr := result.Err("update_session")
		var typed *payments.ProviderError
		if errors.As(providerErr, &typed) && typed.SessionLocked() {
			record.PendingUpdate = true
			if err := s.save(record); err != nil {
				return nil, false, err
			}
			observeSession("update", "deferred")
			logger.FromContext(ctx).WithField("session_id", record.SessionID).Info("Session locked, update deferred until unlock")
			return record, false, nil
		}
		observeSession("update", "rejected")
		return nil, false, &SessionError{Op: "update", Message: result.Error.Message, Err: providerErr}
	}

	record.SnapshotHash = hash
	record.PendingUpdate = false
	record.UpdatedAt = s.config.Now()
	if err := s.save(record); err != nil {
		return nil, false, err
	}
	observeSession("update", "updated")
	return record, true, nil
}

// Lock freezes the remote session before the customer is sent into the
// hosted payment UI. It returns only after the provider acknowledged.
func (s *SessionService) Lock(ctx context.Context, key string) (*models.CheckoutSession, error) {
	record, err := s.Current(key)
	if err != nil {
		return nil, err
	}

	result, err := s.provider.LockSession(ctx, record.SessionID)
	if err != nil {
		return nil, &SessionError{Op: "lock", Message: err.Error(), Err: err}
	}
	if result.IsError {
		providerErr := result.Err("lock_session")
		var typed *payments.ProviderError
		if !errors.As(providerErr, &typed) || !typed.SessionLocked() {
			return nil, &SessionError{Op: "lock", Message: result.Error.Message, Err: providerErr}
		}
		logger.FromContext(ctx).WithField("session_id", record.SessionID).Debug("Session already locked")
	}

	record.State = models.CheckoutSessionLocked
	record.UpdatedAt = s.config.Now()
	if err := s.save(record); err != nil {
		return nil, err
	}
	observeSession("lock", "locked")
	return record, nil
}

// Unlock releases the lock. When an update was deferred while locked and a
// cart is given, the cart is pushed right away.
func (s *SessionService) Unlock(ctx context.Context, key string, cart *snapshot.Context) (*models.CheckoutSession, bool, error) {
	record, err := s.Current(key)
	if err != nil {
		return nil, false, err
	}

	result, err := s.provider.UnlockSession(ctx, record.SessionID)
	if err != nil {
		return nil, false, &SessionError{Op: "unlock", Message: err.Error(), Err: err}
	}
	if result.IsError {
		return nil, false, &SessionError{Op: "unlock", Message: result.Error.Message, Err: result.Err("unlock_session")}
	}

	record.State = models.CheckoutSessionUnlocked
	record.UpdatedAt = s.config.Now()
	if err := s.save(record); err != nil {
		return nil, false, err
	}
	observeSession("unlock", "unlocked")

	if cart == nil {
		return record, false, nil
	}
	replay := *cart
	replay.Reference = record.MerchantReference
	return s.push(ctx, record, replay)
}

// BindOrder records that orderID was placed from the checkout attempt with
// reference. It is called by the storefront backend when it creates the
// order; Finalize only hands transactions over to bound orders.
func (s *SessionService) BindOrder(orderID uint, reference string) error {
	reference = strings.TrimSpace(reference)
	if orderID == 0 || !validator.ValidReference(reference) {
		return ErrInvalidReference
	}
	if s.meta == nil {
		return ErrOrderNotBound
	}

	current, err := s.meta.Get(orderID, models.MetaMerchantReference)
	switch {
	case err == nil && current.Value == reference:
		return nil
	case err == nil:
		return ErrOrderBound
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return err
	}

	owner, err := s.meta.FindOrderID(models.MetaMerchantReference, reference)
	if err == nil && owner != orderID {
		return ErrOrderBound
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return s.meta.Set(orderID, models.MetaMerchantReference, reference)
}

// Finalize hands the authorized transaction over to a local order: the order
// must be bound to this attempt, the transaction must carry this attempt's
// reference, and is then re-labelled with the order reference.
func (s *SessionService) Finalize(ctx context.Context, key string, orderID uint, transactionID string) (*models.CheckoutSession, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrMissingSessionKey
	}
	record, err := s.store.Get(key)
	if err != nil {
		if errors.Is(err, repository.ErrCheckoutSessionNotFound) {
			return nil, ErrCheckoutSessionNotFound
		}
		return nil, err
	}

	order := &models.Order{ID: orderID}
	orderReference := order.Reference()
	if record.State == models.CheckoutSessionSuperseded {
		if record.OrderID == orderID {
			return record, nil
		}
		return nil, ErrSessionSuperseded
	}
	if err := s.verifyBinding(orderID, record); err != nil {
		return nil, err
	}

	result, err := s.provider.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, &SessionError{Op: "finalize", Message: err.Error(), Err: err}
	}
	if result.IsError {
		return nil, &SessionError{Op: "finalize", Message: result.Error.Message, Err: result.Err("get_transaction")}
	}

	tx := result.Value
	if tx.MerchantReference != orderReference {
		if err := payments.VerifyReference(record.MerchantReference, tx); err != nil {
			logger.Warn("Transaction reference does not match checkout attempt", map[string]interface{}{
				"security":              true,
				"transaction_id":        transactionID,
				"transaction_reference": tx.MerchantReference,
				"attempt_reference":     record.MerchantReference,
				"order_id":              orderID,
			})
			return nil, err
		}

		updated, err := s.provider.UpdateTransactionReference(ctx, transactionID, orderReference)
		if err != nil {
			return nil, &SessionError{Op: "finalize", Message: err.Error(), Err: err}
		}
		if updated.IsError {
			return nil, &SessionError{Op: "finalize", Message: updated.Error.Message, Err: updated.Err("update_transaction")}
		}
	}

	if err := s.meta.Set(orderID, models.MetaSessionID, record.SessionID); err != nil {
		return nil, err
	}

	record.OrderID = orderID
	if err := s.supersede(record); err != nil {
		return nil, err
	}
	observeSession("finalize", "finalized")
	return record, nil
}

func (s *SessionService) verifyBinding(orderID uint, record *models.CheckoutSession) error {
	if s.meta == nil {
		return ErrOrderNotBound
	}
	bound, err := s.meta.Get(orderID, models.MetaMerchantReference)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if err != nil || bound.Value != record.MerchantReference {
		logger.Warn("Checkout attempt finalized against foreign order", map[string]interface{}{
			"security":          true,
			"order_id":          orderID,
			"attempt_reference": record.MerchantReference,
		})
		return ErrOrderNotBound
	}
	return nil
}

// OrderForReference resolves a merchant reference to a local order. Order
// references are the order id; attempt references resolve once Finalize
// has handed the transaction over to the bound order.
func (s *SessionService) OrderForReference(reference string) (uint, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return 0, ErrOrderNotFound
	}
	if id, err := strconv.ParseUint(reference, 10, 64); err == nil && id > 0 {
		return uint(id), nil
	}
	if s.meta == nil {
		return 0, ErrOrderNotFound
	}
	id, err := s.meta.FindOrderID(models.MetaMerchantReference, reference)
	if err == nil {
		_, err = s.meta.Get(id, models.MetaSessionID)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrOrderNotFound
		}
		return 0, err
	}
	return id, nil
}

// Supersede retires the attempt once a transaction exists; later cart
// changes start a new attempt.
func (s *SessionService) Supersede(key string) error {
	record, err := s.store.Get(key)
	if err != nil {
		if errors.Is(err, repository.ErrCheckoutSessionNotFound) {
			return nil
		}
		return err
	}
	return s.supersede(record)
}

func (s *SessionService) supersede(record *models.CheckoutSession) error {
	record.State = models.CheckoutSessionSuperseded
	record.PendingUpdate = false
	record.UpdatedAt = s.config.Now()
	return s.save(record)
}

// Current returns the live record for key.
func (s *SessionService) Current(key string) (*models.CheckoutSession, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrMissingSessionKey
	}
	record, err := s.store.Get(key)
	if err != nil {
		if errors.Is(err, repository.ErrCheckoutSessionNotFound) {
			return nil, ErrCheckoutSessionNotFound
		}
		return nil, err
	}
	if record.State == models.CheckoutSessionSuperseded {
		return nil, ErrSessionSuperseded
	}
	if record.Expired(s.config.Now()) {
		return nil, ErrCheckoutSessionNotFound
	}
	return record, nil
}

func (s *SessionService) save(record *models.CheckoutSession) error {
	ttl := record.ExpiresAt.Sub(s.config.Now())
	if ttl <= 0 {
		ttl = time.Minute
	}
	return s.store.Save(record, ttl)
}
