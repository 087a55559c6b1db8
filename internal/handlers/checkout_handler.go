package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"storefront-checkout-backend/internal/models"
	"storefront-checkout-backend/internal/service"
	"storefront-checkout-backend/internal/snapshot"
	"storefront-checkout-backend/pkg/logger"
)

// CheckoutSessionCookie holds the browsing session key the checkout attempt
// is stored under.
const CheckoutSessionCookie = "checkout_session_key"

type CheckoutHandler struct {
	sessions       *service.SessionService
	reconciliation *service.ReconciliationService
	cookieTTL      time.Duration
	cookieSecure   bool
}

func NewCheckoutHandler(sessions *service.SessionService, reconciliation *service.ReconciliationService, cookieTTL time.Duration, cookieSecure bool) *CheckoutHandler {
	if cookieTTL <= 0 {
		cookieTTL = 2 * time.Hour
	}
	return &CheckoutHandler{
		sessions:       sessions,
		reconciliation: reconciliation,
		cookieTTL:      cookieTTL,
		cookieSecure:   cookieSecure,
	}
}

func (h *CheckoutHandler) sessionKey(c *gin.Context) string {
	if key, err := c.Cookie(CheckoutSessionCookie); err == nil {
		return strings.TrimSpace(key)
	}
	return ""
}

func (h *CheckoutHandler) ensureSessionKey(c *gin.Context) string {
	key := h.sessionKey(c)
	if key == "" {
		key = uuid.NewString()
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CheckoutSessionCookie, key, int(h.cookieTTL.Seconds()), "/", "", h.cookieSecure, true)
	return key
}

func sessionResponse(record *models.CheckoutSession, updated bool) models.CheckoutSessionResponse {
	return models.CheckoutSessionResponse{
		SessionID:         record.SessionID,
		MerchantReference: record.MerchantReference,
		State:             record.State,
		ExpiresAt:         record.ExpiresAt,
		Updated:           updated,
		PendingUpdate:     record.PendingUpdate,
	}
}

// Create starts or reuses the checkout attempt for the posted cart.
func (h *CheckoutHandler) Create(c *gin.Context) {
	if h.sessions == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Payments are not configured"})
		return
	}

	var req models.CartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	key := h.ensureSessionKey(c)
	record, updated, err := h.sessions.Create(c.Request.Context(), key, req.Context(), req.Customer())
	if err != nil {
		writePaymentError(c, err, "Failed to create checkout session", nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": sessionResponse(record, updated)})
}

func (h *CheckoutHandler) Current(c *gin.Context) {
	if h.sessions == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Payments are not configured"})
		return
	}

	record, err := h.sessions.Current(h.sessionKey(c))
	if err != nil {
		writePaymentError(c, err, "Failed to load checkout session", nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": sessionResponse(record, false)})
}

// Update mirrors a cart change (quantities, shipping, coupons) into the
// live session.
func (h *CheckoutHandler) Update(c *gin.Context) {
	if h.sessions == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Payments are not configured"})
		return
	}

	var req models.CartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, updated, err := h.sessions.Update(c.Request.Context(), h.sessionKey(c), req.Context())
	if err != nil {
		writePaymentError(c, err, "Failed to update checkout session", nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": sessionResponse(record, updated)})
}

// Lock answers only after the provider acknowledged the lock, so the
// storefront can submit the order once this returns.
func (h *CheckoutHandler) Lock(c *gin.Context) {
	if h.sessions == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Payments are not configured"})
		return
	}

	record, err := h.sessions.Lock(c.Request.Context(), h.sessionKey(c))
	if err != nil {
		writePaymentError(c, err, "Failed to lock checkout session", nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": sessionResponse(record, false)})
}

// Unlock accepts an optional cart body which is pushed after unlocking.
func (h *CheckoutHandler) Unlock(c *gin.Context) {
	if h.sessions == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Payments are not configured"})
		return
	}

	var cart *snapshot.Context
	if c.Request.ContentLength > 0 {
		var req models.CartRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		current := req.Context()
		cart = &current
	}

	record, updated, err := h.sessions.Unlock(c.Request.Context(), h.sessionKey(c), cart)
	if err != nil {
		writePaymentError(c, err, "Failed to unlock checkout session", nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": sessionResponse(record, updated)})
}

// Finalize binds the authorized transaction to the order created by the
// storefront and confirms the payment.
func (h *CheckoutHandler) Finalize(c *gin.Context) {
	if h.sessions == nil || h.reconciliation == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Payments are not configured"})
		return
	}

	var req models.FinalizeCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fields := map[string]interface{}{"order_id": req.OrderID, "transaction_id": req.TransactionID}
	record, err := h.sessions.Finalize(c.Request.Context(), h.sessionKey(c), req.OrderID, req.TransactionID)
	if err != nil {
		writePaymentError(c, err, "Failed to finalize checkout session", fields)
		return
	}

	outcome, err := h.reconciliation.Confirm(c.Request.Context(), req.OrderID, req.TransactionID)
	if err != nil {
		writePaymentError(c, err, "Failed to confirm payment", fields)
		return
	}

	logger.Info("Checkout finalized", map[string]interface{}{
		"order_id":       req.OrderID,
		"transaction_id": req.TransactionID,
		"outcome":        outcome,
	})
	c.JSON(http.StatusOK, gin.H{
		"session": sessionResponse(record, false),
		"outcome": outcome,
	})
}

// BindOrder is called by the storefront backend after it placed an order
// for a checkout attempt. Only bound orders can be finalized.
func (h *CheckoutHandler) BindOrder(c *gin.Context) {
	if h.sessions == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Payments are not configured"})
		return
	}
	id, ok := parseOrderID(c)
	if !ok {
		return
	}

	var req models.BindOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.sessions.BindOrder(id, req.MerchantReference); err != nil {
		writePaymentError(c, err, "Failed to bind order to checkout attempt", map[string]interface{}{"order_id": id})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": id, "merchant_reference": req.MerchantReference})
}
