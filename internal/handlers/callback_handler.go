package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront-checkout-backend/internal/service"
	"storefront-checkout-backend/pkg/lang"
	"storefront-checkout-backend/pkg/logger"
)

// CallbackQuery is what the provider appends to the callback and return URLs.
type CallbackQuery struct {
	TransactionID     string `form:"transaction_id" binding:"omitempty,reference"`
	MerchantReference string `form:"merchant_reference" binding:"omitempty,reference"`
	Error             string `form:"error" binding:"max=64"`
	ReportEvent       string `form:"report_event" binding:"omitempty,oneof=CAPTURE REFUND VOID"`
	SessionID         string `form:"session_id" binding:"omitempty,reference"`
}

type CallbackHandler struct {
	sessions         *service.SessionService
	reconciliation   *service.ReconciliationService
	checkoutPageURL  string
	orderReceivedURL string
}

func NewCallbackHandler(sessions *service.SessionService, reconciliation *service.ReconciliationService, checkoutPageURL, orderReceivedURL string) *CallbackHandler {
	return &CallbackHandler{
		sessions:         sessions,
		reconciliation:   reconciliation,
		checkoutPageURL:  checkoutPageURL,
		orderReceivedURL: orderReceivedURL,
	}
}

func reportEventKind(value string) service.EventKind {
	switch value {
	case "CAPTURE":
		return service.EventCaptureReported
	case "REFUND":
		return service.EventRefundReported
	case "VOID":
		return service.EventVoidReported
	}
	return ""
}

func (h *CallbackHandler) resolveOrder(query CallbackQuery) (uint, error) {
	if h.sessions != nil {
		return h.sessions.OrderForReference(query.MerchantReference)
	}
	id, err := strconv.ParseUint(strings.TrimSpace(query.MerchantReference), 10, 64)
	if err != nil || id == 0 {
		return 0, service.ErrOrderNotFound
	}
	return uint(id), nil
}

// Callback is the server-to-server notification. Every branch is safe to
// receive repeatedly.
func (h *CallbackHandler) Callback(c *gin.Context) {
	if h.reconciliation == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Payments are not configured"})
		return
	}

	var query CallbackQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if query.Error != "" && query.TransactionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "transaction_id is required"})
		return
	}

	fields := map[string]interface{}{
		"transaction_id":     query.TransactionID,
		"merchant_reference": query.MerchantReference,
		"report_event":       query.ReportEvent,
	}

	orderID, err := h.resolveOrder(query)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) && query.Error == "" {
			// Not finalized yet; the storefront confirms on finalize.
			c.JSON(http.StatusAccepted, gin.H{"status": "pending"})
			return
		}
		writePaymentError(c, err, "Failed to resolve callback order", fields)
		return
	}
	fields["order_id"] = orderID

	switch {
	case query.Error != "":
		if err := h.reconciliation.NotePaymentError(c.Request.Context(), orderID, query.TransactionID, query.Error, requestLocale(c)); err != nil {
			writePaymentError(c, err, "Failed to record payment error", fields)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "noted"})

	case query.ReportEvent != "":
		event := service.Event{
			Kind:          reportEventKind(query.ReportEvent),
			OrderID:       orderID,
			TransactionID: query.TransactionID,
		}
		if err := h.reconciliation.Dispatch(c.Request.Context(), event); err != nil {
			writePaymentError(c, err, "Failed to apply reported payment event", fields)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "applied"})

	default:
		if query.TransactionID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "transaction_id is required"})
			return
		}
		outcome, err := h.reconciliation.Confirm(c.Request.Context(), orderID, query.TransactionID)
		if err != nil {
			writePaymentError(c, err, "Failed to confirm payment from callback", fields)
			return
		}
		logger.Info("Payment callback processed", map[string]interface{}{
			"order_id":       orderID,
			"transaction_id": query.TransactionID,
			"outcome":        outcome,
		})
		c.JSON(http.StatusOK, gin.H{"status": outcome})
	}
}

// Return handles the customer's browser coming back from the hosted payment
// page and redirects to the storefront.
func (h *CallbackHandler) Return(c *gin.Context) {
	var query CallbackQuery
	if err := c.ShouldBindQuery(&query); err != nil || h.reconciliation == nil {
		c.Redirect(http.StatusFound, h.checkoutURL(url.Values{"payment_error": {"invalid_request"}}))
		return
	}

	orderID, err := h.resolveOrder(query)
	if err != nil {
		// The storefront still has to create the order and finalize.
		values := url.Values{}
		if query.TransactionID != "" {
			values.Set("transaction_id", query.TransactionID)
		}
		if query.MerchantReference != "" {
			values.Set("merchant_reference", query.MerchantReference)
		}
		if query.Error != "" {
			values.Set("payment_error", query.Error)
		}
		c.Redirect(http.StatusFound, h.checkoutURL(values))
		return
	}

	if query.Error != "" {
		// Only errors tied to a transaction of this order are noted.
		if query.TransactionID != "" {
			if err := h.reconciliation.NotePaymentError(c.Request.Context(), orderID, query.TransactionID, query.Error, requestLocale(c)); err != nil {
				logger.FromContext(c.Request.Context()).WithError(err).WithField("order_id", orderID).Warn("Payment error on return not recorded")
			}
		}
		c.Redirect(http.StatusFound, h.checkoutURL(url.Values{"payment_error": {query.Error}}))
		return
	}

	if query.TransactionID != "" {
		if _, err := h.reconciliation.Confirm(c.Request.Context(), orderID, query.TransactionID); err != nil {
			logger.FromContext(c.Request.Context()).WithError(err).WithField("order_id", orderID).Warn("Payment confirmation on return failed")
			c.Redirect(http.StatusFound, h.checkoutURL(url.Values{"payment_error": {"confirmation"}}))
			return
		}
	}

	c.Redirect(http.StatusFound, withQuery(h.orderReceivedURL, url.Values{
		"order_id": {strconv.FormatUint(uint64(orderID), 10)},
	}))
}

// requestLocale is empty when the caller sent no language, so the order's
// own locale is used.
func requestLocale(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Accept-Language"))
	if header == "" {
		return ""
	}
	return lang.FromAcceptLanguage(header)
}

func (h *CallbackHandler) checkoutURL(values url.Values) string {
	return withQuery(h.checkoutPageURL, values)
}

func withQuery(base string, values url.Values) string {
	if len(values) == 0 {
		return base
	}
	separator := "?"
	if strings.Contains(base, "?") {
		separator = "&"
	}
	return base + separator + values.Encode()
}
