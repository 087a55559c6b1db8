package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"storefront-checkout-backend/internal/models"
	"storefront-checkout-backend/internal/service"
)

// OrderHandler exposes the back-office payment operations.
type OrderHandler struct {
	service *service.ReconciliationService
}

func NewOrderHandler(service *service.ReconciliationService) *OrderHandler {
	return &OrderHandler{service: service}
}

func parseOrderID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return 0, false
	}
	return uint(id), true
}

func (h *OrderHandler) Capture(c *gin.Context) {
	if h.service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Payments are not configured"})
		return
	}
	id, ok := parseOrderID(c)
	if !ok {
		return
	}

	outcome, err := h.service.Capture(c.Request.Context(), id)
	if err != nil {
		writePaymentError(c, err, "Failed to capture payment", map[string]interface{}{"order_id": id})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": id, "outcome": outcome})
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	if h.service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Payments are not configured"})
		return
	}
	id, ok := parseOrderID(c)
	if !ok {
		return
	}

	outcome, err := h.service.Cancel(c.Request.Context(), id)
	if err != nil {
		writePaymentError(c, err, "Failed to cancel payment", map[string]interface{}{"order_id": id})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": id, "outcome": outcome})
}

func (h *OrderHandler) Refund(c *gin.Context) {
	if h.service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Payments are not configured"})
		return
	}
	id, ok := parseOrderID(c)
	if !ok {
		return
	}

	var req models.RefundOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	outcome, err := h.service.Refund(c.Request.Context(), id, req.RefundID, req.Reason)
	if err != nil {
		writePaymentError(c, err, "Failed to refund payment", map[string]interface{}{
			"order_id":  id,
			"refund_id": req.RefundID,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": id, "refund_id": req.RefundID, "outcome": outcome})
}

// UpdateStatus changes the order status; payment failures triggered by the
// change are recorded as order notes and do not fail the request.
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	if h.service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Payments are not configured"})
		return
	}
	id, ok := parseOrderID(c)
	if !ok {
		return
	}

	var req models.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.ChangeStatus(c.Request.Context(), id, req.Status); err != nil {
		writePaymentError(c, err, "Failed to update order status", map[string]interface{}{"order_id": id})
		return
	}

	status, err := h.service.PaymentStatus(c.Request.Context(), id)
	if err != nil {
		writePaymentError(c, err, "Failed to load payment status", map[string]interface{}{"order_id": id})
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": status})
}

func (h *OrderHandler) PaymentStatus(c *gin.Context) {
	if h.service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Payments are not configured"})
		return
	}
	id, ok := parseOrderID(c)
	if !ok {
		return
	}

	status, err := h.service.PaymentStatus(c.Request.Context(), id)
	if err != nil {
		writePaymentError(c, err, "Failed to load payment status", map[string]interface{}{"order_id": id})
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": status})
}
