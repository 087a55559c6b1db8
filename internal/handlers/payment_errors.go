package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront-checkout-backend/internal/payments"
	"storefront-checkout-backend/internal/service"
	"storefront-checkout-backend/pkg/logger"
)

// paymentErrorStatus maps service and provider errors to HTTP status codes.
func paymentErrorStatus(err error) int {
	var (
		mismatch    *payments.ReferenceMismatchError
		underpaid   *payments.AmountMismatchError
		sessionErr  *service.SessionError
		providerErr *payments.ProviderError
		authErr     *payments.AuthError
	)

	switch {
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrRefundNotFound),
		errors.Is(err, service.ErrCheckoutSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrMissingSessionKey),
		errors.Is(err, service.ErrInvalidOrderStatus),
		errors.Is(err, service.ErrInvalidReference):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrSessionSuperseded),
		errors.Is(err, service.ErrOrderBound),
		errors.Is(err, payments.ErrStateConflict),
		errors.Is(err, payments.ErrRefundNotSupported),
		errors.Is(err, payments.ErrNoTransaction),
		errors.Is(err, payments.ErrNotAuthorized):
		return http.StatusConflict
	case errors.As(err, &mismatch),
		errors.As(err, &underpaid),
		errors.Is(err, service.ErrOrderNotBound):
		return http.StatusForbidden
	case payments.IsTransportError(err):
		return http.StatusGatewayTimeout
	case errors.As(err, &authErr):
		return http.StatusBadGateway
	case errors.As(err, &sessionErr), errors.As(err, &providerErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// paymentErrorMessage returns text that is safe to show. Provider business
// errors are shown verbatim; everything unexpected is masked.
func paymentErrorMessage(err error, status int) string {
	var sessionErr *service.SessionError
	if errors.As(err, &sessionErr) && sessionErr.Message != "" {
		return sessionErr.Message
	}
	var providerErr *payments.ProviderError
	if errors.As(err, &providerErr) && providerErr.Message != "" {
		return providerErr.Message
	}

	var underpaid *payments.AmountMismatchError
	switch {
	case errors.As(err, &underpaid):
		return "Transaction amount does not match the order total"
	case errors.Is(err, service.ErrOrderNotBound):
		return "Order was not placed from this checkout"
	}

	switch status {
	case http.StatusForbidden:
		return "Transaction does not belong to this order"
	case http.StatusGatewayTimeout:
		return "Payment provider is unavailable, please try again"
	case http.StatusBadGateway:
		return "Payment provider rejected our credentials"
	case http.StatusInternalServerError:
		return "Payment operation failed"
	}
	return err.Error()
}

func writePaymentError(c *gin.Context, err error, msg string, fields map[string]interface{}) {
	status := paymentErrorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error(err, msg, fields)
	} else {
		logger.FromContext(c.Request.Context()).WithError(err).WithFields(fields).Warn(msg)
	}
	c.JSON(status, gin.H{"error": paymentErrorMessage(err, status)})
}
