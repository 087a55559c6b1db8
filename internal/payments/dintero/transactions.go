package dintero

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"storefront-checkout-backend/internal/payments"
)

var errMissingTransactionID = errors.New("transaction id is required")

func (c *Client) transactionURL(transactionID, action string) (string, error) {
	if strings.TrimSpace(transactionID) == "" {
		return "", errMissingTransactionID
	}
	endpoint := c.checkoutBase + "/transactions/" + url.PathEscape(transactionID)
	if action != "" {
		endpoint += "/" + action
	}
	return endpoint, nil
}

func (c *Client) GetTransaction(ctx context.Context, transactionID string) (*payments.Result[payments.Transaction], error) {
	endpoint, err := c.transactionURL(transactionID, "")
	if err != nil {
		return nil, err
	}
	return call[payments.Transaction](ctx, c, "get_transaction", http.MethodGet, endpoint, nil)
}

func (c *Client) CaptureTransaction(ctx context.Context, transactionID string, req payments.CaptureRequest) (*payments.Result[payments.Transaction], error) {
	endpoint, err := c.transactionURL(transactionID, "capture")
	if err != nil {
		return nil, err
	}
	return call[payments.Transaction](ctx, c, "capture_transaction", http.MethodPost, endpoint, req)
}

func (c *Client) VoidTransaction(ctx context.Context, transactionID string) (*payments.Result[payments.Transaction], error) {
	endpoint, err := c.transactionURL(transactionID, "void")
	if err != nil {
		return nil, err
	}
	return call[payments.Transaction](ctx, c, "void_transaction", http.MethodPost, endpoint, nil)
}

func (c *Client) RefundTransaction(ctx context.Context, transactionID string, req payments.RefundRequest) (*payments.Result[payments.Transaction], error) {
	endpoint, err := c.transactionURL(transactionID, "refund")
	if err != nil {
		return nil, err
	}
	return call[payments.Transaction](ctx, c, "refund_transaction", http.MethodPost, endpoint, req)
}

// UpdateTransactionReference rewrites the transaction's merchant reference,
// used once the attempt reference is replaced by the final order reference.
func (c *Client) UpdateTransactionReference(ctx context.Context, transactionID, merchantReference string) (*payments.Result[payments.Transaction], error) {
	endpoint, err := c.transactionURL(transactionID, "")
	if err != nil {
		return nil, err
	}
	body := map[string]string{"merchant_reference": merchantReference}
	return call[payments.Transaction](ctx, c, "update_transaction", http.MethodPut, endpoint, body)
}
