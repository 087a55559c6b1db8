package dintero

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"storefront-checkout-backend/internal/payments"
)

var errMissingSessionID = errors.New("session id is required")

func (c *Client) sessionURL(sessionID string, suffix ...string) string {
	parts := append([]string{c.checkoutBase, "sessions", url.PathEscape(sessionID)}, suffix...)
	return strings.Join(parts, "/")
}

// CreateSession creates a hosted checkout session from a profile.
func (c *Client) CreateSession(ctx context.Context, req payments.SessionRequest) (*payments.Result[payments.Session], error) {
	return call[payments.Session](ctx, c, "create_session", http.MethodPost, c.checkoutBase+"/sessions-profile", req)
}

// GetSession fetches a session by id.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*payments.Result[payments.Session], error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, errMissingSessionID
	}
	return call[payments.Session](ctx, c, "get_session", http.MethodGet, c.sessionURL(sessionID), nil)
}

// UpdateSession replaces the session's order. With withoutLock the provider
// applies the change even when the customer is mid-payment.
func (c *Client) UpdateSession(ctx context.Context, sessionID string, req payments.SessionUpdate, withoutLock bool) (*payments.Result[payments.Session], error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, errMissingSessionID
	}
	endpoint := c.sessionURL(sessionID) + "?update_without_lock=" + strconv.FormatBool(withoutLock)
	return call[payments.Session](ctx, c, "update_session", http.MethodPut, endpoint, req)
}

// LockSession prevents the customer from paying while the cart changes.
func (c *Client) LockSession(ctx context.Context, sessionID string) (*payments.Result[payments.Session], error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, errMissingSessionID
	}
	return call[payments.Session](ctx, c, "lock_session", http.MethodPost, c.sessionURL(sessionID, "lock"), nil)
}

// UnlockSession releases a lock taken by LockSession.
func (c *Client) UnlockSession(ctx context.Context, sessionID string) (*payments.Result[payments.Session], error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, errMissingSessionID
	}
	return call[payments.Session](ctx, c, "unlock_session", http.MethodPost, c.sessionURL(sessionID, "unlock"), nil)
}
