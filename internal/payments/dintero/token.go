package dintero

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"storefront-checkout-backend/internal/payments"
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// TokenCache holds the process-wide bearer credential. Concurrent refreshes
// are collapsed; an expired token is never returned.
type TokenCache struct {
	fetch   func(ctx context.Context) (*tokenResponse, error)
	now     func() time.Time
	timeout time.Duration

	mu        sync.RWMutex
	value     string
	expiresAt time.Time

	group singleflight.Group
}

// NewTokenCache builds a cache around fetch. now defaults to time.Now.
func NewTokenCache(fetch func(ctx context.Context) (*tokenResponse, error), now func() time.Time) *TokenCache {
	if now == nil {
		now = time.Now
	}
	return &TokenCache{fetch: fetch, now: now, timeout: defaultTimeout}
}

// Token returns "{token_type} {access_token}", fetching a new credential when
// the cached one is missing or expired. The shared fetch outlives any single
// caller and is bounded only by the cache timeout; ctx bounds the wait.
func (t *TokenCache) Token(ctx context.Context) (string, error) {
	if value, ok := t.cached(); ok {
		return value, nil
	}

	ch := t.group.DoChan("token", func() (interface{}, error) {
		if value, ok := t.cached(); ok {
			return value, nil
		}
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.timeout)
		defer cancel()
		return t.refresh(fetchCtx)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case result := <-ch:
		if result.Err != nil {
			return "", result.Err
		}
		return result.Val.(string), nil
	}
}

// ExpiresAt returns the expiry of the cached token (zero when empty).
func (t *TokenCache) ExpiresAt() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.expiresAt
}

// Invalidate discards the cached token.
func (t *TokenCache) Invalidate() {
	t.mu.Lock()
	t.value = ""
	t.expiresAt = time.Time{}
	t.mu.Unlock()
}

func (t *TokenCache) cached() (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.value == "" || !t.now().Before(t.expiresAt) {
		return "", false
	}
	return t.value, true
}

func (t *TokenCache) refresh(ctx context.Context) (string, error) {
	resp, err := t.fetch(ctx)
	if err != nil {
		return "", err
	}
	if resp == nil || strings.TrimSpace(resp.AccessToken) == "" {
		return "", &payments.AuthError{Message: "token response did not contain an access token"}
	}
	if resp.ExpiresIn <= 0 {
		return "", &payments.AuthError{Message: "token response has no lifetime"}
	}

	tokenType := strings.TrimSpace(resp.TokenType)
	if tokenType == "" {
		tokenType = "Bearer"
	}
	value := tokenType + " " + resp.AccessToken
	expiresAt := t.now().Add(time.Duration(resp.ExpiresIn) * time.Second)

	t.mu.Lock()
	t.value = value
	t.expiresAt = expiresAt
	t.mu.Unlock()

	return value, nil
}

// fetchToken performs the client-credentials grant against the account's
// token endpoint.
func (c *Client) fetchToken(ctx context.Context) (*tokenResponse, error) {
	audience := fmt.Sprintf("%s/accounts/%s", c.apiBase, c.accountPath)
	body, err := json.Marshal(map[string]string{
		"grant_type": "client_credentials",
		"audience":   audience,
	})
	if err != nil {
		return nil, &payments.AuthError{Err: err}
	}

	status, raw, err := c.send(ctx, "auth_token", http.MethodPost, audience+"/auth/token", body, func(req *http.Request) {
		req.SetBasicAuth(c.clientID, c.clientSecret)
	})
	if err != nil {
		return nil, &payments.AuthError{Err: err}
	}
	if status < 200 || status >= 300 {
		return nil, &payments.AuthError{Status: status, Message: parseErrorBody(raw, status).Message}
	}

	var token tokenResponse
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, &payments.AuthError{Status: status, Err: fmt.Errorf("decode token response: %w", err)}
	}
	return &token, nil
}
