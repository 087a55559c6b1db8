package dintero

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"storefront-checkout-backend/internal/payments"
)

const (
	defaultCheckoutBase = "https://checkout.dintero.com/v1"
	defaultAPIBase      = "https://api.dintero.com/v1"
	defaultTimeout      = 10 * time.Second
	maxResponseBytes    = 1 << 20
)

// Config holds the credentials and endpoints of one provider account.
type Config struct {
	AccountID    string
	ClientID     string
	ClientSecret string
	TestMode     bool
	CheckoutURL  string
	APIURL       string
	Timeout      time.Duration
	HTTPClient   *http.Client
	Hook         AuditHook
	Now          func() time.Time
}

// Client implements payments.Provider against the Dintero Checkout API using
// direct HTTP calls. It is safe for concurrent use.
type Client struct {
	httpClient   *http.Client
	checkoutBase string
	apiBase      string
	accountPath  string
	clientID     string
	clientSecret string
	userAgent    string
	hook         AuditHook
	tokens       *TokenCache
}

var _ payments.Provider = (*Client)(nil)

// NewClient validates cfg and constructs a client with its own token cache.
func NewClient(cfg Config) (*Client, error) {
	accountID := strings.TrimSpace(cfg.AccountID)
	if accountID == "" {
		return nil, errors.New("dintero account id is required")
	}
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, errors.New("dintero client credentials are required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	checkoutBase := strings.TrimRight(strings.TrimSpace(cfg.CheckoutURL), "/")
	if checkoutBase == "" {
		checkoutBase = defaultCheckoutBase
	}
	apiBase := strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	if apiBase == "" {
		apiBase = defaultAPIBase
	}

	hook := cfg.Hook
	if hook == nil {
		hook = func(context.Context, Exchange) {}
	}

	c := &Client{
		httpClient:   httpClient,
		checkoutBase: checkoutBase,
		apiBase:      apiBase,
		accountPath:  AccountPath(accountID, cfg.TestMode),
		clientID:     strings.TrimSpace(cfg.ClientID),
		clientSecret: strings.TrimSpace(cfg.ClientSecret),
		userAgent:    "storefront-checkout-backend/dintero",
		hook:         hook,
	}
	c.tokens = NewTokenCache(c.fetchToken, cfg.Now)
	c.tokens.timeout = timeout
	return c, nil
}

// Tokens exposes the client's token cache.
func (c *Client) Tokens() *TokenCache {
	return c.tokens
}

func call[T any](ctx context.Context, c *Client, op, method, endpoint string, payload interface{}) (*payments.Result[T], error) {
	status, raw, err := c.roundTrip(ctx, op, method, endpoint, payload)
	if err != nil {
		return nil, err
	}

	result := &payments.Result[T]{Code: status}
	if status >= 200 && status < 300 {
		if len(bytes.TrimSpace(raw)) > 0 {
			if err := json.Unmarshal(raw, &result.Value); err != nil {
				return nil, fmt.Errorf("dintero %s: decode response: %w", op, err)
			}
		}
		return result, nil
	}

	result.IsError = true
	result.Error = parseErrorBody(raw, status)
	return result, nil
}

// roundTrip sends an authorized request. A 401 discards the cached token and
// the request is retried once with a fresh one.
func (c *Client) roundTrip(ctx context.Context, op, method, endpoint string, payload interface{}) (int, []byte, error) {
	var body []byte
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("dintero %s: encode request: %w", op, err)
		}
		body = encoded
	}

	for attempt := 0; ; attempt++ {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return 0, nil, err
		}

		status, raw, err := c.send(ctx, op, method, endpoint, body, func(req *http.Request) {
			req.Header.Set("Authorization", token)
		})
		if err != nil {
			return 0, nil, err
		}

		if status != http.StatusUnauthorized {
			return status, raw, nil
		}

		c.tokens.Invalidate()
		if attempt > 0 {
			return status, raw, &payments.AuthError{Status: status, Message: parseErrorBody(raw, status).Message}
		}
	}
}

func (c *Client) send(ctx context.Context, op, method, endpoint string, body []byte, authorize func(*http.Request)) (int, []byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("dintero %s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	authorize(req)

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.hook(ctx, Exchange{Operation: op, Method: method, URL: endpoint, RequestBody: Redact(body), Duration: time.Since(started), Err: err})
		return 0, nil, &payments.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	c.hook(ctx, Exchange{
		Operation:    op,
		Method:       method,
		URL:          endpoint,
		RequestBody:  Redact(body),
		ResponseBody: Redact(raw),
		StatusCode:   resp.StatusCode,
		Duration:     time.Since(started),
		Err:          err,
	})
	if err != nil {
		return 0, nil, &payments.TransportError{Op: op, Err: err}
	}

	return resp.StatusCode, raw, nil
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	ErrorMessages []json.RawMessage `json:"error_messages"`
	Message       string            `json:"message"`
}

// parseErrorBody folds the provider's error payload into one readable string.
// Unparseable bodies fall back to the status code.
func parseErrorBody(raw []byte, status int) *payments.ErrorDetail {
	detail := &payments.ErrorDetail{}

	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil {
		detail.Code = body.Error.Code
		for _, entry := range body.ErrorMessages {
			if msg := decodeErrorMessage(entry); msg != "" {
				detail.Messages = append(detail.Messages, msg)
			}
		}
		if len(detail.Messages) == 0 {
			for _, msg := range []string{body.Error.Message, body.Message} {
				if msg = strings.TrimSpace(msg); msg != "" {
					detail.Messages = append(detail.Messages, msg)
					break
				}
			}
		}
	}

	if len(detail.Messages) == 0 {
		detail.Message = fmt.Sprintf("payment provider returned status %d", status)
		return detail
	}
	detail.Message = strings.Join(detail.Messages, "; ")
	return detail
}

func decodeErrorMessage(entry json.RawMessage) string {
	var text string
	if err := json.Unmarshal(entry, &text); err == nil {
		return strings.TrimSpace(text)
	}
	var object struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	if err := json.Unmarshal(entry, &object); err == nil {
		if object.Message != "" {
			return strings.TrimSpace(object.Message)
		}
		return strings.TrimSpace(object.Code)
	}
	return ""
}
