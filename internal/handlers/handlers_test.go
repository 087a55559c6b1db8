package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"storefront-checkout-backend/internal/models"
	"storefront-checkout-backend/internal/payments"
	"storefront-checkout-backend/internal/payments/dintero"
	"storefront-checkout-backend/internal/repository"
	"storefront-checkout-backend/internal/service"
	"storefront-checkout-backend/pkg/validator"
)

// fakeProvider serves the transaction endpoints the handlers reach.
type fakeProvider struct {
	mu           sync.Mutex
	transactions map[string]payments.Transaction
	captures     int
	relabels     int
}

func (p *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if strings.HasSuffix(r.URL.Path, "/auth/token") {
		_, _ = io.WriteString(w, `{"access_token":"tok","token_type":"Bearer","expires_in":3600}`)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/checkout/v1/transactions/")
	parts := strings.SplitN(path, "/", 2)
	tx, ok := p.transactions[parts[0]]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"message":"transaction not found"}}`)
		return
	}
	if len(parts) == 2 && parts[1] == "capture" {
		p.captures++
		tx.Status = payments.TransactionCaptured
		p.transactions[tx.ID] = tx
	}
	if len(parts) == 1 && r.Method == http.MethodPut {
		var body struct {
			MerchantReference string `json:"merchant_reference"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		p.relabels++
		tx.MerchantReference = body.MerchantReference
		p.transactions[tx.ID] = tx
	}
	_ = json.NewEncoder(w).Encode(tx)
}

type memoryOrders struct {
	mu     sync.Mutex
	orders map[uint]*models.Order
	notes  map[uint][]string
}

func (m *memoryOrders) Create(order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.ID] = order
	return nil
}

func (m *memoryOrders) GetByID(id uint) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *order
	return &copied, nil
}

func (m *memoryOrders) GetRefund(uint, uint) (*models.OrderRefund, error) {
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryOrders) PendingRefund(uint) (*models.OrderRefund, error) {
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryOrders) MarkPaid(id uint, transactionID string, status models.OrderStatus, paidAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order := m.orders[id]
	if order.DatePaid != nil {
		return false, nil
	}
	order.TransactionID = transactionID
	order.Status = status
	order.DatePaid = &paidAt
	return true, nil
}

func (m *memoryOrders) HoldUnpaid(id uint, transactionID string, status models.OrderStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.orders[id].DatePaid != nil {
		return false, nil
	}
	m.orders[id].TransactionID = transactionID
	m.orders[id].Status = status
	return true, nil
}

func (m *memoryOrders) TransitionPaymentState(id uint, from, to models.PaymentState) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.orders[id].PaymentState != from {
		return false, nil
	}
	m.orders[id].PaymentState = to
	return true, nil
}

func (m *memoryOrders) UpdateStatus(id uint, status models.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[id].Status = status
	return nil
}

func (m *memoryOrders) AddNote(orderID uint, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes[orderID] = append(m.notes[orderID], content)
	return nil
}

func (m *memoryOrders) HasNote(orderID uint, content string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, note := range m.notes[orderID] {
		if note == content {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryOrders) MarkRefundProcessed(uint, time.Time) (bool, error) {
	return false, nil
}

type memoryMeta struct {
	mu     sync.Mutex
	values map[uint]map[string]string
}

func (m *memoryMeta) Get(orderID uint, key string) (*models.OrderMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.values[orderID][key]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &models.OrderMeta{OrderID: orderID, Key: key, Value: value}, nil
}

func (m *memoryMeta) Set(orderID uint, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values[orderID] == nil {
		m.values[orderID] = map[string]string{}
	}
	m.values[orderID][key] = value
	return nil
}

func (m *memoryMeta) Delete(orderID uint, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values[orderID], key)
	return nil
}

func (m *memoryMeta) FindOrderID(key, value string) (uint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for orderID, entries := range m.values {
		if entries[key] == value {
			return orderID, nil
		}
	}
	return 0, gorm.ErrRecordNotFound
}

type testEnv struct {
	router   *gin.Engine
	orders   *memoryOrders
	meta     *memoryMeta
	sessions repository.CheckoutSessionStore
	provider *fakeProvider
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	validator.Init()

	provider := &fakeProvider{transactions: map[string]payments.Transaction{
		"tx-7": {ID: "tx-7", MerchantReference: "7", Amount: 9999, Currency: "NOK", Status: payments.TransactionAuthorized},
	}}
	server := httptest.NewServer(provider)
	t.Cleanup(server.Close)

	client, err := dintero.NewClient(dintero.Config{
		AccountID:    "12345678",
		ClientID:     "client",
		ClientSecret: "secret",
		TestMode:     true,
		CheckoutURL:  server.URL + "/checkout/v1",
		APIURL:       server.URL + "/v1",
	})
	if err != nil {
		t.Fatalf("client: %v", err)
	}

	orders := &memoryOrders{
		orders: map[uint]*models.Order{7: {
			ID:           7,
			Status:       models.OrderStatusPending,
			Currency:     "NOK",
			Total:        decimal.RequireFromString("99.99"),
			Locale:       "nb-NO",
			PaymentState: models.PaymentStateNone,
			Lines: []models.OrderLine{{
				ID: 1, OrderID: 7, Kind: models.OrderLineProduct, Name: "Mug", ProductID: "42", Quantity: 1,
				Total: decimal.RequireFromString("99.99"), Tax: decimal.RequireFromString("20.00"),
			}},
		}},
		notes: map[uint][]string{},
	}

	reconciliation := service.NewReconciliationService(orders, client, nil, nil)
	meta := &memoryMeta{values: map[uint]map[string]string{}}
	store := repository.NewMemoryCheckoutSessionStore(nil)
	sessions := service.NewSessionService(client, store, meta, service.SessionServiceConfig{})

	router := gin.New()
	checkout := NewCheckoutHandler(sessions, reconciliation, time.Hour, false)
	callbacks := NewCallbackHandler(sessions, reconciliation, "https://shop.example/checkout", "https://shop.example/order-received")
	admin := NewOrderHandler(reconciliation)

	router.GET("/api/v1/payments/callback", callbacks.Callback)
	router.GET("/checkout/return", callbacks.Return)
	router.POST("/api/v1/checkout/sessions", checkout.Create)
	router.GET("/api/v1/checkout/sessions/current", checkout.Current)
	router.POST("/api/v1/checkout/sessions/current/finalize", checkout.Finalize)
	router.PUT("/api/v1/admin/orders/:id/checkout-reference", checkout.BindOrder)
	router.POST("/api/v1/admin/orders/:id/capture", admin.Capture)
	router.POST("/api/v1/admin/orders/:id/refund", admin.Refund)
	router.GET("/api/v1/admin/orders/:id/payment", admin.PaymentStatus)

	return &testEnv{router: router, orders: orders, meta: meta, sessions: store, provider: provider}
}

func (e *testEnv) do(method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range header {
		req.Header.Set(key, value)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response %q: %v", w.Body.String(), err)
	}
	return body
}

func TestCallbackConfirmsOnce(t *testing.T) {
	env := newTestEnv(t)
	target := "/api/v1/payments/callback?transaction_id=tx-7&merchant_reference=7"

	w := env.do(http.MethodGet, target, "", nil)
	if w.Code != http.StatusOK || decodeBody(t, w)["status"] != "applied" {
		t.Fatalf("unexpected first callback response %d: %s", w.Code, w.Body.String())
	}
	w = env.do(http.MethodGet, target, "", nil)
	if w.Code != http.StatusOK || decodeBody(t, w)["status"] != "noop" {
		t.Fatalf("unexpected repeated callback response %d: %s", w.Code, w.Body.String())
	}

	order, _ := env.orders.GetByID(7)
	if order.DatePaid == nil || order.TransactionID != "tx-7" || order.Status != models.OrderStatusProcessing {
		t.Fatalf("unexpected order: %+v", order)
	}
	if len(env.orders.notes[7]) != 1 {
		t.Fatalf("expected one note, got %v", env.orders.notes[7])
	}
}

func TestCallbackRejectsForeignTransaction(t *testing.T) {
	env := newTestEnv(t)
	env.provider.transactions["tx-8"] = payments.Transaction{ID: "tx-8", MerchantReference: "8", Status: payments.TransactionAuthorized}

	w := env.do(http.MethodGet, "/api/v1/payments/callback?transaction_id=tx-8&merchant_reference=7", "", nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", w.Code, w.Body.String())
	}
	if order, _ := env.orders.GetByID(7); order.DatePaid != nil {
		t.Fatalf("order must stay unpaid")
	}
}

func TestCallbackErrorAddsLocalizedNote(t *testing.T) {
	env := newTestEnv(t)
	target := "/api/v1/payments/callback?transaction_id=tx-7&merchant_reference=7&error=cancelled"

	for i := 0; i < 2; i++ {
		w := env.do(http.MethodGet, target, "", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
	}

	notes := env.orders.notes[7]
	if len(notes) != 1 || notes[0] != "Betalingen ble avbrutt." {
		t.Fatalf("expected one Norwegian note, got %v", notes)
	}
	if order, _ := env.orders.GetByID(7); order.PaymentState != models.PaymentStateNone || order.DatePaid != nil {
		t.Fatalf("error callbacks must not touch payment state")
	}
}

func TestCallbackBeforeFinalizeIsAccepted(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/api/v1/payments/callback?transaction_id=tx-7&merchant_reference=attempt-1", "", nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCallbackRejectsUnknownReportEvent(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/api/v1/payments/callback?transaction_id=tx-7&merchant_reference=7&report_event=SETTLE", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestReturnRedirects(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/checkout/return?transaction_id=tx-7&merchant_reference=7", "", nil)
	if w.Code != http.StatusFound || w.Header().Get("Location") != "https://shop.example/order-received?order_id=7" {
		t.Fatalf("unexpected success redirect %d %q", w.Code, w.Header().Get("Location"))
	}

	w = env.do(http.MethodGet, "/checkout/return?transaction_id=tx-7&merchant_reference=7&error=failed", "", map[string]string{"Accept-Language": "en-US"})
	if w.Code != http.StatusFound || w.Header().Get("Location") != "https://shop.example/checkout?payment_error=failed" {
		t.Fatalf("unexpected error redirect %d %q", w.Code, w.Header().Get("Location"))
	}
	notes := env.orders.notes[7]
	if len(notes) != 2 || notes[1] != "The payment failed. Please try again." {
		t.Fatalf("expected English failure note, got %v", notes)
	}

	w = env.do(http.MethodGet, "/checkout/return?merchant_reference=7&error=failed", "", nil)
	if w.Code != http.StatusFound || w.Header().Get("Location") != "https://shop.example/checkout?payment_error=failed" {
		t.Fatalf("unexpected error redirect without transaction %d %q", w.Code, w.Header().Get("Location"))
	}
	if len(env.orders.notes[7]) != 2 {
		t.Fatalf("error without transaction must not add a note, got %v", env.orders.notes[7])
	}
}

func TestAdminCaptureAndRefundRules(t *testing.T) {
	env := newTestEnv(t)
	env.orders.orders[7].TransactionID = "tx-7"

	w := env.do(http.MethodPost, "/api/v1/admin/orders/7/refund", `{"refund_id":1}`, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("refund before capture should conflict, got %d: %s", w.Code, w.Body.String())
	}

	w = env.do(http.MethodPost, "/api/v1/admin/orders/7/capture", "", nil)
	if w.Code != http.StatusOK || decodeBody(t, w)["outcome"] != "applied" {
		t.Fatalf("unexpected capture response %d: %s", w.Code, w.Body.String())
	}
	w = env.do(http.MethodPost, "/api/v1/admin/orders/7/capture", "", nil)
	if w.Code != http.StatusOK || decodeBody(t, w)["outcome"] != "noop" {
		t.Fatalf("unexpected repeated capture response %d: %s", w.Code, w.Body.String())
	}
	if env.provider.captures != 1 {
		t.Fatalf("expected one remote capture, got %d", env.provider.captures)
	}

	w = env.do(http.MethodGet, "/api/v1/admin/orders/7/payment", "", nil)
	payment, _ := decodeBody(t, w)["payment"].(map[string]interface{})
	if payment["remote_status"] != string(payments.TransactionCaptured) || payment["captured"] != true {
		t.Fatalf("unexpected payment status: %v", payment)
	}

	if w := env.do(http.MethodPost, "/api/v1/admin/orders/abc/capture", "", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid id, got %d", w.Code)
	}
	if w := env.do(http.MethodPost, "/api/v1/admin/orders/99/capture", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown order, got %d", w.Code)
	}
}

func TestCheckoutRequiresSessionCookie(t *testing.T) {
	env := newTestEnv(t)

	if w := env.do(http.MethodGet, "/api/v1/checkout/sessions/current", "", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without cookie, got %d", w.Code)
	}
	if w := env.do(http.MethodPost, "/api/v1/checkout/sessions", `{"currency":"nok","lines":[]}`, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid cart, got %d", w.Code)
	}
}

func TestPaymentErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{service.ErrOrderNotFound, http.StatusNotFound},
		{payments.ErrRefundNotSupported, http.StatusConflict},
		{&payments.ReferenceMismatchError{TransactionID: "tx"}, http.StatusForbidden},
		{&payments.AmountMismatchError{TransactionID: "tx"}, http.StatusForbidden},
		{service.ErrOrderNotBound, http.StatusForbidden},
		{service.ErrOrderBound, http.StatusConflict},
		{service.ErrInvalidReference, http.StatusBadRequest},
		{&payments.TransportError{Op: "get_transaction", Err: io.EOF}, http.StatusGatewayTimeout},
		{&payments.AuthError{Status: 401}, http.StatusBadGateway},
		{&service.SessionError{Op: "create", Message: "Invalid profile"}, http.StatusUnprocessableEntity},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := paymentErrorStatus(tc.err); got != tc.want {
			t.Errorf("%v: expected %d, got %d", tc.err, tc.want, got)
		}
	}

	if msg := paymentErrorMessage(&service.SessionError{Op: "create", Message: "Invalid profile"}, http.StatusUnprocessableEntity); msg != "Invalid profile" {
		t.Fatalf("expected provider text, got %q", msg)
	}
}

func TestCallbackErrorRequiresOwnTransaction(t *testing.T) {
	env := newTestEnv(t)
	env.provider.transactions["tx-8"] = payments.Transaction{ID: "tx-8", MerchantReference: "8", Amount: 9999, Currency: "NOK"}

	if w := env.do(http.MethodGet, "/api/v1/payments/callback?merchant_reference=7&error=failed", "", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without transaction, got %d: %s", w.Code, w.Body.String())
	}
	if w := env.do(http.MethodGet, "/api/v1/payments/callback?transaction_id=tx-8&merchant_reference=7&error=failed", "", nil); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign transaction, got %d: %s", w.Code, w.Body.String())
	}

	for _, code := range []string{"refund-issued-call-555-0100", "ship-to-new-address-now"} {
		w := env.do(http.MethodGet, "/api/v1/payments/callback?transaction_id=tx-7&merchant_reference=7&error="+code, "", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
	}

	notes := env.orders.notes[7]
	if len(notes) != 1 || notes[0] != "Betalingen kunne ikke fullføres." {
		t.Fatalf("expected one fixed note for unknown codes, got %v", notes)
	}
}

func TestFinalizeRequiresBoundOrderAndFullAmount(t *testing.T) {
	env := newTestEnv(t)
	env.provider.transactions["tx-cheap"] = payments.Transaction{
		ID: "tx-cheap", MerchantReference: "attempt-1", Amount: 100, Currency: "NOK", Status: payments.TransactionAuthorized,
	}
	err := env.sessions.Save(&models.CheckoutSession{
		Key:               "browser-1",
		SessionID:         "sess-1",
		MerchantReference: "attempt-1",
		State:             models.CheckoutSessionLocked,
		ExpiresAt:         time.Now().Add(time.Hour),
	}, time.Hour)
	if err != nil {
		t.Fatalf("seed session: %v", err)
	}
	cookie := map[string]string{"Cookie": CheckoutSessionCookie + "=browser-1"}
	finalize := `{"order_id":7,"transaction_id":"tx-cheap"}`

	w := env.do(http.MethodPost, "/api/v1/checkout/sessions/current/finalize", finalize, cookie)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for unbound order, got %d: %s", w.Code, w.Body.String())
	}
	if env.provider.relabels != 0 {
		t.Fatalf("unbound order must not relabel the transaction")
	}

	w = env.do(http.MethodPut, "/api/v1/admin/orders/7/checkout-reference", `{"merchant_reference":"attempt-1"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("bind failed %d: %s", w.Code, w.Body.String())
	}
	w = env.do(http.MethodPut, "/api/v1/admin/orders/8/checkout-reference", `{"merchant_reference":"attempt-1"}`, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 when the attempt is bound elsewhere, got %d: %s", w.Code, w.Body.String())
	}

	w = env.do(http.MethodPost, "/api/v1/checkout/sessions/current/finalize", finalize, cookie)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for an underpaying transaction, got %d: %s", w.Code, w.Body.String())
	}
	if order, _ := env.orders.GetByID(7); order.DatePaid != nil || order.Status != models.OrderStatusPending {
		t.Fatalf("order must stay unpaid: %+v", order)
	}
}
