package service

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"storefront-checkout-backend/internal/events"
	"storefront-checkout-backend/internal/models"
	"storefront-checkout-backend/internal/payments"
	"storefront-checkout-backend/internal/repository"
)

type memoryOrderRepository struct {
	mu      sync.Mutex
	orders  map[uint]*models.Order
	refunds map[uint]*models.OrderRefund
	notes   map[uint][]string
}

func newMemoryOrderRepository(orders ...*models.Order) *memoryOrderRepository {
	repo := &memoryOrderRepository{
		orders:  make(map[uint]*models.Order),
		refunds: make(map[uint]*models.OrderRefund),
		notes:   make(map[uint][]string),
	}
	for _, order := range orders {
		repo.orders[order.ID] = order
	}
	return repo
}

func (m *memoryOrderRepository) Create(order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if order.ID == 0 {
		order.ID = uint(len(m.orders) + 1)
	}
	m.orders[order.ID] = order
	return nil
}

func (m *memoryOrderRepository) GetByID(id uint) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *order
	return &copied, nil
}

func (m *memoryOrderRepository) GetRefund(orderID, refundID uint) (*models.OrderRefund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	refund, ok := m.refunds[refundID]
	if !ok || refund.OrderID != orderID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *refund
	return &copied, nil
}

func (m *memoryOrderRepository) PendingRefund(orderID uint) (*models.OrderRefund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found *models.OrderRefund
	for _, refund := range m.refunds {
		if refund.OrderID != orderID || refund.ProcessedAt != nil {
			continue
		}
		if found == nil || refund.ID < found.ID {
			found = refund
		}
	}
	if found == nil {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *found
	return &copied, nil
}

func (m *memoryOrderRepository) MarkPaid(id uint, transactionID string, status models.OrderStatus, paidAt time.Time) (bool, error) {
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

func (m *memoryOrderRepository) HoldUnpaid(id uint, transactionID string, status models.OrderStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.orders[id].DatePaid != nil {
		return false, nil
	}
	m.orders[id].TransactionID = transactionID
	m.orders[id].Status = status
	return true, nil
}

func (m *memoryOrderRepository) TransitionPaymentState(id uint, from, to models.PaymentState) (bool, error) {
	if !models.CanTransition(from, to) {
		return false, repository.ErrInvalidTransition
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	order := m.orders[id]
	current := order.PaymentState
	if current == "" {
		current = models.PaymentStateNone
	}
	if current != from {
		return false, nil
	}
	order.PaymentState = to
	return true, nil
}

func (m *memoryOrderRepository) UpdateStatus(id uint, status models.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[id].Status = status
	return nil
}

func (m *memoryOrderRepository) AddNote(orderID uint, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes[orderID] = append(m.notes[orderID], content)
	return nil
}

func (m *memoryOrderRepository) HasNote(orderID uint, content string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, note := range m.notes[orderID] {
		if note == content {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryOrderRepository) MarkRefundProcessed(refundID uint, processedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	refund := m.refunds[refundID]
	if refund.ProcessedAt != nil {
		return false, nil
	}
	refund.ProcessedAt = &processedAt
	return true, nil
}

func (m *memoryOrderRepository) order(id uint) models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.orders[id]
}

func (m *memoryOrderRepository) notesFor(id uint) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.notes[id]...)
}

var _ repository.OrderRepository = (*memoryOrderRepository)(nil)

type memoryOrderMetaRepository struct {
	values map[string]string
}

func (m *memoryOrderMetaRepository) key(orderID uint, key string) string {
	return key + "#" + strconv.FormatUint(uint64(orderID), 10)
}

func (m *memoryOrderMetaRepository) Get(orderID uint, key string) (*models.OrderMeta, error) {
	value, ok := m.values[m.key(orderID, key)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &models.OrderMeta{OrderID: orderID, Key: key, Value: value}, nil
}

func (m *memoryOrderMetaRepository) Set(orderID uint, key, value string) error {
	if m.values == nil {
		m.values = make(map[string]string)
	}
	m.values[m.key(orderID, key)] = value
	return nil
}

func (m *memoryOrderMetaRepository) Delete(orderID uint, key string) error {
	delete(m.values, m.key(orderID, key))
	return nil
}

func (m *memoryOrderMetaRepository) FindOrderID(key, value string) (uint, error) {
	for stored, v := range m.values {
		if v != value || !strings.HasPrefix(stored, key+"#") {
			continue
		}
		id, err := strconv.ParseUint(strings.TrimPrefix(stored, key+"#"), 10, 64)
		if err != nil {
			return 0, err
		}
		return uint(id), nil
	}
	return 0, gorm.ErrRecordNotFound
}

var _ repository.OrderMetaRepository = (*memoryOrderMetaRepository)(nil)

// stubProvider is an in-memory payment provider. Mutating transaction calls
// update the stored transaction the way the real provider would.
type stubProvider struct {
	mu           sync.Mutex
	transactions map[string]payments.Transaction
	calls        map[string]int

	getErr        error
	captureError  *payments.ErrorDetail
	refundStatus  payments.TransactionStatus
	updateResults []*payments.Result[payments.Session]
	lockResult    *payments.Result[payments.Session]
	createResult  *payments.Result[payments.Session]

	lastCapture     payments.CaptureRequest
	lastRefund      payments.RefundRequest
	lastCreate      payments.SessionRequest
	lastUpdate      payments.SessionUpdate
	lastWithoutLock bool
}

func newStubProvider(transactions ...payments.Transaction) *stubProvider {
	p := &stubProvider{
		transactions: make(map[string]payments.Transaction),
		calls:        make(map[string]int),
		refundStatus: payments.TransactionRefunded,
	}
	for _, tx := range transactions {
		p.transactions[tx.ID] = tx
	}
	return p
}

func (p *stubProvider) count(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op]
}

func (p *stubProvider) record(op string) {
	p.calls[op]++
}

func notFound[T any]() *payments.Result[T] {
	return &payments.Result[T]{IsError: true, Code: http.StatusNotFound, Error: &payments.ErrorDetail{Message: "not found"}}
}

func (p *stubProvider) CreateSession(_ context.Context, req payments.SessionRequest) (*payments.Result[payments.Session], error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("create_session")
	p.lastCreate = req
	if p.createResult != nil {
		return p.createResult, nil
	}
	return &payments.Result[payments.Session]{Code: http.StatusOK, Value: payments.Session{ID: "sess-1", Order: req.Order}}, nil
}

func (p *stubProvider) GetSession(_ context.Context, sessionID string) (*payments.Result[payments.Session], error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("get_session")
	return &payments.Result[payments.Session]{Code: http.StatusOK, Value: payments.Session{ID: sessionID}}, nil
}

func (p *stubProvider) UpdateSession(_ context.Context, sessionID string, req payments.SessionUpdate, withoutLock bool) (*payments.Result[payments.Session], error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("update_session")
	p.lastUpdate = req
	p.lastWithoutLock = withoutLock
	if len(p.updateResults) > 0 {
		result := p.updateResults[0]
		p.updateResults = p.updateResults[1:]
		return result, nil
	}
	return &payments.Result[payments.Session]{Code: http.StatusOK, Value: payments.Session{ID: sessionID, Order: req.Order}}, nil
}

func (p *stubProvider) LockSession(_ context.Context, sessionID string) (*payments.Result[payments.Session], error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("lock_session")
	if p.lockResult != nil {
		return p.lockResult, nil
	}
	return &payments.Result[payments.Session]{Code: http.StatusOK, Value: payments.Session{ID: sessionID, Locked: true}}, nil
}

func (p *stubProvider) UnlockSession(_ context.Context, sessionID string) (*payments.Result[payments.Session], error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("unlock_session")
	return &payments.Result[payments.Session]{Code: http.StatusOK, Value: payments.Session{ID: sessionID}}, nil
}

func (p *stubProvider) GetTransaction(_ context.Context, transactionID string) (*payments.Result[payments.Transaction], error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("get_transaction")
	if p.getErr != nil {
		return nil, p.getErr
	}
	tx, ok := p.transactions[transactionID]
	if !ok {
		return notFound[payments.Transaction](), nil
	}
	return &payments.Result[payments.Transaction]{Code: http.StatusOK, Value: tx}, nil
}

func (p *stubProvider) CaptureTransaction(_ context.Context, transactionID string, req payments.CaptureRequest) (*payments.Result[payments.Transaction], error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("capture_transaction")
	p.lastCapture = req
	if p.captureError != nil {
		return &payments.Result[payments.Transaction]{IsError: true, Code: http.StatusBadRequest, Error: p.captureError}, nil
	}
	tx := p.transactions[transactionID]
	tx.Status = payments.TransactionCaptured
	p.transactions[transactionID] = tx
	return &payments.Result[payments.Transaction]{Code: http.StatusOK, Value: tx}, nil
}

func (p *stubProvider) VoidTransaction(_ context.Context, transactionID string) (*payments.Result[payments.Transaction], error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("void_transaction")
	tx := p.transactions[transactionID]
	tx.Status = payments.TransactionVoided
	p.transactions[transactionID] = tx
	return &payments.Result[payments.Transaction]{Code: http.StatusOK, Value: tx}, nil
}

func (p *stubProvider) RefundTransaction(_ context.Context, transactionID string, req payments.RefundRequest) (*payments.Result[payments.Transaction], error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("refund_transaction")
	p.lastRefund = req
	tx := p.transactions[transactionID]
	tx.Status = p.refundStatus
	p.transactions[transactionID] = tx
	return &payments.Result[payments.Transaction]{Code: http.StatusOK, Value: tx}, nil
}

func (p *stubProvider) UpdateTransactionReference(_ context.Context, transactionID, merchantReference string) (*payments.Result[payments.Transaction], error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("update_transaction")
	tx, ok := p.transactions[transactionID]
	if !ok {
		return notFound[payments.Transaction](), nil
	}
	tx.MerchantReference = merchantReference
	p.transactions[transactionID] = tx
	return &payments.Result[payments.Transaction]{Code: http.StatusOK, Value: tx}, nil
}

var _ payments.Provider = (*stubProvider)(nil)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.PaymentEvent
}

func (r *recordingPublisher) Publish(_ context.Context, event events.PaymentEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingPublisher) count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, event := range r.events {
		if event.Type == eventType {
			n++
		}
	}
	return n
}

func testOrder(id uint, transactionID string) *models.Order {
	return &models.Order{
		ID:            id,
		Status:        models.OrderStatusPending,
		Currency:      "NOK",
		Total:         decimal.RequireFromString("99.99"),
		TotalTax:      decimal.RequireFromString("20.00"),
		Locale:        "nb-NO",
		PaymentState:  models.PaymentStateNone,
		TransactionID: transactionID,
		Lines: []models.OrderLine{
			{ID: 1, OrderID: id, Kind: models.OrderLineProduct, Name: "Mug", ProductID: "42", SKU: "SKU-42", Quantity: 1,
				Total: decimal.RequireFromString("99.99"), Tax: decimal.RequireFromString("20.00")},
			{ID: 2, OrderID: id, Kind: models.OrderLineShipping, Name: "Flat rate", MethodID: "flat_rate", InstanceID: "3",
				Total: decimal.Zero, Tax: decimal.Zero},
		},
	}
}
