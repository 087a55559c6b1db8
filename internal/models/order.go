package models

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Status   OrderStatus     `gorm:"type:varchar(32);index;default:'pending'" json:"status"`
	Currency string          `gorm:"size:3;not null" json:"currency"`
	Total    decimal.Decimal `gorm:"type:numeric(14,4);not null" json:"total"`
	TotalTax decimal.Decimal `gorm:"type:numeric(14,4);not null" json:"total_tax"`
	Locale   string          `gorm:"size:16" json:"locale"`

	PaymentMethod string       `gorm:"size:64" json:"payment_method"`
	PaymentState  PaymentState `gorm:"type:varchar(16);not null;default:'none'" json:"payment_state"`
	TransactionID string       `gorm:"size:128;index" json:"transaction_id,omitempty"`
	DatePaid      *time.Time   `json:"date_paid,omitempty"`

	Lines   []OrderLine   `gorm:"foreignKey:OrderID" json:"lines,omitempty"`
	Notes   []OrderNote   `gorm:"foreignKey:OrderID" json:"notes,omitempty"`
	Refunds []OrderRefund `gorm:"foreignKey:OrderID" json:"refunds,omitempty"`
}

// Reference is the merchant reference joining the order to its provider
// transaction.
func (o *Order) Reference() string {
	return strconv.FormatUint(uint64(o.ID), 10)
}

type OrderLineKind string

const (
	OrderLineProduct  OrderLineKind = "product"
	OrderLineFee      OrderLineKind = "fee"
	OrderLineShipping OrderLineKind = "shipping"
	OrderLineGiftCard OrderLineKind = "gift_card"
	OrderLineCoupon   OrderLineKind = "coupon"
)

// OrderLine is a persisted order row. Total includes Tax.
type OrderLine struct {
	ID      uint          `gorm:"primarykey" json:"id"`
	OrderID uint          `gorm:"index;not null" json:"order_id"`
	Kind    OrderLineKind `gorm:"type:varchar(16);not null" json:"kind"`

	Name        string          `json:"name"`
	ProductID   string          `gorm:"size:64" json:"product_id,omitempty"`
	VariationID string          `gorm:"size:64" json:"variation_id,omitempty"`
	SKU         string          `gorm:"size:128" json:"sku,omitempty"`
	Quantity    int             `gorm:"not null;default:1" json:"quantity"`
	Total       decimal.Decimal `gorm:"type:numeric(14,4);not null" json:"total"`
	Tax         decimal.Decimal `gorm:"type:numeric(14,4);not null" json:"tax"`

	MethodID          string `gorm:"size:64" json:"method_id,omitempty"`
	InstanceID        string `gorm:"size:64" json:"instance_id,omitempty"`
	Operator          string `gorm:"size:64" json:"operator,omitempty"`
	OperatorProductID string `gorm:"size:64" json:"operator_product_id,omitempty"`
	PickupPointID     string `gorm:"size:64" json:"pickup_point_id,omitempty"`
	Code              string `gorm:"size:128" json:"code,omitempty"`
}

type OrderNote struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	OrderID   uint      `gorm:"index;not null" json:"order_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
}

type OrderRefund struct {
	ID          uint              `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time         `json:"created_at"`
	OrderID     uint              `gorm:"index;not null" json:"order_id"`
	Amount      decimal.Decimal   `gorm:"type:numeric(14,4);not null" json:"amount"`
	Reason      string            `gorm:"type:text" json:"reason"`
	ProcessedAt *time.Time        `json:"processed_at,omitempty"`
	Lines       []OrderRefundLine `gorm:"foreignKey:RefundID" json:"lines,omitempty"`
}

// OrderRefundLine refunds part of one order line.
type OrderRefundLine struct {
	ID          uint            `gorm:"primarykey" json:"id"`
	RefundID    uint            `gorm:"index;not null" json:"refund_id"`
	OrderLineID uint            `gorm:"index;not null" json:"order_line_id"`
	OrderLine   OrderLine       `gorm:"foreignKey:OrderLineID" json:"order_line"`
	Quantity    int             `json:"quantity"`
	Total       decimal.Decimal `gorm:"type:numeric(14,4);not null" json:"total"`
	Tax         decimal.Decimal `gorm:"type:numeric(14,4);not null" json:"tax"`
}

// OrderMeta is order-scoped key/value state.
type OrderMeta struct {
	OrderID   uint      `gorm:"primaryKey" json:"order_id"`
	Key       string    `gorm:"primaryKey;size:191" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (OrderMeta) TableName() string { return "order_meta" }

const (
	MetaSessionID         = "payment_session_id"
	MetaMerchantReference = "payment_merchant_reference"
	MetaShippingSelection = "payment_shipping_selection"
)

type UpdateOrderStatusRequest struct {
	Status OrderStatus `json:"status" binding:"required"`
}

type RefundOrderRequest struct {
	RefundID uint   `json:"refund_id" binding:"required"`
	Reason   string `json:"reason" binding:"max=500"`
}

// PaymentStatusResponse is the back-office view of an order's payment.
type PaymentStatusResponse struct {
	OrderID       uint         `json:"order_id"`
	Status        OrderStatus  `json:"status"`
	PaymentState  PaymentState `json:"payment_state"`
	TransactionID string       `json:"transaction_id,omitempty"`
	Captured      bool         `json:"captured"`
	Canceled      bool         `json:"canceled"`
	RemoteStatus  string       `json:"remote_status,omitempty"`
}
