package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"storefront-checkout-backend/internal/models"
)

// ErrInvalidTransition is returned for payment state changes the state
// machine does not allow.
var ErrInvalidTransition = errors.New("invalid payment state transition")

type OrderRepository interface {
	Create(order *models.Order) error
	GetByID(id uint) (*models.Order, error)
	GetRefund(orderID, refundID uint) (*models.OrderRefund, error)
	PendingRefund(orderID uint) (*models.OrderRefund, error)
	MarkPaid(id uint, transactionID string, status models.OrderStatus, paidAt time.Time) (bool, error)
	HoldUnpaid(id uint, transactionID string, status models.OrderStatus) (bool, error)
	TransitionPaymentState(id uint, from, to models.PaymentState) (bool, error)
	UpdateStatus(id uint, status models.OrderStatus) error
	AddNote(orderID uint, content string) error
	HasNote(orderID uint, content string) (bool, error)
	MarkRefundProcessed(refundID uint, processedAt time.Time) (bool, error)
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(order *models.Order) error {
	return r.db.Create(order).Error
}

func (r *orderRepository) GetByID(id uint) (*models.Order, error) {
	var order models.Order
	err := r.db.
		Preload("Lines").
		Preload("Refunds").
		First(&order, id).Error
	return &order, err
}

func (r *orderRepository) GetRefund(orderID, refundID uint) (*models.OrderRefund, error) {
	var refund models.OrderRefund
	err := r.db.
		Preload("Lines.OrderLine").
		Where("order_id = ?", orderID).
		First(&refund, refundID).Error
	return &refund, err
}

// PendingRefund returns the oldest refund not yet sent to the provider.
func (r *orderRepository) PendingRefund(orderID uint) (*models.OrderRefund, error) {
	var refund models.OrderRefund
	err := r.db.
		Preload("Lines.OrderLine").
		Where("order_id = ? AND processed_at IS NULL", orderID).
		Order("id ASC").
		First(&refund).Error
	return &refund, err
}

// MarkPaid records the payment once. The returned flag is false when the
// order already had a paid date, which makes duplicate callbacks harmless.
func (r *orderRepository) MarkPaid(id uint, transactionID string, status models.OrderStatus, paidAt time.Time) (bool, error) {
	result := r.db.Model(&models.Order{}).
		Where("id = ? AND date_paid IS NULL", id).
		Updates(map[string]interface{}{
			"transaction_id": transactionID,
			"status":         status,
			"date_paid":      paidAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// HoldUnpaid records transactionID and status on an order that has not
// been paid yet. A paid order is left alone and false is returned.
func (r *orderRepository) HoldUnpaid(id uint, transactionID string, status models.OrderStatus) (bool, error) {
	result := r.db.Model(&models.Order{}).
		Where("id = ? AND date_paid IS NULL", id).
		Updates(map[string]interface{}{
			"transaction_id": transactionID,
			"status":         status,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// TransitionPaymentState moves the payment state only if it still equals
// from. Concurrent callers race on the WHERE clause; the loser gets false.
func (r *orderRepository) TransitionPaymentState(id uint, from, to models.PaymentState) (bool, error) {
	if !models.CanTransition(from, to) {
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	result := r.db.Model(&models.Order{}).
		Where("id = ? AND payment_state = ?", id, from).
		Update("payment_state", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *orderRepository) UpdateStatus(id uint, status models.OrderStatus) error {
	return r.db.Model(&models.Order{}).Where("id = ?", id).Update("status", status).Error
}

func (r *orderRepository) AddNote(orderID uint, content string) error {
	return r.db.Create(&models.OrderNote{OrderID: orderID, Content: content}).Error
}

func (r *orderRepository) HasNote(orderID uint, content string) (bool, error) {
	var count int64
	err := r.db.Model(&models.OrderNote{}).
		Where("order_id = ? AND content = ?", orderID, content).
		Count(&count).Error
	return count > 0, err
}

func (r *orderRepository) MarkRefundProcessed(refundID uint, processedAt time.Time) (bool, error) {
	result := r.db.Model(&models.OrderRefund{}).
		Where("id = ? AND processed_at IS NULL", refundID).
		Update("processed_at", processedAt)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
