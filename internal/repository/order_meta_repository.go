package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront-checkout-backend/internal/models"
)

type OrderMetaRepository interface {
	Get(orderID uint, key string) (*models.OrderMeta, error)
	Set(orderID uint, key, value string) error
	Delete(orderID uint, key string) error
	FindOrderID(key, value string) (uint, error)
}

type orderMetaRepository struct {
	db *gorm.DB
}

func NewOrderMetaRepository(db *gorm.DB) OrderMetaRepository {
	return &orderMetaRepository{db: db}
}

func (r *orderMetaRepository) Get(orderID uint, key string) (*models.OrderMeta, error) {
	var meta models.OrderMeta
	err := r.db.First(&meta, "order_id = ? AND key = ?", orderID, key).Error
	return &meta, err
}

func (r *orderMetaRepository) Set(orderID uint, key, value string) error {
	meta := &models.OrderMeta{OrderID: orderID, Key: key, Value: value}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}, {Name: "key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"value": value}),
	}).Create(meta).Error
}

func (r *orderMetaRepository) Delete(orderID uint, key string) error {
	return r.db.Delete(&models.OrderMeta{}, "order_id = ? AND key = ?", orderID, key).Error
}

// FindOrderID returns the order holding value under key.
func (r *orderMetaRepository) FindOrderID(key, value string) (uint, error) {
	var meta models.OrderMeta
	if err := r.db.Where("key = ? AND value = ?", key, value).First(&meta).Error; err != nil {
		return 0, err
	}
	return meta.OrderID, nil
}
