package app

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"storefront-checkout-backend/internal/config"
	"storefront-checkout-backend/internal/models"
	"storefront-checkout-backend/internal/payments/dintero"
	"storefront-checkout-backend/pkg/logger"
)

// OpenDatabase connects to postgres with the pool settings shared by the
// API and the operator CLI.
func OpenDatabase(cfg *config.Config) (*gorm.DB, error) {
	logger.Info("Connecting to database", nil)

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: logger.NewGormLogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

func Migrate(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is not initialized")
	}

	logger.Info("Running database migrations", nil)

	if err := db.AutoMigrate(
		&models.Order{},
		&models.OrderLine{},
		&models.OrderNote{},
		&models.OrderRefund{},
		&models.OrderRefundLine{},
		&models.OrderMeta{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	statements := []string{
		"CREATE INDEX IF NOT EXISTS idx_order_meta_lookup ON order_meta(key, value)",
		"CREATE INDEX IF NOT EXISTS idx_order_refunds_pending ON order_refunds(order_id) WHERE processed_at IS NULL",
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	logger.Info("Database migration completed", nil)
	return nil
}

// NewPaymentClient builds the provider client with request logging and
// metrics attached.
func NewPaymentClient(cfg *config.Config) (*dintero.Client, error) {
	client, err := dintero.NewClient(dintero.Config{
		AccountID:    cfg.DinteroAccountID,
		ClientID:     cfg.DinteroClientID,
		ClientSecret: cfg.DinteroClientSecret,
		TestMode:     cfg.DinteroTestMode,
		CheckoutURL:  cfg.DinteroCheckoutURL,
		APIURL:       cfg.DinteroAPIURL,
		Timeout:      cfg.DinteroTimeout,
		Hook:         dintero.DefaultAuditHook(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure payment provider: %w", err)
	}
	return client, nil
}
