package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"storefront-checkout-backend/internal/config"
	"storefront-checkout-backend/internal/events"
	"storefront-checkout-backend/internal/handlers"
	"storefront-checkout-backend/internal/middleware"
	"storefront-checkout-backend/internal/payments/dintero"
	"storefront-checkout-backend/internal/repository"
	"storefront-checkout-backend/internal/service"
	"storefront-checkout-backend/pkg/cache"
	"storefront-checkout-backend/pkg/lang"
	"storefront-checkout-backend/pkg/logger"
)

type Application struct {
	cfg *config.Config

	db        *gorm.DB
	cache     *cache.Cache
	client    *dintero.Client
	publisher events.Publisher
	kafka     *events.KafkaPublisher
	limits    *middleware.RateLimitManager

	ctx    context.Context
	cancel context.CancelFunc

	repositories repositoryContainer
	services     serviceContainer
	handlers     handlerContainer

	router *gin.Engine
	server *http.Server
}

type repositoryContainer struct {
	Order            repository.OrderRepository
	OrderMeta        repository.OrderMetaRepository
	CheckoutSessions repository.CheckoutSessionStore
}

type serviceContainer struct {
	Session        *service.SessionService
	Reconciliation *service.ReconciliationService
}

type handlerContainer struct {
	Checkout *handlers.CheckoutHandler
	Callback *handlers.CallbackHandler
	Order    *handlers.OrderHandler
}

func New(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	app := &Application{cfg: cfg, ctx: ctx, cancel: cancel}

	db, err := OpenDatabase(cfg)
	if err != nil {
		cancel()
		return nil, err
	}
	app.db = db

	if err := Migrate(app.db); err != nil {
		cancel()
		return nil, err
	}

	if err := app.initCache(); err != nil {
		cancel()
		return nil, err
	}
	if err := app.initPayments(); err != nil {
		cancel()
		return nil, err
	}
	app.initRepositories()
	app.initServices()
	app.initHandlers()
	app.initRouter()

	app.server = &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        app.router,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	return app, nil
}

func (a *Application) Run() error {
	logger.Info("Server starting", map[string]interface{}{
		"port":        a.cfg.Port,
		"environment": a.cfg.Environment,
		"payments":    a.client != nil,
	})

	return a.server.ListenAndServe()
}

func (a *Application) Shutdown(ctx context.Context) error {
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			return err
		}
	}

	if a.limits != nil {
		_ = a.limits.Shutdown()
	}

	if a.kafka != nil {
		a.kafka.Close()
		select {
		case <-waitClosed(a.kafka):
		case <-ctx.Done():
			logger.Warn("Payment event publisher did not drain before shutdown", nil)
		}
	}
	a.cancel()

	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			logger.Error(err, "Failed to close cache connection", nil)
		}
	}

	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			sqlDB.Close()
		}
	}

	return nil
}

func waitClosed(p *events.KafkaPublisher) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		p.WaitClosed()
		close(done)
	}()
	return done
}

func (a *Application) Router() *gin.Engine {
	return a.router
}

func (a *Application) initCache() error {
	c, err := cache.NewCache(a.cfg.RedisURL, a.cfg.EnableRedis)
	if err != nil {
		return err
	}
	if !c.Enabled() {
		logger.Warn("Redis disabled, checkout sessions are kept in process memory", nil)
	}
	a.cache = c
	return nil
}

func (a *Application) initPayments() error {
	if !a.cfg.PaymentsConfigured() {
		logger.Warn("Payment provider credentials missing, checkout and payment routes are disabled", nil)
		a.publisher = events.NopPublisher{}
		return nil
	}

	client, err := NewPaymentClient(a.cfg)
	if err != nil {
		return err
	}
	a.client = client

	if len(a.cfg.KafkaBrokers) == 0 {
		a.publisher = events.NopPublisher{}
		return nil
	}
	a.kafka = events.NewKafkaPublisher(a.cfg.KafkaBrokers, a.cfg.PaymentEventsTopic, a.cfg.ServiceName, 256)
	a.kafka.Start(a.ctx)
	a.publisher = a.kafka
	logger.Info("Publishing payment events", map[string]interface{}{
		"brokers": strings.Join(a.cfg.KafkaBrokers, ","),
		"topic":   a.cfg.PaymentEventsTopic,
	})
	return nil
}

func (a *Application) initRepositories() {
	a.repositories = repositoryContainer{
		Order:            repository.NewOrderRepository(a.db),
		OrderMeta:        repository.NewOrderMetaRepository(a.db),
		CheckoutSessions: repository.NewCheckoutSessionStore(a.cache),
	}
}

func (a *Application) initServices() {
	if a.client == nil {
		return
	}

	a.services = serviceContainer{
		Session: service.NewSessionService(a.client, a.repositories.CheckoutSessions, a.repositories.OrderMeta, service.SessionServiceConfig{
			ProfileID:        a.cfg.DinteroProfileID,
			ReturnURL:        a.cfg.CheckoutReturnURL,
			CallbackURL:      a.cfg.CheckoutCallbackURL,
			TTL:              a.cfg.CheckoutSessionTTL,
			ShippingAsOption: a.cfg.ShippingAsOption,
		}),
		Reconciliation: service.NewReconciliationService(a.repositories.Order, a.client, a.publisher, lang.NewCatalog()),
	}
}

func (a *Application) initHandlers() {
	a.handlers = handlerContainer{
		Checkout: handlers.NewCheckoutHandler(a.services.Session, a.services.Reconciliation, a.cfg.CheckoutSessionTTL, a.cfg.CheckoutCookieSecure),
		Callback: handlers.NewCallbackHandler(a.services.Session, a.services.Reconciliation, a.cfg.CheckoutPageURL, a.cfg.OrderReceivedURL),
		Order:    handlers.NewOrderHandler(a.services.Reconciliation),
	}
}

func (a *Application) initRouter() {
	if a.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(logger.GinLogger())
	router.Use(middleware.SecurityHeadersMiddleware())
	if a.cfg.EnableMetrics {
		router.Use(middleware.MetricsMiddleware())
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     a.cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	a.limits = middleware.NewRateLimitManager(a.ctx)
	public := middleware.RateLimitPolicy{
		Requests: a.cfg.RateLimitRequests,
		Window:   time.Duration(a.cfg.RateLimitWindow) * time.Second,
		Burst:    a.cfg.RateLimitBurst,
	}
	// Session create and lock call the provider on every request.
	strict := middleware.RateLimitPolicy{Requests: 20, Window: time.Minute}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"payments": a.client != nil,
			"time":     time.Now().Format(time.RFC3339),
		})
	})

	if a.cfg.EnableMetrics {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	router.GET("/checkout/return", middleware.RateLimitMiddleware(a.limits, "callback", public), a.handlers.Callback.Return)

	v1 := router.Group("/api/v1")
	{
		payments := v1.Group("/payments")
		payments.Use(middleware.RateLimitMiddleware(a.limits, "callback", public))
		{
			payments.GET("/callback", a.handlers.Callback.Callback)
		}

		checkout := v1.Group("/checkout/sessions")
		checkout.Use(middleware.RateLimitMiddleware(a.limits, "checkout", public))
		{
			checkout.POST("", middleware.RateLimitMiddleware(a.limits, "checkout-create", strict), a.handlers.Checkout.Create)
			checkout.GET("/current", a.handlers.Checkout.Current)
			checkout.PUT("/current", a.handlers.Checkout.Update)
			checkout.POST("/current/lock", middleware.RateLimitMiddleware(a.limits, "checkout-lock", strict), a.handlers.Checkout.Lock)
			checkout.POST("/current/unlock", a.handlers.Checkout.Unlock)
			checkout.POST("/current/finalize", a.handlers.Checkout.Finalize)
		}

		admin := v1.Group("/admin")
		admin.Use(middleware.AuthMiddleware(a.cfg.JWTSecret))
		admin.Use(middleware.AdminMiddleware())
		{
			admin.POST("/orders/:id/capture", a.handlers.Order.Capture)
			admin.POST("/orders/:id/cancel", a.handlers.Order.Cancel)
			admin.POST("/orders/:id/refund", a.handlers.Order.Refund)
			admin.PUT("/orders/:id/status", a.handlers.Order.UpdateStatus)
			admin.GET("/orders/:id/payment", a.handlers.Order.PaymentStatus)
			admin.PUT("/orders/:id/checkout-reference", a.handlers.Checkout.BindOrder)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Route not found",
			"path":  c.Request.URL.Path,
		})
	})

	a.router = router
}
