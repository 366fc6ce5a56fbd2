package app

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/velocart/payments/internal/module/payment"
	"github.com/velocart/payments/internal/module/payment/provider"
	"github.com/velocart/payments/internal/shared/config"
	"github.com/velocart/payments/internal/shared/logger"
	"github.com/velocart/payments/internal/shared/metrics"
	"github.com/velocart/payments/internal/shared/middleware"
)

// App wires configuration, providers and HTTP routing together.
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	router *gin.Engine
}

// New builds the application from configuration. Gateways are registered
// only when their credentials are present.
func New(cfg *config.Config) (*App, error) {
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		return nil, err
	}

	m := metrics.New("payments")

	registry := payment.NewProviderRegistry(cfg.Payment.DefaultProvider)

	if cfg.Payment.Razorpay.Enabled() {
		opts := &provider.RazorpayOptions{
			KeyID:                 cfg.Payment.Razorpay.KeyID,
			KeySecret:             cfg.Payment.Razorpay.KeySecret,
			Account:               cfg.Payment.Razorpay.Account,
			AutoCapture:           cfg.Payment.Razorpay.AutoCapture,
			AutomaticExpiryPeriod: cfg.Payment.Razorpay.AutomaticExpiryPeriod,
			ManualExpiryPeriod:    cfg.Payment.Razorpay.ManualExpiryPeriod,
			RefundSpeed:           cfg.Payment.Razorpay.RefundSpeed,
			WebhookSecret:         cfg.Payment.Razorpay.WebhookSecret,
		}
		client := provider.NewRazorpayClient(opts)
		client.SetObserver(func(resource string, d time.Duration) {
			m.GatewayRequestDuration.WithLabelValues(provider.ProviderNameRazorpay, resource).Observe(d.Seconds())
		})
		registry.Register(provider.NewRazorpayProvider(client, opts, log))
		log.Info("registered payment provider", zap.String("provider", provider.ProviderNameRazorpay))
	}

	if cfg.Payment.Stripe.Enabled() {
		registry.Register(provider.NewStripeProvider(&provider.StripeOptions{
			APIKey:        cfg.Payment.Stripe.APIKey,
			WebhookSecret: cfg.Payment.Stripe.WebhookSecret,
			AutoCapture:   cfg.Payment.Stripe.AutoCapture,
		}, log))
		log.Info("registered payment provider", zap.String("provider", provider.ProviderNameStripe))
	}

	service := payment.NewService(registry, m, log)
	handler := payment.NewHandler(service)
	webhookHandler := payment.NewWebhookHandler(service, log)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Metrics(m))
	router.Use(cors.Default())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	handler.RegisterRoutes(v1)
	webhookHandler.RegisterRoutes(v1.Group("/webhooks"))

	return &App{
		cfg:    cfg,
		logger: log,
		router: router,
	}, nil
}

// Router returns the HTTP handler.
func (a *App) Router() *gin.Engine {
	return a.router
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Stop flushes buffered log entries.
func (a *App) Stop() {
	_ = a.logger.Sync()
}
