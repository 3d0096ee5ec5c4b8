package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ecodeli/ecodeli/internal/authorization"
	billingdomain "github.com/ecodeli/ecodeli/internal/billing/domain"
	"github.com/ecodeli/ecodeli/internal/config"
	invoicedomain "github.com/ecodeli/ecodeli/internal/invoice/domain"
	notificationdomain "github.com/ecodeli/ecodeli/internal/notification/domain"
	"github.com/ecodeli/ecodeli/internal/observability"
	obsmiddleware "github.com/ecodeli/ecodeli/internal/observability/logger"
	obsmetrics "github.com/ecodeli/ecodeli/internal/observability/metrics"
	obstracing "github.com/ecodeli/ecodeli/internal/observability/tracing"
	pricingdomain "github.com/ecodeli/ecodeli/internal/pricing/domain"
	providerdomain "github.com/ecodeli/ecodeli/internal/provider/domain"
	"github.com/ecodeli/ecodeli/internal/ratelimit"
	subscriptiondomain "github.com/ecodeli/ecodeli/internal/subscription/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(RunHTTP),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	db              *gorm.DB
	authzSvc        authorization.Service
	billingSvc      billingdomain.Service
	pricingSvc      pricingdomain.Service
	subscriptionSvc subscriptiondomain.Service
	invoiceSvc      invoicedomain.Service
	notificationSvc notificationdomain.Service
	providerRepo    providerdomain.Repository
	pricingLimiter  pricingLimiter
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	DB              *gorm.DB
	AuthzSvc        authorization.Service
	BillingSvc      billingdomain.Service
	PricingSvc      pricingdomain.Service
	SubscriptionSvc subscriptiondomain.Service
	InvoiceSvc      invoicedomain.Service
	NotificationSvc notificationdomain.Service
	ProviderRepo    providerdomain.Repository
	PricingLimiter  *ratelimit.PricingLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		db:              p.DB,
		authzSvc:        p.AuthzSvc,
		billingSvc:      p.BillingSvc,
		pricingSvc:      p.PricingSvc,
		subscriptionSvc: p.SubscriptionSvc,
		invoiceSvc:      p.InvoiceSvc,
		notificationSvc: p.NotificationSvc,
		providerRepo:    p.ProviderRepo,
	}
	if p.PricingLimiter != nil {
		svc.pricingLimiter = p.PricingLimiter
	}

	svc.registerCronRoutes()
	svc.registerAPIRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerCronRoutes() {
	cron := s.engine.Group("/api/cron", s.CronAuthRequired())

	cron.POST("/monthly-billing", s.TriggerMonthlyBilling)
	cron.GET("/monthly-billing", s.MonthlyBillingStatus)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.GET("/plans", s.ListPlans)

	actor := api.Group("", s.ActorRequired())

	// -------- Pricing --------
	pricing := actor.Group("/pricing", s.PricingRateLimit())
	pricing.POST("/quote", s.authorizeAction(authorization.ObjectPricing, authorization.ActionPricingQuote), s.PreviewQuote)
	pricing.POST("/checkout", s.authorizeAction(authorization.ObjectPricing, authorization.ActionPricingCheckout), s.Checkout)
	pricing.POST("/storage-quote", s.authorizeAction(authorization.ObjectPricing, authorization.ActionPricingQuote), s.StorageQuote)
	pricing.GET("/insurance", s.authorizeAction(authorization.ObjectPricing, authorization.ActionPricingQuote), s.InsuranceEligibility)

	// -------- Subscriptions --------
	actor.GET("/subscriptions/me", s.authorizeAction(authorization.ObjectSubscription, authorization.ActionSubscriptionView), s.GetMySubscription)
	actor.PUT("/subscriptions/me", s.authorizeAction(authorization.ObjectSubscription, authorization.ActionSubscriptionChange), s.ChangeMyPlan)

	// -------- Invoices --------
	actor.GET("/providers/:id/invoices", s.authorizeAction(authorization.ObjectInvoice, authorization.ActionInvoiceView), s.ListProviderInvoices)
	actor.GET("/invoices/:id", s.authorizeAction(authorization.ObjectInvoice, authorization.ActionInvoiceView), s.GetInvoiceByID)
	actor.GET("/invoices/:id/pdf", s.authorizeAction(authorization.ObjectInvoice, authorization.ActionInvoiceView), s.DownloadInvoicePDF)
	actor.POST("/invoices/:id/paid", s.authorizeAction(authorization.ObjectInvoice, authorization.ActionInvoiceMarkPaid), s.MarkInvoicePaid)
	actor.POST("/invoices/:id/transfer-failed", s.authorizeAction(authorization.ObjectInvoice, authorization.ActionInvoiceTransferFailed), s.MarkTransferFailed)

	// -------- Notifications --------
	actor.GET("/notifications", s.authorizeAction(authorization.ObjectNotification, authorization.ActionNotificationView), s.ListMyNotifications)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/api/admin", s.ActorRequired())

	admin.POST("/billing/runs", s.authorizeAction(authorization.ObjectBilling, authorization.ActionBillingRun), s.RunBillingAsAdmin)
	admin.GET("/billing/status", s.authorizeAction(authorization.ObjectBilling, authorization.ActionBillingStatus), s.MonthlyBillingStatus)
}
