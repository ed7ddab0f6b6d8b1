package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/storefront/internal/address"
	addressdomain "github.com/smallbiznis/storefront/internal/address/domain"
	"github.com/smallbiznis/storefront/internal/audit"
	auditdomain "github.com/smallbiznis/storefront/internal/audit/domain"
	"github.com/smallbiznis/storefront/internal/authorization"
	"github.com/smallbiznis/storefront/internal/config"
	"github.com/smallbiznis/storefront/internal/coupon"
	coupondomain "github.com/smallbiznis/storefront/internal/coupon/domain"
	"github.com/smallbiznis/storefront/internal/inventory"
	inventorydomain "github.com/smallbiznis/storefront/internal/inventory/domain"
	"github.com/smallbiznis/storefront/internal/invoice"
	invoicedomain "github.com/smallbiznis/storefront/internal/invoice/domain"
	"github.com/smallbiznis/storefront/internal/observability"
	obsmiddleware "github.com/smallbiznis/storefront/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/storefront/internal/observability/metrics"
	obstracing "github.com/smallbiznis/storefront/internal/observability/tracing"
	"github.com/smallbiznis/storefront/internal/order"
	orderdomain "github.com/smallbiznis/storefront/internal/order/domain"
	"github.com/smallbiznis/storefront/internal/pricing"
	pricingdomain "github.com/smallbiznis/storefront/internal/pricing/domain"
	"github.com/smallbiznis/storefront/internal/product"
	productdomain "github.com/smallbiznis/storefront/internal/product/domain"
	"github.com/smallbiznis/storefront/internal/providers/pdf"
	"github.com/smallbiznis/storefront/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	authorization.Module,
	audit.Module,
	ratelimit.Module,
	product.Module,
	inventory.Module,
	coupon.Module,
	pricing.Module,
	address.Module,
	order.Module,
	pdf.Module,
	invoice.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
	engine       *gin.Engine
	cfg          config.Config
	log          *zap.Logger
	authzSvc     authorization.Service
	auditSvc     auditdomain.Service
	couponSvc    coupondomain.Service
	productSvc   productdomain.Service
	inventorySvc inventorydomain.Service
	pricingSvc   pricingdomain.Service
	addressSvc   addressdomain.Service
	orderSvc     orderdomain.Service
	invoiceSvc   invoicedomain.Service
	guard        *ratelimit.CheckoutGuard
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	Log          *zap.Logger
	AuthzSvc     authorization.Service
	AuditSvc     auditdomain.Service
	CouponSvc    coupondomain.Service
	ProductSvc   productdomain.Service
	InventorySvc inventorydomain.Service
	PricingSvc   pricingdomain.Service
	AddressSvc   addressdomain.Service
	OrderSvc     orderdomain.Service
	InvoiceSvc   invoicedomain.Service
	Guard        *ratelimit.CheckoutGuard `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		log:          p.Log.Named("http.server"),
		authzSvc:     p.AuthzSvc,
		auditSvc:     p.AuditSvc,
		couponSvc:    p.CouponSvc,
		productSvc:   p.ProductSvc,
		inventorySvc: p.InventorySvc,
		pricingSvc:   p.PricingSvc,
		addressSvc:   p.AddressSvc,
		orderSvc:     p.OrderSvc,
		invoiceSvc:   p.InvoiceSvc,
		guard:        p.Guard,
	}

	svc.registerStorefrontRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerStorefrontRoutes() {
	api := s.engine.Group("/api")

	api.GET("/shipping-methods", s.ListShippingMethods)
	api.POST("/coupons/validate", s.ValidateCoupon)

	// -------- Checkout --------
	api.POST("/checkout/quote", s.QuoteCheckout)
	api.POST("/checkout/orders", s.CheckoutRateLimit(), s.PlaceOrder)

	// -------- Address book --------
	api.POST("/addresses", s.CreateAddress)
	api.GET("/addresses", s.ListAddresses)
	api.GET("/addresses/:id", s.GetAddress)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")
	admin.Use(s.ActorRequired())

	// -------- Coupons --------
	admin.GET("/coupons", s.authorize(authorization.ObjectCoupon, authorization.ActionCouponView), s.ListCoupons)
	admin.POST("/coupons", s.authorize(authorization.ObjectCoupon, authorization.ActionCouponCreate), s.CreateCoupon)
	admin.GET("/coupons/:id", s.authorize(authorization.ObjectCoupon, authorization.ActionCouponView), s.GetCoupon)
	admin.PATCH("/coupons/:id", s.authorize(authorization.ObjectCoupon, authorization.ActionCouponUpdate), s.UpdateCoupon)
	admin.GET("/coupons/:id/usages", s.authorize(authorization.ObjectCoupon, authorization.ActionCouponView), s.ListCouponUsages)

	// -------- Catalog --------
	admin.GET("/products", s.authorize(authorization.ObjectProduct, authorization.ActionProductView), s.ListProducts)
	admin.POST("/products", s.authorize(authorization.ObjectProduct, authorization.ActionProductCreate), s.CreateProduct)
	admin.GET("/products/:id", s.authorize(authorization.ObjectProduct, authorization.ActionProductView), s.GetProduct)
	admin.POST("/products/:id/variants", s.authorize(authorization.ObjectProduct, authorization.ActionProductCreate), s.CreateVariant)
	admin.GET("/variants/:id", s.authorize(authorization.ObjectProduct, authorization.ActionProductView), s.GetVariant)

	// -------- Inventory --------
	admin.GET("/inventory/:variantId", s.authorize(authorization.ObjectInventory, authorization.ActionInventoryView), s.GetInventoryLevel)
	admin.POST("/inventory/:variantId/adjustments", s.authorize(authorization.ObjectInventory, authorization.ActionInventoryAdjust), s.AdjustInventory)
	admin.GET("/inventory/:variantId/ledger", s.authorize(authorization.ObjectInventory, authorization.ActionInventoryView), s.ListInventoryLedger)
	admin.GET("/inventory/:variantId/reconcile", s.authorize(authorization.ObjectInventory, authorization.ActionInventoryView), s.ReconcileInventory)

	// -------- Orders --------
	admin.GET("/orders", s.authorize(authorization.ObjectOrder, authorization.ActionOrderView), s.ListOrders)
	admin.GET("/orders/:id", s.authorize(authorization.ObjectOrder, authorization.ActionOrderView), s.GetOrder)
	admin.PATCH("/orders/:id/status", s.authorize(authorization.ObjectOrder, authorization.ActionOrderUpdateStatus), s.UpdateOrderStatus)
	admin.POST("/orders/:id/reopen", s.authorize(authorization.ObjectOrder, authorization.ActionOrderReopen), s.ReopenOrder)
	admin.PATCH("/orders/:id/shipment", s.authorize(authorization.ObjectOrder, authorization.ActionOrderUpdateShipment), s.UpdateShipment)
	admin.GET("/orders/:id/invoice.pdf", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceView), s.DownloadInvoice)

	// -------- Fulfillments --------
	admin.GET("/orders/:id/fulfillments", s.authorize(authorization.ObjectFulfillment, authorization.ActionFulfillmentView), s.ListFulfillments)
	admin.PUT("/orders/:id/fulfillments", s.authorize(authorization.ObjectFulfillment, authorization.ActionFulfillmentUpsert), s.UpsertFulfillment)

	// -------- Audit --------
	admin.GET("/audit-logs", s.authorize(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAuditLogs)
}
