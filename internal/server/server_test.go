package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	addressservice "github.com/smallbiznis/storefront/internal/address/service"
	auditrepo "github.com/smallbiznis/storefront/internal/audit/repository"
	auditservice "github.com/smallbiznis/storefront/internal/audit/service"
	"github.com/smallbiznis/storefront/internal/authorization"
	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/internal/config"
	couponrepo "github.com/smallbiznis/storefront/internal/coupon/repository"
	couponservice "github.com/smallbiznis/storefront/internal/coupon/service"
	inventoryrepo "github.com/smallbiznis/storefront/internal/inventory/repository"
	inventoryservice "github.com/smallbiznis/storefront/internal/inventory/service"
	invoiceservice "github.com/smallbiznis/storefront/internal/invoice/service"
	"github.com/smallbiznis/storefront/internal/migration"
	"github.com/smallbiznis/storefront/internal/observability"
	orderrepo "github.com/smallbiznis/storefront/internal/order/repository"
	orderservice "github.com/smallbiznis/storefront/internal/order/service"
	pricingservice "github.com/smallbiznis/storefront/internal/pricing/service"
	productrepo "github.com/smallbiznis/storefront/internal/product/repository"
	productservice "github.com/smallbiznis/storefront/internal/product/service"
	"github.com/smallbiznis/storefront/internal/providers/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   errorPayload    `json:"error"`
}

type testServer struct {
	engine *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(db))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fc := clock.NewFakeClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	settings := config.DefaultStoreSettings()
	settings.Tax.Enabled = false
	settings.ShippingOptions = []config.ShippingOption{
		{Code: "pickup", Courier: "Store", Service: "Pickup", Fee: "0"},
		{Code: "jne-reg", Courier: "JNE", Service: "REG", Fee: "50"},
	}
	store := config.NewStaticStoreConfigHolder(settings)

	enforcer, err := authorization.NewEnforcer(db)
	require.NoError(t, err)

	audit := auditservice.NewService(auditservice.Params{DB: db, Log: log, GenID: node, Repo: auditrepo.Provide()})
	inventory := inventoryservice.NewService(inventoryservice.Params{DB: db, Log: log, GenID: node, Clock: fc, Repo: inventoryrepo.NewRepository(), AuditSvc: audit})
	products := productservice.New(productservice.Params{DB: db, Log: log, GenID: node, Clock: fc, Repo: productrepo.Provide(), AuditSvc: audit, InventorySvc: inventory})
	coupons := couponservice.NewService(couponservice.Params{DB: db, Log: log, GenID: node, Clock: fc, Repo: couponrepo.NewRepository(), AuditSvc: audit})
	addresses := addressservice.NewService(addressservice.Params{DB: db, Log: log, GenID: node, Clock: fc, AuditSvc: audit})
	pricing := pricingservice.NewService(pricingservice.Params{DB: db, Log: log, Store: store, ProductSvc: products, CouponSvc: coupons})
	orders := orderservice.NewService(orderservice.Params{
		DB:           db,
		Log:          log,
		GenID:        node,
		Clock:        fc,
		Config:       config.Config{CheckoutMaxAttempts: 3},
		Repo:         orderrepo.NewRepository(),
		AuditSvc:     audit,
		PricingSvc:   pricing,
		CouponSvc:    coupons,
		InventorySvc: inventory,
		AddressSvc:   addresses,
	})
	invoices := invoiceservice.NewService(invoiceservice.Params{Log: log, Store: store, OrderSvc: orders, AddressSvc: addresses, PDF: pdf.New()})

	srv := NewServer(ServerParams{
		Gin:          NewEngine(observability.Config{}, nil),
		Log:          log,
		AuthzSvc:     authorization.NewService(authorization.Params{Log: log, Enforcer: enforcer}),
		AuditSvc:     audit,
		CouponSvc:    coupons,
		ProductSvc:   products,
		InventorySvc: inventory,
		PricingSvc:   pricing,
		AddressSvc:   addresses,
		OrderSvc:     orders,
		InvoiceSvc:   invoices,
	})
	return &testServer{engine: srv.Engine()}
}

func (ts *testServer) do(t *testing.T, method, path, role string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set(HeaderActorID, "admin-1")
		req.Header.Set(HeaderActorRole, role)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func dataID(t *testing.T, env envelope) string {
	t.Helper()
	var v struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &v))
	require.NotEmpty(t, v.ID)
	return v.ID
}

func (ts *testServer) seedVariant(t *testing.T, sku, price string, stock int) string {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/admin/products", authorization.RoleAdmin, map[string]any{"name": "Product " + sku})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	productID := dataID(t, decode(t, rec))

	rec = ts.do(t, http.MethodPost, "/admin/products/"+productID+"/variants", authorization.RoleAdmin, map[string]any{
		"sku": sku, "name": sku, "price": price, "initial_stock": stock,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return dataID(t, decode(t, rec))
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminRoutesRequireActor(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/admin/orders", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	env := decode(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, "unauthorized", env.Error.Type)

	rec = ts.do(t, http.MethodPost, "/admin/coupons", authorization.RoleStaff, map[string]any{"code": "X"})
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", decode(t, rec).Error.Type)
}

func TestCheckoutFlow(t *testing.T) {
	ts := newTestServer(t)
	variantID := ts.seedVariant(t, "TEE-M", "500", 10)

	rec := ts.do(t, http.MethodGet, "/api/shipping-methods", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	order := map[string]any{
		"items":           []map[string]any{{"variant_id": variantID, "quantity": 2}},
		"shipping_method": "jne-reg",
	}
	rec = ts.do(t, http.MethodPost, "/api/checkout/quote", "", order)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var quote struct {
		Breakdown struct {
			GrandTotal string `json:"grand_total"`
		} `json:"breakdown"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &quote))
	assert.Equal(t, "1050.00", quote.Breakdown.GrandTotal)

	rec = ts.do(t, http.MethodPost, "/api/checkout/orders", "", order, HeaderIdempotencyKey, "key-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	orderID := dataID(t, decode(t, rec))

	rec = ts.do(t, http.MethodPost, "/api/checkout/orders", "", order, HeaderIdempotencyKey, "key-1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, orderID, dataID(t, decode(t, rec)))
	assert.Equal(t, "true", rec.Header().Get("Idempotent-Replayed"))

	rec = ts.do(t, http.MethodGet, "/admin/inventory/"+variantID, authorization.RoleStaff, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var level struct {
		Available int `json:"available"`
		Reserved  int `json:"reserved"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &level))
	assert.Equal(t, 8, level.Available)
	assert.Equal(t, 2, level.Reserved)

	rec = ts.do(t, http.MethodPatch, "/admin/orders/"+orderID+"/status", authorization.RoleStaff, map[string]any{"status": "processing"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPatch, "/admin/orders/"+orderID+"/status", authorization.RoleStaff, map[string]any{"status": "delivered"})
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	env := decode(t, rec)
	assert.Equal(t, "invalid_transition", env.Error.Code)
	assert.Equal(t, "processing", env.Error.Details["from"])

	rec = ts.do(t, http.MethodPatch, "/admin/orders/"+orderID+"/status", authorization.RoleStaff, map[string]any{"status": "cancelled"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/admin/orders/"+orderID+"/reopen", authorization.RoleStaff, map[string]any{"status": "pending", "reason": "customer called"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodPost, "/admin/orders/"+orderID+"/reopen", authorization.RoleAdmin, map[string]any{"status": "pending", "reason": "customer called"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/admin/audit-logs?entity_type=orders&entity_id="+orderID, authorization.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var logs []map[string]any
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &logs))
	assert.Len(t, logs, 4)
}

func TestValidateCouponErrors(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/admin/coupons", authorization.RoleAdmin, map[string]any{
		"code": "BIG50", "discount_type": "fixed", "discount_value": "50", "min_order_amount": "1000",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/admin/coupons", authorization.RoleAdmin, map[string]any{
		"code": "big50", "discount_type": "fixed", "discount_value": "10",
	})
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	assert.Equal(t, "already exists", decode(t, rec).Error.Message)

	rec = ts.do(t, http.MethodPost, "/api/coupons/validate", "", map[string]any{"code": "BIG50", "subtotal": "999"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	env := decode(t, rec)
	assert.Equal(t, "coupon_error", env.Error.Type)
	assert.Equal(t, "below_minimum_order", env.Error.Code)
	assert.Equal(t, "1.00", env.Error.Details["shortfall"])

	rec = ts.do(t, http.MethodPost, "/api/coupons/validate", "", map[string]any{"code": "BIG50", "subtotal": "1000"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var ok validateCouponResponse
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &ok))
	assert.Equal(t, "50.00", ok.Discount.StringFixed(2))

	rec = ts.do(t, http.MethodPost, "/api/coupons/validate", "", map[string]any{"code": "nonexistent", "subtotal": "100"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "coupon_not_found", decode(t, rec).Error.Code)
}

func TestQuoteRejectsUnknownShipping(t *testing.T) {
	ts := newTestServer(t)
	variantID := ts.seedVariant(t, "MUG", "100", 3)

	rec := ts.do(t, http.MethodPost, "/api/checkout/quote", "", map[string]any{
		"items":           []map[string]any{{"variant_id": variantID, "quantity": 1}},
		"shipping_method": "teleport",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	env := decode(t, rec)
	assert.Equal(t, "validation_error", env.Error.Type)
	require.Len(t, env.Error.Errors, 1)
	assert.Equal(t, "shipping_method", env.Error.Errors[0].Field)
}

func TestOrderNotFound(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/admin/orders/123456789", authorization.RoleStaff, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "order_not_found", decode(t, rec).Error.Code)
}

func TestDownloadInvoice(t *testing.T) {
	ts := newTestServer(t)
	variantID := ts.seedVariant(t, "CAP", "75", 4)

	rec := ts.do(t, http.MethodPost, "/api/checkout/orders", "", map[string]any{
		"items":           []map[string]any{{"variant_id": variantID, "quantity": 1}},
		"shipping_method": "pickup",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	orderID := dataID(t, decode(t, rec))

	rec = ts.do(t, http.MethodGet, "/admin/orders/"+orderID+"/invoice.pdf", authorization.RoleStaff, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "INV-20240601-0001")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
}
