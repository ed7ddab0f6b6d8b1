package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	addressdomain "github.com/smallbiznis/storefront/internal/address/domain"
	coupondomain "github.com/smallbiznis/storefront/internal/coupon/domain"
	orderdomain "github.com/smallbiznis/storefront/internal/order/domain"
	pricingdomain "github.com/smallbiznis/storefront/internal/pricing/domain"
)

func (s *Server) ListShippingMethods(c *gin.Context) {
	respond(c, http.StatusOK, s.pricingSvc.ShippingMethods(c.Request.Context()))
}

type validateCouponRequest struct {
	Code     string          `json:"code"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

type validateCouponResponse struct {
	Coupon   *coupondomain.AppliedCoupon `json:"coupon"`
	Discount decimal.Decimal             `json:"discount"`
}

func (s *Server) ValidateCoupon(c *gin.Context) {
	var req validateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	applied, err := s.couponSvc.Validate(c.Request.Context(), req.Code, req.Subtotal)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, validateCouponResponse{
		Coupon:   applied,
		Discount: coupondomain.ComputeDiscount(req.Subtotal, *applied),
	})
}

func (s *Server) QuoteCheckout(c *gin.Context) {
	var req pricingdomain.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.pricingSvc.Quote(c.Request.Context(), pricingdomain.QuoteRequest{
		Items:          req.Items,
		ShippingMethod: strings.TrimSpace(req.ShippingMethod),
		CouponCode:     strings.TrimSpace(req.CouponCode),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, resp)
}

func (s *Server) PlaceOrder(c *gin.Context) {
	var req orderdomain.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.IdempotencyKey = strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))

	result, err := s.orderSvc.PlaceOrder(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
		c.Header("Idempotent-Replayed", "true")
	}
	respond(c, status, result.Order)
}

func (s *Server) CreateAddress(c *gin.Context) {
	var req addressdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.addressSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusCreated, resp)
}

func (s *Server) ListAddresses(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("user_id"))
	if userID == "" {
		AbortWithError(c, newValidationError("user_id", "required", "user_id is required"))
		return
	}

	resp, err := s.addressSvc.List(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, resp)
}

func (s *Server) GetAddress(c *gin.Context) {
	resp, err := s.addressSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, resp)
}
