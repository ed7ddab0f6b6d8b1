package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	coupondomain "github.com/smallbiznis/storefront/internal/coupon/domain"
)

func (s *Server) CreateCoupon(c *gin.Context) {
	var req coupondomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.couponSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusCreated, resp)
}

func (s *Server) ListCoupons(c *gin.Context) {
	var query struct {
		Code    string `form:"code"`
		Active  string `form:"active"`
		SortBy  string `form:"sort_by"`
		OrderBy string `form:"order_by"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	active, err := parseOptionalBool(query.Active)
	if err != nil {
		AbortWithError(c, newValidationError("active", "invalid_active", "invalid active"))
		return
	}

	resp, err := s.couponSvc.List(c.Request.Context(), coupondomain.ListRequest{
		CodePrefix: strings.TrimSpace(query.Code),
		Active:     active,
		SortBy:     strings.TrimSpace(query.SortBy),
		OrderBy:    strings.TrimSpace(query.OrderBy),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, resp)
}

func (s *Server) GetCoupon(c *gin.Context) {
	resp, err := s.couponSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, adminCouponError(err))
		return
	}

	respond(c, http.StatusOK, resp)
}

func (s *Server) UpdateCoupon(c *gin.Context) {
	var req coupondomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ID = strings.TrimSpace(c.Param("id"))

	resp, err := s.couponSvc.Update(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, adminCouponError(err))
		return
	}

	respond(c, http.StatusOK, resp)
}

func (s *Server) ListCouponUsages(c *gin.Context) {
	resp, err := s.couponSvc.ListUsages(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, adminCouponError(err))
		return
	}

	respond(c, http.StatusOK, resp)
}

// adminCouponError reports a missing coupon as a lookup failure rather than
// a redemption rejection.
func adminCouponError(err error) error {
	if errors.Is(err, coupondomain.ErrCouponNotFound) {
		return ErrNotFound
	}
	return err
}
