package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	productdomain "github.com/smallbiznis/storefront/internal/product/domain"
)

func (s *Server) CreateProduct(c *gin.Context) {
	var req productdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.productSvc.Create(c.Request.Context(), productdomain.CreateRequest{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusCreated, resp)
}

func (s *Server) ListProducts(c *gin.Context) {
	var query struct {
		Name    string `form:"name"`
		SortBy  string `form:"sort_by"`
		OrderBy string `form:"order_by"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.productSvc.List(c.Request.Context(), productdomain.ListRequest{
		Name:    strings.TrimSpace(query.Name),
		SortBy:  strings.TrimSpace(query.SortBy),
		OrderBy: strings.TrimSpace(query.OrderBy),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, resp)
}

func (s *Server) GetProduct(c *gin.Context) {
	resp, err := s.productSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, resp)
}

func (s *Server) CreateVariant(c *gin.Context) {
	var req productdomain.CreateVariantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ProductID = strings.TrimSpace(c.Param("id"))

	resp, err := s.productSvc.CreateVariant(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusCreated, resp)
}

func (s *Server) GetVariant(c *gin.Context) {
	resp, err := s.productSvc.GetVariant(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, resp)
}
