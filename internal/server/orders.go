package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	orderdomain "github.com/smallbiznis/storefront/internal/order/domain"
	"github.com/smallbiznis/storefront/pkg/db/pagination"
)

func (s *Server) ListOrders(c *gin.Context) {
	var query struct {
		PageToken string `form:"page_token"`
		PageSize  int    `form:"page_size"`
		Status    string `form:"status"`
		UserID    string `form:"user_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.orderSvc.ListOrders(c.Request.Context(), orderdomain.ListOrdersRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
		Status: strings.TrimSpace(query.Status),
		UserID: strings.TrimSpace(query.UserID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": resp.Orders, "page_info": resp.PageInfo})
}

func (s *Server) GetOrder(c *gin.Context) {
	resp, err := s.orderSvc.GetOrder(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, resp)
}

func (s *Server) UpdateOrderStatus(c *gin.Context) {
	var req orderdomain.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.OrderID = strings.TrimSpace(c.Param("id"))

	resp, err := s.orderSvc.UpdateOrderStatus(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, resp)
}

func (s *Server) ReopenOrder(c *gin.Context) {
	var req orderdomain.ReopenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.OrderID = strings.TrimSpace(c.Param("id"))

	resp, err := s.orderSvc.ReopenOrder(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, resp)
}

func (s *Server) UpdateShipment(c *gin.Context) {
	var req orderdomain.UpdateShipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.OrderID = strings.TrimSpace(c.Param("id"))

	resp, err := s.orderSvc.UpdateShipment(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, resp)
}

func (s *Server) ListFulfillments(c *gin.Context) {
	resp, err := s.orderSvc.ListFulfillments(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, resp)
}

func (s *Server) UpsertFulfillment(c *gin.Context) {
	var req orderdomain.UpsertFulfillmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.OrderID = strings.TrimSpace(c.Param("id"))

	resp, err := s.orderSvc.UpsertFulfillment(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, resp)
}
