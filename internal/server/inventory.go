package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	inventorydomain "github.com/smallbiznis/storefront/internal/inventory/domain"
	"github.com/smallbiznis/storefront/pkg/db/pagination"
)

func (s *Server) GetInventoryLevel(c *gin.Context) {
	resp, err := s.inventorySvc.GetLevel(c.Request.Context(), strings.TrimSpace(c.Param("variantId")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, resp)
}

func (s *Server) AdjustInventory(c *gin.Context) {
	var req inventorydomain.AdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.VariantID = strings.TrimSpace(c.Param("variantId"))

	resp, err := s.inventorySvc.AdjustStock(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, resp)
}

func (s *Server) ListInventoryLedger(c *gin.Context) {
	var query struct {
		PageToken string `form:"page_token"`
		PageSize  int    `form:"page_size"`
		Reason    string `form:"reason"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.inventorySvc.ListLedger(c.Request.Context(), inventorydomain.ListLedgerRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
		VariantID: strings.TrimSpace(c.Param("variantId")),
		Reason:    strings.TrimSpace(query.Reason),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": resp.Entries, "page_info": resp.PageInfo})
}

func (s *Server) ReconcileInventory(c *gin.Context) {
	resp, err := s.inventorySvc.Reconcile(c.Request.Context(), strings.TrimSpace(c.Param("variantId")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, resp)
}
