package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (s *Server) DownloadInvoice(c *gin.Context) {
	doc, err := s.invoiceSvc.RenderInvoicePDF(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", doc.FileName))
	c.Header("X-Invoice-Number", doc.Number)
	c.Data(http.StatusOK, "application/pdf", doc.Content)
}
