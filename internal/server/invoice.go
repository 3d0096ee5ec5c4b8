package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/ecodeli/ecodeli/internal/invoice/domain"
	providerdomain "github.com/ecodeli/ecodeli/internal/provider/domain"
	"github.com/gin-gonic/gin"
)

const defaultInvoicePageSize = 50

type transferFailedRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (s *Server) ListProviderInvoices(c *gin.Context) {
	provider, err := s.resolveProvider(c, c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	limit, offset, err := parsePage(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items, err := s.invoiceSvc.List(c.Request.Context(), invoicedomain.ListRequest{
		ProviderID: &provider.ID,
		Period:     strings.TrimSpace(c.Query("period")),
		Status:     strings.TrimSpace(c.Query("status")),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) GetInvoiceByID(c *gin.Context) {
	detail, err := s.loadVisibleInvoice(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": detail})
}

func (s *Server) DownloadInvoicePDF(c *gin.Context) {
	detail, err := s.loadVisibleInvoice(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	doc, err := s.invoiceSvc.RenderPDF(c.Request.Context(), detail.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.DataFromReader(http.StatusOK, -1, "application/pdf", doc.Body, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, doc.Filename),
	})
}

func (s *Server) MarkInvoicePaid(c *gin.Context) {
	id, err := parseInvoiceID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	detail, err := s.invoiceSvc.MarkPaid(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": detail})
}

func (s *Server) MarkTransferFailed(c *gin.Context) {
	id, err := parseInvoiceID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req transferFailedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("reason", "required", "reason is required"))
		return
	}

	detail, err := s.invoiceSvc.MarkTransferFailed(c.Request.Context(), id, req.Reason)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": detail})
}

// resolveProvider maps a path id (or "me") to a provider the actor may see.
func (s *Server) resolveProvider(c *gin.Context, raw string) (*providerdomain.Provider, error) {
	actor, ok := actorFromContext(c)
	if !ok {
		return nil, ErrUnauthorized
	}
	ctx := c.Request.Context()

	raw = strings.TrimSpace(raw)
	if raw == "me" {
		provider, err := s.providerRepo.FindByUserID(ctx, s.db, actor.ID)
		if err != nil {
			return nil, err
		}
		if provider == nil {
			return nil, providerdomain.ErrProviderNotFound
		}
		return provider, nil
	}

	id, err := snowflake.ParseString(raw)
	if err != nil || id == 0 {
		return nil, newValidationError("id", "invalid_id", "invalid id")
	}
	provider, err := s.providerRepo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, providerdomain.ErrProviderNotFound
	}
	if provider.UserID != actor.ID && !s.canViewAnyInvoice(c) {
		return nil, ErrForbidden
	}
	return provider, nil
}

// loadVisibleInvoice hides other providers' invoices behind a 404 unless the
// actor may read any invoice.
func (s *Server) loadVisibleInvoice(c *gin.Context) (invoicedomain.InvoiceDetail, error) {
	actor, ok := actorFromContext(c)
	if !ok {
		return invoicedomain.InvoiceDetail{}, ErrUnauthorized
	}
	id, err := parseInvoiceID(c)
	if err != nil {
		return invoicedomain.InvoiceDetail{}, err
	}

	detail, err := s.invoiceSvc.Get(c.Request.Context(), id)
	if err != nil {
		return invoicedomain.InvoiceDetail{}, err
	}
	if detail.Provider.UserID != actor.ID && !s.canViewAnyInvoice(c) {
		return invoicedomain.InvoiceDetail{}, invoicedomain.ErrInvoiceNotFound
	}
	return detail, nil
}

func parseInvoiceID(c *gin.Context) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil || id == 0 {
		return 0, newValidationError("id", "invalid_id", "invalid id")
	}
	return id, nil
}

func parsePage(c *gin.Context) (int, int, error) {
	limit := defaultInvoicePageSize
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return 0, 0, newValidationError("limit", "invalid_limit", "limit must be a positive integer")
		}
		limit = parsed
	}
	offset := 0
	if raw := strings.TrimSpace(c.Query("offset")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return 0, 0, newValidationError("offset", "invalid_offset", "offset must not be negative")
		}
		offset = parsed
	}
	return limit, offset, nil
}
