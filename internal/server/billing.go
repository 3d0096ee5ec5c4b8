package server

import (
	"errors"
	"io"
	"net/http"

	billingdomain "github.com/ecodeli/ecodeli/internal/billing/domain"
	obsmetrics "github.com/ecodeli/ecodeli/internal/observability/metrics"
	"github.com/gin-gonic/gin"
)

// TriggerMonthlyBilling runs the reconciler for the requested month. The month
// may come from the JSON body or the query string; the query wins.
func (s *Server) TriggerMonthlyBilling(c *gin.Context) {
	s.runMonthlyBilling(c, obsmetrics.TriggerHTTP)
}

func (s *Server) MonthlyBillingStatus(c *gin.Context) {
	status, err := s.billingSvc.Status(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": status})
}

// RunBillingAsAdmin is the manual trigger available from the back office.
func (s *Server) RunBillingAsAdmin(c *gin.Context) {
	s.runMonthlyBilling(c, obsmetrics.TriggerManual)
}

func (s *Server) runMonthlyBilling(c *gin.Context, trigger string) {
	var req billingdomain.RunRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			AbortWithError(c, invalidRequestError())
			return
		}
	}
	if month := c.Query("month"); month != "" {
		req.Period = month
	}
	if force, err := parseOptionalBool(c.Query("force")); err != nil {
		AbortWithError(c, newValidationError("force", "invalid_force", "force must be a boolean"))
		return
	} else if force != nil {
		req.Force = *force
	}
	req.Trigger = trigger

	result, err := s.billingSvc.RunMonthlyBilling(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}
