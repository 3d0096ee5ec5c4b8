package server

import (
	"net/http"
	"strings"

	"github.com/ecodeli/ecodeli/internal/plan"
	pricingdomain "github.com/ecodeli/ecodeli/internal/pricing/domain"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func (s *Server) ListPlans(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": plan.All()})
}

func (s *Server) PreviewQuote(c *gin.Context) {
	var req pricingdomain.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if actor, ok := actorFromContext(c); ok {
		req.UserID = actor.ID
	}

	quote, err := s.pricingSvc.Preview(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": quote})
}

func (s *Server) Checkout(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req pricingdomain.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.UserID = actor.ID

	result, err := s.pricingSvc.Checkout(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) StorageQuote(c *gin.Context) {
	var req pricingdomain.StorageQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if actor, ok := actorFromContext(c); ok {
		req.UserID = actor.ID
	}

	quote, err := s.pricingSvc.StorageQuote(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": quote})
}

func (s *Server) InsuranceEligibility(c *gin.Context) {
	value, err := decimal.NewFromString(strings.TrimSpace(c.Query("value")))
	if err != nil {
		AbortWithError(c, newValidationError("value", "invalid_value", "value must be a number"))
		return
	}

	req := pricingdomain.InsuranceRequest{
		Plan:  c.Query("plan"),
		Value: value,
	}
	if actor, ok := actorFromContext(c); ok {
		req.UserID = actor.ID
	}

	result, err := s.pricingSvc.Insurance(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}
