package domain

import (
	"context"
	"errors"

	"github.com/ecodeli/ecodeli/internal/plan"
	"github.com/ecodeli/ecodeli/internal/pricing/engine"
	"github.com/shopspring/decimal"
)

// QuoteRequest asks for an advisory price. Plan wins over UserID when both are set.
type QuoteRequest struct {
	UserID         string          `json:"-"`
	Plan           string          `json:"plan"`
	BasePrice      decimal.Decimal `json:"base_price"`
	IsPriority     bool            `json:"is_priority"`
	IsSmallPackage bool            `json:"is_small_package"`
}

// CheckoutRequest prices a delivery for the calling client. ExpectedPrice is
// the price the client displayed; it is checked, never trusted.
type CheckoutRequest struct {
	UserID         string           `json:"-"`
	BasePrice      decimal.Decimal  `json:"base_price"`
	IsPriority     bool             `json:"is_priority"`
	IsSmallPackage bool             `json:"is_small_package"`
	ExpectedPrice  *decimal.Decimal `json:"expected_price,omitempty"`
}

type CheckoutResult struct {
	engine.Quote
	PriorityCreditUsed bool `json:"priority_credit_used"`
}

type StorageQuoteRequest struct {
	UserID      string          `json:"-"`
	Plan        string          `json:"plan"`
	PricePerDay decimal.Decimal `json:"price_per_day"`
	Days        int             `json:"days"`
}

type InsuranceRequest struct {
	UserID string          `json:"-"`
	Plan   string          `json:"plan"`
	Value  decimal.Decimal `json:"value"`
}

type InsuranceResult struct {
	Plan     plan.Tier       `json:"plan"`
	Value    decimal.Decimal `json:"value"`
	Limit    decimal.Decimal `json:"limit"`
	Eligible bool            `json:"eligible"`
}

type Service interface {
	Preview(ctx context.Context, req QuoteRequest) (engine.Quote, error)
	Checkout(ctx context.Context, req CheckoutRequest) (CheckoutResult, error)
	StorageQuote(ctx context.Context, req StorageQuoteRequest) (engine.StorageQuote, error)
	Insurance(ctx context.Context, req InsuranceRequest) (InsuranceResult, error)
}

var (
	ErrQuoteMismatch = errors.New("quote_mismatch")
	ErrMissingPlan   = errors.New("missing_plan")
)
