package service

import (
	"context"
	"errors"
	"strings"

	"github.com/ecodeli/ecodeli/internal/clock"
	obslogger "github.com/ecodeli/ecodeli/internal/observability/logger"
	obsmetrics "github.com/ecodeli/ecodeli/internal/observability/metrics"
	"github.com/ecodeli/ecodeli/internal/plan"
	pricingdomain "github.com/ecodeli/ecodeli/internal/pricing/domain"
	"github.com/ecodeli/ecodeli/internal/pricing/engine"
	subscriptiondomain "github.com/ecodeli/ecodeli/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Service struct {
	log           *zap.Logger
	clock         clock.Clock
	subscriptions subscriptiondomain.Service
	metrics       *obsmetrics.BillingMetrics
}

type ServiceParam struct {
	fx.In

	Log           *zap.Logger
	Clock         clock.Clock
	Subscriptions subscriptiondomain.Service
	Metrics       *obsmetrics.BillingMetrics `optional:"true"`
}

func NewService(p ServiceParam) pricingdomain.Service {
	return &Service{
		log:           p.Log.Named("pricing.service"),
		clock:         p.Clock,
		subscriptions: p.Subscriptions,
		metrics:       p.Metrics,
	}
}

func (s *Service) Preview(ctx context.Context, req pricingdomain.QuoteRequest) (engine.Quote, error) {
	tier, err := s.resolveTier(ctx, req.Plan, req.UserID)
	if err != nil {
		return engine.Quote{}, err
	}
	quote, err := engine.QuotePrice(req.BasePrice, tier, req.IsPriority, req.IsSmallPackage)
	if err != nil {
		return engine.Quote{}, err
	}
	s.metrics.IncQuote(string(tier), "preview")
	return quote, nil
}

// Checkout recomputes the price from the stored plan. A priority request on a
// plan with a monthly quota consumes one credit, which is given back when the
// client's expected price does not match.
func (s *Service) Checkout(ctx context.Context, req pricingdomain.CheckoutRequest) (pricingdomain.CheckoutResult, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return pricingdomain.CheckoutResult{}, subscriptiondomain.ErrInvalidUser
	}
	if req.BasePrice.IsNegative() {
		return pricingdomain.CheckoutResult{}, engine.ErrInvalidAmount
	}
	tier, err := s.subscriptions.ActivePlan(ctx, userID)
	if err != nil {
		return pricingdomain.CheckoutResult{}, err
	}
	log := obslogger.WithContext(ctx, s.log).With(
		zap.String("user_id", userID),
		zap.String("plan", string(tier)),
	)

	var result pricingdomain.CheckoutResult
	price := func(quotaExhausted bool) error {
		quote, err := engine.Compute(engine.Input{
			BasePrice:              req.BasePrice,
			Tier:                   tier,
			IsPriority:             req.IsPriority,
			IsSmallPackage:         req.IsSmallPackage,
			PriorityQuotaExhausted: quotaExhausted,
		})
		if err != nil {
			return err
		}
		if req.ExpectedPrice != nil && !req.ExpectedPrice.Round(2).Equal(quote.FinalPrice) {
			s.metrics.IncQuoteMismatch(string(tier))
			log.Warn("pricing.checkout.mismatch",
				zap.String("expected", req.ExpectedPrice.StringFixed(2)),
				zap.String("computed", quote.FinalPrice.StringFixed(2)),
			)
			return pricingdomain.ErrQuoteMismatch
		}
		result = pricingdomain.CheckoutResult{Quote: quote, PriorityCreditUsed: quote.PriorityCovered}
		return nil
	}

	if req.IsPriority {
		err = s.subscriptions.ConsumePriorityCredit(ctx, userID, s.clock.Now(), func(covered bool) error {
			return price(!covered)
		})
	} else {
		err = price(false)
	}
	if err != nil {
		if !errors.Is(err, pricingdomain.ErrQuoteMismatch) {
			log.Error("pricing.checkout.failed", zap.Error(err))
		}
		return pricingdomain.CheckoutResult{}, err
	}

	if result.PriorityCreditUsed {
		s.metrics.IncPriorityCreditConsumed()
	}
	s.metrics.IncQuote(string(tier), "checkout")
	log.Info("pricing.checkout.quoted",
		zap.String("base_price", req.BasePrice.StringFixed(2)),
		zap.String("final_price", result.FinalPrice.StringFixed(2)),
		zap.Bool("priority", req.IsPriority),
		zap.Bool("priority_credit_used", result.PriorityCreditUsed),
	)
	return result, nil
}

func (s *Service) StorageQuote(ctx context.Context, req pricingdomain.StorageQuoteRequest) (engine.StorageQuote, error) {
	tier, err := s.resolveTier(ctx, req.Plan, req.UserID)
	if err != nil {
		return engine.StorageQuote{}, err
	}
	quote, err := engine.QuoteStorageRental(req.PricePerDay, req.Days, tier)
	if err != nil {
		return engine.StorageQuote{}, err
	}
	s.metrics.IncQuote(string(tier), "storage")
	return quote, nil
}

func (s *Service) Insurance(ctx context.Context, req pricingdomain.InsuranceRequest) (pricingdomain.InsuranceResult, error) {
	tier, err := s.resolveTier(ctx, req.Plan, req.UserID)
	if err != nil {
		return pricingdomain.InsuranceResult{}, err
	}
	eligible, err := engine.CanUseInsurance(tier, req.Value)
	if err != nil {
		return pricingdomain.InsuranceResult{}, err
	}
	p, err := plan.Lookup(tier)
	if err != nil {
		return pricingdomain.InsuranceResult{}, err
	}
	return pricingdomain.InsuranceResult{
		Plan:     tier,
		Value:    req.Value,
		Limit:    p.MaxInsurableValue,
		Eligible: eligible,
	}, nil
}

func (s *Service) resolveTier(ctx context.Context, rawPlan, userID string) (plan.Tier, error) {
	if strings.TrimSpace(rawPlan) != "" {
		return plan.ParseTier(rawPlan)
	}
	if strings.TrimSpace(userID) == "" {
		return "", pricingdomain.ErrMissingPlan
	}
	return s.subscriptions.ActivePlan(ctx, userID)
}
