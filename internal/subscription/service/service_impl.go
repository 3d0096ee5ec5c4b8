package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/ecodeli/ecodeli/internal/clock"
	"github.com/ecodeli/ecodeli/internal/plan"
	subscriptiondomain "github.com/ecodeli/ecodeli/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  subscriptiondomain.Repository
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  subscriptiondomain.Repository
}

func NewService(p ServiceParam) subscriptiondomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("subscription.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

// ActivePlan resolves the tier to price with. Missing or cancelled subscriptions are FREE.
func (s *Service) ActivePlan(ctx context.Context, userID string) (plan.Tier, error) {
	sub, err := s.active(ctx, userID)
	if err != nil {
		return "", err
	}
	if sub == nil {
		return plan.TierFree, nil
	}
	return sub.Plan, nil
}

func (s *Service) Get(ctx context.Context, userID string) (subscriptiondomain.SubscriptionView, error) {
	sub, err := s.active(ctx, userID)
	if err != nil {
		return subscriptiondomain.SubscriptionView{}, err
	}

	view := subscriptiondomain.SubscriptionView{
		UserID: strings.TrimSpace(userID),
		Plan:   plan.TierFree,
		Status: subscriptiondomain.SubscriptionStatusActive,
	}
	if sub != nil {
		since := sub.CurrentPeriodStart
		view.Plan = sub.Plan
		view.Since = &since
	}

	credits, err := s.credits(ctx, view.UserID, view.Plan, s.clock.Now())
	if err != nil {
		return subscriptiondomain.SubscriptionView{}, err
	}
	view.PriorityCredits = credits
	return view, nil
}

func (s *Service) ChangePlan(ctx context.Context, req subscriptiondomain.ChangePlanRequest) (subscriptiondomain.SubscriptionView, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return subscriptiondomain.SubscriptionView{}, subscriptiondomain.ErrInvalidUser
	}
	tier, err := plan.ParseTier(req.Plan)
	if err != nil {
		return subscriptiondomain.SubscriptionView{}, err
	}

	now := s.clock.Now()
	periodEnd := now.AddDate(0, 1, 0)
	sub := &subscriptiondomain.Subscription{
		ID:                 s.genID.Generate(),
		UserID:             userID,
		Plan:               tier,
		Status:             subscriptiondomain.SubscriptionStatusActive,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   &periodEnd,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.Upsert(ctx, s.db, sub); err != nil {
		return subscriptiondomain.SubscriptionView{}, err
	}

	s.log.Info("subscription.plan.changed",
		zap.String("user_id", userID),
		zap.String("plan", string(tier)),
	)
	return s.Get(ctx, userID)
}

func (s *Service) PriorityCreditsRemaining(ctx context.Context, userID string, at time.Time) (subscriptiondomain.PriorityCredits, error) {
	tier, err := s.ActivePlan(ctx, userID)
	if err != nil {
		return subscriptiondomain.PriorityCredits{}, err
	}
	return s.credits(ctx, strings.TrimSpace(userID), tier, at)
}

func (s *Service) ConsumePriorityCredit(ctx context.Context, userID string, at time.Time, confirm func(covered bool) error) error {
	userID = strings.TrimSpace(userID)
	tier, err := s.ActivePlan(ctx, userID)
	if err != nil {
		return err
	}
	p, err := plan.Lookup(tier)
	if err != nil {
		return err
	}
	if !p.HasPriorityQuota() {
		return confirm(false)
	}

	at = at.UTC()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.EnsureCreditUsage(ctx, tx, &subscriptiondomain.PriorityCreditUsage{
			ID:        s.genID.Generate(),
			UserID:    userID,
			Year:      at.Year(),
			Month:     int(at.Month()),
			CreatedAt: at,
			UpdatedAt: at,
		}); err != nil {
			return err
		}

		covered, err := s.repo.IncrementCreditUsage(ctx, tx, userID, at.Year(), at.Month(), p.MonthlyPriorityQuota, at)
		if err != nil {
			return err
		}
		if err := confirm(covered); err != nil {
			return err
		}
		if covered {
			s.log.Debug("subscription.priority_credit.consumed", zap.String("user_id", userID))
		}
		return nil
	})
}

func (s *Service) active(ctx context.Context, userID string) (*subscriptiondomain.Subscription, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, subscriptiondomain.ErrInvalidUser
	}
	sub, err := s.repo.FindByUserID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if sub == nil || sub.Status != subscriptiondomain.SubscriptionStatusActive {
		return nil, nil
	}
	if !sub.Plan.Valid() {
		return nil, fmt.Errorf("%w: stored subscription plan %q", plan.ErrInvalidPlan, sub.Plan)
	}
	return sub, nil
}

func (s *Service) credits(ctx context.Context, userID string, tier plan.Tier, at time.Time) (subscriptiondomain.PriorityCredits, error) {
	p, err := plan.Lookup(tier)
	if err != nil {
		return subscriptiondomain.PriorityCredits{}, err
	}
	credits := subscriptiondomain.PriorityCredits{Quota: p.MonthlyPriorityQuota}
	if !p.HasPriorityQuota() {
		return credits, nil
	}

	at = at.UTC()
	usage, err := s.repo.FindCreditUsage(ctx, s.db, userID, at.Year(), at.Month())
	if err != nil {
		return subscriptiondomain.PriorityCredits{}, err
	}
	if usage != nil {
		credits.Used = usage.Used
	}
	credits.Remaining = max(credits.Quota-credits.Used, 0)
	return credits, nil
}
