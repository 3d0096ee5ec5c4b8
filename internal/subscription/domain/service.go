package domain

import (
	"context"
	"errors"
	"time"

	"github.com/ecodeli/ecodeli/internal/plan"
)

type ChangePlanRequest struct {
	UserID string
	Plan   string
}

type Service interface {
	ActivePlan(ctx context.Context, userID string) (plan.Tier, error)
	Get(ctx context.Context, userID string) (SubscriptionView, error)
	ChangePlan(ctx context.Context, req ChangePlanRequest) (SubscriptionView, error)
	PriorityCreditsRemaining(ctx context.Context, userID string, at time.Time) (PriorityCredits, error)
	// ConsumePriorityCredit takes one monthly priority credit when the user's plan
	// has a quota, then calls confirm with whether the credit covered the request.
	// An error from confirm gives the credit back.
	ConsumePriorityCredit(ctx context.Context, userID string, at time.Time, confirm func(covered bool) error) error
}

var (
	ErrInvalidUser = errors.New("invalid_user")
)
