package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/ecodeli/ecodeli/internal/clock"
	"github.com/ecodeli/ecodeli/internal/plan"
	subscriptiondomain "github.com/ecodeli/ecodeli/internal/subscription/domain"
	"github.com/ecodeli/ecodeli/internal/subscription/repository"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupService(t *testing.T, now time.Time) (*Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&subscriptiondomain.Subscription{}, &subscriptiondomain.PriorityCreditUsage{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(now)

	svc := NewService(ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Repo:  repository.Provide(),
	}).(*Service)
	return svc, db, fake
}

func TestActivePlan_DefaultsToFree(t *testing.T) {
	svc, _, _ := setupService(t, time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC))

	tier, err := svc.ActivePlan(context.Background(), "client-1")
	require.NoError(t, err)
	assert.Equal(t, plan.TierFree, tier)

	_, err = svc.ActivePlan(context.Background(), " ")
	assert.ErrorIs(t, err, subscriptiondomain.ErrInvalidUser)
}

func TestChangePlan_UpsertsSingleRow(t *testing.T) {
	svc, db, _ := setupService(t, time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	view, err := svc.ChangePlan(ctx, subscriptiondomain.ChangePlanRequest{UserID: "client-1", Plan: "starter"})
	require.NoError(t, err)
	assert.Equal(t, plan.TierStarter, view.Plan)

	view, err = svc.ChangePlan(ctx, subscriptiondomain.ChangePlanRequest{UserID: "client-1", Plan: "PREMIUM"})
	require.NoError(t, err)
	assert.Equal(t, plan.TierPremium, view.Plan)
	assert.Equal(t, 3, view.PriorityCredits.Remaining)

	var count int64
	require.NoError(t, db.Model(&subscriptiondomain.Subscription{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	_, err = svc.ChangePlan(ctx, subscriptiondomain.ChangePlanRequest{UserID: "client-1", Plan: "GOLD"})
	assert.ErrorIs(t, err, plan.ErrInvalidPlan)
}

func TestConsumePriorityCredit_QuotaAndMonthlyReset(t *testing.T) {
	svc, _, fake := setupService(t, time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_, err := svc.ChangePlan(ctx, subscriptiondomain.ChangePlanRequest{UserID: "client-1", Plan: "PREMIUM"})
	require.NoError(t, err)

	var covered []bool
	for i := 0; i < 4; i++ {
		require.NoError(t, svc.ConsumePriorityCredit(ctx, "client-1", fake.Now(), func(ok bool) error {
			covered = append(covered, ok)
			return nil
		}))
	}
	assert.Equal(t, []bool{true, true, true, false}, covered)

	credits, err := svc.PriorityCreditsRemaining(ctx, "client-1", fake.Now())
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.PriorityCredits{Quota: 3, Used: 3, Remaining: 0}, credits)

	june := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	credits, err = svc.PriorityCreditsRemaining(ctx, "client-1", june)
	require.NoError(t, err)
	assert.Equal(t, 3, credits.Remaining)
}

func TestConsumePriorityCredit_ConfirmErrorReturnsCredit(t *testing.T) {
	svc, _, fake := setupService(t, time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_, err := svc.ChangePlan(ctx, subscriptiondomain.ChangePlanRequest{UserID: "client-1", Plan: "PREMIUM"})
	require.NoError(t, err)

	boom := errors.New("quote rejected")
	err = svc.ConsumePriorityCredit(ctx, "client-1", fake.Now(), func(bool) error { return boom })
	assert.ErrorIs(t, err, boom)

	credits, err := svc.PriorityCreditsRemaining(ctx, "client-1", fake.Now())
	require.NoError(t, err)
	assert.Equal(t, 3, credits.Remaining)
}

func TestConsumePriorityCredit_PlanWithoutQuota(t *testing.T) {
	svc, _, fake := setupService(t, time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC))

	var got *bool
	require.NoError(t, svc.ConsumePriorityCredit(context.Background(), "client-2", fake.Now(), func(ok bool) error {
		got = &ok
		return nil
	}))
	require.NotNil(t, got)
	assert.False(t, *got)
}
