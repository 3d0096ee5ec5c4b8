package guard

import (
	"errors"
	"time"

	billingdomain "github.com/ecodeli/ecodeli/internal/billing/domain"
)

var (
	ErrBillingNotDue = errors.New("billing_not_due")
	ErrPeriodBilled  = errors.New("billing_period_already_billed")
)

// EnsureBillingDue allows the monthly run from the billing day onward.
func EnsureBillingDue(now time.Time, billingDay int) error {
	if now.UTC().Day() < billingDay {
		return ErrBillingNotDue
	}
	return nil
}

// EnsurePeriodNeedsRun rejects a period whose last run left no provider in error.
func EnsurePeriodNeedsRun(lastRun *billingdomain.BillingRun) error {
	if lastRun != nil && lastRun.Clean() {
		return ErrPeriodBilled
	}
	return nil
}
