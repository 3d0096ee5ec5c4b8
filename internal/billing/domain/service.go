package domain

import (
	"context"
	"errors"
)

type Service interface {
	RunMonthlyBilling(ctx context.Context, req RunRequest) (RunResult, error)
	Status(ctx context.Context) (StatusResult, error)
}

var (
	ErrRunInProgress          = errors.New("billing_run_in_progress")
	ErrInvoiceNumberCollision = errors.New("invoice_number_collision")
)
