package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/ecodeli/ecodeli/internal/billing/domain"
	"github.com/ecodeli/ecodeli/internal/clock"
	"github.com/ecodeli/ecodeli/internal/config"
	obsmetrics "github.com/ecodeli/ecodeli/internal/observability/metrics"
	"github.com/ecodeli/ecodeli/internal/period"
	"github.com/ecodeli/ecodeli/internal/scheduler/guard"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const JobMonthlyBilling = "monthly_billing"

type Params struct {
	fx.In

	Log        *zap.Logger
	BillingSvc billingdomain.Service
	Billing    *config.BillingConfigHolder
	GenID      *snowflake.Node
	Clock      clock.Clock
	Metrics    *obsmetrics.BillingMetrics `optional:"true"`
	Config     Config                     `optional:"true"`
}

type Scheduler struct {
	log        *zap.Logger
	cfg        Config
	genID      *snowflake.Node
	clock      clock.Clock
	billingSvc billingdomain.Service
	billing    *config.BillingConfigHolder
	metrics    *obsmetrics.BillingMetrics
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.BillingSvc == nil || p.GenID == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:        p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:        p.Config.withDefaults(),
		genID:      p.GenID,
		clock:      p.Clock,
		billingSvc: p.BillingSvc,
		billing:    p.Billing,
		metrics:    p.Metrics,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	s.metrics.IncJobRun(name)

	err := fn(ctx)
	s.metrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// A timeout is soft: the next tick picks the work up again.
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		s.metrics.IncJobTimeout(name)
	}
	s.metrics.IncJobError(name, obsmetrics.ClassifyJobReason(err))
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name    string
		Enabled bool
		Run     func(context.Context) error
	}{
		{JobMonthlyBilling, s.isJobEnabled(JobMonthlyBilling), func(ctx context.Context) error {
			return s.runJob(ctx, JobMonthlyBilling, s.cfg.BillingJobTimeout, s.MonthlyBillingJob)
		}},
	}

	for _, job := range jobs {
		if job.Enabled {
			err = errors.Join(err, job.Run(parent))
		}
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// If EnabledJobs is empty, all jobs are enabled by default
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// MonthlyBillingJob bills the previous month once the billing day is reached,
// and keeps retrying until a run for that month finishes without errors.
func (s *Scheduler) MonthlyBillingJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobMonthlyBilling)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	now := s.clock.Now()
	target := period.Previous(now)
	log := s.logger(ctx).With(zap.String("period", target.String()))

	if err := guard.EnsureBillingDue(now, s.billing.Get().BillingDay); err != nil {
		log.Debug("scheduler.billing.not_due")
		return nil
	}

	status, err := s.billingSvc.Status(ctx)
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.billing.status_failed", JobMonthlyBilling, err)
		return err
	}
	if status.BilledPeriod == target.String() {
		if err := guard.EnsurePeriodNeedsRun(status.LastRun); err != nil {
			log.Debug("scheduler.billing.already_billed", zap.String("last_run_id", status.LastRun.RunID))
			return nil
		}
	}

	result, err := s.billingSvc.RunMonthlyBilling(ctx, billingdomain.RunRequest{
		Period:  target.String(),
		Trigger: obsmetrics.TriggerScheduler,
	})
	if errors.Is(err, billingdomain.ErrRunInProgress) {
		log.Info("scheduler.billing.in_progress")
		return nil
	}
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.billing.failed", JobMonthlyBilling, err)
		return err
	}

	run.AddProcessed(result.Processed)
	for _, r := range result.Results {
		if r.Status != billingdomain.ProviderStatusError {
			continue
		}
		s.logSchedulerError(ctx, run, "scheduler.billing.provider_failed", JobMonthlyBilling, errors.New(r.Reason),
			zap.String("provider_id", r.ProviderID.String()),
			zap.String("billing_run_id", result.RunID),
		)
	}
	return nil
}
