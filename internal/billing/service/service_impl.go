package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/ecodeli/ecodeli/internal/billing/domain"
	"github.com/ecodeli/ecodeli/internal/clock"
	"github.com/ecodeli/ecodeli/internal/config"
	interventiondomain "github.com/ecodeli/ecodeli/internal/intervention/domain"
	invoicedomain "github.com/ecodeli/ecodeli/internal/invoice/domain"
	"github.com/ecodeli/ecodeli/internal/lock"
	notificationdomain "github.com/ecodeli/ecodeli/internal/notification/domain"
	obscontext "github.com/ecodeli/ecodeli/internal/observability/context"
	obslogger "github.com/ecodeli/ecodeli/internal/observability/logger"
	obsmetrics "github.com/ecodeli/ecodeli/internal/observability/metrics"
	"github.com/ecodeli/ecodeli/internal/observability/tracing"
	"github.com/ecodeli/ecodeli/internal/period"
	providerdomain "github.com/ecodeli/ecodeli/internal/provider/domain"
	"github.com/ecodeli/ecodeli/pkg/db"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const runLockTTL = 30 * time.Minute

var (
	errAlreadyInvoiced = errors.New(billingdomain.SkipReasonAlreadyInvoiced)
	errNothingToBill   = errors.New(billingdomain.SkipReasonNoCompletedWork)
	errNotBillable     = errors.New(billingdomain.SkipReasonProviderNotBillable)
)

type Params struct {
	fx.In

	DB               *gorm.DB
	Log              *zap.Logger
	GenID            *snowflake.Node
	Clock            clock.Clock
	Config           config.Config
	Billing          *config.BillingConfigHolder
	Repo             billingdomain.Repository
	ProviderRepo     providerdomain.Repository
	InterventionRepo interventiondomain.Repository
	InvoiceRepo      invoicedomain.Repository
	Notifier         notificationdomain.Notifier
	Locker           *lock.Locker               `optional:"true"`
	Metrics          *obsmetrics.BillingMetrics `optional:"true"`
}

type Service struct {
	db               *gorm.DB
	log              *zap.Logger
	genID            *snowflake.Node
	clock            clock.Clock
	billing          *config.BillingConfigHolder
	adminUserIDs     []string
	repo             billingdomain.Repository
	providerRepo     providerdomain.Repository
	interventionRepo interventiondomain.Repository
	invoiceRepo      invoicedomain.Repository
	notifier         notificationdomain.Notifier
	locker           *lock.Locker
	metrics          *obsmetrics.BillingMetrics

	mu      sync.Mutex
	running map[string]struct{}
}

func NewService(p Params) billingdomain.Service {
	return &Service{
		db:               p.DB,
		log:              p.Log.Named("billing.service"),
		genID:            p.GenID,
		clock:            p.Clock,
		billing:          p.Billing,
		adminUserIDs:     p.Config.AdminUserIDs,
		repo:             p.Repo,
		providerRepo:     p.ProviderRepo,
		interventionRepo: p.InterventionRepo,
		invoiceRepo:      p.InvoiceRepo,
		notifier:         p.Notifier,
		locker:           p.Locker,
		metrics:          p.Metrics,
		running:          map[string]struct{}{},
	}
}

// generated is what a committed provider transaction produced.
type generated struct {
	invoice     invoicedomain.Invoice
	transfer    invoicedomain.BankTransfer
	lines       int
	regenerated bool
}

func (s *Service) RunMonthlyBilling(ctx context.Context, req billingdomain.RunRequest) (billingdomain.RunResult, error) {
	startedAt := s.clock.Now()
	target, err := period.ParseOrPrevious(req.Period, startedAt)
	if err != nil {
		return billingdomain.RunResult{}, err
	}
	trigger := strings.TrimSpace(req.Trigger)
	if trigger == "" {
		trigger = obsmetrics.TriggerHTTP
	}
	cfg := s.billing.Get()

	release, err := s.acquire(ctx, target)
	if err != nil {
		return billingdomain.RunResult{}, err
	}
	defer release()

	runID := ulid.Make().String()
	ctx = obscontext.WithRunID(ctx, runID)
	ctx, span := tracing.Start(ctx, "billing", "billing.run",
		attribute.String("billing.period", target.String()),
		attribute.Bool("billing.force", req.Force),
		attribute.String("billing.trigger", trigger),
	)
	defer span.End()

	log := obslogger.WithContext(ctx, s.log).With(zap.String("period", target.String()))
	log.Info("billing.run.start",
		zap.Bool("force", req.Force),
		zap.String("trigger", trigger),
	)

	providers, err := s.providerRepo.ListBillable(ctx, s.db, target.Start(), target.End())
	if err != nil {
		err = fmt.Errorf("list billable providers: %w", err)
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, "list providers")
		s.metrics.ObserveRun(trigger, "failed", time.Since(startedAt))
		log.Error("billing.run.failed", zap.Error(err))
		s.recordRun(ctx, billingdomain.RunResult{
			RunID:       runID,
			Period:      target.String(),
			Force:       req.Force,
			TotalBilled: decimal.Zero,
			StartedAt:   startedAt,
			FinishedAt:  s.clock.Now(),
		}, trigger, err.Error())
		return billingdomain.RunResult{}, err
	}

	results := make([]billingdomain.ProviderResult, len(providers))
	var g errgroup.Group
	g.SetLimit(cfg.Concurrency)
	for i := range providers {
		provider := providers[i]
		g.Go(func() error {
			results[i] = s.processProvider(ctx, provider, target, req.Force, cfg, startedAt)
			return nil
		})
	}
	_ = g.Wait()

	result := billingdomain.RunResult{
		RunID:       runID,
		Period:      target.String(),
		Force:       req.Force,
		Processed:   len(providers),
		TotalBilled: decimal.Zero,
		Results:     results,
		StartedAt:   startedAt,
	}
	for _, r := range results {
		switch r.Status {
		case billingdomain.ProviderStatusSuccess:
			result.Success++
			if r.Total != nil {
				result.TotalBilled = result.TotalBilled.Add(*r.Total)
			}
		case billingdomain.ProviderStatusSkipped:
			result.Skipped++
		default:
			result.Errors++
		}
	}
	result.FinishedAt = s.clock.Now()

	if cfg.NotifyAdmins && result.Success > 0 {
		s.notifyAdmins(ctx, result)
	}
	s.recordRun(ctx, result, trigger, "")

	outcome := "completed"
	if result.Errors > 0 {
		outcome = "partial"
		span.SetStatus(codes.Error, "provider errors")
	}
	billed, _ := result.TotalBilled.Float64()
	s.metrics.AddBilled(billed)
	s.metrics.ObserveRun(trigger, outcome, time.Since(startedAt))
	span.SetAttributes(
		attribute.Int("billing.processed", result.Processed),
		attribute.Int("billing.errors", result.Errors),
	)

	fields := []zap.Field{
		zap.Int("processed", result.Processed),
		zap.Int("success", result.Success),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", result.Errors),
		zap.String("total_billed", result.TotalBilled.StringFixed(2)),
		zap.Int64("duration_ms", result.FinishedAt.Sub(startedAt).Milliseconds()),
	}
	if result.Errors > 0 {
		log.Warn("billing.run.finish", fields...)
	} else {
		log.Info("billing.run.finish", fields...)
	}
	return result, nil
}

func (s *Service) Status(ctx context.Context) (billingdomain.StatusResult, error) {
	now := s.clock.Now()
	target := period.Previous(now)

	stats, err := s.invoiceRepo.CountByPeriod(ctx, s.db, target.Year, int(target.Month))
	if err != nil {
		return billingdomain.StatusResult{}, err
	}
	active, err := s.providerRepo.CountActive(ctx, s.db)
	if err != nil {
		return billingdomain.StatusResult{}, err
	}
	lastRun, err := s.repo.LatestRun(ctx, s.db, target.String())
	if err != nil {
		return billingdomain.StatusResult{}, err
	}

	return billingdomain.StatusResult{
		BilledPeriod:     target.String(),
		InvoiceCount:     stats.InvoiceCount,
		TotalAmount:      stats.TotalAmount,
		PaidCount:        stats.PaidCount,
		PendingTransfers: stats.PendingTransfers,
		ActiveProviders:  active,
		NextBillingDate:  period.NextBillingDate(now, s.billing.Get().BillingDay),
		LastRun:          lastRun,
	}, nil
}

// acquire prevents two whole runs for the same period at once, in this process
// and, when redis is configured, across instances.
func (s *Service) acquire(ctx context.Context, target period.Period) (func(), error) {
	key := "billing:monthly:" + target.String()

	s.mu.Lock()
	if _, busy := s.running[key]; busy {
		s.mu.Unlock()
		return nil, billingdomain.ErrRunInProgress
	}
	s.running[key] = struct{}{}
	s.mu.Unlock()

	unmark := func() {
		s.mu.Lock()
		delete(s.running, key)
		s.mu.Unlock()
	}

	token, ok, err := s.locker.TryLock(ctx, key, runLockTTL)
	if err != nil {
		unmark()
		return nil, fmt.Errorf("acquire billing lock: %w", err)
	}
	if !ok {
		unmark()
		return nil, billingdomain.ErrRunInProgress
	}

	return func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			s.log.Warn("billing lock release failed", zap.String("key", key), zap.Error(err))
		}
		unmark()
	}, nil
}

func (s *Service) processProvider(ctx context.Context, provider providerdomain.Provider, target period.Period, force bool, cfg config.BillingConfig, now time.Time) (result billingdomain.ProviderResult) {
	result = billingdomain.ProviderResult{
		ProviderID:   provider.ID,
		ProviderName: provider.DisplayName,
	}
	log := obslogger.WithContext(ctx, s.log).With(
		zap.String("provider_id", provider.ID.String()),
		zap.String("period", target.String()),
	)

	defer func() {
		if r := recover(); r != nil {
			log.Error("billing.provider.panic", zap.Any("panic", r))
			result.Status = billingdomain.ProviderStatusError
			result.Reason = fmt.Sprintf("panic: %v", r)
		}
		s.metrics.IncProviderResult(string(result.Status), metricReason(result))
	}()

	pctx, cancel := context.WithTimeout(ctx, cfg.ProviderTimeout)
	defer cancel()
	pctx, span := tracing.Start(pctx, "billing", "billing.provider",
		attribute.String("billing.provider_id", provider.ID.String()),
	)
	defer span.End()

	out, err := s.invoiceProvider(pctx, provider, target, force, cfg, now)
	if err != nil {
		err = s.classify(pctx, provider, target, err)
		switch {
		case errors.Is(err, errAlreadyInvoiced):
			result.Status = billingdomain.ProviderStatusSkipped
			result.Reason = billingdomain.SkipReasonAlreadyInvoiced
			log.Info("billing.provider.skipped", zap.String("reason", result.Reason))
		case errors.Is(err, errNothingToBill):
			result.Status = billingdomain.ProviderStatusSkipped
			result.Reason = billingdomain.SkipReasonNoCompletedWork
			log.Info("billing.provider.skipped", zap.String("reason", result.Reason))
		case errors.Is(err, errNotBillable):
			result.Status = billingdomain.ProviderStatusSkipped
			result.Reason = billingdomain.SkipReasonProviderNotBillable
			log.Info("billing.provider.skipped", zap.String("reason", result.Reason))
		default:
			result.Status = billingdomain.ProviderStatusError
			result.Reason = err.Error()
			span.RecordError(tracing.SafeError(err))
			span.SetStatus(codes.Error, "provider billing failed")
			log.Error("billing.provider.failed",
				zap.String("error_type", obsmetrics.ClassifyJobReason(err)),
				zap.Error(err),
			)
		}
		return result
	}

	invoiceID := out.invoice.ID
	total := out.invoice.Total
	result.Status = billingdomain.ProviderStatusSuccess
	result.InvoiceID = &invoiceID
	result.InvoiceNumber = out.invoice.InvoiceNumber
	result.Total = &total
	result.Regenerated = out.regenerated

	if out.regenerated {
		log.Warn("billing.invoice.regenerated",
			zap.String("invoice_id", invoiceID.String()),
			zap.String("invoice_number", out.invoice.InvoiceNumber),
		)
	}
	log.Info("billing.invoice.generated",
		zap.String("invoice_id", invoiceID.String()),
		zap.String("invoice_number", out.invoice.InvoiceNumber),
		zap.Int("lines", out.lines),
		zap.String("subtotal", out.invoice.Subtotal.StringFixed(2)),
		zap.String("total", total.StringFixed(2)),
		zap.String("billing_mode", string(out.invoice.BillingMode)),
	)

	result.Notified = s.notifyProvider(pctx, provider, out, target)
	return result
}

// invoiceProvider writes the invoice, its lines and the transfer in one transaction.
func (s *Service) invoiceProvider(ctx context.Context, provider providerdomain.Provider, target period.Period, force bool, cfg config.BillingConfig, now time.Time) (generated, error) {
	var out generated
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The provider may have been deactivated since the run listed it.
		current, err := s.providerRepo.FindByID(ctx, tx, provider.ID)
		if err != nil {
			return err
		}
		if current == nil || !current.Billable() {
			return errNotBillable
		}
		provider = *current

		existing, err := s.invoiceRepo.FindByProviderPeriod(ctx, tx, provider.ID, target.Year, int(target.Month), true)
		if err != nil {
			return err
		}
		if existing != nil {
			if !force {
				return errAlreadyInvoiced
			}
			if existing.Status == invoicedomain.InvoiceStatusPaid {
				return fmt.Errorf("regenerate %s: %w", existing.InvoiceNumber, invoicedomain.ErrInvoiceAlreadyPaid)
			}
			if err := s.invoiceRepo.DeleteInvoice(ctx, tx, existing.ID); err != nil {
				return err
			}
			out.regenerated = true
		}

		listed, err := s.interventionRepo.ListUnbilled(ctx, tx, provider.ID, target.Start(), target.End())
		if err != nil {
			return err
		}
		items := listed[:0]
		for _, item := range listed {
			if item.CompletedAt != nil && target.Contains(*item.CompletedAt) {
				items = append(items, item)
			}
		}
		if len(items) == 0 {
			return errNothingToBill
		}

		bank := provider.BankDetails()
		if err := bank.Validate(); err != nil {
			return err
		}

		mode := provider.BillingMode
		if !mode.Valid() {
			mode = providerdomain.BillingModeVATExclusive
		}
		amounts := computeBreakdown(items, provider.EffectiveCommissionRate(cfg.CommissionRate()), cfg.VAT(), mode)

		invoice := invoicedomain.Invoice{
			ID:               s.genID.Generate(),
			ProviderID:       provider.ID,
			PeriodYear:       target.Year,
			PeriodMonth:      int(target.Month),
			InvoiceNumber:    invoiceNumber(target, provider),
			Status:           invoicedomain.InvoiceStatusGenerated,
			BillingMode:      mode,
			Currency:         cfg.Currency,
			Subtotal:         amounts.Subtotal,
			CommissionRate:   amounts.CommissionRate,
			CommissionAmount: amounts.CommissionAmount,
			NetAmount:        amounts.NetAmount,
			VATRate:          amounts.VATRate,
			VATAmount:        amounts.VATAmount,
			Total:            amounts.Total,
			PeriodStart:      target.Start(),
			PeriodEnd:        target.End(),
			IssuedAt:         now,
			DueAt:            now.AddDate(0, 0, cfg.InvoiceDueDays),
			Metadata: datatypes.JSONMap{
				"intervention_count": len(items),
				"total_hours":        amounts.TotalHours.String(),
				"commission_rate":    amounts.CommissionRate.String(),
				"vat_rate":           amounts.VATRate.String(),
				"billing_mode":       string(mode),
				"run_id":             obscontext.RunIDFromContext(ctx),
				"regenerated":        out.regenerated,
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.invoiceRepo.InsertInvoice(ctx, tx, &invoice); err != nil {
			return err
		}

		lines := make([]invoicedomain.InvoiceLineItem, 0, len(items))
		for i, item := range items {
			description := strings.TrimSpace(item.Description)
			if description == "" {
				description = "Intervention " + item.ID.String()
			}
			lines = append(lines, invoicedomain.InvoiceLineItem{
				ID:             s.genID.Generate(),
				InvoiceID:      invoice.ID,
				InterventionID: item.ID,
				Position:       i + 1,
				Description:    description,
				Quantity:       item.DurationMinutes,
				UnitPrice:      item.UnitPrice,
				Amount:         item.TotalPrice,
				CompletedAt:    *item.CompletedAt,
				CreatedAt:      now,
			})
		}
		if err := s.invoiceRepo.InsertLines(ctx, tx, lines); err != nil {
			return err
		}

		transfer := invoicedomain.BankTransfer{
			ID:            s.genID.Generate(),
			InvoiceID:     invoice.ID,
			ProviderID:    provider.ID,
			Reference:     ulid.Make().String(),
			Amount:        invoice.Total,
			Currency:      invoice.Currency,
			RecipientName: bank.AccountHolder,
			RecipientIBAN: bank.IBAN,
			RecipientBIC:  bank.BIC,
			Status:        invoicedomain.TransferStatusPending,
			Simulated:     true,
			ScheduledAt:   now.AddDate(0, 0, cfg.TransferGraceDays),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.invoiceRepo.InsertTransfer(ctx, tx, &transfer); err != nil {
			return err
		}

		out.invoice = invoice
		out.transfer = transfer
		out.lines = len(lines)
		return nil
	})
	if err != nil {
		return generated{}, err
	}
	return out, nil
}

// classify turns a unique violation into either a lost race for the same
// (provider, period), which is a skip, or an invoice number collision.
func (s *Service) classify(ctx context.Context, provider providerdomain.Provider, target period.Period, err error) error {
	if !db.IsDuplicateKeyErr(err) {
		return err
	}
	existing, lookupErr := s.invoiceRepo.FindByProviderPeriod(ctx, s.db, provider.ID, target.Year, int(target.Month), false)
	if lookupErr == nil && existing != nil {
		return errAlreadyInvoiced
	}
	number := invoiceNumber(target, provider)
	clash, lookupErr := s.invoiceRepo.FindByNumber(ctx, s.db, number)
	if lookupErr == nil && clash != nil && clash.ProviderID != provider.ID {
		return fmt.Errorf("%w: %s already issued to provider %s", billingdomain.ErrInvoiceNumberCollision, number, clash.ProviderID)
	}
	return err
}

func (s *Service) notifyProvider(ctx context.Context, provider providerdomain.Provider, out generated, target period.Period) bool {
	log := obslogger.WithContext(ctx, s.log).With(
		zap.String("provider_id", provider.ID.String()),
		zap.String("invoice_id", out.invoice.ID.String()),
	)

	message := fmt.Sprintf("Your invoice %s for %s is available: %s %s. The transfer is scheduled for %s.",
		out.invoice.InvoiceNumber,
		target.String(),
		out.invoice.Total.StringFixed(2),
		out.invoice.Currency,
		out.transfer.ScheduledAt.Format("2006-01-02"),
	)
	err := s.notifier.Notify(ctx, provider.UserID, "Monthly invoice available", message, notificationdomain.TypeInvoiceGenerated, map[string]any{
		"invoice_id":     out.invoice.ID.String(),
		"invoice_number": out.invoice.InvoiceNumber,
		"period":         target.String(),
		"amount":         out.invoice.Total.StringFixed(2),
		"currency":       out.invoice.Currency,
	})
	if err != nil {
		s.metrics.IncNotificationFailure("provider")
		log.Warn("billing.notification.failed", zap.String("kind", "provider"), zap.Error(err))
		return false
	}

	if _, err := s.invoiceRepo.MarkSent(ctx, s.db, out.invoice.ID, s.clock.Now()); err != nil {
		log.Warn("billing.invoice.mark_sent_failed", zap.Error(err))
	}
	return true
}

func (s *Service) notifyAdmins(ctx context.Context, result billingdomain.RunResult) {
	if len(s.adminUserIDs) == 0 {
		return
	}
	message := fmt.Sprintf("Billing %s: %d invoices generated, %d skipped, %d errors, %s billed.",
		result.Period,
		result.Success,
		result.Skipped,
		result.Errors,
		result.TotalBilled.StringFixed(2),
	)
	data := map[string]any{
		"period":       result.Period,
		"processed":    result.Processed,
		"success":      result.Success,
		"skipped":      result.Skipped,
		"errors":       result.Errors,
		"total_billed": result.TotalBilled.StringFixed(2),
	}
	for _, adminID := range s.adminUserIDs {
		if err := s.notifier.Notify(ctx, adminID, "Monthly billing summary", message, notificationdomain.TypeBillingSummary, data); err != nil {
			s.metrics.IncNotificationFailure("admin")
			obslogger.WithContext(ctx, s.log).Warn("billing.notification.failed",
				zap.String("kind", "admin"),
				zap.String("admin_id", adminID),
				zap.Error(err),
			)
		}
	}
}

func (s *Service) recordRun(ctx context.Context, result billingdomain.RunResult, trigger, failure string) {
	run := billingdomain.BillingRun{
		ID:          s.genID.Generate(),
		RunID:       result.RunID,
		Period:      result.Period,
		Trigger:     trigger,
		Force:       result.Force,
		Processed:   result.Processed,
		Success:     result.Success,
		Skipped:     result.Skipped,
		Errors:      result.Errors,
		TotalBilled: result.TotalBilled,
		StartedAt:   result.StartedAt,
		FinishedAt:  result.FinishedAt,
		Failure:     failure,
	}
	if err := s.repo.InsertRun(context.WithoutCancel(ctx), s.db, &run); err != nil {
		obslogger.WithContext(ctx, s.log).Warn("billing.run.record_failed", zap.Error(err))
	}
}

func invoiceNumber(target period.Period, provider providerdomain.Provider) string {
	return fmt.Sprintf("EDL-PRV-%s-%s", target.Compact(), provider.Suffix())
}

func metricReason(result billingdomain.ProviderResult) string {
	if result.Status == billingdomain.ProviderStatusError {
		return "error"
	}
	if result.Reason == "" {
		return "none"
	}
	return result.Reason
}
