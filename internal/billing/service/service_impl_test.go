package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/ecodeli/ecodeli/internal/billing/domain"
	billingrepository "github.com/ecodeli/ecodeli/internal/billing/repository"
	"github.com/ecodeli/ecodeli/internal/clock"
	"github.com/ecodeli/ecodeli/internal/config"
	interventiondomain "github.com/ecodeli/ecodeli/internal/intervention/domain"
	interventionrepository "github.com/ecodeli/ecodeli/internal/intervention/repository"
	invoicedomain "github.com/ecodeli/ecodeli/internal/invoice/domain"
	invoicerepository "github.com/ecodeli/ecodeli/internal/invoice/repository"
	notificationdomain "github.com/ecodeli/ecodeli/internal/notification/domain"
	"github.com/ecodeli/ecodeli/internal/period"
	providerdomain "github.com/ecodeli/ecodeli/internal/provider/domain"
	providerrepository "github.com/ecodeli/ecodeli/internal/provider/repository"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const validIBAN = "FR1420041010050500013M02606"

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, userID, title, message string, kind notificationdomain.NotificationType, data map[string]any) error {
	args := m.Called(ctx, userID, title, message, kind, data)
	return args.Error(0)
}

type fixture struct {
	svc      *Service
	db       *gorm.DB
	node     *snowflake.Node
	clock    *clock.FakeClock
	notifier *mockNotifier
}

func setup(t *testing.T, admins ...string) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&providerdomain.Provider{},
		&interventiondomain.Intervention{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceLineItem{},
		&invoicedomain.BankTransfer{},
		&billingdomain.BillingRun{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2024, 6, 25, 9, 0, 0, 0, time.UTC))
	notifier := &mockNotifier{}

	billingCfg := config.DefaultBillingConfig()
	billingCfg.Concurrency = 2

	svc := NewService(Params{
		DB:               db,
		Log:              zap.NewNop(),
		GenID:            node,
		Clock:            fake,
		Config:           config.Config{AdminUserIDs: admins},
		Billing:          config.NewBillingConfigHolderFrom(billingCfg),
		Repo:             billingrepository.Provide(),
		ProviderRepo:     providerrepository.Provide(),
		InterventionRepo: interventionrepository.Provide(),
		InvoiceRepo:      invoicerepository.Provide(),
		Notifier:         notifier,
	}).(*Service)

	return &fixture{svc: svc, db: db, node: node, clock: fake, notifier: notifier}
}

func (f *fixture) notifyOK() {
	f.notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
}

type providerOption func(*providerdomain.Provider)

func withMode(mode providerdomain.BillingMode) providerOption {
	return func(p *providerdomain.Provider) { p.BillingMode = mode }
}

func withRate(rate string) providerOption {
	return func(p *providerdomain.Provider) {
		r := decimal.RequireFromString(rate)
		p.CommissionRate = &r
	}
}

func withIBAN(iban string) providerOption {
	return func(p *providerdomain.Provider) { p.IBAN = iban }
}

func withID(id snowflake.ID) providerOption {
	return func(p *providerdomain.Provider) { p.ID = id }
}

func withStatus(status providerdomain.ValidationStatus) providerOption {
	return func(p *providerdomain.Provider) { p.ValidationStatus = status }
}

func (f *fixture) provider(t *testing.T, name string, opts ...providerOption) providerdomain.Provider {
	t.Helper()
	now := f.clock.Now()
	p := providerdomain.Provider{
		ID:                f.node.Generate(),
		UserID:            "user-" + name,
		DisplayName:       name,
		ValidationStatus:  providerdomain.ValidationStatusApproved,
		IsActive:          true,
		BillingMode:       providerdomain.BillingModeVATExclusive,
		BankAccountHolder: name,
		IBAN:              validIBAN,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	for _, opt := range opts {
		opt(&p)
	}
	require.NoError(t, f.db.Create(&p).Error)
	return p
}

func (f *fixture) intervention(t *testing.T, providerID snowflake.ID, total string, completedAt time.Time, status interventiondomain.InterventionStatus) interventiondomain.Intervention {
	t.Helper()
	now := f.clock.Now()
	price := decimal.RequireFromString(total)
	item := interventiondomain.Intervention{
		ID:              f.node.Generate(),
		ProviderID:      providerID,
		ClientID:        "client-1",
		Description:     "Home repair",
		DurationMinutes: 60,
		UnitPrice:       price,
		TotalPrice:      price,
		Status:          status,
		CompletedAt:     &completedAt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, f.db.Create(&item).Error)
	return item
}

func may(day int) time.Time {
	return time.Date(2024, 5, day, 14, 0, 0, 0, time.UTC)
}

func (f *fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

func resultFor(t *testing.T, result billingdomain.RunResult, providerID snowflake.ID) billingdomain.ProviderResult {
	t.Helper()
	for _, r := range result.Results {
		if r.ProviderID == providerID {
			return r
		}
	}
	t.Fatalf("no result for provider %s", providerID)
	return billingdomain.ProviderResult{}
}

func TestRunMonthlyBilling_GeneratesInvoiceOnce(t *testing.T) {
	f := setup(t)
	f.notifyOK()
	ctx := context.Background()

	p := f.provider(t, "jane")
	f.intervention(t, p.ID, "100", may(3), interventiondomain.InterventionStatusCompleted)
	f.intervention(t, p.ID, "200", may(17), interventiondomain.InterventionStatusCompleted)

	result, err := f.svc.RunMonthlyBilling(ctx, billingdomain.RunRequest{Period: "2024-05"})
	require.NoError(t, err)

	assert.Equal(t, "2024-05", result.Period)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Success)
	assert.True(t, result.TotalBilled.Equal(decimal.NewFromInt(255)), result.TotalBilled.String())

	r := resultFor(t, result, p.ID)
	assert.Equal(t, billingdomain.ProviderStatusSuccess, r.Status)
	assert.Equal(t, "EDL-PRV-202405-"+p.Suffix(), r.InvoiceNumber)
	assert.True(t, r.Notified)

	var invoice invoicedomain.Invoice
	require.NoError(t, f.db.Where("provider_id = ?", p.ID).Take(&invoice).Error)
	assert.True(t, invoice.Subtotal.Equal(decimal.NewFromInt(300)))
	assert.True(t, invoice.CommissionAmount.Equal(decimal.NewFromInt(45)))
	assert.True(t, invoice.NetAmount.Equal(decimal.NewFromInt(255)))
	assert.True(t, invoice.CommissionRate.Equal(decimal.RequireFromString("0.15")))
	assert.Equal(t, invoicedomain.InvoiceStatusSent, invoice.Status)
	assert.Equal(t, time.Date(2024, 7, 25, 9, 0, 0, 0, time.UTC), invoice.DueAt.UTC())

	var transfer invoicedomain.BankTransfer
	require.NoError(t, f.db.Where("invoice_id = ?", invoice.ID).Take(&transfer).Error)
	assert.Equal(t, invoicedomain.TransferStatusPending, transfer.Status)
	assert.True(t, transfer.Simulated)
	assert.True(t, transfer.Amount.Equal(decimal.NewFromInt(255)))
	assert.Equal(t, time.Date(2024, 7, 2, 9, 0, 0, 0, time.UTC), transfer.ScheduledAt.UTC())
	assert.Equal(t, int64(2), f.count(t, &invoicedomain.InvoiceLineItem{}))

	second, err := f.svc.RunMonthlyBilling(ctx, billingdomain.RunRequest{Period: "2024-05"})
	require.NoError(t, err)
	assert.Equal(t, 1, second.Skipped)
	assert.Equal(t, 0, second.Success)
	assert.Equal(t, billingdomain.SkipReasonAlreadyInvoiced, resultFor(t, second, p.ID).Reason)

	assert.Equal(t, int64(1), f.count(t, &invoicedomain.Invoice{}))
	assert.Equal(t, int64(1), f.count(t, &invoicedomain.BankTransfer{}))
	assert.Equal(t, int64(2), f.count(t, &invoicedomain.InvoiceLineItem{}))
	assert.Equal(t, int64(2), f.count(t, &billingdomain.BillingRun{}))
}

func TestRunMonthlyBilling_ScopesToPeriodAndEligibility(t *testing.T) {
	f := setup(t)
	f.notifyOK()

	p := f.provider(t, "jane")
	f.intervention(t, p.ID, "100", may(10), interventiondomain.InterventionStatusCompleted)
	f.intervention(t, p.ID, "999", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), interventiondomain.InterventionStatusCompleted)
	f.intervention(t, p.ID, "999", time.Date(2024, 4, 30, 23, 59, 59, 0, time.UTC), interventiondomain.InterventionStatusCompleted)
	f.intervention(t, p.ID, "999", may(11), interventiondomain.InterventionStatusCancelled)

	pending := f.provider(t, "pending", withStatus(providerdomain.ValidationStatusPending))
	f.intervention(t, pending.ID, "50", may(12), interventiondomain.InterventionStatusCompleted)

	idle := f.provider(t, "idle")
	f.intervention(t, idle.ID, "50", time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC), interventiondomain.InterventionStatusCompleted)

	result, err := f.svc.RunMonthlyBilling(context.Background(), billingdomain.RunRequest{Period: "2024-05"})
	require.NoError(t, err)

	require.Equal(t, 1, result.Processed)
	r := resultFor(t, result, p.ID)
	require.NotNil(t, r.Total)
	assert.True(t, r.Total.Equal(decimal.RequireFromString("85")), r.Total.String())
}

func TestRunMonthlyBilling_DefaultsToPreviousMonth(t *testing.T) {
	f := setup(t)
	f.notifyOK()

	p := f.provider(t, "jane")
	f.intervention(t, p.ID, "100", may(10), interventiondomain.InterventionStatusCompleted)

	result, err := f.svc.RunMonthlyBilling(context.Background(), billingdomain.RunRequest{})
	require.NoError(t, err)
	assert.Equal(t, "2024-05", result.Period)
	assert.Equal(t, 1, result.Success)
}

func TestRunMonthlyBilling_VATInclusiveWithOverride(t *testing.T) {
	f := setup(t)
	f.notifyOK()

	p := f.provider(t, "acme", withMode(providerdomain.BillingModeVATInclusive), withRate("0.10"))
	f.intervention(t, p.ID, "100", may(2), interventiondomain.InterventionStatusCompleted)
	f.intervention(t, p.ID, "200", may(20), interventiondomain.InterventionStatusCompleted)

	_, err := f.svc.RunMonthlyBilling(context.Background(), billingdomain.RunRequest{Period: "2024-05"})
	require.NoError(t, err)

	var invoice invoicedomain.Invoice
	require.NoError(t, f.db.Where("provider_id = ?", p.ID).Take(&invoice).Error)
	assert.True(t, invoice.CommissionAmount.Equal(decimal.NewFromInt(30)))
	assert.True(t, invoice.NetAmount.Equal(decimal.NewFromInt(270)))
	assert.True(t, invoice.VATAmount.Equal(decimal.NewFromInt(54)))
	assert.True(t, invoice.Total.Equal(decimal.NewFromInt(324)))
	assert.Equal(t, providerdomain.BillingModeVATInclusive, invoice.BillingMode)
	assert.Equal(t, "0.1", invoice.Metadata["commission_rate"])
}

func TestRunMonthlyBilling_ForceRegenerates(t *testing.T) {
	f := setup(t)
	f.notifyOK()
	ctx := context.Background()

	p := f.provider(t, "jane")
	f.intervention(t, p.ID, "100", may(3), interventiondomain.InterventionStatusCompleted)

	_, err := f.svc.RunMonthlyBilling(ctx, billingdomain.RunRequest{Period: "2024-05"})
	require.NoError(t, err)
	var first invoicedomain.Invoice
	require.NoError(t, f.db.Where("provider_id = ?", p.ID).Take(&first).Error)

	f.intervention(t, p.ID, "200", may(28), interventiondomain.InterventionStatusCompleted)

	result, err := f.svc.RunMonthlyBilling(ctx, billingdomain.RunRequest{Period: "2024-05", Force: true})
	require.NoError(t, err)
	r := resultFor(t, result, p.ID)
	assert.Equal(t, billingdomain.ProviderStatusSuccess, r.Status)
	assert.True(t, r.Regenerated)

	var invoices []invoicedomain.Invoice
	require.NoError(t, f.db.Where("provider_id = ?", p.ID).Find(&invoices).Error)
	require.Len(t, invoices, 1)
	assert.NotEqual(t, first.ID, invoices[0].ID)
	assert.True(t, invoices[0].Subtotal.Equal(decimal.NewFromInt(300)))
	assert.Equal(t, int64(2), f.count(t, &invoicedomain.InvoiceLineItem{}))
	assert.Equal(t, int64(1), f.count(t, &invoicedomain.BankTransfer{}))
}

func TestRunMonthlyBilling_ForceRefusesPaidInvoice(t *testing.T) {
	f := setup(t)
	f.notifyOK()
	ctx := context.Background()

	p := f.provider(t, "jane")
	f.intervention(t, p.ID, "100", may(3), interventiondomain.InterventionStatusCompleted)
	_, err := f.svc.RunMonthlyBilling(ctx, billingdomain.RunRequest{Period: "2024-05"})
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&invoicedomain.Invoice{}).Where("provider_id = ?", p.ID).Update("status", invoicedomain.InvoiceStatusPaid).Error)

	result, err := f.svc.RunMonthlyBilling(ctx, billingdomain.RunRequest{Period: "2024-05", Force: true})
	require.NoError(t, err)
	r := resultFor(t, result, p.ID)
	assert.Equal(t, billingdomain.ProviderStatusError, r.Status)
	assert.Contains(t, r.Reason, invoicedomain.ErrInvoiceAlreadyPaid.Error())
	assert.Equal(t, int64(1), f.count(t, &invoicedomain.Invoice{}))
}

func TestRunMonthlyBilling_LineFailureRollsBackHeader(t *testing.T) {
	f := setup(t)
	f.notifyOK()

	p := f.provider(t, "jane")
	f.intervention(t, p.ID, "100", may(3), interventiondomain.InterventionStatusCompleted)

	require.NoError(t, f.db.Callback().Create().Before("gorm:create").Register("test:fail_lines", func(tx *gorm.DB) {
		if tx.Statement.Table == "invoice_line_items" {
			_ = tx.AddError(errors.New("injected line failure"))
		}
	}))

	result, err := f.svc.RunMonthlyBilling(context.Background(), billingdomain.RunRequest{Period: "2024-05"})
	require.NoError(t, err)

	r := resultFor(t, result, p.ID)
	assert.Equal(t, billingdomain.ProviderStatusError, r.Status)
	assert.Contains(t, r.Reason, "injected line failure")
	assert.Equal(t, int64(0), f.count(t, &invoicedomain.Invoice{}))
	assert.Equal(t, int64(0), f.count(t, &invoicedomain.BankTransfer{}))
	f.notifier.AssertNotCalled(t, "Notify", mock.Anything, p.UserID, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRunMonthlyBilling_IsolatesProviderFailures(t *testing.T) {
	f := setup(t)
	f.notifyOK()

	a := f.provider(t, "a")
	b := f.provider(t, "b")
	c := f.provider(t, "c", withIBAN("FR0000000000000000000000000"))
	for _, p := range []providerdomain.Provider{a, b, c} {
		f.intervention(t, p.ID, "100", may(5), interventiondomain.InterventionStatusCompleted)
	}

	require.NoError(t, f.db.Callback().Create().Before("gorm:create").Register("test:fail_provider_b", func(tx *gorm.DB) {
		if invoice, ok := tx.Statement.Dest.(*invoicedomain.Invoice); ok && invoice.ProviderID == b.ID {
			_ = tx.AddError(errors.New("disk full"))
		}
	}))

	result, err := f.svc.RunMonthlyBilling(context.Background(), billingdomain.RunRequest{Period: "2024-05"})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Processed)
	assert.Equal(t, 1, result.Success)
	assert.Equal(t, 2, result.Errors)
	assert.Equal(t, billingdomain.ProviderStatusSuccess, resultFor(t, result, a.ID).Status)
	assert.Equal(t, billingdomain.ProviderStatusError, resultFor(t, result, b.ID).Status)
	rc := resultFor(t, result, c.ID)
	assert.Equal(t, billingdomain.ProviderStatusError, rc.Status)
	assert.Contains(t, rc.Reason, providerdomain.ErrInvalidBankDetails.Error())

	var invoices []invoicedomain.Invoice
	require.NoError(t, f.db.Find(&invoices).Error)
	require.Len(t, invoices, 1)
	assert.Equal(t, a.ID, invoices[0].ProviderID)
}

func TestRunMonthlyBilling_CountryMalformedIBANIsError(t *testing.T) {
	f := setup(t)
	f.notifyOK()

	// Valid mod-97 check digits, but a French IBAN has 27 characters.
	p := f.provider(t, "short", withIBAN("FR9112345678901"))
	f.intervention(t, p.ID, "100", may(5), interventiondomain.InterventionStatusCompleted)

	result, err := f.svc.RunMonthlyBilling(context.Background(), billingdomain.RunRequest{Period: "2024-05"})
	require.NoError(t, err)

	r := resultFor(t, result, p.ID)
	assert.Equal(t, billingdomain.ProviderStatusError, r.Status)
	assert.Contains(t, r.Reason, providerdomain.ErrInvalidBankDetails.Error())
	assert.Equal(t, int64(0), f.count(t, &invoicedomain.BankTransfer{}))
	assert.Equal(t, int64(0), f.count(t, &invoicedomain.Invoice{}))
}

// listingHook acts between listing and processing, or fails the listing.
type listingHook struct {
	providerdomain.Repository
	after func()
	err   error
}

func (h *listingHook) ListBillable(ctx context.Context, db *gorm.DB, start, end time.Time) ([]providerdomain.Provider, error) {
	if h.err != nil {
		return nil, h.err
	}
	providers, err := h.Repository.ListBillable(ctx, db, start, end)
	if h.after != nil {
		h.after()
	}
	return providers, err
}

func TestRunMonthlyBilling_SkipsProviderDeactivatedAfterListing(t *testing.T) {
	f := setup(t)
	f.notifyOK()

	active := f.provider(t, "active")
	leaving := f.provider(t, "leaving")
	for _, p := range []providerdomain.Provider{active, leaving} {
		f.intervention(t, p.ID, "100", may(5), interventiondomain.InterventionStatusCompleted)
	}

	f.svc.providerRepo = &listingHook{
		Repository: f.svc.providerRepo,
		after: func() {
			require.NoError(t, f.db.Model(&providerdomain.Provider{}).
				Where("id = ?", leaving.ID).
				Update("is_active", false).Error)
		},
	}

	result, err := f.svc.RunMonthlyBilling(context.Background(), billingdomain.RunRequest{Period: "2024-05"})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, billingdomain.ProviderStatusSuccess, resultFor(t, result, active.ID).Status)
	r := resultFor(t, result, leaving.ID)
	assert.Equal(t, billingdomain.ProviderStatusSkipped, r.Status)
	assert.Equal(t, billingdomain.SkipReasonProviderNotBillable, r.Reason)
	assert.Equal(t, int64(1), f.count(t, &invoicedomain.Invoice{}))
}

func TestRunMonthlyBilling_ListingFailureIsRecorded(t *testing.T) {
	f := setup(t)
	f.svc.providerRepo = &listingHook{Repository: f.svc.providerRepo, err: errors.New("connection reset")}

	_, err := f.svc.RunMonthlyBilling(context.Background(), billingdomain.RunRequest{Period: "2024-05"})
	require.Error(t, err)

	run, err := f.svc.repo.LatestRun(context.Background(), f.db, "2024-05")
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Contains(t, run.Failure, "connection reset")
	assert.Equal(t, 0, run.Processed)
	assert.False(t, run.Clean())
}

func TestRunMonthlyBilling_NotificationFailureKeepsInvoice(t *testing.T) {
	f := setup(t, "admin-1")
	f.notifier.On("Notify", mock.Anything, "user-jane", mock.Anything, mock.Anything, notificationdomain.TypeInvoiceGenerated, mock.Anything).
		Return(errors.New("push gateway down"))
	f.notifier.On("Notify", mock.Anything, "admin-1", mock.Anything, mock.Anything, notificationdomain.TypeBillingSummary, mock.Anything).
		Return(errors.New("push gateway down"))

	p := f.provider(t, "jane")
	f.intervention(t, p.ID, "100", may(3), interventiondomain.InterventionStatusCompleted)

	result, err := f.svc.RunMonthlyBilling(context.Background(), billingdomain.RunRequest{Period: "2024-05"})
	require.NoError(t, err)

	r := resultFor(t, result, p.ID)
	assert.Equal(t, billingdomain.ProviderStatusSuccess, r.Status)
	assert.False(t, r.Notified)

	var invoice invoicedomain.Invoice
	require.NoError(t, f.db.Where("provider_id = ?", p.ID).Take(&invoice).Error)
	assert.Equal(t, invoicedomain.InvoiceStatusGenerated, invoice.Status)
	assert.Nil(t, invoice.SentAt)
	f.notifier.AssertExpectations(t)
}

func TestRunMonthlyBilling_NumberCollisionFailsLoudly(t *testing.T) {
	f := setup(t)
	f.notifyOK()

	first := f.provider(t, "first", withID(snowflake.ID(1000123456)))
	second := f.provider(t, "second", withID(snowflake.ID(2000123456)))
	require.Equal(t, first.Suffix(), second.Suffix())
	f.intervention(t, first.ID, "100", may(3), interventiondomain.InterventionStatusCompleted)
	f.intervention(t, second.ID, "100", may(3), interventiondomain.InterventionStatusCompleted)

	result, err := f.svc.RunMonthlyBilling(context.Background(), billingdomain.RunRequest{Period: "2024-05"})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Success)
	assert.Equal(t, 1, result.Errors)
	for _, r := range result.Results {
		if r.Status == billingdomain.ProviderStatusError {
			assert.Contains(t, r.Reason, billingdomain.ErrInvoiceNumberCollision.Error())
		}
	}
	assert.Equal(t, int64(1), f.count(t, &invoicedomain.Invoice{}))
}

func TestRunMonthlyBilling_RejectsBadPeriod(t *testing.T) {
	f := setup(t)

	_, err := f.svc.RunMonthlyBilling(context.Background(), billingdomain.RunRequest{Period: "2024-5"})
	assert.ErrorIs(t, err, period.ErrInvalidPeriod)
	assert.Equal(t, int64(0), f.count(t, &billingdomain.BillingRun{}))
}

func TestRunMonthlyBilling_RejectsConcurrentRunForPeriod(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	release, err := f.svc.acquire(ctx, period.Period{Year: 2024, Month: time.May})
	require.NoError(t, err)

	_, err = f.svc.RunMonthlyBilling(ctx, billingdomain.RunRequest{Period: "2024-05"})
	assert.ErrorIs(t, err, billingdomain.ErrRunInProgress)

	release()
	f.notifyOK()
	_, err = f.svc.RunMonthlyBilling(ctx, billingdomain.RunRequest{Period: "2024-05"})
	assert.NoError(t, err)
}

func TestStatus(t *testing.T) {
	f := setup(t)
	f.notifyOK()
	ctx := context.Background()

	p := f.provider(t, "jane")
	f.intervention(t, p.ID, "100", may(3), interventiondomain.InterventionStatusCompleted)
	f.intervention(t, p.ID, "200", may(4), interventiondomain.InterventionStatusCompleted)
	f.provider(t, "idle")

	_, err := f.svc.RunMonthlyBilling(ctx, billingdomain.RunRequest{Period: "2024-05"})
	require.NoError(t, err)

	status, err := f.svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-05", status.BilledPeriod)
	assert.Equal(t, int64(1), status.InvoiceCount)
	assert.Equal(t, int64(0), status.PaidCount)
	assert.Equal(t, int64(1), status.PendingTransfers)
	assert.Equal(t, int64(2), status.ActiveProviders)
	assert.True(t, status.TotalAmount.Equal(decimal.NewFromInt(255)))
	assert.Equal(t, time.Date(2024, 7, 25, 0, 0, 0, 0, time.UTC), status.NextBillingDate)
	require.NotNil(t, status.LastRun)
	assert.True(t, status.LastRun.Clean())
}
