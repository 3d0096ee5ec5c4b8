package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/ecodeli/ecodeli/internal/clock"
	"github.com/ecodeli/ecodeli/internal/config"
	invoicedomain "github.com/ecodeli/ecodeli/internal/invoice/domain"
	"github.com/ecodeli/ecodeli/internal/observability/logger"
	"github.com/ecodeli/ecodeli/internal/period"
	providerdomain "github.com/ecodeli/ecodeli/internal/provider/domain"
	"github.com/ecodeli/ecodeli/internal/providers/pdf"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	platformName       = "EcoDeli"
	platformAddress    = "110 rue de Flandre, 75019 Paris"
	maxListLimit       = 200
	defaultListLimit   = 50
	maxFailReasonBytes = 500
	dateLayout         = "2006-01-02"
)

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	clock        clock.Clock
	billing      *config.BillingConfigHolder
	repo         invoicedomain.Repository
	providerRepo providerdomain.Repository
	renderer     pdf.Renderer
}

type ServiceParam struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Clock        clock.Clock
	Billing      *config.BillingConfigHolder `optional:"true"`
	Repo         invoicedomain.Repository
	ProviderRepo providerdomain.Repository
	Renderer     pdf.Renderer
}

func NewService(p ServiceParam) invoicedomain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("invoice.service"),
		clock:        p.Clock,
		billing:      p.Billing,
		repo:         p.Repo,
		providerRepo: p.ProviderRepo,
		renderer:     p.Renderer,
	}
}

func (s *Service) List(ctx context.Context, req invoicedomain.ListRequest) ([]invoicedomain.Invoice, error) {
	filter := invoicedomain.ListFilter{
		ProviderID: req.ProviderID,
		Limit:      req.Limit,
		Offset:     req.Offset,
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	if strings.TrimSpace(req.Period) != "" {
		p, err := period.Parse(req.Period)
		if err != nil {
			return nil, err
		}
		filter.PeriodYear = p.Year
		filter.PeriodMonth = int(p.Month)
	}

	if status := strings.ToUpper(strings.TrimSpace(req.Status)); status != "" {
		switch invoicedomain.InvoiceStatus(status) {
		case invoicedomain.InvoiceStatusGenerated, invoicedomain.InvoiceStatusSent, invoicedomain.InvoiceStatusPaid:
			filter.Status = invoicedomain.InvoiceStatus(status)
		default:
			return nil, invoicedomain.ErrInvalidStatus
		}
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []invoicedomain.Invoice{}
	}
	return items, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (invoicedomain.InvoiceDetail, error) {
	if id == 0 {
		return invoicedomain.InvoiceDetail{}, invoicedomain.ErrInvalidInvoiceID
	}
	invoice, err := s.repo.FindByID(ctx, s.db, id, false)
	if err != nil {
		return invoicedomain.InvoiceDetail{}, err
	}
	if invoice == nil {
		return invoicedomain.InvoiceDetail{}, invoicedomain.ErrInvoiceNotFound
	}
	return s.detail(ctx, s.db, invoice)
}

func (s *Service) MarkPaid(ctx context.Context, id snowflake.ID) (invoicedomain.InvoiceDetail, error) {
	if id == 0 {
		return invoicedomain.InvoiceDetail{}, invoicedomain.ErrInvalidInvoiceID
	}

	now := s.clock.Now()
	var updated *invoicedomain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, transfer, err := s.loadInvoiceForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if invoice.Status == invoicedomain.InvoiceStatusPaid {
			return invoicedomain.ErrInvoiceAlreadyPaid
		}
		if transfer.Status != invoicedomain.TransferStatusPending {
			return invoicedomain.ErrTransferNotPending
		}

		if err := s.repo.UpdateStatus(ctx, tx, invoice.ID, invoicedomain.InvoiceStatusPaid, &now, now); err != nil {
			return err
		}
		if err := s.repo.UpdateTransferStatus(ctx, tx, invoice.ID, invoicedomain.TransferStatusSent, nil, now); err != nil {
			return err
		}

		invoice.Status = invoicedomain.InvoiceStatusPaid
		invoice.PaidAt = &now
		invoice.UpdatedAt = now
		updated = invoice
		return nil
	})
	if err != nil {
		return invoicedomain.InvoiceDetail{}, err
	}

	logger.WithContext(ctx, s.log).Info("invoice.paid",
		zap.String("invoice_id", updated.ID.String()),
		zap.String("invoice_number", updated.InvoiceNumber),
		zap.String("provider_id", updated.ProviderID.String()),
		zap.String("total", updated.Total.StringFixed(2)),
	)
	return s.detail(ctx, s.db, updated)
}

func (s *Service) MarkTransferFailed(ctx context.Context, id snowflake.ID, reason string) (invoicedomain.InvoiceDetail, error) {
	if id == 0 {
		return invoicedomain.InvoiceDetail{}, invoicedomain.ErrInvalidInvoiceID
	}
	reason = strings.TrimSpace(reason)
	if reason == "" || len(reason) > maxFailReasonBytes {
		return invoicedomain.InvoiceDetail{}, invoicedomain.ErrInvalidFailReason
	}

	now := s.clock.Now()
	var target *invoicedomain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, transfer, err := s.loadInvoiceForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if invoice.Status == invoicedomain.InvoiceStatusPaid {
			return invoicedomain.ErrInvoiceAlreadyPaid
		}
		if transfer.Status != invoicedomain.TransferStatusPending {
			return invoicedomain.ErrTransferNotPending
		}
		target = invoice
		return s.repo.UpdateTransferStatus(ctx, tx, invoice.ID, invoicedomain.TransferStatusFailed, &reason, now)
	})
	if err != nil {
		return invoicedomain.InvoiceDetail{}, err
	}

	logger.WithContext(ctx, s.log).Warn("invoice.transfer.failed",
		zap.String("invoice_id", target.ID.String()),
		zap.String("provider_id", target.ProviderID.String()),
		zap.String("reason", reason),
	)
	return s.detail(ctx, s.db, target)
}

func (s *Service) RenderPDF(ctx context.Context, id snowflake.ID) (invoicedomain.Document, error) {
	detail, err := s.Get(ctx, id)
	if err != nil {
		return invoicedomain.Document{}, err
	}

	data := s.documentData(detail)
	var body io.Reader
	if detail.Status == invoicedomain.InvoiceStatusPaid && detail.PaidAt != nil {
		receipt := pdf.ReceiptData{
			InvoiceData: data,
			DatePaid:    detail.PaidAt.UTC().Format(dateLayout),
		}
		if detail.Transfer != nil {
			receipt.TransferReference = detail.Transfer.Reference
		}
		body, err = s.renderer.RenderReceipt(ctx, receipt)
	} else {
		body, err = s.renderer.RenderInvoice(ctx, data)
	}
	if err != nil {
		return invoicedomain.Document{}, fmt.Errorf("render invoice %s: %w", detail.InvoiceNumber, err)
	}

	return invoicedomain.Document{
		Filename: slug.Make(detail.InvoiceNumber) + ".pdf",
		Body:     body,
	}, nil
}

func (s *Service) loadInvoiceForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*invoicedomain.Invoice, *invoicedomain.BankTransfer, error) {
	invoice, err := s.repo.FindByID(ctx, tx, id, true)
	if err != nil {
		return nil, nil, err
	}
	if invoice == nil {
		return nil, nil, invoicedomain.ErrInvoiceNotFound
	}
	transfer, err := s.repo.FindTransfer(ctx, tx, invoice.ID)
	if err != nil {
		return nil, nil, err
	}
	if transfer == nil {
		return nil, nil, invoicedomain.ErrTransferNotFound
	}
	return invoice, transfer, nil
}

func (s *Service) detail(ctx context.Context, db *gorm.DB, invoice *invoicedomain.Invoice) (invoicedomain.InvoiceDetail, error) {
	lines, err := s.repo.ListLines(ctx, db, invoice.ID)
	if err != nil {
		return invoicedomain.InvoiceDetail{}, err
	}
	if lines == nil {
		lines = []invoicedomain.InvoiceLineItem{}
	}

	detail := invoicedomain.InvoiceDetail{
		Invoice:  *invoice,
		Provider: invoicedomain.InvoiceParty{ID: invoice.ProviderID},
		Lines:    lines,
	}

	transfer, err := s.repo.FindTransfer(ctx, db, invoice.ID)
	if err != nil {
		return invoicedomain.InvoiceDetail{}, err
	}
	if transfer != nil {
		detail.Transfer = &invoicedomain.TransferView{
			BankTransfer:        *transfer,
			RecipientIBANMasked: providerdomain.BankDetails{IBAN: transfer.RecipientIBAN}.MaskedIBAN(),
		}
	}

	provider, err := s.providerRepo.FindByID(ctx, db, invoice.ProviderID)
	if err != nil {
		return invoicedomain.InvoiceDetail{}, err
	}
	if provider != nil {
		detail.Provider.UserID = provider.UserID
		detail.Provider.DisplayName = provider.DisplayName
	}
	return detail, nil
}

func (s *Service) documentData(detail invoicedomain.InvoiceDetail) pdf.InvoiceData {
	currency := detail.Currency
	if currency == "" {
		currency = s.billing.Get().Currency
	}
	money := func(d decimal.Decimal) string {
		return d.StringFixed(2) + " " + currency
	}
	servicePeriod := period.Period{Year: detail.PeriodYear, Month: time.Month(detail.PeriodMonth)}

	data := pdf.InvoiceData{
		PlatformName:     platformName,
		PlatformAddress:  platformAddress,
		InvoiceNumber:    detail.InvoiceNumber,
		IssueDate:        detail.IssuedAt.UTC().Format(dateLayout),
		DueDate:          detail.DueAt.UTC().Format(dateLayout),
		ServicePeriod:    servicePeriod.String(),
		ProviderName:     detail.Provider.DisplayName,
		ProviderID:       detail.ProviderID.String(),
		BillingMode:      string(detail.BillingMode),
		Subtotal:         money(detail.Subtotal),
		CommissionLabel:  fmt.Sprintf("Commission (%s%%)", detail.CommissionRate.Mul(decimal.NewFromInt(100)).String()),
		CommissionAmount: money(detail.CommissionAmount),
		NetAmount:        money(detail.NetAmount),
		Total:            money(detail.Total),
	}

	if detail.BillingMode == providerdomain.BillingModeVATInclusive {
		data.VATLabel = fmt.Sprintf("VAT (%s%%)", detail.VATRate.Mul(decimal.NewFromInt(100)).String())
		data.VATAmount = money(detail.VATAmount)
	} else {
		data.VATNote = "VAT not applicable, auto-entrepreneur provider."
	}

	if detail.Transfer != nil {
		data.BankDetails = fmt.Sprintf("%s, %s", detail.Transfer.RecipientName, detail.Transfer.RecipientIBANMasked)
	}

	for _, line := range detail.Lines {
		data.Items = append(data.Items, pdf.InvoiceItem{
			Description: line.Description,
			Minutes:     line.Quantity,
			UnitPrice:   money(line.UnitPrice),
			Amount:      money(line.Amount),
		})
	}
	return data
}
