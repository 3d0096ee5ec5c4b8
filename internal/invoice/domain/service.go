package domain

import (
	"context"
	"errors"
	"io"

	"github.com/bwmarrin/snowflake"
)

type ListRequest struct {
	ProviderID *snowflake.ID
	Period     string
	Status     string
	Limit      int
	Offset     int
}

type Document struct {
	Filename string
	Body     io.Reader
}

type Service interface {
	List(ctx context.Context, req ListRequest) ([]Invoice, error)
	Get(ctx context.Context, id snowflake.ID) (InvoiceDetail, error)
	// MarkPaid records the external payment confirmation: the invoice becomes
	// PAID and its transfer SENT.
	MarkPaid(ctx context.Context, id snowflake.ID) (InvoiceDetail, error)
	MarkTransferFailed(ctx context.Context, id snowflake.ID, reason string) (InvoiceDetail, error)
	RenderPDF(ctx context.Context, id snowflake.ID) (Document, error)
}

var (
	ErrInvoiceNotFound    = errors.New("invoice_not_found")
	ErrInvalidInvoiceID   = errors.New("invalid_invoice_id")
	ErrInvalidStatus      = errors.New("invalid_status")
	ErrInvoiceAlreadyPaid = errors.New("invoice_already_paid")
	ErrTransferNotFound   = errors.New("transfer_not_found")
	ErrTransferNotPending = errors.New("transfer_not_pending")
	ErrInvalidFailReason  = errors.New("invalid_failure_reason")
)
