// Package pdf renders provider invoice documents with maroto.
package pdf

import (
	"context"
	"io"

	"go.uber.org/fx"
)

type Renderer interface {
	RenderInvoice(ctx context.Context, data InvoiceData) (io.Reader, error)
	// RenderReceipt renders an invoice that has been settled.
	RenderReceipt(ctx context.Context, data ReceiptData) (io.Reader, error)
}

var Module = fx.Module("providers.pdf",
	fx.Provide(New),
)
