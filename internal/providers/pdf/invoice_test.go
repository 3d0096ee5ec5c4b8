package pdf

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleInvoice() InvoiceData {
	return InvoiceData{
		PlatformName:     "EcoDeli",
		InvoiceNumber:    "EDL-PRV-202405-123456",
		IssueDate:        "2024-06-25",
		DueDate:          "2024-07-25",
		ServicePeriod:    "2024-05",
		ProviderName:     "Jane Plumbing",
		ProviderID:       "123456",
		BillingMode:      "VAT_EXCLUSIVE",
		Items:            []InvoiceItem{{Description: "Leak repair", Minutes: 90, UnitPrice: "66.67", Amount: "100.00"}},
		Subtotal:         "100.00",
		CommissionLabel:  "Commission (15%)",
		CommissionAmount: "15.00",
		NetAmount:        "85.00",
		Total:            "85.00",
	}
}

func TestRenderInvoice_ProducesPDF(t *testing.T) {
	r := New()

	out, err := r.RenderInvoice(context.Background(), sampleInvoice())
	require.NoError(t, err)

	body, err := io.ReadAll(out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))
}

func TestRenderReceipt_ProducesPDF(t *testing.T) {
	r := New()

	out, err := r.RenderReceipt(context.Background(), ReceiptData{
		InvoiceData:       sampleInvoice(),
		DatePaid:          "2024-07-01",
		TransferReference: "01HZX",
	})
	require.NoError(t, err)

	body, err := io.ReadAll(out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))
}
