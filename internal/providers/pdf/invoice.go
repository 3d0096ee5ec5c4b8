package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// InvoiceData is the pre-formatted content of a monthly provider statement.
type InvoiceData struct {
	PlatformName    string
	PlatformAddress string
	InvoiceNumber   string
	IssueDate       string
	DueDate         string
	ServicePeriod   string

	ProviderName string
	ProviderID   string
	BillingMode  string

	Items []InvoiceItem

	Subtotal         string
	CommissionLabel  string
	CommissionAmount string
	NetAmount        string
	VATLabel         string
	VATAmount        string
	Total            string

	// VATNote is printed under the totals, e.g. the auto-entrepreneur exemption.
	VATNote     string
	BankDetails string
}

type InvoiceItem struct {
	Description string
	Minutes     int
	UnitPrice   string
	Amount      string
}

type ReceiptData struct {
	InvoiceData
	DatePaid          string
	TransferReference string
}

type PDFRenderer struct{}

func New() Renderer {
	return &PDFRenderer{}
}

func (p *PDFRenderer) RenderInvoice(ctx context.Context, data InvoiceData) (io.Reader, error) {
	m := newDocument()
	addHeader(m, "Monthly statement", data)
	addItems(m, data)
	addTotals(m, data)

	if data.BankDetails != "" {
		m.AddRow(20,
			text.NewCol(12, "Payout to: "+data.BankDetails, props.Text{Size: 9, Top: 6}),
		)
	}

	return generate(m)
}

func (p *PDFRenderer) RenderReceipt(ctx context.Context, data ReceiptData) (io.Reader, error) {
	m := newDocument()
	addHeader(m, "Receipt", data.InvoiceData)

	m.AddRow(15,
		text.NewCol(12, fmt.Sprintf("%s paid on %s", data.Total, data.DatePaid), props.Text{
			Size:  14,
			Style: fontstyle.Bold,
			Top:   4,
		}),
	)
	if data.TransferReference != "" {
		m.AddRow(8,
			text.NewCol(12, "Transfer reference: "+data.TransferReference, props.Text{Size: 9}),
		)
	}

	addItems(m, data.InvoiceData)
	addTotals(m, data.InvoiceData)
	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Amount paid", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, data.Total, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	return generate(m)
}

func newDocument() core.Maroto {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()
	return maroto.New(cfg)
}

func addHeader(m core.Maroto, title string, data InvoiceData) {
	m.AddRow(12,
		text.NewCol(12, title, props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(20,
		col.New(6).Add(
			text.New("Invoice number: "+data.InvoiceNumber, props.Text{Top: 0}),
			text.New("Date of issue: "+data.IssueDate, props.Text{Top: 4}),
			text.New("Date due: "+data.DueDate, props.Text{Top: 8}),
			text.New("Service period: "+data.ServicePeriod, props.Text{Top: 12}),
		),
		col.New(6),
	)

	m.AddRow(25,
		col.New(6).Add(
			text.New(data.PlatformName, props.Text{Style: fontstyle.Bold}),
			text.New(data.PlatformAddress, props.Text{Top: 5}),
		),
		col.New(6).Add(
			text.New("Provider", props.Text{Style: fontstyle.Bold}),
			text.New(data.ProviderName, props.Text{Top: 5}),
			text.New("ID "+data.ProviderID, props.Text{Top: 9, Size: 8}),
			text.New(data.BillingMode, props.Text{Top: 13, Size: 8}),
		),
	)
}

func addItems(m core.Maroto, data InvoiceData) {
	m.AddRow(10,
		text.NewCol(6, "Intervention", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Minutes", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Unit price", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	m.AddRow(2, line.NewCol(12))

	for _, item := range data.Items {
		m.AddRow(8,
			text.NewCol(6, item.Description, props.Text{Size: 9}),
			text.NewCol(2, fmt.Sprintf("%d", item.Minutes), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.UnitPrice, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.Amount, props.Text{Size: 9, Align: align.Right}),
		)
	}
}

func addTotals(m core.Maroto, data InvoiceData) {
	rows := [][2]string{
		{"Subtotal", data.Subtotal},
		{data.CommissionLabel, "-" + data.CommissionAmount},
		{"Net amount", data.NetAmount},
	}
	if data.VATLabel != "" {
		rows = append(rows, [2]string{data.VATLabel, data.VATAmount})
	}
	for _, row := range rows {
		m.AddRow(8,
			col.New(7),
			text.NewCol(3, row[0], props.Text{Size: 9}),
			text.NewCol(2, row[1], props.Text{Size: 9, Align: align.Right}),
		)
	}
	m.AddRow(10,
		col.New(7),
		text.NewCol(3, "Total", props.Text{Style: fontstyle.Bold, Size: 10}),
		text.NewCol(2, data.Total, props.Text{Style: fontstyle.Bold, Size: 10, Align: align.Right}),
	)

	if data.VATNote != "" {
		m.AddRow(12,
			text.NewCol(12, data.VATNote, props.Text{Size: 8, Style: fontstyle.Italic, Top: 4}),
		)
	}
}

func generate(m core.Maroto) (io.Reader, error) {
	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(doc.GetBytes()), nil
}
