package pdf

import (
	"context"
	"errors"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

var ErrEmptyInvoice = errors.New("invalid_invoice_document")

// InvoiceData is the printable form of an invoice. Amounts are preformatted.
type InvoiceData struct {
	Number    string
	Status    string
	Currency  string
	IssueDate string
	DueDate   string

	FromName  string
	FromEmail string

	ClientName    string
	ClientCompany string
	ClientEmail   string
	ClientPhone   string
	ClientAddress string
	ClientTaxID   string

	Items []InvoiceItem

	Subtotal string
	Tax      string
	Total    string
	Notes    string
}

type InvoiceItem struct {
	Description string
	Quantity    string
	UnitPrice   string
	Amount      string
}

type Renderer interface {
	RenderInvoice(ctx context.Context, data InvoiceData) ([]byte, error)
}

type MarotoRenderer struct{}

func New() Renderer {
	return &MarotoRenderer{}
}

func (r *MarotoRenderer) RenderInvoice(ctx context.Context, invoice InvoiceData) ([]byte, error) {
	if invoice.Number == "" {
		return nil, ErrEmptyInvoice
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(12, "Invoice", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(20,
		col.New(6).Add(
			text.New("Invoice number: "+invoice.Number, props.Text{Top: 0}),
			text.New("Status: "+invoice.Status, props.Text{Top: 4}),
			text.New("Date of issue: "+invoice.IssueDate, props.Text{Top: 8}),
			text.New("Date due: "+invoice.DueDate, props.Text{Top: 12}),
		),
		col.New(6),
	)

	m.AddRow(36,
		col.New(6).Add(
			text.New("From", props.Text{Style: fontstyle.Bold}),
			text.New(invoice.FromName, props.Text{Top: 5}),
			text.New(invoice.FromEmail, props.Text{Top: 9}),
		),
		col.New(6).Add(
			text.New("Bill to", props.Text{Style: fontstyle.Bold}),
			text.New(invoice.ClientName, props.Text{Top: 5}),
			text.New(invoice.ClientCompany, props.Text{Top: 9}),
			text.New(invoice.ClientEmail, props.Text{Top: 13}),
			text.New(invoice.ClientPhone, props.Text{Top: 17}),
			text.New(invoice.ClientAddress, props.Text{Top: 21}),
			text.New(taxIDLine(invoice.ClientTaxID), props.Text{Top: 25}),
		),
	)

	m.AddRow(10,
		text.NewCol(6, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Qty", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Unit price", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	m.AddRow(2, line.NewCol(12))

	for _, item := range invoice.Items {
		m.AddRow(8,
			text.NewCol(6, item.Description, props.Text{Size: 9}),
			text.NewCol(2, item.Quantity, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.UnitPrice, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.Amount, props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(2, line.NewCol(12))
	m.AddRow(8,
		col.New(8),
		text.NewCol(2, "Subtotal", props.Text{Size: 9}),
		text.NewCol(2, invoice.Subtotal, props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(8,
		col.New(8),
		text.NewCol(2, "Tax", props.Text{Size: 9}),
		text.NewCol(2, invoice.Tax, props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(8,
		col.New(8),
		text.NewCol(2, "Total", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, invoice.Currency+" "+invoice.Total, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	if invoice.Notes != "" {
		m.AddRow(8, text.NewCol(12, "Notes", props.Text{Style: fontstyle.Bold, Size: 9, Top: 4}))
		m.AddRow(20, text.NewCol(12, invoice.Notes, props.Text{Size: 9}))
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}

func taxIDLine(taxID string) string {
	if taxID == "" {
		return ""
	}
	return "Tax ID: " + taxID
}
