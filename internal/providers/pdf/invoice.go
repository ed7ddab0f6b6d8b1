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

type InvoiceData struct {
	StoreName     string
	StoreAddress  string
	StoreEmail    string
	StorePhone    string
	InvoiceNumber string
	IssueDate     string
	OrderID       string
	Status        string

	BillToName    string
	BillToAddress []string
	ShipToName    string
	ShipToAddress []string
	Shipping      string

	Items []InvoiceItem

	Subtotal    string
	Discount    string
	CouponCode  string
	TaxLabel    string
	TaxAmount   string
	ShippingFee string
	GrandTotal  string
}

type InvoiceItem struct {
	Description string
	SKU         string
	Qty         int
	UnitPrice   string
	Amount      string
}

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

func (p *PDFProvider) GenerateInvoice(ctx context.Context, invoice InvoiceData) (io.Reader, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(8, invoice.StoreName, props.Text{Size: 16, Style: fontstyle.Bold}),
		text.NewCol(4, "Invoice", props.Text{Size: 20, Style: fontstyle.Bold, Align: align.Right}),
	)
	m.AddRow(16,
		col.New(6).Add(
			text.New(invoice.StoreAddress, props.Text{Size: 9}),
			text.New(invoice.StoreEmail, props.Text{Size: 9, Top: 4}),
			text.New(invoice.StorePhone, props.Text{Size: 9, Top: 8}),
		),
		col.New(6).Add(
			text.New("Invoice number: "+invoice.InvoiceNumber, props.Text{Size: 9, Align: align.Right}),
			text.New("Date of issue: "+invoice.IssueDate, props.Text{Size: 9, Top: 4, Align: align.Right}),
			text.New("Order: "+invoice.OrderID, props.Text{Size: 9, Top: 8, Align: align.Right}),
			text.New("Status: "+invoice.Status, props.Text{Size: 9, Top: 12, Align: align.Right}),
		),
	)

	m.AddRow(36,
		addressCol("Bill to", invoice.BillToName, invoice.BillToAddress),
		addressCol("Ship to", invoice.ShipToName, invoice.ShipToAddress),
		col.New(4).Add(
			text.New("Shipping", props.Text{Style: fontstyle.Bold}),
			text.New(invoice.Shipping, props.Text{Size: 9, Top: 5}),
		),
	)

	m.AddRow(8,
		text.NewCol(5, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "SKU", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(1, "Qty", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Unit price", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	m.AddRow(2, line.NewCol(12))

	for _, item := range invoice.Items {
		m.AddRow(8,
			text.NewCol(5, item.Description, props.Text{Size: 9}),
			text.NewCol(2, item.SKU, props.Text{Size: 9}),
			text.NewCol(1, fmt.Sprintf("%d", item.Qty), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.UnitPrice, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.Amount, props.Text{Size: 9, Align: align.Right}),
		)
	}
	m.AddRow(2, line.NewCol(12))

	totalRow(m, "Subtotal", invoice.Subtotal, false)
	if invoice.Discount != "" {
		label := "Discount"
		if invoice.CouponCode != "" {
			label += " (" + invoice.CouponCode + ")"
		}
		totalRow(m, label, "-"+invoice.Discount, false)
	}
	if invoice.TaxAmount != "" {
		totalRow(m, invoice.TaxLabel, invoice.TaxAmount, false)
	}
	totalRow(m, "Shipping", invoice.ShippingFee, false)
	totalRow(m, "Total", invoice.GrandTotal, true)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(doc.GetBytes()), nil
}

func addressCol(title, name string, lines []string) core.Col {
	c := col.New(4).Add(
		text.New(title, props.Text{Style: fontstyle.Bold}),
		text.New(name, props.Text{Size: 9, Top: 5}),
	)
	for i, l := range lines {
		c.Add(text.New(l, props.Text{Size: 9, Top: float64(9 + 4*i)}))
	}
	return c
}

func totalRow(m core.Maroto, label, value string, bold bool) {
	style := fontstyle.Normal
	if bold {
		style = fontstyle.Bold
	}
	m.AddRow(7,
		col.New(7),
		text.NewCol(3, label, props.Text{Size: 9, Style: style}),
		text.NewCol(2, value, props.Text{Size: 9, Style: style, Align: align.Right}),
	)
}
