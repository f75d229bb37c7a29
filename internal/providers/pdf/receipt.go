package pdf

import (
	"context"
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// ReceiptItem is one priced line on the receipt.
type ReceiptItem struct {
	Name  string
	Price float64
}

// ReceiptData carries everything printed on a completed-job receipt.
type ReceiptData struct {
	BookingID      string
	Service        string
	Date           string
	Time           string
	Address        string
	CustomerName   string
	CustomerEmail  string
	TechnicianName string
	Items          []ReceiptItem
	Total          float64
}

type Provider struct{}

func NewProvider() *Provider {
	return &Provider{}
}

// GenerateJobReceipt renders a completed-job receipt PDF.
func (p *Provider) GenerateJobReceipt(ctx context.Context, data ReceiptData) ([]byte, error) {
	_ = ctx

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(20,
		text.NewCol(12, "Service Receipt", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(24,
		col.New(6).Add(
			text.New("Booking #"+data.BookingID, props.Text{Style: fontstyle.Bold}),
			text.New("Service: "+data.Service, props.Text{Top: 5}),
			text.New("Date: "+data.Date+" "+data.Time, props.Text{Top: 10}),
			text.New("Address: "+data.Address, props.Text{Top: 15}),
		),
		col.New(6).Add(
			text.New("Customer", props.Text{Style: fontstyle.Bold}),
			text.New(data.CustomerName, props.Text{Top: 5}),
			text.New(data.CustomerEmail, props.Text{Top: 10}),
			text.New("Technician: "+data.TechnicianName, props.Text{Top: 15}),
		),
	)

	m.AddRow(4, line.NewCol(12))

	for _, item := range data.Items {
		m.AddRow(8,
			text.NewCol(8, item.Name),
			text.NewCol(4, formatAmount(item.Price), props.Text{Align: align.Right}),
		)
	}

	m.AddRow(4, line.NewCol(12))
	m.AddRow(10,
		text.NewCol(8, "Total", props.Text{Style: fontstyle.Bold}),
		text.NewCol(4, formatAmount(data.Total), props.Text{
			Style: fontstyle.Bold,
			Align: align.Right,
		}),
	)

	document, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate receipt pdf: %w", err)
	}
	return document.GetBytes(), nil
}

func formatAmount(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
