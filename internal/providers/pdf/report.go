package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type ReportData struct {
	OrganizationID string
	Period         string
	GeneratedAt    string
	Summary        ReportRow
	Days           []ReportRow
}

// ReportRow holds one day (or the period total) already formatted for print.
type ReportRow struct {
	Label        string
	Promoters    int64
	Passives     int64
	Detractors   int64
	Responses    int64
	Sent         int64
	NPSScore     string
	ResponseRate string
}

type MarotoProvider struct{}

func (p *MarotoProvider) GenerateNPSReport(ctx context.Context, data ReportData) (io.Reader, error) {
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
		text.NewCol(12, "NPS report", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(16,
		col.New(8).Add(
			text.New("Organization: "+data.OrganizationID, props.Text{Top: 0}),
			text.New("Period: "+data.Period, props.Text{Top: 4}),
			text.New("Generated: "+data.GeneratedAt, props.Text{Top: 8}),
		),
		col.New(4).Add(
			text.New("NPS "+data.Summary.NPSScore, props.Text{Size: 16, Style: fontstyle.Bold, Align: align.Right}),
		),
	)

	m.AddRow(20,
		summaryCol("Promoters", data.Summary.Promoters),
		summaryCol("Passives", data.Summary.Passives),
		summaryCol("Detractors", data.Summary.Detractors),
		col.New(3).Add(
			text.New("Response rate", props.Text{Size: 9, Style: fontstyle.Bold}),
			text.New(orDash(data.Summary.ResponseRate), props.Text{Size: 12, Top: 5}),
		),
	)

	header := props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}
	m.AddRow(10,
		text.NewCol(3, "Date", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(1, "P", header),
		text.NewCol(1, "N", header),
		text.NewCol(1, "D", header),
		text.NewCol(2, "Responses", header),
		text.NewCol(1, "Sent", header),
		text.NewCol(1, "NPS", header),
		text.NewCol(2, "Rate %", header),
	)

	cell := props.Text{Size: 9, Align: align.Right}
	for _, day := range data.Days {
		m.AddRow(8,
			text.NewCol(3, day.Label, props.Text{Size: 9}),
			text.NewCol(1, fmt.Sprintf("%d", day.Promoters), cell),
			text.NewCol(1, fmt.Sprintf("%d", day.Passives), cell),
			text.NewCol(1, fmt.Sprintf("%d", day.Detractors), cell),
			text.NewCol(2, fmt.Sprintf("%d", day.Responses), cell),
			text.NewCol(1, fmt.Sprintf("%d", day.Sent), cell),
			text.NewCol(1, day.NPSScore, cell),
			text.NewCol(2, orDash(day.ResponseRate), cell),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(doc.GetBytes()), nil
}

func summaryCol(label string, value int64) core.Col {
	return col.New(3).Add(
		text.New(label, props.Text{Size: 9, Style: fontstyle.Bold}),
		text.New(fmt.Sprintf("%d", value), props.Text{Size: 12, Top: 5}),
	)
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
