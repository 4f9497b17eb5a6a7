package report

import (
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"shareofsearch/internal/model"
	"shareofsearch/internal/sos"
)

// Table is a rendered view of one result set. Columns are fixed per view
// and do not depend on whether there are any rows.
type Table struct {
	Title   string     `json:"title"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

func newTable(title string, columns ...string) Table {
	return Table{Title: title, Columns: columns, Rows: [][]string{}}
}

func (t Table) Empty() bool {
	return len(t.Rows) == 0
}

func ShareTable(title string, axis sos.Axis, results []model.ShareResult) Table {
	table := newTable(title,
		model.ColumnPeriod,
		axis.Column(),
		model.ColumnSearchVolume,
		model.ColumnTotalMarketVolume,
		model.ColumnSharePercent,
	)
	for _, result := range results {
		table.Rows = append(table.Rows, []string{
			result.Period,
			result.Entity,
			sos.FormatVolume(result.Volume),
			sos.FormatVolume(result.TotalMarketVolume),
			sos.FormatShare(result.SharePercent),
		})
	}
	return table
}

func AverageTable(title string, axis sos.Axis, results []model.AverageVolumeResult) Table {
	table := newTable(title, model.ColumnPeriod, axis.Column(), model.ColumnAverageSearchVolume)
	for _, result := range results {
		table.Rows = append(table.Rows, []string{
			result.Period,
			result.Entity,
			sos.FormatVolume(result.AverageVolume),
		})
	}
	return table
}

// SegmentTable renders segment averages, which carry no entity column.
func SegmentTable(title string, results []model.AverageVolumeResult) Table {
	table := newTable(title, model.ColumnPeriod, model.ColumnAverageTotalVolume)
	for _, result := range results {
		table.Rows = append(table.Rows, []string{
			result.Period,
			sos.FormatVolume(result.AverageVolume),
		})
	}
	return table
}

func GrowthTable(title string, axis sos.Axis, results []model.GrowthResult) Table {
	table := newTable(title,
		axis.Column(),
		model.ColumnPeriod,
		model.ColumnSearchVolume,
		model.ColumnPriorVolume,
		model.ColumnGrowthPercent,
	)
	for _, result := range results {
		prior := "-"
		if result.PriorVolume != nil {
			prior = sos.FormatVolume(*result.PriorVolume)
		}
		table.Rows = append(table.Rows, []string{
			result.Entity,
			result.Period,
			sos.FormatVolume(result.Volume),
			prior,
			sos.FormatGrowth(result.GrowthPercent),
		})
	}
	return table
}

// HeatmapTable renders a growth matrix with one column per period.
func HeatmapTable(title string, axis sos.Axis, matrix model.GrowthMatrix) Table {
	columns := append([]string{axis.Column()}, matrix.Periods...)
	table := newTable(title, columns...)
	for _, row := range matrix.Rows {
		cells := make([]string, 0, len(row.Values)+1)
		cells = append(cells, row.Entity)
		for _, value := range row.Values {
			cells = append(cells, sos.FormatGrowth(value))
		}
		table.Rows = append(table.Rows, cells)
	}
	return table
}

// Render writes the table to w without borders, headers auto-formatted.
func Render(w io.Writer, table Table) error {
	writer := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{
					AutoWrap: tw.WrapNone,
				},
				Alignment: tw.CellAlignment{
					Global: tw.AlignLeft,
				},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{
					AutoFormat: tw.On,
				},
				Alignment: tw.CellAlignment{
					Global: tw.AlignLeft,
				},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{
					ShowHeader: tw.Off,
				},
			},
		}),
	)

	writer.Header(table.Columns)
	if err := writer.Bulk(table.Rows); err != nil {
		return err
	}
	return writer.Render()
}
