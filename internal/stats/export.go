package stats

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/LW1989/red-data-database/internal/model"
	"github.com/LW1989/red-data-database/internal/store"
)

// exportPageSize is how many statistics an export fetches per query.
const exportPageSize = 1000

// Exporter streams stored statistics out of the result table as CSV or
// XLSX, in registry column order.
type Exporter struct {
	store   store.Store
	columns []string
}

// NewExporter builds an exporter for the registry's output columns.
func NewExporter(st store.Store, reg *Registry) *Exporter {
	return &Exporter{store: st, columns: reg.Columns()}
}

func (e *Exporter) header() []string {
	header := make([]string, 0, len(e.columns)+2)
	header = append(header, "property_id")
	header = append(header, e.columns...)
	return append(header, "created_at")
}

func (e *Exporter) forEach(ctx context.Context, fn func(model.WeightedStatistic)) (int, error) {
	total := 0
	for offset := 0; ; offset += exportPageSize {
		page, err := e.store.ListStatistics(ctx, store.StatFilter{
			Limit:  exportPageSize,
			Offset: offset,
		})
		if err != nil {
			return total, eris.Wrap(err, "stats: list statistics")
		}
		for _, stat := range page {
			fn(stat)
		}
		total += len(page)
		if len(page) < exportPageSize {
			return total, nil
		}
	}
}

// ExportCSV writes all stored statistics to w as comma-separated CSV.
// Returns the number of data rows written.
func (e *Exporter) ExportCSV(ctx context.Context, w io.Writer) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(e.header()); err != nil {
		return 0, eris.Wrap(err, "stats: write csv header")
	}

	var writeErr error
	n, err := e.forEach(ctx, func(stat model.WeightedStatistic) {
		if writeErr != nil {
			return
		}
		record := make([]string, 0, len(e.columns)+2)
		record = append(record, stat.PropertyID)
		for _, col := range e.columns {
			record = append(record, formatValue(stat.Value(col)))
		}
		record = append(record, stat.CreatedAt.UTC().Format(time.RFC3339))
		writeErr = cw.Write(record)
	})
	if err != nil {
		return n, err
	}
	if writeErr != nil {
		return n, eris.Wrap(writeErr, "stats: write csv row")
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return n, eris.Wrap(err, "stats: flush csv")
	}
	return n, nil
}

// ExportXLSX writes all stored statistics to w as a single-sheet XLSX
// workbook. Returns the number of data rows written.
func (e *Exporter) ExportXLSX(ctx context.Context, w io.Writer) (int, error) {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("statistics")
	if err != nil {
		return 0, eris.Wrap(err, "stats: add xlsx sheet")
	}

	headerRow := sheet.AddRow()
	for _, col := range e.header() {
		headerRow.AddCell().SetString(col)
	}

	n, err := e.forEach(ctx, func(stat model.WeightedStatistic) {
		row := sheet.AddRow()
		row.AddCell().SetString(stat.PropertyID)
		for _, col := range e.columns {
			cell := row.AddCell()
			if v := stat.Value(col); v != nil {
				cell.SetFloat(*v)
			}
		}
		row.AddCell().SetString(stat.CreatedAt.UTC().Format(time.RFC3339))
	})
	if err != nil {
		return n, err
	}

	if err := file.Write(w); err != nil {
		return n, eris.Wrap(err, "stats: write xlsx")
	}
	return n, nil
}

func formatValue(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
