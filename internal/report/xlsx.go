package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/aevon-lab/tally/internal/core/aggregation"
)

// Workbook sheet names.
const (
	sheetSummary          = "Summary"
	sheetMonthlySales     = "Monthly Sales"
	sheetPopularItems     = "Popular Items"
	sheetTopRevenueItems  = "Top Revenue Items"
	sheetPopularItemStats = "Popular Item Stats"
)

// XLSXWriter renders a Result as a workbook: a summary sheet plus one table per grouped report.
type XLSXWriter struct{}

func (XLSXWriter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (XLSXWriter) Write(w io.Writer, res *Result) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return err
	}

	s := res.Summary
	summary := [][]interface{}{
		{"Run ID", res.RunID},
		{"Generated At", res.GeneratedAt.Format("2006-01-02T15:04:05Z07:00")},
		{"Source", res.Source},
		{"Records", res.Records},
	}
	if s.TotalSales != nil {
		summary = append(summary, []interface{}{"Total Sales", *s.TotalSales})
	}
	if err := writeRows(f, sheetSummary, summary); err != nil {
		return err
	}

	if s.MonthlySales != nil {
		rows := [][]interface{}{{"Year", "Month", "Revenue"}}
		s.MonthlySales.Each(func(year, month string, v float64) {
			rows = append(rows, []interface{}{year, month, v})
		})
		if err := addSheet(f, sheetMonthlySales, rows); err != nil {
			return err
		}
	}

	if s.PopularItems != nil {
		rows := [][]interface{}{{"Year", "Month", "SKU", "Quantity"}}
		s.PopularItems.Each(func(year, month string, v aggregation.ItemQuantity) {
			rows = append(rows, []interface{}{year, month, skuCell(v.SKU), v.Quantity})
		})
		if err := addSheet(f, sheetPopularItems, rows); err != nil {
			return err
		}
	}

	if s.TopRevenueItems != nil {
		rows := [][]interface{}{{"Year", "Month", "SKU", "Revenue"}}
		s.TopRevenueItems.Each(func(year, month string, v aggregation.ItemRevenue) {
			rows = append(rows, []interface{}{year, month, skuCell(v.SKU), v.Revenue})
		})
		if err := addSheet(f, sheetTopRevenueItems, rows); err != nil {
			return err
		}
	}

	if s.PopularItemStats != nil {
		rows := [][]interface{}{{"Year", "Month", "SKU", "Average", "Min Quantity", "Max Quantity"}}
		s.PopularItemStats.Each(func(year, month string, v aggregation.ItemStats) {
			rows = append(rows, []interface{}{year, month, skuCell(v.SKU), v.Average, v.MinQuantity, v.MaxQuantity})
		})
		if err := addSheet(f, sheetPopularItemStats, rows); err != nil {
			return err
		}
	}

	return f.Write(w)
}

func addSheet(f *excelize.File, name string, rows [][]interface{}) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %q: %w", name, err)
	}
	return writeRows(f, name, rows)
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

// skuCell leaves the cell empty for a month without a leader.
func skuCell(sku *string) interface{} {
	if sku == nil {
		return nil
	}
	return *sku
}
