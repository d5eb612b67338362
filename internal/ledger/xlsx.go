package ledger

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	v1 "github.com/aevon-lab/tally/internal/api/v1"
)

// ParseXLSX reads a ledger from a workbook sheet laid out like the delimited format:
// header on the first non-blank row, one transaction per following row.
// An empty sheet name selects the first sheet of the workbook.
func ParseXLSX(r io.Reader, sheet string) ([]v1.Record, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrEmptyLedger
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	slog.Debug("[Ledger] Workbook sheet loaded", "sheet", sheet, "rows", len(rows))

	if err := normalizeDates(f, sheet, rows); err != nil {
		return nil, err
	}
	return FromRows(rows)
}

// normalizeDates rewrites Date cells stored as Excel dates to YYYY-MM-DD.
// Raw reads return such cells as serial numbers. Text cells are left as written.
func normalizeDates(f *excelize.File, sheet string, rows [][]string) error {
	start := firstNonBlank(rows)
	if start < 0 {
		return nil
	}
	col := -1
	for i, c := range rows[start] {
		if strings.TrimSpace(c) == v1.ColumnDate {
			col = i
			break
		}
	}
	if col < 0 {
		return nil
	}

	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	for i := start + 1; i < len(rows); i++ {
		if col >= len(rows[i]) || strings.TrimSpace(rows[i][col]) == "" {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(col+1, i+1)
		if err != nil {
			return err
		}
		typ, err := f.GetCellType(sheet, cell)
		if err != nil {
			return fmt.Errorf("read cell %s: %w", cell, err)
		}
		if date, ok := excelDate(typ, strings.TrimSpace(rows[i][col]), date1904); ok {
			rows[i][col] = date
		}
	}
	return nil
}

// excelDate converts a numeric serial or an ISO 8601 date cell to YYYY-MM-DD.
func excelDate(typ excelize.CellType, raw string, date1904 bool) (string, bool) {
	switch typ {
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		serial, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return "", false
		}
		t, err := excelize.ExcelDateToTime(serial, date1904)
		if err != nil {
			return "", false
		}
		return t.Format(time.DateOnly), true
	case excelize.CellTypeDate:
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return "", false
		}
		return t.Format(time.DateOnly), true
	}
	return "", false
}

// FromRows parses a header row followed by data rows. Row numbers in errors are 1-based.
func FromRows(rows [][]string) ([]v1.Record, error) {
	start := firstNonBlank(rows)
	if start < 0 {
		return nil, ErrEmptyLedger
	}

	h, err := newHeader(rows[start])
	if err != nil {
		return nil, err
	}

	records := make([]v1.Record, 0, len(rows)-start-1)
	for i := start + 1; i < len(rows); i++ {
		if blank(rows[i]) {
			continue
		}
		rec, err := h.record(i+1, rows[i])
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func firstNonBlank(rows [][]string) int {
	for i, row := range rows {
		if !blank(row) {
			return i
		}
	}
	return -1
}
