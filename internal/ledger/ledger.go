// Package ledger turns raw sales ledgers (delimited text or xlsx sheets) into records.
// Numeric columns are coerced exactly once, here. A ledger that fails to parse yields
// no records at all.
package ledger

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	v1 "github.com/aevon-lab/tally/internal/api/v1"
)

var (
	// ErrEmptyLedger is returned when the input has no header line.
	ErrEmptyLedger = errors.New("ledger is empty")
	// ErrMissingHeader is returned when a required column is absent from the header.
	ErrMissingHeader = errors.New("missing required header")
	// ErrInvalidNumber is wrapped by ParseError for a non-numeric price or quantity cell.
	ErrInvalidNumber = errors.New("invalid number")
)

// ParseError locates a cell that could not be coerced.
type ParseError struct {
	Line   int
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d, column %q: %q: %v", e.Line, e.Column, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// header maps trimmed column names to cell positions.
type header struct {
	index map[string]int
	names []string
}

func newHeader(cells []string) (*header, error) {
	h := &header{index: make(map[string]int, len(cells)), names: make([]string, len(cells))}
	for i, c := range cells {
		name := strings.TrimSpace(c)
		h.names[i] = name
		if _, dup := h.index[name]; !dup {
			h.index[name] = i
		}
	}

	var missing []string
	for _, col := range v1.RequiredColumns {
		if _, ok := h.index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingHeader, strings.Join(missing, ", "))
	}
	return h, nil
}

func (h *header) cell(cells []string, col string) string {
	i := h.index[col]
	if i >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[i])
}

// record builds one Record from a data row. line is reported in errors.
func (h *header) record(line int, cells []string) (v1.Record, error) {
	r := v1.Record{
		Date: h.cell(cells, v1.ColumnDate),
		SKU:  h.cell(cells, v1.ColumnSKU),
	}

	numbers := []struct {
		col string
		dst *float64
	}{
		{v1.ColumnUnitPrice, &r.UnitPrice},
		{v1.ColumnQuantity, &r.Quantity},
		{v1.ColumnTotalPrice, &r.TotalPrice},
	}
	for _, n := range numbers {
		raw := h.cell(cells, n.col)
		v, err := parseNumber(raw)
		if err != nil {
			return v1.Record{}, &ParseError{Line: line, Column: n.col, Value: raw, Err: err}
		}
		*n.dst = v
	}

	for i, name := range h.names {
		if name == "" || h.index[name] != i || isRequired(name) || i >= len(cells) {
			continue
		}
		if r.Extra == nil {
			r.Extra = make(map[string]string)
		}
		r.Extra[name] = strings.TrimSpace(cells[i])
	}
	return r, nil
}

func parseNumber(raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrInvalidNumber
	}
	return v, nil
}

func isRequired(name string) bool {
	for _, col := range v1.RequiredColumns {
		if col == name {
			return true
		}
	}
	return false
}

// blank reports whether every cell of a row is whitespace.
func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
