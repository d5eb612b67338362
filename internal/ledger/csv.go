package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	v1 "github.com/aevon-lab/tally/internal/api/v1"
)

// DefaultDelimiter separates cells in a delimited ledger.
const DefaultDelimiter = ','

// ParseCSV reads a delimited ledger: one header line, then one transaction per line.
// Blank lines are skipped and every header and cell is trimmed of surrounding whitespace.
// delimiter 0 means DefaultDelimiter.
func ParseCSV(r io.Reader, delimiter rune) ([]v1.Record, error) {
	if delimiter == 0 {
		delimiter = DefaultDelimiter
	}

	cr := csv.NewReader(r)
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	var h *header
	for h == nil {
		cells, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyLedger
		}
		if err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}
		if blank(cells) {
			continue
		}
		if h, err = newHeader(cells); err != nil {
			return nil, err
		}
	}

	records := make([]v1.Record, 0)
	for {
		cells, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read ledger: %w", err)
		}
		if blank(cells) {
			continue
		}
		line, _ := cr.FieldPos(0)
		rec, err := h.record(line, cells)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}
