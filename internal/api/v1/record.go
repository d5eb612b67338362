package v1

import (
	"fmt"
)

// Ledger column names. Header cells are matched after trimming surrounding whitespace.
const (
	ColumnDate       = "Date"
	ColumnSKU        = "SKU"
	ColumnUnitPrice  = "Unit Price"
	ColumnQuantity   = "Quantity"
	ColumnTotalPrice = "Total Price"
)

// RequiredColumns lists the headers every ledger must carry.
var RequiredColumns = []string{ColumnDate, ColumnSKU, ColumnUnitPrice, ColumnQuantity, ColumnTotalPrice}

// Record is one sales ledger row: a single transaction.
// Records are produced once by a ledger parser or source and are read-only afterwards.
type Record struct {
	// Date is the transaction date as written in the ledger, expected as YYYY-MM-DD.
	// Kept as a string so the year component is reported exactly as written.
	Date string `json:"date"`

	// SKU identifies the item sold.
	SKU string `json:"sku"`

	UnitPrice  float64 `json:"unit_price"`
	Quantity   float64 `json:"quantity"`
	TotalPrice float64 `json:"total_price"`

	// Extra carries any other ledger columns verbatim. Never read by the reports.
	Extra map[string]string `json:"extra,omitempty"`
}

// Validate ensures the record carries the fields the reports group on.
// Numbers are not range-checked: coercion happens at parse time and nothing more.
func (r *Record) Validate() error {
	if r.Date == "" {
		return fmt.Errorf("date is required")
	}

	if r.SKU == "" {
		return fmt.Errorf("sku is required")
	}

	return nil
}
