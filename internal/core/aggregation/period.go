package aggregation

import (
	"errors"
	"fmt"
	"strings"
)

// UndefinedMonth labels the bucket of records whose month code is not in the month table.
const UndefinedMonth = "undefined"

// ErrInvalidMonthCode is returned in strict mode for a date whose month is not "01".."12".
var ErrInvalidMonthCode = errors.New("invalid month code")

// monthNames maps two-digit month codes to English month names. Read-only.
var monthNames = map[string]string{
	"01": "January",
	"02": "February",
	"03": "March",
	"04": "April",
	"05": "May",
	"06": "June",
	"07": "July",
	"08": "August",
	"09": "September",
	"10": "October",
	"11": "November",
	"12": "December",
}

// Period is the (year, month) grouping key derived from a ledger date.
type Period struct {
	Year  string
	Month string
}

// MonthName returns the English name for a two-digit month code.
func MonthName(code string) (string, bool) {
	name, ok := monthNames[code]
	return name, ok
}

// PeriodOf splits a YYYY-MM-DD date into its year and month name.
// The year is returned exactly as written. No calendar validation is done: "2024-02-31" is fine.
// An unknown month code yields UndefinedMonth, or ErrInvalidMonthCode when strict is set.
func PeriodOf(date string, strict bool) (Period, error) {
	parts := strings.Split(date, "-")
	p := Period{Year: parts[0]}

	var code string
	if len(parts) > 1 {
		code = parts[1]
	}

	name, ok := MonthName(code)
	if !ok {
		if strict {
			return Period{}, fmt.Errorf("date %q: %w %q", date, ErrInvalidMonthCode, code)
		}
		name = UndefinedMonth
	}
	p.Month = name
	return p, nil
}
