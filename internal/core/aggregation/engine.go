package aggregation

import (
	"errors"
	"fmt"

	v1 "github.com/aevon-lab/tally/internal/api/v1"
)

var (
	// ErrUnknownReport is returned when a report name is not in the Reports registry.
	ErrUnknownReport = errors.New("unknown report")
	// ErrInvalidMinSeed is returned for a MinSeed other than MinSeedZero or MinSeedFirst.
	ErrInvalidMinSeed = errors.New("invalid min seed")
)

// Report fills its own field of a Summary from the ledger.
type Report func(records []v1.Record, opts Options, out *Summary) error

// Reports is the registry of all supported reports.
var Reports = map[string]Report{
	ReportTotalSales: func(records []v1.Record, _ Options, out *Summary) error {
		total := TotalSales(records)
		out.TotalSales = &total
		return nil
	},
	ReportMonthlySales: func(records []v1.Record, opts Options, out *Summary) (err error) {
		out.MonthlySales, err = MonthlySales(records, opts)
		return err
	},
	ReportPopularItems: func(records []v1.Record, opts Options, out *Summary) (err error) {
		out.PopularItems, err = PopularItems(records, opts)
		return err
	},
	ReportTopRevenueItems: func(records []v1.Record, opts Options, out *Summary) (err error) {
		out.TopRevenueItems, err = TopRevenueItems(records, opts)
		return err
	},
	ReportPopularItemStats: func(records []v1.Record, opts Options, out *Summary) (err error) {
		out.PopularItemStats, err = PopularItemStats(records, opts)
		return err
	},
}

// ReportOrder is the canonical order in which reports run and are printed.
var ReportOrder = []string{
	ReportTotalSales,
	ReportMonthlySales,
	ReportPopularItems,
	ReportTopRevenueItems,
	ReportPopularItemStats,
}

// ValidReport reports whether name is a registered report.
func ValidReport(name string) bool {
	_, ok := Reports[name]
	return ok
}

// Engine runs a fixed selection of reports over a ledger.
// It holds no state between runs and is safe for concurrent use.
type Engine struct {
	opts    Options
	reports []string
}

// NewEngine validates opts and the report selection. No names selects every report.
// Selected reports always run in ReportOrder, whatever order they were given in.
func NewEngine(opts Options, reports ...string) (*Engine, error) {
	switch opts.MinSeed {
	case "":
		opts.MinSeed = MinSeedZero
	case MinSeedZero, MinSeedFirst:
	default:
		return nil, fmt.Errorf("%w %q: must be %q or %q", ErrInvalidMinSeed, opts.MinSeed, MinSeedZero, MinSeedFirst)
	}

	selected := make(map[string]bool, len(reports))
	for _, name := range reports {
		if !ValidReport(name) {
			return nil, fmt.Errorf("%w %q", ErrUnknownReport, name)
		}
		selected[name] = true
	}

	e := &Engine{opts: opts}
	for _, name := range ReportOrder {
		if len(selected) == 0 || selected[name] {
			e.reports = append(e.reports, name)
		}
	}
	return e, nil
}

// Reports returns the selected report names in run order.
func (e *Engine) Reports() []string {
	out := make([]string, len(e.reports))
	copy(out, e.reports)
	return out
}

// Options returns the effective options.
func (e *Engine) Options() Options {
	return e.opts
}

// Run computes every selected report over records. The input is never modified.
func (e *Engine) Run(records []v1.Record) (*Summary, error) {
	out := &Summary{}
	for _, name := range e.reports {
		if err := Reports[name](records, e.opts, out); err != nil {
			return nil, fmt.Errorf("report %s: %w", name, err)
		}
	}
	return out, nil
}
