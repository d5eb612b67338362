package aggregation

// Report names. These are the keys of the Reports registry and of aggregation.reports in config.
const (
	ReportTotalSales       = "total_sales"
	ReportMonthlySales     = "monthly_sales"
	ReportPopularItems     = "popular_items"
	ReportTopRevenueItems  = "top_revenue_items"
	ReportPopularItemStats = "popular_item_stats"
)

// Min seeding modes for the popular item statistics.
const (
	// MinSeedZero starts the running minimum at 0, so the reported minimum stays 0
	// unless quantities go negative. This is what existing report consumers expect.
	MinSeedZero = "zero"
	// MinSeedFirst starts the running minimum at the first observed quantity.
	MinSeedFirst = "first"
)

// Options tunes edge-case behaviour shared by the reducers.
type Options struct {
	// StrictMonths fails a run on a date whose month code is not "01".."12"
	// instead of grouping it under UndefinedMonth.
	StrictMonths bool
	// MinSeed is MinSeedZero (default when empty) or MinSeedFirst.
	MinSeed string
}

// ItemQuantity is the best-selling item of a month. SKU is nil when no item sold a positive quantity.
type ItemQuantity struct {
	SKU      *string `json:"sku" yaml:"sku"`
	Quantity float64 `json:"quantity" yaml:"quantity"`
}

// ItemRevenue is the top revenue item of a month. SKU is nil when no item earned positive revenue.
type ItemRevenue struct {
	SKU     *string `json:"sku" yaml:"sku"`
	Revenue float64 `json:"revenue" yaml:"revenue"`
}

// ItemStats describes the daily quantities of a month's best-selling item.
// Average is display precision (two decimals), not meant for further arithmetic.
type ItemStats struct {
	SKU         *string `json:"sku" yaml:"sku"`
	Average     string  `json:"average" yaml:"average"`
	MinQuantity float64 `json:"minQuantity" yaml:"minQuantity"`
	MaxQuantity float64 `json:"maxQuantity" yaml:"maxQuantity"`
}

// Summary holds the output of one engine run. Reports that were not selected stay nil.
type Summary struct {
	TotalSales       *float64               `json:"totalSales,omitempty" yaml:"totalSales,omitempty"`
	MonthlySales     *Grouped[float64]      `json:"monthlySales,omitempty" yaml:"monthlySales,omitempty"`
	PopularItems     *Grouped[ItemQuantity] `json:"popularItems,omitempty" yaml:"popularItems,omitempty"`
	TopRevenueItems  *Grouped[ItemRevenue]  `json:"topRevenueItems,omitempty" yaml:"topRevenueItems,omitempty"`
	PopularItemStats *Grouped[ItemStats]    `json:"popularItemStats,omitempty" yaml:"popularItemStats,omitempty"`
}

// itemStats is the per (year, month, sku) accumulator of the statistics reducer.
type itemStats struct {
	min   float64
	max   float64
	total float64
	days  float64
}
