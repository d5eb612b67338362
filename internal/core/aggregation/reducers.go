package aggregation

import (
	v1 "github.com/aevon-lab/tally/internal/api/v1"
)

// TotalSales returns the sum of TotalPrice over all records, added in ledger order.
// An empty ledger yields 0.
func TotalSales(records []v1.Record) float64 {
	total := 0.0
	for i := range records {
		total += records[i].TotalPrice
	}
	return total
}

// MonthlySales sums TotalPrice per (year, month). Only periods present in the ledger appear.
func MonthlySales(records []v1.Record, opts Options) (*Grouped[float64], error) {
	result := NewGrouped[float64]()
	for i := range records {
		p, err := PeriodOf(records[i].Date, opts.StrictMonths)
		if err != nil {
			return nil, err
		}
		price := records[i].TotalPrice
		result.Upsert(p.Year, p.Month, func(cur float64, _ bool) float64 {
			return cur + price
		})
	}
	return result, nil
}

// PopularItems picks, per (year, month), the SKU with the largest summed Quantity.
func PopularItems(records []v1.Record, opts Options) (*Grouped[ItemQuantity], error) {
	sums, err := sumBySKU(records, opts, func(r *v1.Record) float64 { return r.Quantity })
	if err != nil {
		return nil, err
	}

	result := NewGrouped[ItemQuantity]()
	sums.Each(func(year, month string, skus *OrderedMap[float64]) {
		sku, quantity := leader(skus, identity)
		result.Set(year, month, ItemQuantity{SKU: sku, Quantity: quantity})
	})
	return result, nil
}

// TopRevenueItems picks, per (year, month), the SKU with the largest summed TotalPrice.
func TopRevenueItems(records []v1.Record, opts Options) (*Grouped[ItemRevenue], error) {
	sums, err := sumBySKU(records, opts, func(r *v1.Record) float64 { return r.TotalPrice })
	if err != nil {
		return nil, err
	}

	result := NewGrouped[ItemRevenue]()
	sums.Each(func(year, month string, skus *OrderedMap[float64]) {
		sku, revenue := leader(skus, identity)
		result.Set(year, month, ItemRevenue{SKU: sku, Revenue: revenue})
	})
	return result, nil
}

// PopularItemStats reports, per (year, month), the average, min and max daily quantity
// of the SKU with the largest summed Quantity.
func PopularItemStats(records []v1.Record, opts Options) (*Grouped[ItemStats], error) {
	var (
		count = Operators[OpCount]
		sum   = Operators[OpSum]
		low   = Operators[OpMin]
		high  = Operators[OpMax]
	)
	seedFirst := opts.MinSeed == MinSeedFirst

	acc := NewGrouped[*OrderedMap[*itemStats]]()
	for i := range records {
		p, err := PeriodOf(records[i].Date, opts.StrictMonths)
		if err != nil {
			return nil, err
		}
		q := records[i].Quantity
		skus := acc.Bucket(p.Year, p.Month, NewOrderedMap[*itemStats])

		st, ok := skus.Get(records[i].SKU)
		if !ok {
			// min and max start from zero, not from the first quantity.
			st = &itemStats{min: low.Apply(0, q), max: high.Apply(0, q), total: sum.Initial(q), days: count.Initial(q)}
			if seedFirst {
				st.min = low.Initial(q)
			}
			skus.Set(records[i].SKU, st)
			continue
		}
		st.min = low.Apply(st.min, q)
		st.max = high.Apply(st.max, q)
		st.total = sum.Apply(st.total, q)
		st.days = count.Apply(st.days, q)
	}

	result := NewGrouped[ItemStats]()
	acc.Each(func(year, month string, skus *OrderedMap[*itemStats]) {
		sku, total := leader(skus, func(st *itemStats) float64 { return st.total })
		if sku == nil {
			result.Set(year, month, ItemStats{Average: FormatFixed(0, 2)})
			return
		}
		st, _ := skus.Get(*sku)
		result.Set(year, month, ItemStats{
			SKU:         sku,
			Average:     FormatFixed(total/st.days, 2),
			MinQuantity: st.min,
			MaxQuantity: st.max,
		})
	})
	return result, nil
}

// sumBySKU folds value(record) per (year, month, sku). SKUs keep first-occurrence order.
func sumBySKU(records []v1.Record, opts Options, value func(*v1.Record) float64) (*Grouped[*OrderedMap[float64]], error) {
	acc := NewGrouped[*OrderedMap[float64]]()
	for i := range records {
		p, err := PeriodOf(records[i].Date, opts.StrictMonths)
		if err != nil {
			return nil, err
		}
		v := value(&records[i])
		acc.Bucket(p.Year, p.Month, NewOrderedMap[float64]).Upsert(records[i].SKU, func(cur float64, _ bool) float64 {
			return cur + v
		})
	}
	return acc, nil
}

// leader returns the first SKU whose metric is strictly greater than every metric before it,
// starting from 0. Later SKUs never win a tie. Returns nil and 0 if no metric is positive.
func leader[V any](skus *OrderedMap[V], metric func(V) float64) (*string, float64) {
	var (
		best  float64
		found *string
	)
	skus.Each(func(sku string, v V) {
		if m := metric(v); m > best {
			s := sku
			found, best = &s, m
		}
	})
	return found, best
}

func identity(v float64) float64 { return v }
