package aggregation

// Aggregator defines the fold semantics of one running statistic.
// To add a new operator: implement this interface and register it in Operators.
type Aggregator interface {
	// Initial returns the statistic after the very first observation for a key.
	// count → 1; sum/min/max → the incoming value itself.
	Initial(incoming float64) float64

	// Apply folds an incoming value into an existing statistic.
	Apply(current, incoming float64) float64
}

// Supported operators.
const (
	OpCount = "count"
	OpSum   = "sum"
	OpMin   = "min"
	OpMax   = "max"
)

// Operators is the registry of all supported fold operators.
var Operators = map[string]Aggregator{
	OpCount: countAgg{},
	OpSum:   sumAgg{},
	OpMin:   minAgg{},
	OpMax:   maxAgg{},
}

// ValidOperator reports whether op is a registered operator.
func ValidOperator(op string) bool {
	_, ok := Operators[op]
	return ok
}

// countAgg increments by 1 per observation. The incoming value is ignored.
type countAgg struct{}

func (countAgg) Initial(_ float64) float64    { return 1 }
func (countAgg) Apply(cur, _ float64) float64 { return cur + 1 }

// sumAgg accumulates the sum of incoming values.
type sumAgg struct{}

func (sumAgg) Initial(v float64) float64      { return v }
func (sumAgg) Apply(cur, inc float64) float64 { return cur + inc }

// minAgg tracks the minimum value seen.
type minAgg struct{}

func (minAgg) Initial(v float64) float64 { return v }
func (minAgg) Apply(cur, inc float64) float64 {
	if inc < cur {
		return inc
	}
	return cur
}

// maxAgg tracks the maximum value seen.
type maxAgg struct{}

func (maxAgg) Initial(v float64) float64 { return v }
func (maxAgg) Apply(cur, inc float64) float64 {
	if inc > cur {
		return inc
	}
	return cur
}
