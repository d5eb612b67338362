package aggregation

import (
	"math"
	"math/big"
	"strconv"

	"github.com/shopspring/decimal"
)

// exactDigits is enough fractional digits to print any float64 exactly.
const exactDigits = 1074

// FormatFixed renders v with exactly places fractional digits.
// Rounding works on the exact binary value of v, so 1.005 (stored as 1.00499...) renders
// "1.00", while an exact tie such as 0.125 rounds away from zero to "0.13".
func FormatFixed(v float64, places int32) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}

	exact := new(big.Float).SetFloat64(v).Text('f', exactDigits)
	d, err := decimal.NewFromString(exact)
	if err != nil {
		return strconv.FormatFloat(v, 'f', int(places), 64)
	}
	return d.StringFixed(places)
}
