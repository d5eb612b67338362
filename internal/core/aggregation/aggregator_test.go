package aggregation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOperators_InitialAndApply(t *testing.T) {
	tests := []struct {
		name        string
		op          string
		incoming    float64
		current     float64
		next        float64
		wantInitial float64
		wantApply   float64
	}{
		{name: "count", op: OpCount, incoming: 123, current: 9, next: 456, wantInitial: 1, wantApply: 10},
		{name: "sum", op: OpSum, incoming: 3, current: 9, next: 4, wantInitial: 3, wantApply: 13},
		{name: "min keeps lower", op: OpMin, incoming: 3, current: 9, next: 4, wantInitial: 3, wantApply: 4},
		{name: "min keeps current when incoming is higher", op: OpMin, incoming: 3, current: 4, next: 9, wantInitial: 3, wantApply: 4},
		{name: "min from zero seed", op: OpMin, incoming: 5, current: 0, next: 5, wantInitial: 5, wantApply: 0},
		{name: "max keeps higher", op: OpMax, incoming: 3, current: 9, next: 4, wantInitial: 3, wantApply: 9},
		{name: "max takes incoming when incoming is higher", op: OpMax, incoming: 3, current: 4, next: 9, wantInitial: 3, wantApply: 9},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			agg, ok := Operators[tc.op]
			require.True(t, ok)
			require.Equal(t, tc.wantInitial, agg.Initial(tc.incoming))
			require.Equal(t, tc.wantApply, agg.Apply(tc.current, tc.next))
		})
	}
}

func TestValidOperator(t *testing.T) {
	require.True(t, ValidOperator(OpCount))
	require.True(t, ValidOperator(OpSum))
	require.True(t, ValidOperator(OpMin))
	require.True(t, ValidOperator(OpMax))
	require.False(t, ValidOperator("avg"))
	require.False(t, ValidOperator(""))
}
