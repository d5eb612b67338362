package aggregation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestOrderedMap_KeepsInsertionOrder(t *testing.T) {
	var m OrderedMap[int]
	m.Set("b", 1)
	m.Set("a", 2)
	m.Set("c", 3)
	m.Set("b", 10)

	require.Equal(t, []string{"b", "a", "c"}, m.Keys())
	require.Equal(t, 3, m.Len())
	v, ok := m.Get("b")
	require.True(t, ok)
	require.Equal(t, 10, v)

	got := m.Upsert("d", func(cur int, exists bool) int {
		require.False(t, exists)
		return cur + 4
	})
	require.Equal(t, 4, got)
	require.Equal(t, []string{"b", "a", "c", "d"}, m.Keys())
}

func TestOrderedMap_KeysIsACopy(t *testing.T) {
	m := NewOrderedMap[int]()
	m.Set("x", 1)
	keys := m.Keys()
	keys[0] = "mutated"
	require.Equal(t, []string{"x"}, m.Keys())
}

func TestGrouped_BucketAndEach(t *testing.T) {
	g := NewGrouped[float64]()
	g.Upsert("2020", "March", func(cur float64, _ bool) float64 { return cur + 1 })
	g.Upsert("2019", "January", func(cur float64, _ bool) float64 { return cur + 2 })
	g.Upsert("2020", "January", func(cur float64, _ bool) float64 { return cur + 3 })
	g.Upsert("2020", "March", func(cur float64, _ bool) float64 { return cur + 4 })

	require.Equal(t, []string{"2020", "2019"}, g.Years())
	require.Equal(t, []string{"March", "January"}, g.Months("2020"))
	require.Nil(t, g.Months("1999"))
	require.Equal(t, 3, g.Len())

	v, ok := g.Get("2020", "March")
	require.True(t, ok)
	require.Equal(t, 5.0, v)
	_, ok = g.Get("2020", "May")
	require.False(t, ok)

	var visited []string
	g.Each(func(year, month string, _ float64) {
		visited = append(visited, year+"/"+month)
	})
	require.Equal(t, []string{"2020/March", "2020/January", "2019/January"}, visited)

	calls := 0
	init := func() float64 { calls++; return 42 }
	require.Equal(t, 5.0, g.Bucket("2020", "March", init))
	require.Equal(t, 42.0, g.Bucket("2021", "June", init))
	require.Equal(t, 1, calls)
}

func TestGrouped_MarshalJSON(t *testing.T) {
	g := NewGrouped[float64]()
	g.Set("2020", "March", 1.5)
	g.Set("2019", "January", 2)
	g.Set("2020", "January", 3)

	b, err := json.Marshal(g)
	require.NoError(t, err)
	require.Equal(t, `{"2020":{"March":1.5,"January":3},"2019":{"January":2}}`, string(b))

	empty, err := json.Marshal(NewGrouped[float64]())
	require.NoError(t, err)
	require.Equal(t, `{}`, string(empty))
}

func TestGrouped_MarshalYAML(t *testing.T) {
	g := NewGrouped[ItemRevenue]()
	sku := "42"
	g.Set("2019", "February", ItemRevenue{SKU: &sku, Revenue: 12.5})
	g.Set("2019", "January", ItemRevenue{Revenue: 0})

	b, err := yaml.Marshal(g)
	require.NoError(t, err)
	require.Equal(t, `"2019":
    February:
        sku: "42"
        revenue: 12.5
    January:
        sku: null
        revenue: 0
`, string(b))
}
