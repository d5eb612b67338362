package aggregation

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// OrderedMap is a string-keyed map that enumerates keys in first-insertion order.
// The zero value is ready to use.
type OrderedMap[V any] struct {
	keys   []string
	values map[string]V
}

// NewOrderedMap returns an empty OrderedMap.
func NewOrderedMap[V any]() *OrderedMap[V] {
	return &OrderedMap[V]{values: make(map[string]V)}
}

// Get returns the value stored under key.
func (m *OrderedMap[V]) Get(key string) (V, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Set stores v under key. A new key is appended to the enumeration order;
// overwriting an existing key keeps its original position.
func (m *OrderedMap[V]) Set(key string, v V) {
	if m.values == nil {
		m.values = make(map[string]V)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

// Upsert replaces the value under key with fn(current, exists) and returns it.
func (m *OrderedMap[V]) Upsert(key string, fn func(cur V, exists bool) V) V {
	cur, ok := m.Get(key)
	next := fn(cur, ok)
	m.Set(key, next)
	return next
}

// Keys returns a copy of the keys in insertion order.
func (m *OrderedMap[V]) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of keys.
func (m *OrderedMap[V]) Len() int {
	return len(m.keys)
}

// Each calls fn for every entry in insertion order.
func (m *OrderedMap[V]) Each(fn func(key string, v V)) {
	for _, k := range m.keys {
		fn(k, m.values[k])
	}
}

// MarshalJSON encodes the map as a JSON object, keys in insertion order.
func (m *OrderedMap[V]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, fmt.Errorf("marshal %q: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML encodes the map as a YAML mapping node, keys in insertion order.
func (m *OrderedMap[V]) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range m.keys {
		var value yaml.Node
		if err := value.Encode(m.values[k]); err != nil {
			return nil, fmt.Errorf("marshal %q: %w", k, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			&value,
		)
	}
	return node, nil
}

// Grouped is a year -> month -> V mapping. Both levels enumerate in first-insertion order,
// so a report lists periods in the order the ledger first mentions them.
type Grouped[V any] struct {
	years OrderedMap[*OrderedMap[V]]
}

// NewGrouped returns an empty Grouped.
func NewGrouped[V any]() *Grouped[V] {
	return &Grouped[V]{}
}

// Get returns the value for (year, month).
func (g *Grouped[V]) Get(year, month string) (V, bool) {
	months, ok := g.years.Get(year)
	if !ok {
		var zero V
		return zero, false
	}
	return months.Get(month)
}

// Set stores v under (year, month).
func (g *Grouped[V]) Set(year, month string, v V) {
	g.months(year).Set(month, v)
}

// Upsert replaces the value under (year, month) with fn(current, exists).
func (g *Grouped[V]) Upsert(year, month string, fn func(cur V, exists bool) V) V {
	return g.months(year).Upsert(month, fn)
}

// Bucket returns the value under (year, month), inserting init() first if absent.
func (g *Grouped[V]) Bucket(year, month string, init func() V) V {
	return g.Upsert(year, month, func(cur V, exists bool) V {
		if exists {
			return cur
		}
		return init()
	})
}

func (g *Grouped[V]) months(year string) *OrderedMap[V] {
	return g.years.Upsert(year, func(cur *OrderedMap[V], exists bool) *OrderedMap[V] {
		if exists {
			return cur
		}
		return NewOrderedMap[V]()
	})
}

// Years returns the years in first-insertion order.
func (g *Grouped[V]) Years() []string {
	return g.years.Keys()
}

// Months returns the months recorded for year in first-insertion order.
func (g *Grouped[V]) Months(year string) []string {
	months, ok := g.years.Get(year)
	if !ok {
		return nil
	}
	return months.Keys()
}

// Len returns the number of (year, month) buckets.
func (g *Grouped[V]) Len() int {
	n := 0
	g.years.Each(func(_ string, months *OrderedMap[V]) {
		n += months.Len()
	})
	return n
}

// Each calls fn for every bucket, years then months in insertion order.
func (g *Grouped[V]) Each(fn func(year, month string, v V)) {
	g.years.Each(func(year string, months *OrderedMap[V]) {
		months.Each(func(month string, v V) {
			fn(year, month, v)
		})
	})
}

func (g *Grouped[V]) MarshalJSON() ([]byte, error) {
	return g.years.MarshalJSON()
}

func (g *Grouped[V]) MarshalYAML() (interface{}, error) {
	return g.years.MarshalYAML()
}
