package costs

import (
	"errors"
	"fmt"

	"golang.org/x/exp/constraints"
)

var ErrDuplicateType = errors.New("costs: duplicate cost type")

// Table accumulates named cost channels keyed by an integer id.
// The key is whatever the caller aggregates over: a call tree node,
// an interned symbol id or a source line number. Values only grow,
// negative deltas are a caller bug.
type Table[K constraints.Integer] struct {
	types  []string
	costs  []map[K]int64
	totals []int64
}

func New[K constraints.Integer](types ...string) *Table[K] {
	t := &Table[K]{}
	for _, name := range types {
		if _, err := t.AddType(name); err != nil {
			panic(err)
		}
	}
	return t
}

// InitializeFrom returns an empty table with the same cost types as src.
// The key types may differ: a per-line table is seeded from a per-symbol
// one without sharing any aggregates.
func InitializeFrom[K, S constraints.Integer](src *Table[S]) *Table[K] {
	return New[K](src.types...)
}

func (t *Table[K]) AddType(name string) (int, error) {
	for _, existing := range t.types {
		if existing == name {
			return 0, fmt.Errorf("%w: %q", ErrDuplicateType, name)
		}
	}
	t.types = append(t.types, name)
	t.costs = append(t.costs, make(map[K]int64))
	t.totals = append(t.totals, 0)
	return len(t.types) - 1, nil
}

func (t *Table[K]) NumTypes() int {
	return len(t.types)
}

func (t *Table[K]) TypeName(typ int) string {
	return t.types[typ]
}

func (t *Table[K]) TypeNames() []string {
	names := make([]string, len(t.types))
	copy(names, t.types)
	return names
}

// TypeIndex resolves a channel by name.
func (t *Table[K]) TypeIndex(name string) (int, bool) {
	for i, existing := range t.types {
		if existing == name {
			return i, true
		}
	}
	return 0, false
}

// Add accumulates one cost vector under key. The vector must carry
// exactly one value per registered type.
func (t *Table[K]) Add(key K, values []int64) {
	if len(values) != len(t.types) {
		panic(fmt.Sprintf("costs: vector of width %d added to a table of %d types", len(values), len(t.types)))
	}
	for i, v := range values {
		if v < 0 {
			panic(fmt.Sprintf("costs: negative cost %d for type %q", v, t.types[i]))
		}
		if v == 0 {
			continue
		}
		t.costs[i][key] += v
		t.totals[i] += v
	}
}

// Cost returns the accumulated cost of key in the given channel.
// Keys never touched by Add report zero.
func (t *Table[K]) Cost(typ int, key K) int64 {
	return t.costs[typ][key]
}

func (t *Table[K]) TotalCost(typ int) int64 {
	return t.totals[typ]
}

func (t *Table[K]) TotalCosts() []int64 {
	totals := make([]int64, len(t.totals))
	copy(totals, t.totals)
	return totals
}
