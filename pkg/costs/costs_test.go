package costs_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MuchToMyDelight/hotspot/pkg/costs"
)

func TestTableAccumulation(t *testing.T) {
	for i, test := range []struct {
		types  []string
		adds   map[int][][]int64
		costs  map[int][]int64
		totals []int64
	}{{
		types: []string{"cycles"},
		adds: map[int][][]int64{
			10: {{1}, {2}},
			7:  {{39}},
		},
		costs:  map[int][]int64{10: {3}, 7: {39}, 11: {0}},
		totals: []int64{42},
	}, {
		types: []string{"cycles", "instructions"},
		adds: map[int][][]int64{
			1: {{5, 100}, {0, 1}},
			2: {{7, 0}},
		},
		costs:  map[int][]int64{1: {5, 101}, 2: {7, 0}},
		totals: []int64{12, 101},
	}, {
		types:  []string{"samples"},
		adds:   map[int][][]int64{},
		costs:  map[int][]int64{123: {0}},
		totals: []int64{0},
	}} {
		t.Run(fmt.Sprintf("table/%d", i), func(t *testing.T) {
			table := costs.New[int](test.types...)
			require.Equal(t, len(test.types), table.NumTypes())
			for key, vectors := range test.adds {
				for _, values := range vectors {
					table.Add(key, values)
				}
			}
			for key, expected := range test.costs {
				for typ, cost := range expected {
					require.Equal(t, cost, table.Cost(typ, key), "type %d key %d", typ, key)
				}
			}
			require.Equal(t, test.totals, table.TotalCosts())
			for typ, total := range test.totals {
				require.Equal(t, total, table.TotalCost(typ))
			}
		})
	}
}

func TestTableTypes(t *testing.T) {
	table := costs.New[int32]()

	idx, err := table.AddType("cycles")
	require.NoError(t, err)
	require.Equal(t, 0, idx)

	idx, err = table.AddType("instructions")
	require.NoError(t, err)
	require.Equal(t, 1, idx)

	_, err = table.AddType("cycles")
	require.ErrorIs(t, err, costs.ErrDuplicateType)

	require.Equal(t, []string{"cycles", "instructions"}, table.TypeNames())
	require.Equal(t, "instructions", table.TypeName(1))

	idx, ok := table.TypeIndex("instructions")
	require.True(t, ok)
	require.Equal(t, 1, idx)

	_, ok = table.TypeIndex("branches")
	require.False(t, ok)
}

func TestInitializeFrom(t *testing.T) {
	src := costs.New[int64]("cycles", "instructions")
	src.Add(100, []int64{10, 20})

	dst := costs.InitializeFrom[int](src)
	require.Equal(t, src.TypeNames(), dst.TypeNames())
	require.Equal(t, []int64{0, 0}, dst.TotalCosts())

	dst.Add(1, []int64{1, 1})
	require.Equal(t, int64(10), src.Cost(0, 100))
	require.Equal(t, int64(1), dst.Cost(0, 1))
}

func TestTableContractViolations(t *testing.T) {
	table := costs.New[int]("cycles", "instructions")

	require.Panics(t, func() {
		table.Add(1, []int64{1})
	})
	require.Panics(t, func() {
		table.Add(1, []int64{1, -1})
	})
	require.NotPanics(t, func() {
		table.Add(1, []int64{1, 0})
	})
}
