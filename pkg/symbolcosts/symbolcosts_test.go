package symbolcosts_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MuchToMyDelight/hotspot/pkg/symbolcosts"
)

func TestResultsAccumulation(t *testing.T) {
	res := symbolcosts.NewResults("cycles", "instructions")

	res.AddSelf("compress", 0x1129, []int64{10, 30})
	res.AddSelf("compress", 0x1129, []int64{5, 0})
	res.AddSelf("compress", 0x1140, []int64{1, 2})
	res.AddInclusive("compress", 0x1129, []int64{20, 40})
	res.AddInclusive("main", 0x2000, []int64{20, 40})

	compress := res.SymbolID("compress")
	main := res.SymbolID("main")
	require.NotEqual(t, compress, main)
	require.Equal(t, compress, res.SymbolID("compress"))
	require.Equal(t, "compress", res.SymbolName(compress))

	require.Equal(t, int64(16), res.Self.Cost(0, compress))
	require.Equal(t, int64(32), res.Self.Cost(1, compress))
	require.Equal(t, int64(20), res.Inclusive.Cost(0, compress))
	require.Equal(t, int64(0), res.Self.Cost(0, main))
	require.Equal(t, int64(20), res.Inclusive.Cost(0, main))

	entry := res.Entry("compress")
	require.NotNil(t, entry)
	require.Equal(t, 2, entry.NumOffsets())

	lc, ok := entry.OffsetCost(0x1129)
	require.True(t, ok)
	require.Equal(t, []int64{15, 30}, lc.Self)
	require.Equal(t, []int64{20, 40}, lc.Inclusive)

	lc, ok = entry.OffsetCost(0x1140)
	require.True(t, ok)
	require.Equal(t, []int64{1, 2}, lc.Self)
	require.Equal(t, []int64{0, 0}, lc.Inclusive)

	_, ok = entry.OffsetCost(0xdead)
	require.False(t, ok)
}

func TestResultsUnknownSymbol(t *testing.T) {
	res := symbolcosts.NewResults("cycles")
	res.AddSelf("known", 0x1, []int64{1})

	require.Nil(t, res.Entry("unknown"))
	require.Equal(t, []string{"known"}, res.Symbols())
}

func TestResultsTypeNames(t *testing.T) {
	res := symbolcosts.NewResults("cycles", "instructions")
	require.Equal(t, []string{"cycles", "instructions"}, res.TypeNames())
	require.Equal(t, 2, res.NumTypes())
}
