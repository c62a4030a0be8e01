package perfscript_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MuchToMyDelight/hotspot/pkg/profile/perfscript"
)

const script = `cpu_burner 250000 cycles:
	    55d8305489a1 main
	    7f3c5e829d90 __libc_start_call_main
	    7f3c5e829e40 __libc_start_main

swapper 1 cycles:
	ffffffff81000000 do_idle
	ffffffff81000010 cpu_startup_entry

`

func TestDecode(t *testing.T) {
	prof, err := perfscript.Unmarshal([]byte(script), "")
	require.NoError(t, err)

	require.Equal(t, []string{"cycles"}, prof.TypeNames)
	require.Len(t, prof.Samples, 2)
	require.Equal(t, 0, prof.Stats.Discarded)

	require.Equal(t,
		[]string{"main", "__libc_start_call_main", "__libc_start_main"},
		prof.Samples[0].Stack,
	)
	require.Equal(t, []int64{250000}, prof.Samples[0].Values)

	require.Equal(t,
		[]string{"do_idle [kernel]", "cpu_startup_entry [kernel]"},
		prof.Samples[1].Stack,
	)
	require.Equal(t, []int64{1}, prof.Samples[1].Values)
}

func TestDecodeEventFilter(t *testing.T) {
	mixed := `burner 100 cycles:
	55d8305489a1 main

burner 7 task-clock:
	55d8305489a1 main

burner 200 cycles:
	55d8305489b2 work

`
	for i, test := range []struct {
		event     string
		channel   string
		samples   int
		discarded int
	}{
		{event: "", channel: "cycles", samples: 2, discarded: 1},
		{event: "cycles", channel: "cycles", samples: 2, discarded: 1},
		{event: "task-clock", channel: "task-clock", samples: 1, discarded: 2},
		{event: "page-faults", channel: "page-faults", samples: 0, discarded: 3},
	} {
		t.Run(fmt.Sprintf("%s/%d", test.event, i), func(t *testing.T) {
			prof, err := perfscript.Unmarshal([]byte(mixed), test.event)
			require.NoError(t, err)
			require.Equal(t, []string{test.channel}, prof.TypeNames)
			require.Len(t, prof.Samples, test.samples)
			require.Equal(t, test.discarded, prof.Stats.Discarded)
		})
	}
}

func TestDecodeMalformedHeader(t *testing.T) {
	_, err := perfscript.Unmarshal([]byte("this is not perf script output\n"), "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "malformed header")
}

func TestDecodeBadFrameDropsSample(t *testing.T) {
	input := `burner 100 cycles:
	zzzz main
	55d8305489a1 ignored_after_bad_frame

burner 200 cycles:
	55d8305489b2 work

`
	prof, err := perfscript.Unmarshal([]byte(input), "")
	require.NoError(t, err)
	require.Len(t, prof.Samples, 1)
	require.Equal(t, []string{"work"}, prof.Samples[0].Stack)
	require.Equal(t, 1, prof.Stats.Discarded)
}

func TestDecodeEmptyStack(t *testing.T) {
	input := `burner 100 cycles:

burner 200 cycles:
	55d8305489b2 work

`
	prof, err := perfscript.Unmarshal([]byte(input), "")
	require.NoError(t, err)
	require.Len(t, prof.Samples, 1)
	require.Equal(t, 1, prof.Stats.Discarded)
}

func TestSniff(t *testing.T) {
	for i, test := range []struct {
		data string
		want bool
	}{
		{data: script, want: true},
		{data: "\n\nburner 100 cycles:\n", want: true},
		{data: "main;work;leaf 42\n", want: false},
		{data: "", want: false},
		{data: "00000000000011e0 <compute>:\n", want: false},
	} {
		t.Run(fmt.Sprintf("case/%d", i), func(t *testing.T) {
			require.Equal(t, test.want, perfscript.Sniff([]byte(test.data)))
		})
	}
}

func TestResults(t *testing.T) {
	input := `burner 100 cycles:
	55d8305489a1 compute
	55d830548a00 main

burner 50 cycles:
	55d8305489b0 compute
	55d830548a00 main

`
	res, err := perfscript.Results(strings.NewReader(input), "")
	require.NoError(t, err)
	require.Equal(t, []string{"cycles"}, res.TypeNames())

	compute := res.Entry("compute")
	require.NotNil(t, compute)

	lc, ok := compute.OffsetCost(0x55d8305489a1)
	require.True(t, ok)
	require.Equal(t, []int64{100}, lc.Self)
	require.Equal(t, []int64{100}, lc.Inclusive)

	lc, ok = compute.OffsetCost(0x55d8305489b0)
	require.True(t, ok)
	require.Equal(t, []int64{50}, lc.Self)

	main := res.Entry("main")
	require.NotNil(t, main)
	lc, ok = main.OffsetCost(0x55d830548a00)
	require.True(t, ok)
	require.Equal(t, []int64{0}, lc.Self)
	require.Equal(t, []int64{150}, lc.Inclusive)
}

func TestResultsRecursion(t *testing.T) {
	input := `burner 8 cycles:
	55d8305489a1 fib
	55d8305489c4 fib
	55d830548a00 main

`
	res, err := perfscript.Results(strings.NewReader(input), "")
	require.NoError(t, err)

	fib := res.Entry("fib")
	require.NotNil(t, fib)
	require.Equal(t, int64(8), res.Inclusive.Cost(0, res.SymbolID("fib")))
	require.Equal(t, 1, fib.NumOffsets())

	lc, ok := fib.OffsetCost(0x55d8305489a1)
	require.True(t, ok)
	require.Equal(t, []int64{8}, lc.Inclusive)
}

func TestCommand(t *testing.T) {
	require.Equal(t,
		"perf script -i perf.data -F event,period,comm,ip,sym",
		perfscript.Command("perf", "perf.data"),
	)
}
