package collapsed_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MuchToMyDelight/hotspot/pkg/profile/collapsed"
	"github.com/MuchToMyDelight/hotspot/pkg/profile/sample"
)

func TestCollapsedDecode(t *testing.T) {
	for i, test := range []struct {
		raw         string
		samples     []sample.Sample
		discarded   int
		expected    string
		noroundtrip bool
	}{{
		raw: `printf;malloc;memcpy 42`,
		samples: []sample.Sample{{
			Stack:  []string{"memcpy", "malloc", "printf"},
			Values: []int64{42},
		}},
	}, {
		raw: `aaa aaa 1


std::__v1::__unordered_map_base<std::__v1::__unordered_map_derived_base_direct_virtual_holder_1<std::__v1::basic_string_without_cow 1099511627776`,
		samples: []sample.Sample{{
			Stack:  []string{"aaa aaa"},
			Values: []int64{1},
		}, {
			Stack:  []string{"std::__v1::__unordered_map_base<std::__v1::__unordered_map_derived_base_direct_virtual_holder_1<std::__v1::basic_string_without_cow"},
			Values: []int64{1099511627776},
		}},
		noroundtrip: true,
	}, {
		raw: `hex;count 0xdeadbeef`,
		samples: []sample.Sample{{
			Stack:  []string{"count", "hex"},
			Values: []int64{3735928559},
		}},
		expected: `hex;count 3735928559`,
	}, {
		raw:       `abc`,
		samples:   []sample.Sample{},
		discarded: 1,
	}, {
		raw: `i love c++
good;stack 5
neg;count -3`,
		samples: []sample.Sample{{
			Stack:  []string{"stack", "good"},
			Values: []int64{5},
		}},
		discarded:   2,
		noroundtrip: true,
	}} {
		t.Run(fmt.Sprintf("collapsed/%d", i), func(t *testing.T) {
			prof, err := collapsed.Unmarshal([]byte(test.raw))
			require.NoError(t, err)
			require.Equal(t, []string{"samples"}, prof.TypeNames)
			require.Equal(t, test.samples, prof.Samples)
			require.Equal(t, test.discarded, prof.Stats.Discarded)

			raw, err := collapsed.Marshal(prof, 0)
			require.NoError(t, err)
			if !test.noroundtrip {
				if test.expected != "" {
					require.Equal(t, test.expected, strings.TrimSpace(string(raw)))
				} else {
					require.Equal(t, test.raw, strings.TrimSpace(string(raw)))
				}
			}
		})
	}
}

func TestCollapsedEncodeChannel(t *testing.T) {
	prof := sample.New("cycles", "instructions")
	prof.Add([]string{"leaf", "main"}, []int64{10, 70})

	raw, err := collapsed.Marshal(prof, 1)
	require.NoError(t, err)
	require.Equal(t, "main;leaf 70", strings.TrimSpace(string(raw)))

	_, err = collapsed.Marshal(prof, 2)
	require.Error(t, err)
	_, err = collapsed.Marshal(prof, -1)
	require.Error(t, err)
}

func TestCollapsedEncodeKeepsProfile(t *testing.T) {
	prof := sample.New("samples")
	prof.Add([]string{"leaf", "main"}, []int64{1})

	_, err := collapsed.Marshal(prof, 0)
	require.NoError(t, err)
	require.Equal(t, []string{"leaf", "main"}, prof.Samples[0].Stack)
}
