package pprofconv

import (
	"errors"
	"fmt"

	"github.com/google/pprof/profile"

	"github.com/MuchToMyDelight/hotspot/pkg/profile/sample"
	"github.com/MuchToMyDelight/hotspot/pkg/symbolcosts"
)

// typeNames maps pprof sample types to unique channel names. Types
// alone usually suffice, colliding ones get their unit appended.
func typeNames(prof *profile.Profile) ([]string, error) {
	if len(prof.SampleType) == 0 {
		return nil, errors.New("pprofconv: profile declares no sample types")
	}
	names := make([]string, 0, len(prof.SampleType))
	seen := make(map[string]bool)
	for i, st := range prof.SampleType {
		name := st.Type
		if name == "" {
			name = fmt.Sprintf("type%d", i)
		}
		if seen[name] && st.Unit != "" {
			name = name + "." + st.Unit
		}
		for seen[name] {
			name = fmt.Sprintf("%s.%d", name, i)
		}
		seen[name] = true
		names = append(names, name)
	}
	return names, nil
}

// DefaultTypeIndex picks the channel matching the profile's default
// sample type, or the first one.
func DefaultTypeIndex(prof *profile.Profile) int {
	for i, st := range prof.SampleType {
		if st.Type == prof.DefaultSampleType {
			return i
		}
	}
	return 0
}

// frameName renders one pprof line the way flame graph tools name
// frames. Inlined frames are suffixed so they stay distinguishable
// from real calls.
func frameName(line profile.Line, inlined bool) string {
	name := ""
	if line.Function != nil {
		if line.Function.Name != "" {
			name = line.Function.Name
		} else if line.Function.SystemName != "" {
			name = line.Function.SystemName
		}
	}
	if inlined {
		name += " (inlined)"
	}
	return name
}

func locationName(loc *profile.Location) string {
	if loc.Mapping == nil {
		return fmt.Sprintf("0x%x", loc.Address)
	}
	return fmt.Sprintf("0x%x @%s", loc.Address, loc.Mapping.File)
}

// FromPProf flattens a pprof profile into leaf-first symbol stacks
// carrying every sample type as a cost channel. Locations are
// expanded into their inline chains, unsymbolized ones keep their
// address and mapping. Samples without locations are dropped and
// counted.
func FromPProf(prof *profile.Profile) (*sample.Profile, error) {
	names, err := typeNames(prof)
	if err != nil {
		return nil, err
	}

	res := sample.New(names...)
	res.DefaultType = DefaultTypeIndex(prof)
	for _, s := range prof.Sample {
		if len(s.Location) == 0 {
			res.Discard()
			continue
		}
		stack := make([]string, 0, len(s.Location))
		for _, loc := range s.Location {
			// Line[0] is the deepest inlined function, the last line
			// is the function actually occupying the address.
			for j, line := range loc.Line {
				stack = append(stack, frameName(line, j != len(loc.Line)-1))
			}
			if len(loc.Line) == 0 {
				stack = append(stack, locationName(loc))
			}
		}
		res.Add(stack, s.Value)
	}
	return res, nil
}

// physicalSymbol names the function occupying a location's address,
// ignoring functions inlined into it. Disassembly is keyed by these
// names, inline frames have no instructions of their own.
func physicalSymbol(loc *profile.Location) string {
	if len(loc.Line) == 0 {
		return ""
	}
	return frameName(loc.Line[len(loc.Line)-1], false)
}

// ResultsFromPProf aggregates per-symbol, per-address costs for the
// annotate pipeline. Self costs land on the sampled instruction.
// Inclusive costs land once per symbol per sample on the innermost
// address, so recursion cannot inflate a symbol beyond the profile
// total.
func ResultsFromPProf(prof *profile.Profile) (*symbolcosts.Results, error) {
	names, err := typeNames(prof)
	if err != nil {
		return nil, err
	}

	res := symbolcosts.NewResults(names...)
	for _, s := range prof.Sample {
		if len(s.Location) == 0 {
			continue
		}
		leaf := s.Location[0]
		if symbol := physicalSymbol(leaf); symbol != "" {
			res.AddSelf(symbol, leaf.Address, s.Value)
		}
		seen := make(map[string]struct{}, len(s.Location))
		for _, loc := range s.Location {
			symbol := physicalSymbol(loc)
			if symbol == "" {
				continue
			}
			if _, ok := seen[symbol]; ok {
				continue
			}
			seen[symbol] = struct{}{}
			res.AddInclusive(symbol, loc.Address, s.Value)
		}
	}
	return res, nil
}
