package symbolcosts

import (
	"github.com/MuchToMyDelight/hotspot/pkg/costs"
)

// SymbolID is an interned symbol name, stable within one Results.
type SymbolID int32

// LocationCost carries the costs attributed to a single instruction
// address inside a symbol, one value per cost type.
type LocationCost struct {
	Self      []int64
	Inclusive []int64
}

// Entry aggregates one symbol's costs by instruction address. The
// address is the join key against disassembly output.
type Entry struct {
	Symbol  string
	offsets map[uint64]*LocationCost
}

func (e *Entry) OffsetCost(address uint64) (*LocationCost, bool) {
	lc, ok := e.offsets[address]
	return lc, ok
}

func (e *Entry) NumOffsets() int {
	return len(e.offsets)
}

func (e *Entry) add(address uint64, width int, self bool, values []int64) {
	lc, ok := e.offsets[address]
	if !ok {
		lc = &LocationCost{
			Self:      make([]int64, width),
			Inclusive: make([]int64, width),
		}
		e.offsets[address] = lc
	}
	dst := lc.Inclusive
	if self {
		dst = lc.Self
	}
	for i, v := range values {
		dst[i] += v
	}
}

// Results holds flat per-symbol cost tables plus the per-address
// breakdown used to annotate disassembly and source lines.
type Results struct {
	Self      *costs.Table[SymbolID]
	Inclusive *costs.Table[SymbolID]

	symbols map[string]SymbolID
	names   []string
	entries map[SymbolID]*Entry
}

func NewResults(types ...string) *Results {
	return &Results{
		Self:      costs.New[SymbolID](types...),
		Inclusive: costs.New[SymbolID](types...),
		symbols:   make(map[string]SymbolID),
		entries:   make(map[SymbolID]*Entry),
	}
}

func (r *Results) TypeNames() []string {
	return r.Self.TypeNames()
}

func (r *Results) NumTypes() int {
	return r.Self.NumTypes()
}

// SymbolID interns a symbol name.
func (r *Results) SymbolID(symbol string) SymbolID {
	if id, ok := r.symbols[symbol]; ok {
		return id
	}
	id := SymbolID(len(r.names))
	r.symbols[symbol] = id
	r.names = append(r.names, symbol)
	return id
}

func (r *Results) SymbolName(id SymbolID) string {
	return r.names[id]
}

func (r *Results) Symbols() []string {
	names := make([]string, len(r.names))
	copy(names, r.names)
	return names
}

// Entry returns the per-address breakdown of a symbol, nil when the
// profile never touched it.
func (r *Results) Entry(symbol string) *Entry {
	id, ok := r.symbols[symbol]
	if !ok {
		return nil
	}
	return r.entries[id]
}

func (r *Results) entry(id SymbolID) *Entry {
	e, ok := r.entries[id]
	if !ok {
		e = &Entry{
			Symbol:  r.names[id],
			offsets: make(map[uint64]*LocationCost),
		}
		r.entries[id] = e
	}
	return e
}

// AddSelf credits values to the sampled instruction of a symbol.
func (r *Results) AddSelf(symbol string, address uint64, values []int64) {
	id := r.SymbolID(symbol)
	r.Self.Add(id, values)
	r.entry(id).add(address, r.NumTypes(), true, values)
}

// AddInclusive credits values to an address a sample passed through.
// Callers deduplicate recursive frames so one sample credits a symbol
// at most once.
func (r *Results) AddInclusive(symbol string, address uint64, values []int64) {
	id := r.SymbolID(symbol)
	r.Inclusive.Add(id, values)
	r.entry(id).add(address, r.NumTypes(), false, values)
}
