package calltree

import "sort"

// HotFrame is one row of a hot frames report.
type HotFrame struct {
	Node      NodeID
	Symbol    string
	Self      int64
	Inclusive int64
}

// TopN selects the n hottest nodes of the tree by self cost in the
// given channel, heaviest first. Nodes with equal cost keep their
// tree insertion order, so repeated calls see the same ranking.
// The synthetic root is never reported.
func TopN(t *Tree, typ, n int) []HotFrame {
	if n <= 0 {
		return nil
	}
	frames := make([]HotFrame, 0, t.NumNodes()-1)
	for i := 1; i < t.NumNodes(); i++ {
		id := NodeID(i)
		frames = append(frames, HotFrame{
			Node:      id,
			Symbol:    t.Symbol(id),
			Self:      t.SelfCost(typ, id),
			Inclusive: t.InclusiveCost(typ, id),
		})
	}
	sort.SliceStable(frames, func(i, j int) bool {
		return frames[i].Self > frames[j].Self
	})
	if n < len(frames) {
		frames = frames[:n]
	}
	return frames
}

// SortedChildren returns the children of id ordered by inclusive cost
// in the given channel, heaviest first. Ties keep insertion order.
func (t *Tree) SortedChildren(id NodeID, typ int) []NodeID {
	children := t.Children(id)
	sorted := make([]NodeID, len(children))
	copy(sorted, children)
	sort.SliceStable(sorted, func(i, j int) bool {
		return t.InclusiveCost(typ, sorted[i]) > t.InclusiveCost(typ, sorted[j])
	})
	return sorted
}
