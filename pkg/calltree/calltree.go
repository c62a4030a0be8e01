package calltree

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/MuchToMyDelight/hotspot/pkg/costs"
	"github.com/MuchToMyDelight/hotspot/pkg/profile/sample"
)

type Direction string

const (
	// BottomUp aggregates stacks from the sampled instruction outwards,
	// grouping samples by the code that was actually running.
	BottomUp Direction = "bottomup"
	// TopDown aggregates stacks from the thread entry point inwards.
	TopDown Direction = "topdown"
)

// NodeID indexes a node inside one Tree. The synthetic root is always
// node zero; ids are not portable across trees.
type NodeID int32

const Root NodeID = 0

const rootSymbol = "all"

type node struct {
	symbol   string
	parent   NodeID
	children []NodeID
}

// Tree is one finished aggregation of a profile's stacks. A Tree is
// published by Build and never mutated afterwards, so it is safe to
// share between goroutines.
type Tree struct {
	direction Direction
	nodes     []node
	self      *costs.Table[NodeID]
	inclusive *costs.Table[NodeID]
}

func (t *Tree) Direction() Direction {
	return t.direction
}

// NumNodes counts the nodes of the tree including the synthetic root.
func (t *Tree) NumNodes() int {
	return len(t.nodes)
}

func (t *Tree) Symbol(id NodeID) string {
	return t.nodes[id].symbol
}

// Parent returns the parent of id. The root's parent is the root itself.
func (t *Tree) Parent(id NodeID) NodeID {
	if id == Root {
		return Root
	}
	return t.nodes[id].parent
}

func (t *Tree) Depth(id NodeID) int {
	depth := 0
	for id != Root {
		id = t.nodes[id].parent
		depth++
	}
	return depth
}

// Children returns the child ids of id in first-seen order.
func (t *Tree) Children(id NodeID) []NodeID {
	return t.nodes[id].children
}

func (t *Tree) TypeNames() []string {
	return t.inclusive.TypeNames()
}

func (t *Tree) TypeIndex(name string) (int, bool) {
	return t.inclusive.TypeIndex(name)
}

func (t *Tree) SelfCost(typ int, id NodeID) int64 {
	return t.self.Cost(typ, id)
}

func (t *Tree) InclusiveCost(typ int, id NodeID) int64 {
	return t.inclusive.Cost(typ, id)
}

// TotalCost is the cost of the whole profile as seen by this tree,
// equal to the root's inclusive cost.
func (t *Tree) TotalCost(typ int) int64 {
	return t.inclusive.Cost(typ, Root)
}

////////////////////////////////////////////////////////////////////////////////

// treeBuilder owns a tree under construction. The index deduplicates
// children by (parent, symbol) so that every distinct call path maps
// to exactly one node; it is dropped once the tree is published.
type treeBuilder struct {
	tree  *Tree
	index map[childKey]NodeID
}

type childKey struct {
	parent NodeID
	symbol string
}

func newTreeBuilder(direction Direction, types []string) *treeBuilder {
	return &treeBuilder{
		tree: &Tree{
			direction: direction,
			nodes:     []node{{symbol: rootSymbol, parent: Root}},
			self:      costs.New[NodeID](types...),
			inclusive: costs.New[NodeID](types...),
		},
		index: make(map[childKey]NodeID),
	}
}

func (b *treeBuilder) child(parent NodeID, symbol string) NodeID {
	key := childKey{parent: parent, symbol: symbol}
	if id, ok := b.index[key]; ok {
		return id
	}
	id := NodeID(len(b.tree.nodes))
	b.tree.nodes = append(b.tree.nodes, node{symbol: symbol, parent: parent})
	b.tree.nodes[parent].children = append(b.tree.nodes[parent].children, id)
	b.index[key] = id
	return id
}

// consume merges one stack into the tree. Recursive frames land in
// distinct nodes because the lookup key includes the parent, so a
// sample credits every node on its path exactly once.
func (b *treeBuilder) consume(s *sample.Sample) {
	b.tree.inclusive.Add(Root, s.Values)
	switch b.tree.direction {
	case BottomUp:
		// Walk from the sampled instruction outwards. Only the first
		// node executes the instruction, callers get no self cost.
		cur := Root
		for i, symbol := range s.Stack {
			cur = b.child(cur, symbol)
			b.tree.inclusive.Add(cur, s.Values)
			if i == 0 {
				b.tree.self.Add(cur, s.Values)
			}
		}
	case TopDown:
		// Walk from the entry point inwards, self cost goes to the
		// innermost frame.
		cur := Root
		for i := len(s.Stack) - 1; i >= 0; i-- {
			cur = b.child(cur, s.Stack[i])
			b.tree.inclusive.Add(cur, s.Values)
		}
		b.tree.self.Add(cur, s.Values)
	default:
		panic(fmt.Sprintf("calltree: unknown direction %q", b.tree.direction))
	}
}

func (b *treeBuilder) finish() *Tree {
	tree := b.tree
	b.tree = nil
	b.index = nil
	return tree
}

////////////////////////////////////////////////////////////////////////////////

type BuildStats struct {
	// Samples is the number of stacks merged into the trees.
	Samples int
	// Discarded counts stacks skipped as malformed.
	Discarded int
}

// Result holds both aggregations of one profile plus the per-channel
// totals over all consumed samples.
type Result struct {
	BottomUp *Tree
	TopDown  *Tree
	Totals   []int64
	Stats    BuildStats
}

// Build aggregates the profile into a bottom-up and a top-down tree.
// Samples with empty stacks are dropped and counted in Stats; a sample
// whose cost vector does not match the profile's type list fails the
// whole build, that mismatch means the decoder is broken.
func Build(ctx context.Context, prof *sample.Profile) (*Result, error) {
	if prof == nil {
		return nil, errors.New("calltree: nil profile")
	}
	if len(prof.TypeNames) == 0 {
		return nil, errors.New("calltree: profile declares no cost types")
	}

	width := len(prof.TypeNames)
	totals := make([]int64, width)
	kept := make([]sample.Sample, 0, len(prof.Samples))
	discarded := 0
	for i := range prof.Samples {
		s := &prof.Samples[i]
		if len(s.Values) != width {
			return nil, fmt.Errorf("calltree: sample %d carries %d values, profile has %d cost types", i, len(s.Values), width)
		}
		if len(s.Stack) == 0 {
			discarded++
			continue
		}
		for typ, v := range s.Values {
			totals[typ] += v
		}
		kept = append(kept, *s)
	}

	var bottomUp, topDown *Tree
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		bottomUp, err = buildTree(gctx, BottomUp, prof.TypeNames, kept)
		return err
	})
	g.Go(func() error {
		var err error
		topDown, err = buildTree(gctx, TopDown, prof.TypeNames, kept)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Result{
		BottomUp: bottomUp,
		TopDown:  topDown,
		Totals:   totals,
		Stats: BuildStats{
			Samples:   len(kept),
			Discarded: discarded,
		},
	}, nil
}

func buildTree(ctx context.Context, direction Direction, types []string, samples []sample.Sample) (*Tree, error) {
	b := newTreeBuilder(direction, types)
	for i := range samples {
		if i&0xfff == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		b.consume(&samples[i])
	}
	return b.finish(), nil
}
