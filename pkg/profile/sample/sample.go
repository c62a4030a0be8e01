package sample

// Profile is a decoded batch of sampled call stacks, the common input
// of the call tree builders and the collapsed encoder. Decoders for
// concrete formats live in the sibling packages.
type Profile struct {
	// TypeNames names the cost channels carried by every sample,
	// e.g. {"cycles", "instructions"} or just {"samples"}.
	TypeNames []string
	// DefaultType indexes the channel reports rank by unless asked
	// for another one.
	DefaultType int
	Samples     []Sample
	Stats       Stats
}

// Sample is one sampled call stack. Stack is ordered innermost frame
// first: Stack[0] is the sampled instruction's symbol, the last entry
// is the thread entry point. Values holds one cost per profile type.
type Sample struct {
	Stack  []string
	Values []int64
}

// Stats counts records a decoder dropped instead of failing on.
type Stats struct {
	Discarded int
}

func New(types ...string) *Profile {
	return &Profile{
		TypeNames: types,
		Samples:   make([]Sample, 0),
	}
}

func (p *Profile) Add(stack []string, values []int64) {
	p.Samples = append(p.Samples, Sample{Stack: stack, Values: values})
}

func (p *Profile) Discard() {
	p.Stats.Discarded++
}

// Totals sums the cost vectors of all samples.
func (p *Profile) Totals() []int64 {
	totals := make([]int64, len(p.TypeNames))
	for i := range p.Samples {
		for typ, v := range p.Samples[i].Values {
			totals[typ] += v
		}
	}
	return totals
}
