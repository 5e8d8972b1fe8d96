package pruner

import (
	"github.com/MingSun-Tse/smilepruning/smile"
)

func allIndices(n int) []int {
	idxs := make([]int, n)
	for i := range idxs {
		idxs[i] = i
	}
	return idxs
}

// keptOut resolves the kept output indices for a layer: the plan's
// entry, or every index when the plan leaves the layer untouched.
func keptOut(plan *smile.PruningPlan, l *smile.Layer) []int {
	if kept, ok := plan.Kept[l.Name]; ok {
		return kept
	}
	return allIndices(l.OutChannels())
}

// Reconstruct builds a new, smaller model realizing a structured plan.
// Surviving values are copied unchanged: the forward computation on
// kept channels is identical to the source model's. The source model is
// never mutated, so a failed pass leaves it intact.
func Reconstruct(m *smile.Model, plan *smile.PruningPlan) (*smile.Model, error) {
	out := smile.NewModel(m.Arch, m.InChannels, m.InSize)
	for _, l := range m.Layers {
		c := *l
		c.From = append([]string{}, l.From...)

		// input side follows the producer's decision
		var keptIn []int
		srcs := m.InputSources(l)
		if len(srcs) > 0 {
			keptIn = keptOut(plan, srcs[0])
			for _, src := range srcs[1:] {
				other := keptOut(plan, src)
				if !equalInts(keptIn, other) {
					// the selector never splits a cluster, so merged
					// branches always agree
					return nil, smile.ConfigErrorf("layer %s: producers %s and %s disagree on kept channels",
						l.Name, srcs[0].Name, src.Name)
				}
			}
		}

		switch l.Kind {
		case smile.Convolution, smile.Linear:
			ko := keptOut(plan, l)
			c.Weight = l.Weight.TakeOutputs(ko)
			c.Bias = l.Bias.TakeOutputs(ko)
			if len(srcs) > 0 && len(keptIn) < l.InChannels() {
				c.Weight = c.Weight.TakeInputs(keptIn, l.InChannels())
			}
			c.KeptOut = ko
			c.KeptIn = keptIn
		case smile.Normalization:
			ko := keptOut(plan, l)
			c.Scale = l.Scale.TakeOutputs(ko)
			c.Shift = l.Shift.TakeOutputs(ko)
			c.Mean = l.Mean.TakeOutputs(ko)
			c.Var = l.Var.TakeOutputs(ko)
			c.KeptOut = ko
		}
		out.Register(&c)
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// BuildMasked realizes an unstructured plan: a clone of the source with
// the plan's mask applied once. Shapes are unchanged; the mask must be
// reapplied after every later optimizer step.
func BuildMasked(m *smile.Model, plan *smile.PruningPlan) *smile.Model {
	out := m.Clone()
	plan.Mask.Apply(out)
	return out
}

func equalInts(a []int, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
