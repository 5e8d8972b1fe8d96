// Package greg registers the growing-regularization pruning method.
// The plan is decided up front like L1, but before anything is removed
// the doomed groups are driven toward zero by an L2 penalty whose
// coefficient ramps up over a fixed iteration budget. Slicing weights
// that are already near zero disturbs the surviving function much less
// than cutting them at full magnitude.
package greg

import (
	"log"

	"github.com/MingSun-Tse/smilepruning/pruner"
	"github.com/MingSun-Tse/smilepruning/reinit"
	"github.com/MingSun-Tse/smilepruning/smile"
)

func init() {
	pruner.Register("GReg", pruner.Impl{
		New: func(params pruner.Params) pruner.Pruner {
			return &Pruner{MetaPruner: pruner.NewMetaPruner(params)}
		},
	})
}

type Pruner struct {
	pruner.MetaPruner
}

func (p *Pruner) Prune(m *smile.Model) (*pruner.Result, error) {
	if p.Params.RegIters < 0 {
		return nil, smile.ConfigErrorf("bad reg iters %d", p.Params.RegIters)
	}
	if p.Params.RegIters > 0 && p.Params.RegGranularity < 1 {
		return nil, smile.ConfigErrorf("bad reg granularity %d", p.Params.RegGranularity)
	}
	if p.Params.RegDelta < 0 {
		return nil, smile.ConfigErrorf("bad reg delta %v", p.Params.RegDelta)
	}
	if err := p.Decide(m); err != nil {
		return nil, err
	}

	work := m.Clone()
	p.regularize(work)

	res, err := p.Build(work)
	if err != nil {
		return nil, err
	}
	opts := reinit.Options{
		Strategy: p.Params.Reinit,
		Seed:     p.Params.Seed,
		LR:       p.Params.LRAI,
		NIter:    p.Params.NIterAI,
		Optim:    p.Params.AIOptim,
	}
	if len(res.Plan.Mask) > 0 {
		opts.Mask = res.Plan.Mask
	}
	if err := reinit.Reinit(res.Model, opts); err != nil {
		return nil, err
	}
	return res, nil
}

// doomedOf lists the flat weight indices the plan will remove from one
// layer, or nil when the layer is untouched.
func (p *Pruner) doomedOf(l *smile.Layer) []int {
	if p.Params.WG == "weight" {
		mask := p.Plan.Mask[l.Name]
		if mask == nil {
			return nil
		}
		var doomed []int
		for i, v := range mask.Data {
			if v == 0 {
				doomed = append(doomed, i)
			}
		}
		return doomed
	}
	kept, ok := p.Plan.Kept[l.Name]
	if !ok {
		return nil
	}
	keep := make(map[int]bool, len(kept))
	for _, k := range kept {
		keep[k] = true
	}
	gs := l.Weight.GroupSize()
	var doomed []int
	for g := 0; g < l.Weight.Shape[0]; g++ {
		if keep[g] {
			continue
		}
		for i := g * gs; i < (g+1)*gs; i++ {
			doomed = append(doomed, i)
		}
	}
	return doomed
}

// regularize shrinks the doomed weights in place with a penalty that
// grows every granularity interval.
func (p *Pruner) regularize(m *smile.Model) {
	doomed := make(map[string][]int)
	for _, l := range m.Prunables() {
		if idxs := p.doomedOf(l); len(idxs) > 0 {
			doomed[l.Name] = idxs
		}
	}
	reg := 0.0
	for it := 1; it <= p.Params.RegIters; it++ {
		if it%p.Params.RegGranularity == 0 {
			reg += p.Params.RegDelta
		}
		for name, idxs := range doomed {
			w := m.Layer(name).Weight
			for _, i := range idxs {
				w.Data[i] *= 1 - reg
			}
		}
		if it%100 == 0 {
			var norm float64
			for name, idxs := range doomed {
				w := m.Layer(name).Weight
				for _, i := range idxs {
					norm += w.Data[i] * w.Data[i]
				}
			}
			log.Printf("[greg] [%d/%d] reg %.2e, doomed weight sq norm %.6f", it, p.Params.RegIters, reg, norm)
		}
	}
}
