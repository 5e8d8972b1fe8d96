package pruner

import (
	"log"
	"sort"

	"github.com/MingSun-Tse/smilepruning/smile"
)

// ratioOf resolves the keep ratio for one layer: a per-layer override
// wins over the global value.
func (p Params) ratioOf(layer string) float64 {
	if r, ok := p.KeepRatios[layer]; ok {
		return r
	}
	return p.KeepRatio
}

// RequiredCounts computes how many output groups each scored layer must
// keep: ceil(ratio * groups), floored at 1. A ratio that keeps nothing
// is recovered by force-keeping one group and reported.
func RequiredCounts(m *smile.Model, params Params) (map[string]int, error) {
	required := make(map[string]int)
	final := m.FinalClassifier()
	for _, l := range m.Prunables() {
		if l == final {
			continue
		}
		r := params.ratioOf(l.Name)
		if r < 0 || r > 1 {
			return nil, smile.ConfigErrorf("layer %s: keep ratio %v out of [0, 1]", l.Name, r)
		}
		n := l.OutChannels()
		req := smile.CeilRatio(r, n)
		if req == 0 {
			log.Printf("[pruner] layer %s: keep ratio %v keeps no groups, force-keeping 1 of %d", l.Name, r, n)
			req = 1
		}
		required[l.Name] = req
	}
	return required, nil
}

// SelectStructured ranks dependency clusters by their aggregated score
// and keeps them greedily until every layer meets its required count.
// Layers may end above their budget (a later cluster can still be
// needed by another member layer) but never below it.
func SelectStructured(m *smile.Model, clusters []*Cluster, scores map[string][]float64, params Params) (*smile.PruningPlan, error) {
	if params.Pick != "min" && params.Pick != "mean" {
		return nil, smile.ConfigErrorf("unsupported pick policy %q", params.Pick)
	}
	required, err := RequiredCounts(m, params)
	if err != nil {
		return nil, err
	}

	rep := make([]float64, len(clusters))
	for ci, c := range clusters {
		var agg float64
		n := 0
		for _, ref := range c.Members {
			ls, ok := scores[ref.Layer]
			if !ok {
				continue // normalization member, no weight score
			}
			s := ls[ref.Index]
			if n == 0 {
				agg = s
			} else if params.Pick == "min" {
				if s < agg {
					agg = s
				}
			} else {
				agg += s
			}
			n++
		}
		if params.Pick == "mean" && n > 1 {
			agg /= float64(n)
		}
		rep[ci] = agg
	}

	order := make([]int, len(clusters))
	for i := range order {
		order[i] = i
	}
	layerIndex := func(name string) int { return m.Layer(name).Index }
	sort.SliceStable(order, func(a, b int) bool {
		if rep[order[a]] != rep[order[b]] {
			return rep[order[a]] > rep[order[b]]
		}
		ma := clusters[order[a]].Members[0]
		mb := clusters[order[b]].Members[0]
		if ma.Layer != mb.Layer {
			return layerIndex(ma.Layer) < layerIndex(mb.Layer)
		}
		return ma.Index < mb.Index
	})

	kept := make(map[string][]int)
	counts := make(map[string]int)
	for _, ci := range order {
		c := clusters[ci]
		needed := false
		for _, ref := range c.Members {
			if req, ok := required[ref.Layer]; ok && counts[ref.Layer] < req {
				needed = true
				break
			}
		}
		if !needed {
			continue
		}
		for _, ref := range c.Members {
			kept[ref.Layer] = append(kept[ref.Layer], ref.Index)
			counts[ref.Layer]++
		}
	}

	plan := smile.NewPruningPlan(params.WG)
	for layer, idxs := range kept {
		plan.Keep(layer, idxs)
	}
	for layer, req := range required {
		n := len(plan.Kept[layer])
		if n < req {
			// unreachable: every group sits in exactly one cluster
			return nil, smile.ConfigErrorf("layer %s: selected %d groups, budget requires %d", layer, n, req)
		}
	}
	return plan, nil
}

// SelectUnstructured keeps, per prunable layer, the highest-magnitude
// weights up to ceil(ratio * numel), ties broken by ascending index.
// The decision is a mask; shapes never change.
func SelectUnstructured(m *smile.Model, params Params) (*smile.PruningPlan, error) {
	plan := smile.NewPruningPlan(params.WG)
	for _, l := range m.Prunables() {
		r := params.ratioOf(l.Name)
		if r < 0 || r > 1 {
			return nil, smile.ConfigErrorf("layer %s: keep ratio %v out of [0, 1]", l.Name, r)
		}
		n := l.Weight.Numel()
		req := smile.CeilRatio(r, n)
		if req == 0 {
			log.Printf("[pruner] layer %s: keep ratio %v keeps no weights, force-keeping 1 of %d", l.Name, r, n)
			req = 1
		}
		order := rankDesc(ScoreWeights(l))
		plan.Mask[l.Name] = smile.NewMask(l.Weight, order[:req])
	}
	return plan, nil
}
