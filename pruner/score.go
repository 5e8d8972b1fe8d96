package pruner

import (
	"sort"

	"github.com/MingSun-Tse/smilepruning/smile"
)

// A ScoreFunc assigns one non-negative importance score per output group
// of a prunable layer. Scoring is pure: same weights, same scores.
type ScoreFunc func(l *smile.Layer) []float64

var Scorers = map[string]ScoreFunc{
	"l1": func(l *smile.Layer) []float64 {
		scores := make([]float64, l.Weight.Shape[0])
		for i := range scores {
			scores[i] = smile.L1(l.Weight.Group(i))
		}
		return scores
	},
	"l2": func(l *smile.Layer) []float64 {
		scores := make([]float64, l.Weight.Shape[0])
		for i := range scores {
			scores[i] = smile.L2(l.Weight.Group(i))
		}
		return scores
	},
}

func GetScorer(name string) (ScoreFunc, error) {
	fn, ok := Scorers[name]
	if !ok {
		return nil, smile.ConfigErrorf("unsupported scoring strategy %q", name)
	}
	return fn, nil
}

// ScoreModel scores every prunable layer's output groups.
func ScoreModel(m *smile.Model, score string) (map[string][]float64, error) {
	fn, err := GetScorer(score)
	if err != nil {
		return nil, err
	}
	scores := make(map[string][]float64)
	for _, l := range m.Prunables() {
		scores[l.Name] = fn(l)
	}
	return scores, nil
}

// ScoreWeights scores every individual weight of a layer by magnitude,
// for unstructured pruning. l1 and l2 agree on single scalars.
func ScoreWeights(l *smile.Layer) []float64 {
	scores := make([]float64, l.Weight.Numel())
	for i, w := range l.Weight.Data {
		if w < 0 {
			scores[i] = -w
		} else {
			scores[i] = w
		}
	}
	return scores
}

// rankDesc returns group indices ordered by descending score, ties by
// ascending original index. This is the deterministic order every
// selection uses.
func rankDesc(scores []float64) []int {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		if scores[order[a]] != scores[order[b]] {
			return scores[order[a]] > scores[order[b]]
		}
		return order[a] < order[b]
	})
	return order
}
