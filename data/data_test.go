package data

import (
	"testing"

	"github.com/MingSun-Tse/smilepruning/train"
)

var _ train.Loader = (*Loader)(nil)

func TestSyntheticDeterministic(t *testing.T) {
	a := Synthetic(3, 4, 1, 5, 42)
	b := Synthetic(3, 4, 1, 5, 42)
	if a.Len() != 12 || b.Len() != 12 {
		t.Fatalf("Len = %d, %d; want 12", a.Len(), b.Len())
	}
	for i := range a.Samples {
		if a.Samples[i].Label != b.Samples[i].Label {
			t.Fatalf("sample %d labels differ", i)
		}
		for j := range a.Samples[i].X.Data {
			if a.Samples[i].X.Data[j] != b.Samples[i].X.Data[j] {
				t.Fatalf("sample %d pixel %d differs", i, j)
			}
		}
	}
}

func TestSyntheticBalancedLabels(t *testing.T) {
	ds := Synthetic(4, 10, 1, 3, 1)
	counts := make(map[int]int)
	for _, s := range ds.Samples {
		counts[s.Label]++
	}
	for c := 0; c < 4; c++ {
		if counts[c] != 10 {
			t.Errorf("class %d has %d samples; want 10", c, counts[c])
		}
	}
}

func TestLoaderCoversEverySampleOnce(t *testing.T) {
	ds := Synthetic(2, 25, 1, 3, 7)
	loader := NewLoader(ds, true, 3)
	seen := make(map[float64]int)
	total := 0
	for {
		xs, labels, ok := loader.Next(8)
		if !ok {
			break
		}
		if len(xs) != len(labels) {
			t.Fatalf("batch sizes disagree: %d vs %d", len(xs), len(labels))
		}
		if len(xs) > 8 {
			t.Fatalf("batch of %d; want at most 8", len(xs))
		}
		for _, x := range xs {
			seen[x.Data[0]]++
		}
		total += len(xs)
	}
	if total != 50 {
		t.Errorf("one pass yielded %d samples; want 50", total)
	}
	for v, n := range seen {
		if n != 1 {
			t.Errorf("sample with first pixel %v seen %d times", v, n)
		}
	}
}

func TestLoaderReshuffles(t *testing.T) {
	ds := Synthetic(2, 50, 1, 2, 9)
	loader := NewLoader(ds, true, 5)
	pass := func() []int {
		var labels []int
		for {
			_, ls, ok := loader.Next(16)
			if !ok {
				return labels
			}
			labels = append(labels, ls...)
		}
	}
	first := pass()
	loader.Reset()
	second := pass()
	same := true
	for i := range first {
		if first[i] != second[i] {
			same = false
			break
		}
	}
	if same {
		t.Errorf("two passes produced the identical order")
	}
}

func TestLoaderNoShuffleKeepsOrder(t *testing.T) {
	ds := Synthetic(5, 2, 1, 2, 3)
	loader := NewLoader(ds, false, 0)
	_, labels, _ := loader.Next(10)
	for i, l := range labels {
		if l != ds.Samples[i].Label {
			t.Errorf("labels[%d] = %d; want %d", i, l, ds.Samples[i].Label)
		}
	}
}

func TestSplitDisjointAndComplete(t *testing.T) {
	ds := Synthetic(2, 20, 1, 2, 11)
	a, b := Split(ds, 0.8, 1)
	if a.Len() != 32 || b.Len() != 8 {
		t.Fatalf("split lens = %d, %d; want 32, 8", a.Len(), b.Len())
	}
	count := make(map[float64]int)
	for _, s := range append(append([]Sample{}, a.Samples...), b.Samples...) {
		count[s.X.Data[0]]++
	}
	if len(count) != 40 {
		t.Errorf("split lost or duplicated samples: %d distinct; want 40", len(count))
	}

	a2, _ := Split(ds, 0.8, 1)
	for i := range a.Samples {
		if a.Samples[i].X != a2.Samples[i].X {
			t.Fatalf("split not deterministic at %d", i)
		}
	}
}
