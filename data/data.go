// Package data loads the datasets the pruning pipeline trains on: a
// synthetic blob set for quick runs, MNIST in its IDX form, and
// directories of labeled images.
package data

import (
	"math/rand"

	"github.com/MingSun-Tse/smilepruning/smile"
)

type Sample struct {
	X     *smile.Tensor
	Label int
}

type Dataset struct {
	Name       string
	InChannels int
	ImgSize    int
	Classes    int
	Samples    []Sample
}

func (ds *Dataset) Len() int {
	return len(ds.Samples)
}

// Loader iterates a dataset in batches. With shuffle on, every Reset
// draws a fresh permutation.
type Loader struct {
	ds      *Dataset
	order   []int
	pos     int
	shuffle bool
	rng     *rand.Rand
}

func NewLoader(ds *Dataset, shuffle bool, seed int64) *Loader {
	l := &Loader{
		ds:      ds,
		order:   make([]int, ds.Len()),
		shuffle: shuffle,
		rng:     rand.New(rand.NewSource(seed)),
	}
	for i := range l.order {
		l.order[i] = i
	}
	l.Reset()
	return l
}

func (l *Loader) Reset() {
	l.pos = 0
	if l.shuffle {
		l.rng.Shuffle(len(l.order), func(i, j int) {
			l.order[i], l.order[j] = l.order[j], l.order[i]
		})
	}
}

func (l *Loader) Next(size int) ([]*smile.Tensor, []int, bool) {
	if l.pos >= len(l.order) {
		return nil, nil, false
	}
	end := smile.Clip(l.pos+size, 0, len(l.order))
	xs := make([]*smile.Tensor, 0, end-l.pos)
	labels := make([]int, 0, end-l.pos)
	for _, idx := range l.order[l.pos:end] {
		xs = append(xs, l.ds.Samples[idx].X)
		labels = append(labels, l.ds.Samples[idx].Label)
	}
	l.pos = end
	return xs, labels, true
}

func (l *Loader) Len() int {
	return len(l.order)
}
