package pruner

import (
	"sort"

	"github.com/MingSun-Tse/smilepruning/smile"
)

// GroupRef names one weight group: a layer and an output index within
// it.
type GroupRef struct {
	Layer string `json:"layer"`
	Index int    `json:"index"`
}

// Cluster is a set of weight groups that must share one keep/prune
// decision. Members are sorted by (layer order, index).
type Cluster struct {
	Members []GroupRef
}

// unionFind with path compression and union by size.
type unionFind struct {
	parent []int
	size   []int
}

func newUnionFind(n int) *unionFind {
	u := &unionFind{
		parent: make([]int, n),
		size:   make([]int, n),
	}
	for i := range u.parent {
		u.parent[i] = i
		u.size[i] = 1
	}
	return u
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a int, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if u.size[ra] < u.size[rb] {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
	u.size[ra] += u.size[rb]
}

// BuildClusters groups every prunable output channel into its dependency
// cluster. A normalization layer's channels join its producer's, and
// every branch feeding an add joins the other branches channel by
// channel. Any component that reaches the final classifier (the class
// logits) is dropped whole, so those channels are never pruned; the
// model input is not a layer, so the first layer's input side is
// untouched by construction.
func BuildClusters(m *smile.Model) ([]*Cluster, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	final := m.FinalClassifier()

	// Element space: every channel of prunable and normalization layers.
	offset := make(map[string]int)
	count := make(map[string]int)
	var names []string
	n := 0
	for _, l := range m.Layers {
		if !l.Prunable() && l.Kind != smile.Normalization {
			continue
		}
		offset[l.Name] = n
		count[l.Name] = l.OutChannels()
		names = append(names, l.Name)
		n += l.OutChannels()
	}
	u := newUnionFind(n)

	unionLayers := func(a *smile.Layer, b *smile.Layer) error {
		if a.OutChannels() != b.OutChannels() {
			return smile.ConfigErrorf("layers %s and %s must prune together but have %d vs %d channels",
				a.Name, b.Name, a.OutChannels(), b.OutChannels())
		}
		for i := 0; i < a.OutChannels(); i++ {
			u.union(offset[a.Name]+i, offset[b.Name]+i)
		}
		return nil
	}

	for _, l := range m.Layers {
		switch {
		case l.Kind == smile.Normalization:
			for _, src := range m.InputSources(l) {
				if err := unionLayers(l, src); err != nil {
					return nil, err
				}
			}
		case l.Kind == smile.Other && l.Op == "add":
			srcs := m.InputSources(l)
			for _, src := range srcs[1:] {
				if err := unionLayers(srcs[0], src); err != nil {
					return nil, err
				}
			}
		}
	}

	// Collect components in deterministic order, dropping every
	// component that contains a final-classifier group.
	byRoot := make(map[int][]GroupRef)
	pinned := make(map[int]bool)
	var roots []int
	for _, name := range names {
		for i := 0; i < count[name]; i++ {
			root := u.find(offset[name] + i)
			if len(byRoot[root]) == 0 {
				roots = append(roots, root)
			}
			byRoot[root] = append(byRoot[root], GroupRef{name, i})
			if final != nil && name == final.Name {
				pinned[root] = true
			}
		}
	}

	layerIndex := func(name string) int { return m.Layer(name).Index }
	var clusters []*Cluster
	for _, root := range roots {
		if pinned[root] {
			continue
		}
		members := byRoot[root]
		sort.Slice(members, func(a, b int) bool {
			if members[a].Layer != members[b].Layer {
				return layerIndex(members[a].Layer) < layerIndex(members[b].Layer)
			}
			return members[a].Index < members[b].Index
		})
		clusters = append(clusters, &Cluster{Members: members})
	}
	sort.Slice(clusters, func(a, b int) bool {
		ma, mb := clusters[a].Members[0], clusters[b].Members[0]
		if ma.Layer != mb.Layer {
			return layerIndex(ma.Layer) < layerIndex(mb.Layer)
		}
		return ma.Index < mb.Index
	})
	return clusters, nil
}
