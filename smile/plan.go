package smile

import (
	"encoding/json"
	"sort"
)

// Mask maps layer names to 0/1 tensors shaped like their weights.
// 1 marks a kept weight. It silences pruned weights by value only;
// gradients still flow, so it must be reapplied after every optimizer
// step.
type Mask map[string]*Tensor

// NewMask builds a mask for the named layer keeping exactly the listed
// flat weight indices.
func NewMask(w *Tensor, kept []int) *Tensor {
	m := NewTensor(w.Shape...)
	for _, i := range kept {
		m.Data[i] = 1
	}
	return m
}

// Apply multiplies each masked layer's weight by its mask, re-zeroing
// pruned entries. Call strictly after the optimizer step.
func (mk Mask) Apply(m *Model) {
	for name, mask := range mk {
		l := m.Layer(name)
		if l == nil || l.Weight == nil {
			continue
		}
		for i, v := range mask.Data {
			l.Weight.Data[i] *= v
		}
	}
}

// NumKept counts ones in the named layer's mask.
func (mk Mask) NumKept(name string) int {
	t, ok := mk[name]
	if !ok {
		return 0
	}
	n := 0
	for _, v := range t.Data {
		if v != 0 {
			n++
		}
	}
	return n
}

// PruningPlan is the full output of group selection. Structured pruning
// fills Kept (layer name to ascending original output indices);
// unstructured pruning fills Mask. No dependency cluster is ever split
// across the two decisions.
type PruningPlan struct {
	WG   string           `json:"wg"`
	Kept map[string][]int `json:"kept,omitempty"`
	Mask Mask             `json:"mask,omitempty"`
}

func NewPruningPlan(wg string) *PruningPlan {
	return &PruningPlan{
		WG:   wg,
		Kept: make(map[string][]int),
		Mask: make(Mask),
	}
}

// Keep records kept output indices for a layer, kept sorted ascending.
func (p *PruningPlan) Keep(layer string, kept []int) {
	kept = append([]int{}, kept...)
	sort.Ints(kept)
	p.Kept[layer] = kept
}

// Checkpoint is the persisted state of a run: enough to restore the
// model, the plan, and mask reapplication bit for bit.
type Checkpoint struct {
	Arch       string          `json:"arch"`
	RunID      string          `json:"run_id,omitempty"`
	Mark       string          `json:"mark,omitempty"`
	Epoch      int             `json:"epoch"`
	Acc1       float64         `json:"acc1"`
	Acc5       float64         `json:"acc5"`
	LR         float64         `json:"lr,omitempty"`
	PruneState string          `json:"prune_state,omitempty"`
	Model      *Model          `json:"model"`
	Plan       *PruningPlan    `json:"plan,omitempty"`
	Solver     json.RawMessage `json:"solver,omitempty"`
}
