// Package pruner makes and executes pruning decisions: it scores weight
// groups, builds cross-layer dependency clusters, selects survivors
// under keep-ratio budgets, and reconstructs the smaller model (or a
// mask over the original). Concrete methods register themselves under a
// name, like exec ops do.
package pruner

import (
	"github.com/MingSun-Tse/smilepruning/smile"
)

// Params is the configuration surface of one pruning pass.
type Params struct {
	Method string `json:"method"`
	// "weight" selects unstructured (masked) pruning; anything else means
	// structured filter pruning.
	WG string `json:"wg"`
	// Global keep ratio, used for every layer without an override.
	KeepRatio float64 `json:"keep_ratio"`
	// Per-layer overrides by layer name.
	KeepRatios map[string]float64 `json:"keep_ratios,omitempty"`
	// Importance score: l1 or l2.
	Score string `json:"score"`
	// Cluster score aggregation: min or mean.
	Pick string `json:"pick"`
	// Reinitialization strategy applied after reconstruction; empty keeps
	// the sliced weights.
	Reinit string `json:"reinit,omitempty"`
	// Approximate-isometry optimization settings.
	LRAI    float64 `json:"lr_ai,omitempty"`
	NIterAI int     `json:"n_iter_ai,omitempty"`
	// persistent reuses one optimizer across iterations; reset builds a
	// fresh one every iteration.
	AIOptim string `json:"ai_optim,omitempty"`
	Seed    int64  `json:"seed"`

	// GReg settings: how many regularization iterations before removal,
	// penalty growth per granularity interval.
	RegIters       int     `json:"reg_iters,omitempty"`
	RegGranularity int     `json:"reg_granularity,omitempty"`
	RegDelta       float64 `json:"reg_delta,omitempty"`
}

func DefaultParams() Params {
	return Params{
		Method:         "L1",
		WG:             "filter",
		KeepRatio:      0.5,
		Score:          "l1",
		Pick:           "min",
		LRAI:           0.001,
		NIterAI:        10000,
		AIOptim:        "persistent",
		RegIters:       800,
		RegGranularity: 10,
		RegDelta:       1e-4,
	}
}

// Result is what a pruning pass hands back: the pruned (or masked)
// model and the plan that produced it. The source model is never
// touched.
type Result struct {
	Model *smile.Model
	Plan  *smile.PruningPlan
}

type Pruner interface {
	Prune(m *smile.Model) (*Result, error)
}

type Impl struct {
	New func(Params) Pruner
}

var Impls = make(map[string]Impl)

func Register(name string, impl Impl) {
	Impls[name] = impl
}

// Get looks up a registered method by name.
func Get(name string, params Params) (Pruner, error) {
	impl, ok := Impls[name]
	if !ok {
		return nil, smile.ConfigErrorf("unsupported pruning method %q", name)
	}
	params.Method = name
	return impl.New(params), nil
}
