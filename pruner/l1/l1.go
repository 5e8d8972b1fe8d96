// Package l1 registers the magnitude pruning method: score groups by
// norm, keep the budgeted best, rebuild, then hand off to the
// configured reinitializer.
package l1

import (
	"github.com/MingSun-Tse/smilepruning/pruner"
	"github.com/MingSun-Tse/smilepruning/reinit"
	"github.com/MingSun-Tse/smilepruning/smile"
)

func init() {
	pruner.Register("L1", pruner.Impl{
		New: func(params pruner.Params) pruner.Pruner {
			return &Pruner{MetaPruner: pruner.NewMetaPruner(params)}
		},
	})
}

type Pruner struct {
	pruner.MetaPruner
}

func (p *Pruner) Prune(m *smile.Model) (*pruner.Result, error) {
	if err := p.Decide(m); err != nil {
		return nil, err
	}
	res, err := p.Build(m)
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
