// Package reinit rewrites the weights of a freshly pruned model. Four
// strategies: variance-scaling redraw, random orthogonal, exact
// orthogonalization of the surviving weights, and iterative approximate
// isometry. Shapes never change, and masked-out weights stay zero.
package reinit

import (
	"log"
	"math/rand"

	"github.com/MingSun-Tse/smilepruning/smile"
)

type Options struct {
	Strategy string
	Seed     int64
	// approximate isometry settings
	LR    float64
	NIter int
	// persistent (or empty) reuses one optimizer across iterations;
	// reset rebuilds it every iteration.
	Optim string
	// mask of an unstructured pass, nil for structured
	Mask smile.Mask
}

type Func func(m *smile.Model, opts Options) error

var Strategies = map[string]Func{
	"default":              reinitDefault,
	"orth":                 reinitOrth,
	"exact_isometry":       reinitExact,
	"approximate_isometry": reinitApprox,
}

// Reinit dispatches to the named strategy. An empty name keeps the
// sliced weights as they are.
func Reinit(m *smile.Model, opts Options) error {
	if opts.Strategy == "" {
		return nil
	}
	fn, ok := Strategies[opts.Strategy]
	if !ok {
		return smile.ConfigErrorf("unsupported reinit strategy %q", opts.Strategy)
	}
	log.Printf("[reinit] strategy %s", opts.Strategy)
	if err := fn(m, opts); err != nil {
		return err
	}
	if opts.Mask != nil {
		opts.Mask.Apply(m)
	}
	return nil
}

func reinitDefault(m *smile.Model, opts Options) error {
	rng := rand.New(rand.NewSource(opts.Seed))
	for _, l := range m.Layers {
		l.InitKaiming(rng)
	}
	return nil
}
