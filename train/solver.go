// Package train finetunes pruned models: solvers, LR schedules, the
// epoch loop with strict mask reapplication, validation, Jacobian
// diagnostics, and checkpoint I/O.
package train

import (
	"math"

	"github.com/MingSun-Tse/smilepruning/smile"
)

// A Solver applies one gradient step to named parameter tensors. Its
// internal state (momenta) is keyed by parameter name so it survives a
// checkpoint round trip.
type Solver interface {
	Step(lr float64, params []smile.NamedTensor, grads smile.Grads)
	State() []byte
	LoadState(data []byte) error
}

func NewSolver(name string, momentum float64, weightDecay float64) (Solver, error) {
	switch name {
	case "sgd":
		return NewSGD(momentum, weightDecay), nil
	case "adam":
		return NewAdam(weightDecay), nil
	}
	return nil, smile.ConfigErrorf("unsupported solver %q", name)
}

type SGD struct {
	Momentum    float64              `json:"momentum"`
	WeightDecay float64              `json:"weight_decay"`
	Velocity    map[string][]float64 `json:"velocity"`
}

func NewSGD(momentum float64, weightDecay float64) *SGD {
	return &SGD{
		Momentum:    momentum,
		WeightDecay: weightDecay,
		Velocity:    make(map[string][]float64),
	}
}

func (s *SGD) Step(lr float64, params []smile.NamedTensor, grads smile.Grads) {
	for _, p := range params {
		g, ok := grads[p.Name]
		if !ok {
			continue
		}
		v := s.Velocity[p.Name]
		if v == nil {
			v = make([]float64, p.Tensor.Numel())
			s.Velocity[p.Name] = v
		}
		for i := range p.Tensor.Data {
			grad := g.Data[i] + s.WeightDecay*p.Tensor.Data[i]
			if math.IsNaN(grad) || math.IsInf(grad, 0) {
				continue
			}
			v[i] = s.Momentum*v[i] + grad
			p.Tensor.Data[i] -= lr * v[i]
		}
	}
}

func (s *SGD) State() []byte { return smile.JsonMarshal(s) }

func (s *SGD) LoadState(data []byte) error {
	smile.JsonUnmarshal(data, s)
	if s.Velocity == nil {
		s.Velocity = make(map[string][]float64)
	}
	return nil
}

// Adam with bias-corrected moments.
type Adam struct {
	Beta1       float64              `json:"beta1"`
	Beta2       float64              `json:"beta2"`
	Eps         float64              `json:"eps"`
	WeightDecay float64              `json:"weight_decay"`
	T           int                  `json:"t"`
	M           map[string][]float64 `json:"m"`
	V           map[string][]float64 `json:"v"`
}

func NewAdam(weightDecay float64) *Adam {
	return &Adam{
		Beta1:       0.9,
		Beta2:       0.999,
		Eps:         1e-8,
		WeightDecay: weightDecay,
		M:           make(map[string][]float64),
		V:           make(map[string][]float64),
	}
}

func (s *Adam) Step(lr float64, params []smile.NamedTensor, grads smile.Grads) {
	s.T++
	t := float64(s.T)
	lrT := lr * math.Sqrt(1-math.Pow(s.Beta2, t)) / (1 - math.Pow(s.Beta1, t))
	for _, p := range params {
		g, ok := grads[p.Name]
		if !ok {
			continue
		}
		m := s.M[p.Name]
		v := s.V[p.Name]
		if m == nil {
			m = make([]float64, p.Tensor.Numel())
			v = make([]float64, p.Tensor.Numel())
			s.M[p.Name] = m
			s.V[p.Name] = v
		}
		for i := range p.Tensor.Data {
			grad := g.Data[i] + s.WeightDecay*p.Tensor.Data[i]
			if math.IsNaN(grad) || math.IsInf(grad, 0) {
				continue
			}
			m[i] = s.Beta1*m[i] + (1-s.Beta1)*grad
			v[i] = s.Beta2*v[i] + (1-s.Beta2)*grad*grad
			p.Tensor.Data[i] -= lrT * m[i] / (math.Sqrt(v[i]) + s.Eps)
		}
	}
}

func (s *Adam) State() []byte { return smile.JsonMarshal(s) }

func (s *Adam) LoadState(data []byte) error {
	smile.JsonUnmarshal(data, s)
	if s.M == nil {
		s.M = make(map[string][]float64)
	}
	if s.V == nil {
		s.V = make(map[string][]float64)
	}
	return nil
}
