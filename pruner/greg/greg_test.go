package greg

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/MingSun-Tse/smilepruning/pruner"
	"github.com/MingSun-Tse/smilepruning/smile"
)

func buildNet(seed int64) *smile.Model {
	m := smile.NewModel("convnet", 3, 6)
	m.Register(smile.NewConv("conv1", 3, 8, 3, 1, 1))
	m.Register(smile.NewNorm("bn1", 8, "conv1"))
	m.Register(smile.NewReLU("relu1", "bn1"))
	m.Register(smile.NewConv("conv2", 8, 16, 3, 1, 1, "relu1"))
	m.Register(smile.NewReLU("relu2", "conv2"))
	m.Register(smile.NewFlatten("flat", "relu2"))
	m.Register(smile.NewLinear("fc", 16, 10, 36, "flat"))
	rng := rand.New(rand.NewSource(seed))
	for _, l := range m.Layers {
		l.InitKaiming(rng)
	}
	return m
}

func TestGRegRegistered(t *testing.T) {
	p, err := pruner.Get("GReg", pruner.DefaultParams())
	if err != nil {
		t.Fatalf("Get(GReg) error: %v", err)
	}
	if p == nil {
		t.Fatal("Get(GReg) returned nil pruner")
	}
}

func TestBadRegParams(t *testing.T) {
	check := func(iters int, granularity int, delta float64) {
		params := pruner.DefaultParams()
		params.RegIters = iters
		params.RegGranularity = granularity
		params.RegDelta = delta
		p, err := pruner.Get("GReg", params)
		if err != nil {
			t.Fatalf("Get(GReg) error: %v", err)
		}
		_, err = p.Prune(buildNet(34))
		if !errors.Is(err, smile.ErrConfig) {
			t.Errorf("Prune(iters=%d granularity=%d delta=%v) err = %v; want ErrConfig",
				iters, granularity, delta, err)
		}
	}
	check(5, 0, 1e-4)
	check(800, -1, 1e-4)
	check(-1, 10, 1e-4)
	check(800, 10, -0.1)
}

// The ramp only touches weights that slicing removes anyway, so a
// structured GReg pass must produce the same model as a plain
// decide-and-slice with the same parameters.
func TestStructuredMatchesPlainSlice(t *testing.T) {
	params := pruner.DefaultParams()
	params.KeepRatio = 0.5
	params.Reinit = ""
	params.RegIters = 40
	params.RegGranularity = 10
	params.RegDelta = 0.05

	src := buildNet(31)
	p, err := pruner.Get("GReg", params)
	if err != nil {
		t.Fatalf("Get(GReg) error: %v", err)
	}
	res, err := p.Prune(src.Clone())
	if err != nil {
		t.Fatalf("Prune() error: %v", err)
	}

	mp := pruner.NewMetaPruner(params)
	base := src.Clone()
	if err := mp.Decide(base); err != nil {
		t.Fatalf("Decide() error: %v", err)
	}
	want, err := mp.Build(base)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	for _, l := range want.Model.Layers {
		got := res.Model.Layer(l.Name)
		if got == nil {
			t.Fatalf("layer %s missing from GReg result", l.Name)
		}
		if l.Weight == nil {
			continue
		}
		if got.Weight.Numel() != l.Weight.Numel() {
			t.Fatalf("layer %s: %d weights; want %d", l.Name, got.Weight.Numel(), l.Weight.Numel())
		}
		for i, v := range l.Weight.Data {
			if got.Weight.Data[i] != v {
				t.Fatalf("layer %s weight %d = %v; want %v", l.Name, i, got.Weight.Data[i], v)
			}
		}
	}
}

func TestRegularizeShrinksOnlyDoomed(t *testing.T) {
	params := pruner.DefaultParams()
	params.KeepRatio = 0.5
	params.RegIters = 20
	params.RegGranularity = 5
	params.RegDelta = 0.1

	m := buildNet(32)
	p := &Pruner{MetaPruner: pruner.NewMetaPruner(params)}
	if err := p.Decide(m); err != nil {
		t.Fatalf("Decide() error: %v", err)
	}
	work := m.Clone()
	p.regularize(work)

	// replay the ramp to get the cumulative shrink factor
	factor := 1.0
	reg := 0.0
	for it := 1; it <= params.RegIters; it++ {
		if it%params.RegGranularity == 0 {
			reg += params.RegDelta
		}
		factor *= 1 - reg
	}

	for _, name := range []string{"conv1", "conv2"} {
		doomed := p.doomedOf(m.Layer(name))
		if len(doomed) == 0 {
			t.Fatalf("layer %s: no doomed weights at keep ratio 0.5", name)
		}
		inDoomed := make(map[int]bool, len(doomed))
		for _, i := range doomed {
			inDoomed[i] = true
		}
		orig := m.Layer(name).Weight.Data
		got := work.Layer(name).Weight.Data
		for i := range orig {
			if inDoomed[i] {
				if math.Abs(got[i]-orig[i]*factor) > 1e-12 {
					t.Fatalf("layer %s doomed weight %d = %v; want %v", name, i, got[i], orig[i]*factor)
				}
			} else if got[i] != orig[i] {
				t.Fatalf("layer %s kept weight %d changed: %v -> %v", name, i, orig[i], got[i])
			}
		}
	}
}

func TestUnstructuredMaskZeroes(t *testing.T) {
	params := pruner.DefaultParams()
	params.WG = "weight"
	params.KeepRatio = 0.3
	params.Reinit = ""
	params.RegIters = 30
	params.RegGranularity = 10
	params.RegDelta = 0.01

	m := buildNet(33)
	p, _ := pruner.Get("GReg", params)
	res, err := p.Prune(m)
	if err != nil {
		t.Fatalf("Prune() error: %v", err)
	}
	if got := res.Model.Layer("conv1").Weight.Shape[0]; got != 8 {
		t.Errorf("conv1 filters = %d; want 8 (mask mode)", got)
	}
	mask := res.Plan.Mask["conv1"]
	if mask == nil {
		t.Fatal("conv1 has no mask")
	}
	ones := 0
	for i, v := range mask.Data {
		if v == 1 {
			ones++
		} else if res.Model.Layer("conv1").Weight.Data[i] != 0 {
			t.Fatalf("masked conv1 weight %d = %v; want 0", i, res.Model.Layer("conv1").Weight.Data[i])
		}
	}
	if want := 65; ones != want { // ceil(0.3 * 216)
		t.Errorf("conv1 mask ones = %d; want %d", ones, want)
	}
}
