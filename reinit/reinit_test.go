package reinit

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/MingSun-Tse/smilepruning/smile"
)

func buildNet(seed int64) *smile.Model {
	m := smile.NewModel("net", 2, 4)
	m.Register(smile.NewConv("conv1", 2, 4, 3, 1, 1))
	m.Register(smile.NewNorm("bn1", 4, "conv1"))
	m.Register(smile.NewReLU("relu1", "bn1"))
	m.Register(smile.NewFlatten("flat", "relu1"))
	m.Register(smile.NewLinear("fc", 4, 3, 16, "flat"))
	rng := rand.New(rand.NewSource(seed))
	for _, l := range m.Layers {
		l.InitKaiming(rng)
	}
	return m
}

func gram(w *smile.Tensor) []float64 {
	rows, cols := w.Shape[0], w.GroupSize()
	g := make([]float64, rows*rows)
	for i := 0; i < rows; i++ {
		for j := 0; j < rows; j++ {
			var dot float64
			for k := 0; k < cols; k++ {
				dot += w.Data[i*cols+k] * w.Data[j*cols+k]
			}
			g[i*rows+j] = dot
		}
	}
	return g
}

func maxGramError(w *smile.Tensor) float64 {
	rows := w.Shape[0]
	g := gram(w)
	worst := 0.0
	for i := 0; i < rows; i++ {
		for j := 0; j < rows; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			if d := math.Abs(g[i*rows+j] - want); d > worst {
				worst = d
			}
		}
	}
	return worst
}

func TestUnknownStrategy(t *testing.T) {
	err := Reinit(buildNet(1), Options{Strategy: "magic"})
	if !errors.Is(err, smile.ErrConfig) {
		t.Errorf("Reinit(magic) error = %v; want ErrConfig", err)
	}
}

func TestEmptyStrategyKeepsWeights(t *testing.T) {
	m := buildNet(2)
	before := m.Layer("conv1").Weight.Clone()
	if err := Reinit(m, Options{}); err != nil {
		t.Fatalf("Reinit() error: %v", err)
	}
	for i, v := range before.Data {
		if m.Layer("conv1").Weight.Data[i] != v {
			t.Fatal("empty strategy touched the weights")
		}
	}
}

func TestDefaultDeterministicAndResetsNorm(t *testing.T) {
	a, b := buildNet(3), buildNet(4)
	a.Layer("bn1").Scale.Fill(2.5)
	a.Layer("bn1").Shift.Fill(-1)
	if err := Reinit(a, Options{Strategy: "default", Seed: 42}); err != nil {
		t.Fatalf("Reinit() error: %v", err)
	}
	if err := Reinit(b, Options{Strategy: "default", Seed: 42}); err != nil {
		t.Fatalf("Reinit() error: %v", err)
	}
	for i, v := range a.Layer("conv1").Weight.Data {
		if b.Layer("conv1").Weight.Data[i] != v {
			t.Fatal("default reinit not deterministic in the seed")
		}
	}
	bn := a.Layer("bn1")
	for c := 0; c < 4; c++ {
		if bn.Scale.Data[c] != 1 || bn.Shift.Data[c] != 0 {
			t.Fatalf("norm not reset: scale %v shift %v", bn.Scale.Data[c], bn.Shift.Data[c])
		}
	}
}

func TestOrthIsometry(t *testing.T) {
	m := buildNet(5)
	shape := append([]int{}, m.Layer("conv1").Weight.Shape...)
	if err := Reinit(m, Options{Strategy: "orth", Seed: 7}); err != nil {
		t.Fatalf("Reinit() error: %v", err)
	}
	w := m.Layer("conv1").Weight
	for i, d := range shape {
		if w.Shape[i] != d {
			t.Fatalf("orth changed shape: %v vs %v", w.Shape, shape)
		}
	}
	if e := maxGramError(w); e > 1e-10 {
		t.Errorf("conv1 gram error %v after orth; want identity", e)
	}
	if e := maxGramError(m.Layer("fc").Weight); e > 1e-10 {
		t.Errorf("fc gram error %v after orth; want identity", e)
	}
}

func TestExactIsometry(t *testing.T) {
	m := buildNet(6)
	if err := Reinit(m, Options{Strategy: "exact_isometry"}); err != nil {
		t.Fatalf("Reinit() error: %v", err)
	}
	if e := maxGramError(m.Layer("conv1").Weight); e > 1e-10 {
		t.Errorf("gram error %v after exact isometry", e)
	}
	// deterministic in the existing weights
	a, b := buildNet(6), buildNet(6)
	Reinit(a, Options{Strategy: "exact_isometry"})
	Reinit(b, Options{Strategy: "exact_isometry"})
	for i, v := range a.Layer("conv1").Weight.Data {
		if b.Layer("conv1").Weight.Data[i] != v {
			t.Fatal("exact isometry not deterministic")
		}
	}
}

func TestApproximateIsometryImproves(t *testing.T) {
	m := buildNet(8)
	before := maxGramError(m.Layer("conv1").Weight)
	err := Reinit(m, Options{
		Strategy: "approximate_isometry",
		LR:       0.01,
		NIter:    200,
		Optim:    "persistent",
	})
	if err != nil {
		t.Fatalf("Reinit() error: %v", err)
	}
	after := maxGramError(m.Layer("conv1").Weight)
	if after >= before {
		t.Errorf("gram error did not improve: %v -> %v", before, after)
	}
}

func TestUnknownAIOptim(t *testing.T) {
	err := Reinit(buildNet(10), Options{
		Strategy: "approximate_isometry",
		LR:       0.01,
		NIter:    5,
		Optim:    "momentum",
	})
	if !errors.Is(err, smile.ErrConfig) {
		t.Errorf("Reinit(momentum optim) error = %v; want ErrConfig", err)
	}
}

// The two optimizer policies must actually be two policies: a reset
// Adam never accumulates moments, so from the second iteration on its
// steps differ from the persistent one's.
func TestOptimPoliciesDiverge(t *testing.T) {
	a, b := buildNet(11), buildNet(11)
	opts := Options{Strategy: "approximate_isometry", LR: 0.01, NIter: 25}
	opts.Optim = "persistent"
	if err := Reinit(a, opts); err != nil {
		t.Fatalf("Reinit(persistent) error: %v", err)
	}
	opts.Optim = "reset"
	if err := Reinit(b, opts); err != nil {
		t.Fatalf("Reinit(reset) error: %v", err)
	}
	wa, wb := a.Layer("conv1").Weight, b.Layer("conv1").Weight
	for i := range wa.Data {
		if wa.Data[i] != wb.Data[i] {
			return
		}
	}
	t.Error("persistent and reset optimizer policies produced identical weights")
}

func TestApproximateIsometryKeepsMaskZeros(t *testing.T) {
	m := buildNet(9)
	w := m.Layer("conv1").Weight
	mask := smile.NewTensor(w.Shape...)
	mask.Fill(1)
	for i := 0; i < w.Numel(); i += 3 {
		mask.Data[i] = 0
	}
	mk := smile.Mask{"conv1": mask}
	mk.Apply(m)
	err := Reinit(m, Options{
		Strategy: "approximate_isometry",
		LR:       0.01,
		NIter:    40,
		Optim:    "reset",
		Mask:     mk,
	})
	if err != nil {
		t.Fatalf("Reinit() error: %v", err)
	}
	for i := 0; i < w.Numel(); i += 3 {
		if w.Data[i] != 0 {
			t.Fatalf("masked weight %d resurrected: %v", i, w.Data[i])
		}
	}
}
