package train

import (
	"math"
	"testing"

	"github.com/MingSun-Tse/smilepruning/smile"
)

func jsvLoader(n int) *sliceLoader {
	loader := &sliceLoader{}
	for i := 0; i < n; i++ {
		x := smile.NewTensor(2, 1, 1)
		x.Data[0], x.Data[1] = float64(i), 1
		loader.xs = append(loader.xs, x)
		loader.labels = append(loader.labels, 0)
	}
	return loader
}

func TestJacobianOfLinearIsWeight(t *testing.T) {
	m := toyModel()
	fc := m.Layer("fc")
	fc.Weight.Data = []float64{1, 2, 3, 4}
	fc.Bias.Data = []float64{5, 6}

	x := smile.NewTensor(2, 1, 1)
	x.Data[0], x.Data[1] = 0.7, -0.3
	jac := Jacobian(m, x)
	for o := 0; o < 2; o++ {
		for i := 0; i < 2; i++ {
			if got, want := jac.At(o, i), fc.Weight.Data[o*2+i]; got != want {
				t.Errorf("jac[%d][%d] = %v; want %v", o, i, got, want)
			}
		}
	}
}

func TestJSVDiagonalWeight(t *testing.T) {
	m := toyModel()
	m.Layer("fc").Weight.Data = []float64{3, 0, 0, 4}

	stats := JSV(m, jsvLoader(3), 2)
	if stats.Samples != 2 {
		t.Fatalf("samples = %d; want 2", stats.Samples)
	}
	check := func(name string, got float64, want float64) {
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("%s = %v; want %v", name, got, want)
		}
	}
	check("mean", stats.Mean, 3.5)
	check("std", stats.Std, 0.5)
	check("max", stats.Max, 4)
	check("min", stats.Min, 3)
	check("cond", stats.CondMean, 4.0/3)
}

func TestJSVOrthonormalWeight(t *testing.T) {
	// a rotation has every singular value equal to one
	c, s := math.Cos(math.Pi/6), math.Sin(math.Pi/6)
	m := toyModel()
	m.Layer("fc").Weight.Data = []float64{c, -s, s, c}

	stats := JSV(m, jsvLoader(1), 1)
	if math.Abs(stats.Mean-1) > 1e-9 || stats.Std > 1e-9 {
		t.Errorf("mean %v std %v; want 1 and 0", stats.Mean, stats.Std)
	}
	if math.Abs(stats.CondMean-1) > 1e-9 {
		t.Errorf("cond = %v; want 1", stats.CondMean)
	}
}

func TestJSVEmptyLoader(t *testing.T) {
	stats := JSV(toyModel(), &sliceLoader{}, 4)
	if stats.Samples != 0 || stats.Mean != 0 {
		t.Errorf("got %+v; want zero stats", stats)
	}
}

func TestJSVCondIgnoresSingularSamples(t *testing.T) {
	// the relu kills the first sample's Jacobian entirely; the condition
	// number mean must average over the nonsingular sample alone
	m := smile.NewModel("toy", 2, 1)
	m.Register(smile.NewReLU("relu"))
	m.Register(smile.NewLinear("fc", 2, 2, 1, "relu"))
	m.Layer("fc").Weight.Data = []float64{3, 0, 0, 1}

	dead := smile.NewTensor(2, 1, 1)
	dead.Data[0], dead.Data[1] = -1, -2
	live := smile.NewTensor(2, 1, 1)
	live.Data[0], live.Data[1] = 1, 2
	loader := &sliceLoader{xs: []*smile.Tensor{dead, live}, labels: []int{0, 0}}

	stats := JSV(m, loader, 2)
	if stats.Samples != 2 {
		t.Fatalf("samples = %d; want 2", stats.Samples)
	}
	if math.Abs(stats.CondMean-3) > 1e-9 {
		t.Errorf("cond = %v; want 3", stats.CondMean)
	}
	if stats.Min != 0 {
		t.Errorf("min = %v; want 0", stats.Min)
	}
}
