package train

import (
	"math"
	"testing"

	"github.com/MingSun-Tse/smilepruning/smile"
)

func logits(vals ...float64) *smile.Tensor {
	t := smile.NewTensor(len(vals))
	copy(t.Data, vals)
	return t
}

func TestCrossEntropyUniform(t *testing.T) {
	// equal logits give loss log(C) and gradient (1/C - onehot)
	loss, grad := CrossEntropy(logits(2, 2, 2, 2), 1)
	if want := math.Log(4); math.Abs(loss-want) > 1e-12 {
		t.Errorf("loss = %v; want %v", loss, want)
	}
	for i, g := range grad.Data {
		want := 0.25
		if i == 1 {
			want = -0.75
		}
		if math.Abs(g-want) > 1e-12 {
			t.Errorf("grad[%d] = %v; want %v", i, g, want)
		}
	}
}

func TestCrossEntropyGradSumsToZero(t *testing.T) {
	_, grad := CrossEntropy(logits(1.5, -0.2, 0.7, 3.1, -2), 3)
	var sum float64
	for _, g := range grad.Data {
		sum += g
	}
	if math.Abs(sum) > 1e-12 {
		t.Errorf("grad sum = %v; want 0", sum)
	}
}

func TestCrossEntropyLargeLogits(t *testing.T) {
	// the max shift keeps huge logits finite
	loss, grad := CrossEntropy(logits(1000, 0), 0)
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		t.Fatalf("loss = %v; want finite", loss)
	}
	if loss > 1e-12 {
		t.Errorf("loss = %v; want ~0", loss)
	}
	for i, g := range grad.Data {
		if math.IsNaN(g) {
			t.Errorf("grad[%d] is NaN", i)
		}
	}
}

func TestInTopK(t *testing.T) {
	l := logits(0.1, 0.9, 0.5, 0.3)
	check := func(label int, k int, want bool) {
		if got := InTopK(l, label, k); got != want {
			t.Errorf("InTopK(label %d, k %d) = %v; want %v", label, k, got, want)
		}
	}
	check(1, 1, true)
	check(2, 1, false)
	check(2, 2, true)
	check(0, 3, false)
	check(0, 4, true)
	check(3, 10, true)
}
