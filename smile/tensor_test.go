package smile

import (
	"testing"
)

func TestTakeOutputs(t *testing.T) {
	// weight [4 x 2], keep rows 1 and 3
	w := NewTensor(4, 2)
	for i := range w.Data {
		w.Data[i] = float64(i)
	}
	out := w.TakeOutputs([]int{1, 3})
	if out.Shape[0] != 2 || out.Shape[1] != 2 {
		t.Fatalf("TakeOutputs shape = %v; want [2 2]", out.Shape)
	}
	want := []float64{2, 3, 6, 7}
	for i, v := range want {
		if out.Data[i] != v {
			t.Errorf("TakeOutputs data[%d] = %v; want %v", i, out.Data[i], v)
		}
	}
}

func TestTakeInputsConv(t *testing.T) {
	// conv weight [1 out x 3 in x 2 x 2], keep input channels 0 and 2
	w := NewTensor(1, 3, 2, 2)
	for i := range w.Data {
		w.Data[i] = float64(i)
	}
	out := w.TakeInputs([]int{0, 2}, 3)
	if out.Shape[1] != 2 {
		t.Fatalf("TakeInputs shape = %v; want input dim 2", out.Shape)
	}
	want := []float64{0, 1, 2, 3, 8, 9, 10, 11}
	for i, v := range want {
		if out.Data[i] != v {
			t.Errorf("TakeInputs data[%d] = %v; want %v", i, out.Data[i], v)
		}
	}
}

func TestTakeInputsFlattened(t *testing.T) {
	// linear weight [2 x 6] fed by 3 channels with 2 features each;
	// keeping channel 1 keeps its whole feature block
	w := NewTensor(2, 6)
	for i := range w.Data {
		w.Data[i] = float64(i)
	}
	out := w.TakeInputs([]int{1}, 3)
	if out.Shape[0] != 2 || out.Shape[1] != 2 {
		t.Fatalf("TakeInputs shape = %v; want [2 2]", out.Shape)
	}
	want := []float64{2, 3, 8, 9}
	for i, v := range want {
		if out.Data[i] != v {
			t.Errorf("TakeInputs data[%d] = %v; want %v", i, out.Data[i], v)
		}
	}
}

func TestAsMatrixSharesBacking(t *testing.T) {
	w := NewTensor(2, 3)
	mtx := w.AsMatrix()
	mtx.Set(1, 2, 7.5)
	if w.Data[5] != 7.5 {
		t.Errorf("AsMatrix write did not land in tensor: data = %v", w.Data)
	}
}

func TestNorms(t *testing.T) {
	xs := []float64{3, -4}
	if got := L1(xs); got != 7 {
		t.Errorf("L1(%v) = %v; want 7", xs, got)
	}
	if got := L2(xs); got != 5 {
		t.Errorf("L2(%v) = %v; want 5", xs, got)
	}
}
