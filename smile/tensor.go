package smile

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Tensor is a dense float64 array. Weights, biases, normalization
// parameters, activations, and masks all use it. The first dimension of a
// weight tensor indexes output groups (conv filters, linear rows).
type Tensor struct {
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

func NewTensor(shape ...int) *Tensor {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return &Tensor{
		Shape: append([]int{}, shape...),
		Data:  make([]float64, n),
	}
}

func (t *Tensor) Numel() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

func (t *Tensor) Clone() *Tensor {
	other := NewTensor(t.Shape...)
	copy(other.Data, t.Data)
	return other
}

func (t *Tensor) Fill(v float64) {
	for i := range t.Data {
		t.Data[i] = v
	}
}

// Idx converts multi-dimensional coordinates to a flat offset.
func (t *Tensor) Idx(coords ...int) int {
	if len(coords) != len(t.Shape) {
		panic(fmt.Sprintf("tensor: %d coords for shape %v", len(coords), t.Shape))
	}
	idx := 0
	for i, c := range coords {
		idx = idx*t.Shape[i] + c
	}
	return idx
}

func (t *Tensor) At(coords ...int) float64 {
	return t.Data[t.Idx(coords...)]
}

func (t *Tensor) Set(v float64, coords ...int) {
	t.Data[t.Idx(coords...)] = v
}

// GroupSize is the number of scalars in one output group (one filter for
// conv weights, one row for linear weights, one element for vectors).
func (t *Tensor) GroupSize() int {
	if len(t.Shape) == 0 || t.Shape[0] == 0 {
		return 0
	}
	return t.Numel() / t.Shape[0]
}

// Group returns the backing slice of output group i.
func (t *Tensor) Group(i int) []float64 {
	gs := t.GroupSize()
	return t.Data[i*gs : (i+1)*gs]
}

// TakeOutputs builds a new tensor keeping only the listed output groups,
// in the given order. Works for weight tensors and for 1-D vectors
// (biases, normalization parameters).
func (t *Tensor) TakeOutputs(kept []int) *Tensor {
	shape := append([]int{}, t.Shape...)
	shape[0] = len(kept)
	out := NewTensor(shape...)
	gs := t.GroupSize()
	for i, k := range kept {
		copy(out.Data[i*gs:(i+1)*gs], t.Group(k))
	}
	return out
}

// TakeInputs builds a new tensor keeping only the listed input channels.
// chans is the number of input channels the second dimension encodes; for
// a linear layer fed by a flattened feature map the per-channel block
// (H*W features) moves as a unit with its channel.
func (t *Tensor) TakeInputs(kept []int, chans int) *Tensor {
	rows := t.Shape[0]
	block := t.GroupSize() / chans
	shape := append([]int{}, t.Shape...)
	if len(shape) >= 2 && shape[1] == chans {
		shape[1] = len(kept)
	} else {
		// flattened layout [rows, chans*block]
		shape[1] = len(kept) * block
	}
	out := NewTensor(shape...)
	ogs := len(kept) * block
	for r := 0; r < rows; r++ {
		src := t.Group(r)
		dst := out.Data[r*ogs : (r+1)*ogs]
		for i, k := range kept {
			copy(dst[i*block:(i+1)*block], src[k*block:(k+1)*block])
		}
	}
	return out
}

// Gaussian fills the tensor with N(0, std²) draws from rng.
func (t *Tensor) Gaussian(rng *rand.Rand, std float64) {
	for i := range t.Data {
		t.Data[i] = rng.NormFloat64() * std
	}
}

// AsMatrix views the tensor as a [groups x groupSize] gonum matrix
// sharing the backing slice, so writes through the matrix land in the
// tensor.
func (t *Tensor) AsMatrix() *mat.Dense {
	return mat.NewDense(t.Shape[0], t.GroupSize(), t.Data)
}

func L1(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += math.Abs(x)
	}
	return s
}

func L2(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x * x
	}
	return math.Sqrt(s)
}
