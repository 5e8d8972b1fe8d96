package smile

import (
	"math"
	"math/rand"
)

// LayerKind is a closed set. Pruning logic dispatches on it explicitly;
// there is no runtime type inspection of layer implementations.
type LayerKind string

const (
	Convolution   LayerKind = "conv"
	Linear        LayerKind = "linear"
	Normalization LayerKind = "norm"
	Other         LayerKind = "other"
)

// Layer is one node of the forward graph. Which fields are meaningful
// depends on Kind. Layers are owned by their Model; after construction
// only the reconstructor mutates them.
type Layer struct {
	Name  string    `json:"name"`
	Kind  LayerKind `json:"kind"`
	Index int       `json:"index"`
	// Producer layer names. Empty means the model input.
	From []string `json:"from,omitempty"`

	// Convolution and Linear
	Weight *Tensor `json:"weight,omitempty"`
	Bias   *Tensor `json:"bias,omitempty"`

	// Convolution geometry (square kernels)
	Kernel  int `json:"kernel,omitempty"`
	Stride  int `json:"stride,omitempty"`
	Padding int `json:"padding,omitempty"`

	// For a Linear layer fed by a flattened conv feature map: how many
	// flattened features each input channel contributes (H*W). 1 when fed
	// by another Linear.
	FeatsPerChan int `json:"feats_per_chan,omitempty"`

	// Normalization (running statistics, affine parameters)
	Scale *Tensor `json:"scale,omitempty"`
	Shift *Tensor `json:"shift,omitempty"`
	Mean  *Tensor `json:"mean,omitempty"`
	Var   *Tensor `json:"var,omitempty"`
	Eps   float64 `json:"eps,omitempty"`

	// Other: relu, maxpool, avgpool, add, flatten
	Op       string `json:"op,omitempty"`
	PoolSize int    `json:"pool_size,omitempty"`

	// Original indices the reconstructor kept, in ascending order. Nil on
	// an unpruned model.
	KeptOut []int `json:"kept_out,omitempty"`
	KeptIn  []int `json:"kept_in,omitempty"`
}

func NewConv(name string, in int, out int, kernel int, stride int, padding int, from ...string) *Layer {
	return &Layer{
		Name:    name,
		Kind:    Convolution,
		From:    from,
		Weight:  NewTensor(out, in, kernel, kernel),
		Bias:    NewTensor(out),
		Kernel:  kernel,
		Stride:  stride,
		Padding: padding,
	}
}

func NewLinear(name string, in int, out int, featsPerChan int, from ...string) *Layer {
	return &Layer{
		Name:         name,
		Kind:         Linear,
		From:         from,
		Weight:       NewTensor(out, in*featsPerChan),
		Bias:         NewTensor(out),
		FeatsPerChan: featsPerChan,
	}
}

func NewNorm(name string, channels int, from ...string) *Layer {
	l := &Layer{
		Name:  name,
		Kind:  Normalization,
		From:  from,
		Scale: NewTensor(channels),
		Shift: NewTensor(channels),
		Mean:  NewTensor(channels),
		Var:   NewTensor(channels),
		Eps:   1e-5,
	}
	l.Scale.Fill(1)
	l.Var.Fill(1)
	return l
}

func NewReLU(name string, from ...string) *Layer {
	return &Layer{Name: name, Kind: Other, Op: "relu", From: from}
}

func NewMaxPool(name string, size int, from ...string) *Layer {
	return &Layer{Name: name, Kind: Other, Op: "maxpool", PoolSize: size, From: from}
}

func NewAvgPool(name string, from ...string) *Layer {
	return &Layer{Name: name, Kind: Other, Op: "avgpool", From: from}
}

func NewAdd(name string, from ...string) *Layer {
	return &Layer{Name: name, Kind: Other, Op: "add", From: from}
}

func NewFlatten(name string, from ...string) *Layer {
	return &Layer{Name: name, Kind: Other, Op: "flatten", From: from}
}

// Prunable reports whether the layer owns weight groups that selection
// can operate on.
func (l *Layer) Prunable() bool {
	return l.Kind == Convolution || l.Kind == Linear
}

// OutChannels is the number of output channels (groups) the layer
// produces, or -1 when the layer only forwards its input's channels.
func (l *Layer) OutChannels() int {
	switch l.Kind {
	case Convolution, Linear:
		return l.Weight.Shape[0]
	case Normalization:
		return l.Scale.Shape[0]
	}
	return -1
}

// InChannels is the number of input channels the layer consumes.
func (l *Layer) InChannels() int {
	switch l.Kind {
	case Convolution:
		return l.Weight.Shape[1]
	case Linear:
		return l.Weight.Shape[1] / l.FeatsPerChan
	case Normalization:
		return l.Scale.Shape[0]
	}
	return -1
}

func (l *Layer) FanIn() int {
	if l.Kind == Convolution {
		return l.Weight.Shape[1] * l.Kernel * l.Kernel
	}
	return l.Weight.Shape[1]
}

type NamedTensor struct {
	Name   string
	Tensor *Tensor
}

// ParamTensors lists the layer's trainable tensors. Running statistics of
// normalization layers are not trained.
func (l *Layer) ParamTensors() []NamedTensor {
	var params []NamedTensor
	if l.Weight != nil {
		params = append(params, NamedTensor{l.Name + ".weight", l.Weight})
	}
	if l.Bias != nil {
		params = append(params, NamedTensor{l.Name + ".bias", l.Bias})
	}
	if l.Scale != nil {
		params = append(params, NamedTensor{l.Name + ".scale", l.Scale})
	}
	if l.Shift != nil {
		params = append(params, NamedTensor{l.Name + ".shift", l.Shift})
	}
	return params
}

// InitKaiming redraws the layer's parameters with variance-scaling
// Gaussians (He initialization). Normalization resets to identity.
func (l *Layer) InitKaiming(rng *rand.Rand) {
	switch l.Kind {
	case Convolution, Linear:
		std := math.Sqrt(2 / float64(l.FanIn()))
		l.Weight.Gaussian(rng, std)
		l.Bias.Fill(0)
	case Normalization:
		l.Scale.Fill(1)
		l.Shift.Fill(0)
		l.Mean.Fill(0)
		l.Var.Fill(1)
	}
}
