package smile

import (
	"fmt"
	"math"
)

// Activations holds every layer output from one forward pass, keyed by
// layer name. Backward consumes it.
type Activations struct {
	Input  *Tensor
	Out    map[string]*Tensor
	argmax map[string][]int
}

func (a *Activations) inputOf(l *Layer) *Tensor {
	if len(l.From) == 0 {
		return a.Input
	}
	return a.Out[l.From[0]]
}

// Forward runs one sample through the graph and returns the output
// layer's activation (the logits for a classifier). x is [C x S x S]
// (S=1 for flat feature vectors).
func (m *Model) Forward(x *Tensor) (*Tensor, *Activations) {
	acts := &Activations{
		Input:  x,
		Out:    make(map[string]*Tensor),
		argmax: make(map[string][]int),
	}
	for _, l := range m.Layers {
		in := acts.inputOf(l)
		var out *Tensor
		switch l.Kind {
		case Convolution:
			out = convForward(l, in)
		case Linear:
			out = linearForward(l, in)
		case Normalization:
			out = normForward(l, in)
		case Other:
			switch l.Op {
			case "relu":
				out = in.Clone()
				for i, v := range out.Data {
					if v < 0 {
						out.Data[i] = 0
					}
				}
			case "maxpool":
				var am []int
				out, am = maxPoolForward(l, in)
				acts.argmax[l.Name] = am
			case "avgpool":
				out = avgPoolForward(in)
			case "add":
				out = acts.Out[l.From[0]].Clone()
				for _, f := range l.From[1:] {
					for i, v := range acts.Out[f].Data {
						out.Data[i] += v
					}
				}
			case "flatten":
				out = in.Clone()
				out.Shape = []int{in.Numel()}
			default:
				panic(fmt.Sprintf("forward: unknown op %q in layer %s", l.Op, l.Name))
			}
		}
		acts.Out[l.Name] = out
	}
	return acts.Out[m.OutputLayer().Name], acts
}

func convForward(l *Layer, in *Tensor) *Tensor {
	C, S := in.Shape[0], in.Shape[1]
	O, K := l.Weight.Shape[0], l.Kernel
	So := (S+2*l.Padding-K)/l.Stride + 1
	out := NewTensor(O, So, So)
	for o := 0; o < O; o++ {
		for y := 0; y < So; y++ {
			for x := 0; x < So; x++ {
				sum := l.Bias.Data[o]
				for c := 0; c < C; c++ {
					for ky := 0; ky < K; ky++ {
						iy := y*l.Stride - l.Padding + ky
						if iy < 0 || iy >= S {
							continue
						}
						for kx := 0; kx < K; kx++ {
							ix := x*l.Stride - l.Padding + kx
							if ix < 0 || ix >= S {
								continue
							}
							sum += l.Weight.Data[((o*C+c)*K+ky)*K+kx] * in.Data[(c*S+iy)*S+ix]
						}
					}
				}
				out.Data[(o*So+y)*So+x] = sum
			}
		}
	}
	return out
}

func linearForward(l *Layer, in *Tensor) *Tensor {
	O, I := l.Weight.Shape[0], l.Weight.Shape[1]
	out := NewTensor(O)
	for o := 0; o < O; o++ {
		sum := l.Bias.Data[o]
		row := l.Weight.Data[o*I : (o+1)*I]
		for i, v := range in.Data {
			sum += row[i] * v
		}
		out.Data[o] = sum
	}
	return out
}

// normForward applies y = scale*(x-mean)/sqrt(var+eps) + shift per
// channel using the layer's running statistics.
func normForward(l *Layer, in *Tensor) *Tensor {
	C := in.Shape[0]
	plane := in.Numel() / C
	out := NewTensor(in.Shape...)
	for c := 0; c < C; c++ {
		inv := 1 / math.Sqrt(l.Var.Data[c]+l.Eps)
		scale, shift, mean := l.Scale.Data[c], l.Shift.Data[c], l.Mean.Data[c]
		for i := c * plane; i < (c+1)*plane; i++ {
			out.Data[i] = scale*(in.Data[i]-mean)*inv + shift
		}
	}
	return out
}

func maxPoolForward(l *Layer, in *Tensor) (*Tensor, []int) {
	C, S, P := in.Shape[0], in.Shape[1], l.PoolSize
	So := S / P
	out := NewTensor(C, So, So)
	argmax := make([]int, out.Numel())
	for c := 0; c < C; c++ {
		for y := 0; y < So; y++ {
			for x := 0; x < So; x++ {
				best, bestIdx := math.Inf(-1), -1
				for py := 0; py < P; py++ {
					for px := 0; px < P; px++ {
						idx := (c*S+y*P+py)*S + x*P + px
						if in.Data[idx] > best {
							best, bestIdx = in.Data[idx], idx
						}
					}
				}
				oi := (c*So+y)*So + x
				out.Data[oi] = best
				argmax[oi] = bestIdx
			}
		}
	}
	return out, argmax
}

func avgPoolForward(in *Tensor) *Tensor {
	C := in.Shape[0]
	plane := in.Numel() / C
	out := NewTensor(C, 1, 1)
	for c := 0; c < C; c++ {
		var sum float64
		for i := c * plane; i < (c+1)*plane; i++ {
			sum += in.Data[i]
		}
		out.Data[c] = sum / float64(plane)
	}
	return out
}
