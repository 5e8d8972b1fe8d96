package smile

import (
	"math"
)

// Grads accumulates parameter gradients across a batch, keyed by the
// dotted names Model.Params uses.
type Grads map[string]*Tensor

func (g Grads) of(name string, shape []int) *Tensor {
	t, ok := g[name]
	if !ok {
		t = NewTensor(shape...)
		g[name] = t
	}
	return t
}

func (g Grads) Zero() {
	for _, t := range g {
		t.Fill(0)
	}
}

// Scale multiplies every gradient in place, typically by 1/batchSize.
func (g Grads) Scale(f float64) {
	for _, t := range g {
		for i := range t.Data {
			t.Data[i] *= f
		}
	}
}

// Backward propagates gradOut (gradient at the output layer's
// activation) back through the graph of one forward pass, accumulating
// parameter gradients into grads. It returns the gradient with respect
// to the input sample, which Jacobian diagnostics consume. grads may be
// nil when only the input gradient is wanted.
func (m *Model) Backward(acts *Activations, gradOut *Tensor, grads Grads) *Tensor {
	gout := make(map[string]*Tensor)
	gout[m.OutputLayer().Name] = gradOut.Clone()
	gradIn := NewTensor(acts.Input.Shape...)

	addTo := func(name string, g *Tensor) {
		if name == "" {
			for i, v := range g.Data {
				gradIn.Data[i] += v
			}
			return
		}
		if t, ok := gout[name]; ok {
			for i, v := range g.Data {
				t.Data[i] += v
			}
		} else {
			gout[name] = g
		}
	}
	fromName := func(l *Layer) string {
		if len(l.From) == 0 {
			return ""
		}
		return l.From[0]
	}

	for i := len(m.Layers) - 1; i >= 0; i-- {
		l := m.Layers[i]
		g, ok := gout[l.Name]
		if !ok {
			continue
		}
		in := acts.inputOf(l)
		switch l.Kind {
		case Convolution:
			addTo(fromName(l), convBackward(l, in, g, grads))
		case Linear:
			addTo(fromName(l), linearBackward(l, in, g, grads))
		case Normalization:
			addTo(fromName(l), normBackward(l, in, g, grads))
		case Other:
			switch l.Op {
			case "relu":
				out := acts.Out[l.Name]
				gin := NewTensor(in.Shape...)
				for j, v := range out.Data {
					if v > 0 {
						gin.Data[j] = g.Data[j]
					}
				}
				addTo(fromName(l), gin)
			case "maxpool":
				gin := NewTensor(in.Shape...)
				for j, idx := range acts.argmax[l.Name] {
					gin.Data[idx] += g.Data[j]
				}
				addTo(fromName(l), gin)
			case "avgpool":
				gin := NewTensor(in.Shape...)
				C := in.Shape[0]
				plane := in.Numel() / C
				for c := 0; c < C; c++ {
					v := g.Data[c] / float64(plane)
					for j := c * plane; j < (c+1)*plane; j++ {
						gin.Data[j] = v
					}
				}
				addTo(fromName(l), gin)
			case "add":
				for _, f := range l.From {
					addTo(f, g.Clone())
				}
			case "flatten":
				gin := g.Clone()
				gin.Shape = append([]int{}, in.Shape...)
				addTo(fromName(l), gin)
			}
		}
	}
	return gradIn
}

func convBackward(l *Layer, in *Tensor, gout *Tensor, grads Grads) *Tensor {
	C, S := in.Shape[0], in.Shape[1]
	O, K := l.Weight.Shape[0], l.Kernel
	So := gout.Shape[1]
	gin := NewTensor(in.Shape...)
	var gw, gb *Tensor
	if grads != nil {
		gw = grads.of(l.Name+".weight", l.Weight.Shape)
		gb = grads.of(l.Name+".bias", l.Bias.Shape)
	}
	for o := 0; o < O; o++ {
		for y := 0; y < So; y++ {
			for x := 0; x < So; x++ {
				g := gout.Data[(o*So+y)*So+x]
				if g == 0 {
					continue
				}
				if gb != nil {
					gb.Data[o] += g
				}
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
							wi := ((o*C+c)*K+ky)*K + kx
							ii := (c*S+iy)*S + ix
							if gw != nil {
								gw.Data[wi] += g * in.Data[ii]
							}
							gin.Data[ii] += g * l.Weight.Data[wi]
						}
					}
				}
			}
		}
	}
	return gin
}

func linearBackward(l *Layer, in *Tensor, gout *Tensor, grads Grads) *Tensor {
	O, I := l.Weight.Shape[0], l.Weight.Shape[1]
	gin := NewTensor(in.Shape...)
	var gw, gb *Tensor
	if grads != nil {
		gw = grads.of(l.Name+".weight", l.Weight.Shape)
		gb = grads.of(l.Name+".bias", l.Bias.Shape)
	}
	for o := 0; o < O; o++ {
		g := gout.Data[o]
		if g == 0 {
			continue
		}
		if gb != nil {
			gb.Data[o] += g
		}
		row := l.Weight.Data[o*I : (o+1)*I]
		var gwRow []float64
		if gw != nil {
			gwRow = gw.Data[o*I : (o+1)*I]
		}
		for i, v := range in.Data {
			if gwRow != nil {
				gwRow[i] += g * v
			}
			gin.Data[i] += g * row[i]
		}
	}
	return gin
}

func normBackward(l *Layer, in *Tensor, gout *Tensor, grads Grads) *Tensor {
	C := in.Shape[0]
	plane := in.Numel() / C
	gin := NewTensor(in.Shape...)
	var gs, gh *Tensor
	if grads != nil {
		gs = grads.of(l.Name+".scale", l.Scale.Shape)
		gh = grads.of(l.Name+".shift", l.Shift.Shape)
	}
	for c := 0; c < C; c++ {
		inv := 1 / math.Sqrt(l.Var.Data[c]+l.Eps)
		scale, mean := l.Scale.Data[c], l.Mean.Data[c]
		for i := c * plane; i < (c+1)*plane; i++ {
			g := gout.Data[i]
			if gs != nil {
				gs.Data[c] += g * (in.Data[i] - mean) * inv
				gh.Data[c] += g
			}
			gin.Data[i] = g * scale * inv
		}
	}
	return gin
}
