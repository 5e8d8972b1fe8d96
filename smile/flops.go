package smile

// CountParams is the number of trainable scalars in the model.
func (m *Model) CountParams() int {
	n := 0
	for _, nt := range m.Params() {
		n += nt.Tensor.Numel()
	}
	return n
}

// CountFlops estimates forward multiply operations of convolution and
// linear layers. Normalization and pooling are negligible next to them
// and are not counted.
func (m *Model) CountFlops() (int64, error) {
	_, sizes, err := m.channelsAndSize()
	if err != nil {
		return 0, err
	}
	var n int64
	for _, l := range m.Layers {
		switch l.Kind {
		case Convolution:
			so := int64(sizes[l.Name])
			n += so * so * int64(l.Weight.Numel())
		case Linear:
			n += int64(l.Weight.Numel())
		}
	}
	return n, nil
}

// Reduction summarizes how much smaller and cheaper a pruned model is
// relative to its source.
type Reduction struct {
	ParamsBefore int     `json:"params_before"`
	ParamsAfter  int     `json:"params_after"`
	FlopsBefore  int64   `json:"flops_before"`
	FlopsAfter   int64   `json:"flops_after"`
	ParamRatio   float64 `json:"param_ratio"`
	FlopRatio    float64 `json:"flop_ratio"`
	Compression  float64 `json:"compression"`
	Speedup      float64 `json:"speedup"`
}

// Reductions compares a pruned model against its source. Compression is
// 1/(1-paramRatio), speedup 1/(1-flopRatio).
func Reductions(orig *Model, pruned *Model) (*Reduction, error) {
	fb, err := orig.CountFlops()
	if err != nil {
		return nil, err
	}
	fa, err := pruned.CountFlops()
	if err != nil {
		return nil, err
	}
	r := &Reduction{
		ParamsBefore: orig.CountParams(),
		ParamsAfter:  pruned.CountParams(),
		FlopsBefore:  fb,
		FlopsAfter:   fa,
	}
	r.ParamRatio = 1 - float64(r.ParamsAfter)/float64(r.ParamsBefore)
	r.FlopRatio = 1 - float64(r.FlopsAfter)/float64(r.FlopsBefore)
	if r.ParamRatio < 1 {
		r.Compression = 1 / (1 - r.ParamRatio)
	}
	if r.FlopRatio < 1 {
		r.Speedup = 1 / (1 - r.FlopRatio)
	}
	return r, nil
}
