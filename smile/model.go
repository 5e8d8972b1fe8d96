package smile

import (
	"fmt"
)

// Model is an explicit forward graph over registered layers.
// Registration order is forward order; every From reference must name an
// already registered layer. Input is a [InChannels x InSize x InSize]
// image plane (InSize 1 for flat feature vectors).
type Model struct {
	Arch       string   `json:"arch"`
	InChannels int      `json:"in_channels"`
	InSize     int      `json:"in_size"`
	Layers     []*Layer `json:"layers"`

	byName map[string]*Layer
}

func NewModel(arch string, inChannels int, inSize int) *Model {
	return &Model{
		Arch:       arch,
		InChannels: inChannels,
		InSize:     inSize,
		byName:     make(map[string]*Layer),
	}
}

// Register appends a layer to the forward graph. Layer names are unique;
// re-registering a name is a programming error in the model builder.
func (m *Model) Register(l *Layer) *Layer {
	if m.byName == nil {
		m.reindex()
	}
	if _, ok := m.byName[l.Name]; ok {
		panic(fmt.Sprintf("model %s: duplicate layer %s", m.Arch, l.Name))
	}
	l.Index = len(m.Layers)
	m.Layers = append(m.Layers, l)
	m.byName[l.Name] = l
	return l
}

func (m *Model) reindex() {
	m.byName = make(map[string]*Layer)
	for i, l := range m.Layers {
		l.Index = i
		m.byName[l.Name] = l
	}
}

// Layer returns the named layer, or nil.
func (m *Model) Layer(name string) *Layer {
	if m.byName == nil {
		m.reindex()
	}
	return m.byName[name]
}

func (m *Model) Clone() *Model {
	other := NewModel(m.Arch, m.InChannels, m.InSize)
	for _, l := range m.Layers {
		c := *l
		c.From = append([]string{}, l.From...)
		for _, t := range []struct {
			src **Tensor
			dst **Tensor
		}{
			{&l.Weight, &c.Weight}, {&l.Bias, &c.Bias},
			{&l.Scale, &c.Scale}, {&l.Shift, &c.Shift},
			{&l.Mean, &c.Mean}, {&l.Var, &c.Var},
		} {
			if *t.src != nil {
				*t.dst = (*t.src).Clone()
			}
		}
		if l.KeptOut != nil {
			c.KeptOut = append([]int{}, l.KeptOut...)
		}
		if l.KeptIn != nil {
			c.KeptIn = append([]int{}, l.KeptIn...)
		}
		other.Register(&c)
	}
	return other
}

// Prunables lists the layers that own weight groups, in forward order.
func (m *Model) Prunables() []*Layer {
	var layers []*Layer
	for _, l := range m.Layers {
		if l.Prunable() {
			layers = append(layers, l)
		}
	}
	return layers
}

// FinalClassifier is the last prunable layer. Its output groups are the
// class logits and are never pruned.
func (m *Model) FinalClassifier() *Layer {
	prunables := m.Prunables()
	if len(prunables) == 0 {
		return nil
	}
	return prunables[len(prunables)-1]
}

// OutputLayer is the last layer in forward order.
func (m *Model) OutputLayer() *Layer {
	if len(m.Layers) == 0 {
		return nil
	}
	return m.Layers[len(m.Layers)-1]
}

// InputSources resolves the layers that define l's input channels,
// looking through passthrough ops (relu, pools, flatten). An add merges
// branches, so it can return several sources. Empty means the model
// input feeds l directly.
func (m *Model) InputSources(l *Layer) []*Layer {
	var sources []*Layer
	seen := make(map[string]bool)
	var walk func(name string)
	walk = func(name string) {
		src := m.Layer(name)
		if src == nil || seen[src.Name] {
			return
		}
		seen[src.Name] = true
		if src.Kind == Other {
			// passthrough; an add contributes every branch's sources
			for _, f := range src.From {
				walk(f)
			}
			return
		}
		sources = append(sources, src)
	}
	for _, f := range l.From {
		walk(f)
	}
	return sources
}

// channelsAndSize walks the graph computing each layer's output channel
// count and spatial size. Returns ErrConfig on any inconsistency.
func (m *Model) channelsAndSize() (map[string]int, map[string]int, error) {
	chans := make(map[string]int)
	sizes := make(map[string]int)
	inOf := func(l *Layer) (int, int, error) {
		if len(l.From) == 0 {
			return m.InChannels, m.InSize, nil
		}
		c, s := -1, -1
		for _, f := range l.From {
			fc, ok := chans[f]
			if !ok {
				return 0, 0, ConfigErrorf("layer %s: input %s not registered before it", l.Name, f)
			}
			if c == -1 {
				c, s = fc, sizes[f]
			} else if fc != c || sizes[f] != s {
				return 0, 0, ConfigErrorf("layer %s: inputs disagree, %s is %dx%d but expected %dx%d",
					l.Name, f, fc, sizes[f], c, s)
			}
		}
		return c, s, nil
	}
	for _, l := range m.Layers {
		c, s, err := inOf(l)
		if err != nil {
			return nil, nil, err
		}
		switch l.Kind {
		case Convolution:
			if l.InChannels() != c {
				return nil, nil, ConfigErrorf("layer %s: weight expects %d input channels, graph provides %d",
					l.Name, l.InChannels(), c)
			}
			out := (s+2*l.Padding-l.Kernel)/l.Stride + 1
			if out < 1 {
				return nil, nil, ConfigErrorf("layer %s: kernel %d does not fit input size %d", l.Name, l.Kernel, s)
			}
			chans[l.Name], sizes[l.Name] = l.OutChannels(), out
		case Linear:
			if l.InChannels() != c {
				return nil, nil, ConfigErrorf("layer %s: weight expects %d input channels, graph provides %d",
					l.Name, l.InChannels(), c)
			}
			if l.FeatsPerChan != s*s {
				return nil, nil, ConfigErrorf("layer %s: feats per channel %d, input plane is %dx%d",
					l.Name, l.FeatsPerChan, s, s)
			}
			chans[l.Name], sizes[l.Name] = l.OutChannels(), 1
		case Normalization:
			if l.OutChannels() != c {
				return nil, nil, ConfigErrorf("layer %s: normalizes %d channels, graph provides %d",
					l.Name, l.OutChannels(), c)
			}
			chans[l.Name], sizes[l.Name] = c, s
		case Other:
			switch l.Op {
			case "relu", "add", "flatten":
				chans[l.Name], sizes[l.Name] = c, s
			case "maxpool":
				chans[l.Name], sizes[l.Name] = c, s/l.PoolSize
			case "avgpool":
				chans[l.Name], sizes[l.Name] = c, 1
			default:
				return nil, nil, ConfigErrorf("layer %s: unknown op %q", l.Name, l.Op)
			}
		default:
			return nil, nil, ConfigErrorf("layer %s: unknown kind %q", l.Name, l.Kind)
		}
	}
	return chans, sizes, nil
}

// Validate checks graph connectivity and channel consistency.
func (m *Model) Validate() error {
	if len(m.Layers) == 0 {
		return ConfigErrorf("model %s: no layers", m.Arch)
	}
	_, _, err := m.channelsAndSize()
	return err
}

// Params lists every trainable tensor with a dotted name.
func (m *Model) Params() []NamedTensor {
	var params []NamedTensor
	for _, l := range m.Layers {
		params = append(params, l.ParamTensors()...)
	}
	return params
}
