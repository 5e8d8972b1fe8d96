// Package models builds the reference architectures that the pruning
// methods operate on. Each architecture registers a builder in its own
// file's init.
package models

import (
	"fmt"

	"github.com/MingSun-Tse/smilepruning/smile"
)

// DataInfo describes the dataset a model is built for.
type DataInfo struct {
	InChannels int
	ImgSize    int
	Classes    int
}

type Builder func(info DataInfo) *smile.Model

var Builders = make(map[string]Builder)

func Register(arch string, builder Builder) {
	if _, ok := Builders[arch]; ok {
		panic(fmt.Sprintf("models: duplicate architecture %s", arch))
	}
	Builders[arch] = builder
}

// Build constructs and validates the named architecture. Weights start
// at zero; callers initialize or load them.
func Build(arch string, info DataInfo) (*smile.Model, error) {
	builder, ok := Builders[arch]
	if !ok {
		return nil, smile.ConfigErrorf("unknown architecture %q", arch)
	}
	m := builder(info)
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}
