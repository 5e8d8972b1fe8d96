package models

import (
	"github.com/MingSun-Tse/smilepruning/smile"
)

func init() {
	Register("resmini", BuildResMini)
}

// BuildResMini is a small residual network: one stem, one residual
// block, a strided stage, then global average pooling. The skip
// connection makes conv1 and conv2b share one dependency cluster, which
// is what the bigger residual families look like to the pruner.
func BuildResMini(info DataInfo) *smile.Model {
	m := smile.NewModel("resmini", info.InChannels, info.ImgSize)
	m.Register(smile.NewConv("conv1", info.InChannels, 8, 3, 1, 1))
	m.Register(smile.NewNorm("bn1", 8, "conv1"))
	m.Register(smile.NewReLU("relu1", "bn1"))

	m.Register(smile.NewConv("conv2a", 8, 8, 3, 1, 1, "relu1"))
	m.Register(smile.NewNorm("bn2a", 8, "conv2a"))
	m.Register(smile.NewReLU("relu2a", "bn2a"))
	m.Register(smile.NewConv("conv2b", 8, 8, 3, 1, 1, "relu2a"))
	m.Register(smile.NewNorm("bn2b", 8, "conv2b"))
	m.Register(smile.NewAdd("add2", "bn2b", "relu1"))
	m.Register(smile.NewReLU("relu2", "add2"))

	m.Register(smile.NewConv("conv3", 8, 16, 3, 2, 1, "relu2"))
	m.Register(smile.NewNorm("bn3", 16, "conv3"))
	m.Register(smile.NewReLU("relu3", "bn3"))

	m.Register(smile.NewAvgPool("gap", "relu3"))
	m.Register(smile.NewLinear("fc", 16, info.Classes, 1, "gap"))
	return m
}
