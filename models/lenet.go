package models

import (
	"github.com/MingSun-Tse/smilepruning/smile"
)

func init() {
	Register("lenet5", BuildLeNet5)
}

// BuildLeNet5 is the classic five layer convnet. On 1x28x28 inputs with
// ten classes it has the textbook 61706 parameters.
func BuildLeNet5(info DataInfo) *smile.Model {
	m := smile.NewModel("lenet5", info.InChannels, info.ImgSize)
	m.Register(smile.NewConv("conv1", info.InChannels, 6, 5, 1, 2))
	m.Register(smile.NewReLU("relu1", "conv1"))
	m.Register(smile.NewMaxPool("pool1", 2, "relu1"))
	m.Register(smile.NewConv("conv2", 6, 16, 5, 1, 0, "pool1"))
	m.Register(smile.NewReLU("relu2", "conv2"))
	m.Register(smile.NewMaxPool("pool2", 2, "relu2"))
	m.Register(smile.NewFlatten("flat", "pool2"))

	// spatial size surviving the conv/pool stack
	s := info.ImgSize / 2
	s = (s - 4) / 2
	m.Register(smile.NewLinear("fc1", 16, 120, s*s, "flat"))
	m.Register(smile.NewReLU("relu3", "fc1"))
	m.Register(smile.NewLinear("fc2", 120, 84, 1, "relu3"))
	m.Register(smile.NewReLU("relu4", "fc2"))
	m.Register(smile.NewLinear("fc3", 84, info.Classes, 1, "relu4"))
	return m
}
