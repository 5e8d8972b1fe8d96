package models

import (
	"github.com/MingSun-Tse/smilepruning/smile"
)

func init() {
	Register("mlp", BuildMLP)
}

// BuildMLP is a two hidden layer perceptron over flattened pixels.
func BuildMLP(info DataInfo) *smile.Model {
	m := smile.NewModel("mlp", info.InChannels, info.ImgSize)
	m.Register(smile.NewFlatten("flat"))
	m.Register(smile.NewLinear("fc1", info.InChannels, 128, info.ImgSize*info.ImgSize, "flat"))
	m.Register(smile.NewReLU("relu1", "fc1"))
	m.Register(smile.NewLinear("fc2", 128, 64, 1, "relu1"))
	m.Register(smile.NewReLU("relu2", "fc2"))
	m.Register(smile.NewLinear("fc3", 64, info.Classes, 1, "relu2"))
	return m
}
