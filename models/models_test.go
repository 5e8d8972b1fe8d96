package models

import (
	"errors"
	"testing"

	"github.com/MingSun-Tse/smilepruning/pruner"
	"github.com/MingSun-Tse/smilepruning/smile"
)

var mnist = DataInfo{InChannels: 1, ImgSize: 28, Classes: 10}

func TestBuildersRegistered(t *testing.T) {
	for _, arch := range []string{"mlp", "lenet5", "resmini"} {
		if _, ok := Builders[arch]; !ok {
			t.Errorf("architecture %s not registered", arch)
		}
	}
}

func TestBuildUnknown(t *testing.T) {
	if _, err := Build("resnet5000", mnist); !errors.Is(err, smile.ErrConfig) {
		t.Errorf("Build(resnet5000) err = %v; want ErrConfig", err)
	}
}

func TestLeNet5ClassicParamCount(t *testing.T) {
	m, err := Build("lenet5", mnist)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := m.CountParams(); got != 61706 {
		t.Errorf("CountParams() = %d; want 61706", got)
	}
}

func TestBuildAllForwardShape(t *testing.T) {
	for _, info := range []DataInfo{
		mnist,
		{InChannels: 3, ImgSize: 32, Classes: 10},
	} {
		for arch := range Builders {
			m, err := Build(arch, info)
			if err != nil {
				t.Errorf("Build(%s, %+v): %v", arch, info, err)
				continue
			}
			x := smile.NewTensor(info.InChannels, info.ImgSize, info.ImgSize)
			out, _ := m.Forward(x)
			if out.Numel() != info.Classes {
				t.Errorf("%s on %+v: output numel %d; want %d", arch, info, out.Numel(), info.Classes)
			}
		}
	}
}

func TestResMiniSkipTiesStemToBlockEnd(t *testing.T) {
	m, err := Build("resmini", mnist)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	clusters, err := pruner.BuildClusters(m)
	if err != nil {
		t.Fatalf("BuildClusters: %v", err)
	}
	found := false
	for _, c := range clusters {
		layers := make(map[string]bool)
		for _, g := range c.Members {
			layers[g.Layer] = true
		}
		if layers["conv1"] && layers["conv2b"] {
			found = true
		} else if layers["conv1"] != layers["conv2b"] {
			t.Fatalf("conv1 and conv2b split across clusters: %v", c.Members)
		}
	}
	if !found {
		t.Errorf("no cluster ties conv1 to conv2b")
	}
}
