package data

import (
	"fmt"
	"math/rand"

	"github.com/MingSun-Tse/smilepruning/smile"
)

// Synthetic builds a deterministic blob dataset: each class is a
// gaussian cloud around its own template image. Useful for exercising
// the whole prune/finetune pipeline without any files on disk.
func Synthetic(classes int, perClass int, inChannels int, imgSize int, seed int64) *Dataset {
	rng := rand.New(rand.NewSource(seed))
	ds := &Dataset{
		Name:       fmt.Sprintf("synthetic-%dx%d", classes, perClass),
		InChannels: inChannels,
		ImgSize:    imgSize,
		Classes:    classes,
	}
	templates := make([]*smile.Tensor, classes)
	for c := range templates {
		t := smile.NewTensor(inChannels, imgSize, imgSize)
		t.Gaussian(rng, 1)
		templates[c] = t
	}
	for i := 0; i < classes*perClass; i++ {
		label := i % classes
		x := templates[label].Clone()
		for j := range x.Data {
			x.Data[j] += 0.3 * rng.NormFloat64()
		}
		ds.Samples = append(ds.Samples, Sample{X: x, Label: label})
	}
	return ds
}
