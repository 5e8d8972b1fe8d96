package data

import (
	"math/rand"
)

// Split partitions ds into two datasets, the first receiving frac of
// the samples. Deterministic in seed; samples are shared, not copied.
func Split(ds *Dataset, frac float64, seed int64) (*Dataset, *Dataset) {
	rng := rand.New(rand.NewSource(seed))
	order := rng.Perm(ds.Len())
	n := int(frac * float64(ds.Len()))
	first := &Dataset{
		Name:       ds.Name + "-a",
		InChannels: ds.InChannels,
		ImgSize:    ds.ImgSize,
		Classes:    ds.Classes,
	}
	second := &Dataset{
		Name:       ds.Name + "-b",
		InChannels: ds.InChannels,
		ImgSize:    ds.ImgSize,
		Classes:    ds.Classes,
	}
	for i, idx := range order {
		if i < n {
			first.Samples = append(first.Samples, ds.Samples[idx])
		} else {
			second.Samples = append(second.Samples, ds.Samples[idx])
		}
	}
	return first, second
}
