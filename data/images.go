package data

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/image/draw"

	"github.com/MingSun-Tse/smilepruning/smile"
)

// LoadImageDir reads a directory whose subdirectories are class names
// holding JPG or PNG files. Every image is resized to imgSize square
// RGB. Labels follow the sorted class directory order.
func LoadImageDir(dir string, imgSize int) (*Dataset, error) {
	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var classes []string
	for _, e := range entries {
		if e.IsDir() {
			classes = append(classes, e.Name())
		}
	}
	sort.Strings(classes)
	if len(classes) == 0 {
		return nil, fmt.Errorf("no class directories under %s", dir)
	}
	ds := &Dataset{
		Name:       filepath.Base(dir),
		InChannels: 3,
		ImgSize:    imgSize,
		Classes:    len(classes),
	}
	for label, class := range classes {
		files, err := ioutil.ReadDir(filepath.Join(dir, class))
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			fname := filepath.Join(dir, class, f.Name())
			if _, err := smile.GetImageDimsFromFile(fname); err != nil {
				log.Printf("[data] skipping %s: %v", fname, err)
				continue
			}
			x, err := loadImageTensor(fname, imgSize)
			if err != nil {
				return nil, fmt.Errorf("load %s: %w", fname, err)
			}
			ds.Samples = append(ds.Samples, Sample{X: x, Label: label})
		}
	}
	if len(ds.Samples) == 0 {
		return nil, fmt.Errorf("no images under %s", dir)
	}
	return ds, nil
}

func loadImageTensor(fname string, size int) (*smile.Tensor, error) {
	file, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	im, _, err := image.Decode(file)
	if err != nil {
		return nil, err
	}
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(dst, dst.Bounds(), im, im.Bounds(), draw.Src, nil)

	x := smile.NewTensor(3, size, size)
	for j := 0; j < size; j++ {
		for i := 0; i < size; i++ {
			r, g, b, _ := dst.At(i, j).RGBA()
			x.Data[(0*size+j)*size+i] = float64(r>>8) / 255
			x.Data[(1*size+j)*size+i] = float64(g>>8) / 255
			x.Data[(2*size+j)*size+i] = float64(b>>8) / 255
		}
	}
	return x, nil
}
