package data

import (
	"image"
	"image/color"
	"image/png"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func writePNG(t *testing.T, fname string, c color.RGBA, w int, h int) {
	t.Helper()
	im := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			im.Set(x, y, c)
		}
	}
	file, err := os.Create(fname)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	if err := png.Encode(file, im); err != nil {
		t.Fatal(err)
	}
}

func TestLoadImageDir(t *testing.T) {
	dir := t.TempDir()
	for _, class := range []string{"cat", "dog"} {
		if err := os.Mkdir(filepath.Join(dir, class), 0755); err != nil {
			t.Fatal(err)
		}
	}
	writePNG(t, filepath.Join(dir, "cat", "a.png"), color.RGBA{255, 0, 0, 255}, 6, 4)
	writePNG(t, filepath.Join(dir, "dog", "b.png"), color.RGBA{0, 0, 255, 255}, 3, 3)
	// non-image files are skipped, not fatal
	if err := ioutil.WriteFile(filepath.Join(dir, "dog", "notes.txt"), []byte("not an image"), 0644); err != nil {
		t.Fatal(err)
	}

	ds, err := LoadImageDir(dir, 2)
	if err != nil {
		t.Fatalf("LoadImageDir: %v", err)
	}
	if ds.Len() != 2 || ds.Classes != 2 || ds.InChannels != 3 || ds.ImgSize != 2 {
		t.Fatalf("dataset = %+v", ds)
	}
	if ds.Samples[0].Label != 0 || ds.Samples[1].Label != 1 {
		t.Errorf("labels = %d, %d; want 0, 1", ds.Samples[0].Label, ds.Samples[1].Label)
	}

	red := ds.Samples[0].X
	if red.Shape[0] != 3 || red.Shape[1] != 2 || red.Shape[2] != 2 {
		t.Fatalf("shape = %v; want [3 2 2]", red.Shape)
	}
	// solid red stays solid red through the resize
	for i := 0; i < 4; i++ {
		if math.Abs(red.Data[i]-1) > 0.02 {
			t.Errorf("red channel pixel %d = %v; want ~1", i, red.Data[i])
		}
		if red.Data[4+i] > 0.02 || red.Data[8+i] > 0.02 {
			t.Errorf("non-red channels lit: %v, %v", red.Data[4+i], red.Data[8+i])
		}
	}
	blue := ds.Samples[1].X
	for i := 0; i < 4; i++ {
		if math.Abs(blue.Data[8+i]-1) > 0.02 {
			t.Errorf("blue channel pixel %d = %v; want ~1", i, blue.Data[8+i])
		}
	}
}

func TestLoadImageDirEmpty(t *testing.T) {
	if _, err := LoadImageDir(t.TempDir(), 4); err == nil {
		t.Errorf("empty dir: err = nil; want error")
	}
}
