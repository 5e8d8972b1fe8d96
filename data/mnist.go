package data

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/MingSun-Tse/smilepruning/smile"
)

const mnistBaseURL = "https://storage.googleapis.com/cvdf-datasets/mnist/"

var mnistFiles = []string{
	"train-images-idx3-ubyte.gz",
	"train-labels-idx1-ubyte.gz",
	"t10k-images-idx3-ubyte.gz",
	"t10k-labels-idx1-ubyte.gz",
}

// DownloadMNIST fetches whichever of the four IDX files are missing
// from dir.
func DownloadMNIST(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	for _, name := range mnistFiles {
		fname := filepath.Join(dir, name)
		raw := fname[:len(fname)-len(".gz")]
		if smile.FileExists(fname) || smile.FileExists(raw) {
			continue
		}
		log.Printf("[data] downloading %s", name)
		if err := downloadFile(mnistBaseURL+name, fname); err != nil {
			return fmt.Errorf("download %s: %w", name, err)
		}
	}
	return nil
}

func downloadFile(url string, fname string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %s", url, resp.Status)
	}
	out, err := os.Create(fname)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, resp.Body)
	return err
}

// LoadMNIST reads the train and test splits from dir, accepting both
// gzipped and raw IDX files.
func LoadMNIST(dir string) (train *Dataset, test *Dataset, err error) {
	train, err = loadIDXPair(dir, "train", "mnist-train")
	if err != nil {
		return nil, nil, err
	}
	test, err = loadIDXPair(dir, "t10k", "mnist-test")
	if err != nil {
		return nil, nil, err
	}
	return train, test, nil
}

func loadIDXPair(dir string, prefix string, name string) (*Dataset, error) {
	imgData, err := readIDXFile(filepath.Join(dir, prefix+"-images-idx3-ubyte"))
	if err != nil {
		return nil, err
	}
	images, size, err := parseIDXImages(imgData)
	if err != nil {
		return nil, fmt.Errorf("%s images: %w", prefix, err)
	}
	lblData, err := readIDXFile(filepath.Join(dir, prefix+"-labels-idx1-ubyte"))
	if err != nil {
		return nil, err
	}
	labels, err := parseIDXLabels(lblData)
	if err != nil {
		return nil, fmt.Errorf("%s labels: %w", prefix, err)
	}
	if len(images) != len(labels) {
		return nil, fmt.Errorf("%s: %d images but %d labels", prefix, len(images), len(labels))
	}
	ds := &Dataset{
		Name:       name,
		InChannels: 1,
		ImgSize:    size,
		Classes:    10,
	}
	for i, x := range images {
		ds.Samples = append(ds.Samples, Sample{X: x, Label: labels[i]})
	}
	return ds, nil
}

// readIDXFile reads fname or fname.gz, transparently decompressing
// gzip content.
func readIDXFile(fname string) ([]byte, error) {
	raw, err := ioutil.ReadFile(fname)
	if err != nil {
		gz, gzErr := ioutil.ReadFile(fname + ".gz")
		if gzErr != nil {
			return nil, err
		}
		raw = gz
	}
	if len(raw) >= 2 && raw[0] == 0x1f && raw[1] == 0x8b {
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("gunzip %s: %w", fname, err)
		}
		defer zr.Close()
		return ioutil.ReadAll(zr)
	}
	return raw, nil
}

func parseIDXImages(data []byte) ([]*smile.Tensor, int, error) {
	if len(data) < 16 {
		return nil, 0, fmt.Errorf("image file too short (%d bytes)", len(data))
	}
	if magic := binary.BigEndian.Uint32(data[0:4]); magic != 2051 {
		return nil, 0, fmt.Errorf("bad image magic %d; want 2051", magic)
	}
	n := int(binary.BigEndian.Uint32(data[4:8]))
	rows := int(binary.BigEndian.Uint32(data[8:12]))
	cols := int(binary.BigEndian.Uint32(data[12:16]))
	if rows != cols {
		return nil, 0, fmt.Errorf("images are %dx%d; want square", rows, cols)
	}
	pixels := data[16:]
	if len(pixels) < n*rows*cols {
		return nil, 0, fmt.Errorf("truncated: %d pixel bytes for %d images of %dx%d", len(pixels), n, rows, cols)
	}
	images := make([]*smile.Tensor, n)
	for i := range images {
		x := smile.NewTensor(1, rows, cols)
		for j, p := range pixels[i*rows*cols : (i+1)*rows*cols] {
			x.Data[j] = float64(p) / 255
		}
		images[i] = x
	}
	return images, rows, nil
}

func parseIDXLabels(data []byte) ([]int, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("label file too short (%d bytes)", len(data))
	}
	if magic := binary.BigEndian.Uint32(data[0:4]); magic != 2049 {
		return nil, fmt.Errorf("bad label magic %d; want 2049", magic)
	}
	n := int(binary.BigEndian.Uint32(data[4:8]))
	if len(data) < 8+n {
		return nil, fmt.Errorf("truncated: %d label bytes for %d labels", len(data)-8, n)
	}
	labels := make([]int, n)
	for i := range labels {
		labels[i] = int(data[8+i])
	}
	return labels, nil
}
