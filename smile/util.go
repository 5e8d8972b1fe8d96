package smile

import (
	crypto_rand "crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"os"
	"strconv"

	"github.com/rubenfonseca/fastimage"
)

func checkErr(err error) {
	if err != nil {
		panic(err)
	}
}

func JsonMarshal(x interface{}) []byte {
	bytes, err := json.Marshal(x)
	if err != nil {
		panic(err)
	}
	return bytes
}

func JsonUnmarshal(bytes []byte, x interface{}) {
	err := json.Unmarshal(bytes, x)
	if err != nil {
		panic(err)
	}
}

func JsonResponse(w http.ResponseWriter, x interface{}) {
	bytes := JsonMarshal(x)
	w.Header().Set("Content-Type", "application/json")
	w.Write(bytes)
}

func ParseInt(str string) int {
	x, err := strconv.Atoi(str)
	checkErr(err)
	return x
}

// Seed math/rand from crypto/rand.
func SeedRand() {
	var b [8]byte
	_, err := crypto_rand.Read(b[:])
	if err != nil {
		panic(err)
	}
	rand.Seed(int64(binary.BigEndian.Uint64(b[:])))
}

// CeilRatio returns ceil(r*n), the smallest group count that does not
// undershoot a keep ratio. The small slack keeps float noise in r*n from
// bumping an exact integer product up by one.
func CeilRatio(r float64, n int) int {
	return int(math.Ceil(r*float64(n) - 1e-9))
}

func Clip(x int, lo int, hi int) int {
	if x < lo {
		return lo
	} else if x > hi {
		return hi
	}
	return x
}

// GetImageDimsFromFile probes width/height without decoding the pixels.
func GetImageDimsFromFile(fname string) ([2]int, error) {
	var dims [2]int
	file, err := os.Open(fname)
	if err != nil {
		return dims, err
	}
	defer file.Close()
	_, size, err := fastimage.DetectImageTypeFromReader(file)
	if err != nil {
		return dims, err
	} else if size == nil {
		return dims, fmt.Errorf("unknown image format")
	}
	dims = [2]int{int(size.Width), int(size.Height)}
	return dims, nil
}

func FileExists(fname string) bool {
	_, err := os.Stat(fname)
	return err == nil
}
