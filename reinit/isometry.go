package reinit

import (
	"log"
	"math/rand"

	"github.com/MingSun-Tse/smilepruning/smile"
	"github.com/MingSun-Tse/smilepruning/train"

	"gonum.org/v1/gonum/mat"
)

// Acceptable final value of mean((W Wt - I)^2) before the approximate
// isometry pass warns about non-convergence.
const approxLossTol = 1e-5

// orthonormalize writes into dst (rows x cols, flat row-major) an
// orthogonal factor of src: orthonormal rows when rows <= cols,
// orthonormal columns otherwise. Signs follow the diagonal of R so the
// result is deterministic in src.
func orthonormalize(dst []float64, src []float64, rows int, cols int) {
	tall := rows > cols
	var a *mat.Dense
	if tall {
		a = mat.NewDense(rows, cols, append([]float64{}, src...))
	} else {
		// transpose so the factorized matrix is tall
		a = mat.NewDense(cols, rows, nil)
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				a.Set(c, r, src[r*cols+c])
			}
		}
	}
	ar, ac := a.Dims()

	var qr mat.QR
	qr.Factorize(a)
	var q, rr mat.Dense
	qr.QTo(&q)
	qr.RTo(&rr)
	for j := 0; j < ac; j++ {
		if rr.At(j, j) < 0 {
			for i := 0; i < ar; i++ {
				q.Set(i, j, -q.At(i, j))
			}
		}
	}

	if tall {
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				dst[r*cols+c] = q.At(r, c)
			}
		}
	} else {
		// thin Q of the transpose, transposed back: orthonormal rows
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				dst[r*cols+c] = q.At(c, r)
			}
		}
	}
}

// reinitOrth redraws every prunable layer as a random orthogonal matrix
// over its flattened [filters x rest] view. Normalization resets to
// identity.
func reinitOrth(m *smile.Model, opts Options) error {
	rng := rand.New(rand.NewSource(opts.Seed))
	for _, l := range m.Layers {
		switch l.Kind {
		case smile.Convolution, smile.Linear:
			w := l.Weight
			gauss := make([]float64, w.Numel())
			for i := range gauss {
				gauss[i] = rng.NormFloat64()
			}
			orthonormalize(w.Data, gauss, w.Shape[0], w.GroupSize())
			l.Bias.Fill(0)
		case smile.Normalization:
			l.InitKaiming(rng)
		}
	}
	return nil
}

// reinitExact orthogonalizes the weights a layer already has, keeping
// their span: the nearest isometry to the surviving filters.
func reinitExact(m *smile.Model, opts Options) error {
	for _, l := range m.Layers {
		if !l.Prunable() {
			continue
		}
		w := l.Weight
		src := append([]float64{}, w.Data...)
		orthonormalize(w.Data, src, w.Shape[0], w.GroupSize())
	}
	return nil
}

// reinitApprox runs gradient descent on mean((W Wt - I)^2) per prunable
// layer over the flattened [filters x rest] view, for a fixed iteration
// budget. Masked-out weights are re-zeroed after every iteration so the
// optimization cannot resurrect them. If the budget runs out before the
// loss settles, the result is accepted with a warning.
func reinitApprox(m *smile.Model, opts Options) error {
	switch opts.Optim {
	case "", "persistent", "reset":
	default:
		return smile.ConfigErrorf("unsupported ai optimizer policy %q", opts.Optim)
	}
	for _, l := range m.Layers {
		if !l.Prunable() {
			continue
		}
		loss := approxLayer(l, opts)
		if loss > approxLossTol {
			log.Printf("[reinit] layer %s: approximate isometry stopped at loss %.6f after %d iterations, accepting",
				l.Name, loss, opts.NIter)
		}
	}
	return nil
}

func approxLayer(l *smile.Layer, opts Options) float64 {
	w := l.Weight
	rows, cols := w.Shape[0], w.GroupSize()
	wm := w.AsMatrix()
	grad := smile.NewTensor(w.Shape...)
	gm := mat.NewDense(rows, cols, grad.Data)
	e := mat.NewDense(rows, rows, nil)

	params := []smile.NamedTensor{{Name: l.Name + ".weight", Tensor: w}}
	grads := smile.Grads{l.Name + ".weight": grad}
	var solver train.Solver = train.NewAdam(0)

	// E = W Wt - I; loss = mean(E^2); dloss/dW = (4/n^2) E W
	evalLoss := func() float64 {
		e.Mul(wm, wm.T())
		for i := 0; i < rows; i++ {
			e.Set(i, i, e.At(i, i)-1)
		}
		var s float64
		for i := 0; i < rows; i++ {
			for j := 0; j < rows; j++ {
				v := e.At(i, j)
				s += v * v
			}
		}
		return s / float64(rows*rows)
	}

	for it := 1; it <= opts.NIter; it++ {
		loss := evalLoss()
		gm.Mul(e, wm)
		gm.Scale(4/float64(rows*rows), gm)

		if opts.Optim == "reset" {
			solver = train.NewAdam(0)
		}
		solver.Step(opts.LR, params, grads)

		if mt := opts.Mask[l.Name]; mt != nil {
			for i := range w.Data {
				w.Data[i] *= mt.Data[i]
			}
		}
		if it%10 == 0 {
			log.Printf("[reinit] [%d/%d] approximate isometry for layer %q, loss %.6f", it, opts.NIter, l.Name, loss)
		}
	}
	return evalLoss()
}
