package train

import (
	"log"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/MingSun-Tse/smilepruning/smile"
)

// JSVStats summarizes the singular values of per-sample Jacobians of
// the logits with respect to the network input. Near-one singular
// values indicate the pruned network still preserves signal norms.
type JSVStats struct {
	Mean     float64 `json:"mean"`
	Std      float64 `json:"std"`
	Max      float64 `json:"max"`
	Min      float64 `json:"min"`
	CondMean float64 `json:"cond_mean"`
	Samples  int     `json:"samples"`
}

// Jacobian computes d logits / d input for one sample as a
// classes x inputDim matrix, one backward pass per class.
func Jacobian(m *smile.Model, x *smile.Tensor) *mat.Dense {
	out, acts := m.Forward(x)
	classes := out.Numel()
	jac := mat.NewDense(classes, x.Numel(), nil)
	for j := 0; j < classes; j++ {
		gradOut := smile.NewTensor(out.Shape...)
		gradOut.Data[j] = 1
		gin := m.Backward(acts, gradOut, nil)
		jac.SetRow(j, gin.Data)
	}
	return jac
}

// JSV gathers Jacobian singular value statistics over at most n samples
// from the loader and logs a one-line summary.
func JSV(m *smile.Model, loader Loader, n int) JSVStats {
	loader.Reset()
	var all []float64
	var condSum float64
	samples, condN := 0, 0
	for samples < n {
		xs, _, ok := loader.Next(n - samples)
		if !ok {
			break
		}
		for _, x := range xs {
			var svd mat.SVD
			if !svd.Factorize(Jacobian(m, x), mat.SVDNone) {
				log.Printf("[jsv] svd did not converge for a sample, skipping")
				continue
			}
			sv := svd.Values(nil)
			all = append(all, sv...)
			if min := sv[len(sv)-1]; min > 1e-12 {
				condSum += sv[0] / min
				condN++
			}
			samples++
			if samples >= n {
				break
			}
		}
	}
	stats := JSVStats{Samples: samples}
	if len(all) == 0 {
		return stats
	}
	stats.Max, stats.Min = math.Inf(-1), math.Inf(1)
	for _, v := range all {
		stats.Mean += v
		if v > stats.Max {
			stats.Max = v
		}
		if v < stats.Min {
			stats.Min = v
		}
	}
	stats.Mean /= float64(len(all))
	for _, v := range all {
		stats.Std += (v - stats.Mean) * (v - stats.Mean)
	}
	stats.Std = math.Sqrt(stats.Std / float64(len(all)))
	// singular minima at numerical zero contribute no condition number
	if condN > 0 {
		stats.CondMean = condSum / float64(condN)
	}
	log.Printf("[jsv] mean %.4f, std %.4f, max %.4f, min %.4f, condition number mean %.4f (%d samples)",
		stats.Mean, stats.Std, stats.Max, stats.Min, stats.CondMean, samples)
	return stats
}
