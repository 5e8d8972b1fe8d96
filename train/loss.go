package train

import (
	"math"
	"sort"

	"github.com/MingSun-Tse/smilepruning/smile"
)

// Softmax returns the class probabilities for a logits vector, shifted
// by the max for numeric stability.
func Softmax(logits *smile.Tensor) []float64 {
	max := math.Inf(-1)
	for _, v := range logits.Data {
		if v > max {
			max = v
		}
	}
	probs := make([]float64, len(logits.Data))
	var sum float64
	for i, v := range logits.Data {
		probs[i] = math.Exp(v - max)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// CrossEntropy returns the softmax cross-entropy loss for one sample
// along with the gradient with respect to the logits.
func CrossEntropy(logits *smile.Tensor, label int) (float64, *smile.Tensor) {
	probs := Softmax(logits)
	loss := -math.Log(math.Max(probs[label], 1e-30))
	grad := smile.NewTensor(logits.Shape...)
	copy(grad.Data, probs)
	grad.Data[label] -= 1
	return loss, grad
}

// InTopK reports whether label ranks among the k largest logits.
// Ties resolve toward the lower class index.
func InTopK(logits *smile.Tensor, label int, k int) bool {
	order := make([]int, len(logits.Data))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return logits.Data[order[a]] > logits.Data[order[b]]
	})
	if k > len(order) {
		k = len(order)
	}
	for _, idx := range order[:k] {
		if idx == label {
			return true
		}
	}
	return false
}
