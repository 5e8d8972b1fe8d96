package train

import (
	"log"

	"github.com/MingSun-Tse/smilepruning/smile"
)

// Loader feeds labeled samples in batches. Next returns at most size
// samples and reports false once the pass is exhausted; Reset starts a
// new pass (shuffling is the loader's business).
type Loader interface {
	Next(size int) (xs []*smile.Tensor, labels []int, ok bool)
	Reset()
	Len() int
}

// EpochStats summarizes one finetune epoch. Accuracies are fractions
// in [0, 1].
type EpochStats struct {
	Epoch int
	Loss  float64
	Acc1  float64
	Acc5  float64
	LR    float64
}

type FinetuneOptions struct {
	Epochs    int
	BatchSize int
	// First epoch to run, normally 0. A resumed run sets it to the
	// checkpoint epoch plus one so the schedule picks up where it left.
	StartEpoch int
	LR         float64
	// Epoch milestones overriding LR, from ParseLRSchedule.
	Schedule map[int]float64
	Solver   Solver
	// When set, reapplied strictly after every solver step so pruned
	// weights stay zero through the whole run.
	Mask smile.Mask
	// Strength of the orthogonality penalty on prunable weights.
	// Zero disables it.
	OrthRegFactor float64
	// Called after each epoch's validation, e.g. to persist metrics or
	// checkpoints.
	OnEpoch func(stats EpochStats)
}

// Finetune runs the epoch loop over trainSet, validating on valSet after
// every epoch. Returns the stats of the best epoch by top-1 accuracy.
func Finetune(m *smile.Model, trainSet Loader, valSet Loader, opts FinetuneOptions) (EpochStats, error) {
	if opts.Solver == nil {
		return EpochStats{}, smile.ConfigErrorf("finetune needs a solver")
	}
	if opts.BatchSize <= 0 {
		return EpochStats{}, smile.ConfigErrorf("batch size must be positive, got %d", opts.BatchSize)
	}
	params := m.Params()
	grads := make(smile.Grads)
	best := EpochStats{Epoch: -1, Acc1: -1}
	for epoch := opts.StartEpoch; epoch < opts.Epochs; epoch++ {
		lr := LRForEpoch(opts.Schedule, epoch, opts.LR)
		var meter AverageMeter
		trainSet.Reset()
		for {
			xs, labels, ok := trainSet.Next(opts.BatchSize)
			if !ok {
				break
			}
			grads.Zero()
			for i, x := range xs {
				out, acts := m.Forward(x)
				loss, gradOut := CrossEntropy(out, labels[i])
				m.Backward(acts, gradOut, grads)
				meter.Update(loss, 1)
			}
			grads.Scale(1 / float64(len(xs)))
			if opts.OrthRegFactor > 0 {
				AddOrthRegGrads(m, grads, opts.OrthRegFactor)
			}
			opts.Solver.Step(lr, params, grads)
			if len(opts.Mask) > 0 {
				opts.Mask.Apply(m)
			}
		}
		stats := EpochStats{Epoch: epoch, Loss: meter.Avg(), LR: lr}
		if valSet != nil {
			stats.Acc1, stats.Acc5 = Validate(m, valSet)
		}
		if stats.Acc1 > best.Acc1 {
			best = stats
		}
		log.Printf("[finetune] epoch %d/%d: loss %.4f, acc1 %.4f, acc5 %.4f, lr %g (best acc1 %.4f @ epoch %d)",
			epoch+1, opts.Epochs, stats.Loss, stats.Acc1, stats.Acc5, lr, best.Acc1, best.Epoch)
		if opts.OnEpoch != nil {
			opts.OnEpoch(stats)
		}
	}
	return best, nil
}

// Validate computes top-1 and top-5 accuracy over one pass of the
// loader, as fractions.
func Validate(m *smile.Model, loader Loader) (acc1 float64, acc5 float64) {
	loader.Reset()
	var n, hit1, hit5 int
	for {
		xs, labels, ok := loader.Next(64)
		if !ok {
			break
		}
		for i, x := range xs {
			out, _ := m.Forward(x)
			if InTopK(out, labels[i], 1) {
				hit1++
			}
			if InTopK(out, labels[i], 5) {
				hit5++
			}
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	return float64(hit1) / float64(n), float64(hit5) / float64(n)
}
