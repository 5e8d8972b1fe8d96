package train

import (
	"gonum.org/v1/gonum/mat"

	"github.com/MingSun-Tse/smilepruning/smile"
)

// AddOrthRegGrads adds the gradient of factor*mean((W*Wt - I)^2) for
// every prunable layer's weight, nudging rows toward orthonormality
// during finetuning. The gradient is (4*factor/n^2)*(W*Wt - I)*W with
// n the row count.
func AddOrthRegGrads(m *smile.Model, grads smile.Grads, factor float64) {
	for _, l := range m.Prunables() {
		w := l.Weight
		rows := w.Shape[0]
		cols := w.Numel() / rows
		wm := mat.NewDense(rows, cols, w.Data)

		var e mat.Dense
		e.Mul(wm, wm.T())
		for i := 0; i < rows; i++ {
			e.Set(i, i, e.At(i, i)-1)
		}
		var g mat.Dense
		g.Mul(&e, wm)
		g.Scale(4*factor/float64(rows*rows), &g)

		name := l.Name + ".weight"
		gt, ok := grads[name]
		if !ok {
			gt = smile.NewTensor(w.Shape...)
			grads[name] = gt
		}
		gd := g.RawMatrix()
		for i := range gt.Data {
			gt.Data[i] += gd.Data[i]
		}
	}
}
