package train

// AverageMeter tracks a running average of a scalar series.
type AverageMeter struct {
	Val   float64
	Sum   float64
	Count int
}

func (m *AverageMeter) Reset() {
	m.Val = 0
	m.Sum = 0
	m.Count = 0
}

// Update records a value observed n times.
func (m *AverageMeter) Update(val float64, n int) {
	m.Val = val
	m.Sum += val * float64(n)
	m.Count += n
}

func (m *AverageMeter) Avg() float64 {
	if m.Count == 0 {
		return 0
	}
	return m.Sum / float64(m.Count)
}
