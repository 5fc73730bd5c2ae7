package beat

import "math"

// history is a bounded FIFO of strength samples, oldest first.
type history struct {
	values []float64
	size   int
}

func newHistory(size int) history {
	return history{values: make([]float64, 0, size+1), size: size}
}

func (h *history) push(v float64) {
	h.values = append(h.values, v)
	if len(h.values) > h.size {
		copy(h.values, h.values[1:])
		h.values = h.values[:len(h.values)-1]
	}
}

func (h *history) reset() { h.values = h.values[:0] }

func (h *history) snapshot() []float64 {
	out := make([]float64, len(h.values))
	copy(out, h.values)
	return out
}

// smoothed weighs sample i by a(1-a)^(n-1-i) with a = 2/(n+1), so the newest
// sample counts most. Recomputed over the whole window on every call.
func (h *history) smoothed() float64 {
	n := len(h.values)
	if n == 0 {
		return 0
	}
	alpha := 2.0 / float64(n+1)
	sum := 0.0
	for i, v := range h.values {
		sum += v * alpha * math.Pow(1-alpha, float64(n-1-i))
	}
	return math.Min(1, sum)
}

// window returns the count samples preceding the newest one, or nil when the
// history is too short.
func (h *history) window(count int) []float64 {
	n := len(h.values)
	if n < count+1 {
		return nil
	}
	return h.values[n-1-count : n-1]
}

func meanStdDev(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}
