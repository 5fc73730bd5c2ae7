package beat

import (
	"math"
	"time"
)

const (
	MinBPM     = 60
	MaxBPM     = 200
	DefaultBPM = 120
)

// TempoTracker estimates BPM from the spacing of detected beats.
type TempoTracker struct {
	intervals []float64 // milliseconds, oldest first
	capacity  int
	initial   int
	bpm       int
	last      time.Time
	seen      bool
}

// NewTempoTracker keeps up to capacity intervals and starts at initialBPM.
func NewTempoTracker(capacity, initialBPM int) *TempoTracker {
	if capacity <= 0 {
		capacity = 8
	}
	if initialBPM <= 0 {
		initialBPM = DefaultBPM
	}
	initialBPM = clampInt(initialBPM, MinBPM, MaxBPM)
	return &TempoTracker{
		intervals: make([]float64, 0, capacity+1),
		capacity:  capacity,
		initial:   initialBPM,
		bpm:       initialBPM,
	}
}

// Observe records a beat at t. The estimate only moves once three intervals
// are known: new = round(0.7*old + 0.3*round(60000/mean)), clamped to
// [MinBPM, MaxBPM]. It reports whether the estimate was recomputed.
func (tt *TempoTracker) Observe(t time.Time) bool {
	if !tt.seen {
		tt.seen = true
		tt.last = t
		return false
	}
	interval := float64(t.Sub(tt.last)) / float64(time.Millisecond)
	tt.last = t
	if interval <= 0 {
		return false
	}

	tt.intervals = append(tt.intervals, interval)
	if len(tt.intervals) > tt.capacity {
		copy(tt.intervals, tt.intervals[1:])
		tt.intervals = tt.intervals[:len(tt.intervals)-1]
	}
	if len(tt.intervals) < 3 {
		return false
	}

	mean := 0.0
	for _, v := range tt.intervals {
		mean += v
	}
	mean /= float64(len(tt.intervals))
	computed := math.Round(60000 / mean)
	blended := int(math.Round(float64(tt.bpm)*0.7 + computed*0.3))
	tt.bpm = clampInt(blended, MinBPM, MaxBPM)
	return true
}

// BPM returns the current estimate.
func (tt *TempoTracker) BPM() int { return tt.bpm }

// Intervals returns a copy of the recorded intervals in milliseconds.
func (tt *TempoTracker) Intervals() []float64 {
	out := make([]float64, len(tt.intervals))
	copy(out, tt.intervals)
	return out
}

// Rebase forgets the previous beat but keeps the recorded intervals, so the
// next beat starts a new interval instead of spanning a gap.
func (tt *TempoTracker) Rebase() {
	tt.seen = false
	tt.last = time.Time{}
}

// Reset forgets all beats and returns to the initial estimate.
func (tt *TempoTracker) Reset() {
	tt.intervals = tt.intervals[:0]
	tt.bpm = tt.initial
	tt.seen = false
	tt.last = time.Time{}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
