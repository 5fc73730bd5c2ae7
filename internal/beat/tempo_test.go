package beat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func feedIntervals(tt *TempoTracker, interval time.Duration, beats int) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < beats; i++ {
		tt.Observe(t0.Add(time.Duration(i) * interval))
	}
}

func TestTempoNeedsThreeIntervals(t *testing.T) {
	tt := NewTempoTracker(8, 90)
	feedIntervals(tt, 500*time.Millisecond, 3)
	assert.Equal(t, 90, tt.BPM())
	assert.Len(t, tt.Intervals(), 2)

	tt.Observe(time.Date(2024, 1, 1, 0, 0, 1, 500_000_000, time.UTC))
	assert.Equal(t, 99, tt.BPM())
}

func TestTempoConvergesTo120(t *testing.T) {
	tt := NewTempoTracker(8, DefaultBPM)
	feedIntervals(tt, 500*time.Millisecond, 6)
	assert.InDelta(t, 120, tt.BPM(), 2)

	tt = NewTempoTracker(8, 90)
	feedIntervals(tt, 500*time.Millisecond, 16)
	assert.InDelta(t, 120, tt.BPM(), 2)
}

func TestTempoConvergesTo140(t *testing.T) {
	tt := NewTempoTracker(8, DefaultBPM)
	feedIntervals(tt, 428*time.Millisecond, 20)
	assert.InDelta(t, 140, tt.BPM(), 2)
}

func TestTempoIsClamped(t *testing.T) {
	fast := NewTempoTracker(8, DefaultBPM)
	slow := NewTempoTracker(8, DefaultBPM)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 40; i++ {
		fast.Observe(t0.Add(time.Duration(i) * 100 * time.Millisecond))
		slow.Observe(t0.Add(time.Duration(i) * 5 * time.Second))
		assert.GreaterOrEqual(t, fast.BPM(), MinBPM)
		assert.LessOrEqual(t, fast.BPM(), MaxBPM)
		assert.GreaterOrEqual(t, slow.BPM(), MinBPM)
		assert.LessOrEqual(t, slow.BPM(), MaxBPM)
	}
	assert.Equal(t, MaxBPM, fast.BPM())
	assert.Equal(t, MinBPM, slow.BPM())
}

func TestTempoIntervalFIFO(t *testing.T) {
	tt := NewTempoTracker(8, DefaultBPM)
	feedIntervals(tt, 250*time.Millisecond, 20)
	assert.Len(t, tt.Intervals(), 8)
}

func TestTempoRebaseSkipsGap(t *testing.T) {
	tt := NewTempoTracker(8, DefaultBPM)
	feedIntervals(tt, 500*time.Millisecond, 6)
	bpm := tt.BPM()
	intervals := tt.Intervals()

	tt.Rebase()
	resumed := time.Date(2024, 1, 1, 0, 1, 0, 0, time.UTC)
	assert.False(t, tt.Observe(resumed))
	assert.Equal(t, bpm, tt.BPM())
	assert.Equal(t, intervals, tt.Intervals())

	assert.True(t, tt.Observe(resumed.Add(500*time.Millisecond)))
	assert.InDelta(t, 120, tt.BPM(), 2)
	for _, ms := range tt.Intervals() {
		assert.InDelta(t, 500, ms, 1)
	}
}

func TestTempoReset(t *testing.T) {
	tt := NewTempoTracker(8, DefaultBPM)
	feedIntervals(tt, 300*time.Millisecond, 10)
	assert.NotEqual(t, DefaultBPM, tt.BPM())

	tt.Reset()
	assert.Equal(t, DefaultBPM, tt.BPM())
	assert.Empty(t, tt.Intervals())
}
