package audio

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guidoenr/beatviz/internal/analyzer"
)

func TestRingKeepsMostRecentSamples(t *testing.T) {
	r := newRing(4)
	r.write([]float32{1, 2})
	assert.Equal(t, []float32{0, 0, 1, 2}, r.copyTo(nil))

	r.write([]float32{3, 4, 5})
	assert.Equal(t, []float32{2, 3, 4, 5}, r.copyTo(nil))

	r.write([]float32{6, 7, 8, 9, 10, 11})
	assert.Equal(t, []float32{8, 9, 10, 11}, r.copyTo(nil))

	r.write(nil)
	assert.Equal(t, []float32{8, 9, 10, 11}, r.copyTo(nil))
}

func TestRingCopyReusesBuffer(t *testing.T) {
	r := newRing(3)
	r.write([]float32{1, 2, 3})
	dst := make([]float32, 0, 8)
	out := r.copyTo(dst)
	require.Len(t, out, 3)
	assert.Same(t, &dst[:1][0], &out[0])
}

func TestMixDown(t *testing.T) {
	out := mixDown(nil, []float32{1, 0, 0.5, 0.5, -1, 1, 9}, 2)
	assert.Equal(t, []float32{0.5, 0.5, 0}, out)
}

func TestScoreDevice(t *testing.T) {
	cases := []struct {
		name      string
		device    string
		maxInput  int
		defaultIn bool
		hostDefIn bool
		wantScore int
	}{
		{"output only", "Speakers", 0, true, true, 0},
		{"plain mic", "USB Mic", 1, false, false, 1},
		{"default input", "Built-in", 2, true, false, 52},
		{"monitor", "Monitor of Built-in Audio", 2, false, false, 22},
		{"pulse default", "default", 32, true, true, 132},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.wantScore, scoreDevice(tc.device, tc.maxInput, tc.defaultIn, tc.hostDefIn))
		})
	}
}

func TestBestCandidate(t *testing.T) {
	assert.Equal(t, -1, bestCandidate(nil))
	cs := []candidate{
		{name: "zeta", score: 10},
		{name: "Alpha", score: 22},
		{name: "beta", score: 22},
	}
	assert.Equal(t, 1, bestCandidate(cs))
}

type staticReader struct {
	samples []float32
	reads   int
}

func (s *staticReader) Read(dst []float32) []float32 {
	s.reads++
	return append(dst[:0], s.samples...)
}

func TestSpectrumSourceFillsDestination(t *testing.T) {
	an := analyzer.New(analyzer.Config{})
	samples := make([]float32, an.FFTSize())
	freq := 10 * an.SampleRate() / float64(an.FFTSize())
	for i := range samples {
		samples[i] = float32(0.01 * math.Sin(2*math.Pi*freq*float64(i)/an.SampleRate()))
	}
	reader := &staticReader{samples: samples}
	src := NewSpectrumSource(reader, an, 10)
	require.Equal(t, 256, src.BinCount())
	assert.Equal(t, 22050.0, src.Nyquist())

	dst := make([]uint8, src.BinCount())
	src.ReadFrequencies(dst)
	src.ReadFrequencies(dst)
	assert.Equal(t, 2, reader.reads)

	peak := 0
	for i, v := range dst {
		if v > dst[peak] {
			peak = i
		}
	}
	assert.Equal(t, 10, peak)
	assert.Zero(t, dst[200])
}

func TestTrackReaderFollowsClock(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	samples := make([]float32, 100)
	for i := range samples {
		samples[i] = float32(i)
	}
	tr := NewTrackReader(samples, 10, 4, clock)

	assert.Equal(t, []float32{0, 0, 0, 0}, tr.Read(nil))

	now = now.Add(200 * time.Millisecond)
	assert.Equal(t, []float32{0, 0, 0, 1}, tr.Read(nil))

	now = now.Add(time.Second)
	assert.Equal(t, []float32{8, 9, 10, 11}, tr.Read(nil))
	assert.Equal(t, 1200*time.Millisecond, tr.Position())

	// Ten seconds of a 10 Hz, 100-sample track wraps to the start.
	now = now.Add(8800 * time.Millisecond)
	assert.Zero(t, tr.Position())

	tr.Restart()
	assert.Zero(t, tr.Position())
}

func TestTrackReaderEmpty(t *testing.T) {
	tr := NewTrackReader(nil, 0, 0, nil)
	out := tr.Read(nil)
	assert.Len(t, out, analyzer.DefaultFFTSize)
	assert.Zero(t, tr.Position())
}
