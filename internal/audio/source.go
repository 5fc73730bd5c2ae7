package audio

import (
	"time"

	"github.com/guidoenr/beatviz/internal/analyzer"
)

// SampleReader yields the latest mono samples into a caller buffer.
type SampleReader interface {
	Read(dst []float32) []float32
}

// SpectrumSource turns a SampleReader into byte spectra for the beat
// detector. The sample buffer is reused across reads.
type SpectrumSource struct {
	reader   SampleReader
	analyzer *analyzer.Analyzer
	floor    uint8
	samples  []float32
}

// NewSpectrumSource analyses reader with an. Bins at or below floor are gated.
func NewSpectrumSource(reader SampleReader, an *analyzer.Analyzer, floor uint8) *SpectrumSource {
	return &SpectrumSource{
		reader:   reader,
		analyzer: an,
		floor:    floor,
		samples:  make([]float32, 0, an.FFTSize()),
	}
}

// BinCount returns the analyzer bin count.
func (s *SpectrumSource) BinCount() int { return s.analyzer.BinCount() }

// Nyquist is the frequency at the top of the spectrum.
func (s *SpectrumSource) Nyquist() float64 { return s.analyzer.Nyquist() }

// ReadFrequencies analyses the current samples into dst.
func (s *SpectrumSource) ReadFrequencies(dst []uint8) {
	s.samples = s.reader.Read(s.samples)
	out := s.analyzer.Analyze(s.samples, dst[:0])
	analyzer.Gate(out, s.floor)
	if len(dst) > 0 && len(out) > 0 && &out[0] != &dst[0] {
		copy(dst, out)
	}
}

// TrackReader plays decoded samples back in real time: each Read returns the
// window ending at the current playback position. Playback loops.
type TrackReader struct {
	samples []float32
	rate    float64
	window  int
	now     func() time.Time
	start   time.Time
}

// NewTrackReader plays samples at rate Hz, returning window samples per read.
func NewTrackReader(samples []float32, rate float64, window int, now func() time.Time) *TrackReader {
	if now == nil {
		now = time.Now
	}
	if window <= 0 {
		window = analyzer.DefaultFFTSize
	}
	if rate <= 0 {
		rate = analyzer.DefaultSampleRate
	}
	return &TrackReader{samples: samples, rate: rate, window: window, now: now, start: now()}
}

// Restart rewinds to the beginning.
func (t *TrackReader) Restart() { t.start = t.now() }

// Position is the playback offset into the track.
func (t *TrackReader) Position() time.Duration {
	if len(t.samples) == 0 {
		return 0
	}
	pos := t.cursor()
	return time.Duration(float64(pos) / t.rate * float64(time.Second))
}

func (t *TrackReader) cursor() int {
	elapsed := t.now().Sub(t.start).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	return int(elapsed*t.rate) % len(t.samples)
}

// Read copies the window ending at the playback position into dst. The part
// before the start of the track is silent.
func (t *TrackReader) Read(dst []float32) []float32 {
	if cap(dst) < t.window {
		dst = make([]float32, t.window)
	}
	dst = dst[:t.window]
	if len(t.samples) == 0 {
		clear(dst)
		return dst
	}
	end := t.cursor()
	begin := end - t.window
	if begin < 0 {
		clear(dst[:-begin])
		copy(dst[-begin:], t.samples[:end])
		return dst
	}
	copy(dst, t.samples[begin:end])
	return dst
}
