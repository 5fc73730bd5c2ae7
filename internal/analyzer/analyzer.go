package analyzer

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
)

// Analyzer turns blocks of mono PCM into byte spectra: the magnitude of each
// FFT bin, smoothed over time and mapped from decibels onto 0..255.
type Analyzer struct {
	sampleRate float64
	size       int
	smoothing  float64
	minDB      float64
	maxDB      float64

	buffer   []complex128
	window   []float64
	smoothed []float64
}

// Config controls Analyzer behavior.
type Config struct {
	SampleRate  float64
	FFTSize     int
	Smoothing   float64
	MinDecibels float64
	MaxDecibels float64
}

// Defaults for a 256-bin spectrum at 44.1kHz.
const (
	DefaultSampleRate  = 44_100
	DefaultFFTSize     = 512
	DefaultSmoothing   = 0.8
	DefaultMinDecibels = -100
	DefaultMaxDecibels = -30
)

// New creates an Analyzer. FFTSize is rounded up to a power of two between
// 32 and 32768.
func New(cfg Config) *Analyzer {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.FFTSize <= 0 {
		cfg.FFTSize = DefaultFFTSize
	}
	size := nextPow2(int(clamp(float64(cfg.FFTSize), 32, 32768)))
	if cfg.Smoothing < 0 || cfg.Smoothing >= 1 || math.IsNaN(cfg.Smoothing) {
		cfg.Smoothing = DefaultSmoothing
	}
	if cfg.MinDecibels == 0 && cfg.MaxDecibels == 0 {
		cfg.MinDecibels, cfg.MaxDecibels = DefaultMinDecibels, DefaultMaxDecibels
	}
	if cfg.MaxDecibels <= cfg.MinDecibels {
		cfg.MinDecibels, cfg.MaxDecibels = DefaultMinDecibels, DefaultMaxDecibels
	}

	a := &Analyzer{
		sampleRate: cfg.SampleRate,
		size:       size,
		smoothing:  cfg.Smoothing,
		minDB:      cfg.MinDecibels,
		maxDB:      cfg.MaxDecibels,
		buffer:     make([]complex128, size),
		window:     make([]float64, size),
		smoothed:   make([]float64, size/2),
	}
	sizeF := float64(size)
	for i := range a.window {
		a.window[i] = hann(float64(i), sizeF)
	}
	return a
}

// BinCount is half the FFT size.
func (a *Analyzer) BinCount() int { return a.size / 2 }

// FFTSize returns the transform length.
func (a *Analyzer) FFTSize() int { return a.size }

// SampleRate returns the input rate in Hz.
func (a *Analyzer) SampleRate() float64 { return a.sampleRate }

// Nyquist is half the sample rate, the frequency of the top bin's upper edge.
func (a *Analyzer) Nyquist() float64 { return a.sampleRate / 2 }

// Analyze transforms the most recent FFTSize samples and writes BinCount
// bytes into dst, growing it when it is too short. Shorter inputs are
// zero-padded at the front.
func (a *Analyzer) Analyze(samples []float32, dst []uint8) []uint8 {
	bins := a.BinCount()
	if cap(dst) < bins {
		dst = make([]uint8, bins)
	}
	dst = dst[:bins]

	if len(samples) > a.size {
		samples = samples[len(samples)-a.size:]
	}
	offset := a.size - len(samples)
	for i := 0; i < a.size; i++ {
		if i < offset {
			a.buffer[i] = 0
			continue
		}
		v := float64(samples[i-offset])
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		a.buffer[i] = complex(v*a.window[i], 0)
	}

	spectrum := fft.FFT(a.buffer)

	scale := 255 / (a.maxDB - a.minDB)
	norm := 1 / float64(a.size)
	for k := 0; k < bins; k++ {
		mag := cmag(spectrum[k]) * norm
		a.smoothed[k] = a.smoothing*a.smoothed[k] + (1-a.smoothing)*mag
		if a.smoothed[k] <= 0 {
			dst[k] = 0
			continue
		}
		db := 20 * math.Log10(a.smoothed[k])
		dst[k] = uint8(clamp(math.Floor(scale*(db-a.minDB)), 0, 255))
	}
	return dst
}

// Reset forgets the smoothing state.
func (a *Analyzer) Reset() {
	for i := range a.smoothed {
		a.smoothed[i] = 0
	}
}

func hann(i, size float64) float64 {
	return 0.5 * (1.0 - math.Cos(2.0*math.Pi*i/size))
}

func cmag(c complex128) float64 {
	return math.Sqrt(real(c)*real(c) + imag(c)*imag(c))
}

func envelope(current, input, attack, release float64) float64 {
	if input > current {
		return current*attack + input*(1-attack)
	}
	return current * release
}

func dynamics(value, peak float64) float64 {
	if peak < 0.01 {
		return value
	}
	ratio := value / peak
	if ratio < 0 {
		ratio = 0
	}
	expanded := math.Pow(ratio, 0.7) * peak
	if ratio > 0.85 {
		expanded *= 1.0 + (ratio-0.85)*2.0
	}
	if expanded > 1.0 {
		return 1.0
	}
	return expanded
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func nextPow2(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	return n + 1
}

func clamp(v, minVal, maxVal float64) float64 {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}
