package analyzer

import "math"

// Levels summarises a spectrum into coarse bands, each in [0,1].
type Levels struct {
	Bass    float64 `json:"bass"`
	Mid     float64 `json:"mid"`
	Treble  float64 `json:"treble"`
	Overall float64 `json:"overall"`
}

// Silent reports whether every level is zero.
func (l Levels) Silent() bool {
	return l == Levels{}
}

// LevelMeter tracks per-band peaks so quiet passages still move the levels.
type LevelMeter struct {
	nyquist    float64
	bassPeak   float64
	midPeak    float64
	treblePeak float64
	energyHist []float64
	histSize   int
}

// NewLevelMeter creates a meter for spectra whose top bin ends at nyquist Hz.
func NewLevelMeter(nyquist float64) *LevelMeter {
	if nyquist <= 0 || math.IsNaN(nyquist) {
		nyquist = DefaultSampleRate / 2
	}
	return &LevelMeter{
		nyquist:    nyquist,
		energyHist: make([]float64, 0, 60),
		histSize:   60,
	}
}

// Measure returns the compressed band levels of spectrum.
func (m *LevelMeter) Measure(spectrum []uint8) Levels {
	if len(spectrum) == 0 {
		return Levels{}
	}
	bass := bandMean(spectrum, m.nyquist, 20, 250)
	mid := bandMean(spectrum, m.nyquist, 250, 2000)
	treble := bandMean(spectrum, m.nyquist, 2000, 8000)

	m.bassPeak = envelope(m.bassPeak, bass, 0.94, 0.75)
	m.midPeak = envelope(m.midPeak, mid, 0.94, 0.78)
	m.treblePeak = envelope(m.treblePeak, treble, 0.94, 0.8)

	bassOut := dynamics(bass, m.bassPeak)
	midOut := dynamics(mid, m.midPeak)
	trebleOut := dynamics(treble, m.treblePeak)
	overall := (bassOut + midOut + trebleOut) / 3.0

	m.energyHist = append(m.energyHist, overall)
	if len(m.energyHist) > m.histSize {
		copy(m.energyHist, m.energyHist[1:])
		m.energyHist = m.energyHist[:len(m.energyHist)-1]
	}
	boost := 1.0 + m.energyVariance()*0.65

	return Levels{
		Bass:    math.Min(1.0, bassOut*boost),
		Mid:     math.Min(1.0, midOut*boost),
		Treble:  math.Min(1.0, trebleOut*boost),
		Overall: math.Min(1.0, overall*boost),
	}
}

// Reset clears peaks and history.
func (m *LevelMeter) Reset() {
	m.bassPeak, m.midPeak, m.treblePeak = 0, 0, 0
	m.energyHist = m.energyHist[:0]
}

func (m *LevelMeter) energyVariance() float64 {
	if len(m.energyHist) < 10 {
		return 0
	}
	mean := average(m.energyHist)
	sumSq := 0.0
	for _, v := range m.energyHist {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Min(1.0, math.Sqrt(sumSq/float64(len(m.energyHist))))
}

// bandMean averages the bins whose start frequency lies in [minHz, maxHz), as a fraction of 255.
func bandMean(spectrum []uint8, nyquist, minHz, maxHz float64) float64 {
	n := len(spectrum)
	binWidth := nyquist / float64(n)
	lo := int(math.Ceil(minHz / binWidth))
	hi := int(math.Ceil(maxHz / binWidth))
	if hi > n {
		hi = n
	}
	if lo >= hi {
		return 0
	}
	sum := 0
	for _, v := range spectrum[lo:hi] {
		sum += int(v)
	}
	return float64(sum) / float64(hi-lo) / 255
}

// Gate zeroes bins at or below floor and stretches the rest back over
// 0..255, in place, so low-level hiss does not register as energy.
func Gate(spectrum []uint8, floor uint8) []uint8 {
	if floor == 0 {
		return spectrum
	}
	span := 255 - float64(floor)
	for i, v := range spectrum {
		if v <= floor {
			spectrum[i] = 0
			continue
		}
		spectrum[i] = uint8(clamp(math.Round((float64(v)-float64(floor))*255/span), 0, 255))
	}
	return spectrum
}

// Level is the mean of a spectrum as a fraction of full scale.
func Level(spectrum []uint8) float64 {
	if len(spectrum) == 0 {
		return 0
	}
	sum := 0
	for _, v := range spectrum {
		sum += int(v)
	}
	return float64(sum) / float64(len(spectrum)) / 255
}
