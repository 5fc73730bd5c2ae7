package colormap

import (
	"math"
	"strconv"
	"strings"
)

// Mapper converts frequencies and byte spectra into band colours and energies.
// The zero value is not usable; construct with New.
type Mapper struct {
	Nyquist float64
}

// ColorStop positions a band colour along a gradient in [0,1).
type ColorStop struct {
	Position float64 `json:"position"`
	Color    string  `json:"color"`
	Band     string  `json:"band"`
}

// BinColor is the colour assigned to one snapshot bin.
type BinColor struct {
	Color     HSL    `json:"color"`
	Magnitude uint8  `json:"magnitude"`
	Band      string `json:"band"`
}

// New returns a mapper for a 44.1 kHz source.
func New() Mapper {
	return Mapper{Nyquist: DefaultNyquist}
}

// WithNyquist returns a mapper for sources with a different sample rate.
// Non-positive values fall back to DefaultNyquist.
func WithNyquist(nyquist float64) Mapper {
	if nyquist <= 0 || math.IsNaN(nyquist) || math.IsInf(nyquist, 0) {
		nyquist = DefaultNyquist
	}
	return Mapper{Nyquist: nyquist}
}

func (m Mapper) nyquist() float64 {
	if m.Nyquist <= 0 {
		return DefaultNyquist
	}
	return m.Nyquist
}

// Bands returns a copy of the band catalog.
func (m Mapper) Bands() []Band {
	out := make([]Band, len(catalog))
	copy(out, catalog)
	return out
}

// BandFor returns the band containing hz. Frequencies below the catalog
// clamp to the first band; anything else unmatched falls back to the last.
func (m Mapper) BandFor(hz float64) Band {
	if hz < catalog[0].MinHz {
		return catalog[0]
	}
	for _, b := range catalog {
		if b.Contains(hz) {
			return b
		}
	}
	return catalog[len(catalog)-1]
}

// ColorFor returns the band hue at the given saturation and lightness.
func (m Mapper) ColorFor(hz, saturation, lightness float64) HSL {
	return HSL{H: m.BandFor(hz).Hue, S: saturation, L: lightness}
}

// DefaultColor is ColorFor with saturation 100 and lightness 50.
func (m Mapper) DefaultColor(hz float64) HSL {
	return m.ColorFor(hz, 100, 50)
}

// ColorWithMagnitude scales lightness from 30 to 80 by magnitude/maxMagnitude.
// A non-positive maxMagnitude is treated as 255.
func (m Mapper) ColorWithMagnitude(hz, magnitude, maxMagnitude, saturation float64) HSL {
	if maxMagnitude <= 0 || math.IsNaN(maxMagnitude) {
		maxMagnitude = 255
	}
	norm := magnitude / maxMagnitude
	if math.IsNaN(norm) {
		norm = 0
	}
	norm = clamp01(norm)
	return HSL{H: m.BandFor(hz).Hue, S: saturation, L: 30 + norm*50}
}

// BinFrequency maps bin i of an n-bin snapshot to Hz.
func (m Mapper) BinFrequency(i, n int) float64 {
	if n <= 0 {
		return 0
	}
	return float64(i) / float64(n) * m.nyquist()
}

// BinColor returns the magnitude-scaled colour for bin i of snapshot. An i
// outside the snapshot is coloured as a silent bin.
func (m Mapper) BinColor(snapshot []uint8, i int) HSL {
	var magnitude float64
	if i >= 0 && i < len(snapshot) {
		magnitude = float64(snapshot[i])
	}
	return m.ColorWithMagnitude(m.BinFrequency(i, len(snapshot)), magnitude, 255, 100)
}

// BandEnergy is the mean magnitude (0-255) of the bins whose frequency lies in
// the named band. Unknown names and bands without bins yield 0.
func (m Mapper) BandEnergy(snapshot []uint8, name string) float64 {
	for _, b := range catalog {
		if b.Name == name {
			return m.bandEnergy(snapshot, b)
		}
	}
	return 0
}

func (m Mapper) bandEnergy(snapshot []uint8, b Band) float64 {
	n := len(snapshot)
	sum, count := 0.0, 0
	for i, v := range snapshot {
		if b.Contains(m.BinFrequency(i, n)) {
			sum += float64(v)
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// BandEnergies returns BandEnergy for every catalog band.
func (m Mapper) BandEnergies(snapshot []uint8) map[string]float64 {
	out := make(map[string]float64, len(catalog))
	for _, b := range catalog {
		out[b.Name] = m.bandEnergy(snapshot, b)
	}
	return out
}

// DominantBand returns the band of the loudest bin, first occurrence winning ties.
func (m Mapper) DominantBand(snapshot []uint8) Band {
	maxIdx := 0
	var maxVal uint8
	for i, v := range snapshot {
		if v > maxVal {
			maxVal = v
			maxIdx = i
		}
	}
	return m.BandFor(m.BinFrequency(maxIdx, len(snapshot)))
}

// Distribution returns each band's share of the total band energy in percent.
// Every share is 0 when the total is 0.
func (m Mapper) Distribution(snapshot []uint8) map[string]float64 {
	energies := m.BandEnergies(snapshot)
	total := 0.0
	for _, e := range energies {
		total += e
	}
	out := make(map[string]float64, len(energies))
	for name, e := range energies {
		if total > 0 {
			out[name] = e / total * 100
		} else {
			out[name] = 0
		}
	}
	return out
}

// ColorStops places every band colour at index/len along a gradient.
func (m Mapper) ColorStops() []ColorStop {
	stops := make([]ColorStop, len(catalog))
	for i, b := range catalog {
		stops[i] = ColorStop{
			Position: float64(i) / float64(len(catalog)),
			Color:    b.Hex,
			Band:     b.Name,
		}
	}
	return stops
}

// GradientCSS renders the colour stops as a CSS gradient stop list.
func (m Mapper) GradientCSS() string {
	stops := m.ColorStops()
	parts := make([]string, len(stops))
	for i, s := range stops {
		parts[i] = s.Color + " " + strconv.FormatFloat(s.Position*100, 'f', -1, 64) + "%"
	}
	return strings.Join(parts, ", ")
}

// MapSnapshot colours every bin of snapshot.
func (m Mapper) MapSnapshot(snapshot []uint8) []BinColor {
	out := make([]BinColor, len(snapshot))
	for i, v := range snapshot {
		hz := m.BinFrequency(i, len(snapshot))
		out[i] = BinColor{
			Color:     m.ColorWithMagnitude(hz, float64(v), 255, 100),
			Magnitude: v,
			Band:      m.BandFor(hz).Name,
		}
	}
	return out
}
