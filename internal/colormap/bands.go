// Package colormap maps spectral positions to band colours and aggregates
// per-band energy from byte spectra.
package colormap

import (
	"fmt"
	"image/color"
	"strconv"
)

// DefaultNyquist is the Nyquist frequency for a 44.1 kHz source.
const DefaultNyquist = 22050.0

// Band is a named frequency range [MinHz, MaxHz) with its hue and representative colour.
type Band struct {
	Name  string
	MinHz float64
	MaxHz float64
	Hue   float64
	Hex   string
}

// Contains reports whether hz lies inside the band.
func (b Band) Contains(hz float64) bool {
	return hz >= b.MinHz && hz < b.MaxHz
}

// RGB decodes the band's hex colour.
func (b Band) RGB() color.RGBA {
	c, err := parseHex(b.Hex)
	if err != nil {
		return color.RGBA{A: 0xff}
	}
	return c
}

// Ordered and contiguous over [20, 22050).
var catalog = []Band{
	{Name: "Sub-Bass", MinHz: 20, MaxHz: 60, Hue: 0, Hex: "#ff0000"},
	{Name: "Bass", MinHz: 60, MaxHz: 250, Hue: 30, Hex: "#ff7700"},
	{Name: "Low-Mids", MinHz: 250, MaxHz: 500, Hue: 60, Hex: "#ffdd00"},
	{Name: "Mids", MinHz: 500, MaxHz: 2000, Hue: 60, Hex: "#ffff00"},
	{Name: "High-Mids", MinHz: 2000, MaxHz: 4000, Hue: 120, Hex: "#00ff00"},
	{Name: "Presence", MinHz: 4000, MaxHz: 8000, Hue: 180, Hex: "#00ffff"},
	{Name: "Brilliance", MinHz: 8000, MaxHz: 16000, Hue: 210, Hex: "#0099ff"},
	{Name: "Ultra-High", MinHz: 16000, MaxHz: 22050, Hue: 150, Hex: "#00ff99"},
}

// BandNames returns the catalog names in order.
func BandNames() []string {
	names := make([]string, len(catalog))
	for i, b := range catalog {
		names[i] = b.Name
	}
	return names
}

func parseHex(hex string) (color.RGBA, error) {
	if len(hex) != 7 || hex[0] != '#' {
		return color.RGBA{}, fmt.Errorf("invalid hex colour %q", hex)
	}
	v, err := strconv.ParseUint(hex[1:], 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex colour %q: %w", hex, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
