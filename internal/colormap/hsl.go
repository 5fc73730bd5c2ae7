package colormap

import (
	"image/color"
	"strconv"
	"strings"
)

// HSL is a colour in hue (degrees), saturation and lightness (percent).
// It satisfies color.Color so renderers can paint with it directly, and
// String yields the CSS form consumed by the web client.
type HSL struct {
	H float64
	S float64
	L float64
}

// RGBA implements color.Color.
func (c HSL) RGBA() (r, g, b, a uint32) {
	return c.ToRGBA().RGBA()
}

// ToRGBA converts to 8-bit RGB with full opacity.
func (c HSL) ToRGBA() color.RGBA {
	rf, gf, bf := hslToRGB(c.H/360, clamp01(c.S/100), clamp01(c.L/100))
	return color.RGBA{
		R: uint8(rf*255 + 0.5),
		G: uint8(gf*255 + 0.5),
		B: uint8(bf*255 + 0.5),
		A: 0xff,
	}
}

func (c HSL) String() string {
	var b strings.Builder
	b.Grow(24)
	b.WriteString("hsl(")
	b.WriteString(strconv.FormatFloat(c.H, 'f', -1, 64))
	b.WriteString(", ")
	b.WriteString(strconv.FormatFloat(c.S, 'f', -1, 64))
	b.WriteString("%, ")
	b.WriteString(strconv.FormatFloat(c.L, 'f', -1, 64))
	b.WriteString("%)")
	return b.String()
}

// MarshalText encodes the CSS form so JSON payloads carry "hsl(...)" strings.
func (c HSL) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// h, s, l in 0-1.
func hslToRGB(h, s, l float64) (float64, float64, float64) {
	h -= float64(int(h))
	if h < 0 {
		h++
	}
	if s == 0 {
		return l, l, l
	}
	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q
	return hueToRGB(p, q, h+1.0/3.0), hueToRGB(p, q, h), hueToRGB(p, q, h-1.0/3.0)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 0.5:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	default:
		return p
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
