package render

import (
	"fmt"
	"image/color"
	"math"
	"strings"

	"github.com/guidoenr/beatviz/internal/animation"
	"github.com/guidoenr/beatviz/internal/beat"
	"github.com/guidoenr/beatviz/internal/colormap"
	"github.com/guidoenr/beatviz/internal/params"
)

// Kind names a visualizer.
type Kind string

const (
	KindBars     Kind = "bars"
	KindWaveform Kind = "waveform"
	KindSpectrum Kind = "spectrum"
)

// Input is everything one frame is drawn from. Spectrum is only valid for
// the current tick and must not be retained.
type Input struct {
	Spectrum  []uint8
	Beat      beat.Frame
	Visual    params.Parameters
	Transform animation.Transform
	Mapper    colormap.Mapper
}

// DrawFunc paints one frame of a visualizer.
type DrawFunc func(c *Canvas, in Input)

type visualizer struct {
	draw DrawFunc
	// fade is how much of the previous frame is darkened before drawing.
	fade float64
}

var visualizers = map[Kind]visualizer{
	KindBars:     {draw: DrawBars, fade: 0.3},
	KindWaveform: {draw: DrawWaveform, fade: 0.2},
	KindSpectrum: {draw: DrawSpectrum, fade: 0.3},
}

// Kinds lists the visualizers in cycling order.
func Kinds() []Kind {
	return []Kind{KindBars, KindWaveform, KindSpectrum}
}

// ParseKind resolves a visualizer name.
func ParseKind(name string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(name)))
	if k == "" {
		return KindBars, nil
	}
	if _, ok := visualizers[k]; !ok {
		return "", fmt.Errorf("unknown visualizer %q", name)
	}
	return k, nil
}

// Next returns the visualizer after k, wrapping around.
func (k Kind) Next() Kind {
	kinds := Kinds()
	for i, kind := range kinds {
		if kind == k {
			return kinds[(i+1)%len(kinds)]
		}
	}
	return kinds[0]
}

// Draw fades the canvas by the visualizer's trail and paints the frame.
func Draw(kind Kind, c *Canvas, in Input) {
	v, ok := visualizers[kind]
	if !ok {
		v = visualizers[KindBars]
	}
	if in.Transform == (animation.Transform{}) {
		in.Transform = animation.Identity()
	}
	fade := v.fade
	if in.Visual.Trail > 0 {
		fade = clampFloat(1-in.Visual.Trail*(1-v.fade), v.fade*0.5, 1)
	}
	c.Fade(fade)
	if c.Width() == 0 || c.Height() == 0 {
		return
	}
	v.draw(c, in)
}

// DrawBars paints one bar per column, resampling the spectrum to the canvas
// width. Bar height follows magnitude and the scale transform.
func DrawBars(c *Canvas, in Input) {
	n := len(in.Spectrum)
	if n == 0 {
		return
	}
	w, h := c.Width(), c.Height()
	scale := clampFloat(in.Transform.Scale, 0.25, 2)
	gain := clampFloat(0.6+in.Visual.Amplitude*0.4, 0.5, 1.5)
	for x := 0; x < w; x++ {
		lo := x * n / w
		hi := max((x+1)*n/w, lo+1)
		peak := uint8(0)
		for _, v := range in.Spectrum[lo:min(hi, n)] {
			peak = max(peak, v)
		}
		if peak == 0 {
			continue
		}
		hz := in.Mapper.BinFrequency(lo, n)
		col := shade(in.Mapper.ColorWithMagnitude(hz, float64(peak), 255, 100), in)
		height := int(math.Round(float64(peak) / 255 * float64(h) * scale * gain))
		c.FillRect(x, h-min(height, h), x+1, h, col)
	}
	if in.Beat.IsBeat {
		c.FillRect(0, 0, w, 1, shade(colormap.HSL{H: 0, S: 0, L: 90}, in))
	}
}

// DrawWaveform paints the spectrum as a polyline, y = v/128 * h/2, in the
// colour of the dominant band. Beat strength thickens the line and the
// translation transform lifts it.
func DrawWaveform(c *Canvas, in Input) {
	n := len(in.Spectrum)
	if n == 0 {
		return
	}
	w, h := float64(c.Width()), float64(c.Height())
	col := shade(in.Mapper.DefaultColor(in.Mapper.DominantBand(in.Spectrum).MinHz), in)
	thickness := 1 + int(in.Beat.BeatStrength*3)
	lift := in.Transform.TranslateY / 100 * h

	slice := w / float64(n)
	px, py := 0.0, float64(in.Spectrum[0])/128*h/2-lift
	for i := 1; i < n; i++ {
		x := float64(i) * slice
		y := float64(in.Spectrum[i])/128*h/2 - lift
		c.DrawThickLine(px, py, x, y, thickness, col)
		px, py = x, y
	}
	c.DrawThickLine(px, py, w-1, h/2-lift, thickness, col)
}

// DrawSpectrum paints radial bars around a ring whose radius pulses with
// the kick and which turns with the rotation transform.
func DrawSpectrum(c *Canvas, in Input) {
	n := len(in.Spectrum)
	if n == 0 {
		return
	}
	w, h := float64(c.Width()), float64(c.Height())
	cx, cy := w/2, h/2
	base := math.Min(w, h) / 3
	radius := base * (1 + 0.25*in.Beat.KickStrength) * clampFloat(in.Transform.Scale, 0.25, 2)
	turn := in.Transform.Rotation * math.Pi / 180

	for i, v := range in.Spectrum {
		if v == 0 {
			continue
		}
		angle := float64(i)/float64(n)*2*math.Pi + turn
		length := float64(v) / 255 * base
		cos, sin := math.Cos(angle), math.Sin(angle)
		col := shade(in.Mapper.ColorWithMagnitude(in.Mapper.BinFrequency(i, n), float64(v), 255, 100), in)
		c.DrawThickLine(cx+cos*radius, cy+sin*radius, cx+cos*(radius+length), cy+sin*(radius+length), 1, col)
	}
	ring := shade(in.Mapper.DefaultColor(in.Mapper.DominantBand(in.Spectrum).MinHz), in)
	c.DrawCircle(cx, cy, radius, ring)
}

// shade applies the frame's hue shift, brightness and opacity to a band
// colour, then blends toward white on a beat flash.
func shade(hsl colormap.HSL, in Input) color.RGBA {
	hsl.H = math.Mod(hsl.H+in.Visual.HueShift, 360)
	if hsl.H < 0 {
		hsl.H += 360
	}
	if in.Visual.Saturation > 0 {
		hsl.S = clampFloat(hsl.S*in.Visual.Saturation, 0, 100)
	}
	if in.Visual.Brightness > 0 {
		hsl.L = clampFloat(hsl.L*(0.6+in.Visual.Brightness*0.4), 0, 100)
	}
	rgba := hsl.ToRGBA()

	opacity := clamp01(in.Transform.Opacity)
	flash := clamp01(in.Visual.Flash) * 0.35
	mix := func(v uint8) uint8 {
		f := float64(v)*opacity*(1-flash) + 255*flash
		return uint8(clampFloat(math.Round(f), 0, 255))
	}
	return color.RGBA{R: mix(rgba.R), G: mix(rgba.G), B: mix(rgba.B), A: 255}
}
