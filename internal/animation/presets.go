// Package animation schedules named, time-based animation curves that react
// to beats. Every run carries the visual property its value drives.
package animation

import (
	"math"
	"strings"
	"time"
)

// Preset names an animation curve.
type Preset string

const (
	Pulse    Preset = "pulse"
	Scale    Preset = "scale"
	Glow     Preset = "glow"
	Rotation Preset = "rotation"
	Bounce   Preset = "bounce"
	Shimmer  Preset = "shimmer"
)

// Property is the visual attribute an animation value is applied to.
type Property string

const (
	PropertyScale       Property = "scale"
	PropertyOpacity     Property = "opacity"
	PropertyRotation    Property = "rotation"
	PropertyTranslation Property = "translation"
)

var presets = map[Preset]struct {
	property Property
	duration time.Duration
}{
	Pulse:    {PropertyScale, 200 * time.Millisecond},
	Scale:    {PropertyScale, 300 * time.Millisecond},
	Glow:     {PropertyOpacity, 400 * time.Millisecond},
	Rotation: {PropertyRotation, time.Second},
	Bounce:   {PropertyTranslation, 500 * time.Millisecond},
	Shimmer:  {PropertyOpacity, 600 * time.Millisecond},
}

// Presets lists every preset in a stable order.
func Presets() []Preset {
	return []Preset{Pulse, Scale, Glow, Rotation, Bounce, Shimmer}
}

// ParsePreset resolves a case-insensitive preset name.
func ParsePreset(name string) (Preset, bool) {
	p := Preset(strings.ToLower(strings.TrimSpace(name)))
	_, ok := presets[p]
	return p, ok
}

// Valid reports whether p is a known preset.
func (p Preset) Valid() bool {
	_, ok := presets[p]
	return ok
}

// Property returns the attribute p drives; unknown presets drive nothing.
func (p Preset) Property() Property {
	return presets[p].property
}

// DefaultDuration is the cycle length used when a run asks for none.
func (p Preset) DefaultDuration() time.Duration {
	return presets[p].duration
}

// Evaluate returns the value of preset p at progress in [0,1) for intensity in [0,1].
func Evaluate(p Preset, progress, intensity float64) float64 {
	switch p {
	case Pulse:
		return 1 + intensity*math.Sin(progress*math.Pi)
	case Scale:
		return (1 - intensity) + 2*intensity*easeInOutCubic(progress)
	case Glow:
		return 0.3 + intensity*(math.Sin(progress*2*math.Pi)*0.5+0.5)
	case Rotation:
		return 360 * intensity * progress
	case Bounce:
		return 20 * intensity * easeOutBounce(progress)
	case Shimmer:
		flicker := math.Sin(progress*2*math.Pi)*0.3 + math.Sin(progress*4*math.Pi)*0.2
		return clamp01(0.5 + intensity*flicker)
	default:
		return 0
	}
}

// Rest is the value a preset's property holds when nothing animates it.
func Rest(p Preset) float64 {
	switch p.Property() {
	case PropertyScale, PropertyOpacity:
		return 1
	default:
		return 0
	}
}

func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

func easeOutBounce(t float64) float64 {
	const (
		n1 = 7.5625
		d1 = 2.75
	)
	switch {
	case t < 1/d1:
		return n1 * t * t
	case t < 2/d1:
		t -= 1.5 / d1
		return n1*t*t + 0.75
	case t < 2.5/d1:
		t -= 2.25 / d1
		return n1*t*t + 0.9375
	default:
		t -= 2.625 / d1
		return n1*t*t + 0.984375
	}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
