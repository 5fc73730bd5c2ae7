package params

import (
	"math"

	"github.com/guidoenr/beatviz/internal/analyzer"
	"github.com/guidoenr/beatviz/internal/beat"
)

// Parameters are the frame-to-frame visual knobs the renderers read.
type Parameters struct {
	Time       float64 `json:"time"`
	Speed      float64 `json:"speed"`
	Amplitude  float64 `json:"amplitude"`
	Brightness float64 `json:"brightness"`
	Contrast   float64 `json:"contrast"`
	Saturation float64 `json:"saturation"`
	// HueShift rotates every colour, in degrees [0,360).
	HueShift float64 `json:"hueShift"`
	// Flash jumps to 1 on a beat and decays.
	Flash float64 `json:"flash"`
	// Trail is how much of the previous frame survives, in [0,1).
	Trail float64 `json:"trail"`

	BeatSensitivity float64 `json:"beatSensitivity"`
	BassInfluence   float64 `json:"bassInfluence"`
	TrebleInfluence float64 `json:"trebleInfluence"`
	LastBeatTime    float64 `json:"lastBeatTime"`
}

// Defaults returns calm starting values.
func Defaults() Parameters {
	return Parameters{
		Speed:           0.05,
		Amplitude:       0.4,
		Brightness:      0.6,
		Contrast:        0.8,
		Saturation:      0.9,
		Trail:           0.75,
		BeatSensitivity: 1.2,
		BassInfluence:   0.9,
		TrebleInfluence: 0.08,
		LastBeatTime:    -100,
	}
}

// UpdateTime advances the internal timer based on frame delta.
func (p *Parameters) UpdateTime(delta float64) {
	p.Time += delta * p.Speed
}

// Apply moves the parameters toward the current frame. A silent frame, no
// kick and no level, lets them decay back to their resting values.
func (p *Parameters) Apply(frame beat.Frame, lv analyzer.Levels, delta float64) {
	p.Flash *= math.Pow(0.85, delta*60)
	if lv.Silent() && frame.BeatStrength == 0 && !frame.KickDetected {
		p.applySilenceDecay(delta)
		return
	}

	energy := math.Max(0.05, frame.KickStrength*0.5+frame.BassStrength*0.3+lv.Overall*0.2)

	p.Amplitude = lerp(p.Amplitude, 1.0+frame.BassStrength*p.BassInfluence*1.2, 0.6)

	baseSpeed := 0.08 + energy*0.7
	p.Speed = lerp(p.Speed, baseSpeed*(1.0+lv.Treble*p.TrebleInfluence), 0.4)

	// Tempo drives how far the palette turns per second.
	bpm := float64(frame.BPM)
	if bpm <= 0 {
		bpm = beat.DefaultBPM
	}
	p.HueShift = math.Mod(p.HueShift+delta*bpm/2+frame.BassStrength*3, 360)

	if frame.IsBeat {
		p.LastBeatTime = p.Time
		p.Flash = 1
	} else if frame.StrongBeat {
		p.Flash = math.Max(p.Flash, clamp(frame.BeatStrength*p.BeatSensitivity*0.5, 0, 1))
	}

	p.Brightness = clamp(p.Brightness*0.6+0.3+lv.Overall*0.4+frame.KickStrength*0.4+p.Flash*0.3, 0, 1.6)
	p.Contrast = lerp(p.Contrast, 0.7+energy*0.5, 0.4)

	targetSat := clamp(0.8+frame.BassStrength*0.5+frame.BeatStrength*0.3, 0, 1.5)
	if targetSat > p.Saturation {
		p.Saturation = lerp(p.Saturation, targetSat, 0.7)
	} else {
		p.Saturation = lerp(p.Saturation, targetSat, 0.3)
	}
	p.Trail = lerp(p.Trail, clamp(0.85-energy*0.3, 0.4, 0.9), 0.2)
}

func (p *Parameters) applySilenceDecay(delta float64) {
	decay := math.Pow(0.92, delta*60)
	speedDecay := math.Pow(0.88, delta*60)

	p.Amplitude = p.Amplitude*decay + 0.4*(1-decay)
	p.Speed *= speedDecay
	p.Brightness = p.Brightness*decay + 0.6*(1-decay)
	p.Contrast = p.Contrast*decay + 0.8*(1-decay)
	p.Saturation = lerp(p.Saturation, 0.8, 0.1)
	p.Trail = lerp(p.Trail, 0.75, 0.1)
}

func lerp(current, target, factor float64) float64 {
	return current*(1-factor) + target*factor
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
