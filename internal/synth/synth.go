// Package synth generates frequency snapshots with a steady kick pattern, for
// running without an audio device and for tests.
package synth

import (
	"math"
	"math/rand"
	"time"

	"github.com/guidoenr/beatviz/internal/beat"
	"github.com/guidoenr/beatviz/internal/colormap"
)

// Peak kick and bass bin levels as fractions of 255.
const (
	kickLevel = 230.0 / 255
	bassLevel = 180.0 / 255
)

// Config controls the generated pattern.
type Config struct {
	BPM     float64
	Bins    int
	Nyquist float64
	// Noise is the peak random level added above the bass range, in [0,1].
	Noise float64
	// Decay is the kick envelope time constant.
	Decay time.Duration
	Seed  int64
	Now   func() time.Time
}

// Source is a beat.Source emitting a kick and bass hit on every beat with
// drifting mids and highs.
type Source struct {
	cfg    Config
	rng    *rand.Rand
	period time.Duration
	start  time.Time
	last   time.Time

	phaseMid  float64
	phaseHigh float64

	kickLo, kickHi int
	bassLo, bassHi int
}

// New creates a generator. Zero values give 120 BPM over 256 bins.
func New(cfg Config) *Source {
	if cfg.BPM <= 0 || math.IsNaN(cfg.BPM) {
		cfg.BPM = float64(beat.DefaultBPM)
	}
	if cfg.Bins <= 0 {
		cfg.Bins = 256
	}
	if cfg.Nyquist <= 0 {
		cfg.Nyquist = colormap.DefaultNyquist
	}
	if cfg.Noise < 0 {
		cfg.Noise = 0
	} else if cfg.Noise > 1 {
		cfg.Noise = 1
	}
	if cfg.Decay <= 0 {
		cfg.Decay = 60 * time.Millisecond
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &Source{
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		period: time.Duration(60 / cfg.BPM * float64(time.Second)),
	}
	s.kickLo, s.kickHi = beat.BinRange(beat.Range{LoHz: 60, HiHz: 200}, cfg.Nyquist, cfg.Bins)
	s.bassLo, s.bassHi = beat.BinRange(beat.Range{LoHz: 200, HiHz: 500}, cfg.Nyquist, cfg.Bins)
	s.Restart()
	return s
}

// Restart puts the next read on a beat.
func (s *Source) Restart() {
	s.start = s.cfg.Now()
	s.last = s.start
	s.phaseMid, s.phaseHigh = 0, 0
}

// BinCount returns the configured bin count.
func (s *Source) BinCount() int { return s.cfg.Bins }

// Period is the time between generated beats.
func (s *Source) Period() time.Duration { return s.period }

// ReadFrequencies fills dst with the snapshot for the current clock time.
func (s *Source) ReadFrequencies(dst []uint8) {
	now := s.cfg.Now()
	delta := now.Sub(s.last).Seconds()
	s.last = now
	s.phaseMid += delta * 1.2
	s.phaseHigh += delta * 2.1

	phase := now.Sub(s.start) % s.period
	if phase < 0 {
		phase += s.period
	}
	env := math.Exp(-float64(phase) / float64(s.cfg.Decay))

	mid := 0.25 + 0.15*math.Sin(s.phaseMid+0.5)
	high := 0.15 + 0.1*math.Sin(s.phaseHigh+1.0)
	n := len(dst)
	if n > s.cfg.Bins {
		n = s.cfg.Bins
	}
	for i := 0; i < n; i++ {
		var v float64
		switch {
		case i >= s.kickLo && i < s.kickHi:
			v = kickLevel * env
		case i >= s.bassLo && i < s.bassHi:
			v = bassLevel * env
		default:
			// Upper bins fall off towards Nyquist.
			tilt := 1 - float64(i)/float64(s.cfg.Bins)
			v = (mid*tilt + high*(1-tilt)) * tilt
			v += s.rng.Float64() * s.cfg.Noise
		}
		dst[i] = uint8(math.Round(clamp01(v) * 255))
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
