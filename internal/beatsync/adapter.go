// Package beatsync turns detected beats into animation triggers.
package beatsync

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/guidoenr/beatviz/internal/animation"
	"github.com/guidoenr/beatviz/internal/beat"
	"github.com/guidoenr/beatviz/internal/logger"
)

// Mode selects how a beat is turned into animations.
type Mode string

const (
	// ModeSingle restarts a one-shot of the configured preset on every target.
	ModeSingle Mode = "single"
	// ModeFrequency picks the one-shot preset from the frame's band strengths.
	ModeFrequency Mode = "frequency"
	// ModeSynchronized starts a staggered run across all targets.
	ModeSynchronized Mode = "synchronized"
)

// DefaultMinInterval is the shortest gap between two triggers.
const DefaultMinInterval = 100 * time.Millisecond

// ParseMode resolves a mode name.
func ParseMode(name string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(name))); m {
	case ModeSingle, ModeFrequency, ModeSynchronized:
		return m, nil
	case "":
		return ModeSingle, nil
	default:
		return "", fmt.Errorf("unknown beat sync mode %q", name)
	}
}

// Config controls an Adapter. Zero values fall back to the synchronized
// defaults of the animation package and a 100ms minimum interval.
type Config struct {
	Mode        Mode
	Targets     []string
	Preset      animation.Preset
	Intensity   float64
	Duration    time.Duration
	Stagger     time.Duration
	MinInterval time.Duration
	Logger      *slog.Logger
}

// Adapter forwards beat frames to a scheduler.
type Adapter struct {
	cfg       Config
	scheduler *animation.Scheduler
	log       *slog.Logger
	last      time.Time
	triggered bool
	count     int
}

// New binds an adapter to scheduler.
func New(scheduler *animation.Scheduler, cfg Config) *Adapter {
	if cfg.Mode == "" {
		cfg.Mode = ModeSingle
	}
	if !cfg.Preset.Valid() {
		cfg.Preset = animation.Pulse
	}
	if cfg.Intensity <= 0 {
		cfg.Intensity = animation.SyncIntensity
	}
	if cfg.Duration <= 0 {
		cfg.Duration = animation.SyncDuration
	}
	if cfg.Stagger < 0 {
		cfg.Stagger = 0
	} else if cfg.Stagger == 0 {
		cfg.Stagger = animation.SyncStagger
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = DefaultMinInterval
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Discard()
	}
	targets := make([]string, len(cfg.Targets))
	copy(targets, cfg.Targets)
	cfg.Targets = targets
	return &Adapter{
		cfg:       cfg,
		scheduler: scheduler,
		log:       log.With(slog.String("component", "beatsync")),
	}
}

// OnFrame triggers animations for a beat frame and reports whether it did.
// Beats closer than MinInterval to the previous trigger are dropped.
func (a *Adapter) OnFrame(frame beat.Frame, now time.Time) bool {
	if !frame.IsBeat || a.scheduler == nil || len(a.cfg.Targets) == 0 {
		return false
	}
	if a.triggered && now.Sub(a.last) < a.cfg.MinInterval {
		return false
	}
	a.triggered = true
	a.last = now
	a.count++

	switch a.cfg.Mode {
	case ModeSynchronized:
		a.scheduler.CreateSynchronizedAnimations(a.cfg.Targets, a.cfg.Preset, a.cfg.Intensity, a.cfg.Duration, a.cfg.Stagger)
	case ModeFrequency:
		preset := PresetFor(frame)
		for _, id := range a.cfg.Targets {
			a.scheduler.TriggerBeatAnimation(id, preset)
		}
	default:
		for _, id := range a.cfg.Targets {
			a.scheduler.TriggerBeatAnimation(id, a.cfg.Preset)
		}
	}
	a.log.Debug("beat trigger",
		slog.String("mode", string(a.cfg.Mode)),
		slog.Int("bpm", frame.BPM),
		slog.Float64("strength", frame.BeatStrength))
	return true
}

// PresetFor chooses the frequency-mode preset: a strong kick bounces, strong
// bass scales, anything else pulses.
func PresetFor(frame beat.Frame) animation.Preset {
	switch {
	case frame.KickStrength > 0.6:
		return animation.Bounce
	case frame.BassStrength > 0.6:
		return animation.Scale
	default:
		return animation.Pulse
	}
}

// Triggers counts how many beats were forwarded.
func (a *Adapter) Triggers() int { return a.count }

// Targets returns the animated target ids.
func (a *Adapter) Targets() []string {
	out := make([]string, len(a.cfg.Targets))
	copy(out, a.cfg.Targets)
	return out
}

// Mode reports the active mode.
func (a *Adapter) Mode() Mode { return a.cfg.Mode }

// Stop halts every target's animation and forgets the last trigger.
func (a *Adapter) Stop() {
	if a.scheduler != nil {
		for _, id := range a.cfg.Targets {
			a.scheduler.StopAnimation(id)
		}
	}
	a.triggered = false
}
