package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/guidoenr/beatviz/internal/animation"
	"github.com/guidoenr/beatviz/internal/beatsync"
	"github.com/guidoenr/beatviz/internal/render"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAudio(); err != nil {
		return err
	}
	if err := c.validateDetector(); err != nil {
		return err
	}
	if err := c.validateAnimation(); err != nil {
		return err
	}
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateAudio() error {
	if c.Audio.FFTSize < 32 || c.Audio.FFTSize > 32768 {
		return fmt.Errorf("audio.fft_size must be between 32 and 32768, got %d", c.Audio.FFTSize)
	}
	if c.Audio.Smoothing < 0 || c.Audio.Smoothing >= 1 {
		return errors.New("audio.smoothing must be in [0, 1)")
	}
	if c.Audio.NoiseFloor < 0 || c.Audio.NoiseFloor > 255 {
		return errors.New("audio.noise_floor must be between 0 and 255")
	}
	if c.Audio.Synthetic && c.Audio.Track != "" {
		return errors.New("audio.synthetic and audio.track are mutually exclusive")
	}
	return nil
}

func (c *Config) validateDetector() error {
	for name, v := range map[string]float64{
		"detector.beat_threshold": c.Detector.BeatThreshold,
		"detector.kick_threshold": c.Detector.KickThreshold,
		"detector.bass_threshold": c.Detector.BassThreshold,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be between 0 and 1", name)
		}
	}
	if c.Detector.OnsetSensitivity < 0 {
		return errors.New("detector.onset_sensitivity must not be negative")
	}
	if c.Detector.CooldownMS < 0 {
		return errors.New("detector.cooldown_ms must not be negative")
	}
	return nil
}

func (c *Config) validateAnimation() error {
	if _, err := beatsync.ParseMode(c.Animation.Mode); err != nil {
		return fmt.Errorf("animation.mode: %w", err)
	}
	if _, ok := animation.ParsePreset(c.Animation.Preset); !ok {
		return fmt.Errorf("animation.preset must be one of %s", presetList())
	}
	if len(c.Animation.Targets) == 0 {
		return errors.New("animation.targets must name at least one target")
	}
	if c.Animation.Intensity < 0 || c.Animation.Intensity > 1 {
		return errors.New("animation.intensity must be between 0 and 1")
	}
	if c.Animation.DurationMS < 0 || c.Animation.StaggerMS < 0 {
		return errors.New("animation durations must not be negative")
	}
	return nil
}

func (c *Config) validateRender() error {
	switch c.Render.Backend {
	case "ansi", "screen":
	default:
		return fmt.Errorf("render.backend must be ansi or screen, got %q", c.Render.Backend)
	}
	if _, err := render.ParseKind(c.Render.Visualizer); err != nil {
		return fmt.Errorf("render.visualizer: %w", err)
	}
	if !slices.Contains(render.PaletteNames(), c.Render.Palette) {
		return fmt.Errorf("render.palette must be one of %s", strings.Join(render.PaletteNames(), ", "))
	}
	switch c.Render.Color {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("render.color must be auto, always or never, got %q", c.Render.Color)
	}
	if c.Render.FPS <= 0 || c.Render.FPS > 240 {
		return fmt.Errorf("render.fps must be in (0, 240], got %g", c.Render.FPS)
	}
	if c.Render.Width < 0 || c.Render.Height < 0 {
		return errors.New("render.width and render.height must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not a known level", c.Logging.Level)
	}
	return nil
}

func presetList() string {
	names := make([]string, 0, len(animation.Presets()))
	for _, p := range animation.Presets() {
		names = append(names, string(p))
	}
	return strings.Join(names, ", ")
}
