package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizeAudio(); err != nil {
		return err
	}
	c.normalizeAnimation()
	c.normalizeRender()
	c.normalizeWeb()
	if err := c.normalizeLogging(); err != nil {
		return err
	}
	var err error
	if c.Profile.Path, err = expandPath(strings.TrimSpace(c.Profile.Path)); err != nil {
		return fmt.Errorf("profile.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeAudio() error {
	c.Audio.Device = strings.TrimSpace(c.Audio.Device)
	if c.Audio.BufferSize <= 0 {
		c.Audio.BufferSize = defaultBufferSize
	}
	if c.Audio.Channels <= 0 {
		c.Audio.Channels = defaultChannels
	}
	if c.Audio.FFTSize <= 0 {
		c.Audio.FFTSize = defaultFFTSize
	}
	if c.Audio.SyntheticBPM <= 0 {
		c.Audio.SyntheticBPM = defaultSynthBPM
	}
	var err error
	if c.Audio.Track, err = expandPath(strings.TrimSpace(c.Audio.Track)); err != nil {
		return fmt.Errorf("audio.track: %w", err)
	}
	return nil
}

func (c *Config) normalizeAnimation() {
	c.Animation.Mode = strings.ToLower(strings.TrimSpace(c.Animation.Mode))
	if c.Animation.Mode == "" {
		c.Animation.Mode = defaultSyncMode
	}
	c.Animation.Preset = strings.ToLower(strings.TrimSpace(c.Animation.Preset))
	if c.Animation.Preset == "" {
		c.Animation.Preset = defaultPreset
	}
	targets := c.Animation.Targets[:0]
	seen := make(map[string]bool, len(c.Animation.Targets))
	for _, t := range c.Animation.Targets {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		targets = append(targets, t)
	}
	c.Animation.Targets = targets
	if c.Animation.MinIntervalMS < 0 {
		c.Animation.MinIntervalMS = 0
	}
}

func (c *Config) normalizeRender() {
	c.Render.Backend = strings.ToLower(strings.TrimSpace(c.Render.Backend))
	if c.Render.Backend == "" {
		c.Render.Backend = defaultBackend
	}
	c.Render.Visualizer = strings.ToLower(strings.TrimSpace(c.Render.Visualizer))
	if c.Render.Visualizer == "" {
		c.Render.Visualizer = defaultVisualizer
	}
	c.Render.Palette = strings.ToLower(strings.TrimSpace(c.Render.Palette))
	if c.Render.Palette == "" {
		c.Render.Palette = defaultPalette
	}
	c.Render.Color = strings.ToLower(strings.TrimSpace(c.Render.Color))
	if c.Render.Color == "" {
		c.Render.Color = defaultColor
	}
	if c.Render.FPS == 0 {
		c.Render.FPS = defaultFPS
	}
}

func (c *Config) normalizeWeb() {
	c.Web.Bind = strings.TrimSpace(c.Web.Bind)
	if c.Web.Bind == "" {
		c.Web.Bind = defaultWebBind
	}
	if c.Web.StreamHz <= 0 {
		c.Web.StreamHz = defaultStreamHz
	}
}

func (c *Config) normalizeLogging() error {
	if value, ok := os.LookupEnv("BEATVIZ_LOG_LEVEL"); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = value
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	var err error
	if c.Logging.File, err = expandPath(strings.TrimSpace(c.Logging.File)); err != nil {
		return fmt.Errorf("logging.file: %w", err)
	}
	return nil
}
