package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Audio selects and shapes the spectrum source.
type Audio struct {
	Device     string `toml:"device"`
	BufferSize int    `toml:"buffer_size"`
	Channels   int    `toml:"channels"`
	FFTSize    int    `toml:"fft_size"`
	// Smoothing is the analyser's time constant in [0,1).
	Smoothing float64 `toml:"smoothing"`
	// NoiseFloor gates spectrum bytes below it.
	NoiseFloor int `toml:"noise_floor"`
	// Synthetic replaces capture with a generated kick pattern.
	Synthetic    bool `toml:"synthetic"`
	SyntheticBPM int  `toml:"synthetic_bpm"`
	// Track plays a WAV file back as the source instead of capturing.
	Track string `toml:"track"`
}

// Detector tunes beat detection.
type Detector struct {
	BeatThreshold    float64 `toml:"beat_threshold"`
	KickThreshold    float64 `toml:"kick_threshold"`
	BassThreshold    float64 `toml:"bass_threshold"`
	OnsetSensitivity float64 `toml:"onset_sensitivity"`
	CooldownMS       int     `toml:"cooldown_ms"`
	InitialBPM       int     `toml:"initial_bpm"`
}

// Animation configures how beats become animations.
type Animation struct {
	Mode          string   `toml:"mode"`
	Targets       []string `toml:"targets"`
	Preset        string   `toml:"preset"`
	Intensity     float64  `toml:"intensity"`
	DurationMS    int      `toml:"duration_ms"`
	StaggerMS     int      `toml:"stagger_ms"`
	MinIntervalMS int      `toml:"min_interval_ms"`
}

// Render configures the visualizer and where it is presented.
type Render struct {
	Backend    string  `toml:"backend"`
	Visualizer string  `toml:"visualizer"`
	Palette    string  `toml:"palette"`
	FPS        float64 `toml:"fps"`
	// Color is auto, always or never.
	Color      string `toml:"color"`
	ShowStatus bool   `toml:"show_status"`
	Width      int    `toml:"width"`
	Height     int    `toml:"height"`
}

// Web configures the status server.
type Web struct {
	Enabled bool   `toml:"enabled"`
	Bind    string `toml:"bind"`
	// StreamHz caps websocket pushes per second.
	StreamHz float64 `toml:"stream_hz"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	// File receives log records; empty means stderr.
	File string `toml:"file"`
}

// Profile enables per-frame section timings.
type Profile struct {
	Path string `toml:"path"`
}

// Config encapsulates all configuration values for beatviz.
type Config struct {
	Audio     Audio     `toml:"audio"`
	Detector  Detector  `toml:"detector"`
	Animation Animation `toml:"animation"`
	Render    Render    `toml:"render"`
	Web       Web       `toml:"web"`
	Logging   Logging   `toml:"logging"`
	Profile   Profile   `toml:"profile"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. A missing file
// is not an error; exists reports whether one was read.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// Finalize re-applies normalization and validation after flag overrides.
func (c *Config) Finalize() error {
	if err := c.normalize(); err != nil {
		return err
	}
	return c.Validate()
}

// Marshal renders the configuration as TOML.
func (c *Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// Cooldown is the minimum gap between detected beats.
func (d Detector) Cooldown() time.Duration {
	return time.Duration(d.CooldownMS) * time.Millisecond
}

// Duration is the length of one synchronized run.
func (a Animation) Duration() time.Duration {
	return time.Duration(a.DurationMS) * time.Millisecond
}

// Stagger is the delay between consecutive targets of a synchronized run.
func (a Animation) Stagger() time.Duration {
	return time.Duration(a.StaggerMS) * time.Millisecond
}

// MinInterval is the shortest gap between two beat triggers.
func (a Animation) MinInterval() time.Duration {
	return time.Duration(a.MinIntervalMS) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
