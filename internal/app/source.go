package app

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/guidoenr/beatviz/internal/analyzer"
	"github.com/guidoenr/beatviz/internal/audio"
	"github.com/guidoenr/beatviz/internal/beat"
	"github.com/guidoenr/beatviz/internal/colormap"
	"github.com/guidoenr/beatviz/internal/synth"
	"github.com/guidoenr/beatviz/internal/track"
)

// SourceKind selects where spectra come from.
type SourceKind string

const (
	SourceCapture SourceKind = "capture"
	SourceSynth   SourceKind = "synth"
	SourceTrack   SourceKind = "track"
)

// SourceConfig describes the spectrum source.
type SourceConfig struct {
	Kind       SourceKind
	Device     string
	BufferSize int
	Channels   int
	FFTSize    int
	Smoothing  float64
	NoiseFloor uint8
	BPM        float64
	TrackPath  string
}

// Source is an opened spectrum source with its lifecycle hooks.
type Source struct {
	beat.Source
	Nyquist float64
	Label   string
	Track   *track.Info

	restart func()
	closer  func() error
}

// Restart rewinds playback sources and clears analyser state.
func (s *Source) Restart() {
	if s.restart != nil {
		s.restart()
	}
}

// Close releases the device, if any.
func (s *Source) Close() error {
	if s.closer != nil {
		return s.closer()
	}
	return nil
}

// OpenSource opens the configured source.
func OpenSource(cfg SourceConfig, now func() time.Time, log *slog.Logger) (*Source, error) {
	if now == nil {
		now = time.Now
	}
	switch cfg.Kind {
	case SourceSynth:
		gen := synth.New(synth.Config{BPM: cfg.BPM, Noise: 0.08, Now: now})
		log.Info("audio disabled, using synthetic generator", slog.Duration("period", gen.Period()))
		return &Source{
			Source:  gen,
			Nyquist: colormap.DefaultNyquist,
			Label:   "synth " + strconv.FormatFloat(cfg.BPM, 'f', 0, 64) + " bpm",
			restart: gen.Restart,
		}, nil

	case SourceTrack:
		t, err := track.Load(cfg.TrackPath)
		if err != nil {
			return nil, err
		}
		an := analyzer.New(analyzer.Config{
			SampleRate: float64(t.SampleRate),
			FFTSize:    cfg.FFTSize,
			Smoothing:  cfg.Smoothing,
		})
		reader := audio.NewTrackReader(t.Samples, float64(t.SampleRate), an.FFTSize(), now)
		info := t.Info
		log.Info("playing track",
			slog.String("track", info.Label()),
			slog.Duration("duration", info.Duration),
			slog.Int("sample_rate", info.SampleRate))
		return &Source{
			Source:  audio.NewSpectrumSource(reader, an, cfg.NoiseFloor),
			Nyquist: an.Nyquist(),
			Label:   info.Label(),
			Track:   &info,
			restart: func() {
				reader.Restart()
				an.Reset()
			},
		}, nil

	case SourceCapture, "":
		capture, err := audio.NewCapture(audio.Config{
			DeviceName: cfg.Device,
			BufferSize: cfg.BufferSize,
			Channels:   cfg.Channels,
			Logger:     log,
		})
		if err != nil {
			return nil, fmt.Errorf("audio capture: %w", err)
		}
		an := analyzer.New(analyzer.Config{
			SampleRate: capture.SampleRate(),
			FFTSize:    cfg.FFTSize,
			Smoothing:  cfg.Smoothing,
		})
		return &Source{
			Source:  audio.NewSpectrumSource(capture, an, cfg.NoiseFloor),
			Nyquist: an.Nyquist(),
			Label:   "mic=" + capture.DeviceName(),
			restart: an.Reset,
			closer:  capture.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}
