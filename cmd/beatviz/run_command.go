package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/guidoenr/beatviz/internal/animation"
	"github.com/guidoenr/beatviz/internal/app"
	"github.com/guidoenr/beatviz/internal/beat"
	"github.com/guidoenr/beatviz/internal/beatsync"
	"github.com/guidoenr/beatviz/internal/colormap"
	"github.com/guidoenr/beatviz/internal/config"
	"github.com/guidoenr/beatviz/internal/web"
)

type runFlags struct {
	device     string
	synthetic  bool
	bpm        int
	track      string
	backend    string
	visualizer string
	palette    string
	fps        float64
	width      int
	height     int
	color      string
	noStatus   bool
	mode       string
	preset     string
	web        bool
	webBind    string
	profile    string
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the visualizer",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := applyRunFlags(cmd, cfg, flags); err != nil {
				return err
			}
			return runVisualizer(cmd.Context(), cfg)
		},
	}

	bindRunFlags(cmd, &flags)
	return cmd
}

func bindRunFlags(cmd *cobra.Command, flags *runFlags) {
	f := cmd.Flags()
	f.StringVar(&flags.device, "device", "", "PortAudio input device (substring match)")
	f.BoolVar(&flags.synthetic, "no-audio", false, "Use a synthetic kick pattern instead of capturing")
	f.IntVar(&flags.bpm, "bpm", 0, "Tempo of the synthetic pattern")
	f.StringVar(&flags.track, "track", "", "Play a WAV file back as the source")
	f.StringVar(&flags.backend, "backend", "", "Presentation backend (ansi|screen)")
	f.StringVar(&flags.visualizer, "visualizer", "", "Visualizer (bars|waveform|spectrum)")
	f.StringVar(&flags.palette, "palette", "", "Glyph palette used without colour (default|box|lines|spark)")
	f.Float64Var(&flags.fps, "fps", 0, "Target frames per second")
	f.IntVar(&flags.width, "width", 0, "Frame width in cells (0 follows the terminal)")
	f.IntVar(&flags.height, "height", 0, "Frame height in cells (0 follows the terminal)")
	f.StringVar(&flags.color, "color", "", "Colour output (auto|always|never)")
	f.BoolVar(&flags.noStatus, "no-status", false, "Hide the status bar")
	f.StringVar(&flags.mode, "mode", "", "Beat sync mode (single|frequency|synchronized)")
	f.StringVar(&flags.preset, "preset", "", "Animation preset for single mode")
	f.BoolVar(&flags.web, "web", false, "Serve session status over HTTP")
	f.StringVar(&flags.webBind, "web-bind", "", "Address for the status server")
	f.StringVar(&flags.profile, "profile", "", "Write per-frame section timings as CSV")
}

// applyRunFlags copies explicitly set flags over the file configuration.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config, flags runFlags) error {
	changed := cmd.Flags().Changed
	if changed("device") {
		cfg.Audio.Device = flags.device
	}
	if changed("no-audio") {
		cfg.Audio.Synthetic = flags.synthetic
	}
	if changed("bpm") {
		cfg.Audio.SyntheticBPM = flags.bpm
	}
	if changed("track") {
		cfg.Audio.Track = flags.track
	}
	if changed("backend") {
		cfg.Render.Backend = flags.backend
	}
	if changed("visualizer") {
		cfg.Render.Visualizer = flags.visualizer
	}
	if changed("palette") {
		cfg.Render.Palette = flags.palette
	}
	if changed("fps") {
		cfg.Render.FPS = flags.fps
	}
	if changed("width") {
		cfg.Render.Width = flags.width
	}
	if changed("height") {
		cfg.Render.Height = flags.height
	}
	if changed("color") {
		cfg.Render.Color = flags.color
	}
	if changed("no-status") {
		cfg.Render.ShowStatus = !flags.noStatus
	}
	if changed("mode") {
		cfg.Animation.Mode = flags.mode
	}
	if changed("preset") {
		cfg.Animation.Preset = flags.preset
	}
	if changed("web") {
		cfg.Web.Enabled = flags.web
	}
	if changed("web-bind") {
		cfg.Web.Bind = flags.webBind
		cfg.Web.Enabled = true
	}
	if changed("profile") {
		cfg.Profile.Path = flags.profile
	}
	if err := cfg.Finalize(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// appConfig translates the file configuration into the runtime's.
func appConfig(cfg *config.Config, color bool, log *slog.Logger) app.Config {
	src := app.SourceConfig{
		Kind:       app.SourceCapture,
		Device:     cfg.Audio.Device,
		BufferSize: cfg.Audio.BufferSize,
		Channels:   cfg.Audio.Channels,
		FFTSize:    cfg.Audio.FFTSize,
		Smoothing:  cfg.Audio.Smoothing,
		NoiseFloor: uint8(cfg.Audio.NoiseFloor),
		BPM:        float64(cfg.Audio.SyntheticBPM),
		TrackPath:  cfg.Audio.Track,
	}
	switch {
	case cfg.Audio.Synthetic:
		src.Kind = app.SourceSynth
	case cfg.Audio.Track != "":
		src.Kind = app.SourceTrack
	}

	mode, _ := beatsync.ParseMode(cfg.Animation.Mode)
	preset, _ := animation.ParsePreset(cfg.Animation.Preset)

	return app.Config{
		Source: src,
		Detector: beat.Config{
			Thresholds: &beat.Thresholds{
				Beat: cfg.Detector.BeatThreshold,
				Kick: cfg.Detector.KickThreshold,
				Bass: cfg.Detector.BassThreshold,
			},
			OnsetSensitivity: cfg.Detector.OnsetSensitivity,
			Cooldown:         cfg.Detector.Cooldown(),
			InitialBPM:       cfg.Detector.InitialBPM,
		},
		Sync: beatsync.Config{
			Mode:        mode,
			Targets:     cfg.Animation.Targets,
			Preset:      preset,
			Intensity:   cfg.Animation.Intensity,
			Duration:    cfg.Animation.Duration(),
			Stagger:     cfg.Animation.Stagger(),
			MinInterval: cfg.Animation.MinInterval(),
		},
		Backend:     cfg.Render.Backend,
		Width:       cfg.Render.Width,
		Height:      cfg.Render.Height,
		TargetFPS:   cfg.Render.FPS,
		ShowStatus:  cfg.Render.ShowStatus,
		Visualizer:  cfg.Render.Visualizer,
		Palette:     cfg.Render.Palette,
		Color:       color,
		ProfilePath: cfg.Profile.Path,
		PublishHz:   cfg.Web.StreamHz,
		Logger:      log,
	}
}

func runVisualizer(parent context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log, closeLog, err := newLogger(cfg.Logging, os.Stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	if cfg.Render.Backend == "ansi" && !term.IsTerminal(int(os.Stdout.Fd())) {
		log.Warn("stdout is not a terminal; frame size falls back to the configured dimensions")
	}

	a, err := app.New(appConfig(cfg, colorEnabled(cfg.Render.Color, os.Stdout.Fd()), log))
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	webDone := make(chan error, 1)
	if cfg.Web.Enabled {
		server := web.NewServer(a, web.Config{
			StreamHz: cfg.Web.StreamHz,
			Mapper:   colormap.WithNyquist(a.Nyquist()),
			Logger:   log,
		})
		a.SetPublisher(server)
		go func() {
			err := server.Run(runCtx, cfg.Web.Bind)
			if err != nil {
				log.Error("web server failed", slog.Any("error", err))
			}
			webDone <- err
		}()
	} else {
		webDone <- nil
	}

	runErr := a.Run(runCtx)
	cancel()
	webErr := <-webDone
	closeErr := a.Close()

	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}
	return errors.Join(runErr, webErr, closeErr)
}
