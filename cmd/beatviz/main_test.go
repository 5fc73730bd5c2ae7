package main

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/guidoenr/beatviz/internal/app"
	"github.com/guidoenr/beatviz/internal/audio"
	"github.com/guidoenr/beatviz/internal/beat"
	"github.com/guidoenr/beatviz/internal/beatsync"
	"github.com/guidoenr/beatviz/internal/config"
	"github.com/guidoenr/beatviz/internal/logger"
	"github.com/guidoenr/beatviz/internal/track"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigInitAndShow(t *testing.T) {
	t.Setenv("BEATVIZ_LOG_LEVEL", "")
	path := filepath.Join(t.TempDir(), "nested", "beatviz.toml")

	out, err := execute(t, "config", "init", "--path", path)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, "Wrote sample configuration to "+path) {
		t.Fatalf("unexpected init output %q", out)
	}

	if _, err := execute(t, "config", "init", "--path", path); err == nil {
		t.Fatal("expected init to refuse overwriting an existing file")
	}
	if _, err := execute(t, "config", "init", "--path", path, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	out, err = execute(t, "--config", path, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.HasPrefix(out, "# loaded from "+path) {
		t.Fatalf("expected source comment, got %q", out)
	}
	for _, want := range []string{"[render]", "visualizer = 'bars'", "[detector]"} {
		if !strings.Contains(out, want) {
			t.Fatalf("config show output missing %q:\n%s", want, out)
		}
	}
}

func TestApplyRunFlagsOverridesFile(t *testing.T) {
	t.Setenv("BEATVIZ_LOG_LEVEL", "")
	var flags runFlags
	cmd := &cobra.Command{Use: "run"}
	bindRunFlags(cmd, &flags)
	if err := cmd.ParseFlags([]string{"--no-audio", "--bpm", "140", "--visualizer", "Spectrum", "--web-bind", "127.0.0.1:9999", "--no-status"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg := config.Default()
	cfg.Render.Palette = "box"
	if err := applyRunFlags(cmd, &cfg, flags); err != nil {
		t.Fatalf("apply flags: %v", err)
	}
	if !cfg.Audio.Synthetic || cfg.Audio.SyntheticBPM != 140 {
		t.Fatalf("synthetic source not applied: %+v", cfg.Audio)
	}
	if cfg.Render.Visualizer != "spectrum" {
		t.Fatalf("expected normalized visualizer, got %q", cfg.Render.Visualizer)
	}
	if cfg.Render.Palette != "box" {
		t.Fatalf("unset flag overrode palette: %q", cfg.Render.Palette)
	}
	if cfg.Render.ShowStatus {
		t.Fatal("expected status bar hidden")
	}
	if !cfg.Web.Enabled || cfg.Web.Bind != "127.0.0.1:9999" {
		t.Fatalf("web flags not applied: %+v", cfg.Web)
	}
}

func TestApplyRunFlagsValidates(t *testing.T) {
	var flags runFlags
	cmd := &cobra.Command{Use: "run"}
	bindRunFlags(cmd, &flags)
	if err := cmd.ParseFlags([]string{"--fps", "-5"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	cfg := config.Default()
	err := applyRunFlags(cmd, &cfg, flags)
	if err == nil || !strings.Contains(err.Error(), "render.fps") {
		t.Fatalf("expected fps validation error, got %v", err)
	}
}

func TestAppConfigSelectsSource(t *testing.T) {
	cfg := config.Default()
	got := appConfig(&cfg, true, logger.Discard())
	if got.Source.Kind != app.SourceCapture {
		t.Fatalf("expected capture source, got %q", got.Source.Kind)
	}
	if got.Detector.Thresholds == nil || *got.Detector.Thresholds != (beat.Thresholds{Beat: 0.5, Kick: 0.6, Bass: 0.55}) {
		t.Fatalf("unexpected thresholds %+v", got.Detector.Thresholds)
	}
	if got.Detector.Cooldown != 100*time.Millisecond {
		t.Fatalf("unexpected cooldown %s", got.Detector.Cooldown)
	}
	if got.Sync.Mode != beatsync.ModeSingle || got.Sync.Duration != 300*time.Millisecond {
		t.Fatalf("unexpected sync config %+v", got.Sync)
	}
	if !got.Color || got.TargetFPS != 60 || got.PublishHz != 30 {
		t.Fatalf("unexpected render config %+v", got)
	}

	cfg.Audio.Synthetic = true
	if got := appConfig(&cfg, false, logger.Discard()); got.Source.Kind != app.SourceSynth || got.Source.BPM != 120 {
		t.Fatalf("expected synth source at 120 bpm, got %+v", got.Source)
	}

	cfg.Audio.Synthetic = false
	cfg.Audio.Track = "/music/song.wav"
	if got := appConfig(&cfg, false, logger.Discard()); got.Source.Kind != app.SourceTrack || got.Source.TrackPath != "/music/song.wav" {
		t.Fatalf("expected track source, got %+v", got.Source)
	}
}

func TestColorEnabled(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	if !colorEnabled("always", w.Fd()) {
		t.Fatal("always should enable colour")
	}
	if colorEnabled("never", w.Fd()) {
		t.Fatal("never should disable colour")
	}
	if colorEnabled("auto", w.Fd()) {
		t.Fatal("a pipe is not a terminal")
	}
}

func TestNewLoggerWritesFile(t *testing.T) {
	t.Setenv("BEATVIZ_LOG_LEVEL", "")
	path := filepath.Join(t.TempDir(), "beatviz.log")
	log, closeLog, err := newLogger(config.Logging{Format: "json", Level: "warn", File: path}, nil)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	log.Info("dropped")
	log.Warn("kept")
	if err := closeLog(); err != nil {
		t.Fatalf("close log: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"kept"`) || strings.Contains(string(data), "dropped") {
		t.Fatalf("unexpected log contents %q", data)
	}
}

func TestRenderDevices(t *testing.T) {
	devices := []audio.Device{
		{Name: "USB Mic", HostAPI: "ALSA", MaxInput: 1, DefaultSampleHz: 48000, IsDefaultInput: true, Score: 90},
		{Name: "HDMI", HostAPI: "ALSA", MaxOutput: 8, DefaultSampleHz: 44100},
	}
	inputs := filterInputs(devices)
	if len(inputs) != 1 || inputs[0].Name != "USB Mic" {
		t.Fatalf("unexpected inputs %+v", inputs)
	}
	if len(devices) != 2 {
		t.Fatal("filterInputs modified its argument")
	}

	out := renderDevices(devices)
	for _, want := range []string{"Device", "USB Mic", "HDMI", "48000", "yes", "no"} {
		if !strings.Contains(out, want) {
			t.Fatalf("device table missing %q:\n%s", want, out)
		}
	}
}

func silentTrack(seconds int) *track.Track {
	const rate = 44100
	return &track.Track{
		Info: track.Info{
			Title:      "silence",
			SampleRate: rate,
			Channels:   1,
			Duration:   time.Duration(seconds) * time.Second,
		},
		Samples: make([]float32, seconds*rate),
	}
}

// kickTrack puts a decaying 90Hz burst on every beat of a 120 BPM bar.
func kickTrack(seconds int) *track.Track {
	t := silentTrack(seconds)
	t.Title = "kicks"
	rate := float64(t.SampleRate)
	period := int(rate / 2)
	for i := range t.Samples {
		pos := float64(i%period) / rate
		t.Samples[i] = float32(0.9 * math.Exp(-pos/0.06) * math.Sin(2*math.Pi*90*pos))
	}
	return t
}

func TestAnalyzeSilentTrack(t *testing.T) {
	tr := silentTrack(2)
	report := analyzeTrack(tr, analyzeOptions{FPS: 60, FFTSize: 512, Smoothing: 0.8, Timeline: true})

	if want := tr.FrameCount(735); report.Frames != want {
		t.Fatalf("expected %d frames, got %d", want, report.Frames)
	}
	if report.Beats != 0 || len(report.Timeline) != 0 {
		t.Fatalf("silence produced beats: %+v", report)
	}
	if report.BPM != beat.DefaultBPM {
		t.Fatalf("expected initial tempo, got %d", report.BPM)
	}
	if len(report.Distribution) != 8 {
		t.Fatalf("expected every band in the distribution, got %v", report.Distribution)
	}
	for band, share := range report.Distribution {
		if share != 0 {
			t.Fatalf("band %s has share %v in silence", band, share)
		}
	}

	var out bytes.Buffer
	printReport(&out, report, true)
	for _, want := range []string{"Track:    silence", "Beats:    0 (0 strong)", "Sub-Bass", "0.0%"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("report missing %q:\n%s", want, out.String())
		}
	}
}

func TestAnalyzeKickTrack(t *testing.T) {
	report := analyzeTrack(kickTrack(4), analyzeOptions{FPS: 60, FFTSize: 512, Smoothing: 0.8, Timeline: true})

	if report.Beats == 0 {
		t.Fatal("expected kicks to be detected")
	}
	if len(report.Timeline) != report.Beats {
		t.Fatalf("timeline has %d entries for %d beats", len(report.Timeline), report.Beats)
	}
	for i := 1; i < len(report.Timeline); i++ {
		gap := report.Timeline[i].AtMS - report.Timeline[i-1].AtMS
		if gap <= 100 {
			t.Fatalf("beats %d and %d are %dms apart, inside the cooldown", i-1, i, gap)
		}
	}
	if report.KickRatio < 0 || report.KickRatio > 1 {
		t.Fatalf("kick ratio out of range: %v", report.KickRatio)
	}
	if report.Distribution["Bass"] <= report.Distribution["Brilliance"] {
		t.Fatalf("expected bass-heavy distribution, got %v", report.Distribution)
	}
}
