package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/guidoenr/beatviz/internal/analyzer"
	"github.com/guidoenr/beatviz/internal/beat"
	"github.com/guidoenr/beatviz/internal/colormap"
	"github.com/guidoenr/beatviz/internal/config"
	"github.com/guidoenr/beatviz/internal/track"
)

type analyzeOptions struct {
	FPS        float64
	FFTSize    int
	Smoothing  float64
	NoiseFloor uint8
	Detector   beat.Config
	Timeline   bool
}

type beatEvent struct {
	AtMS     int64   `json:"atMs"`
	Strength float64 `json:"strength"`
	Kick     bool    `json:"kick"`
	Bass     bool    `json:"bass"`
	Strong   bool    `json:"strong"`
	BPM      int     `json:"bpm"`
}

type analysisReport struct {
	Track        track.Info         `json:"track"`
	Frames       int                `json:"frames"`
	Beats        int                `json:"beats"`
	StrongBeats  int                `json:"strongBeats"`
	KickBeats    int                `json:"kickBeats"`
	BassBeats    int                `json:"bassBeats"`
	BPM          int                `json:"bpm"`
	KickRatio    float64            `json:"kickRatio"`
	BassRatio    float64            `json:"bassRatio"`
	Distribution map[string]float64 `json:"distribution"`
	Timeline     []beatEvent        `json:"timeline,omitempty"`
}

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var timeline bool
	var fps float64

	cmd := &cobra.Command{
		Use:   "analyze <file.wav>",
		Short: "Run beat detection over a WAV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if fps <= 0 {
				return fmt.Errorf("fps must be positive (got %g)", fps)
			}
			t, err := track.Load(args[0])
			if err != nil {
				return err
			}
			report := analyzeTrack(t, analyzeOptionsFrom(cfg, fps, timeline || asJSON))
			if asJSON {
				return writeJSON(cmd, report)
			}
			printReport(cmd.OutOrStdout(), report, timeline)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	cmd.Flags().BoolVar(&timeline, "timeline", false, "List every detected beat")
	cmd.Flags().Float64Var(&fps, "fps", 60, "Analysis rate in frames per second")
	return cmd
}

func analyzeOptionsFrom(cfg *config.Config, fps float64, timeline bool) analyzeOptions {
	return analyzeOptions{
		FPS:        fps,
		FFTSize:    cfg.Audio.FFTSize,
		Smoothing:  cfg.Audio.Smoothing,
		NoiseFloor: uint8(cfg.Audio.NoiseFloor),
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
		Timeline: timeline,
	}
}

// analyzeTrack replays t through the analyser and detector on a virtual
// clock advancing one hop per frame.
func analyzeTrack(t *track.Track, opts analyzeOptions) analysisReport {
	an := analyzer.New(analyzer.Config{
		SampleRate: float64(t.SampleRate),
		FFTSize:    opts.FFTSize,
		Smoothing:  opts.Smoothing,
	})
	hop := max(1, int(float64(t.SampleRate)/opts.FPS))
	step := time.Duration(hop) * time.Second / time.Duration(t.SampleRate)

	var elapsed time.Duration
	origin := time.Unix(0, 0).UTC()
	dc := opts.Detector
	dc.Nyquist = an.Nyquist()
	dc.Now = func() time.Time { return origin.Add(elapsed) }
	detector := beat.New(nil, dc)
	mapper := colormap.WithNyquist(an.Nyquist())

	report := analysisReport{
		Track:        t.Info,
		Distribution: make(map[string]float64, len(colormap.BandNames())),
	}
	for _, name := range colormap.BandNames() {
		report.Distribution[name] = 0
	}

	spectrum := make([]uint8, an.BinCount())
	for i, window := range t.Frames(an.FFTSize(), hop) {
		elapsed = time.Duration(i) * step
		spectrum = analyzer.Gate(an.Analyze(window, spectrum), opts.NoiseFloor)
		frame := detector.Analyze(spectrum)
		report.Frames++

		for band, share := range mapper.Distribution(spectrum) {
			report.Distribution[band] += share
		}
		if !frame.IsBeat {
			continue
		}
		report.Beats++
		if frame.StrongBeat {
			report.StrongBeats++
		}
		if frame.KickDetected {
			report.KickBeats++
		}
		if frame.BassDetected {
			report.BassBeats++
		}
		if opts.Timeline {
			report.Timeline = append(report.Timeline, beatEvent{
				AtMS:     elapsed.Milliseconds(),
				Strength: frame.BeatStrength,
				Kick:     frame.KickDetected,
				Bass:     frame.BassDetected,
				Strong:   frame.StrongBeat,
				BPM:      frame.BPM,
			})
		}
	}

	report.BPM = detector.BPM()
	if report.Beats > 0 {
		report.KickRatio = float64(report.KickBeats) / float64(report.Beats)
		report.BassRatio = float64(report.BassBeats) / float64(report.Beats)
	}
	if report.Frames > 0 {
		for band := range report.Distribution {
			report.Distribution[band] /= float64(report.Frames)
		}
	}
	return report
}

func printReport(out io.Writer, r analysisReport, timeline bool) {
	fmt.Fprintf(out, "Track:    %s (%s, %d Hz)\n", r.Track.Label(), r.Track.Duration.Round(time.Millisecond), r.Track.SampleRate)
	fmt.Fprintf(out, "Frames:   %d\n", r.Frames)
	fmt.Fprintf(out, "Beats:    %d (%d strong)\n", r.Beats, r.StrongBeats)
	fmt.Fprintf(out, "Tempo:    %d BPM\n", r.BPM)
	fmt.Fprintf(out, "Kick:     %.0f%% of beats\n", r.KickRatio*100)
	fmt.Fprintf(out, "Bass:     %.0f%% of beats\n", r.BassRatio*100)
	fmt.Fprintln(out)

	bands := colormap.BandNames()
	rows := make([][]string, 0, len(bands))
	for _, name := range bands {
		rows = append(rows, []string{name, strconv.FormatFloat(r.Distribution[name], 'f', 1, 64) + "%"})
	}
	fmt.Fprintln(out, renderTable([]string{"Band", "Share"}, rows, []columnAlignment{alignLeft, alignRight}))

	if !timeline || len(r.Timeline) == 0 {
		return
	}
	fmt.Fprintln(out)
	rows = rows[:0]
	for _, e := range r.Timeline {
		var flags []string
		if e.Kick {
			flags = append(flags, "kick")
		}
		if e.Bass {
			flags = append(flags, "bass")
		}
		if e.Strong {
			flags = append(flags, "strong")
		}
		rows = append(rows, []string{
			(time.Duration(e.AtMS) * time.Millisecond).String(),
			strconv.FormatFloat(e.Strength, 'f', 2, 64),
			strconv.Itoa(e.BPM),
			joinFlags(flags),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"At", "Strength", "BPM", "Flags"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignRight, alignLeft},
	))
}

func joinFlags(flags []string) string {
	if len(flags) == 0 {
		return "-"
	}
	return strings.Join(flags, ",")
}
