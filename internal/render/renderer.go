package render

import (
	"fmt"
	"image"
	"strconv"
	"strings"
)

// Config sizes a Renderer in terminal cells. Each row holds two canvas pixels.
type Config struct {
	Width      int
	Height     int
	Visualizer string
	Palette    string
}

// Renderer owns the canvas and the active visualizer.
type Renderer struct {
	width         int
	height        int
	kind          Kind
	paletteName   string
	canvas        *Canvas
	statusBuilder strings.Builder
}

// New creates a Renderer.
func New(cfg Config) (*Renderer, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid dimensions: width=%d height=%d", cfg.Width, cfg.Height)
	}
	kind, err := ParseKind(cfg.Visualizer)
	if err != nil {
		return nil, err
	}
	paletteName := cfg.Palette
	if paletteName == "" {
		paletteName = "default"
	}
	if !validPalette(paletteName) {
		return nil, fmt.Errorf("unknown palette %q", cfg.Palette)
	}
	return &Renderer{
		width:       cfg.Width,
		height:      cfg.Height,
		kind:        kind,
		paletteName: paletteName,
		canvas:      NewCanvas(cfg.Width, cfg.Height*2),
	}, nil
}

// Resize updates the framebuffer dimensions. Non-positive values keep the
// current size.
func (r *Renderer) Resize(width, height int) {
	if width > 0 {
		r.width = width
	}
	if height > 0 {
		r.height = height
	}
	r.canvas.Resize(r.width, r.height*2)
}

func (r *Renderer) Width() int          { return r.width }
func (r *Renderer) Height() int         { return r.height }
func (r *Renderer) Kind() Kind          { return r.kind }
func (r *Renderer) PaletteName() string { return r.paletteName }

// SetKind switches visualizer and clears the trail of the previous one.
func (r *Renderer) SetKind(kind Kind) {
	if _, ok := visualizers[kind]; !ok || kind == r.kind {
		return
	}
	r.kind = kind
	r.canvas.Clear()
}

// CycleKind moves to the next visualizer and returns it.
func (r *Renderer) CycleKind() Kind {
	r.SetKind(r.kind.Next())
	return r.kind
}

// Draw paints one frame and returns the canvas raster. The image is reused
// across frames.
func (r *Renderer) Draw(in Input) *image.RGBA {
	Draw(r.kind, r.canvas, in)
	return r.canvas.Image()
}

// Status summarises the frame for the status bar.
func (r *Renderer) Status(in Input, fps float64) string {
	builder := &r.statusBuilder
	builder.Reset()
	builder.Grow(128)
	builder.WriteString(strings.ToUpper(string(r.kind)))
	builder.WriteString(" | bpm ")
	builder.WriteString(strconv.Itoa(in.Beat.BPM))
	builder.WriteString(" beat ")
	appendFloat(builder, in.Beat.BeatStrength, 2)
	builder.WriteString(" kick ")
	appendFloat(builder, in.Beat.KickStrength, 2)
	builder.WriteString(" bass ")
	appendFloat(builder, in.Beat.BassStrength, 2)
	if in.Beat.IsBeat {
		builder.WriteString(" *")
	}
	builder.WriteString(" | fps ")
	appendFloat(builder, fps, 1)
	return builder.String()
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

func clampFloat(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func appendFloat(builder *strings.Builder, value float64, precision int) {
	var buf [32]byte
	b := strconv.AppendFloat(buf[:0], value, 'f', precision, 64)
	builder.Write(b)
}
