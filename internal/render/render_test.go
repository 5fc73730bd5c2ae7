package render

import (
	"bytes"
	"image"
	"image/color"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guidoenr/beatviz/internal/animation"
	"github.com/guidoenr/beatviz/internal/beat"
	"github.com/guidoenr/beatviz/internal/params"
)

var black = color.RGBA{A: 255}

func filled(n int, v uint8) []uint8 {
	out := make([]uint8, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestCanvasFillRectClips(t *testing.T) {
	c := NewCanvas(4, 4)
	red := color.RGBA{R: 255, A: 255}
	c.FillRect(-2, 2, 10, 10, red)
	assert.Equal(t, red, c.At(0, 3))
	assert.Equal(t, red, c.At(3, 2))
	assert.NotEqual(t, red, c.At(0, 1))
	assert.Equal(t, black, c.At(-1, 0))
}

func TestCanvasFade(t *testing.T) {
	c := NewCanvas(2, 1)
	c.FillRect(0, 0, 2, 1, color.RGBA{R: 200, G: 100, B: 50, A: 255})
	c.Fade(0.5)
	assert.Equal(t, color.RGBA{R: 100, G: 50, B: 25, A: 255}, c.At(1, 0))

	c.Fade(1)
	assert.Equal(t, color.RGBA{}, c.At(1, 0))
}

func TestCanvasResize(t *testing.T) {
	c := NewCanvas(2, 2)
	img := c.Image()
	c.Resize(2, 2)
	assert.Same(t, img, c.Image())
	c.Resize(5, 3)
	assert.Equal(t, 5, c.Width())
	assert.Equal(t, 3, c.Height())
	c.Resize(-1, -1)
	assert.Zero(t, c.Width())
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("")
	require.NoError(t, err)
	assert.Equal(t, KindBars, k)

	k, err = ParseKind(" Spectrum ")
	require.NoError(t, err)
	assert.Equal(t, KindSpectrum, k)

	_, err = ParseKind("plasma")
	assert.Error(t, err)

	assert.Equal(t, KindWaveform, KindBars.Next())
	assert.Equal(t, KindBars, KindSpectrum.Next())
	assert.Equal(t, KindBars, Kind("nope").Next())
}

func TestDrawBars(t *testing.T) {
	c := NewCanvas(8, 8)
	Draw(KindBars, c, Input{Spectrum: filled(8, 255)})

	// Sub-bass hue at full magnitude: hsl(0, 100%, 80%).
	assert.Equal(t, color.RGBA{R: 255, G: 153, B: 153, A: 255}, c.At(0, 7))
	assert.Equal(t, color.RGBA{R: 255, G: 153, B: 153, A: 255}, c.At(0, 3))
	assert.Equal(t, black, c.At(0, 2))
	assert.Equal(t, black, c.At(0, 0))
}

func TestDrawBarsFlashAndBeat(t *testing.T) {
	c := NewCanvas(8, 8)
	Draw(KindBars, c, Input{
		Spectrum: filled(8, 255),
		Beat:     beat.Frame{IsBeat: true},
		Visual:   params.Parameters{Flash: 1},
	})
	assert.Equal(t, color.RGBA{R: 255, G: 189, B: 189, A: 255}, c.At(0, 7))
	assert.NotEqual(t, black, c.At(4, 0))
}

func TestDrawBarsTransparent(t *testing.T) {
	c := NewCanvas(8, 8)
	tr := animation.Identity()
	tr.Opacity = 0
	Draw(KindBars, c, Input{Spectrum: filled(8, 255), Transform: tr})
	assert.Equal(t, black, c.At(0, 7))
}

func TestDrawWaveform(t *testing.T) {
	c := NewCanvas(16, 16)
	Draw(KindWaveform, c, Input{Spectrum: filled(16, 128)})
	assert.NotEqual(t, black, c.At(5, 8))
	assert.Equal(t, black, c.At(5, 0))
	assert.NotEqual(t, black, c.At(15, 8))
}

func TestDrawSpectrumFollowsRotation(t *testing.T) {
	spectrum := make([]uint8, 8)
	spectrum[0] = 255

	c := NewCanvas(30, 30)
	Draw(KindSpectrum, c, Input{Spectrum: spectrum})
	assert.NotEqual(t, black, c.At(27, 15))
	assert.NotEqual(t, black, c.At(25, 15))

	tr := animation.Identity()
	tr.Rotation = 90
	c = NewCanvas(30, 30)
	Draw(KindSpectrum, c, Input{Spectrum: spectrum, Transform: tr})
	assert.NotEqual(t, black, c.At(15, 27))
	assert.Equal(t, black, c.At(27, 15))
}

func TestDrawHandlesEmptyInput(t *testing.T) {
	for _, kind := range Kinds() {
		Draw(kind, NewCanvas(0, 0), Input{Spectrum: filled(4, 255)})
		c := NewCanvas(4, 4)
		Draw(kind, c, Input{})
		assert.Equal(t, black, c.At(1, 1), kind)
	}
}

func TestRendererNew(t *testing.T) {
	_, err := New(Config{Width: 0, Height: 4})
	assert.Error(t, err)
	_, err = New(Config{Width: 4, Height: 4, Visualizer: "plasma"})
	assert.Error(t, err)
	_, err = New(Config{Width: 4, Height: 4, Palette: "neon"})
	assert.Error(t, err)

	r, err := New(Config{Width: 10, Height: 5})
	require.NoError(t, err)
	assert.Equal(t, KindBars, r.Kind())
	assert.Equal(t, "default", r.PaletteName())

	img := r.Draw(Input{Spectrum: filled(16, 200)})
	assert.Equal(t, image.Rect(0, 0, 10, 10), img.Rect)

	r.Resize(6, 0)
	assert.Equal(t, image.Rect(0, 0, 6, 10), r.Draw(Input{}).Rect)
}

func TestRendererCycleKind(t *testing.T) {
	r, err := New(Config{Width: 4, Height: 2})
	require.NoError(t, err)
	assert.Equal(t, KindWaveform, r.CycleKind())
	assert.Equal(t, KindSpectrum, r.CycleKind())
	assert.Equal(t, KindBars, r.CycleKind())
	r.SetKind("nope")
	assert.Equal(t, KindBars, r.Kind())
}

func TestRendererStatus(t *testing.T) {
	r, err := New(Config{Width: 4, Height: 2, Visualizer: "waveform"})
	require.NoError(t, err)
	status := r.Status(Input{Beat: beat.Frame{BPM: 120, BeatStrength: 0.5, IsBeat: true}}, 59.94)
	assert.Equal(t, "WAVEFORM | bpm 120 beat 0.50 kick 0.00 bass 0.00 * | fps 59.9", status)
}

func TestTerminalColorLines(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.SetRGBA(0, 0, color.RGBA{R: 255, A: 255})
	img.SetRGBA(1, 0, color.RGBA{R: 255, A: 255})

	term := NewTerminal(&bytes.Buffer{}, TerminalConfig{FD: -1, Color: true})
	lines := term.Lines(img)
	require.Len(t, lines, 1)
	assert.Equal(t, "\x1b[38;5;196m\x1b[48;5;232m▀▀\x1b[0m", lines[0])
}

func TestTerminalGlyphLines(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 3))
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	term := NewTerminal(&bytes.Buffer{}, TerminalConfig{FD: -1, Palette: "box"})
	lines := term.Lines(img)
	require.Len(t, lines, 2)
	assert.Equal(t, "███", lines[0])
	assert.Equal(t, "   ", lines[1])
}

func TestTerminalPresent(t *testing.T) {
	var out bytes.Buffer
	term := NewTerminal(&out, TerminalConfig{FD: -1, ShowStatus: true, AltScreen: true})
	_, _, ok := term.Size()
	assert.False(t, ok)

	img := image.NewRGBA(image.Rect(0, 0, 6, 2))
	require.NoError(t, term.Present(img, "bpm"))
	s := out.String()
	assert.True(t, strings.HasPrefix(s, "\x1b[?1049h"))
	assert.True(t, strings.HasSuffix(s, "\nbpm   "))

	out.Reset()
	require.NoError(t, term.Present(img, "a very long status"))
	assert.True(t, strings.HasPrefix(out.String(), "\x1b[H"))
	assert.True(t, strings.HasSuffix(out.String(), "\na very"))

	out.Reset()
	require.NoError(t, term.Close())
	assert.Contains(t, out.String(), "\x1b[?1049l")
	require.NoError(t, term.Close())
}

func TestScreenPresentsAndForwardsKeys(t *testing.T) {
	sim := tcell.NewSimulationScreen("UTF-8")
	s, err := NewScreenWith(sim, true)
	require.NoError(t, err)

	w, h, ok := s.Size()
	require.True(t, ok)
	assert.Equal(t, 80, w)
	assert.Equal(t, 24, h)

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.SetRGBA(0, 0, color.RGBA{R: 255, A: 255})
	require.NoError(t, s.Present(img, "BARS"))

	cells, cw, _ := sim.GetContents()
	require.NotEmpty(t, cells[0].Runes)
	assert.Equal(t, '▀', cells[0].Runes[0])
	assert.Equal(t, 'B', cells[24*cw].Runes[0])

	sim.InjectKey(tcell.KeyRune, 'v', tcell.ModNone)
	sim.InjectKey(tcell.KeyEscape, 0, tcell.ModNone)

	select {
	case ev := <-s.Events():
		assert.Equal(t, Event{Kind: EventKey, Rune: 'v'}, ev)
	case <-time.After(time.Second):
		t.Fatal("no key event")
	}
	select {
	case ev := <-s.Events():
		assert.Equal(t, EventQuit, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("no quit event")
	}

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	_, open := <-s.Events()
	assert.False(t, open)
	assert.ErrorIs(t, s.Present(img, ""), ErrRendererQuit)
}
