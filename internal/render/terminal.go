package render

import (
	"bytes"
	"image"
	"image/color"
	"io"
	"math"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Presenter puts a drawn raster in front of the user.
type Presenter interface {
	// Size reports the drawable area in cells; ok is false when unknown.
	Size() (width, height int, ok bool)
	Present(img *image.RGBA, status string) error
	Close() error
}

// TerminalConfig configures the ANSI presenter.
type TerminalConfig struct {
	// FD is the descriptor queried for the terminal size; negative disables it.
	FD         int
	Color      bool
	Palette    string
	ShowStatus bool
	// AltScreen switches to the alternate buffer until Close.
	AltScreen bool
}

// Terminal presents frames as lines of text. With colour each cell is an
// upper half block whose foreground is the top pixel and whose background
// is the bottom one; without colour the pair's luminance picks a glyph.
type Terminal struct {
	out     io.Writer
	cfg     TerminalConfig
	palette []rune
	buf     bytes.Buffer
	opened  bool
}

var (
	resetANSI      = "\x1b[0m"
	precomputedFG  [256]string
	precomputedBG  [256]string
	halfBlock      = '▀'
	cursorHomeANSI = "\x1b[H"
)

func init() {
	for i := range precomputedFG {
		precomputedFG[i] = "\x1b[38;5;" + strconv.Itoa(i) + "m"
		precomputedBG[i] = "\x1b[48;5;" + strconv.Itoa(i) + "m"
	}
}

// NewTerminal creates an ANSI presenter writing to out.
func NewTerminal(out io.Writer, cfg TerminalConfig) *Terminal {
	return &Terminal{out: out, cfg: cfg, palette: Palette(cfg.Palette)}
}

// Size reports the terminal size, minus the status row when shown.
func (t *Terminal) Size() (int, int, bool) {
	if t.cfg.FD < 0 {
		return 0, 0, false
	}
	w, h, err := term.GetSize(t.cfg.FD)
	if err != nil || w <= 0 || h <= 0 {
		return 0, 0, false
	}
	if t.cfg.ShowStatus && h > 1 {
		h--
	}
	return w, h, true
}

// Present writes the frame from the top-left corner.
func (t *Terminal) Present(img *image.RGBA, status string) error {
	if !t.opened {
		t.open()
	}
	lines := t.Lines(img)
	t.buf.Reset()
	t.buf.WriteString(cursorHomeANSI)
	for _, line := range lines {
		t.buf.WriteString(line)
		t.buf.WriteByte('\n')
	}
	if t.cfg.ShowStatus {
		t.buf.WriteString(statusBar(status, img.Rect.Dx()))
	}
	_, err := t.out.Write(t.buf.Bytes())
	return err
}

// Close restores the cursor and leaves the alternate screen.
func (t *Terminal) Close() error {
	if !t.opened {
		return nil
	}
	t.opened = false
	var s string
	if t.cfg.AltScreen {
		s = "\x1b[?25h\x1b[?1049l" + resetANSI
	} else {
		s = "\x1b[?25h" + resetANSI + "\n"
	}
	_, err := io.WriteString(t.out, s)
	return err
}

func (t *Terminal) open() {
	t.opened = true
	if t.cfg.AltScreen {
		_, _ = io.WriteString(t.out, "\x1b[?1049h")
	}
	_, _ = io.WriteString(t.out, "\x1b[2J"+cursorHomeANSI+"\x1b[?25l")
}

// Lines converts the raster into one string per cell row. Rows are spread
// over a worker pool.
func (t *Terminal) Lines(img *image.RGBA) []string {
	width := img.Rect.Dx()
	rows := (img.Rect.Dy() + 1) / 2
	if width <= 0 || rows <= 0 {
		return nil
	}
	lines := make([]string, rows)
	useColor := t.cfg.Color

	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers > rows {
		numWorkers = rows
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	var wg sync.WaitGroup
	rowJobs := make(chan int, numWorkers)

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for y := range rowJobs {
				var builder strings.Builder
				builder.Grow(width * 12)
				lastFG, lastBG := -1, -1
				for x := 0; x < width; x++ {
					top := pixel(img, x, 2*y)
					bottom := pixel(img, x, 2*y+1)
					if !useColor {
						builder.WriteRune(glyph(t.palette, (luma(top)+luma(bottom))/2))
						continue
					}
					fg, bg := rgbaToANSI(top), rgbaToANSI(bottom)
					if fg != lastFG {
						builder.WriteString(precomputedFG[fg])
						lastFG = fg
					}
					if bg != lastBG {
						builder.WriteString(precomputedBG[bg])
						lastBG = bg
					}
					builder.WriteRune(halfBlock)
				}
				if useColor {
					builder.WriteString(resetANSI)
				}
				lines[y] = builder.String()
			}
		}()
	}

	for y := 0; y < rows; y++ {
		rowJobs <- y
	}
	close(rowJobs)
	wg.Wait()

	return lines
}

func pixel(img *image.RGBA, x, y int) color.RGBA {
	if y >= img.Rect.Max.Y {
		return color.RGBA{}
	}
	return img.RGBAAt(x, y)
}

func luma(c color.RGBA) float64 {
	return (0.2126*float64(c.R) + 0.7152*float64(c.G) + 0.0722*float64(c.B)) / 255
}

func rgbaToANSI(c color.RGBA) int {
	return rgbToANSI(float64(c.R)/255, float64(c.G)/255, float64(c.B)/255)
}

func rgbToANSI(r, g, b float64) int {
	r = clamp01(r)
	g = clamp01(g)
	b = clamp01(b)

	// Grayscale palette for low saturation/contrast
	if math.Abs(r-g) < 0.02 && math.Abs(g-b) < 0.02 {
		gray := int(clampFloat(math.Round(r*23), 0, 23))
		return 232 + gray
	}

	ri := int(clampFloat(r*5+0.5, 0, 5))
	gi := int(clampFloat(g*5+0.5, 0, 5))
	bi := int(clampFloat(b*5+0.5, 0, 5))

	return 16 + 36*ri + 6*gi + bi
}

func statusBar(text string, width int) string {
	if width <= 0 {
		return text
	}
	if len(text) >= width {
		return text[:width]
	}
	return text + strings.Repeat(" ", width-len(text))
}
