package render

import (
	"image"
	"image/color"
	"math"
)

// Canvas is the raster every visualizer paints into. Terminal presenters
// map two vertical pixels onto one character cell.
type Canvas struct {
	img *image.RGBA
}

// NewCanvas allocates a black canvas.
func NewCanvas(width, height int) *Canvas {
	return &Canvas{img: image.NewRGBA(image.Rect(0, 0, max(width, 0), max(height, 0)))}
}

// Image exposes the backing raster.
func (c *Canvas) Image() *image.RGBA { return c.img }

// Width in pixels.
func (c *Canvas) Width() int { return c.img.Rect.Dx() }

// Height in pixels.
func (c *Canvas) Height() int { return c.img.Rect.Dy() }

// Resize reallocates the raster when the size changes; contents are lost.
func (c *Canvas) Resize(width, height int) {
	if width == c.Width() && height == c.Height() {
		return
	}
	c.img = image.NewRGBA(image.Rect(0, 0, max(width, 0), max(height, 0)))
}

// Clear paints the canvas black.
func (c *Canvas) Clear() {
	clear(c.img.Pix)
}

// Fade darkens every pixel by alpha, leaving a trail of earlier frames.
func (c *Canvas) Fade(alpha float64) {
	if alpha >= 1 {
		c.Clear()
		return
	}
	if alpha <= 0 {
		return
	}
	keep := 1 - alpha
	pix := c.img.Pix
	for i := 0; i < len(pix); i += 4 {
		pix[i] = uint8(float64(pix[i]) * keep)
		pix[i+1] = uint8(float64(pix[i+1]) * keep)
		pix[i+2] = uint8(float64(pix[i+2]) * keep)
		pix[i+3] = 255
	}
}

func (c *Canvas) set(x, y int, col color.RGBA) {
	if x < 0 || y < 0 || x >= c.img.Rect.Max.X || y >= c.img.Rect.Max.Y {
		return
	}
	c.img.SetRGBA(x, y, col)
}

// FillRect fills [x0,x1) x [y0,y1), clipped to the canvas.
func (c *Canvas) FillRect(x0, y0, x1, y1 int, col color.RGBA) {
	x0, x1 = max(x0, 0), min(x1, c.Width())
	y0, y1 = max(y0, 0), min(y1, c.Height())
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			c.img.SetRGBA(x, y, col)
		}
	}
}

// DrawThickLine draws a line with the specified thickness.
func (c *Canvas) DrawThickLine(x1, y1, x2, y2 float64, thickness int, col color.RGBA) {
	dx := x2 - x1
	dy := y2 - y1
	length := math.Hypot(dx, dy)
	if length == 0 {
		c.set(int(math.Round(x1)), int(math.Round(y1)), col)
		return
	}
	if thickness < 1 {
		thickness = 1
	}

	perpX := -dy / length
	perpY := dx / length
	steps := int(length) + 1

	for t := -thickness / 2; t <= (thickness-1)/2; t++ {
		offsetX := float64(t) * perpX
		offsetY := float64(t) * perpY
		for i := 0; i <= steps; i++ {
			progress := float64(i) / float64(steps)
			c.set(int(math.Round(x1+dx*progress+offsetX)), int(math.Round(y1+dy*progress+offsetY)), col)
		}
	}
}

// DrawCircle draws a circle outline.
func (c *Canvas) DrawCircle(cx, cy, radius float64, col color.RGBA) {
	steps := int(2 * math.Pi * radius)
	if steps < 36 {
		steps = 36
	}
	for i := 0; i < steps; i++ {
		angle := 2 * math.Pi * float64(i) / float64(steps)
		c.set(int(math.Round(cx+math.Cos(angle)*radius)), int(math.Round(cy+math.Sin(angle)*radius)), col)
	}
}

// At returns the pixel at x, y; outside the canvas is black.
func (c *Canvas) At(x, y int) color.RGBA {
	if x < 0 || y < 0 || x >= c.Width() || y >= c.Height() {
		return color.RGBA{A: 255}
	}
	return c.img.RGBAAt(x, y)
}
