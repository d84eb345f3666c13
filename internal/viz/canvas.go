package viz

import (
	"math"
	"strings"

	"github.com/san-kum/accelsim/internal/dynamo"
)

// Braille cells hold 2x4 dots:
//
//	1 4
//	2 5
//	3 6
//	7 8
const brailleBlank = 0x2800

var dotMask = [4][2]rune{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

// Canvas is a braille dot grid of Width x Height cells, or 2*Width x
// 4*Height dots.
type Canvas struct {
	Width, Height int
	cells         []rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{Width: w, Height: h, cells: make([]rune, w*h)}
	c.Clear()
	return c
}

func (c *Canvas) Clear() {
	for i := range c.cells {
		c.cells[i] = brailleBlank
	}
}

func (c *Canvas) Dots() (int, int) { return 2 * c.Width, 4 * c.Height }

// Set lights the dot at (x, y); out of range dots are ignored.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 || x >= 2*c.Width || y >= 4*c.Height {
		return
	}
	c.cells[(y/4)*c.Width+x/2] |= dotMask[y%4][x%2]
}

func (c *Canvas) IsSet(x, y int) bool {
	if x < 0 || y < 0 || x >= 2*c.Width || y >= 4*c.Height {
		return false
	}
	return c.cells[(y/4)*c.Width+x/2]&dotMask[y%4][x%2] != 0
}

// Line draws from (x0, y0) to (x1, y1) with Bresenham's algorithm.
func (c *Canvas) Line(x0, y0, x1, y1 int) {
	dx, dy := absInt(x1-x0), absInt(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx - dy

	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for row := 0; row < c.Height; row++ {
		b.WriteString(string(c.cells[row*c.Width : (row+1)*c.Width]))
		b.WriteByte('\n')
	}
	return b.String()
}

// Viewport maps the horizontal plane onto canvas dots, keeping the aspect
// ratio and flipping y so +y points up.
type Viewport struct {
	minX, minY float64
	scale      float64
	offX, offY float64
	dotsH      int
}

func NewViewport(c *Canvas, lo, hi dynamo.Vector3D) Viewport {
	w, h := c.Dots()
	spanX := math.Max(hi.X-lo.X, dynamo.Epsilon)
	spanY := math.Max(hi.Y-lo.Y, dynamo.Epsilon)
	scale := math.Min(float64(w-1)/spanX, float64(h-1)/spanY)
	return Viewport{
		minX:  lo.X,
		minY:  lo.Y,
		scale: scale,
		offX:  (float64(w-1) - spanX*scale) / 2,
		offY:  (float64(h-1) - spanY*scale) / 2,
		dotsH: h,
	}
}

func (v Viewport) Project(p dynamo.Vector3D) (int, int) {
	x := v.offX + (p.X-v.minX)*v.scale
	y := v.offY + (p.Y-v.minY)*v.scale
	return int(math.Round(x)), v.dotsH - 1 - int(math.Round(y))
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
