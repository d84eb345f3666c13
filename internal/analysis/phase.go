package analysis

import (
	"strings"

	"github.com/san-kum/accelsim/internal/beam"
)

type Point struct {
	X, Y float64
}

// PhasePortrait2D holds the points of one transverse phase-space plane.
type PhasePortrait2D struct {
	Axis   beam.Axis
	Points []Point
}

// PhaseSpace records (offset, offset velocity) for every live particle.
func PhaseSpace(b *beam.Beam, axis beam.Axis) *PhasePortrait2D {
	offset, velocity := b.Coordinates(axis)
	portrait := &PhasePortrait2D{
		Axis:   axis,
		Points: make([]Point, len(offset)),
	}
	for i := range offset {
		portrait.Points[i] = Point{X: offset[i], Y: velocity[i]}
	}
	return portrait
}

type bounds struct {
	minX, maxX, minY, maxY float64
}

func (b bounds) pad(frac float64) bounds {
	rx, ry := b.maxX-b.minX, b.maxY-b.minY
	if rx == 0 {
		rx = 1
	}
	if ry == 0 {
		ry = 1
	}
	return bounds{b.minX - rx*frac, b.maxX + rx*frac, b.minY - ry*frac, b.maxY + ry*frac}
}

func extent(points []Point) bounds {
	b := bounds{points[0].X, points[0].X, points[0].Y, points[0].Y}
	for _, p := range points[1:] {
		b.minX = min(b.minX, p.X)
		b.maxX = max(b.maxX, p.X)
		b.minY = min(b.minY, p.Y)
		b.maxY = max(b.maxY, p.Y)
	}
	return b
}

// PhasePortraitToASCII draws the portrait as a width x height scatter plot
// with axes through the origin when it is in view.
func PhasePortraitToASCII(portrait *PhasePortrait2D, width, height int) string {
	if portrait == nil || len(portrait.Points) == 0 || width < 2 || height < 2 {
		return ""
	}

	b := extent(portrait.Points).pad(0.1)
	rangeX, rangeY := b.maxX-b.minX, b.maxY-b.minY
	col := func(x float64) int { return int((x - b.minX) / rangeX * float64(width-1)) }
	row := func(y float64) int { return height - 1 - int((y-b.minY)/rangeY*float64(height-1)) }

	canvas := make([][]rune, height)
	for i := range canvas {
		canvas[i] = []rune(strings.Repeat(" ", width))
	}

	for _, p := range portrait.Points {
		r, c := row(p.Y), col(p.X)
		if r >= 0 && r < height && c >= 0 && c < width {
			canvas[r][c] = '•'
		}
	}

	if b.minX <= 0 && b.maxX >= 0 {
		c := col(0)
		for r := range canvas {
			if canvas[r][c] == ' ' {
				canvas[r][c] = '│'
			}
		}
	}
	if b.minY <= 0 && b.maxY >= 0 {
		r := row(0)
		for c := range canvas[r] {
			if canvas[r][c] == ' ' {
				canvas[r][c] = '─'
			}
		}
	}

	var sb strings.Builder
	for _, line := range canvas {
		sb.WriteString(string(line))
		sb.WriteRune('\n')
	}
	return sb.String()
}
