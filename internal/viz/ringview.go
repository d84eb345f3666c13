package viz

import (
	"math"

	"github.com/san-kum/accelsim/internal/beam"
	"github.com/san-kum/accelsim/internal/dynamo"
	"github.com/san-kum/accelsim/internal/lattice"
)

const outlineSamples = 32

// RingView draws a top view of the ring with every live particle on it.
type RingView struct {
	canvas  *Canvas
	view    Viewport
	outline [][]dynamo.Vector3D
}

func NewRingView(ring *lattice.Ring, w, h int) *RingView {
	rv := &RingView{canvas: NewCanvas(w, h)}

	lo := dynamo.NewVector3D(math.Inf(1), math.Inf(1), 0)
	hi := dynamo.NewVector3D(math.Inf(-1), math.Inf(-1), 0)
	for i := 0; i < ring.Len(); i++ {
		e := ring.At(lattice.Handle(i))
		pts := make([]dynamo.Vector3D, outlineSamples+1)
		for j := range pts {
			p := e.PosAtProgress(float64(j) / outlineSamples)
			pts[j] = p
			lo.X, lo.Y = math.Min(lo.X, p.X), math.Min(lo.Y, p.Y)
			hi.X, hi.Y = math.Max(hi.X, p.X), math.Max(hi.Y, p.Y)
		}
		rv.outline = append(rv.outline, pts)
	}
	if ring.Len() == 0 {
		lo, hi = dynamo.Vector3D{}, dynamo.NewVector3D(1, 1, 0)
	}
	rv.view = NewViewport(rv.canvas, lo, hi)
	return rv
}

func (rv *RingView) Canvas() *Canvas    { return rv.canvas }
func (rv *RingView) Viewport() Viewport { return rv.view }

func (rv *RingView) Render(beams []*beam.Beam) string {
	rv.canvas.Clear()
	for _, pts := range rv.outline {
		for j := 1; j < len(pts); j++ {
			x0, y0 := rv.view.Project(pts[j-1])
			x1, y1 := rv.view.Project(pts[j])
			rv.canvas.Line(x0, y0, x1, y1)
		}
	}
	for _, b := range beams {
		for _, p := range b.Particles() {
			if p.Outside() {
				continue
			}
			x, y := rv.view.Project(p.Position())
			rv.canvas.Set(x, y)
			rv.canvas.Set(x+1, y)
			rv.canvas.Set(x, y+1)
			rv.canvas.Set(x+1, y+1)
		}
	}
	return rv.canvas.String()
}
