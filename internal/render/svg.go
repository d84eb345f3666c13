package render

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/san-kum/accelsim/internal/accelerator"
	"github.com/san-kum/accelsim/internal/beam"
	"github.com/san-kum/accelsim/internal/dynamo"
	"github.com/san-kum/accelsim/internal/lattice"
	"github.com/san-kum/accelsim/internal/particle"
)

const svgSamples = 48

var elementColors = map[lattice.Kind]string{
	lattice.Straight:   "#888899",
	lattice.Quadrupole: "#ffcc00",
	lattice.Dipole:     "#00ccff",
	lattice.Frodo:      "#ff00ff",
}

type svgShape struct {
	points []dynamo.Vector3D
	stroke string
	dot    bool
}

// SVG collects a top view of everything drawn and writes one document on
// Close. The view box is fitted to the drawn shapes with a 10% margin.
type SVG struct {
	w             io.Writer
	closer        io.Closer
	width, height int
	shapes        []svgShape
}

func NewSVG(w io.Writer, width, height int) *SVG {
	return &SVG{w: w, width: width, height: height}
}

func NewSVGFile(path string, width, height int) (*SVG, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dynamo.ErrRendererOutput, err)
	}
	return &SVG{w: f, closer: f, width: width, height: height}, nil
}

func (s *SVG) DrawAccelerator(a *accelerator.Accelerator) error {
	if err := Draw(a.Ring(), s); err != nil {
		return err
	}
	for _, b := range a.Beams() {
		if err := s.DrawBeam(b); err != nil {
			return err
		}
	}
	return nil
}

func (s *SVG) DrawBeam(b *beam.Beam) error {
	for _, p := range b.Particles() {
		if err := s.DrawParticle(p); err != nil {
			return err
		}
	}
	return nil
}

func (s *SVG) DrawElement(e *lattice.Element) error {
	if parts := e.Parts(); len(parts) > 0 {
		for i := range parts {
			if err := s.DrawElement(&parts[i]); err != nil {
				return err
			}
		}
		return nil
	}

	n := 1
	if e.IsDipole() {
		n = svgSamples
	}
	pts := make([]dynamo.Vector3D, n+1)
	for i := range pts {
		pts[i] = e.PosAtProgress(float64(i) / float64(n))
	}
	s.shapes = append(s.shapes, svgShape{points: pts, stroke: elementColors[e.Kind()]})
	return nil
}

func (s *SVG) DrawParticle(p *particle.Particle) error {
	if p.Outside() {
		return nil
	}
	return s.dot(p.Position(), "#00ff88")
}

func (s *SVG) DrawVector(v dynamo.Vector3D) error {
	return s.dot(v, "#ff4444")
}

func (s *SVG) dot(v dynamo.Vector3D, color string) error {
	if !v.IsValid() {
		return fmt.Errorf("%w: invalid point %v", ErrUnsupported, v)
	}
	s.shapes = append(s.shapes, svgShape{points: []dynamo.Vector3D{v}, stroke: color, dot: true})
	return nil
}

func (s *SVG) bounds() (minX, minY, rangeX, rangeY float64) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, sh := range s.shapes {
		for _, p := range sh.points {
			minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
			minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
		}
	}
	if len(s.shapes) == 0 {
		minX, maxX, minY, maxY = 0, 1, 0, 1
	}

	cx, cy := (minX+maxX)/2, (minY+maxY)/2
	rangeX, rangeY = maxX-minX, maxY-minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	// equal scale on both axes so circles stay circles
	span := math.Max(rangeX/float64(s.width), rangeY/float64(s.height))
	rangeX, rangeY = 1.2*span*float64(s.width), 1.2*span*float64(s.height)
	return cx - rangeX/2, cy - rangeY/2, rangeX, rangeY
}

// String renders the document without writing it.
func (s *SVG) String() string {
	minX, minY, rangeX, rangeY := s.bounds()
	project := func(p dynamo.Vector3D) (float64, float64) {
		x := (p.X - minX) / rangeX * float64(s.width)
		y := float64(s.height) - (p.Y-minY)/rangeY*float64(s.height)
		return x, y
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, s.width, s.height, s.width, s.height)

	for _, sh := range s.shapes {
		if sh.dot {
			x, y := project(sh.points[0])
			fmt.Fprintf(&sb, `<circle cx="%.1f" cy="%.1f" r="2" fill="%s"/>`+"\n", x, y, sh.stroke)
			continue
		}
		sb.WriteString(`<path fill="none" stroke="` + sh.stroke + `" stroke-width="2" d="M`)
		for i, p := range sh.points {
			x, y := project(p)
			if i > 0 {
				sb.WriteString(" L")
			}
			fmt.Fprintf(&sb, "%.1f,%.1f", x, y)
		}
		sb.WriteString(`"/>` + "\n")
	}
	sb.WriteString("</svg>\n")
	return sb.String()
}

// Close writes the document and closes the file, if any.
func (s *SVG) Close() error {
	_, err := io.WriteString(s.w, s.String())
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
