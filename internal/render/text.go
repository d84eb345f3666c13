package render

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/san-kum/accelsim/internal/accelerator"
	"github.com/san-kum/accelsim/internal/beam"
	"github.com/san-kum/accelsim/internal/dynamo"
	"github.com/san-kum/accelsim/internal/lattice"
	"github.com/san-kum/accelsim/internal/particle"
)

// Text dumps objects as their String form, one record per call.
type Text struct {
	w      io.Writer
	closer io.Closer
}

func NewText(w io.Writer) *Text {
	return &Text{w: w}
}

// NewTextFile creates (or truncates) path and renders into it.
func NewTextFile(path string) (*Text, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dynamo.ErrRendererOutput, err)
	}
	return &Text{w: f, closer: f}, nil
}

func (t *Text) Close() error {
	if t.closer == nil {
		return nil
	}
	return t.closer.Close()
}

func (t *Text) write(kind, body string) error {
	_, err := fmt.Fprintf(t.w, "%s: %s\n", kind, strings.TrimRight(body, "\n"))
	return err
}

func (t *Text) DrawAccelerator(a *accelerator.Accelerator) error {
	return t.write("accelerator", a.String())
}

func (t *Text) DrawBeam(b *beam.Beam) error {
	return t.write("beam", b.String())
}

func (t *Text) DrawElement(e *lattice.Element) error {
	return t.write("element", e.String())
}

func (t *Text) DrawParticle(p *particle.Particle) error {
	return t.write("particle", p.String())
}

func (t *Text) DrawVector(v dynamo.Vector3D) error {
	return t.write("vector", v.String())
}
