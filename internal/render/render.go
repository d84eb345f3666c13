// Package render draws simulation objects onto pluggable sinks.
package render

import (
	"errors"
	"fmt"

	"github.com/san-kum/accelsim/internal/accelerator"
	"github.com/san-kum/accelsim/internal/beam"
	"github.com/san-kum/accelsim/internal/dynamo"
	"github.com/san-kum/accelsim/internal/lattice"
	"github.com/san-kum/accelsim/internal/particle"
)

var ErrUnsupported = errors.New("render: unsupported type")

// Renderer receives one call per drawable type.
type Renderer interface {
	DrawAccelerator(a *accelerator.Accelerator) error
	DrawBeam(b *beam.Beam) error
	DrawElement(e *lattice.Element) error
	DrawParticle(p *particle.Particle) error
	DrawVector(v dynamo.Vector3D) error
}

// Drawer dispatches values to a renderer, falling back to Default when the
// caller passes none.
type Drawer struct {
	Default Renderer
}

func (d Drawer) Draw(v any, r Renderer) error {
	if r == nil {
		r = d.Default
	}
	if r == nil {
		return dynamo.ErrNoRenderer
	}

	switch x := v.(type) {
	case *accelerator.Accelerator:
		return r.DrawAccelerator(x)
	case *beam.Beam:
		return r.DrawBeam(x)
	case *lattice.Element:
		return r.DrawElement(x)
	case lattice.Element:
		return r.DrawElement(&x)
	case *lattice.Ring:
		for h := 0; h < x.Len(); h++ {
			if err := r.DrawElement(x.At(lattice.Handle(h))); err != nil {
				return err
			}
		}
		return nil
	case *particle.Particle:
		return r.DrawParticle(x)
	case dynamo.Vector3D:
		return r.DrawVector(x)
	default:
		return fmt.Errorf("%w: %T", ErrUnsupported, v)
	}
}

// Draw uses r directly with no fallback.
func Draw(v any, r Renderer) error {
	return Drawer{}.Draw(v, r)
}
