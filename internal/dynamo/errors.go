package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for lattice construction, admission and integration.
var (
	// ErrDivideByZero indicates a division or normalization by a near-zero value.
	ErrDivideByZero = errors.New("dynamo: division by near-zero value")

	// ErrCollinear indicates element endpoints collinear through the origin.
	ErrCollinear = errors.New("dynamo: entry and exit are collinear through the origin")

	// ErrWrongDirection indicates an element turning counter-clockwise around the origin.
	ErrWrongDirection = errors.New("dynamo: element faces the wrong direction")

	// ErrParameterBounds indicates a parameter value is outside its valid range.
	ErrParameterBounds = errors.New("dynamo: parameter out of valid bounds")

	// ErrNotTouching indicates a new element whose entry is not the previous exit.
	ErrNotTouching = errors.New("dynamo: element does not touch the previous element")

	// ErrIncompleteLoop indicates a ring that cannot be closed.
	ErrIncompleteLoop = errors.New("dynamo: last element does not touch the first element")

	// ErrNoElements indicates an operation that needs at least one element.
	ErrNoElements = errors.New("dynamo: accelerator has no elements")

	// ErrNotInAccelerator indicates a particle outside every element's bore and span.
	ErrNotInAccelerator = errors.New("dynamo: particle is not inside the accelerator")

	// ErrElementsInUse indicates elements still referenced by particles.
	ErrElementsInUse = errors.New("dynamo: elements are referenced by particles")

	// ErrEmptyBeam indicates a beam requested with zero particles.
	ErrEmptyBeam = errors.New("dynamo: beam needs at least one particle")

	// ErrScaleFactor indicates a macroparticle scaling factor below one.
	ErrScaleFactor = errors.New("dynamo: macroparticle scaling factor must be at least 1")

	// ErrNoRenderer indicates a draw call with no renderer configured.
	ErrNoRenderer = errors.New("dynamo: no renderer available")

	// ErrRendererOutput indicates the renderer output could not be opened.
	ErrRendererOutput = errors.New("dynamo: cannot open renderer output")
)

// GeometryError wraps an error with the element that produced it.
type GeometryError struct {
	Element string
	PosIn   Vector3D
	PosOut  Vector3D
	Wrapped error
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("%s %v -> %v: %v", e.Element, e.PosIn, e.PosOut, e.Wrapped)
}

func (e *GeometryError) Unwrap() error {
	return e.Wrapped
}
