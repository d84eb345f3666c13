// Package lattice provides the accelerator elements and the ring that links them.
//
// An [Element] is a closed tagged variant with one case per geometry:
//
//   - [Straight]: field-free drift
//   - [Dipole]: constant vertical field bending the beam along an arc
//   - [Quadrupole]: linear restoring field on a straight axis
//   - [Frodo]: FODO cell of focalizer, drift, defocalizer and trailing drift
//
// Every query ([Element.Field], [Element.Progress], [Element.PosAtProgress], ...)
// is a single function that switches on the kind.
//
// A [Ring] is the arena that owns the elements of one accelerator. Elements are
// addressed by [Handle]; prev/next links are handles, so clearing the ring never
// leaves a particle holding a dangling reference.
package lattice
