// Package dynamo provides the numeric primitives shared by the beam simulator.
//
// The package defines:
//
//   - [Vector3D]: 3D vector value type with an in-place operator family
//   - [TripleProduct]: orientation test used by every lattice element
//   - physical constants in SI units ([SpeedOfLight], [ElementaryCharge], ...)
//   - the sentinel errors every other package reports through
//   - [ParallelFor]: chunked parallel loop used for particle integration
//
// # Conventions
//
// The accelerator ring lies around the origin with +Z as the vertical axis.
// Particles travel clockwise when seen from +Z.
//
//	v := dynamo.NewVector3D(1, 0, 0)
//	w, _ := v.Rotate(dynamo.UnitZ, math.Pi/2)
package dynamo
