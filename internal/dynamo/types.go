package dynamo

import "math"

// SI physical constants.
const (
	SpeedOfLight     = 299792458.0
	ElementaryCharge = 1.602176634e-19
	CoulombConstant  = 8.9875517923e9
	ProtonMass       = 1.67262192369e-27
	ElectronMass     = 9.1093837015e-31
	// JoulesPerGeV converts energies given in GeV.
	JoulesPerGeV = ElementaryCharge * 1e9
)

// ProgressMode selects how elements locate a point along their span.
type ProgressMode int

const (
	// Exact uses the parametric progress of each geometry.
	Exact ProgressMode = iota
	// Approximate classifies points as before/inside/after with sentinel values.
	Approximate
)

func (m ProgressMode) String() string {
	switch m {
	case Approximate:
		return "approximate"
	default:
		return "exact"
	}
}

// ParseProgressMode maps a config string to a ProgressMode.
func ParseProgressMode(s string) (ProgressMode, error) {
	switch s {
	case "", "exact":
		return Exact, nil
	case "approximate", "approx":
		return Approximate, nil
	default:
		return Exact, ErrParameterBounds
	}
}

// Sentinel progress values returned in Approximate mode.
const (
	ProgressBefore = -2.0
	ProgressEntry  = 0.0
	ProgressInside = 0.5
	ProgressAfter  = 2.0
)

// Gamma returns the Lorentz factor for a speed in m/s.
func Gamma(speed float64) float64 {
	beta := speed / SpeedOfLight
	return 1 / math.Sqrt(1-beta*beta)
}
