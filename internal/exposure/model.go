package exposure

import (
	"github.com/crashla/incident.report/internal/sgo"
)

// ModelKind selects one of the closed set of exposure-model shapes.
type ModelKind string

const (
	// ModelSimple scales base miles by the deadhead multiplier only.
	ModelSimple ModelKind = "simple"
	// ModelComposite accrues exposure in two eras: a fixed historical
	// total during which all miles count, then a later era where only a
	// configurable fraction of miles qualifies.
	ModelComposite ModelKind = "composite"
	// ModelDerived tracks a peer operator's exposure verbatim; its rate
	// estimate is the peer's scaled by 1/Divisor.
	ModelDerived ModelKind = "derived"
)

// Model maps an operator's adjustable parameters to an exposure-mile
// figure. BaseMiles is the primary parameter; its declared [BaseMilesMin,
// BaseMilesMax] range yields the feasible exposure range.
type Model struct {
	Kind ModelKind

	BaseMiles    float64
	BaseMilesMin float64
	BaseMilesMax float64

	// DeadheadFraction is the fraction of miles driven without a paying
	// occupant, in [0,1). Simple and composite only.
	DeadheadFraction float64

	// Composite only.
	FixedEraMiles      float64
	QualifyingFraction float64

	// Derived only.
	Peer    sgo.Company
	Divisor float64
}

// deadheadMultiplier inflates rider miles to total miles.
func (m Model) deadheadMultiplier() (float64, error) {
	if m.DeadheadFraction < 0 || m.DeadheadFraction >= 1 {
		return 0, sgo.E(sgo.KindBadParameter, "deadhead fraction must be in [0,1)",
			"deadhead_fraction", m.DeadheadFraction)
	}
	return 1 / (1 - m.DeadheadFraction), nil
}

// Miles evaluates the model at its current parameters. A derived model has
// no miles of its own; callers resolve the peer's exposure instead.
func (m Model) Miles() (float64, error) {
	return m.milesAt(m.BaseMiles)
}

func (m Model) milesAt(base float64) (float64, error) {
	switch m.Kind {
	case ModelSimple:
		mult, err := m.deadheadMultiplier()
		if err != nil {
			return 0, err
		}
		return base * mult, nil
	case ModelComposite:
		if base < m.FixedEraMiles {
			return 0, sgo.E(sgo.KindBadParameter, "base miles below the fixed-era total",
				"base_miles", base, "fixed_era_miles", m.FixedEraMiles)
		}
		if m.QualifyingFraction < 0 || m.QualifyingFraction > 1 {
			return 0, sgo.E(sgo.KindBadParameter, "qualifying fraction must be in [0,1]",
				"qualifying_fraction", m.QualifyingFraction)
		}
		mult, err := m.deadheadMultiplier()
		if err != nil {
			return 0, err
		}
		qualifying := m.FixedEraMiles + m.QualifyingFraction*(base-m.FixedEraMiles)
		return qualifying * mult, nil
	case ModelDerived:
		return 0, sgo.E(sgo.KindBadParameter, "derived model has no exposure of its own",
			"peer", m.Peer)
	default:
		return 0, sgo.E(sgo.KindBadParameter, "unknown exposure model kind", "kind", m.Kind)
	}
}

// Range evaluates the model at the primary parameter's declared minimum
// and maximum, holding other parameters fixed, and returns the resulting
// feasible exposure range around the current value.
func (m Model) Range() (lo, best, hi float64, err error) {
	best, err = m.Miles()
	if err != nil {
		return 0, 0, 0, err
	}
	atMin, err := m.milesAt(m.BaseMilesMin)
	if err != nil {
		return 0, 0, 0, err
	}
	atMax, err := m.milesAt(m.BaseMilesMax)
	if err != nil {
		return 0, 0, 0, err
	}
	lo, hi = atMin, atMax
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo, best, hi, nil
}

// ValidateDivisor bounds-checks a derived model's peer divisor.
func (m Model) ValidateDivisor() error {
	if m.Kind != ModelDerived {
		return nil
	}
	if m.Divisor < 2 || m.Divisor > 10 {
		return sgo.E(sgo.KindBadParameter, "peer divisor must be in [2,10]", "divisor", m.Divisor)
	}
	return nil
}
