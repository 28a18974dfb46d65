package stats

import (
	"github.com/crashla/incident.report/internal/sgo"
)

// Estimate is a credible interval for exposure units per incident (MPI).
// Because the interval is the inverse of a rate quantile, Lo is derived
// from the upper tail probability and Hi from the lower.
type Estimate struct {
	Median float64 `json:"median"`
	Lo     float64 `json:"lo"`
	Hi     float64 `json:"hi"`
}

// Scale multiplies all three fields by f. Used to derive a comparison
// baseline from a peer operator's estimate without recomputing the
// posterior.
func (e Estimate) Scale(f float64) Estimate {
	return Estimate{Median: e.Median * f, Lo: e.Lo * f, Hi: e.Hi * f}
}

// PoissonRate computes the Jeffreys-prior credible interval for a Poisson
// rate observed as count incidents over exposure units, reported as
// exposure units per incident. The posterior is Gamma(count+0.5, exposure);
// massFrac is the credible mass, strictly inside (0,1). Count may be
// fractional (fault-weighted tallies) but never negative.
func PoissonRate(count, exposure, massFrac float64) (Estimate, error) {
	if count < 0 {
		return Estimate{}, sgo.E(sgo.KindBadParameter, "incident count must be non-negative", "count", count)
	}
	if exposure <= 0 {
		return Estimate{}, sgo.E(sgo.KindBadParameter, "exposure must be positive", "exposure", exposure)
	}
	if massFrac <= 0 || massFrac >= 1 {
		return Estimate{}, sgo.E(sgo.KindBadParameter, "credible mass must be in (0,1)", "mass", massFrac)
	}

	a := count + 0.5
	tail := (1 - massFrac) / 2

	median, err := GammaQuantile(a, exposure, 0.5)
	if err != nil {
		return Estimate{}, err
	}
	upper, err := GammaQuantile(a, exposure, 1-tail)
	if err != nil {
		return Estimate{}, err
	}
	lower, err := GammaQuantile(a, exposure, tail)
	if err != nil {
		return Estimate{}, err
	}

	return Estimate{
		Median: 1 / median,
		Lo:     1 / upper,
		Hi:     1 / lower,
	}, nil
}
