package incident

import (
	"github.com/crashla/incident.report/internal/sgo"
)

// Weights are named non-negative per-rater weights. They are run-time
// configuration, not domain data: changing them forces downstream metric
// cells to be rebuilt, never patched.
type Weights map[string]float64

// Validate rejects negative weights. A total weight of zero is legal; it
// makes the weighted fault undefined rather than erroneous.
func (w Weights) Validate() error {
	for rater, weight := range w {
		if weight < 0 {
			return sgo.E(sgo.KindDomainInvariant, "fault weight must be non-negative",
				"rater", rater, "weight", weight)
		}
	}
	return nil
}

// FaultStats is the weighted mean and weighted population variance of the
// raters' fault fractions for one incident.
type FaultStats struct {
	Mean     float64 `json:"mean"`
	Variance float64 `json:"variance"`
}

// WeightedFault aggregates a judgment set under the given weights.
// Returns nil (undefined, not an error) when the applicable total weight
// is zero. Fails loudly on any fraction outside [0,1], any negative
// weight, or a judgment whose rater has no configured weight.
func WeightedFault(judgments map[string]Judgment, weights Weights) (*FaultStats, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}

	var totalWeight, weightedSum float64
	for rater, j := range judgments {
		if j.Fraction < 0 || j.Fraction > 1 {
			return nil, sgo.E(sgo.KindDomainInvariant, "fault fraction outside [0,1]",
				"rater", rater, "fraction", j.Fraction)
		}
		weight, ok := weights[rater]
		if !ok {
			return nil, sgo.E(sgo.KindDomainInvariant, "no weight configured for rater",
				"rater", rater)
		}
		totalWeight += weight
		weightedSum += weight * j.Fraction
	}
	if totalWeight == 0 {
		return nil, nil
	}

	mean := weightedSum / totalWeight
	var sumSq float64
	for rater, j := range judgments {
		d := j.Fraction - mean
		sumSq += weights[rater] * d * d
	}
	return &FaultStats{Mean: mean, Variance: sumSq / totalWeight}, nil
}
