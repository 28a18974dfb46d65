// Package metrics declares the per-metric counting rules and reconciles
// the exposure ledger with classified incidents into per-month cells ready
// for rate estimation.
package metrics

import (
	"github.com/crashla/incident.report/internal/incident"
)

// Definition is one declarative metric: a label, a predicate over
// classifier facts, and display metadata. Adding a metric means adding an
// entry here (plus a classifier predicate if genuinely new), not new
// control flow.
type Definition struct {
	Key   string `json:"key"`
	Label string `json:"label"`

	// Contribution returns how much one incident adds to the metric's
	// count: 0 or 1 for plain predicates, fractional for vehicle-weighted
	// fatalities.
	Contribution func(incident.Facts) float64 `json:"-"`

	// FaultWeighted metrics multiply each contribution by the incident's
	// weighted fault mean. Undefined when the total fault weight is zero.
	FaultWeighted bool `json:"faultWeighted"`

	DefaultEnabled bool `json:"defaultEnabled"`

	// Human-driver benchmark band, in miles per incident, for comparison
	// rendering. Zero values mean no benchmark exists for the metric.
	HumanLoMPI float64 `json:"humanLoMpi"`
	HumanHiMPI float64 `json:"humanHiMpi"`
}

func one(incident.Facts) float64 { return 1 }

// Defaults is the standard metric table.
var Defaults = []Definition{
	{
		Key: "any", Label: "Any reported crash",
		Contribution:   one,
		DefaultEnabled: true,
		HumanLoMPI:     1.5e5, HumanHiMPI: 4e5,
	},
	{
		Key: "nonstationary", Label: "Crashes while moving",
		Contribution: func(f incident.Facts) float64 {
			if f.Nonstationary {
				return 1
			}
			return 0
		},
		DefaultEnabled: true,
		HumanLoMPI:     2e5, HumanHiMPI: 5e5,
	},
	{
		Key: "roadway_nonstationary", Label: "Crashes while moving, on roadway",
		Contribution: func(f incident.Facts) float64 {
			if f.RoadwayNonstationary {
				return 1
			}
			return 0
		},
		DefaultEnabled: true,
		HumanLoMPI:     2.5e5, HumanHiMPI: 6e5,
	},
	{
		Key: "injury", Label: "Any injury",
		Contribution: func(f incident.Facts) float64 {
			if f.Injury {
				return 1
			}
			return 0
		},
		DefaultEnabled: true,
		HumanLoMPI:     1.1e6, HumanHiMPI: 2.3e6,
	},
	{
		Key: "hospitalized", Label: "Injury with hospitalisation",
		Contribution: func(f incident.Facts) float64 {
			if f.Hospitalized {
				return 1
			}
			return 0
		},
		HumanLoMPI: 4e6, HumanHiMPI: 9e6,
	},
	{
		Key: "serious_injury", Label: "Serious injury (KABCO A+K)",
		Contribution: func(f incident.Facts) float64 {
			if f.SeriousInjury {
				return 1
			}
			return 0
		},
		DefaultEnabled: true,
		HumanLoMPI:     8e6, HumanHiMPI: 2e7,
	},
	{
		Key: "fatality", Label: "Fatality (per-vehicle weighted)",
		Contribution:   func(f incident.Facts) float64 { return f.FatalityWeight },
		DefaultEnabled: true,
		HumanLoMPI:     6e7, HumanHiMPI: 1.1e8,
	},
	{
		Key: "airbag", Label: "Airbag deployment",
		Contribution: func(f incident.Facts) float64 {
			if f.AirbagDeployed {
				return 1
			}
			return 0
		},
		HumanLoMPI: 1.1e6, HumanHiMPI: 2.6e6,
	},
	{
		Key: "at_fault", Label: "At-fault crashes (fault-weighted)",
		Contribution:   one,
		FaultWeighted:  true,
		DefaultEnabled: true,
		HumanLoMPI:     3e5, HumanHiMPI: 8e5,
	},
	{
		Key: "at_fault_roadway", Label: "At-fault crashes while moving, on roadway",
		Contribution: func(f incident.Facts) float64 {
			if f.RoadwayNonstationary {
				return 1
			}
			return 0
		},
		FaultWeighted: true,
		HumanLoMPI:    5e5, HumanHiMPI: 1.2e6,
	},
}

// ByKey returns the definition with the given key from defs.
func ByKey(defs []Definition, key string) (Definition, bool) {
	for _, d := range defs {
		if d.Key == key {
			return d, true
		}
	}
	return Definition{}, false
}
