// Package exposure parses and validates the monthly exposure dataset and
// models each operator's vehicle-miles-travelled as a function of its
// configuration parameters.
package exposure

import (
	"github.com/crashla/incident.report/internal/sgo"
)

// Row is one operator's exposure for one calendar month, immutable once
// validated. CumulativeVmt is informational and is not validated against
// neighbouring rows.
type Row struct {
	Company       sgo.Company `json:"company"`
	Month         sgo.Month   `json:"month"`
	VmtBest       float64     `json:"vmt"`
	CumulativeVmt float64     `json:"company_cumulative_vmt"`
	VmtMin        float64     `json:"vmt_min"`
	VmtMax        float64     `json:"vmt_max"`

	// Coverage is the fraction of the calendar month inside the shared
	// observation window, in (0,1].
	Coverage float64 `json:"coverage"`

	// IncidentCoverage is the estimated probability that an incident in
	// this month was reported into the dataset by snapshot time (the
	// Poisson thinning factor), with its own min/max band.
	IncidentCoverage    float64 `json:"incident_coverage"`
	IncidentCoverageMin float64 `json:"incident_coverage_min"`
	IncidentCoverageMax float64 `json:"incident_coverage_max"`

	Rationale string `json:"rationale"`
}

// validate enforces the per-row invariants. Line is carried for error
// context only.
func (r Row) validate(line int) error {
	if !sgo.KnownCompany(string(r.Company)) {
		return sgo.E(sgo.KindMalformedInput, "unknown company in exposure row",
			"company", r.Company, "line", line)
	}
	if r.VmtMin < 0 || r.VmtBest < 0 || r.VmtMax < 0 || r.CumulativeVmt < 0 {
		return sgo.E(sgo.KindDomainInvariant, "exposure miles must be non-negative",
			"company", r.Company, "month", r.Month, "line", line)
	}
	if r.VmtMin > r.VmtBest || r.VmtBest > r.VmtMax {
		return sgo.E(sgo.KindDomainInvariant, "vmt ordering violated: need min <= best <= max",
			"company", r.Company, "month", r.Month,
			"vmt_min", r.VmtMin, "vmt", r.VmtBest, "vmt_max", r.VmtMax)
	}
	if r.Coverage <= 0 || r.Coverage > 1 {
		return sgo.E(sgo.KindDomainInvariant, "coverage must be in (0,1]",
			"company", r.Company, "month", r.Month, "coverage", r.Coverage)
	}
	if r.IncidentCoverage <= 0 || r.IncidentCoverage > 1 {
		return sgo.E(sgo.KindDomainInvariant, "incident_coverage must be in (0,1]",
			"company", r.Company, "month", r.Month, "incident_coverage", r.IncidentCoverage)
	}
	if r.IncidentCoverageMin <= 0 || r.IncidentCoverageMin > r.IncidentCoverage {
		return sgo.E(sgo.KindDomainInvariant, "incident_coverage_min must be in (0,1] and <= incident_coverage",
			"company", r.Company, "month", r.Month,
			"incident_coverage_min", r.IncidentCoverageMin, "incident_coverage", r.IncidentCoverage)
	}
	if r.IncidentCoverageMax < r.IncidentCoverage || r.IncidentCoverageMax > 1 {
		return sgo.E(sgo.KindDomainInvariant, "incident_coverage_max must be in [incident_coverage,1]",
			"company", r.Company, "month", r.Month,
			"incident_coverage_max", r.IncidentCoverageMax, "incident_coverage", r.IncidentCoverage)
	}
	return nil
}
