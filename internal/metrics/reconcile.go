package metrics

import (
	"sort"

	"github.com/crashla/incident.report/internal/exposure"
	"github.com/crashla/incident.report/internal/incident"
	"github.com/crashla/incident.report/internal/sgo"
	"github.com/crashla/incident.report/internal/stats"
)

// Cell is one (company, month, metric) count/exposure pair after coverage
// pro-rating and incident-coverage thinning. Cells are rebuilt whole
// whenever configuration changes; they are never mutated in place.
type Cell struct {
	Company sgo.Company `json:"company"`
	Month   sgo.Month   `json:"month"`
	Metric  string      `json:"metric"`

	// Count may be fractional for fault-weighted or per-vehicle-weighted
	// metrics. A month with zero incidents still yields a cell.
	Count float64 `json:"count"`

	// Effective exposure triple in miles. Thinning pairs the coverage
	// minimum with the VMT minimum and the maximum with the maximum, so
	// the triple stays the most pessimistic/optimistic combination.
	ExposureMin  float64 `json:"exposureMin"`
	ExposureBest float64 `json:"exposureBest"`
	ExposureMax  float64 `json:"exposureMax"`
}

// Total is a per-company, per-metric sum of cells across all covered
// months, ready for rate estimation.
type Total struct {
	Company sgo.Company `json:"company"`
	Metric  string      `json:"metric"`

	Count        float64 `json:"count"`
	ExposureMin  float64 `json:"exposureMin"`
	ExposureBest float64 `json:"exposureBest"`
	ExposureMax  float64 `json:"exposureMax"`
}

// Estimate computes the credible MPI interval for the total at its
// best-estimate exposure.
func (t Total) Estimate(massFrac float64) (stats.Estimate, error) {
	return stats.PoissonRate(t.Count, t.ExposureBest, massFrac)
}

// EstimateAt computes the interval against an explicit exposure figure,
// for example one produced by an operator's exposure model.
func (t Total) EstimateAt(exposureMiles, massFrac float64) (stats.Estimate, error) {
	return stats.PoissonRate(t.Count, exposureMiles, massFrac)
}

// Result holds a full reconciliation pass.
type Result struct {
	Cells []Cell `json:"cells"`

	// Undefined lists fault-weighted metric keys that could not be
	// computed because the total fault weight is zero. Undefined is not
	// an error.
	Undefined []string `json:"undefined,omitempty"`
}

// Reconcile joins the exposure ledger with classified incidents by
// (company, month) and emits one cell per ledger row per defined metric.
//
// Pro-rating multiplies the VMT triple by the row's coverage; thinning
// multiplies by the incident-coverage triple, min with min and max with
// max. An incident in a month the ledger does not cover for its company
// is a domain invariant violation: the two datasets must cover exactly
// the same window.
func Reconcile(ledger *exposure.Ledger, records []incident.Record, defs []Definition, weights incident.Weights) (*Result, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}

	var totalWeight float64
	for _, w := range weights {
		totalWeight += w
	}
	faultDefined := totalWeight > 0

	// Classify and fault-weight every incident up front, failing before
	// any cell is built.
	type classified struct {
		facts incident.Facts
		fault *incident.FaultStats
	}
	byCell := make(map[string][]classified)
	for _, rec := range records {
		if !ledger.Covers(rec.Company, rec.Month) {
			return nil, sgo.E(sgo.KindDomainInvariant, "incident month outside exposure ledger coverage",
				"report_id", rec.ReportID, "company", rec.Company, "month", rec.Month)
		}
		c := classified{facts: incident.Classify(rec)}
		if faultDefined {
			fs, err := incident.WeightedFault(rec.Fault, weights)
			if err != nil {
				return nil, err
			}
			// Raters carry weight overall, but this incident's own raters
			// may all be zero-weighted, leaving its fault mean undefined.
			if fs == nil {
				return nil, sgo.E(sgo.KindDomainInvariant, "incident has no positively weighted fault judgment",
					"report_id", rec.ReportID)
			}
			c.fault = fs
		}
		k := string(rec.Company) + "|" + string(rec.Month)
		byCell[k] = append(byCell[k], c)
	}

	res := &Result{}
	for _, def := range defs {
		if def.FaultWeighted && !faultDefined {
			res.Undefined = append(res.Undefined, def.Key)
		}
	}
	sort.Strings(res.Undefined)

	for _, row := range ledger.Rows() {
		effMin := row.VmtMin * row.Coverage * row.IncidentCoverageMin
		effBest := row.VmtBest * row.Coverage * row.IncidentCoverage
		effMax := row.VmtMax * row.Coverage * row.IncidentCoverageMax

		cellIncidents := byCell[string(row.Company)+"|"+string(row.Month)]
		for _, def := range defs {
			if def.FaultWeighted && !faultDefined {
				continue
			}
			var count float64
			for _, c := range cellIncidents {
				contribution := def.Contribution(c.facts)
				if def.FaultWeighted {
					contribution *= c.fault.Mean
				}
				count += contribution
			}
			res.Cells = append(res.Cells, Cell{
				Company:      row.Company,
				Month:        row.Month,
				Metric:       def.Key,
				Count:        count,
				ExposureMin:  effMin,
				ExposureBest: effBest,
				ExposureMax:  effMax,
			})
		}
	}
	return res, nil
}

// Totals sums cells per (company, metric) across months, in a stable
// company-then-metric order.
func (r *Result) Totals() []Total {
	index := make(map[string]int)
	var out []Total
	for _, c := range r.Cells {
		k := string(c.Company) + "|" + c.Metric
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, Total{Company: c.Company, Metric: c.Metric})
		}
		out[i].Count += c.Count
		out[i].ExposureMin += c.ExposureMin
		out[i].ExposureBest += c.ExposureBest
		out[i].ExposureMax += c.ExposureMax
	}
	return out
}

// TotalFor returns the total for one company and metric.
func (r *Result) TotalFor(c sgo.Company, metric string) (Total, bool) {
	for _, t := range r.Totals() {
		if t.Company == c && t.Metric == metric {
			return t, true
		}
	}
	return Total{}, false
}
