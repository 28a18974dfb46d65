package api

import (
	"fmt"

	"github.com/crashla/incident.report/internal/config"
	"github.com/crashla/incident.report/internal/exposure"
	"github.com/crashla/incident.report/internal/metrics"
	"github.com/crashla/incident.report/internal/sgo"
	"github.com/crashla/incident.report/internal/stats"
)

// HumanCompany labels the derived human-driver baseline rows in estimate
// listings. It is not a real operator and never appears in the datasets.
const HumanCompany = "Human"

// MetricEstimate is one company's credible interval for one metric, in
// miles per incident, together with the reconciled inputs it came from.
type MetricEstimate struct {
	Company string  `json:"company"`
	Metric  string  `json:"metric"`
	Label   string  `json:"label"`
	Count   float64 `json:"count"`
	Miles   float64 `json:"miles"`

	MPI stats.Estimate `json:"mpi"`

	// Benchmark band for the metric, when one exists.
	HumanLoMPI float64 `json:"humanLoMpi,omitempty"`
	HumanHiMPI float64 `json:"humanHiMpi,omitempty"`
}

// compute runs a full reconciliation and estimation pass for cfg. The
// inputs are never mutated, so a failed pass leaves no trace.
//
// Each operator's exposure model supplies the miles fed to the rate
// estimator. The reconciled triple is rescaled from the ledger's raw VMT
// onto the model's feasible range, so coverage pro-rating and
// incident-coverage thinning carry over while the model parameters stay
// live configuration.
func (s *Server) compute(cfg *config.Analysis) (*metrics.Result, []MetricEstimate, error) {
	result, err := metrics.Reconcile(s.ledger, s.records, s.defs, cfg.Weights())
	if err != nil {
		return nil, nil, err
	}

	mass := cfg.MassFrac()
	models := cfg.Models()
	raw := s.rawLedgerMiles()

	totals := result.Totals()
	estimates := make([]MetricEstimate, 0, len(totals))
	for _, t := range totals {
		expMin, expBest, expMax := t.ExposureMin, t.ExposureBest, t.ExposureMax
		if m, ok := models[string(t.Company)]; ok {
			loM, bestM, hiM, err := m.Range()
			if err != nil {
				return nil, nil, fmt.Errorf("operator %s: %w", t.Company, err)
			}
			r := raw[t.Company]
			if r.min > 0 {
				expMin *= loM / r.min
			}
			if r.best > 0 {
				expBest *= bestM / r.best
			}
			if r.max > 0 {
				expMax *= hiM / r.max
			}
		}
		interval, err := intervalAt(t, expMin, expBest, expMax, mass)
		if err != nil {
			return nil, nil, fmt.Errorf("estimate for %s/%s: %w", t.Company, t.Metric, err)
		}
		def, _ := metrics.ByKey(s.defs, t.Metric)
		estimates = append(estimates, MetricEstimate{
			Company:    string(t.Company),
			Metric:     t.Metric,
			Label:      def.Label,
			Count:      t.Count,
			Miles:      expBest,
			MPI:        interval,
			HumanLoMPI: def.HumanLoMPI,
			HumanHiMPI: def.HumanHiMPI,
		})
	}

	human, err := humanBaseline(estimates, cfg.HumanModel())
	if err != nil {
		return nil, nil, err
	}
	estimates = append(estimates, human...)

	return result, estimates, nil
}

type milesTriple struct {
	min, best, max float64
}

// rawLedgerMiles sums the unadjusted VMT triple per company. These are
// the denominators for rescaling reconciled exposure onto model miles.
func (s *Server) rawLedgerMiles() map[sgo.Company]milesTriple {
	out := make(map[sgo.Company]milesTriple)
	for _, row := range s.ledger.Rows() {
		tr := out[row.Company]
		tr.min += row.VmtMin
		tr.best += row.VmtBest
		tr.max += row.VmtMax
		out[row.Company] = tr
	}
	return out
}

// intervalAt builds the credible interval with the median at the best
// exposure and the bounds at the pessimistic and optimistic exposure,
// minimum paired with the lower bound and maximum with the upper. A
// degenerate or zero min/max falls back to the best-exposure bound.
func intervalAt(t metrics.Total, expMin, expBest, expMax, mass float64) (stats.Estimate, error) {
	out, err := t.EstimateAt(expBest, mass)
	if err != nil {
		return stats.Estimate{}, err
	}
	if expMin > 0 && expMin != expBest {
		lo, err := t.EstimateAt(expMin, mass)
		if err != nil {
			return stats.Estimate{}, err
		}
		out.Lo = lo.Lo
	}
	if expMax > 0 && expMax != expBest {
		hi, err := t.EstimateAt(expMax, mass)
		if err != nil {
			return stats.Estimate{}, err
		}
		out.Hi = hi.Hi
	}
	return out, nil
}

// Estimates returns the current estimate rows. The slice is rebuilt
// wholesale on config changes, never mutated, so callers may hold it.
func (s *Server) Estimates() []MetricEstimate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.estimates
}

// Snapshot persists the current config and estimates as a run and
// returns the run ID. It is a no-op with an empty ID when the server was
// built without a database.
func (s *Server) Snapshot() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persistRun(s.cfg, s.estimates)
}

// humanBaseline derives comparison rows for a notional human fleet from
// the derived model's peer operator. The peer's interval is scaled down
// by the model divisor rather than re-estimated, because the human fleet
// has no exposure of its own.
func humanBaseline(estimates []MetricEstimate, model exposure.Model) ([]MetricEstimate, error) {
	if model.Kind != exposure.ModelDerived {
		return nil, sgo.E(sgo.KindBadParameter, "human baseline requires a derived model",
			"kind", string(model.Kind))
	}
	if err := model.ValidateDivisor(); err != nil {
		return nil, err
	}
	var rows []MetricEstimate
	for _, e := range estimates {
		if e.Company != string(model.Peer) {
			continue
		}
		rows = append(rows, MetricEstimate{
			Company:    HumanCompany,
			Metric:     e.Metric,
			Label:      e.Label,
			Count:      e.Count,
			Miles:      e.Miles / model.Divisor,
			MPI:        e.MPI.Scale(1 / model.Divisor),
			HumanLoMPI: e.HumanLoMPI,
			HumanHiMPI: e.HumanHiMPI,
		})
	}
	return rows, nil
}
