// Package incident loads the deduplicated SGO incident dataset, classifies
// each record into metric predicates, and aggregates multi-rater fault
// judgments.
package incident

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/crashla/incident.report/internal/sgo"
)

// Judgment is one rater's fault fraction for one incident, with free-text
// justification. Immutable once loaded.
type Judgment struct {
	Fraction  float64 `json:"fraction"`
	Reasoning string  `json:"reasoning"`
}

// Record is one deduplicated, operator-attributed safety event. Only
// incidents attributed to fully-unsupervised operation appear in the
// dataset; the upstream extraction has already filtered and deduplicated
// by report version.
type Record struct {
	ReportID string      `json:"reportId"`
	Company  sgo.Company `json:"company"`
	Month    sgo.Month   `json:"month"`

	// Speed is the subject vehicle's pre-crash speed in mph; nil when the
	// report gives no usable value.
	Speed *float64 `json:"speed"`

	Road      string       `json:"road"`
	CrashWith string       `json:"crashWith"`
	Severity  sgo.Severity `json:"severity"`

	// VehiclesInvolved is used to down-weight multi-vehicle fatal crashes
	// so a single crash is not double-counted across tallies.
	VehiclesInvolved int  `json:"vehiclesInvolved"`
	AirbagDeployed   bool `json:"airbagDeployed"`

	// Fault holds one judgment per rater.
	Fault map[string]Judgment `json:"fault"`
}

// recordJSON mirrors the upstream incidents.json shape. The fault object
// is flat: one numeric field per rater plus an "r<rater>" reasoning field.
type recordJSON struct {
	ReportID         string                     `json:"reportId"`
	Company          string                     `json:"company"`
	Date             string                     `json:"date"`
	Speed            *float64                   `json:"speed"`
	Road             string                     `json:"road"`
	CrashWith        string                     `json:"crashWith"`
	Severity         string                     `json:"severity"`
	VehiclesInvolved int                        `json:"vehiclesInvolved"`
	AirbagDeployed   bool                       `json:"airbagDeployed"`
	Fault            map[string]json.RawMessage `json:"fault"`
}

// ParseRecords decodes and validates the incident dataset. Every record
// must name a known company, a valid "MMM-YYYY" month label, a non-empty
// road type, a severity from the closed taxonomy, at least one vehicle,
// and exactly one finite in-[0,1] fault fraction per configured rater.
// Any violation fails the whole load.
func ParseRecords(r io.Reader, raters []string) ([]Record, error) {
	var raw []recordJSON
	dec := json.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		return nil, sgo.E(sgo.KindMalformedInput, "incident dataset is not valid JSON", "cause", err)
	}
	if len(raw) == 0 {
		return nil, sgo.E(sgo.KindMalformedInput, "incident dataset has no records")
	}

	seen := make(map[string]bool, len(raw))
	out := make([]Record, 0, len(raw))
	for i, rj := range raw {
		rec, err := rj.toRecord(raters)
		if err != nil {
			return nil, fmt.Errorf("incident %d (%s): %w", i, rj.ReportID, err)
		}
		if seen[rec.ReportID] {
			return nil, sgo.E(sgo.KindDomainInvariant, "duplicate incident report ID",
				"report_id", rec.ReportID)
		}
		seen[rec.ReportID] = true
		out = append(out, rec)
	}
	return out, nil
}

func (rj recordJSON) toRecord(raters []string) (Record, error) {
	if rj.ReportID == "" {
		return Record{}, sgo.E(sgo.KindMalformedInput, "incident missing report ID")
	}
	if !sgo.KnownCompany(rj.Company) {
		return Record{}, sgo.E(sgo.KindMalformedInput, "unknown company on incident",
			"company", rj.Company)
	}
	month, err := sgo.ParseMonthLabel(rj.Date)
	if err != nil {
		return Record{}, err
	}
	if rj.Road == "" {
		return Record{}, sgo.E(sgo.KindMalformedInput, "incident missing road type")
	}
	severity, err := sgo.ParseSeverity(rj.Severity)
	if err != nil {
		return Record{}, err
	}
	if rj.VehiclesInvolved < 1 {
		return Record{}, sgo.E(sgo.KindDomainInvariant, "vehicles involved must be at least 1",
			"vehicles_involved", rj.VehiclesInvolved)
	}
	if rj.Speed != nil && (math.IsNaN(*rj.Speed) || *rj.Speed < 0) {
		return Record{}, sgo.E(sgo.KindMalformedInput, "incident speed must be a non-negative number",
			"speed", *rj.Speed)
	}

	fault, err := parseFault(rj.Fault, raters)
	if err != nil {
		return Record{}, err
	}

	return Record{
		ReportID:         rj.ReportID,
		Company:          sgo.Company(rj.Company),
		Month:            month,
		Speed:            rj.Speed,
		Road:             rj.Road,
		CrashWith:        rj.CrashWith,
		Severity:         severity,
		VehiclesInvolved: rj.VehiclesInvolved,
		AirbagDeployed:   rj.AirbagDeployed,
		Fault:            fault,
	}, nil
}

// parseFault reads the flat fault object: a numeric fraction under the
// rater's name and an optional reasoning string under "r<rater>".
func parseFault(raw map[string]json.RawMessage, raters []string) (map[string]Judgment, error) {
	out := make(map[string]Judgment, len(raters))
	for _, rater := range raters {
		fracRaw, ok := raw[rater]
		if !ok {
			return nil, sgo.E(sgo.KindMalformedInput, "incident missing fault fraction for rater",
				"rater", rater)
		}
		var frac float64
		if err := json.Unmarshal(fracRaw, &frac); err != nil {
			return nil, sgo.E(sgo.KindMalformedInput, "fault fraction is not numeric",
				"rater", rater, "value", string(fracRaw))
		}
		if math.IsNaN(frac) || math.IsInf(frac, 0) || frac < 0 || frac > 1 {
			return nil, sgo.E(sgo.KindDomainInvariant, "fault fraction outside [0,1]",
				"rater", rater, "fraction", frac)
		}
		var reasoning string
		if rRaw, ok := raw["r"+rater]; ok {
			if err := json.Unmarshal(rRaw, &reasoning); err != nil {
				return nil, sgo.E(sgo.KindMalformedInput, "fault reasoning is not a string",
					"rater", rater)
			}
		}
		out[rater] = Judgment{Fraction: frac, Reasoning: reasoning}
	}
	return out, nil
}

// Raters returns the sorted rater names present on a record.
func (r Record) Raters() []string {
	out := make([]string, 0, len(r.Fault))
	for name := range r.Fault {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
