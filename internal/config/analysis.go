// Package config defines the run-time analysis configuration: credible
// mass, per-rater fault weights, per-operator exposure model parameters,
// and the human-baseline peer divisor.
//
// The configuration is an explicit immutable value threaded into
// reconciliation and estimation calls. Updating it means building and
// validating a new value, then recomputing every derived structure; the
// core math never reads ambient state.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/crashla/incident.report/internal/exposure"
	"github.com/crashla/incident.report/internal/incident"
	"github.com/crashla/incident.report/internal/sgo"
)

// Raters lists the fault raters every incident must carry.
var Raters = []string{"claude", "codex", "gemini"}

// HumanBaseline is the synthetic derived operator tracking Waymo's
// uncertainty band scaled by the peer divisor.
const HumanBaseline = "Human baseline"

// OperatorParams are one operator's exposure model parameters. Fields are
// pointers so a partial JSON config can override only what it names.
type OperatorParams struct {
	Kind *string `json:"kind,omitempty"`

	BaseMiles    *float64 `json:"base_miles,omitempty"`
	BaseMilesMin *float64 `json:"base_miles_min,omitempty"`
	BaseMilesMax *float64 `json:"base_miles_max,omitempty"`

	DeadheadFraction *float64 `json:"deadhead_fraction,omitempty"`

	FixedEraMiles      *float64 `json:"fixed_era_miles,omitempty"`
	QualifyingFraction *float64 `json:"qualifying_fraction,omitempty"`
}

// Analysis is the root configuration. Zero value plus defaults is valid.
type Analysis struct {
	// CredibleMassPct is the credible interval mass as a percentage,
	// bounded to [50, 99.9].
	CredibleMassPct *float64 `json:"credible_mass_pct,omitempty"`

	// FaultWeights maps rater name to a non-negative weight.
	FaultWeights map[string]float64 `json:"fault_weights,omitempty"`

	// PeerDivisor scales the human-baseline estimate off its peer,
	// bounded to [2, 10].
	PeerDivisor *float64 `json:"peer_divisor,omitempty"`

	Operators map[string]OperatorParams `json:"operators,omitempty"`
}

const (
	defaultCredibleMassPct = 80.0
	defaultPeerDivisor     = 4.0
)

// defaultModels carries the operator exposure models evaluated when the
// config file overrides nothing.
var defaultModels = map[string]exposure.Model{
	string(sgo.Waymo): {
		Kind:             exposure.ModelSimple,
		BaseMiles:        5e7,
		BaseMilesMin:     4e7,
		BaseMilesMax:     6e7,
		DeadheadFraction: 0.15,
	},
	string(sgo.Tesla): {
		Kind:               exposure.ModelComposite,
		BaseMiles:          2e7,
		BaseMilesMin:       1.5e7,
		BaseMilesMax:       2.5e7,
		DeadheadFraction:   0.05,
		FixedEraMiles:      1e7,
		QualifyingFraction: 0.5,
	},
	string(sgo.Zoox): {
		Kind:             exposure.ModelSimple,
		BaseMiles:        2e6,
		BaseMilesMin:     1.5e6,
		BaseMilesMax:     3e6,
		DeadheadFraction: 0.2,
	},
}

// Load reads an Analysis from a JSON file. Fields omitted from the file
// keep their defaults, so partial configs are safe.
func Load(path string) (*Analysis, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var a Analysis
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &a, nil
}

// Validate bounds-checks every present field.
func (a *Analysis) Validate() error {
	if a.CredibleMassPct != nil && (*a.CredibleMassPct < 50 || *a.CredibleMassPct > 99.9) {
		return sgo.E(sgo.KindBadParameter, "credible mass percentage must be in [50, 99.9]",
			"credible_mass_pct", *a.CredibleMassPct)
	}
	if err := incident.Weights(a.FaultWeights).Validate(); err != nil {
		return err
	}
	for rater := range a.FaultWeights {
		if !knownRater(rater) {
			return sgo.E(sgo.KindMalformedInput, "unknown fault rater", "rater", rater)
		}
	}
	if a.PeerDivisor != nil && (*a.PeerDivisor < 2 || *a.PeerDivisor > 10) {
		return sgo.E(sgo.KindBadParameter, "peer divisor must be in [2, 10]",
			"peer_divisor", *a.PeerDivisor)
	}
	for name := range a.Operators {
		if !sgo.KnownCompany(name) {
			return sgo.E(sgo.KindMalformedInput, "exposure parameters name an unknown operator",
				"operator", name)
		}
	}
	// Overridden models must still evaluate: this catches deadhead or
	// fixed-era violations at configuration time instead of render time.
	for name, m := range a.Models() {
		if m.Kind == exposure.ModelDerived {
			if err := m.ValidateDivisor(); err != nil {
				return err
			}
			continue
		}
		if _, _, _, err := m.Range(); err != nil {
			return fmt.Errorf("operator %s: %w", name, err)
		}
	}
	return nil
}

func knownRater(name string) bool {
	for _, r := range Raters {
		if r == name {
			return true
		}
	}
	return false
}

// Merge returns a new Analysis with other's present fields overriding a's.
// Neither receiver nor argument is modified.
func (a *Analysis) Merge(other *Analysis) *Analysis {
	out := &Analysis{
		CredibleMassPct: a.CredibleMassPct,
		PeerDivisor:     a.PeerDivisor,
	}
	if other.CredibleMassPct != nil {
		out.CredibleMassPct = other.CredibleMassPct
	}
	if other.PeerDivisor != nil {
		out.PeerDivisor = other.PeerDivisor
	}
	out.FaultWeights = make(map[string]float64)
	for k, v := range a.FaultWeights {
		out.FaultWeights[k] = v
	}
	for k, v := range other.FaultWeights {
		out.FaultWeights[k] = v
	}
	out.Operators = make(map[string]OperatorParams)
	for k, v := range a.Operators {
		out.Operators[k] = v
	}
	for k, v := range other.Operators {
		merged := out.Operators[k]
		mergeOperator(&merged, v)
		out.Operators[k] = merged
	}
	return out
}

func mergeOperator(dst *OperatorParams, src OperatorParams) {
	if src.Kind != nil {
		dst.Kind = src.Kind
	}
	if src.BaseMiles != nil {
		dst.BaseMiles = src.BaseMiles
	}
	if src.BaseMilesMin != nil {
		dst.BaseMilesMin = src.BaseMilesMin
	}
	if src.BaseMilesMax != nil {
		dst.BaseMilesMax = src.BaseMilesMax
	}
	if src.DeadheadFraction != nil {
		dst.DeadheadFraction = src.DeadheadFraction
	}
	if src.FixedEraMiles != nil {
		dst.FixedEraMiles = src.FixedEraMiles
	}
	if src.QualifyingFraction != nil {
		dst.QualifyingFraction = src.QualifyingFraction
	}
}

// MassFrac returns the credible mass as a fraction in (0,1).
func (a *Analysis) MassFrac() float64 {
	pct := defaultCredibleMassPct
	if a.CredibleMassPct != nil {
		pct = *a.CredibleMassPct
	}
	return pct / 100
}

// Weights returns the effective fault weights: every rater defaults to 1
// unless the config overrides it.
func (a *Analysis) Weights() incident.Weights {
	w := make(incident.Weights, len(Raters))
	for _, r := range Raters {
		w[r] = 1
	}
	for r, v := range a.FaultWeights {
		w[r] = v
	}
	return w
}

// Divisor returns the effective human-baseline peer divisor.
func (a *Analysis) Divisor() float64 {
	if a.PeerDivisor != nil {
		return *a.PeerDivisor
	}
	return defaultPeerDivisor
}

// Models returns the effective exposure model per real operator, defaults
// overlaid with any configured parameters. The human baseline's derived
// model is exposed separately via HumanModel.
func (a *Analysis) Models() map[string]exposure.Model {
	out := make(map[string]exposure.Model, len(defaultModels))
	for name, m := range defaultModels {
		if p, ok := a.Operators[name]; ok {
			applyParams(&m, p)
		}
		out[name] = m
	}
	return out
}

// HumanModel returns the derived model for the synthetic human baseline.
func (a *Analysis) HumanModel() exposure.Model {
	return exposure.Model{
		Kind:    exposure.ModelDerived,
		Peer:    sgo.Waymo,
		Divisor: a.Divisor(),
	}
}

func applyParams(m *exposure.Model, p OperatorParams) {
	if p.Kind != nil {
		m.Kind = exposure.ModelKind(*p.Kind)
	}
	if p.BaseMiles != nil {
		m.BaseMiles = *p.BaseMiles
	}
	if p.BaseMilesMin != nil {
		m.BaseMilesMin = *p.BaseMilesMin
	}
	if p.BaseMilesMax != nil {
		m.BaseMilesMax = *p.BaseMilesMax
	}
	if p.DeadheadFraction != nil {
		m.DeadheadFraction = *p.DeadheadFraction
	}
	if p.FixedEraMiles != nil {
		m.FixedEraMiles = *p.FixedEraMiles
	}
	if p.QualifyingFraction != nil {
		m.QualifyingFraction = *p.QualifyingFraction
	}
}
