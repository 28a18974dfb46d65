// Package sgo holds the shared vocabulary for NHTSA Standing General Order
// crash data: operator identities, month keys, and the injury severity
// taxonomy used by the classifier and the exposure ledger.
package sgo

import (
	"fmt"
	"strings"
	"time"
)

// Company identifies one AV fleet operator under comparison.
type Company string

// Known operators. The ledger and the incident loader reject any name
// outside this set.
const (
	Waymo Company = "Waymo"
	Tesla Company = "Tesla"
	Zoox  Company = "Zoox"
)

// Companies lists all recognised operators in display order.
var Companies = []Company{Waymo, Tesla, Zoox}

// KnownCompany reports whether name is a recognised operator.
func KnownCompany(name string) bool {
	for _, c := range Companies {
		if string(c) == name {
			return true
		}
	}
	return false
}

// Month is a calendar month keyed as "YYYY-MM". The exposure dataset uses
// this key directly; incident records carry an "MMM-YYYY" label that is
// canonicalised on load.
type Month string

// ParseMonth validates a "YYYY-MM" key.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return "", E(KindMalformedInput, "month must be YYYY-MM", "month", s)
	}
	return Month(t.Format("2006-01")), nil
}

// ParseMonthLabel converts an incident-style "MMM-YYYY" label (for example
// "JUN-2025") into a canonical Month key.
func ParseMonthLabel(s string) (Month, error) {
	t, err := time.Parse("Jan-2006", capitalise(s))
	if err != nil {
		return "", E(KindMalformedInput, "month label must be MMM-YYYY", "label", s)
	}
	return Month(t.Format("2006-01")), nil
}

func capitalise(s string) string {
	if len(s) < 3 {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:3]) + s[3:]
}

// Label renders the month in the incident dataset's "MMM-YYYY" form.
func (m Month) Label() string {
	t, err := time.Parse("2006-01", string(m))
	if err != nil {
		return string(m)
	}
	return strings.ToUpper(t.Format("Jan-2006"))
}

// Severity is the highest injury severity alleged for an incident, from
// the SGO closed taxonomy. The order of the constants is the order of the
// taxonomy; comparisons on the numeric rank drive injury-tier predicates.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityMinor
	SeverityMinorHospitalized
	SeverityModerate
	SeverityModerateHospitalized
	SeverityFatal
)

var severityNames = map[string]Severity{
	"No Injuries Reported":  SeverityNone,
	"Minor":                 SeverityMinor,
	"Minor-Hospitalized":    SeverityMinorHospitalized,
	"Moderate":              SeverityModerate,
	"Moderate-Hospitalized": SeverityModerateHospitalized,
	"Fatality":              SeverityFatal,
}

// ParseSeverity maps a severity string from the closed taxonomy. Any other
// value, including empty, is a malformed-input error.
func ParseSeverity(s string) (Severity, error) {
	sev, ok := severityNames[s]
	if !ok {
		return 0, E(KindMalformedInput, "unknown injury severity", "severity", s)
	}
	return sev, nil
}

// String returns the taxonomy name for the severity.
func (s Severity) String() string {
	for name, sev := range severityNames {
		if sev == s {
			return name
		}
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}
