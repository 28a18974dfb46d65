package exposure

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/crashla/incident.report/internal/sgo"
)

// ledgerHeader is the exact column sequence the exposure dataset must
// carry. An older export lacking the three incident-coverage columns is
// rejected outright rather than defaulted.
var ledgerHeader = []string{
	"company", "month", "vmt", "company_cumulative_vmt",
	"vmt_min", "vmt_max", "coverage",
	"incident_coverage", "incident_coverage_min", "incident_coverage_max",
	"rationale",
}

var legacyHeader = []string{
	"company", "month", "vmt", "company_cumulative_vmt",
	"vmt_min", "vmt_max", "rationale",
}

// Numeric fields must be plain non-negative decimals; no signs, exponents
// or locale separators.
var decimalPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// Ledger is the validated exposure dataset, keyed by (company, month).
type Ledger struct {
	rows  []Row
	byKey map[string]Row
}

func key(c sgo.Company, m sgo.Month) string { return string(c) + "|" + string(m) }

// ParseLedger reads the exposure CSV and validates every row. Validation
// is all-or-nothing: any malformed field, ordering violation, unknown
// company, or duplicate (company, month) key fails the entire parse.
func ParseLedger(r io.Reader) (*Ledger, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // field counts checked per record for better errors

	records, err := cr.ReadAll()
	if err != nil {
		return nil, sgo.E(sgo.KindMalformedInput, "exposure dataset is not valid CSV", "cause", err)
	}
	if len(records) == 0 {
		return nil, sgo.E(sgo.KindMalformedInput, "exposure dataset is empty")
	}

	header := records[0]
	if equalFields(header, legacyHeader) {
		return nil, sgo.E(sgo.KindMalformedInput,
			"exposure dataset uses the legacy header without incident-coverage columns",
			"header", strings.Join(header, ","))
	}
	if !equalFields(header, ledgerHeader) {
		return nil, sgo.E(sgo.KindMalformedInput, "exposure dataset header mismatch",
			"header", strings.Join(header, ","),
			"want", strings.Join(ledgerHeader, ","))
	}
	if len(records) == 1 {
		return nil, sgo.E(sgo.KindMalformedInput, "exposure dataset has a header but no rows")
	}

	l := &Ledger{byKey: make(map[string]Row)}
	for i, rec := range records[1:] {
		line := i + 2 // 1-based, after the header
		row, err := parseRow(rec, line)
		if err != nil {
			return nil, err
		}
		k := key(row.Company, row.Month)
		if _, dup := l.byKey[k]; dup {
			return nil, sgo.E(sgo.KindDomainInvariant, "duplicate (company, month) exposure row",
				"company", row.Company, "month", row.Month, "line", line)
		}
		l.byKey[k] = row
		l.rows = append(l.rows, row)
	}
	return l, nil
}

func parseRow(rec []string, line int) (Row, error) {
	if len(rec) != len(ledgerHeader) {
		return Row{}, sgo.E(sgo.KindMalformedInput, "exposure row has wrong field count",
			"line", line, "got", len(rec), "want", len(ledgerHeader))
	}
	month, err := sgo.ParseMonth(strings.TrimSpace(rec[1]))
	if err != nil {
		return Row{}, fmt.Errorf("exposure row line %d: %w", line, err)
	}

	nums := make([]float64, 8)
	for i, field := range rec[2:10] {
		v, err := parseDecimal(strings.TrimSpace(field), ledgerHeader[i+2], line)
		if err != nil {
			return Row{}, err
		}
		nums[i] = v
	}

	row := Row{
		Company:             sgo.Company(strings.TrimSpace(rec[0])),
		Month:               month,
		VmtBest:             nums[0],
		CumulativeVmt:       nums[1],
		VmtMin:              nums[2],
		VmtMax:              nums[3],
		Coverage:            nums[4],
		IncidentCoverage:    nums[5],
		IncidentCoverageMin: nums[6],
		IncidentCoverageMax: nums[7],
		Rationale:           rec[10],
	}
	if err := row.validate(line); err != nil {
		return Row{}, err
	}
	return row, nil
}

func parseDecimal(s, column string, line int) (float64, error) {
	if !decimalPattern.MatchString(s) {
		return 0, sgo.E(sgo.KindMalformedInput, "exposure field is not a non-negative decimal",
			"column", column, "value", s, "line", line)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, sgo.E(sgo.KindMalformedInput, "failed to parse exposure field",
			"column", column, "value", s, "line", line)
	}
	return v, nil
}

func equalFields(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if strings.TrimSpace(got[i]) != want[i] {
			return false
		}
	}
	return true
}

// Rows returns all rows in dataset order.
func (l *Ledger) Rows() []Row {
	out := make([]Row, len(l.rows))
	copy(out, l.rows)
	return out
}

// Row looks up the exposure row for one operator-month.
func (l *Ledger) Row(c sgo.Company, m sgo.Month) (Row, bool) {
	r, ok := l.byKey[key(c, m)]
	return r, ok
}

// Months returns the sorted months covered for one operator.
func (l *Ledger) Months(c sgo.Company) []sgo.Month {
	var out []sgo.Month
	for _, r := range l.rows {
		if r.Company == c {
			out = append(out, r.Month)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Covers reports whether the ledger has a row for this operator-month.
func (l *Ledger) Covers(c sgo.Company, m sgo.Month) bool {
	_, ok := l.byKey[key(c, m)]
	return ok
}
