package incident

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crashla/incident.report/internal/sgo"
)

var testRaters = []string{"claude", "codex", "gemini"}

func recordJSONf(overrides map[string]string) string {
	fields := map[string]string{
		"reportId":         `"W-001"`,
		"company":          `"Waymo"`,
		"date":             `"JUN-2025"`,
		"speed":            `12`,
		"road":             `"Street"`,
		"crashWith":        `"Passenger Car"`,
		"severity":         `"Minor"`,
		"vehiclesInvolved": `2`,
		"airbagDeployed":   `true`,
		"fault":            `{"claude":0.5,"codex":1,"gemini":0,"rclaude":"ambiguous","rcodex":"AV merged","rgemini":"other car merged"}`,
	}
	for k, v := range overrides {
		fields[k] = v
	}
	parts := make([]string, 0, len(fields))
	for _, k := range []string{"reportId", "company", "date", "speed", "road", "crashWith", "severity", "vehiclesInvolved", "airbagDeployed", "fault"} {
		parts = append(parts, fmt.Sprintf("%q:%s", k, fields[k]))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func TestParseRecords(t *testing.T) {
	t.Parallel()

	recs, err := ParseRecords(strings.NewReader("["+recordJSONf(nil)+"]"), testRaters)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	r := recs[0]
	assert.Equal(t, "W-001", r.ReportID)
	assert.Equal(t, sgo.Waymo, r.Company)
	assert.Equal(t, sgo.Month("2025-06"), r.Month)
	require.NotNil(t, r.Speed)
	assert.Equal(t, 12.0, *r.Speed)
	assert.Equal(t, "Passenger Car", r.CrashWith)
	assert.Equal(t, sgo.SeverityMinor, r.Severity)
	assert.Equal(t, 2, r.VehiclesInvolved)
	assert.True(t, r.AirbagDeployed)
	assert.Equal(t, testRaters, r.Raters())
	assert.Equal(t, Judgment{Fraction: 1, Reasoning: "AV merged"}, r.Fault["codex"])
}

func TestParseRecordsNullSpeed(t *testing.T) {
	t.Parallel()

	recs, err := ParseRecords(strings.NewReader("["+recordJSONf(map[string]string{"speed": "null"})+"]"), testRaters)
	require.NoError(t, err)
	assert.Nil(t, recs[0].Speed)
}

func TestParseRecordsRejects(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		overrides map[string]string
		kind      sgo.Kind
	}{
		{"unknown company", map[string]string{"company": `"Cruise"`}, sgo.KindMalformedInput},
		{"bad month label", map[string]string{"date": `"2025-06"`}, sgo.KindMalformedInput},
		{"empty road", map[string]string{"road": `""`}, sgo.KindMalformedInput},
		{"severity outside taxonomy", map[string]string{"severity": `"Catastrophic"`}, sgo.KindMalformedInput},
		{"zero vehicles", map[string]string{"vehiclesInvolved": `0`}, sgo.KindDomainInvariant},
		{"negative speed", map[string]string{"speed": `-3`}, sgo.KindMalformedInput},
		{"missing rater", map[string]string{"fault": `{"claude":0.5,"codex":1}`}, sgo.KindMalformedInput},
		{"fault fraction above one", map[string]string{"fault": `{"claude":1.5,"codex":1,"gemini":0}`}, sgo.KindDomainInvariant},
		{"non-numeric fault fraction", map[string]string{"fault": `{"claude":"half","codex":1,"gemini":0}`}, sgo.KindMalformedInput},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseRecords(strings.NewReader("["+recordJSONf(c.overrides)+"]"), testRaters)
			require.Error(t, err)
			assert.True(t, sgo.IsKind(err, c.kind), "got %v", err)
		})
	}
}

func TestParseRecordsRejectsDuplicatesAndEmpty(t *testing.T) {
	t.Parallel()

	doc := "[" + recordJSONf(nil) + "," + recordJSONf(nil) + "]"
	_, err := ParseRecords(strings.NewReader(doc), testRaters)
	require.Error(t, err)
	assert.True(t, sgo.IsKind(err, sgo.KindDomainInvariant))

	_, err = ParseRecords(strings.NewReader("[]"), testRaters)
	require.Error(t, err)
	assert.True(t, sgo.IsKind(err, sgo.KindMalformedInput))

	_, err = ParseRecords(strings.NewReader("not json"), testRaters)
	require.Error(t, err)
	assert.True(t, sgo.IsKind(err, sgo.KindMalformedInput))
}
