package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crashla/incident.report/internal/config"
	"github.com/crashla/incident.report/internal/db"
	"github.com/crashla/incident.report/internal/exposure"
	"github.com/crashla/incident.report/internal/incident"
	"github.com/crashla/incident.report/internal/metrics"
	"github.com/crashla/incident.report/internal/sgo"
)

const testLedgerCSV = `company,month,vmt,company_cumulative_vmt,vmt_min,vmt_max,coverage,incident_coverage,incident_coverage_min,incident_coverage_max,rationale
Waymo,2025-06,2000000,10000000,1800000,2200000,1,0.9,0.8,1,monthly report
Tesla,2025-06,500000,2000000,400000,600000,0.5,1,1,1,partial month
`

func testRecords(t *testing.T) []incident.Record {
	t.Helper()
	fault := map[string]incident.Judgment{
		"claude": {Fraction: 1, Reasoning: "subject vehicle rear-ended a stopped car"},
		"codex":  {Fraction: 0.5, Reasoning: "shared fault with the other driver"},
		"gemini": {Fraction: 1, Reasoning: "failed to yield"},
	}
	speed := 25.0
	return []incident.Record{
		{
			ReportID:         "W-100",
			Company:          sgo.Waymo,
			Month:            "2025-06",
			Speed:            &speed,
			Road:             "Street",
			Severity:         sgo.SeverityMinor,
			VehiclesInvolved: 2,
			Fault:            fault,
		},
		{
			ReportID:         "T-100",
			Company:          sgo.Tesla,
			Month:            "2025-06",
			Road:             "Highway",
			Severity:         sgo.SeverityNone,
			VehiclesInvolved: 1,
			Fault:            fault,
		},
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	ledger, err := exposure.ParseLedger(strings.NewReader(testLedgerCSV))
	require.NoError(t, err)
	s, err := NewServer(nil, &config.Analysis{}, ledger, testRecords(t))
	require.NoError(t, err)
	return s
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestListEstimates(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := get(t, s, "/api/estimates")
	require.Equal(t, http.StatusOK, rec.Code)

	var estimates []MetricEstimate
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&estimates))

	// Two companies plus the derived human rows, one per metric.
	assert.Len(t, estimates, 3*len(metrics.Defaults))

	seen := map[string]bool{}
	for _, e := range estimates {
		seen[e.Company] = true
		if e.Count > 0 {
			assert.Greater(t, e.MPI.Hi, e.MPI.Lo, "%s/%s", e.Company, e.Metric)
			assert.LessOrEqual(t, e.MPI.Lo, e.MPI.Median)
		}
	}
	assert.True(t, seen["Waymo"])
	assert.True(t, seen["Tesla"])
	assert.True(t, seen[HumanCompany])
}

func TestListEstimatesMetricFilter(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := get(t, s, "/api/estimates?metric=injury")
	require.Equal(t, http.StatusOK, rec.Code)

	var estimates []MetricEstimate
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&estimates))
	require.NotEmpty(t, estimates)
	for _, e := range estimates {
		assert.Equal(t, "injury", e.Metric)
	}

	rec = get(t, s, "/api/estimates?metric=nope")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHumanBaselineScaling(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	var waymo, human *MetricEstimate
	for i := range s.estimates {
		e := &s.estimates[i]
		if e.Metric != "any" {
			continue
		}
		switch e.Company {
		case "Waymo":
			waymo = e
		case HumanCompany:
			human = e
		}
	}
	require.NotNil(t, waymo)
	require.NotNil(t, human)

	// Default divisor is 4.
	assert.InDelta(t, waymo.MPI.Median/4, human.MPI.Median, waymo.MPI.Median*1e-12)
	assert.InDelta(t, waymo.Miles/4, human.Miles, 1e-6)
}

func TestListCellsAndDatasets(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := get(t, s, "/api/cells")
	require.Equal(t, http.StatusOK, rec.Code)
	var result metrics.Result
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Len(t, result.Cells, 2*len(metrics.Defaults))

	rec = get(t, s, "/api/exposure")
	require.Equal(t, http.StatusOK, rec.Code)
	var rows []exposure.Row
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&rows))
	assert.Len(t, rows, 2)

	rec = get(t, s, "/api/incidents")
	require.Equal(t, http.StatusOK, rec.Code)
	var records []incident.Record
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&records))
	assert.Len(t, records, 2)
}

func TestConfigRoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := get(t, s, "/api/config")
	require.Equal(t, http.StatusOK, rec.Code)

	before := make([]MetricEstimate, len(s.estimates))
	copy(before, s.estimates)

	body := strings.NewReader(`{"credible_mass_pct": 95}`)
	rec = httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/config", body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.NotNil(t, s.cfg.CredibleMassPct)
	assert.Equal(t, 95.0, *s.cfg.CredibleMassPct)

	// Widening the credible mass must widen every non-degenerate interval.
	for i, e := range s.estimates {
		if e.Count == 0 {
			continue
		}
		prev := before[i]
		assert.Greater(t, e.MPI.Hi-e.MPI.Lo, prev.MPI.Hi-prev.MPI.Lo, "%s/%s", e.Company, e.Metric)
	}
}

func TestConfigOperatorModelMovesEstimate(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	anyEstimate := func(company string) MetricEstimate {
		for _, e := range s.Estimates() {
			if e.Company == company && e.Metric == "any" {
				return e
			}
		}
		t.Fatalf("no 'any' estimate for %s", company)
		return MetricEstimate{}
	}
	before := anyEstimate("Waymo")
	teslaBefore := anyEstimate("Tesla")

	// Ten times the base miles, same counts: MPI scales linearly.
	body := strings.NewReader(`{"operators":{"Waymo":{"base_miles":5e8}}}`)
	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/config", body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	after := anyEstimate("Waymo")
	require.NotEqual(t, before.MPI.Median, after.MPI.Median)
	assert.InEpsilon(t, before.MPI.Median*10, after.MPI.Median, 1e-9)
	assert.InEpsilon(t, before.Miles*10, after.Miles, 1e-9)

	// The derived human baseline tracks its peer.
	human := anyEstimate(HumanCompany)
	assert.InEpsilon(t, after.MPI.Median/4, human.MPI.Median, 1e-9)

	// A non-peer operator's estimate is untouched.
	tesla := anyEstimate("Tesla")
	assert.Equal(t, teslaBefore.MPI, tesla.MPI)
}

func TestEstimateBoundsTrackExposureRange(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	// Waymo's model range is asymmetric around its best estimate, so the
	// bounds must come from the min/max exposure, not the best alone.
	for _, e := range s.Estimates() {
		if e.Company != "Waymo" || e.Count == 0 {
			continue
		}
		assert.Less(t, e.MPI.Lo, e.MPI.Median, e.Metric)
		assert.Greater(t, e.MPI.Hi, e.MPI.Median, e.Metric)
	}
}

func TestConfigRejectsInvalid(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	prevCfg := s.cfg

	for _, body := range []string{
		`{"credible_mass_pct": 10}`,
		`{"peer_divisor": 40}`,
		`{"fault_weights": {"claude": -1}}`,
		`{"bogus_field": 1}`,
		`not json`,
	} {
		rec := httptest.NewRecorder()
		s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/config", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}

	// A rejected config leaves the server untouched.
	assert.Same(t, prevCfg, s.cfg)
}

func TestListRunsEndpoint(t *testing.T) {
	t.Parallel()

	database, err := db.NewDB(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.MigrateUp("../../migrations"))

	ledger, err := exposure.ParseLedger(strings.NewReader(testLedgerCSV))
	require.NoError(t, err)
	s, err := NewServer(database, &config.Analysis{}, ledger, testRecords(t))
	require.NoError(t, err)

	runID, err := s.Snapshot()
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	rec := get(t, s, "/api/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []db.Run
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&runs))
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].ID)

	rec = get(t, s, "/api/runs?run="+runID)
	require.Equal(t, http.StatusOK, rec.Code)
	var rows []db.EstimateRow
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&rows))
	assert.Len(t, rows, len(s.Estimates()))

	rec = get(t, s, "/api/runs?run=nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(t, s, "/api/runs?limit=bogus")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRunsWithoutDatabase(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := get(t, s, "/api/runs")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestChartAndPlotEndpoints(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := get(t, s, "/charts/intervals")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "echarts")

	rec = get(t, s, "/plots/intervals.png")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.NotZero(t, rec.Body.Len())

	rec = get(t, s, "/charts/intervals?metric=nope")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	for _, path := range []string{"/api/estimates", "/api/cells", "/api/exposure", "/api/incidents"} {
		rec := httptest.NewRecorder()
		s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, path)
	}
}
