package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/crashla/incident.report/internal/metrics"
)

// chartIntervals renders an interactive miles-per-incident chart for one
// metric: the median per company with the credible bounds alongside.
func (s *Server) chartIntervals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	metric := r.URL.Query().Get("metric")
	if metric == "" {
		metric = "any"
	}
	def, ok := metrics.ByKey(s.defs, metric)
	if !ok {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Unknown metric %q", metric))
		return
	}

	s.mu.RLock()
	estimates := s.estimates
	s.mu.RUnlock()

	var companies []string
	var lo, median, hi []opts.ScatterData
	for _, e := range estimates {
		if e.Metric != metric {
			continue
		}
		companies = append(companies, e.Company)
		lo = append(lo, opts.ScatterData{Value: e.MPI.Lo, SymbolSize: 8})
		median = append(median, opts.ScatterData{Value: e.MPI.Median, SymbolSize: 14})
		hi = append(hi, opts.ScatterData{Value: e.MPI.Hi, SymbolSize: 8})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Miles per Incident", Width: "1100px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{Title: def.Label, Subtitle: "median with credible bounds, miles per incident"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Type: "log", Name: "Miles per incident"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	scatter.SetXAxis(companies).
		AddSeries("lower bound", lo).
		AddSeries("median", median).
		AddSeries("upper bound", hi)

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}
