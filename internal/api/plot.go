package api

import (
	"fmt"
	"net/http"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/crashla/incident.report/internal/metrics"
	"github.com/crashla/incident.report/internal/monitoring"
)

type intervalData struct {
	plotter.XYs
	plotter.YErrors
}

// plotIntervals renders the same interval view as chartIntervals but as a
// static PNG, suitable for embedding in written reports.
func (s *Server) plotIntervals(w http.ResponseWriter, r *http.Request) {
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

	var names []string
	var data intervalData
	for _, e := range estimates {
		if e.Metric != metric {
			continue
		}
		i := len(names)
		names = append(names, e.Company)
		data.XYs = append(data.XYs, plotter.XY{X: float64(i), Y: e.MPI.Median})
		data.YErrors = append(data.YErrors, struct{ Low, High float64 }{
			Low:  e.MPI.Median - e.MPI.Lo,
			High: e.MPI.Hi - e.MPI.Median,
		})
	}
	if len(names) == 0 {
		s.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("No estimates for metric %q", metric))
		return
	}

	p := plot.New()
	p.Title.Text = def.Label
	p.Y.Label.Text = "Miles per incident"
	p.NominalX(names...)

	points, err := plotter.NewScatter(data.XYs)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to build plot: %v", err))
		return
	}
	points.Radius = vg.Points(3)

	bars, err := plotter.NewYErrorBars(data)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to build plot: %v", err))
		return
	}
	p.Add(points, bars)

	wt, err := p.WriterTo(10*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to render plot: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if _, err := wt.WriteTo(w); err != nil {
		monitoring.Logf("intervals plot write failed: %v", err)
	}
}
