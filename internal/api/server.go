package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/crashla/incident.report/internal/config"
	"github.com/crashla/incident.report/internal/db"
	"github.com/crashla/incident.report/internal/exposure"
	"github.com/crashla/incident.report/internal/incident"
	"github.com/crashla/incident.report/internal/metrics"
	"github.com/crashla/incident.report/internal/monitoring"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Server serves estimates, reconciled cells, and the raw datasets over
// HTTP. The datasets are immutable for the life of the process; the
// analysis config can be replaced through POST /api/config, which
// rebuilds everything derived from it under the write lock.
type Server struct {
	db      *db.DB
	ledger  *exposure.Ledger
	records []incident.Record
	defs    []metrics.Definition

	mu        sync.RWMutex
	cfg       *config.Analysis
	result    *metrics.Result
	estimates []MetricEstimate
}

func NewServer(database *db.DB, cfg *config.Analysis, ledger *exposure.Ledger, records []incident.Record) (*Server, error) {
	s := &Server{
		db:      database,
		ledger:  ledger,
		records: records,
		defs:    metrics.Defaults,
	}
	result, estimates, err := s.compute(cfg)
	if err != nil {
		return nil, err
	}
	s.cfg = cfg
	s.result = result
	s.estimates = estimates
	return s, nil
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/estimates", s.listEstimates)
	mux.HandleFunc("/api/cells", s.listCells)
	mux.HandleFunc("/api/exposure", s.listExposure)
	mux.HandleFunc("/api/incidents", s.listIncidents)
	mux.HandleFunc("/api/config", s.configHandler)
	mux.HandleFunc("/api/runs", s.listRuns)
	mux.HandleFunc("/charts/intervals", s.chartIntervals)
	mux.HandleFunc("/plots/intervals.png", s.plotIntervals)
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) listEstimates(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	s.mu.RLock()
	estimates := s.estimates
	s.mu.RUnlock()

	if metric := r.URL.Query().Get("metric"); metric != "" {
		if _, ok := metrics.ByKey(s.defs, metric); !ok {
			s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Unknown metric %q", metric))
			return
		}
		filtered := make([]MetricEstimate, 0, len(estimates))
		for _, e := range estimates {
			if e.Metric == metric {
				filtered = append(filtered, e)
			}
		}
		estimates = filtered
	}

	if err := json.NewEncoder(w).Encode(estimates); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write estimates")
		return
	}
}

func (s *Server) listCells(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	s.mu.RLock()
	result := s.result
	s.mu.RUnlock()

	if err := json.NewEncoder(w).Encode(result); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write cells")
		return
	}
}

func (s *Server) listExposure(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if err := json.NewEncoder(w).Encode(s.ledger.Rows()); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write exposure rows")
		return
	}
}

func (s *Server) listIncidents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if err := json.NewEncoder(w).Encode(s.records); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write incidents")
		return
	}
}

// listRuns serves the persisted run history: the recent runs by default,
// or one run's estimate rows when ?run= names it.
func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.db == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "Run history requires a database")
		return
	}

	if runID := r.URL.Query().Get("run"); runID != "" {
		rows, err := s.db.RunEstimates(runID)
		if err != nil {
			s.writeJSONError(w, http.StatusInternalServerError,
				fmt.Sprintf("Failed to retrieve run estimates: %v", err))
			return
		}
		if len(rows) == 0 {
			s.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("Unknown run %q", runID))
			return
		}
		if err := json.NewEncoder(w).Encode(rows); err != nil {
			s.writeJSONError(w, http.StatusInternalServerError, "Failed to write run estimates")
		}
		return
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}
	runs, err := s.db.RecentRuns(limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve runs: %v", err))
		return
	}
	if err := json.NewEncoder(w).Encode(runs); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write runs")
	}
}

func (s *Server) configHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case http.MethodGet:
		s.mu.RLock()
		cfg := s.cfg
		s.mu.RUnlock()
		if err := json.NewEncoder(w).Encode(cfg); err != nil {
			s.writeJSONError(w, http.StatusInternalServerError, "Failed to write config")
		}
	case http.MethodPost:
		s.updateConfig(w, r)
	default:
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// updateConfig overlays the posted partial config on the current one,
// validates the merge, and rebuilds cells and estimates. The swap is
// all-or-nothing: a config that fails validation or estimation leaves
// the server on the previous one.
func (s *Server) updateConfig(w http.ResponseWriter, r *http.Request) {
	var partial config.Analysis
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&partial); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid config body: %v", err))
		return
	}

	s.mu.RLock()
	merged := s.cfg.Merge(&partial)
	s.mu.RUnlock()

	if err := merged.Validate(); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid config: %v", err))
		return
	}

	result, estimates, err := s.compute(merged)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Config rejected: %v", err))
		return
	}

	runID, err := s.persistRun(merged, estimates)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to record run: %v", err))
		return
	}

	s.mu.Lock()
	s.cfg = merged
	s.result = result
	s.estimates = estimates
	s.mu.Unlock()

	resp := map[string]any{"config": merged}
	if runID != "" {
		resp["runId"] = runID
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write config")
	}
}

func (s *Server) persistRun(cfg *config.Analysis, estimates []MetricEstimate) (string, error) {
	if s.db == nil {
		return "", nil
	}
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	rows := make([]db.EstimateRow, 0, len(estimates))
	for _, e := range estimates {
		rows = append(rows, db.EstimateRow{
			Company:      e.Company,
			Metric:       e.Metric,
			Count:        e.Count,
			ExposureBest: e.Miles,
			Median:       e.MPI.Median,
			Lo:           e.MPI.Lo,
			Hi:           e.MPI.Hi,
		})
	}
	return s.db.RecordRun(string(cfgJSON), rows)
}
