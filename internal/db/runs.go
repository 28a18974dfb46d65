package db

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run is one recorded reconciliation+estimation pass: the configuration
// it ran under and when.
type Run struct {
	ID         string    `json:"run_id"`
	CreatedAt  time.Time `json:"created_at"`
	ConfigJSON string    `json:"config_json"`
}

// EstimateRow is one persisted (company, metric) interval from a run.
type EstimateRow struct {
	Company      string  `json:"company"`
	Metric       string  `json:"metric"`
	Count        float64 `json:"count"`
	ExposureBest float64 `json:"exposure_best"`
	Median       float64 `json:"median"`
	Lo           float64 `json:"lo"`
	Hi           float64 `json:"hi"`
}

// RecordRun persists a run and its estimates atomically, returning the
// generated run ID.
func (db *DB) RecordRun(configJSON string, estimates []EstimateRow) (string, error) {
	runID := uuid.NewString()

	tx, err := db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO runs (run_id, config_json) VALUES (?, ?)`,
		runID, configJSON,
	); err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO run_estimates (
			run_id, company, metric, incident_count, exposure_best, median, lo, hi
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare estimate insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range estimates {
		if _, err := stmt.Exec(
			runID, e.Company, e.Metric, e.Count, e.ExposureBest, e.Median, e.Lo, e.Hi,
		); err != nil {
			return "", fmt.Errorf("failed to insert estimate %s/%s: %w", e.Company, e.Metric, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}
	return runID, nil
}

// RecentRuns returns the most recent limit runs, newest first.
func (db *DB) RecentRuns(limit int) ([]Run, error) {
	rows, err := db.Query(`
		SELECT run_id, created_at, config_json
		FROM runs
		ORDER BY created_at DESC, run_id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.ConfigJSON); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RunEstimates returns the persisted estimates for one run.
func (db *DB) RunEstimates(runID string) ([]EstimateRow, error) {
	rows, err := db.Query(`
		SELECT company, metric, incident_count, exposure_best, median, lo, hi
		FROM run_estimates
		WHERE run_id = ?
		ORDER BY company, metric
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run estimates: %w", err)
	}
	defer rows.Close()

	var out []EstimateRow
	for rows.Next() {
		var e EstimateRow
		if err := rows.Scan(&e.Company, &e.Metric, &e.Count, &e.ExposureBest, &e.Median, &e.Lo, &e.Hi); err != nil {
			return nil, fmt.Errorf("failed to scan run estimate: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
