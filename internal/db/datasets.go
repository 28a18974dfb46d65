package db

import (
	"encoding/json"
	"fmt"

	"github.com/crashla/incident.report/internal/exposure"
	"github.com/crashla/incident.report/internal/incident"
	"github.com/crashla/incident.report/internal/sgo"
)

// ReplaceExposureRows swaps the stored exposure dataset for rows, in one
// transaction. The dataset is always replaced whole: partial updates
// would let the stored ledger drift from the validated one.
func (db *DB) ReplaceExposureRows(rows []exposure.Row) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM exposure_rows`); err != nil {
		return fmt.Errorf("failed to clear exposure rows: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT INTO exposure_rows (
			company, month, vmt, company_cumulative_vmt, vmt_min, vmt_max,
			coverage, incident_coverage, incident_coverage_min, incident_coverage_max,
			rationale
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare exposure insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		_, err := stmt.Exec(
			string(r.Company), string(r.Month),
			r.VmtBest, r.CumulativeVmt, r.VmtMin, r.VmtMax,
			r.Coverage, r.IncidentCoverage, r.IncidentCoverageMin, r.IncidentCoverageMax,
			r.Rationale,
		)
		if err != nil {
			return fmt.Errorf("failed to insert exposure row %s %s: %w", r.Company, r.Month, err)
		}
	}
	return tx.Commit()
}

// ListExposureRows returns all stored exposure rows ordered by company
// then month.
func (db *DB) ListExposureRows() ([]exposure.Row, error) {
	rows, err := db.Query(`
		SELECT company, month, vmt, company_cumulative_vmt, vmt_min, vmt_max,
		       coverage, incident_coverage, incident_coverage_min, incident_coverage_max,
		       rationale
		FROM exposure_rows
		ORDER BY company, month
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query exposure rows: %w", err)
	}
	defer rows.Close()

	var out []exposure.Row
	for rows.Next() {
		var r exposure.Row
		var company, month string
		err := rows.Scan(
			&company, &month,
			&r.VmtBest, &r.CumulativeVmt, &r.VmtMin, &r.VmtMax,
			&r.Coverage, &r.IncidentCoverage, &r.IncidentCoverageMin, &r.IncidentCoverageMax,
			&r.Rationale,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan exposure row: %w", err)
		}
		r.Company = sgo.Company(company)
		r.Month = sgo.Month(month)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ReplaceIncidents swaps the stored incident dataset for records, in one
// transaction. Fault judgments are stored as JSON alongside each record.
func (db *DB) ReplaceIncidents(records []incident.Record) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM incidents`); err != nil {
		return fmt.Errorf("failed to clear incidents: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT INTO incidents (
			report_id, company, month, speed, road, crash_with, severity,
			vehicles_involved, airbag_deployed, fault_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare incident insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		faultJSON, err := json.Marshal(rec.Fault)
		if err != nil {
			return fmt.Errorf("failed to encode fault judgments for %s: %w", rec.ReportID, err)
		}
		_, err = stmt.Exec(
			rec.ReportID, string(rec.Company), string(rec.Month),
			rec.Speed, rec.Road, rec.CrashWith, rec.Severity.String(),
			rec.VehiclesInvolved, rec.AirbagDeployed, string(faultJSON),
		)
		if err != nil {
			return fmt.Errorf("failed to insert incident %s: %w", rec.ReportID, err)
		}
	}
	return tx.Commit()
}

// ListIncidents returns all stored incident records ordered by company,
// month, then report ID.
func (db *DB) ListIncidents() ([]incident.Record, error) {
	rows, err := db.Query(`
		SELECT report_id, company, month, speed, road, crash_with, severity,
		       vehicles_involved, airbag_deployed, fault_json
		FROM incidents
		ORDER BY company, month, report_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query incidents: %w", err)
	}
	defer rows.Close()

	var out []incident.Record
	for rows.Next() {
		var rec incident.Record
		var company, month, severity, faultJSON string
		err := rows.Scan(
			&rec.ReportID, &company, &month, &rec.Speed, &rec.Road, &rec.CrashWith, &severity,
			&rec.VehiclesInvolved, &rec.AirbagDeployed, &faultJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan incident: %w", err)
		}
		rec.Company = sgo.Company(company)
		rec.Month = sgo.Month(month)
		sev, err := sgo.ParseSeverity(severity)
		if err != nil {
			return nil, fmt.Errorf("stored incident %s: %w", rec.ReportID, err)
		}
		rec.Severity = sev
		if err := json.Unmarshal([]byte(faultJSON), &rec.Fault); err != nil {
			return nil, fmt.Errorf("failed to decode fault judgments for %s: %w", rec.ReportID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
