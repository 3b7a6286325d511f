package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"usage-analytics/internal/model"
)

var db *sql.DB

// Initialize DB connection
func InitDB(dbPath string) error {
	var err error
	db, err = sql.Open("sqlite3", dbPath)
	if err != nil {
		return err
	}

	// Create tables if not exists
	loadTable := `
	CREATE TABLE IF NOT EXISTS loads (
		id TEXT PRIMARY KEY,
		cache_key TEXT,
		origin TEXT,
		companies INTEGER,
		exclusion TEXT,
		stages TEXT,
		duration_ms INTEGER,
		built_at DATETIME
	);
	`
	tableTable := `
	CREATE TABLE IF NOT EXISTS load_tables (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		load_id TEXT,
		table_name TEXT,
		file TEXT,
		status TEXT,
		rows INTEGER,
		skipped INTEGER,
		duration_ms INTEGER,
		error_message TEXT
	);
	`

	if _, err := db.Exec(loadTable); err != nil {
		return err
	}
	if _, err := db.Exec(tableTable); err != nil {
		return err
	}

	return nil
}

// Enabled reports whether a history database is open.
func Enabled() bool {
	return db != nil
}

// Close closes the database; history recording stops.
func Close() error {
	if db == nil {
		return nil
	}
	err := db.Close()
	db = nil
	return err
}

// SaveLoad records one snapshot build and its table reports
func SaveLoad(report model.LoadReport) error {
	if db == nil {
		return fmt.Errorf("store not initialized")
	}
	exclusionJSON, err := json.Marshal(report.Exclusion)
	if err != nil {
		return err
	}
	stagesJSON, err := json.Marshal(report.Stages)
	if err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO loads (id, cache_key, origin, companies, exclusion, stages, duration_ms, built_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		report.SnapshotID, report.Key, report.Origin, report.Companies, string(exclusionJSON), string(stagesJSON),
		report.Duration.Milliseconds(), report.BuiltAt.UTC())
	if err != nil {
		return fmt.Errorf("insert load: %w", err)
	}
	for _, t := range report.Tables {
		_, err = tx.Exec(`INSERT INTO load_tables (load_id, table_name, file, status, rows, skipped, duration_ms, error_message) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			report.SnapshotID, t.Table, t.File, t.Status, t.Rows, t.Skipped, t.Duration.Milliseconds(), t.Error)
		if err != nil {
			return fmt.Errorf("insert load table %s: %w", t.Table, err)
		}
	}
	return tx.Commit()
}

// ListLoads returns the most recent loads, newest first, without their
// table reports
func ListLoads(limit int) ([]model.LoadReport, error) {
	if db == nil {
		return nil, fmt.Errorf("store not initialized")
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`SELECT id, cache_key, origin, companies, exclusion, stages, duration_ms, built_at FROM loads ORDER BY built_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	loads := []model.LoadReport{}
	for rows.Next() {
		r, err := scanLoad(rows)
		if err != nil {
			return nil, err
		}
		loads = append(loads, r)
	}
	return loads, rows.Err()
}

// GetLoad fetches one load with its table reports
func GetLoad(id string) (model.LoadReport, error) {
	if db == nil {
		return model.LoadReport{}, fmt.Errorf("store not initialized")
	}
	row := db.QueryRow(`SELECT id, cache_key, origin, companies, exclusion, stages, duration_ms, built_at FROM loads WHERE id = ?`, id)
	report, err := scanLoad(row)
	if err != nil {
		return model.LoadReport{}, err
	}

	rows, err := db.Query(`SELECT table_name, file, status, rows, skipped, duration_ms, error_message FROM load_tables WHERE load_id = ? ORDER BY id`, id)
	if err != nil {
		return model.LoadReport{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var t model.TableReport
		var durationMS int64
		if err := rows.Scan(&t.Table, &t.File, &t.Status, &t.Rows, &t.Skipped, &durationMS, &t.Error); err != nil {
			return model.LoadReport{}, err
		}
		t.Duration = time.Duration(durationMS) * time.Millisecond
		report.Tables = append(report.Tables, t)
	}
	return report, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanLoad(s scanner) (model.LoadReport, error) {
	var r model.LoadReport
	var exclusionJSON, stagesJSON string
	var durationMS int64
	if err := s.Scan(&r.SnapshotID, &r.Key, &r.Origin, &r.Companies, &exclusionJSON, &stagesJSON, &durationMS, &r.BuiltAt); err != nil {
		return r, err
	}
	r.Duration = time.Duration(durationMS) * time.Millisecond
	if err := json.Unmarshal([]byte(exclusionJSON), &r.Exclusion); err != nil {
		return r, err
	}
	if err := json.Unmarshal([]byte(stagesJSON), &r.Stages); err != nil {
		return r, err
	}
	return r, nil
}
