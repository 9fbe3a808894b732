package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	created_at  TEXT NOT NULL,
	meta_json   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS ticks (
	run_id        TEXT NOT NULL,
	tick          INTEGER NOT NULL,
	time          REAL NOT NULL,
	error         REAL,
	fallback      INTEGER NOT NULL,
	faults        INTEGER NOT NULL,
	readings_json TEXT NOT NULL,
	outputs_json  TEXT NOT NULL,
	params_json   TEXT,
	PRIMARY KEY (run_id, tick),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);
`

// SQLite keeps every run in one database file.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database and runs migrations.
func NewSQLite(dbPath string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Save(meta RunMetadata, rows []TickRow) (string, error) {
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	if meta.ID == "" {
		meta.ID = NewRunID(meta.Plant, meta.Timestamp)
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (run_id, created_at, meta_json) VALUES (?, ?, ?)`,
		meta.ID, meta.Timestamp.UTC().Format(time.RFC3339Nano), string(metaJSON),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO ticks (run_id, tick, time, error, fallback, faults, readings_json, outputs_json, params_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return "", fmt.Errorf("prepare tick insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		readings, err := json.Marshal(r.Readings)
		if err != nil {
			return "", fmt.Errorf("marshal readings: %w", err)
		}
		outputs, err := json.Marshal(r.Outputs)
		if err != nil {
			return "", fmt.Errorf("marshal outputs: %w", err)
		}
		var params any
		if len(r.Params) > 0 {
			b, err := json.Marshal(r.Params)
			if err != nil {
				return "", fmt.Errorf("marshal params: %w", err)
			}
			params = string(b)
		}
		var errVal any
		if r.HasError {
			errVal = r.Error
		}
		if _, err := stmt.Exec(meta.ID, int64(r.Tick), r.Time, errVal, r.Fallback, r.Faults,
			string(readings), string(outputs), params); err != nil {
			return "", fmt.Errorf("insert tick %d: %w", r.Tick, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return meta.ID, nil
}

func (s *SQLite) List() ([]RunMetadata, error) {
	rows, err := s.db.Query(`SELECT meta_json FROM runs ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]RunMetadata, 0)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		var meta RunMetadata
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			return nil, fmt.Errorf("unmarshal run: %w", err)
		}
		runs = append(runs, meta)
	}
	return runs, rows.Err()
}

func (s *SQLite) Load(runID string) (*RunMetadata, error) {
	var raw string
	err := s.db.QueryRow(`SELECT meta_json FROM runs WHERE run_id = ?`, runID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	var meta RunMetadata
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil, fmt.Errorf("unmarshal run: %w", err)
	}
	return &meta, nil
}

func (s *SQLite) LoadTicks(runID string) ([]TickRow, error) {
	if _, err := s.Load(runID); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(
		`SELECT tick, time, error, fallback, faults, readings_json, outputs_json, params_json
		 FROM ticks WHERE run_id = ? ORDER BY tick`, runID)
	if err != nil {
		return nil, fmt.Errorf("query ticks: %w", err)
	}
	defer rows.Close()

	out := make([]TickRow, 0)
	for rows.Next() {
		var (
			r                 TickRow
			tick              int64
			errVal            sql.NullFloat64
			readings, outputs string
			params            sql.NullString
		)
		if err := rows.Scan(&tick, &r.Time, &errVal, &r.Fallback, &r.Faults, &readings, &outputs, &params); err != nil {
			return nil, fmt.Errorf("scan tick: %w", err)
		}
		r.Tick = uint64(tick)
		r.Error, r.HasError = errVal.Float64, errVal.Valid
		if err := json.Unmarshal([]byte(readings), &r.Readings); err != nil {
			return nil, fmt.Errorf("unmarshal readings: %w", err)
		}
		if err := json.Unmarshal([]byte(outputs), &r.Outputs); err != nil {
			return nil, fmt.Errorf("unmarshal outputs: %w", err)
		}
		if params.Valid {
			if err := json.Unmarshal([]byte(params.String), &r.Params); err != nil {
				return nil, fmt.Errorf("unmarshal params: %w", err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
