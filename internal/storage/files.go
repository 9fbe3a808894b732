package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	colIn    = "in."
	colOut   = "out."
	colParam = "param."
)

// Store keeps one directory per run under baseDir.
type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Close() error { return nil }

func (s *Store) Save(meta RunMetadata, rows []TickRow) (string, error) {
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	if meta.ID == "" {
		meta.ID = NewRunID(meta.Plant, meta.Timestamp)
	}
	runDir := filepath.Join(s.baseDir, meta.ID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "ticks.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	if err := writeRows(w, rows); err != nil {
		return "", err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return meta.ID, nil
}

func writeRows(w *csv.Writer, rows []TickRow) error {
	ins := sortedKeys(rows, func(r TickRow) map[string]float64 { return r.Readings })
	outs := sortedKeys(rows, func(r TickRow) map[string]float64 { return r.Outputs })
	params := sortedKeys(rows, func(r TickRow) map[string]float64 { return r.Params })

	header := []string{"tick", "time", "error", "fallback", "faults"}
	for _, k := range ins {
		header = append(header, colIn+k)
	}
	for _, k := range outs {
		header = append(header, colOut+k)
	}
	for _, k := range params {
		header = append(header, colParam+k)
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, r := range rows {
		rec := []string{
			strconv.FormatUint(r.Tick, 10),
			formatFloat(r.Time),
			"",
			strconv.FormatBool(r.Fallback),
			strconv.Itoa(r.Faults),
		}
		if r.HasError {
			rec[2] = formatFloat(r.Error)
		}
		rec = appendCells(rec, ins, r.Readings)
		rec = appendCells(rec, outs, r.Outputs)
		rec = appendCells(rec, params, r.Params)
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

func appendCells(rec []string, keys []string, vals map[string]float64) []string {
	for _, k := range keys {
		if v, ok := vals[k]; ok {
			rec = append(rec, formatFloat(v))
		} else {
			rec = append(rec, "")
		}
	}
	return rec
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sortRuns(runs)
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *Store) LoadTicks(runID string) ([]TickRow, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "ticks.csv"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []TickRow{}, nil
	}

	header := records[0]
	rows := make([]TickRow, 0, len(records)-1)
	for line, rec := range records[1:] {
		row, err := parseRow(header, rec)
		if err != nil {
			return nil, fmt.Errorf("ticks.csv line %d: %w", line+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseRow(header, rec []string) (TickRow, error) {
	row := TickRow{
		Readings: map[string]float64{},
		Outputs:  map[string]float64{},
		Params:   map[string]float64{},
	}
	var err error
	for i, col := range header {
		if i >= len(rec) || rec[i] == "" {
			continue
		}
		cell := rec[i]
		switch {
		case col == "tick":
			row.Tick, err = strconv.ParseUint(cell, 10, 64)
		case col == "time":
			row.Time, err = strconv.ParseFloat(cell, 64)
		case col == "error":
			row.Error, err = strconv.ParseFloat(cell, 64)
			row.HasError = err == nil
		case col == "fallback":
			row.Fallback, err = strconv.ParseBool(cell)
		case col == "faults":
			row.Faults, err = strconv.Atoi(cell)
		case strings.HasPrefix(col, colIn):
			err = parseInto(row.Readings, strings.TrimPrefix(col, colIn), cell)
		case strings.HasPrefix(col, colOut):
			err = parseInto(row.Outputs, strings.TrimPrefix(col, colOut), cell)
		case strings.HasPrefix(col, colParam):
			err = parseInto(row.Params, strings.TrimPrefix(col, colParam), cell)
		}
		if err != nil {
			return row, fmt.Errorf("column %s: %w", col, err)
		}
	}
	return row, nil
}

func parseInto(m map[string]float64, key, cell string) error {
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return err
	}
	m[key] = v
	return nil
}
