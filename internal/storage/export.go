package storage

import (
	"encoding/csv"
	"encoding/json"
	"io"
)

type ExportData struct {
	Run   RunMetadata `json:"run"`
	Ticks []TickRow   `json:"ticks"`
}

// ExportJSON writes a run and its ticks as indented JSON.
func ExportJSON(w io.Writer, meta RunMetadata, rows []TickRow) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(ExportData{Run: meta, Ticks: rows})
}

// ExportCSV writes ticks in the layout of the file store's ticks.csv.
func ExportCSV(w io.Writer, rows []TickRow) error {
	cw := csv.NewWriter(w)
	if err := writeRows(cw, rows); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}
