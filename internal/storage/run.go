// Package storage persists finished runs: their metadata and the per-tick
// record of what the loop saw and did.
//
// Two backends share the [Backend] interface: [Store] keeps each run in a
// directory (metadata.json + ticks.csv) and [SQLite] keeps all runs in one
// database file.
package storage

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/mindstone/internal/loop"
	"github.com/san-kum/mindstone/internal/state"
)

var ErrRunNotFound = errors.New("storage: run not found")

type RunMetadata struct {
	ID         string             `json:"id"`
	SessionID  string             `json:"session_id"`
	Plant      string             `json:"plant"`
	Model      string             `json:"model"`
	Adapter    string             `json:"adapter,omitempty"`
	Integrator string             `json:"integrator,omitempty"`
	Timestamp  time.Time          `json:"timestamp"`
	Dt         float64            `json:"dt"`
	Seed       uint64             `json:"seed,omitempty"`
	Reason     string             `json:"reason"`
	Fault      string             `json:"fault,omitempty"`
	Ticks      uint64             `json:"ticks"`
	ElapsedMs  float64            `json:"elapsed_ms"`
	Params     map[string]float64 `json:"params,omitempty"`
	Metrics    map[string]float64 `json:"metrics"`
}

// TickRow is the stored form of one tick that emitted an output.
type TickRow struct {
	Tick     uint64             `json:"tick"`
	Time     float64            `json:"time"`
	Readings map[string]float64 `json:"readings"`
	Outputs  map[string]float64 `json:"outputs"`
	Params   map[string]float64 `json:"params,omitempty"`
	// Error is the signed residual attributed this tick; HasError is false
	// on the first tick.
	Error    float64 `json:"error"`
	HasError bool    `json:"has_error"`
	Fallback bool    `json:"fallback"`
	Faults   int     `json:"faults"`
}

func RowFromReport(r loop.TickReport) TickRow {
	readings := r.Snapshot.Readings()
	if readings == nil {
		readings = map[string]float64{}
	}
	for k, v := range r.Snapshot.Derived() {
		readings[k] = v
	}
	row := TickRow{
		Tick:     r.Tick,
		Time:     r.Snapshot.Time(),
		Readings: readings,
		Outputs:  r.Output.Values(),
		Params:   r.Params.Clone(),
		Fallback: r.Fallback,
		Faults:   len(r.Faults),
	}
	if r.Residual != nil {
		row.Error = r.Residual.Signed()
		row.HasError = true
	}
	return row
}

// Snapshot rebuilds the snapshot the row was recorded from.
func (r TickRow) Snapshot() state.Snapshot {
	return state.NewSnapshot(r.Time, r.Readings, nil)
}

// Snapshots rebuilds the snapshot stream of a run.
func Snapshots(rows []TickRow) []state.Snapshot {
	out := make([]state.Snapshot, len(rows))
	for i, r := range rows {
		out[i] = r.Snapshot()
	}
	return out
}

type Backend interface {
	Save(meta RunMetadata, rows []TickRow) (string, error)
	List() ([]RunMetadata, error)
	Load(runID string) (*RunMetadata, error)
	LoadTicks(runID string) ([]TickRow, error)
	Close() error
}

// Open returns the backend for driver ("files" or "sqlite") rooted at path.
func Open(driver, path string) (Backend, error) {
	switch driver {
	case "", "files":
		s := New(path)
		if err := s.Init(); err != nil {
			return nil, err
		}
		return s, nil
	case "sqlite":
		return NewSQLite(path)
	}
	return nil, fmt.Errorf("unknown storage driver: %s", driver)
}

// NewRunID derives a sortable, unique run ID from the plant name.
func NewRunID(plant string, at time.Time) string {
	return fmt.Sprintf("%s_%d_%s", plant, at.Unix(), strings.SplitN(uuid.NewString(), "-", 2)[0])
}

// Recorder collects rows from tick reports. It is a session observer.
type Recorder struct {
	mu   sync.Mutex
	rows []TickRow
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) OnTick(rep loop.TickReport) {
	if !rep.HasOutput {
		return
	}
	row := RowFromReport(rep)
	r.mu.Lock()
	r.rows = append(r.rows, row)
	r.mu.Unlock()
}

func (r *Recorder) Rows() []TickRow {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]TickRow(nil), r.rows...)
}

func sortedKeys(rows []TickRow, pick func(TickRow) map[string]float64) []string {
	seen := map[string]bool{}
	for _, r := range rows {
		for k := range pick(r) {
			seen[k] = true
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortRuns(runs []RunMetadata) {
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
}
