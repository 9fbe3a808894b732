package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/mindstone/internal/loop"
	"github.com/san-kum/mindstone/internal/model"
	"github.com/san-kum/mindstone/internal/state"
)

func sampleRows() []TickRow {
	return []TickRow{
		{
			Tick: 1, Time: 0,
			Readings: map[string]float64{"theta": 0.5, "omega": 0},
			Outputs:  map[string]float64{"torque": -15.81},
			Params:   map[string]float64{"gain": 0.8},
		},
		{
			Tick: 2, Time: 0.01,
			Readings: map[string]float64{"theta": 0.49, "omega": -0.2},
			Outputs:  map[string]float64{"torque": -13.5},
			Params:   map[string]float64{"gain": 0.9},
			Error:    0.49, HasError: true, Fallback: true, Faults: 1,
		},
	}
}

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	files, err := Open("files", filepath.Join(t.TempDir(), "runs"))
	require.NoError(t, err)
	db, err := Open("sqlite", filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return map[string]Backend{"files": files, "sqlite": db}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			meta := RunMetadata{
				SessionID: "s-1",
				Plant:     "pendulum",
				Model:     "linear",
				Reason:    "completed",
				Ticks:     2,
				Dt:        0.01,
				Metrics:   map[string]float64{"mean_error": 0.49},
			}
			id, err := b.Save(meta, sampleRows())
			require.NoError(t, err)
			assert.Contains(t, id, "pendulum_")

			got, err := b.Load(id)
			require.NoError(t, err)
			assert.Equal(t, "linear", got.Model)
			assert.Equal(t, "s-1", got.SessionID)
			assert.Equal(t, 0.49, got.Metrics["mean_error"])

			rows, err := b.LoadTicks(id)
			require.NoError(t, err)
			assert.Equal(t, sampleRows(), rows)

			runs, err := b.List()
			require.NoError(t, err)
			require.Len(t, runs, 1)
			assert.Equal(t, id, runs[0].ID)
		})
	}
}

func TestListIsChronological(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
			_, err := b.Save(RunMetadata{ID: "late", Plant: "p", Timestamp: base.Add(time.Hour)}, nil)
			require.NoError(t, err)
			_, err = b.Save(RunMetadata{ID: "early", Plant: "p", Timestamp: base}, nil)
			require.NoError(t, err)

			runs, err := b.List()
			require.NoError(t, err)
			require.Len(t, runs, 2)
			assert.Equal(t, "early", runs[0].ID)
			assert.Equal(t, "late", runs[1].ID)
		})
	}
}

func TestMissingRun(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := b.Load("nope")
			assert.True(t, errors.Is(err, ErrRunNotFound))
			_, err = b.LoadTicks("nope")
			assert.True(t, errors.Is(err, ErrRunNotFound))
		})
	}
}

func TestUnknownDriver(t *testing.T) {
	_, err := Open("postgres", t.TempDir())
	assert.Error(t, err)
}

func TestRecorderKeepsTicksWithOutput(t *testing.T) {
	rec := NewRecorder()
	snap := state.NewSnapshot(1, map[string]float64{"theta": 0.1}, func(map[string]float64) map[string]float64 {
		return map[string]float64{"energy": 2}
	})
	rec.OnTick(loop.TickReport{
		Tick:      1,
		Snapshot:  snap,
		Output:    state.NewOutput(1, map[string]float64{"torque": 3}),
		HasOutput: true,
		Residual:  state.Scalar(-0.5),
		Params:    model.Params{"gain": 1},
	})
	rec.OnTick(loop.TickReport{Tick: 2})

	rows := rec.Rows()
	require.Len(t, rows, 1)
	r := rows[0]
	assert.Equal(t, map[string]float64{"theta": 0.1, "energy": 2}, r.Readings)
	assert.Equal(t, 3.0, r.Outputs["torque"])
	assert.True(t, r.HasError)
	assert.Equal(t, -0.5, r.Error)
	assert.Equal(t, 0.1, r.Snapshot().Value("theta"))
	assert.Len(t, Snapshots(rows), 1)
}

func TestExportJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportJSON(&buf, RunMetadata{ID: "r1", Plant: "pendulum"}, sampleRows()))

	var got ExportData
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "r1", got.Run.ID)
	assert.Len(t, got.Ticks, 2)
	assert.Equal(t, -13.5, got.Ticks[1].Outputs["torque"])
}

func TestExportCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportCSV(&buf, sampleRows()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "tick,time,error,fallback,faults,in.omega,in.theta,out.torque,param.gain", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "1,0,,false,0,"), lines[1])
}
