package viz

import (
	"errors"
	"strings"
	"testing"

	"github.com/san-kum/mindstone/internal/state"
	"github.com/san-kum/mindstone/internal/storage"
)

func rows() []storage.TickRow {
	return []storage.TickRow{
		{Tick: 1, Readings: map[string]float64{"theta": 0.5}, Outputs: map[string]float64{"torque": -1}},
		{Tick: 2, Readings: map[string]float64{"theta": 0.4}, Outputs: map[string]float64{"torque": -0.8}, Error: 0.4, HasError: true, Params: map[string]float64{"gain": 2}},
	}
}

func TestChannel(t *testing.T) {
	tests := []struct {
		name string
		want []float64
	}{
		{"theta", []float64{0.5, 0.4}},
		{"out.torque", []float64{-1, -0.8}},
		{"error", []float64{0.4}},
		{"param.gain", []float64{2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Channel(rows(), tt.name)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("expected %v, got %v", tt.want, got)
				}
			}
		})
	}

	if _, err := Channel(rows(), "omega"); !errors.Is(err, ErrNoSeries) {
		t.Errorf("expected ErrNoSeries, got %v", err)
	}
}

func TestDownsample(t *testing.T) {
	data := make([]float64, 100)
	if got := Downsample(data, 10); len(got) != 10 {
		t.Errorf("expected 10 points, got %d", len(got))
	}
	if got := Downsample(data[:5], 10); len(got) != 5 {
		t.Errorf("short series should be unchanged, got %d", len(got))
	}
}

func TestPlot(t *testing.T) {
	if Plot(nil, "x", 40, 5) != "" {
		t.Error("expected empty plot for no data")
	}
	out := Plot([]float64{1, 2, 3, 2, 1}, "theta", 40, 5)
	if !strings.Contains(out, "theta") {
		t.Errorf("caption missing from\n%s", out)
	}
}

func TestSceneDrawsEachPlant(t *testing.T) {
	tests := []struct {
		plant string
		snap  state.Snapshot
		mark  string
	}{
		{"pendulum", state.NewSnapshot(0, map[string]float64{"theta": 0.3}, nil), "O"},
		{"cartpole", state.NewSnapshot(0, map[string]float64{"x": 0, "theta": 0.1}, nil), "="},
		{"spring_mass", state.NewSnapshot(0, map[string]float64{"pos": 1}, nil), "~"},
		{"double_pendulum", state.NewSnapshot(0, map[string]float64{"theta1": 0.5, "theta2": -0.2}, nil), "O"},
		{"drone", state.NewSnapshot(0, map[string]float64{"x": 0, "y": 1, "theta": 0.2}, nil), "X"},
		{"unknown", state.NewSnapshot(0, map[string]float64{"a": 1, "b": -1}, nil), "#"},
	}
	for _, tt := range tests {
		t.Run(tt.plant, func(t *testing.T) {
			out := NewScene(40, 14).Draw(tt.plant, tt.snap)
			if got := len(strings.Split(out, "\n")); got != 14 {
				t.Errorf("expected 14 rows, got %d", got)
			}
			if !strings.Contains(out, tt.mark) {
				t.Errorf("expected %q in\n%s", tt.mark, out)
			}
		})
	}
}

func TestSummary(t *testing.T) {
	out := Summary(storage.RunMetadata{
		ID: "pendulum_1_abcd", Plant: "pendulum", Model: "linear", Adapter: "nlms",
		Reason: "faulted", Fault: "snapshot_timeout", Ticks: 12,
		Metrics: map[string]float64{"mean_error": 0.25},
	})
	for _, want := range []string{"pendulum_1_abcd", "linear + nlms", "snapshot_timeout", "mean_error"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if !strings.Contains(RunTable(nil), "no runs") {
		t.Error("empty table should say so")
	}
}

func TestSeriesSVG(t *testing.T) {
	svg, err := SeriesSVG([][]float64{{0, 1, 2}, {2, 1, 0}}, []string{"a", "b"}, 200, 100)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(svg, "<?xml") || !strings.HasSuffix(svg, "</svg>\n") {
		t.Error("not a complete svg document")
	}
	if n := strings.Count(svg, "<path"); n != 2 {
		t.Errorf("paths = %d, want 2", n)
	}
	if !strings.Contains(svg, ">b</text>") {
		t.Error("missing legend")
	}
}

func TestSeriesSVGEmpty(t *testing.T) {
	if _, err := SeriesSVG([][]float64{{}}, nil, 10, 10); !errors.Is(err, ErrNoSeries) {
		t.Errorf("err = %v, want ErrNoSeries", err)
	}
}

func TestTrajectorySVG(t *testing.T) {
	svg, err := TrajectorySVG([]float64{0, 1, 0}, []float64{1, 0, -1}, 100, 100)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(svg, "M") || strings.Count(svg, " L") != 2 {
		t.Errorf("unexpected path: %s", svg)
	}
	if _, err := TrajectorySVG([]float64{0}, []float64{0}, 10, 10); err == nil {
		t.Error("expected error for a single point")
	}
}
