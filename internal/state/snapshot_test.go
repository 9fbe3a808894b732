package state

import (
	"errors"
	"math"
	"testing"
)

func TestSnapshotIsImmutable(t *testing.T) {
	raw := map[string]float64{"x": 1.0}
	s := NewSnapshot(0.1, raw, nil)

	raw["x"] = 99
	if got := s.Value("x"); got != 1.0 {
		t.Errorf("snapshot changed with caller map: x=%f", got)
	}

	r := s.Readings()
	r["x"] = 42
	if got := s.Value("x"); got != 1.0 {
		t.Errorf("snapshot changed through Readings copy: x=%f", got)
	}
}

func TestSnapshotDerived(t *testing.T) {
	derive := func(r map[string]float64) map[string]float64 {
		return map[string]float64{"x2": r["x"] * r["x"], "x": -1}
	}
	s := NewSnapshot(1, map[string]float64{"x": 3}, derive)

	if v, ok := s.Lookup("x2"); !ok || v != 9 {
		t.Errorf("expected derived x2=9, got %f (ok=%v)", v, ok)
	}
	if v := s.Value("x"); v != 3 {
		t.Errorf("raw reading should shadow derived feature, got %f", v)
	}
	if got := s.Channels(); len(got) != 2 || got[0] != "x" || got[1] != "x2" {
		t.Errorf("unexpected channels %v", got)
	}
	if !s.Has("x", "x2") || s.Has("y") {
		t.Error("Has reported wrong presence")
	}
}

func TestSnapshot_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		vals  map[string]float64
		valid bool
	}{
		{"empty", nil, true},
		{"normal", map[string]float64{"a": 1, "b": 2}, true},
		{"with NaN", map[string]float64{"a": math.NaN()}, false},
		{"with +Inf", map[string]float64{"a": math.Inf(1)}, false},
		{"with -Inf", map[string]float64{"a": math.Inf(-1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewSnapshot(0, tt.vals, nil).IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestSequencerAccept(t *testing.T) {
	var q Sequencer

	if err := q.Accept(NewSnapshot(1.0, nil, nil)); err != nil {
		t.Fatalf("first snapshot rejected: %v", err)
	}
	if err := q.Accept(NewSnapshot(2.0, nil, nil)); err != nil {
		t.Fatalf("increasing snapshot rejected: %v", err)
	}

	tests := []struct {
		name string
		t    float64
	}{
		{"equal", 2.0},
		{"earlier", 1.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := q.Accept(NewSnapshot(tt.t, nil, nil))
			if !errors.Is(err, ErrOutOfOrderSnapshot) {
				t.Fatalf("expected ErrOutOfOrderSnapshot, got %v", err)
			}
			var oe *OrderError
			if !errors.As(err, &oe) || oe.Last != 2.0 {
				t.Errorf("expected OrderError with last=2, got %v", err)
			}
		})
	}

	if last, ok := q.Last(); !ok || last != 2.0 {
		t.Errorf("rejected snapshots must not move the sequencer, last=%f", last)
	}
}

func TestFlatten(t *testing.T) {
	nested := map[string]any{
		"arm": map[string]any{
			"angle": 0.5,
			"limit": true,
			"label": "left",
		},
		"sonar": map[string]any{
			"front": map[string]any{"distance": 2},
		},
		"battery": float32(0.25),
	}

	got := Flatten(nested, ".")
	want := map[string]float64{
		"arm.angle":            0.5,
		"arm.limit":            1,
		"sonar.front.distance": 2,
		"battery":              0.25,
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d channels, got %d: %v", len(want), len(got), got)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s: expected %f, got %f", k, v, got[k])
		}
	}
}

func TestOutputFallbacks(t *testing.T) {
	o := NewOutput(1, map[string]float64{"torque": -2, "brake": 1})

	held := o.Hold(2)
	if held.SourceTime() != 2 || held.Value("torque") != -2 {
		t.Errorf("Hold produced %v at %f", held.Values(), held.SourceTime())
	}

	z := o.ZeroLike(3)
	if z.Len() != 2 || z.Value("torque") != 0 || z.SourceTime() != 3 {
		t.Errorf("ZeroLike produced %v", z.Values())
	}

	if o.Effort() != 3 {
		t.Errorf("expected effort 3, got %f", o.Effort())
	}
}

func TestResidual(t *testing.T) {
	if got := (Residual{"a": 3, "b": 4}).Norm(); math.Abs(got-5) > 1e-12 {
		t.Errorf("Norm = %f, want 5", got)
	}
	if got := Scalar(-0.5).Signed(); got != -0.5 {
		t.Errorf("Signed = %f, want -0.5", got)
	}
	if got := (Residual{"pos": -2}).Signed(); got != -2 {
		t.Errorf("single channel Signed = %f, want -2", got)
	}
}
