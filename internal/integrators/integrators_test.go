package integrators

import (
	"math"
	"testing"

	"github.com/san-kum/mindstone/internal/physics"
)

type oscillator struct{}

func (oscillator) Name() string       { return "oscillator" }
func (oscillator) States() []string   { return []string{"x", "v"} }
func (oscillator) Controls() []string { return nil }
func (oscillator) Derive(x, u physics.Vector, t float64) physics.Vector {
	return physics.Vector{x[1], -x[0]}
}

func energy(x physics.Vector) float64 { return 0.5 * (x[0]*x[0] + x[1]*x[1]) }

func TestAccuracy(t *testing.T) {
	tests := []struct {
		name string
		tol  float64
	}{
		{"euler", 1e-2},
		{"rk4", 1e-8},
		{"rk45", 1e-8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			integ, err := New(tt.name)
			if err != nil {
				t.Fatal(err)
			}
			x := physics.Vector{1.0, 0.0}
			dt := 0.01
			steps := 100
			for i := 0; i < steps; i++ {
				x = integ.Step(oscillator{}, x, nil, float64(i)*dt, dt)
			}

			wantX := math.Cos(float64(steps) * dt)
			wantV := -math.Sin(float64(steps) * dt)
			if math.Abs(x[0]-wantX) > tt.tol || math.Abs(x[1]-wantV) > tt.tol {
				t.Errorf("got [%.8f, %.8f], expected [%.8f, %.8f]", x[0], x[1], wantX, wantV)
			}
		})
	}
}

func TestRK45EnergyConservation(t *testing.T) {
	integ := NewRK45()
	x := physics.Vector{1.0, 0.0}
	dt := 0.01
	for i := 0; i < 10000; i++ {
		x = integ.Step(oscillator{}, x, nil, float64(i)*dt, dt)
	}
	if drift := math.Abs(energy(x)-0.5) / 0.5; drift > 1e-6 {
		t.Errorf("RK45 energy drift too high: %e", drift)
	}
}

func TestRK45AdaptiveStep(t *testing.T) {
	x, next := NewRK45().StepAdaptive(oscillator{}, physics.Vector{1, 0}, nil, 0, 0.1, 1e-12)
	if !x.IsValid() {
		t.Error("StepAdaptive produced invalid state")
	}
	if next <= 0 || next >= 0.1 {
		t.Errorf("expected a smaller step for a tight tolerance, got %f", next)
	}
}

func TestUnknownIntegrator(t *testing.T) {
	if _, err := New("leapfrog"); err == nil {
		t.Error("expected error for unknown integrator")
	}
	if got := Names(); len(got) != 3 || got[0] != "euler" {
		t.Errorf("unexpected names %v", got)
	}
}

func BenchmarkRK4(b *testing.B) {
	integ := NewRK4()
	x := physics.Vector{1.0, 0.0}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		x = integ.Step(oscillator{}, x, nil, 0, 0.01)
	}
}

func BenchmarkRK45(b *testing.B) {
	integ := NewRK45()
	x := physics.Vector{1.0, 0.0}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		x = integ.Step(oscillator{}, x, nil, 0, 0.01)
	}
}
