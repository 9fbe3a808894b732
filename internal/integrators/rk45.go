package integrators

import (
	"math"

	"github.com/san-kum/mindstone/internal/physics"
)

// Dormand-Prince tableau.
var (
	dpC = [7]float64{0, 1.0 / 5, 3.0 / 10, 4.0 / 5, 8.0 / 9, 1, 1}
	dpA = [7][6]float64{
		{},
		{1.0 / 5},
		{3.0 / 40, 9.0 / 40},
		{44.0 / 45, -56.0 / 15, 32.0 / 9},
		{19372.0 / 6561, -25360.0 / 2187, 64448.0 / 6561, -212.0 / 729},
		{9017.0 / 3168, -355.0 / 33, 46732.0 / 5247, 49.0 / 176, -5103.0 / 18656},
		{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84},
	}
	// fifth-order weights minus the embedded fourth-order ones
	dpE = [7]float64{
		35.0/384 - 5179.0/57600,
		0,
		500.0/1113 - 7571.0/16695,
		125.0/192 - 393.0/640,
		-2187.0/6784 + 92097.0/339200,
		11.0/84 - 187.0/2100,
		-1.0 / 40,
	}
)

// RK45 is an embedded Dormand-Prince integrator. Step advances by exactly dt;
// StepAdaptive also suggests the next step size for a tolerance.
type RK45 struct {
	Tolerance float64
	safety    float64
	minScale  float64
	maxScale  float64
}

func NewRK45() *RK45 {
	return &RK45{
		Tolerance: 1e-6,
		safety:    0.9,
		minScale:  0.2,
		maxScale:  10.0,
	}
}

func (r *RK45) Step(sys physics.System, x, u physics.Vector, t, dt float64) physics.Vector {
	next, _ := r.StepAdaptive(sys, x, u, t, dt, r.Tolerance)
	return next
}

func (r *RK45) StepAdaptive(sys physics.System, x, u physics.Vector, t, dt, tol float64) (physics.Vector, float64) {
	n := len(x)
	var k [7]physics.Vector
	k[0] = sys.Derive(x, u, t)

	stage := make(physics.Vector, n)
	for s := 1; s < 7; s++ {
		for i := 0; i < n; i++ {
			acc := 0.0
			for j := 0; j < s; j++ {
				acc += dpA[s][j] * k[j][i]
			}
			stage[i] = x[i] + dt*acc
		}
		k[s] = sys.Derive(stage, u, t+dpC[s]*dt)
	}
	// the last stage is evaluated at the fifth-order solution
	next := stage.Clone()

	errMax := 0.0
	for i := 0; i < n; i++ {
		est := 0.0
		for s := 0; s < 7; s++ {
			est += dpE[s] * k[s][i]
		}
		scale := math.Abs(x[i]) + math.Abs(dt*k[0][i]) + 1e-10
		errMax = math.Max(errMax, math.Abs(dt*est)/scale)
	}

	ratio := errMax / tol
	switch {
	case ratio > 1:
		return next, dt * math.Max(r.minScale, r.safety*math.Pow(ratio, -0.25))
	case ratio > 0:
		return next, dt * math.Min(r.maxScale, r.safety*math.Pow(ratio, -0.2))
	default:
		return next, dt * r.maxScale
	}
}
