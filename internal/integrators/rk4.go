package integrators

import "github.com/san-kum/mindstone/internal/physics"

// RK4 keeps scratch buffers between steps and is not safe for concurrent use.
type RK4 struct {
	k1, k2, k3, k4 physics.Vector
	scratch        physics.Vector
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) ensureScratch(n int) {
	if len(r.k1) != n {
		r.k1 = make(physics.Vector, n)
		r.k2 = make(physics.Vector, n)
		r.k3 = make(physics.Vector, n)
		r.k4 = make(physics.Vector, n)
		r.scratch = make(physics.Vector, n)
	}
}

func (r *RK4) stage(sys physics.System, dst, x, k, u physics.Vector, t, h float64) {
	for i := range x {
		r.scratch[i] = x[i] + h*k[i]
	}
	copy(dst, sys.Derive(r.scratch, u, t))
}

func (r *RK4) Step(sys physics.System, x, u physics.Vector, t, dt float64) physics.Vector {
	n := len(x)
	r.ensureScratch(n)

	copy(r.k1, sys.Derive(x, u, t))
	r.stage(sys, r.k2, x, r.k1, u, t+dt*0.5, dt*0.5)
	r.stage(sys, r.k3, x, r.k2, u, t+dt*0.5, dt*0.5)
	r.stage(sys, r.k4, x, r.k3, u, t+dt, dt)

	result := make(physics.Vector, n)
	dt6 := dt / 6.0
	for i := 0; i < n; i++ {
		result[i] = x[i] + dt6*(r.k1[i]+2*r.k2[i]+2*r.k3[i]+r.k4[i])
	}
	return result
}
