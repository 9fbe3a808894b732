package integrators

import "github.com/san-kum/mindstone/internal/physics"

type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(sys physics.System, x, u physics.Vector, t, dt float64) physics.Vector {
	dx := sys.Derive(x, u, t)
	result := make(physics.Vector, len(x))
	for i := range x {
		result[i] = x[i] + dt*dx[i]
	}
	return result
}
