package physics

import "math"

// Pendulum is a point mass on a massless rod with viscous damping at the
// pivot. Theta is zero hanging down.
type Pendulum struct {
	Mass, Length, Damping, Gravity float64
}

func NewPendulum() *Pendulum {
	return &Pendulum{Mass: 1, Length: 1, Damping: 0.1, Gravity: 9.81}
}

func (p *Pendulum) Name() string       { return "pendulum" }
func (p *Pendulum) States() []string   { return []string{"theta", "omega"} }
func (p *Pendulum) Controls() []string { return []string{"torque"} }

func (p *Pendulum) Derive(x, u Vector, _ float64) Vector {
	inertia := p.Mass * p.Length * p.Length
	gravity := p.Mass * p.Gravity * p.Length * math.Sin(x[0])
	return Vector{x[1], (control(u, 0) - gravity - p.Damping*x[1]) / inertia}
}

// Energy is measured from the hanging rest position.
func (p *Pendulum) Energy(x Vector) float64 {
	inertia := p.Mass * p.Length * p.Length
	return inertia*x[1]*x[1]/2 + p.Mass*p.Gravity*p.Length*(1-math.Cos(x[0]))
}

func (p *Pendulum) knobs() knobs {
	return knobs{"mass": &p.Mass, "length": &p.Length, "damping": &p.Damping, "gravity": &p.Gravity}
}

func (p *Pendulum) GetParams() map[string]float64         { return p.knobs().values() }
func (p *Pendulum) SetParam(name string, v float64) error { return p.knobs().set(name, v) }
