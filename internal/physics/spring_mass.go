package physics

import "fmt"

const (
	DefaultMass      = 1.0
	DefaultStiffness = 10.0
	DefaultDamping   = 0.5
)

// SpringMass is a line of masses joined by springs. Spring i sits left of
// mass i, so the first spring anchors the chain to the left wall; an extra
// trailing spring anchors it to the right wall. The control force pushes the
// first mass.
type SpringMass struct {
	Masses    []float64
	Stiffness []float64
	Damping   []float64
}

func NewSpringMass() *SpringMass {
	return &SpringMass{
		Masses:    []float64{DefaultMass},
		Stiffness: []float64{DefaultStiffness},
		Damping:   []float64{DefaultDamping},
	}
}

// NewSpringMassChain builds n masses held between two walls.
func NewSpringMassChain(n int) *SpringMass {
	s := &SpringMass{
		Masses:    make([]float64, n),
		Stiffness: make([]float64, n+1),
		Damping:   make([]float64, n),
	}
	for i := range s.Masses {
		s.Masses[i], s.Damping[i] = DefaultMass, 0.2
	}
	for i := range s.Stiffness {
		s.Stiffness[i] = DefaultStiffness
	}
	return s
}

func (s *SpringMass) Name() string       { return "spring_mass" }
func (s *SpringMass) Controls() []string { return []string{"force"} }

// States are "pos" and "vel" for a single mass, "pos0".."posN-1" followed by
// "vel0".."velN-1" for a chain.
func (s *SpringMass) States() []string {
	n := len(s.Masses)
	if n == 1 {
		return []string{"pos", "vel"}
	}
	names := make([]string, 2*n)
	for i := 0; i < n; i++ {
		names[i] = fmt.Sprintf("pos%d", i)
		names[n+i] = fmt.Sprintf("vel%d", i)
	}
	return names
}

// stretch is the extension of spring i; walls sit at zero.
func (s *SpringMass) stretch(x Vector, i int) float64 {
	n := len(s.Masses)
	var left, right float64
	if i > 0 {
		left = x[i-1]
	}
	if i < n {
		right = x[i]
	}
	return right - left
}

func (s *SpringMass) Derive(x, u Vector, _ float64) Vector {
	n := len(s.Masses)
	force := make([]float64, n)
	force[0] = control(u, 0)
	for i, k := range s.Stiffness {
		f := k * s.stretch(x, i)
		if i < n {
			force[i] -= f
		}
		if i > 0 {
			force[i-1] += f
		}
	}

	dx := make(Vector, 2*n)
	copy(dx, x[n:])
	for i, m := range s.Masses {
		dx[n+i] = (force[i] - s.Damping[i]*x[n+i]) / m
	}
	return dx
}

func (s *SpringMass) Energy(x Vector) float64 {
	n := len(s.Masses)
	e := 0.0
	for i, m := range s.Masses {
		e += m * x[n+i] * x[n+i] / 2
	}
	for i, k := range s.Stiffness {
		d := s.stretch(x, i)
		e += k * d * d / 2
	}
	return e
}

// The tunable parameters are those of the first mass and spring.
func (s *SpringMass) knobs() knobs {
	return knobs{"mass": &s.Masses[0], "stiffness": &s.Stiffness[0], "damping": &s.Damping[0]}
}

func (s *SpringMass) GetParams() map[string]float64         { return s.knobs().values() }
func (s *SpringMass) SetParam(name string, v float64) error { return s.knobs().set(name, v) }
