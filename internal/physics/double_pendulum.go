package physics

import "math"

// DoublePendulum is two point masses on rigid rods, torque applied at the
// upper joint. Angles are absolute, measured from hanging straight down.
type DoublePendulum struct {
	M1, M2  float64
	L1, L2  float64
	Gravity float64
}

func NewDoublePendulum() *DoublePendulum {
	return &DoublePendulum{M1: 1, M2: 1, L1: 1, L2: 1, Gravity: 9.81}
}

func (d *DoublePendulum) Name() string       { return "double_pendulum" }
func (d *DoublePendulum) States() []string   { return []string{"theta1", "theta2", "omega1", "omega2"} }
func (d *DoublePendulum) Controls() []string { return []string{"torque"} }

// Derive solves the 2x2 mass-matrix system of the Lagrangian equations.
func (d *DoublePendulum) Derive(x, u Vector, _ float64) Vector {
	th1, th2, w1, w2 := x[0], x[1], x[2], x[3]
	diff := th1 - th2
	s, c := math.Sin(diff), math.Cos(diff)
	coupling := d.M2 * d.L1 * d.L2

	a := (d.M1 + d.M2) * d.L1 * d.L1
	b := coupling * c
	e := d.M2 * d.L2 * d.L2

	f1 := control(u, 0) - coupling*w2*w2*s - (d.M1+d.M2)*d.Gravity*d.L1*math.Sin(th1)
	f2 := coupling*w1*w1*s - d.M2*d.Gravity*d.L2*math.Sin(th2)

	det := a*e - b*b
	return Vector{w1, w2, (f1*e - b*f2) / det, (a*f2 - b*f1) / det}
}

// Energy takes the pivot as the zero of potential energy.
func (d *DoublePendulum) Energy(x Vector) float64 {
	th1, th2, w1, w2 := x[0], x[1], x[2], x[3]
	v1 := d.L1 * w1
	v2sq := v1*v1 + d.L2*d.L2*w2*w2 + 2*d.L1*d.L2*w1*w2*math.Cos(th1-th2)
	h1 := -d.L1 * math.Cos(th1)
	h2 := h1 - d.L2*math.Cos(th2)
	return d.M1*(v1*v1/2+d.Gravity*h1) + d.M2*(v2sq/2+d.Gravity*h2)
}

func (d *DoublePendulum) knobs() knobs {
	return knobs{"m1": &d.M1, "m2": &d.M2, "l1": &d.L1, "l2": &d.L2, "gravity": &d.Gravity}
}

func (d *DoublePendulum) GetParams() map[string]float64         { return d.knobs().values() }
func (d *DoublePendulum) SetParam(name string, v float64) error { return d.knobs().set(name, v) }
