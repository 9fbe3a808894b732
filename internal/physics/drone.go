package physics

import (
	"math"
)

// Drone is a planar quadrotor with a left and a right thrust. Negative
// thrust is clipped to zero.
type Drone struct {
	Mass, Inertia, ArmLength float64
	Gravity, DragCoeff       float64
	AngDrag                  float64
}

func NewDrone() *Drone {
	return &Drone{
		Mass:      1.0,
		Inertia:   0.1,
		ArmLength: 0.25,
		Gravity:   9.81,
		DragCoeff: 0.1,
		AngDrag:   0.05,
	}
}

func (d *Drone) Name() string { return "drone" }
func (d *Drone) States() []string {
	return []string{"x", "y", "theta", "vx", "vy", "omega"}
}
func (d *Drone) Controls() []string { return []string{"thrust_l", "thrust_r"} }

func (d *Drone) Derive(x, u Vector, t float64) Vector {
	theta, vx, vy, omega := x[2], x[3], x[4], x[5]

	thrustL := math.Max(0, control(u, 0))
	thrustR := math.Max(0, control(u, 1))
	total := thrustL + thrustR
	torque := (thrustR - thrustL) * d.ArmLength

	sin, cos := math.Sin(theta), math.Cos(theta)
	fx := -total*sin - d.DragCoeff*vx
	fy := total*cos - d.Mass*d.Gravity - d.DragCoeff*vy

	return Vector{vx, vy, omega, fx / d.Mass, fy / d.Mass, (torque - d.AngDrag*omega) / d.Inertia}
}

// HoverThrust is the per-rotor thrust that balances gravity when level.
func (d *Drone) HoverThrust() float64 { return d.Mass * d.Gravity / 2 }

func (d *Drone) Energy(x Vector) float64 {
	y, vx, vy, omega := x[1], x[3], x[4], x[5]
	return 0.5*d.Mass*(vx*vx+vy*vy) + 0.5*d.Inertia*omega*omega + d.Mass*d.Gravity*y
}

func (d *Drone) knobs() knobs {
	return knobs{
		"mass": &d.Mass, "inertia": &d.Inertia, "arm_length": &d.ArmLength,
		"gravity": &d.Gravity, "drag": &d.DragCoeff, "ang_drag": &d.AngDrag,
	}
}

func (d *Drone) GetParams() map[string]float64         { return d.knobs().values() }
func (d *Drone) SetParam(name string, v float64) error { return d.knobs().set(name, v) }
