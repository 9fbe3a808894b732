package physics

import "math"

// CartPole is an inverted pendulum on a cart; theta = 0 is upright.
type CartPole struct {
	CartMass   float64
	PoleMass   float64
	PoleLength float64
	Gravity    float64
}

func NewCartPole() *CartPole {
	return &CartPole{CartMass: 1, PoleMass: 0.1, PoleLength: 1, Gravity: 9.81}
}

func (c *CartPole) Name() string       { return "cartpole" }
func (c *CartPole) States() []string   { return []string{"x", "v", "theta", "omega"} }
func (c *CartPole) Controls() []string { return []string{"force"} }

// Derive uses the frictionless cart-pole equations with PoleLength as the
// distance to the pole's centre of mass.
func (c *CartPole) Derive(x, u Vector, _ float64) Vector {
	v, theta, omega := x[1], x[2], x[3]
	total := c.CartMass + c.PoleMass
	l := c.PoleLength
	sin, cos := math.Sin(theta), math.Cos(theta)

	push := (control(u, 0) + c.PoleMass*l*omega*omega*sin) / total
	alpha := (c.Gravity*sin - cos*push) / (l * (4.0/3.0 - c.PoleMass*cos*cos/total))
	accel := push - c.PoleMass*l*alpha*cos/total
	return Vector{v, accel, omega, alpha}
}

func (c *CartPole) Energy(x Vector) float64 {
	v, theta, omega := x[1], x[2], x[3]
	ke := 0.5*c.CartMass*v*v + 0.5*c.PoleMass*(v*v+2*v*c.PoleLength*omega*math.Cos(theta)+c.PoleLength*c.PoleLength*omega*omega)
	pe := c.PoleMass * c.Gravity * c.PoleLength * math.Cos(theta)
	return ke + pe
}

func (c *CartPole) knobs() knobs {
	return knobs{"cart_mass": &c.CartMass, "pole_mass": &c.PoleMass, "pole_length": &c.PoleLength, "gravity": &c.Gravity}
}

func (c *CartPole) GetParams() map[string]float64         { return c.knobs().values() }
func (c *CartPole) SetParam(name string, v float64) error { return c.knobs().set(name, v) }
