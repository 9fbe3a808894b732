package physics

import "math"

// Link is one rigid segment of a planar chain. Angle is absolute, measured
// counterclockwise from hanging straight down.
type Link struct {
	Name   string
	Length float64
	Angle  float64
}

// Posed systems report where their bodies are in the plane.
type Posed interface {
	// Pose returns "<body>.x" and "<body>.y" channels for state x.
	Pose(x Vector) map[string]float64
}

// ChainPose walks links from the origin and returns the far end of each.
func ChainPose(x0, y0 float64, links ...Link) map[string]float64 {
	out := make(map[string]float64, 2*len(links))
	x, y := x0, y0
	for _, l := range links {
		x += l.Length * math.Sin(l.Angle)
		y -= l.Length * math.Cos(l.Angle)
		out[l.Name+".x"] = x
		out[l.Name+".y"] = y
	}
	return out
}

func (p *Pendulum) Pose(x Vector) map[string]float64 {
	return ChainPose(0, 0, Link{"bob", p.Length, x[0]})
}

// Pose places the cart on the track and the pole's centre of mass above it.
func (c *CartPole) Pose(x Vector) map[string]float64 {
	out := ChainPose(x[0], 0, Link{"pole", c.PoleLength, math.Pi - x[2]})
	out["cart.x"], out["cart.y"] = x[0], 0
	return out
}

func (d *DoublePendulum) Pose(x Vector) map[string]float64 {
	return ChainPose(0, 0, Link{"bob1", d.L1, x[0]}, Link{"bob2", d.L2, x[1]})
}

// Pose returns the two rotor hubs.
func (d *Drone) Pose(x Vector) map[string]float64 {
	cx, cy, theta := x[0], x[1], x[2]
	dx, dy := d.ArmLength*math.Cos(theta), d.ArmLength*math.Sin(theta)
	return map[string]float64{
		"rotor_l.x": cx - dx, "rotor_l.y": cy - dy,
		"rotor_r.x": cx + dx, "rotor_r.y": cy + dy,
	}
}
