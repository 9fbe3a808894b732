package viz

import (
	"math"
	"strings"

	"github.com/san-kum/mindstone/internal/state"
)

type cell struct{ x, y int }

// Scene draws a plant from its snapshot channels on a character grid. It
// keeps a short trail of the moving body between frames.
type Scene struct {
	width, height int
	canvas        [][]rune
	trail         []cell
}

func NewScene(width, height int) *Scene {
	canvas := make([][]rune, height)
	for i := range canvas {
		canvas[i] = make([]rune, width)
	}
	return &Scene{width: width, height: height, canvas: canvas}
}

// Draw renders the named plant. Unknown plants are drawn as a bar per
// reading.
func (s *Scene) Draw(plant string, snap state.Snapshot) string {
	s.clear()
	switch {
	case plant == "pendulum" && snap.Has("theta"):
		s.pendulum(snap.Value("theta"))
	case plant == "cartpole" && snap.Has("x", "theta"):
		s.cartpole(snap.Value("x"), snap.Value("theta"))
	case plant == "spring_mass" && (snap.Has("pos") || snap.Has("pos0")):
		pos, ok := snap.Lookup("pos")
		if !ok {
			pos = snap.Value("pos0")
		}
		s.spring(pos)
	case plant == "double_pendulum" && snap.Has("theta1", "theta2"):
		s.doublePendulum(snap.Value("theta1"), snap.Value("theta2"))
	case plant == "drone" && snap.Has("x", "y", "theta"):
		s.drone(snap.Value("x"), snap.Value("y"), snap.Value("theta"))
	default:
		s.bars(snap)
	}

	var b strings.Builder
	for _, row := range s.canvas {
		b.WriteString(string(row))
		b.WriteByte('\n')
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func (s *Scene) clear() {
	for y := range s.canvas {
		for x := range s.canvas[y] {
			s.canvas[y][x] = ' '
		}
	}
}

func (s *Scene) set(x, y int, c rune) {
	if x >= 0 && x < s.width && y >= 0 && y < s.height {
		s.canvas[y][x] = c
	}
}

func (s *Scene) line(x1, y1, x2, y2 int, c rune) {
	dx := abs(x2 - x1)
	dy := abs(y2 - y1)
	sx, sy := 1, 1
	if x1 > x2 {
		sx = -1
	}
	if y1 > y2 {
		sy = -1
	}
	err := dx - dy
	for {
		s.set(x1, y1, c)
		if x1 == x2 && y1 == y2 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

func (s *Scene) remember(c cell, limit int) {
	s.trail = append(s.trail, c)
	if len(s.trail) > limit {
		s.trail = s.trail[1:]
	}
}

// pendulum hangs from the top centre; theta = 0 points down.
func (s *Scene) pendulum(theta float64) {
	px, py := s.width/2, 1
	length := float64(s.height - 4)
	bx := px + int(2*length*math.Sin(theta))
	by := py + int(length*math.Cos(theta))

	s.remember(cell{bx, by}, 40)
	for i, pt := range s.trail {
		if i < len(s.trail)/2 {
			s.set(pt.x, pt.y, '.')
		} else {
			s.set(pt.x, pt.y, 'o')
		}
	}

	s.set(px, py, '+')
	s.line(px, py, bx, by, '|')
	s.set(bx, by, 'O')
}

func (s *Scene) doublePendulum(theta1, theta2 float64) {
	px, py := s.width/2, 1
	seg := float64(s.height-4) / 2
	x1 := px + int(2*seg*math.Sin(theta1))
	y1 := py + int(seg*math.Cos(theta1))
	x2 := x1 + int(2*seg*math.Sin(theta2))
	y2 := y1 + int(seg*math.Cos(theta2))

	s.remember(cell{x2, y2}, 60)
	for _, pt := range s.trail {
		s.set(pt.x, pt.y, '.')
	}
	s.set(px, py, '+')
	s.line(px, py, x1, y1, '|')
	s.line(x1, y1, x2, y2, '|')
	s.set(x1, y1, 'o')
	s.set(x2, y2, 'O')
}

// drone draws the body tilted by theta with the ground along the bottom row.
func (s *Scene) drone(x, y, theta float64) {
	gy := s.height - 1
	for i := 0; i < s.width; i++ {
		s.set(i, gy, '=')
	}
	cx := s.width/2 + int(x*4)
	cy := gy - 1 - int(y*2)
	dx := int(4 * math.Cos(theta))
	dy := int(2 * math.Sin(theta))
	s.line(cx-dx, cy+dy, cx+dx, cy-dy, '-')
	s.set(cx-dx, cy+dy, 'X')
	s.set(cx+dx, cy-dy, 'X')
	s.set(cx, cy, '#')
}

func (s *Scene) cartpole(pos, theta float64) {
	gy := s.height - 3
	cx := s.width/2 + int(pos*8)

	for i := 2; i < s.width-2; i++ {
		s.set(i, gy+1, '=')
	}
	for dx := -3; dx <= 3; dx++ {
		s.set(cx+dx, gy, '#')
	}

	plen := float64(s.height - 6)
	px := cx + int(2*plen*math.Sin(theta))
	py := gy - int(plen*math.Cos(theta))
	s.line(cx, gy-1, px, py, '|')
	s.set(px, py, 'o')
}

func (s *Scene) spring(pos float64) {
	cy := s.height / 2

	for y := cy - 2; y <= cy+2; y++ {
		s.set(2, y, '#')
	}

	mx := s.width/2 + int(pos*8)
	for i := 3; i < mx-2; i += 2 {
		s.set(i, cy, '~')
	}
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			s.set(mx+dx, cy+dy, '#')
		}
	}
}

func (s *Scene) bars(snap state.Snapshot) {
	cy := s.height / 2
	for i := 2; i < s.width-2; i++ {
		s.set(i, cy, '-')
	}

	channels := snap.Channels()
	if len(channels) == 0 {
		return
	}
	bw := max((s.width-8)/len(channels), 3)

	peak := 1.0
	for _, ch := range channels {
		peak = math.Max(peak, math.Abs(snap.Value(ch)))
	}

	for i, ch := range channels {
		bx := 4 + i*bw
		bh := int(snap.Value(ch) / peak * float64(s.height/3))
		if bh > 0 {
			for y := cy - 1; y >= cy-bh && y >= 0; y-- {
				s.set(bx, y, '#')
			}
		} else {
			for y := cy + 1; y <= cy-bh && y < s.height; y++ {
				s.set(bx, y, '#')
			}
		}
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
