package analysis

import "math"

// DecayRate fits ln|x(t)| = a + λt by least squares and returns λ in 1/s.
// Samples whose magnitude is below floor relative to the peak are skipped,
// so a trace that settles onto numerical noise is not dominated by it.
func DecayRate(data []float64, dt float64) (float64, error) {
	const floor = 1e-9
	peak := 0.0
	for _, v := range data {
		peak = math.Max(peak, math.Abs(v))
	}
	if peak == 0 {
		return 0, ErrShortTrace
	}

	var n, st, sy, stt, sty float64
	for i, v := range data {
		a := math.Abs(v)
		if a <= floor*peak {
			continue
		}
		t := float64(i) * dt
		y := math.Log(a)
		n++
		st += t
		sy += y
		stt += t * t
		sty += t * y
	}
	if n < 2 {
		return 0, ErrShortTrace
	}
	den := n*stt - st*st
	if den == 0 {
		return 0, ErrShortTrace
	}
	return (n*sty - st*sy) / den, nil
}
