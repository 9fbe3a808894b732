package analysis

import (
	"errors"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

var ErrShortTrace = errors.New("analysis: trace too short")

// PowerSpectrum returns the one-sided power of data at bins 0..n/2. The mean
// is removed first so bin 0 does not swamp the rest.
func PowerSpectrum(data []float64) []float64 {
	n := len(data)
	if n == 0 {
		return nil
	}
	mean := 0.0
	for _, v := range data {
		mean += v
	}
	mean /= float64(n)
	centered := make([]float64, n)
	for i, v := range data {
		centered[i] = v - mean
	}

	coeffs := fft.FFTReal(centered)
	ps := make([]float64, n/2+1)
	for i := range ps {
		a := cmplx.Abs(coeffs[i])
		ps[i] = a * a / float64(n)
	}
	return ps
}

// Frequencies returns the bin frequencies (Hz) matching PowerSpectrum for n
// samples spaced dt seconds apart.
func Frequencies(n int, dt float64) []float64 {
	if n == 0 || dt <= 0 {
		return nil
	}
	f := make([]float64, n/2+1)
	for i := range f {
		f[i] = float64(i) / (float64(n) * dt)
	}
	return f
}

// DominantFrequency returns the frequency of the strongest non-DC bin and its
// power.
func DominantFrequency(data []float64, dt float64) (float64, float64, error) {
	if len(data) < 4 {
		return 0, 0, ErrShortTrace
	}
	if dt <= 0 {
		return 0, 0, errors.New("analysis: dt must be positive")
	}
	ps := PowerSpectrum(data)
	best := 1
	for i := 2; i < len(ps); i++ {
		if ps[i] > ps[best] {
			best = i
		}
	}
	if ps[best] == 0 || math.IsNaN(ps[best]) {
		return 0, 0, nil
	}
	return float64(best) / (float64(len(data)) * dt), ps[best], nil
}
