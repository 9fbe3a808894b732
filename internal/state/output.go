package state

import (
	"math"
	"sort"
)

// Output is an immutable set of actuator commands derived from one snapshot.
type Output struct {
	sourceTime float64
	values     map[string]float64
}

func NewOutput(sourceTime float64, values map[string]float64) Output {
	return Output{sourceTime: sourceTime, values: cloneMap(values)}
}

// SourceTime is the time of the snapshot the output was derived from.
func (o Output) SourceTime() float64 { return o.sourceTime }

func (o Output) Lookup(channel string) (float64, bool) {
	v, ok := o.values[channel]
	return v, ok
}

func (o Output) Value(channel string) float64 { return o.values[channel] }

func (o Output) Values() map[string]float64 { return cloneMap(o.values) }

func (o Output) Len() int { return len(o.values) }

func (o Output) Channels() []string {
	names := make([]string, 0, len(o.values))
	for k := range o.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Hold re-stamps the same commands for a later snapshot.
func (o Output) Hold(t float64) Output {
	return NewOutput(t, o.values)
}

// ZeroLike returns the same channels commanded to zero.
func (o Output) ZeroLike(t float64) Output {
	z := make(map[string]float64, len(o.values))
	for k := range o.values {
		z[k] = 0
	}
	return Output{sourceTime: t, values: z}
}

// Effort is the sum of absolute commanded values.
func (o Output) Effort() float64 {
	sum := 0.0
	for _, v := range o.values {
		sum += math.Abs(v)
	}
	return sum
}

// Residual is the observed error of an output, per channel. Scalar error
// functions use the "error" key.
type Residual map[string]float64

const ScalarKey = "error"

// Scalar wraps a single error value.
func Scalar(v float64) Residual { return Residual{ScalarKey: v} }

// Norm is the L2 norm over all channels.
func (r Residual) Norm() float64 {
	sum := 0.0
	for _, v := range r {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// Signed returns the "error" value when present, otherwise the single channel
// value, otherwise the norm.
func (r Residual) Signed() float64 {
	if v, ok := r[ScalarKey]; ok {
		return v
	}
	if len(r) == 1 {
		for _, v := range r {
			return v
		}
	}
	return r.Norm()
}

func (r Residual) Clone() Residual {
	if r == nil {
		return nil
	}
	c := make(Residual, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}
