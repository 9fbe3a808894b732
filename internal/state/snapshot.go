package state

import (
	"math"
	"sort"
	"strings"
)

// DeriveFunc computes derived features from raw readings. It must be pure.
type DeriveFunc func(readings map[string]float64) map[string]float64

// Snapshot is an immutable capture of sensor state at one instant.
type Snapshot struct {
	time     float64
	readings map[string]float64
	derived  map[string]float64
}

// NewSnapshot copies readings and, when derive is non-nil, computes derived
// features from the copy.
func NewSnapshot(t float64, readings map[string]float64, derive DeriveFunc) Snapshot {
	s := Snapshot{
		time:     t,
		readings: cloneMap(readings),
	}
	if derive != nil {
		s.derived = cloneMap(derive(cloneMap(readings)))
	}
	return s
}

func (s Snapshot) Time() float64 { return s.time }

// IsZero reports whether s was never constructed.
func (s Snapshot) IsZero() bool { return s.readings == nil && s.derived == nil && s.time == 0 }

// Lookup returns a channel value, searching raw readings before derived
// features.
func (s Snapshot) Lookup(channel string) (float64, bool) {
	if v, ok := s.readings[channel]; ok {
		return v, true
	}
	v, ok := s.derived[channel]
	return v, ok
}

// Value returns the channel value or 0 when absent.
func (s Snapshot) Value(channel string) float64 {
	v, _ := s.Lookup(channel)
	return v
}

// Has reports whether every given channel is present.
func (s Snapshot) Has(channels ...string) bool {
	for _, ch := range channels {
		if _, ok := s.Lookup(ch); !ok {
			return false
		}
	}
	return true
}

// Channels returns the sorted names of all readings and derived features.
func (s Snapshot) Channels() []string {
	names := make([]string, 0, len(s.readings)+len(s.derived))
	for k := range s.readings {
		names = append(names, k)
	}
	for k := range s.derived {
		if _, dup := s.readings[k]; !dup {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}

func (s Snapshot) Readings() map[string]float64 { return cloneMap(s.readings) }
func (s Snapshot) Derived() map[string]float64  { return cloneMap(s.derived) }

// IsValid reports false if any value is NaN or Inf.
func (s Snapshot) IsValid() bool {
	for _, v := range s.readings {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	for _, v := range s.derived {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Flatten turns nested observations such as {"arm": {"angle": 0.3}} into flat
// channels ("arm.angle"). Bool leaves map to 0/1; other non-numeric leaves are
// dropped.
func Flatten(nested map[string]any, delim string) map[string]float64 {
	out := make(map[string]float64)
	flattenInto(out, "", nested, delim)
	return out
}

func flattenInto(out map[string]float64, prefix string, node map[string]any, delim string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = strings.Join([]string{prefix, k}, delim)
		}
		switch val := v.(type) {
		case map[string]any:
			flattenInto(out, key, val, delim)
		case float64:
			out[key] = val
		case float32:
			out[key] = float64(val)
		case int:
			out[key] = float64(val)
		case int64:
			out[key] = float64(val)
		case bool:
			if val {
				out[key] = 1
			} else {
				out[key] = 0
			}
		}
	}
}

func cloneMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	c := make(map[string]float64, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
