package physics

import "sort"

// knobs binds parameter names to the fields they tune.
type knobs map[string]*float64

func (k knobs) values() map[string]float64 {
	out := make(map[string]float64, len(k))
	for name, f := range k {
		out[name] = *f
	}
	return out
}

func (k knobs) set(name string, value float64) error {
	f, ok := k[name]
	if !ok {
		return unknownParam(name)
	}
	*f = value
	return nil
}

// ParamNames lists a system's tunable parameters in sorted order.
func ParamNames(c Configurable) []string {
	params := c.GetParams()
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
