package integrators

import (
	"fmt"
	"sort"

	"github.com/san-kum/mindstone/internal/physics"
)

var factories = map[string]func() physics.Integrator{
	"euler": func() physics.Integrator { return NewEuler() },
	"rk4":   func() physics.Integrator { return NewRK4() },
	"rk45":  func() physics.Integrator { return NewRK45() },
}

// New returns a fresh integrator by name.
func New(name string) (physics.Integrator, error) {
	f, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
	return f(), nil
}

func Names() []string {
	names := make([]string, 0, len(factories))
	for n := range factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
