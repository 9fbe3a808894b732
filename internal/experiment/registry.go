package experiment

import (
	"errors"
	"fmt"
	"sort"

	"github.com/san-kum/mindstone/internal/adapt"
	"github.com/san-kum/mindstone/internal/config"
	"github.com/san-kum/mindstone/internal/integrators"
	"github.com/san-kum/mindstone/internal/loop"
	"github.com/san-kum/mindstone/internal/model"
	"github.com/san-kum/mindstone/internal/physics"
)

var ErrUnknown = errors.New("unknown component")

type (
	PlantFactory   func(cfg *config.Config) (physics.System, error)
	LawFactory     func(mc config.ModelConfig, sys physics.System) (model.Law, model.Params, error)
	AdapterFactory func(ac config.AdapterConfig, law model.Law) (model.Adapter, error)
)

// Registry maps config names to plant, law, and adapter constructors.
type Registry struct {
	plants   map[string]PlantFactory
	laws     map[string]LawFactory
	adapters map[string]AdapterFactory
}

func NewRegistry() *Registry {
	r := &Registry{
		plants:   make(map[string]PlantFactory),
		laws:     make(map[string]LawFactory),
		adapters: make(map[string]AdapterFactory),
	}

	r.plants["pendulum"] = func(*config.Config) (physics.System, error) { return physics.NewPendulum(), nil }
	r.plants["cartpole"] = func(*config.Config) (physics.System, error) { return physics.NewCartPole(), nil }
	r.plants["double_pendulum"] = func(*config.Config) (physics.System, error) { return physics.NewDoublePendulum(), nil }
	r.plants["drone"] = func(*config.Config) (physics.System, error) { return physics.NewDrone(), nil }
	r.plants["spring_mass"] = func(cfg *config.Config) (physics.System, error) {
		if cfg.Bodies > 1 {
			return physics.NewSpringMassChain(cfg.Bodies), nil
		}
		return physics.NewSpringMass(), nil
	}

	r.laws["zero"] = func(mc config.ModelConfig, sys physics.System) (model.Law, model.Params, error) {
		return model.NewZero(outputsOr(mc, sys)...), nil, nil
	}
	r.laws["passthrough"] = func(mc config.ModelConfig, sys physics.System) (model.Law, model.Params, error) {
		routes, err := pairs(mc, sys)
		if err != nil {
			return nil, nil, err
		}
		return model.NewPassthrough(routes), nil, nil
	}
	r.laws["gain"] = func(mc config.ModelConfig, sys physics.System) (model.Law, model.Params, error) {
		in, out := inputsOr(mc, sys), outputsOr(mc, sys)
		return model.NewGain(in[0], out[0]), model.Params{model.ParamGain: 0}, nil
	}
	r.laws["pid"] = func(mc config.ModelConfig, sys physics.System) (model.Law, model.Params, error) {
		in, out := inputsOr(mc, sys), outputsOr(mc, sys)
		return model.NewPID(in[0], out[0]), model.PIDParams(0, 0, 0, 0), nil
	}
	r.laws["linear"] = func(mc config.ModelConfig, sys physics.System) (model.Law, model.Params, error) {
		in, out := inputsOr(mc, sys), outputsOr(mc, sys)
		return model.NewLinear(in, out), model.LinearParams(nil, nil, in, out), nil
	}
	r.laws["lqr"] = func(_ config.ModelConfig, sys physics.System) (model.Law, model.Params, error) {
		switch sys.Name() {
		case "pendulum":
			law, p := model.PendulumLinear()
			return law, p, nil
		case "spring_mass":
			if len(sys.States()) != 2 {
				return nil, nil, fmt.Errorf("lqr: no tuned gains for a %d-body chain", len(sys.States())/2)
			}
			law, p := model.SpringLinear()
			return law, p, nil
		}
		return nil, nil, fmt.Errorf("lqr: no tuned gains for %s", sys.Name())
	}

	r.laws["network"] = r.network

	r.adapters["none"] = func(config.AdapterConfig, model.Law) (model.Adapter, error) { return nil, nil }
	r.adapters["constant"] = func(ac config.AdapterConfig, _ model.Law) (model.Adapter, error) {
		return adapt.NewConstant(model.Delta(ac.Delta)), nil
	}
	r.adapters["mit"] = func(ac config.AdapterConfig, _ model.Law) (model.Adapter, error) {
		if ac.Param == "" || ac.Regressor == "" {
			return nil, errors.New("mit adapter requires param and regressor")
		}
		m := adapt.NewMITRule(ac.Param, ac.Regressor, ac.Rate)
		m.ErrorChannel = ac.ErrorChannel
		m.Normalize = ac.Normalize
		if ac.MinSamples > 0 {
			m.MinSamples = ac.MinSamples
		}
		if ac.Epsilon > 0 {
			m.Epsilon = ac.Epsilon
		}
		return m, nil
	}
	r.adapters["nlms"] = func(ac config.AdapterConfig, law model.Law) (model.Adapter, error) {
		lin, ok := law.(*model.Linear)
		if !ok {
			return nil, fmt.Errorf("nlms adapter requires a linear law, got %s", law.Name())
		}
		// Param names the output row to adapt.
		out := ac.Param
		if out == "" {
			out = lin.Outputs()[0]
		}
		a := adapt.NewNLMS(out, lin.Inputs(), ac.Rate)
		a.ErrorChannel = ac.ErrorChannel
		if ac.Epsilon > 0 {
			a.Epsilon = ac.Epsilon
		}
		return a, nil
	}

	return r
}

// network builds each gate from its own law config and scopes the gates'
// parameters into one vector.
func (r *Registry) network(mc config.ModelConfig, sys physics.System) (model.Law, model.Params, error) {
	nc := mc.Network
	if nc == nil {
		return nil, nil, errors.New("network law requires a network section")
	}
	gates := make([]model.Gate, 0, len(nc.Gates))
	params := make(model.Params)
	for _, g := range nc.Gates {
		if g.Law == "network" {
			return nil, nil, fmt.Errorf("gate %s: networks do not nest", g.Name)
		}
		fn, ok := r.laws[g.Law]
		if !ok {
			return nil, nil, fmt.Errorf("gate %s: %w law: %s", g.Name, ErrUnknown, g.Law)
		}
		law, p, err := fn(g.ModelConfig, sys)
		if err != nil {
			return nil, nil, fmt.Errorf("gate %s: %w", g.Name, err)
		}
		for k, v := range g.Params {
			if p == nil {
				p = make(model.Params)
			}
			p[k] = v
		}
		for k, v := range model.GateParams(g.Name, p) {
			params[k] = v
		}
		gates = append(gates, model.Gate{Name: g.Name, Law: law})
	}
	edges := make([]model.Edge, len(nc.Edges))
	for i, e := range nc.Edges {
		edges[i] = model.Edge{From: e.From, To: e.To, When: e.When, Else: e.Else}
	}
	n, err := model.NewNetwork(nc.Start, gates, edges, nc.MaxEpochs)
	if err != nil {
		return nil, nil, err
	}
	return n, params, nil
}

func (r *Registry) System(cfg *config.Config) (physics.System, error) {
	fn, ok := r.plants[cfg.Plant]
	if !ok {
		return nil, fmt.Errorf("%w plant: %s", ErrUnknown, cfg.Plant)
	}
	sys, err := fn(cfg)
	if err != nil {
		return nil, err
	}
	if len(cfg.Physics) > 0 {
		c, ok := sys.(physics.Configurable)
		if !ok {
			return nil, fmt.Errorf("%s has no physical parameters", sys.Name())
		}
		for _, name := range sortedKeys(cfg.Physics) {
			if err := c.SetParam(name, cfg.Physics[name]); err != nil {
				return nil, err
			}
		}
	}
	return sys, nil
}

// Model builds the law named in cfg, overlays configured parameters, and
// wraps it as static or adaptive depending on the adapter.
func (r *Registry) Model(cfg *config.Config, sys physics.System) (model.Model, model.Adapter, error) {
	lawFn, ok := r.laws[cfg.Model.Law]
	if !ok {
		return nil, nil, fmt.Errorf("%w law: %s", ErrUnknown, cfg.Model.Law)
	}
	law, params, err := lawFn(cfg.Model, sys)
	if err != nil {
		return nil, nil, err
	}
	if params == nil {
		params = make(model.Params)
	}
	for k, v := range cfg.Model.Params {
		params[k] = v
	}

	kind := cfg.Adapter.Kind
	if kind == "" {
		kind = "none"
	}
	adFn, ok := r.adapters[kind]
	if !ok {
		return nil, nil, fmt.Errorf("%w adapter: %s", ErrUnknown, kind)
	}
	ad, err := adFn(cfg.Adapter, law)
	if err != nil {
		return nil, nil, err
	}
	if ad == nil {
		return model.NewStatic(law, params), nil, nil
	}
	m, err := model.NewAdaptive(law, params, cfg.Model.Bounds, ad)
	if err != nil {
		return nil, nil, err
	}
	return m, ad, nil
}

// ErrorFunc builds the residual measure. With no reference configured every
// law input is regulated to zero.
func (r *Registry) ErrorFunc(cfg *config.Config, sys physics.System) (loop.ErrorFunc, error) {
	switch cfg.Error {
	case config.ErrorCommand:
		routes, err := pairs(cfg.Model, sys)
		if err != nil {
			return nil, err
		}
		back := make(map[string]string, len(routes))
		for in, out := range routes {
			back[out] = in
		}
		return loop.TrackCommand(back), nil
	default:
		ref := cfg.Reference
		if len(ref) == 0 {
			ref = make(map[string]float64)
			for _, in := range inputsOr(cfg.Model, sys) {
				ref[in] = 0
			}
		}
		return loop.TrackReference(ref), nil
	}
}

func (r *Registry) ListPlants() []string   { return sortedKeys(r.plants) }
func (r *Registry) ListLaws() []string     { return sortedKeys(r.laws) }
func (r *Registry) ListAdapters() []string { return sortedKeys(r.adapters) }

func (r *Registry) ListIntegrators() []string { return integrators.Names() }

func inputsOr(mc config.ModelConfig, sys physics.System) []string {
	if len(mc.Inputs) > 0 {
		return mc.Inputs
	}
	return sys.States()
}

func outputsOr(mc config.ModelConfig, sys physics.System) []string {
	if len(mc.Outputs) > 0 {
		return mc.Outputs
	}
	return sys.Controls()
}

// pairs zips inputs to outputs positionally.
func pairs(mc config.ModelConfig, sys physics.System) (map[string]string, error) {
	in, out := inputsOr(mc, sys), outputsOr(mc, sys)
	if len(in) < len(out) {
		return nil, fmt.Errorf("%d outputs need as many inputs, got %d", len(out), len(in))
	}
	routes := make(map[string]string, len(out))
	for i, o := range out {
		routes[in[i]] = o
	}
	return routes, nil
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
