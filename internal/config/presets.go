package config

import (
	"sort"

	"github.com/san-kum/mindstone/internal/model"
)

func preset(plant string, initial map[string]float64, m ModelConfig, a AdapterConfig, ticks int) *Config {
	cfg := DefaultConfig()
	cfg.Plant = plant
	cfg.Initial = initial
	cfg.Model = m
	cfg.Adapter = a
	cfg.Session.MaxTicks = ticks
	switch plant {
	case "spring_mass":
		cfg.Reference = map[string]float64{"pos": 0}
	case "drone":
		cfg.Reference = map[string]float64{"y": 1}
	case "double_pendulum":
		cfg.Reference = map[string]float64{"theta1": 0}
	default:
		cfg.Reference = map[string]float64{"theta": 0}
	}
	return cfg
}

var Presets = map[string]map[string]*Config{
	"pendulum": {
		"small": preset("pendulum", map[string]float64{"theta": 0.2},
			ModelConfig{Law: "lqr"}, AdapterConfig{Kind: "none"}, 1000),
		"large": preset("pendulum", map[string]float64{"theta": 2.5},
			ModelConfig{Law: "lqr"}, AdapterConfig{Kind: "none"}, 2000),
		"spinning": preset("pendulum", map[string]float64{"theta": 0.1, "omega": 8},
			ModelConfig{Law: "lqr"}, AdapterConfig{Kind: "none"}, 3000),
		"pid": preset("pendulum", map[string]float64{"theta": 0.5},
			ModelConfig{
				Law: "pid", Inputs: []string{"theta"}, Outputs: []string{"torque"},
				Params: map[string]float64{"kp": 20, "ki": 0.5, "kd": 6, "setpoint": 0},
			}, AdapterConfig{Kind: "none"}, 1000),
		"adaptive": preset("pendulum", map[string]float64{"theta": 0.5},
			ModelConfig{
				Law: "linear", Inputs: []string{"theta", "omega"}, Outputs: []string{"torque"},
				Params: map[string]float64{"k.torque.theta": 10, "k.torque.omega": 2},
				Bounds: model.Bounds{
					"k.torque.theta": {Min: 0, Max: 60},
					"k.torque.omega": {Min: 0, Max: 20},
				},
			}, AdapterConfig{Kind: "nlms", Rate: 0.05, Epsilon: 1e-6}, 2000),
		"switched": preset("pendulum", map[string]float64{"theta": 1.5},
			ModelConfig{Law: "network", Network: &NetworkConfig{
				Start: "sense",
				Gates: []GateConfig{
					{Name: "sense", ModelConfig: ModelConfig{Law: "passthrough", Inputs: []string{"theta"}, Outputs: []string{"angle"}}},
					{Name: "hold", ModelConfig: ModelConfig{
						Law: "pid", Inputs: []string{"theta"}, Outputs: []string{"torque"},
						Params: map[string]float64{"kp": 20, "kd": 4},
					}},
					{Name: "damp", ModelConfig: ModelConfig{
						Law: "gain", Inputs: []string{"omega"}, Outputs: []string{"torque"},
						Params: map[string]float64{"gain": -3},
					}},
				},
				Edges: []EdgeConfig{{
					From: "sense", To: "hold", Else: "damp",
					When: &model.Condition{Channel: "angle", Op: "<", Value: 0.2, Abs: true},
				}},
			}}, AdapterConfig{Kind: "none"}, 2000),
	},
	"spring_mass": {
		"bounce": preset("spring_mass", map[string]float64{"pos": 2},
			ModelConfig{Law: "zero", Outputs: []string{"force"}}, AdapterConfig{Kind: "none"}, 2000),
		"damped": preset("spring_mass", map[string]float64{"pos": 1, "vel": 5},
			ModelConfig{Law: "lqr"}, AdapterConfig{Kind: "none"}, 1000),
		"mit": preset("spring_mass", map[string]float64{"pos": 1},
			ModelConfig{
				Law: "gain", Inputs: []string{"pos"}, Outputs: []string{"force"},
				Params: map[string]float64{"gain": 0},
			}, AdapterConfig{Kind: "mit", Param: "gain", Regressor: "pos", Rate: 0.5, MinSamples: 8, Normalize: true}, 2000),
	},
	"cartpole": {
		"freefall": preset("cartpole", map[string]float64{"theta": 0.1},
			ModelConfig{Law: "zero", Outputs: []string{"force"}}, AdapterConfig{Kind: "none"}, 1000),
		"pid": preset("cartpole", map[string]float64{"theta": 0.1},
			ModelConfig{
				Law: "pid", Inputs: []string{"theta"}, Outputs: []string{"force"},
				Params: map[string]float64{"kp": 40, "ki": 0, "kd": 8, "setpoint": 0},
			}, AdapterConfig{Kind: "none"}, 1000),
	},
	"double_pendulum": {
		"chaotic": preset("double_pendulum", map[string]float64{"theta1": 2, "theta2": 1.5},
			ModelConfig{Law: "zero", Outputs: []string{"torque"}}, AdapterConfig{Kind: "none"}, 3000),
		"pid": preset("double_pendulum", map[string]float64{"theta1": 0.3, "theta2": 0.1},
			ModelConfig{
				Law: "pid", Inputs: []string{"theta1"}, Outputs: []string{"torque"},
				Params: map[string]float64{"kp": 30, "ki": 0, "kd": 8, "setpoint": 0},
			}, AdapterConfig{Kind: "none"}, 2000),
	},
	"drone": {
		"freefall": preset("drone", map[string]float64{"y": 5},
			ModelConfig{Law: "zero", Outputs: []string{"thrust_l", "thrust_r"}}, AdapterConfig{Kind: "none"}, 500),
		// ref.y sits above the hover height so the proportional term alone
		// supplies hover thrust at y = 1.
		"hover": preset("drone", map[string]float64{"y": 0.5},
			ModelConfig{
				Law: "linear", Inputs: []string{"y", "vy"}, Outputs: []string{"thrust_l", "thrust_r"},
				Params: map[string]float64{
					"k.thrust_l.y": 4, "k.thrust_l.vy": 2,
					"k.thrust_r.y": 4, "k.thrust_r.vy": 2,
					"ref.y": 1 + 9.81/2/4, "ref.vy": 0,
				},
			}, AdapterConfig{Kind: "none"}, 1500),
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(plant, name string) *Config {
	plantPresets, ok := Presets[plant]
	if !ok {
		return nil
	}
	cfg, ok := plantPresets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets(plant string) []string {
	plantPresets, ok := Presets[plant]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(plantPresets))
	for name := range plantPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func ListPlants() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
