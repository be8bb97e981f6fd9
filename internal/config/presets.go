package config

import "sort"

// Presets are tuned sessions for the bundled examples, keyed by example and
// preset name. Fields left zero take their defaults when applied.
var Presets = map[string]map[string]*Config{
	"gas": {
		"default": {
			Example: "gas", Speed: 1,
		},
		"fast": {
			Example: "gas", Speed: 10,
		},
	},
	"thermostat": {
		"warm": {
			Example: "thermostat", Speed: 5,
			Thermostat: ThermostatConfig{Enabled: true, Target: 2.0, Damping: 0.5},
		},
		"quench": {
			Example: "thermostat", Speed: 5,
			Thermostat: ThermostatConfig{Enabled: true, Target: 0.05, Damping: 0.2},
		},
	},
	"mixture": {
		"default": {
			Example: "mixture", Speed: 2,
			Atoms: []AtomConfig{
				{Type: 1, Color: "blue", Radius: 1.0},
				{Type: 2, Color: "orange", Radius: 0.6},
			},
		},
		"solvent_hidden": {
			Example: "mixture", Speed: 2,
			Atoms: []AtomConfig{
				{Type: 1, Hidden: true},
				{Type: 2, Color: "orange", Radius: 0.6},
			},
		},
	},
}

func GetPreset(example, preset string) *Config {
	examplePresets, ok := Presets[example]
	if !ok {
		return nil
	}
	cfg, ok := examplePresets[preset]
	if !ok {
		return nil
	}
	return cfg
}

func ListPresets(example string) []string {
	examplePresets, ok := Presets[example]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(examplePresets))
	for name := range examplePresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply overlays the non-zero fields of p onto a copy of c.
func (c *Config) Apply(p *Config) *Config {
	out := *c
	if p == nil {
		return &out
	}
	if p.Example != "" {
		out.Example = p.Example
		out.Script = ""
	}
	if p.Speed > 0 {
		out.Speed = p.Speed
	}
	if p.Thermostat != (ThermostatConfig{}) {
		out.Thermostat = p.Thermostat
	}
	if len(p.Atoms) > 0 {
		out.Atoms = append([]AtomConfig(nil), p.Atoms...)
	}
	if len(p.Computes) > 0 {
		out.Computes = append([]ComputeConfig(nil), p.Computes...)
	}
	return &out
}
