package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultTickBudget = 16 * time.Millisecond
	DefaultSpeed      = 1
	DefaultExample    = "gas"
	DefaultDataDir    = ".atomsim"
	DefaultStreamAddr = "127.0.0.1:8765"
	DefaultLogLevel   = "info"
	DefaultDamping    = 1.0
	DefaultIterations = 600
)

var ErrInvalid = errors.New("config: invalid")

type Config struct {
	Script     string           `yaml:"script,omitempty" json:"script,omitempty" jsonschema:"description=Path to an input script. Takes precedence over example."`
	Example    string           `yaml:"example,omitempty" json:"example,omitempty" jsonschema:"description=Name of a bundled example script."`
	TickBudget time.Duration    `yaml:"tick_budget" json:"tick_budget" jsonschema:"description=Worker tick budget in nanoseconds (YAML accepts 16ms)."`
	Speed      int              `yaml:"speed" json:"speed" jsonschema:"minimum=1,description=Engine steps per tick."`
	Paused     bool             `yaml:"paused" json:"paused"`
	Iterations int              `yaml:"iterations" json:"iterations" jsonschema:"minimum=1,description=Worker iterations for headless runs."`
	Thermostat ThermostatConfig `yaml:"thermostat" json:"thermostat"`
	Atoms      []AtomConfig     `yaml:"atoms,omitempty" json:"atoms,omitempty"`
	Computes   []ComputeConfig  `yaml:"computes,omitempty" json:"computes,omitempty"`
	Log        LogConfig        `yaml:"log" json:"log"`
	Stream     StreamConfig     `yaml:"stream" json:"stream"`
	DataDir    string           `yaml:"data_dir" json:"data_dir"`
	Record     bool             `yaml:"record" json:"record" jsonschema:"description=Record compute values to the data dir."`
}

type ThermostatConfig struct {
	Enabled bool    `yaml:"enabled" json:"enabled"`
	Target  float64 `yaml:"target" json:"target"`
	Damping float64 `yaml:"damping" json:"damping"`
}

// AtomConfig styles one atom type. Color is #rrggbb or a palette name.
type AtomConfig struct {
	Type   int     `yaml:"type" json:"type" jsonschema:"minimum=1"`
	Color  string  `yaml:"color,omitempty" json:"color,omitempty"`
	Radius float64 `yaml:"radius,omitempty" json:"radius,omitempty"`
	Hidden bool    `yaml:"hidden,omitempty" json:"hidden,omitempty"`
}

// ComputeConfig declares a compute the session keeps alive and samples.
type ComputeConfig struct {
	ID        string   `yaml:"id" json:"id"`
	Command   string   `yaml:"command" json:"command" jsonschema:"description=Engine command creating the compute."`
	DependsOn []string `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
}

type LogConfig struct {
	Level      string `yaml:"level" json:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	File       string `yaml:"file,omitempty" json:"file,omitempty"`
	Timestamps bool   `yaml:"timestamps" json:"timestamps"`
}

type StreamConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

func DefaultConfig() *Config {
	return &Config{
		Example:    DefaultExample,
		TickBudget: DefaultTickBudget,
		Speed:      DefaultSpeed,
		Iterations: DefaultIterations,
		Thermostat: ThermostatConfig{
			Target:  1.0,
			Damping: DefaultDamping,
		},
		Computes: []ComputeConfig{
			{ID: "thermo_temp", Command: "compute thermo_temp all temp"},
		},
		Log: LogConfig{
			Level:      DefaultLogLevel,
			Timestamps: true,
		},
		Stream:  StreamConfig{Addr: DefaultStreamAddr},
		DataDir: DefaultDataDir,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}
	if c.Script == "" && c.Example == "" {
		bad("one of script or example is required")
	}
	if c.TickBudget <= 0 {
		bad("tick_budget must be positive, got %s", c.TickBudget)
	}
	if c.Speed < 1 {
		bad("speed must be at least 1, got %d", c.Speed)
	}
	if c.Iterations < 1 {
		bad("iterations must be at least 1, got %d", c.Iterations)
	}
	if c.Thermostat.Damping <= 0 {
		bad("thermostat.damping must be positive, got %g", c.Thermostat.Damping)
	}
	if c.Thermostat.Target < 0 {
		bad("thermostat.target must not be negative, got %g", c.Thermostat.Target)
	}
	seen := map[int]bool{}
	for _, a := range c.Atoms {
		if a.Type < 1 {
			bad("atoms: type must be at least 1, got %d", a.Type)
		} else if seen[a.Type] {
			bad("atoms: type %d styled twice", a.Type)
		}
		seen[a.Type] = true
		if a.Radius < 0 {
			bad("atoms: type %d radius must not be negative", a.Type)
		}
	}
	ids := map[string]bool{}
	for _, cc := range c.Computes {
		if cc.ID == "" || cc.Command == "" {
			bad("computes: id and command are required")
			continue
		}
		if ids[cc.ID] {
			bad("computes: duplicate id %q", cc.ID)
		}
		ids[cc.ID] = true
	}
	for _, cc := range c.Computes {
		for _, dep := range cc.DependsOn {
			if !ids[dep] {
				bad("computes: %q depends on unknown compute %q", cc.ID, dep)
			}
		}
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		bad("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	return errors.Join(errs...)
}
