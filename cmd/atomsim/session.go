package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/san-kum/atomsim/internal/config"
	"github.com/san-kum/atomsim/internal/controller"
	"github.com/san-kum/atomsim/internal/controls"
	"github.com/san-kum/atomsim/internal/engine/toy"
	"github.com/san-kum/atomsim/internal/model"
	"github.com/san-kum/atomsim/internal/render"
	"github.com/san-kum/atomsim/internal/storage"
	"github.com/san-kum/atomsim/internal/worker"
	"github.com/spf13/cobra"
)

// session wires one engine, controller, model and worker from a config.
type session struct {
	cfg      *config.Config
	name     string
	source   string
	logger   *log.Logger
	sim      *model.Model
	ctl      *controller.Controller
	worker   *worker.Worker
	recorder *storage.Recorder
	store    *storage.Store
}

// loadConfig merges the config file, preset, positional script and flags,
// in that order.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if preset != "" {
		example, name, ok := strings.Cut(preset, "/")
		if !ok {
			return nil, fmt.Errorf("preset must be example/name, got %q", preset)
		}
		p := config.GetPreset(example, name)
		if p == nil {
			return nil, fmt.Errorf("unknown preset %q (see atomsim presets %s)", preset, example)
		}
		cfg = cfg.Apply(p)
	}
	if len(args) > 0 {
		if _, err := os.Stat(args[0]); err == nil {
			cfg.Script, cfg.Example = args[0], ""
		} else {
			cfg.Script, cfg.Example = "", args[0]
		}
	}

	flags := cmd.Flags()
	if flags.Changed("speed") {
		cfg.Speed = speed
	}
	if flags.Changed("budget") {
		cfg.TickBudget = tickBudget
	}
	if flags.Changed("iterations") {
		cfg.Iterations = iterations
	}
	if flags.Changed("record") {
		cfg.Record = record
	}
	if flags.Changed("addr") {
		cfg.Stream.Addr = streamAddr
	}
	if flags.Changed("paused") {
		cfg.Paused = paused
	}
	if flags.Changed("data") {
		cfg.DataDir = dataDir
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, cfg.Validate()
}

func resolveSource(cfg *config.Config) (name, source string, err error) {
	if cfg.Script != "" {
		data, err := os.ReadFile(cfg.Script)
		if err != nil {
			return "", "", err
		}
		name = strings.TrimSuffix(filepath.Base(cfg.Script), filepath.Ext(cfg.Script))
		return name, string(data), nil
	}
	source, err = storage.Example(cfg.Example)
	if err != nil {
		return "", "", fmt.Errorf("%w (available: %s)", err, strings.Join(storage.ExampleNames(), ", "))
	}
	return cfg.Example, source, nil
}

func newSession(cfg *config.Config, logger *log.Logger) (*session, error) {
	name, source, err := resolveSource(cfg)
	if err != nil {
		return nil, err
	}

	sim := model.New()
	sim.SetSpeed(cfg.Speed)
	sim.SetPaused(cfg.Paused)
	if err := applyAtomStyles(sim.Style(), cfg.Atoms); err != nil {
		return nil, err
	}

	th := controls.NewThermostat()
	th.SetDamping(cfg.Thermostat.Damping)
	if cfg.Thermostat.Enabled {
		th.SetTargetTemperature(cfg.Thermostat.Target)
		th.SetEnabled(true)
	}
	sim.AddControl(th)
	for _, c := range cfg.Computes {
		sim.AddControl(controls.NewCompute(c.ID, c.Command, c.DependsOn...))
	}

	ctl := controller.New(toy.Factory, logger)
	w := worker.New(ctl, sim, worker.Options{Budget: cfg.TickBudget, Logger: logger})
	sim.RequestReset(source)

	s := &session{
		cfg:      cfg,
		name:     name,
		source:   source,
		logger:   logger,
		sim:      sim,
		ctl:      ctl,
		worker:   w,
		recorder: storage.NewRecorder(sim, name),
		store:    storage.New(cfg.DataDir),
	}
	sim.Observe(s.recorder.Observe)
	logger.Info("session ready", "script", name, "speed", cfg.Speed, "budget", cfg.TickBudget)
	return s, nil
}

func applyAtomStyles(style *render.Style, atoms []config.AtomConfig) error {
	for _, a := range atoms {
		ts := render.DefaultTypeStyle(a.Type)
		if a.Color != "" {
			c, err := render.ParseColor(a.Color)
			if err != nil {
				return fmt.Errorf("atoms: type %d: %w", a.Type, err)
			}
			ts.Color = c
		}
		if a.Radius > 0 {
			ts.Scale = float32(a.Radius)
		}
		ts.Visible = !a.Hidden
		style.Set(a.Type, ts)
	}
	return nil
}

// temperatureCompute names the first configured temperature compute.
func temperatureCompute(cfg *config.Config) string {
	for _, c := range cfg.Computes {
		if strings.Contains(" "+c.Command+" ", " temp ") {
			return c.ID
		}
	}
	return ""
}

// save writes the recording when the session asked for one.
func (s *session) save() {
	if !s.cfg.Record {
		return
	}
	if err := s.store.Init(); err != nil {
		s.logger.Error("creating data dir", "err", err)
		return
	}
	id, err := s.recorder.Save(s.store)
	if err != nil {
		s.logger.Error("saving recording", "err", err)
		return
	}
	s.logger.Info("recording saved", "run", id, "samples", len(s.recorder.Samples()))
	fmt.Printf("saved run %s\n", id)
}

func (s *session) close() {
	if err := s.ctl.Close(); err != nil {
		s.logger.Warn("closing engine", "err", err)
	}
}
