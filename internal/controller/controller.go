// Package controller owns the engine instance and applies exactly one unit of
// script work per tick.
package controller

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/san-kum/atomsim/internal/controls"
	"github.com/san-kum/atomsim/internal/engine"
	"github.com/san-kum/atomsim/internal/script"
)

var ErrNoFactory = errors.New("controller: no engine factory")

// ensembleStyles are the integrator fixes a thermostat replaces.
var ensembleStyles = []string{"nve", "nvt", "npt", "nph"}

// EditorHandler consumes host-directed commands. They never reach the engine.
type EditorHandler func(cmd script.Command)

// Controller is owned by the worker goroutine.
type Controller struct {
	factory  engine.Factory
	eng      engine.Engine
	queue    *script.Queue
	controls []controls.Control
	editor   EditorHandler
	logger   *log.Logger
	now      func() time.Time

	paused         bool
	speed          int
	resetRequested bool
	resetScript    string
	fault          *engine.Fault
	dataDirty      bool

	runLeft int
	runCmd  script.Command

	timePerStep time.Duration
}

func New(factory engine.Factory, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.Default()
	}
	return &Controller{
		factory: factory,
		queue:   script.NewQueue(),
		logger:  logger.With("component", "controller"),
		now:     time.Now,
		speed:   1,
	}
}

func (c *Controller) SetEditorHandler(h EditorHandler)    { c.editor = h }
func (c *Controller) SetClock(now func() time.Time)       { c.now = now }
func (c *Controller) SetControls(list []controls.Control) { c.controls = list }
func (c *Controller) SetPaused(paused bool)               { c.paused = paused }
func (c *Controller) Paused() bool                        { return c.paused }
func (c *Controller) Engine() engine.Engine               { return c.eng }
func (c *Controller) Queue() *script.Queue                { return c.queue }
func (c *Controller) Fault() *engine.Fault                { return c.fault }
func (c *Controller) Crashed() bool                       { return c.fault != nil }
func (c *Controller) DataDirty() bool                     { return c.dataDirty }
func (c *Controller) ClearDataDirty()                     { c.dataDirty = false }
func (c *Controller) RunStepsLeft() int                   { return c.runLeft }
func (c *Controller) ScriptLine() int                     { return c.queue.Line() }
func (c *Controller) TimePerTimestep() time.Duration      { return c.timePerStep }

// SetSpeed sets the number of engine steps per tick.
func (c *Controller) SetSpeed(speed int) {
	if speed < 1 {
		speed = 1
	}
	c.speed = speed
}

func (c *Controller) Speed() int { return c.speed }

// RequestReset schedules a reset at the start of the next tick. A non-empty
// source is loaded into the fresh queue.
func (c *Controller) RequestReset(source string) {
	c.resetRequested = true
	c.resetScript = source
}

// Reset tears the engine down and creates a new one. It must not be called
// while a tick is in flight.
func (c *Controller) Reset() error {
	if c.eng != nil {
		if err := c.eng.Close(); err != nil {
			c.logger.Warn("closing engine", "err", err)
		}
		c.eng = nil
	}
	c.queue.Clear()
	c.fault = nil
	c.runLeft = 0
	c.runCmd = script.Command{}
	c.timePerStep = 0
	c.dataDirty = true

	if c.factory == nil {
		return ErrNoFactory
	}
	eng, err := c.factory()
	if err != nil {
		c.fault = engine.NewFault(&engine.Error{Location: "engine", Message: err.Error()}, "", 0)
		return fmt.Errorf("controller: create engine: %w", err)
	}
	c.eng = eng
	c.logger.Debug("engine reset")
	return nil
}

// Load appends a script source to the queue.
func (c *Controller) Load(source string) int { return c.queue.Load(source) }

// Tick performs one unit of work: pending reset, control sync, then either a
// chunk of an active run or the next queued command.
func (c *Controller) Tick() {
	if c.resetRequested {
		c.resetRequested = false
		src := c.resetScript
		c.resetScript = ""
		if err := c.Reset(); err != nil {
			c.logger.Error("reset failed", "err", err)
		}
		if src != "" {
			c.logger.Info("script loaded", "commands", c.queue.Load(src))
		}
	}
	if c.eng == nil || c.Crashed() {
		return
	}

	// controls stay dirty until the script has built a box
	if c.ready() {
		for _, ctl := range c.controls {
			ctl.Synchronize(c)
		}
	}

	if c.paused {
		return
	}

	// corrective commands go in between run chunks
	if c.runLeft > 0 && !c.queue.HasPriority() {
		c.continueRun()
		return
	}

	c.execute(c.queue.Next())
}

func (c *Controller) execute(cmd script.Command) {
	switch cmd.Kind {
	case script.EditorCommand:
		if c.editor != nil {
			c.editor(cmd)
		}
		c.idle()
	case script.SkipTick:
		c.idle()
	case script.RunCommand:
		n, err := script.RunSteps(cmd.Text)
		if err != nil {
			c.capture(&engine.Error{Location: "run", Message: "Illegal run command"}, cmd)
			return
		}
		c.logger.Debug("run started", "steps", n, "line", cmd.Line)
		c.runLeft = n
		c.runCmd = cmd
		c.continueRun()
	default:
		if err := c.eng.Submit(cmd.Text); err != nil {
			c.capture(err, cmd)
			return
		}
		c.dataDirty = true
	}
}

func (c *Controller) continueRun() {
	n := min(c.speed, c.runLeft)
	if c.advance(n, c.runCmd) {
		c.runLeft -= n
		if c.runLeft == 0 {
			c.runCmd = script.Command{}
		}
	}
}

func (c *Controller) ready() bool {
	r, ok := c.eng.(engine.Readier)
	return !ok || r.Ready()
}

// idle advances the simulation when nothing was submitted this tick.
func (c *Controller) idle() {
	if !c.ready() {
		return
	}
	c.advance(c.speed, script.Command{})
}

func (c *Controller) advance(n int, cmd script.Command) bool {
	if n <= 0 {
		return true
	}
	start := c.now()
	err := c.eng.Step(n)
	c.dataDirty = true
	if err != nil {
		c.capture(err, cmd)
		return false
	}
	per := c.now().Sub(start) / time.Duration(n)
	if c.timePerStep == 0 {
		c.timePerStep = per
	} else {
		c.timePerStep = (9*c.timePerStep + per) / 10
	}
	return true
}

// capture records the first fault of a session. Later faults are ignored
// until a reset clears it.
func (c *Controller) capture(err error, cmd script.Command) {
	c.runLeft = 0
	if c.fault != nil {
		return
	}
	c.fault = engine.NewFault(err, cmd.Text, cmd.Line)
	c.logger.Error("engine fault", "location", c.fault.Location, "message", c.fault.Message, "line", cmd.Line)
}

// EnsembleFixes lists the active integrator fixes.
func (c *Controller) EnsembleFixes() []engine.Directive {
	return engine.FindFixes(c.eng, ensembleStyles...)
}

// DisableEnsembleFixes queues an unfix for every active integrator fix.
func (c *Controller) DisableEnsembleFixes() {
	for _, d := range c.EnsembleFixes() {
		c.queue.AddToTop("unfix "+d.ID(), script.SingleCommand)
	}
}

func (c *Controller) SimulationTime() float64 {
	if c.eng == nil {
		return 0
	}
	return c.eng.Time()
}

func (c *Controller) Timestep() int64 {
	if c.eng == nil {
		return 0
	}
	return c.eng.Timestep()
}

func (c *Controller) NumberOfAtoms() int {
	if c.eng == nil {
		return 0
	}
	return c.eng.ParticleCount()
}

func (c *Controller) NumberOfAtomTypes() int {
	if c.eng == nil {
		return 0
	}
	return c.eng.NumTypes()
}

// SystemSize returns the box lengths.
func (c *Controller) SystemSize() engine.Vec3 {
	if c.eng == nil {
		return engine.Vec3{}
	}
	return c.eng.Box().Lengths()
}

func (c *Controller) Close() error {
	if c.eng == nil {
		return nil
	}
	err := c.eng.Close()
	c.eng = nil
	return err
}
