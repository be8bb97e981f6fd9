// Package worker runs the simulation loop on its own goroutine.
//
// Each iteration synchronizes the model inputs into the controller, ticks the
// controller once, publishes a render snapshot if anything changed and then
// sleeps off whatever is left of the tick budget.
package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/san-kum/atomsim/internal/controller"
	"github.com/san-kum/atomsim/internal/engine"
	"github.com/san-kum/atomsim/internal/model"
	"github.com/san-kum/atomsim/internal/render"
	"github.com/san-kum/atomsim/internal/script"
)

const DefaultBudget = 16 * time.Millisecond

type Options struct {
	Budget time.Duration
	Clock  Clock
	Logger *log.Logger
	// AfterTick runs on the worker goroutine after every iteration, before
	// the throttle sleep.
	AfterTick func(iteration uint64)
}

type Worker struct {
	ctl       *controller.Controller
	model     *model.Model
	extractor *render.Extractor
	clock     Clock
	budget    time.Duration
	logger    *log.Logger
	afterTick func(uint64)

	pausePending atomic.Bool
	iterations   uint64
}

func New(ctl *controller.Controller, m *model.Model, opts Options) *Worker {
	if opts.Budget <= 0 {
		opts.Budget = DefaultBudget
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	w := &Worker{
		ctl:       ctl,
		model:     m,
		extractor: render.NewExtractor(),
		clock:     opts.Clock,
		budget:    opts.Budget,
		logger:    opts.Logger.With("component", "worker"),
		afterTick: opts.AfterTick,
	}
	ctl.SetEditorHandler(w.handleEditor)
	ctl.SetClock(opts.Clock.Now)
	return w
}

// Run loops until ctx is done. It returns nil on cancellation.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started", "budget", w.budget)
	defer func() { w.logger.Info("worker stopped", "iterations", w.iterations) }()
	for {
		if ctx.Err() != nil {
			return nil
		}
		start := w.clock.Now()
		w.Step()
		if err := w.throttle(ctx, start); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}

// Step runs one iteration without throttling.
func (w *Worker) Step() {
	reset := w.synchronizeSimulator()
	w.ctl.Tick()
	if reset {
		w.model.NotifyReset()
	}
	w.synchronizeRenderer()
	w.iterations++
	if w.afterTick != nil {
		w.afterTick(w.iterations)
	}
}

// Iterations counts completed iterations. Worker goroutine only.
func (w *Worker) Iterations() uint64 { return w.iterations }

// RequestPause pauses the simulation at the next synchronization point.
// Safe to call from any goroutine.
func (w *Worker) RequestPause() { w.pausePending.Store(true) }

func (w *Worker) throttle(ctx context.Context, start time.Time) error {
	d := Remaining(w.clock.Now().Sub(start), w.budget)
	if d == 0 {
		return ctx.Err()
	}
	return w.clock.Sleep(ctx, d)
}

// synchronizeSimulator is the one point per iteration where model inputs
// reach the controller and controller state reaches the model. It reports
// whether a reset was handed to the controller.
func (w *Worker) synchronizeSimulator() bool {
	// a fresh fault is the only work of this pass; inputs wait in the model
	if f := w.ctl.Fault(); f != nil && !f.Reported() {
		w.reportFault(f)
		return false
	}

	if w.pausePending.Swap(false) {
		w.model.SetPaused(true)
	}
	in := w.model.TakeInputs()
	if in.Reset {
		w.ctl.RequestReset(in.ResetScript)
	}
	w.ctl.SetPaused(in.Paused)
	w.ctl.SetSpeed(in.Speed)
	w.ctl.SetControls(in.Controls)

	w.model.PublishStatus(w.status(in.Paused, w.ctl.Fault()))
	return in.Reset
}

func (w *Worker) reportFault(f *engine.Fault) {
	w.model.PublishStatus(w.status(w.model.Paused(), f))
	f.MarkReported()
	w.logger.Warn("reporting fault", "location", f.Location, "line", f.Line)
	w.model.ReportFault(f)
}

func (w *Worker) status(paused bool, f *engine.Fault) *model.Status {
	st := &model.Status{
		SimulationTime:    w.ctl.SimulationTime(),
		Timestep:          w.ctl.Timestep(),
		NumberOfAtoms:     w.ctl.NumberOfAtoms(),
		NumberOfAtomTypes: w.ctl.NumberOfAtomTypes(),
		SystemSize:        w.ctl.SystemSize(),
		TimePerTimestep:   w.ctl.TimePerTimestep(),
		ScriptLine:        w.ctl.ScriptLine(),
		RunStepsLeft:      w.ctl.RunStepsLeft(),
		Paused:            paused,
		Speed:             w.ctl.Speed(),
	}
	if f != nil {
		st.Crashed = true
		st.FaultLocation = f.Location
		st.FaultMessage = f.Message
		st.FaultLine = f.Line
	}
	return st
}

// synchronizeRenderer publishes a fresh snapshot when engine data or the
// style table changed. A crashed engine is not read.
func (w *Worker) synchronizeRenderer() {
	if w.ctl.Crashed() || w.ctl.Engine() == nil {
		return
	}
	style := w.model.Style()
	style.EnsureTypes(w.ctl.NumberOfAtomTypes())
	if !w.ctl.DataDirty() && !style.Dirty() {
		return
	}
	table, _ := style.Take()
	snap := w.extractor.Extract(w.ctl.Engine(), table)
	w.ctl.ClearDataDirty()
	w.model.PublishSnapshot(snap)
}

// handleEditor applies an editor command. It runs inside Tick; pause takes
// effect at the next synchronization point.
func (w *Worker) handleEditor(cmd script.Command) {
	ed, err := script.ParseEditor(cmd.Text)
	if err != nil {
		w.logger.Warn("dropping editor command", "line", cmd.Line, "err", err)
		return
	}
	switch ed.Op {
	case script.OpAtom:
		color, err := render.ParseColor(ed.Color)
		if err != nil {
			w.logger.Warn("dropping editor command", "line", cmd.Line, "err", err)
			return
		}
		w.model.Style().Set(ed.Type, render.TypeStyle{Visible: true, Color: color, Scale: float32(ed.Radius)})
	case script.OpVisible:
		w.model.Style().SetVisible(ed.Type, ed.Visible)
	case script.OpPause:
		w.RequestPause()
	case script.OpSpeed:
		w.model.SetSpeed(ed.Speed)
	}
}
