package model

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/san-kum/atomsim/internal/controls"
	"github.com/san-kum/atomsim/internal/engine"
	"github.com/san-kum/atomsim/internal/render"
)

// Inputs is the presentation-writable state copied by the worker each tick.
type Inputs struct {
	Paused      bool
	Speed       int
	Reset       bool
	ResetScript string
	Controls    []controls.Control
}

type Model struct {
	mu          sync.Mutex
	paused      bool
	speed       int
	reset       bool
	resetScript string
	controls    []controls.Control

	style *render.Style

	status   atomic.Pointer[Status]
	snapshot atomic.Pointer[render.Snapshot]

	obsMu     sync.Mutex
	observers map[int]func(Change)
	nextObs   int
}

func New() *Model {
	m := &Model{
		speed:     1,
		style:     render.NewStyle(),
		observers: make(map[int]func(Change)),
	}
	m.status.Store(&Status{Speed: 1})
	return m
}

// TakeInputs copies the inputs and consumes a pending reset request.
func (m *Model) TakeInputs() Inputs {
	m.mu.Lock()
	defer m.mu.Unlock()
	in := Inputs{
		Paused:      m.paused,
		Speed:       m.speed,
		Reset:       m.reset,
		ResetScript: m.resetScript,
		Controls:    slices.Clone(m.controls),
	}
	m.reset = false
	m.resetScript = ""
	return in
}

func (m *Model) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

func (m *Model) SetPaused(paused bool) {
	m.mu.Lock()
	m.paused = paused
	m.mu.Unlock()
}

// TogglePause flips the pause input and returns the new value.
func (m *Model) TogglePause() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = !m.paused
	return m.paused
}

func (m *Model) Speed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speed
}

// SetSpeed sets the engine steps per tick. Values below 1 are clamped.
func (m *Model) SetSpeed(speed int) {
	if speed < 1 {
		speed = 1
	}
	m.mu.Lock()
	m.speed = speed
	m.mu.Unlock()
}

// RequestReset asks the worker to recreate the engine. A non-empty source is
// loaded into the fresh queue. Repeated requests before the worker picks one
// up collapse into the last.
func (m *Model) RequestReset(source string) {
	m.mu.Lock()
	m.reset = true
	m.resetScript = source
	m.mu.Unlock()
}

// AddControl registers c, replacing any control with the same ID, and routes
// its field changes to observers.
func (m *Model) AddControl(c controls.Control) {
	c.SetNotifier(func(id, field string, value any) {
		m.emit(Change{Field: FieldControl, Control: id, Name: field, Value: value})
	})
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, old := range m.controls {
		if old.ID() == c.ID() {
			old.SetNotifier(nil)
			m.controls[i] = c
			return
		}
	}
	m.controls = append(m.controls, c)
}

func (m *Model) RemoveControl(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.controls {
		if c.ID() == id {
			c.SetNotifier(nil)
			m.controls = slices.Delete(m.controls, i, i+1)
			return true
		}
	}
	return false
}

func (m *Model) Control(id string) (controls.Control, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.controls {
		if c.ID() == id {
			return c, true
		}
	}
	return nil, false
}

func (m *Model) Controls() []controls.Control {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.controls)
}

// Thermostat returns the registered thermostat control, if any.
func (m *Model) Thermostat() (*controls.Thermostat, bool) {
	c, ok := m.Control(controls.ThermostatID)
	if !ok {
		return nil, false
	}
	t, ok := c.(*controls.Thermostat)
	return t, ok
}

func (m *Model) Style() *render.Style { return m.style }

// Status returns the latest published status. It is never nil.
func (m *Model) Status() *Status { return m.status.Load() }

// Snapshot returns the latest published snapshot, or nil before the first.
func (m *Model) Snapshot() *render.Snapshot { return m.snapshot.Load() }

// PublishStatus replaces the status and notifies observers of every scalar
// that changed. The worker must not modify s afterwards.
func (m *Model) PublishStatus(s *Status) {
	old := m.status.Swap(s)
	for _, c := range diff(old, s) {
		m.emit(c)
	}
}

func (m *Model) PublishSnapshot(s *render.Snapshot) {
	m.snapshot.Store(s)
	m.emit(Change{Field: FieldSnapshot, Value: s})
}

// ReportFault announces f. The caller guarantees one call per fault.
func (m *Model) ReportFault(f *engine.Fault) {
	m.emit(Change{Field: FieldFault, Value: f})
}

func (m *Model) NotifyReset() {
	m.snapshot.Store(nil)
	m.emit(Change{Field: FieldReset})
}

// Observe registers fn for every change and returns a function that
// unregisters it.
func (m *Model) Observe(fn func(Change)) (cancel func()) {
	m.obsMu.Lock()
	id := m.nextObs
	m.nextObs++
	m.observers[id] = fn
	m.obsMu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			m.obsMu.Lock()
			delete(m.observers, id)
			m.obsMu.Unlock()
		})
	}
}

func (m *Model) emit(c Change) {
	m.obsMu.Lock()
	ids := make([]int, 0, len(m.observers))
	for id := range m.observers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(Change), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, m.observers[id])
	}
	m.obsMu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}
