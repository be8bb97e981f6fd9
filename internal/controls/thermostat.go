package controls

import (
	"fmt"

	"github.com/san-kum/atomsim/internal/engine"
	"github.com/san-kum/atomsim/internal/script"
)

const (
	ThermostatID   = "nvt"
	DefaultDamping = 1.0
)

// Thermostat mirrors the engine's active temperature-control fix.
type Thermostat struct {
	base
	target  float64
	damping float64
}

// NewThermostat starts disabled and clean, so the first sync adopts whatever
// the engine is running.
func NewThermostat() *Thermostat {
	return &Thermostat{base: base{id: ThermostatID}, damping: DefaultDamping}
}

func (t *Thermostat) TargetTemperature() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.target
}

// SetTargetTemperature records a UI edit.
func (t *Thermostat) SetTargetTemperature(target float64) {
	t.mu.Lock()
	if t.target == target {
		t.mu.Unlock()
		return
	}
	t.target = target
	t.dirty = true
	t.mu.Unlock()
	t.fire([]change{{FieldTarget, target}})
}

func (t *Thermostat) SetDamping(damping float64) {
	if damping <= 0 {
		return
	}
	t.mu.Lock()
	t.damping = damping
	t.mu.Unlock()
}

func (t *Thermostat) Synchronize(h Host) {
	fix, found := engine.FindDirective[engine.Thermostat](h.Engine())

	var changes []change
	t.mu.Lock()
	switch t.decide(found) {
	case actionRemove:
		h.Queue().AddManyToTop([]string{
			"unfix " + fix.ID(),
			"fix nve all nve",
		}, script.SingleCommand)
	case actionPush:
		if t.target != fix.Target() {
			fix.SetTarget(t.target)
		}
	case actionPull:
		if live := fix.Target(); live != t.target {
			t.target = live
			changes = append(changes, change{FieldTarget, live})
		}
		changes = t.markEnabled(true, changes)
	case actionCreate:
		// a script that is still setting up gets to define its integrator first
		if len(h.EnsembleFixes()) == 0 && h.Queue().Pending() > 0 {
			t.dirty = true
			break
		}
		// installed ahead of the unfixes so the next sync already sees it
		temp := formatFloat(t.target)
		h.Queue().AddToTop(fmt.Sprintf("fix %s all nvt temp %s %s %s", ThermostatID, temp, temp, formatFloat(t.damping)), script.SingleCommand)
		h.DisableEnsembleFixes()
	case actionDisable:
		changes = t.markEnabled(false, changes)
	}
	t.mu.Unlock()
	t.fire(changes)
}
