package model

import (
	"time"

	"github.com/san-kum/atomsim/internal/engine"
)

// Status is the engine-derived state published after every tick.
type Status struct {
	SimulationTime    float64       `json:"simulation_time"`
	Timestep          int64         `json:"timestep"`
	NumberOfAtoms     int           `json:"number_of_atoms"`
	NumberOfAtomTypes int           `json:"number_of_atom_types"`
	SystemSize        engine.Vec3   `json:"system_size"`
	TimePerTimestep   time.Duration `json:"time_per_timestep_ns"`
	ScriptLine        int           `json:"script_line"`
	RunStepsLeft      int           `json:"run_steps_left"`
	Paused            bool          `json:"paused"`
	Speed             int           `json:"speed"`

	Crashed       bool   `json:"crashed"`
	FaultLocation string `json:"fault_location,omitempty"`
	FaultMessage  string `json:"fault_message,omitempty"`
	FaultLine     int    `json:"fault_line,omitempty"`
}

// diff lists the scalar fields that differ between a and b. Fault fields are
// left out; faults are announced separately, once.
func diff(a, b *Status) []Change {
	var out []Change
	add := func(changed bool, f Field, v any) {
		if changed {
			out = append(out, Change{Field: f, Value: v})
		}
	}
	add(a.SimulationTime != b.SimulationTime, FieldSimulationTime, b.SimulationTime)
	add(a.Timestep != b.Timestep, FieldTimestep, b.Timestep)
	add(a.NumberOfAtoms != b.NumberOfAtoms, FieldNumberOfAtoms, b.NumberOfAtoms)
	add(a.NumberOfAtomTypes != b.NumberOfAtomTypes, FieldNumberOfAtomTypes, b.NumberOfAtomTypes)
	add(a.SystemSize != b.SystemSize, FieldSystemSize, b.SystemSize)
	add(a.TimePerTimestep != b.TimePerTimestep, FieldTimePerTimestep, b.TimePerTimestep)
	add(a.ScriptLine != b.ScriptLine, FieldScriptLine, b.ScriptLine)
	add(a.RunStepsLeft != b.RunStepsLeft, FieldRunStepsLeft, b.RunStepsLeft)
	add(a.Paused != b.Paused, FieldPaused, b.Paused)
	add(a.Speed != b.Speed, FieldSpeed, b.Speed)
	return out
}
