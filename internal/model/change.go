package model

type Field int

const (
	FieldSimulationTime Field = iota
	FieldTimestep
	FieldNumberOfAtoms
	FieldNumberOfAtomTypes
	FieldSystemSize
	FieldTimePerTimestep
	FieldScriptLine
	FieldRunStepsLeft
	FieldPaused
	FieldSpeed
	// Value is the *engine.Fault
	FieldFault
	// the engine was recreated
	FieldReset
	// Value is the new *render.Snapshot
	FieldSnapshot
	// Control and Name identify the control field
	FieldControl
)

var fieldNames = [...]string{
	"simulation_time",
	"timestep",
	"number_of_atoms",
	"number_of_atom_types",
	"system_size",
	"time_per_timestep",
	"script_line",
	"run_steps_left",
	"paused",
	"speed",
	"fault",
	"reset",
	"snapshot",
	"control",
}

func (f Field) String() string {
	if f < 0 || int(f) >= len(fieldNames) {
		return "unknown"
	}
	return fieldNames[f]
}

// Change is one notification delivered to observers.
type Change struct {
	Field   Field
	Control string
	Name    string
	Value   any
}
