package controls

import (
	"fmt"

	"github.com/san-kum/atomsim/internal/engine"
	"github.com/san-kum/atomsim/internal/script"
)

// Variable proxies an equal-style engine variable.
type Variable struct {
	base
	expression string
	value      float64
	valid      bool
}

func NewVariable(name, expression string) *Variable {
	return &Variable{base: base{id: name, enabled: true, dirty: true}, expression: expression}
}

func (v *Variable) Expression() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.expression
}

func (v *Variable) SetExpression(expression string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.expression == expression {
		return
	}
	v.expression = expression
	v.dirty = true
}

// Value returns the last evaluated value and whether evaluation succeeded.
func (v *Variable) Value() (float64, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.value, v.valid
}

func (v *Variable) definition() string {
	return fmt.Sprintf("variable %s equal %s", v.id, v.expression)
}

func (v *Variable) Synchronize(h Host) {
	d, found := engine.FindByID(h.Engine(), engine.KindVariable, v.id)

	var changes []change
	v.mu.Lock()
	switch v.decide(found) {
	case actionRemove:
		h.Queue().AddToTop(fmt.Sprintf("variable %s delete", v.id), script.SingleCommand)
	case actionPush, actionCreate:
		h.Queue().AddToTop(v.definition(), script.SingleCommand)
	case actionPull:
		if vd, ok := d.(engine.VariableDirective); ok {
			// an unresolvable formula is not a session fault
			val, err := vd.Value()
			if err == nil && (!v.valid || val != v.value) {
				v.value = val
				changes = append(changes, change{FieldValue, val})
			}
			v.valid = err == nil
		}
		changes = v.markEnabled(true, changes)
	case actionDisable:
		changes = v.markEnabled(false, changes)
	}
	v.mu.Unlock()
	v.fire(changes)
}
