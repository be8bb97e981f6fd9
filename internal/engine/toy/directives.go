package toy

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/san-kum/atomsim/internal/engine"
)

type directive struct {
	kind  engine.Kind
	id    string
	group string
	style string
}

func (d *directive) Kind() engine.Kind { return d.kind }
func (d *directive) ID() string        { return d.id }
func (d *directive) Style() string     { return d.style }
func (d *directive) Group() string     { return d.group }

type fixNVE struct{ directive }

func (f *fixNVE) postIntegrate(*Engine) {}
func (f *fixNVE) integrates() bool      { return true }

// fixNVT rescales velocities toward the target temperature every step.
type fixNVT struct {
	directive
	target  float64
	damping float64
}

func (f *fixNVT) Target() float64     { return f.target }
func (f *fixNVT) SetTarget(t float64) { f.target = t }
func (f *fixNVT) Damping() float64    { return f.damping }
func (f *fixNVT) integrates() bool    { return true }

func (f *fixNVT) postIntegrate(e *Engine) {
	cur := e.temperature()
	if cur <= 0 {
		return
	}
	ratio := 1 + (e.dt/f.damping)*(f.target/cur-1)
	if ratio < 0 {
		ratio = 0
	}
	e.scaleVelocities(math.Sqrt(ratio))
}

// fix ID GROUP STYLE args...
func (e *Engine) fix(args []string) error {
	if len(args) < 3 {
		return illegal("fix")
	}
	id, group, style := args[0], args[1], args[2]
	if group != "all" {
		return &engine.Error{Location: "fix", Message: fmt.Sprintf("Could not find fix group ID %s", group)}
	}
	base := directive{kind: engine.KindFix, id: id, group: group, style: style}
	var f fixer
	switch style {
	case "nve":
		if len(args) != 3 {
			return illegal("fix nve")
		}
		f = &fixNVE{directive: base}
	case "nvt":
		// fix ID all nvt temp Tstart Tstop Tdamp
		if len(args) != 7 || args[3] != "temp" {
			return illegal("fix nvt")
		}
		start, err := strconv.ParseFloat(args[4], 64)
		if err != nil || start < 0 {
			return illegal("fix nvt")
		}
		damp, err := strconv.ParseFloat(args[6], 64)
		if err != nil || damp <= 0 {
			return illegal("fix nvt")
		}
		f = &fixNVT{directive: base, target: start, damping: damp}
	default:
		return &engine.Error{Location: "fix", Message: fmt.Sprintf("Unrecognized fix style '%s'", style)}
	}
	if i := e.fixIndex(id); i >= 0 {
		if e.fixes[i].Style() != style {
			return &engine.Error{Location: "fix", Message: "Replacing a fix, but new style != old style"}
		}
		e.fixes[i] = f
		return nil
	}
	e.fixes = append(e.fixes, f)
	return nil
}

func (e *Engine) unfix(args []string) error {
	if len(args) != 1 {
		return illegal("unfix")
	}
	i := e.fixIndex(args[0])
	if i < 0 {
		return &engine.Error{Location: "unfix", Message: fmt.Sprintf("Could not find fix ID %s to delete", args[0])}
	}
	e.fixes = append(e.fixes[:i], e.fixes[i+1:]...)
	return nil
}

type scalarCompute struct {
	directive
	eval func() float64
}

func (c *scalarCompute) Values() []float64 { return []float64{c.eval()} }

type rdfCompute struct {
	directive
	e    *Engine
	bins int
}

// Values returns g(r) sampled at bins equal-width shells up to half the
// shortest box length.
func (c *rdfCompute) Values() []float64 {
	g := make([]float64, c.bins)
	e := c.e
	n := len(e.x)
	if n < 2 {
		return g
	}
	l := e.box.Lengths()
	cutoff := math.Min(l[0], math.Min(l[1], l[2])) / 2
	if cutoff <= 0 {
		return g
	}
	dr := cutoff / float64(c.bins)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			r := e.box.MinimumImage(e.x[i], e.x[j]).Norm()
			if r >= cutoff {
				continue
			}
			g[int(r/dr)] += 2
		}
	}
	rho := float64(n) / (l[0] * l[1] * l[2])
	for k := range g {
		lo, hi := float64(k)*dr, float64(k+1)*dr
		shell := 4.0 / 3.0 * math.Pi * (hi*hi*hi - lo*lo*lo)
		g[k] /= float64(n) * rho * shell
	}
	return g
}

// compute ID GROUP STYLE args...
func (e *Engine) compute(args []string) error {
	if len(args) < 3 {
		return illegal("compute")
	}
	id, group, style := args[0], args[1], args[2]
	if group != "all" {
		return &engine.Error{Location: "compute", Message: fmt.Sprintf("Could not find compute group ID %s", group)}
	}
	if e.computeIndex(id) >= 0 {
		return &engine.Error{Location: "compute", Message: fmt.Sprintf("Reuse of compute ID '%s'", id)}
	}
	base := directive{kind: engine.KindCompute, id: id, group: group, style: style}
	var c engine.ComputeDirective
	switch style {
	case "temp":
		c = &scalarCompute{directive: base, eval: e.temperature}
	case "ke":
		c = &scalarCompute{directive: base, eval: e.kinetic}
	case "count":
		c = &scalarCompute{directive: base, eval: func() float64 { return float64(len(e.x)) }}
	case "rdf":
		if len(args) != 4 {
			return illegal("compute rdf")
		}
		bins, err := strconv.Atoi(args[3])
		if err != nil || bins < 1 {
			return illegal("compute rdf")
		}
		c = &rdfCompute{directive: base, e: e, bins: bins}
	default:
		return &engine.Error{Location: "compute", Message: fmt.Sprintf("Unrecognized compute style '%s'", style)}
	}
	e.computes = append(e.computes, c)
	return nil
}

func (e *Engine) uncompute(args []string) error {
	if len(args) != 1 {
		return illegal("uncompute")
	}
	i := e.computeIndex(args[0])
	if i < 0 {
		return &engine.Error{Location: "uncompute", Message: fmt.Sprintf("Could not find compute ID %s to delete", args[0])}
	}
	e.computes = append(e.computes[:i], e.computes[i+1:]...)
	return nil
}

// variable evaluates a single term: a number, step, time, atoms, temp,
// c_ID, c_ID[i] or v_NAME.
type variable struct {
	directive
	name string
	expr string
	e    *Engine
}

func (v *variable) Value() (float64, error) { return v.e.evaluate(v.expr, 0) }

// variable NAME equal EXPR | variable NAME delete
func (e *Engine) variable(args []string) error {
	if len(args) == 2 && args[1] == "delete" {
		for i, v := range e.variables {
			if v.name == args[0] {
				e.variables = append(e.variables[:i], e.variables[i+1:]...)
				break
			}
		}
		return nil
	}
	if len(args) != 3 || args[1] != "equal" {
		return illegal("variable")
	}
	name, expr := args[0], args[2]
	v := &variable{
		directive: directive{kind: engine.KindVariable, id: name, group: "all", style: "equal"},
		name:      name,
		expr:      expr,
		e:         e,
	}
	if old, ok := e.findVariable(name); ok {
		*old = *v
		return nil
	}
	e.variables = append(e.variables, v)
	return nil
}

const maxVariableDepth = 16

func (e *Engine) evaluate(expr string, depth int) (float64, error) {
	if depth > maxVariableDepth {
		return 0, &engine.Error{Location: "variable", Message: "Variable evaluation is too deeply nested"}
	}
	switch expr {
	case "step":
		return float64(e.steps), nil
	case "time":
		return e.time, nil
	case "atoms":
		return float64(len(e.x)), nil
	case "temp":
		return e.temperature(), nil
	}
	if v, err := strconv.ParseFloat(expr, 64); err == nil {
		return v, nil
	}
	if strings.HasPrefix(expr, "v_") {
		ref, ok := e.findVariable(expr[2:])
		if !ok {
			return 0, &engine.Error{Location: "variable", Message: fmt.Sprintf("Invalid variable name in variable formula: %s", expr[2:])}
		}
		return e.evaluate(ref.expr, depth+1)
	}
	if strings.HasPrefix(expr, "c_") {
		id, idx := expr[2:], 1
		if open := strings.IndexByte(id, '['); open >= 0 && strings.HasSuffix(id, "]") {
			n, err := strconv.Atoi(id[open+1 : len(id)-1])
			if err != nil || n < 1 {
				return 0, &engine.Error{Location: "variable", Message: fmt.Sprintf("Invalid compute index in variable formula: %s", expr)}
			}
			id, idx = id[:open], n
		}
		c, ok := e.findCompute(id)
		if !ok {
			return 0, &engine.Error{Location: "variable", Message: fmt.Sprintf("Invalid compute ID in variable formula: %s", id)}
		}
		values := c.Values()
		if idx > len(values) {
			return 0, &engine.Error{Location: "variable", Message: fmt.Sprintf("Compute vector in variable formula is too small: %s", expr)}
		}
		return values[idx-1], nil
	}
	return 0, &engine.Error{Location: "variable", Message: fmt.Sprintf("Invalid syntax in variable formula: %s", expr)}
}
