// Package toy is a small in-process engine speaking a LAMMPS-like command
// subset. Particles fly freely inside a periodic box; an nvt fix rescales
// velocities toward its target temperature. It exists so the synchronization
// core can be run and tested without a real molecular-dynamics engine.
package toy

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"

	"github.com/san-kum/atomsim/internal/engine"
)

const (
	DefaultTimestep = 0.005
	DefaultDamping  = 1.0
)

// Engine implements engine.Engine.
type Engine struct {
	box      engine.Box
	hasBox   bool
	regions  map[string]engine.Box
	numTypes int

	x     []engine.Vec3
	v     []engine.Vec3
	types []int

	dt    float64
	time  float64
	steps int64

	fixes     []fixer
	computes  []engine.ComputeDirective
	variables []*variable

	closed bool
}

// fixer is a fix that takes part in the integration step.
type fixer interface {
	engine.Directive
	postIntegrate(e *Engine)
	integrates() bool
}

func New() *Engine {
	return &Engine{
		regions: make(map[string]engine.Box),
		dt:      DefaultTimestep,
		box:     engine.Box{Periodic: [3]bool{true, true, true}},
	}
}

// Factory adapts New to engine.Factory.
func Factory() (engine.Engine, error) { return New(), nil }

func (e *Engine) ParticleCount() int       { return len(e.x) }
func (e *Engine) Positions() []engine.Vec3 { return e.x }
func (e *Engine) Types() []int             { return e.types }
func (e *Engine) NumTypes() int            { return e.numTypes }
func (e *Engine) Box() engine.Box          { return e.box }
func (e *Engine) Time() float64            { return e.time }
func (e *Engine) Timestep() int64          { return e.steps }

func (e *Engine) Directives() []engine.Directive {
	out := make([]engine.Directive, 0, len(e.fixes)+len(e.computes)+len(e.variables))
	for _, f := range e.fixes {
		out = append(out, f)
	}
	for _, c := range e.computes {
		out = append(out, c)
	}
	for _, v := range e.variables {
		out = append(out, v)
	}
	return out
}

// Ready reports whether a simulation box exists.
func (e *Engine) Ready() bool { return e.hasBox && !e.closed }

func (e *Engine) Close() error {
	e.closed = true
	return nil
}

// Step advances n timesteps.
func (e *Engine) Step(n int) error {
	if e.closed {
		return engine.ErrClosed
	}
	if n <= 0 {
		return nil
	}
	if !e.hasBox {
		return &engine.Error{Location: "run", Message: "Run command before simulation box is defined"}
	}
	for s := 0; s < n; s++ {
		if e.integrating() {
			for i := range e.x {
				e.x[i] = e.x[i].Add(e.v[i].Scale(e.dt))
			}
		}
		for _, f := range e.fixes {
			f.postIntegrate(e)
		}
		e.time += e.dt
		e.steps++
	}
	for i := range e.x {
		if !e.x[i].IsValid() || !e.v[i].IsValid() {
			return &engine.Error{Location: "integrate", Message: fmt.Sprintf("Non-numeric atom coords - simulation unstable (atom %d)", i+1)}
		}
	}
	return nil
}

func (e *Engine) integrating() bool {
	for _, f := range e.fixes {
		if f.integrates() {
			return true
		}
	}
	return false
}

// Submit executes one command line.
func (e *Engine) Submit(command string) error {
	if e.closed {
		return engine.ErrClosed
	}
	words := strings.Fields(command)
	if len(words) == 0 {
		return nil
	}
	name, args := words[0], words[1:]
	switch name {
	case "units", "atom_style", "dimension", "mass", "pair_style", "pair_coeff",
		"neighbor", "neigh_modify", "thermo", "thermo_style", "lattice":
		return nil
	case "boundary":
		return e.boundary(args)
	case "region":
		return e.region(args)
	case "create_box":
		return e.createBox(args)
	case "create_atoms":
		return e.createAtoms(args)
	case "velocity":
		return e.velocity(args)
	case "timestep":
		dt, err := parseFloat(name, args, 0)
		if err != nil {
			return err
		}
		if dt <= 0 {
			return illegal(name)
		}
		e.dt = dt
		return nil
	case "fix":
		return e.fix(args)
	case "unfix":
		return e.unfix(args)
	case "compute":
		return e.compute(args)
	case "uncompute":
		return e.uncompute(args)
	case "variable":
		return e.variable(args)
	case "run":
		n, err := parseInt(name, args, 0)
		if err != nil {
			return err
		}
		return e.Step(n)
	default:
		return &engine.Error{Location: "input", Message: fmt.Sprintf("Unknown command: %s", command)}
	}
}

func (e *Engine) boundary(args []string) error {
	if len(args) != 3 {
		return illegal("boundary")
	}
	if e.hasBox {
		return &engine.Error{Location: "boundary", Message: "Boundary command after simulation box is defined"}
	}
	for i, a := range args {
		switch a {
		case "p":
			e.box.Periodic[i] = true
		case "f", "s", "m":
			e.box.Periodic[i] = false
		default:
			return illegal("boundary")
		}
	}
	return nil
}

func (e *Engine) region(args []string) error {
	if len(args) != 8 || args[1] != "block" {
		return illegal("region")
	}
	var b engine.Box
	for i := 0; i < 3; i++ {
		lo, err := strconv.ParseFloat(args[2+2*i], 64)
		if err != nil {
			return illegal("region")
		}
		hi, err := strconv.ParseFloat(args[3+2*i], 64)
		if err != nil || hi <= lo {
			return illegal("region")
		}
		b.Lo[i], b.Hi[i] = lo, hi
	}
	e.regions[args[0]] = b
	return nil
}

func (e *Engine) createBox(args []string) error {
	if len(args) != 2 {
		return illegal("create_box")
	}
	if e.hasBox {
		return &engine.Error{Location: "create_box", Message: "Cannot create_box after simulation box is defined"}
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return illegal("create_box")
	}
	r, ok := e.regions[args[1]]
	if !ok {
		return &engine.Error{Location: "create_box", Message: fmt.Sprintf("Create_box region ID %s does not exist", args[1])}
	}
	e.box.Lo, e.box.Hi = r.Lo, r.Hi
	e.numTypes = n
	e.hasBox = true
	return nil
}

// create_atoms TYPE random N SEED
func (e *Engine) createAtoms(args []string) error {
	if len(args) != 4 || args[1] != "random" {
		return illegal("create_atoms")
	}
	if !e.hasBox {
		return &engine.Error{Location: "create_atoms", Message: "Create_atoms command before simulation box is defined"}
	}
	t, err := strconv.Atoi(args[0])
	if err != nil || t < 1 || t > e.numTypes {
		return &engine.Error{Location: "create_atoms", Message: "Invalid atom type in create_atoms command"}
	}
	n, err := strconv.Atoi(args[2])
	if err != nil || n < 0 {
		return illegal("create_atoms")
	}
	seed, err := strconv.ParseInt(args[3], 10, 64)
	if err != nil || seed <= 0 {
		return illegal("create_atoms")
	}
	rng := rand.New(rand.NewSource(seed))
	l := e.box.Lengths()
	for i := 0; i < n; i++ {
		var p engine.Vec3
		for k := 0; k < 3; k++ {
			p[k] = e.box.Lo[k] + rng.Float64()*l[k]
		}
		e.x = append(e.x, p)
		e.v = append(e.v, engine.Vec3{})
		e.types = append(e.types, t)
	}
	return nil
}

// velocity all create T SEED
func (e *Engine) velocity(args []string) error {
	if len(args) != 4 || args[0] != "all" || args[1] != "create" {
		return illegal("velocity")
	}
	target, err := strconv.ParseFloat(args[2], 64)
	if err != nil || target < 0 {
		return illegal("velocity")
	}
	seed, err := strconv.ParseInt(args[3], 10, 64)
	if err != nil || seed <= 0 {
		return illegal("velocity")
	}
	rng := rand.New(rand.NewSource(seed))
	for i := range e.v {
		e.v[i] = engine.Vec3{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}
	}
	e.removeDrift()
	if cur := e.temperature(); cur > 0 {
		e.scaleVelocities(math.Sqrt(target / cur))
	}
	return nil
}

func (e *Engine) removeDrift() {
	if len(e.v) == 0 {
		return
	}
	var sum engine.Vec3
	for _, v := range e.v {
		sum = sum.Add(v)
	}
	mean := sum.Scale(1 / float64(len(e.v)))
	for i := range e.v {
		e.v[i] = e.v[i].Sub(mean)
	}
}

func (e *Engine) scaleVelocities(f float64) {
	for i := range e.v {
		e.v[i] = e.v[i].Scale(f)
	}
}

// temperature in reduced units with unit mass and kB.
func (e *Engine) temperature() float64 {
	if len(e.v) == 0 {
		return 0
	}
	return 2 * e.kinetic() / (3 * float64(len(e.v)))
}

func (e *Engine) kinetic() float64 {
	ke := 0.0
	for _, v := range e.v {
		ke += 0.5 * (v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	}
	return ke
}

func (e *Engine) fixIndex(id string) int {
	for i, f := range e.fixes {
		if f.ID() == id {
			return i
		}
	}
	return -1
}

func (e *Engine) computeIndex(id string) int {
	for i, c := range e.computes {
		if c.ID() == id {
			return i
		}
	}
	return -1
}

func (e *Engine) findCompute(id string) (engine.ComputeDirective, bool) {
	if i := e.computeIndex(id); i >= 0 {
		return e.computes[i], true
	}
	return nil, false
}

func (e *Engine) findVariable(name string) (*variable, bool) {
	for _, v := range e.variables {
		if v.name == name {
			return v, true
		}
	}
	return nil, false
}

func illegal(command string) error {
	return &engine.Error{Location: command, Message: fmt.Sprintf("Illegal %s command", command)}
}

func parseFloat(command string, args []string, i int) (float64, error) {
	if i >= len(args) {
		return 0, illegal(command)
	}
	v, err := strconv.ParseFloat(args[i], 64)
	if err != nil {
		return 0, illegal(command)
	}
	return v, nil
}

func parseInt(command string, args []string, i int) (int, error) {
	if i >= len(args) {
		return 0, illegal(command)
	}
	v, err := strconv.Atoi(args[i])
	if err != nil || v < 0 {
		return 0, illegal(command)
	}
	return v, nil
}
