package engine

import "math"

type Vec3 [3]float64

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v[0] + o[0], v[1] + o[1], v[2] + o[2]} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v[0] - o[0], v[1] - o[1], v[2] - o[2]} }

func (v Vec3) Scale(f float64) Vec3 { return Vec3{v[0] * f, v[1] * f, v[2] * f} }

func (v Vec3) Norm() float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

func (v Vec3) IsValid() bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// Box is the simulation cell. Periodic axes wrap positions into [Lo, Hi).
type Box struct {
	Lo       Vec3
	Hi       Vec3
	Periodic [3]bool
}

func (b Box) Lengths() Vec3 { return b.Hi.Sub(b.Lo) }

// Half returns the per-axis half extent of the box.
func (b Box) Half() Vec3 { return b.Lengths().Scale(0.5) }

// Remap maps p into the canonical periodic image of the box. Non-periodic axes
// and degenerate (zero-length) axes are left untouched.
func (b Box) Remap(p Vec3) Vec3 {
	l := b.Lengths()
	for i := 0; i < 3; i++ {
		if !b.Periodic[i] || l[i] <= 0 {
			continue
		}
		r := math.Mod(p[i]-b.Lo[i], l[i])
		if r < 0 {
			r += l[i]
		}
		p[i] = b.Lo[i] + r
	}
	return p
}

// MinimumImage returns the shortest periodic displacement between a and b.
func (b Box) MinimumImage(a, c Vec3) Vec3 {
	d := a.Sub(c)
	l := b.Lengths()
	for i := 0; i < 3; i++ {
		if !b.Periodic[i] || l[i] <= 0 {
			continue
		}
		d[i] -= l[i] * math.Round(d[i]/l[i])
	}
	return d
}

type Kind int

const (
	KindFix Kind = iota
	KindCompute
	KindVariable
)

func (k Kind) String() string {
	switch k {
	case KindFix:
		return "fix"
	case KindCompute:
		return "compute"
	case KindVariable:
		return "variable"
	default:
		return "unknown"
	}
}

// Directive is a named behavior registered in the engine.
type Directive interface {
	Kind() Kind
	ID() string
	Style() string
	Group() string
}

// Thermostat exposes the tunable target of a temperature-control fix.
type Thermostat interface {
	Directive
	Target() float64
	SetTarget(t float64)
	Damping() float64
}

type ComputeDirective interface {
	Directive
	Values() []float64
}

type VariableDirective interface {
	Directive
	Value() (float64, error)
}

// Engine is the stepping/query service the controller drives. Slices returned
// by Positions and Types are owned by the engine and valid until the next
// Step or Submit.
type Engine interface {
	Submit(command string) error
	Step(n int) error
	ParticleCount() int
	Positions() []Vec3
	Types() []int
	NumTypes() int
	Box() Box
	Time() float64
	Timestep() int64
	Directives() []Directive
	Close() error
}

type Factory func() (Engine, error)

// Readier is implemented by engines that can tell whether an idle step would
// be meaningful (e.g. a simulation box exists).
type Readier interface {
	Ready() bool
}

// FindDirective returns the first active directive implementing T.
func FindDirective[T Directive](e Engine) (T, bool) {
	var zero T
	if e == nil {
		return zero, false
	}
	for _, d := range e.Directives() {
		if t, ok := d.(T); ok {
			return t, true
		}
	}
	return zero, false
}

// FindByID looks a directive up by kind and identifier.
func FindByID(e Engine, kind Kind, id string) (Directive, bool) {
	if e == nil {
		return nil, false
	}
	for _, d := range e.Directives() {
		if d.Kind() == kind && d.ID() == id {
			return d, true
		}
	}
	return nil, false
}

// FindFixes returns every fix whose style is one of styles.
func FindFixes(e Engine, styles ...string) []Directive {
	if e == nil {
		return nil
	}
	var out []Directive
	for _, d := range e.Directives() {
		if d.Kind() != KindFix {
			continue
		}
		for _, s := range styles {
			if d.Style() == s {
				out = append(out, d)
				break
			}
		}
	}
	return out
}
