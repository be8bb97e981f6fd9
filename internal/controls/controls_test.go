package controls

import (
	"math/rand"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/san-kum/atomsim/internal/engine"
	"github.com/san-kum/atomsim/internal/engine/toy"
	"github.com/san-kum/atomsim/internal/script"
)

type fakeHost struct {
	e        *toy.Engine
	q        *script.Queue
	disabled int
}

func newHost(t *testing.T, cmds ...string) *fakeHost {
	t.Helper()
	h := &fakeHost{e: toy.New(), q: script.NewQueue()}
	base := []string{
		"region box block 0 5 0 5 0 5",
		"create_box 1 box",
		"create_atoms 1 random 20 99",
		"velocity all create 1.0 5",
	}
	for _, c := range append(base, cmds...) {
		if err := h.e.Submit(c); err != nil {
			t.Fatalf("submit %q: %v", c, err)
		}
	}
	return h
}

func (h *fakeHost) Engine() engine.Engine { return h.e }
func (h *fakeHost) Queue() *script.Queue  { return h.q }

func (h *fakeHost) EnsembleFixes() []engine.Directive {
	return engine.FindFixes(h.e, "nve", "nvt")
}

func (h *fakeHost) DisableEnsembleFixes() {
	h.disabled++
	for _, d := range h.EnsembleFixes() {
		h.q.AddToTop("unfix "+d.ID(), script.SingleCommand)
	}
}

func (h *fakeHost) SimulationTime() float64 { return h.e.Time() }

// take pops every queued command without executing it.
func (h *fakeHost) take() []string {
	var out []string
	for h.q.Pending() > 0 {
		out = append(out, h.q.Next().Text)
	}
	return out
}

// run executes every queued command against the engine.
func (h *fakeHost) run(t *testing.T) []string {
	t.Helper()
	cmds := h.take()
	for _, c := range cmds {
		if err := h.e.Submit(c); err != nil {
			t.Fatalf("submit %q: %v", c, err)
		}
	}
	return cmds
}

type recorder struct{ changes []string }

func (r *recorder) notify(id, field string, value any) { r.changes = append(r.changes, field) }

func thermostatFix(t *testing.T, h *fakeHost) engine.Thermostat {
	t.Helper()
	fix, ok := engine.FindDirective[engine.Thermostat](h.e)
	if !ok {
		t.Fatal("expected an active thermostat fix")
	}
	return fix
}

func TestThermostatRemoveWhenDisabled(t *testing.T) {
	g := NewWithT(t)
	h := newHost(t, "fix hot all nvt temp 2.5 2.5 0.5")
	th := NewThermostat()
	th.Synchronize(h)
	g.Expect(th.Enabled()).To(BeTrue())

	th.SetEnabled(false)
	th.SetTargetTemperature(9)
	g.Expect(th.Dirty()).To(BeTrue())

	th.Synchronize(h)
	g.Expect(h.take()).To(Equal([]string{"unfix hot", "fix nve all nve"}))
	g.Expect(thermostatFix(t, h).Target()).To(Equal(2.5))
	g.Expect(th.Dirty()).To(BeFalse())
}

func TestThermostatPullsLiveTarget(t *testing.T) {
	g := NewWithT(t)
	h := newHost(t, "fix hot all nvt temp 2.5 2.5 0.5")
	rec := &recorder{}
	th := NewThermostat()
	th.SetNotifier(rec.notify)

	th.Synchronize(h)
	g.Expect(th.TargetTemperature()).To(Equal(2.5))
	g.Expect(th.Enabled()).To(BeTrue())
	g.Expect(rec.changes).To(Equal([]string{FieldTarget, FieldEnabled}))
	g.Expect(h.take()).To(BeEmpty())

	rec.changes = nil
	th.Synchronize(h)
	g.Expect(rec.changes).To(BeEmpty())
	g.Expect(h.take()).To(BeEmpty())
	g.Expect(th.Dirty()).To(BeFalse())
}

func TestThermostatPushesEdit(t *testing.T) {
	g := NewWithT(t)
	h := newHost(t, "fix hot all nvt temp 2.5 2.5 0.5")
	th := NewThermostat()
	th.Synchronize(h)

	rec := &recorder{}
	th.SetNotifier(rec.notify)
	th.SetTargetTemperature(0.75)
	rec.changes = nil

	th.Synchronize(h)
	g.Expect(thermostatFix(t, h).Target()).To(Equal(0.75))
	g.Expect(rec.changes).To(BeEmpty())
	g.Expect(h.take()).To(BeEmpty())
}

func TestThermostatCreatesFix(t *testing.T) {
	g := NewWithT(t)
	h := newHost(t, "fix 1 all nve")
	th := NewThermostat()
	th.SetTargetTemperature(1.5)
	th.SetEnabled(true)

	th.Synchronize(h)
	g.Expect(h.disabled).To(Equal(1))
	g.Expect(h.run(t)).To(Equal([]string{"fix nvt all nvt temp 1.5 1.5 1", "unfix 1"}))

	th.Synchronize(h)
	g.Expect(h.take()).To(BeEmpty())
	g.Expect(thermostatFix(t, h).ID()).To(Equal(ThermostatID))
	g.Expect(th.Enabled()).To(BeTrue())
}

func TestThermostatWaitsForScriptIntegrator(t *testing.T) {
	g := NewWithT(t)
	h := newHost(t)
	h.q.Load("fix 1 all nve\nrun 100\n")
	th := NewThermostat()
	th.SetEnabled(true)

	th.Synchronize(h)
	g.Expect(th.Dirty()).To(BeTrue())
	g.Expect(h.q.HasPriority()).To(BeFalse())

	g.Expect(h.e.Submit(h.q.Next().Text)).To(Succeed())
	th.Synchronize(h)
	g.Expect(th.Dirty()).To(BeFalse())
	g.Expect(h.disabled).To(Equal(1))
	var lane []string
	for h.q.HasPriority() {
		lane = append(lane, h.q.Next().Text)
	}
	g.Expect(lane).To(Equal([]string{"fix nvt all nvt temp 0 0 1", "unfix 1"}))
}

func TestThermostatDisablesWhenFixVanishes(t *testing.T) {
	g := NewWithT(t)
	h := newHost(t, "fix hot all nvt temp 2.5 2.5 0.5")
	rec := &recorder{}
	th := NewThermostat()
	th.Synchronize(h)
	th.SetNotifier(rec.notify)

	g.Expect(h.e.Submit("unfix hot")).To(Succeed())
	th.Synchronize(h)
	g.Expect(th.Enabled()).To(BeFalse())
	g.Expect(rec.changes).To(Equal([]string{FieldEnabled}))
	g.Expect(h.take()).To(BeEmpty())
}

func TestThermostatDirtyDisabledWithoutFix(t *testing.T) {
	g := NewWithT(t)
	h := newHost(t)
	th := NewThermostat()
	th.SetTargetTemperature(3)
	th.Synchronize(h)
	g.Expect(h.take()).To(BeEmpty())
	g.Expect(th.Dirty()).To(BeFalse())
}

func TestThermostatNeverPushesAndPulls(t *testing.T) {
	h := newHost(t)
	rng := rand.New(rand.NewSource(3))
	th := NewThermostat()
	pulled := false
	th.SetNotifier(func(id, field string, value any) {
		if field == FieldTarget {
			pulled = true
		}
	})

	for tick := 0; tick < 500; tick++ {
		switch rng.Intn(6) {
		case 0:
			th.SetTargetTemperature(float64(rng.Intn(5)))
		case 1:
			th.SetEnabled(rng.Intn(2) == 0)
		case 2:
			if fix, ok := engine.FindDirective[engine.Thermostat](h.e); ok {
				fix.SetTarget(float64(rng.Intn(5)))
			}
		}

		var before float64
		fix, live := engine.FindDirective[engine.Thermostat](h.e)
		if live {
			before = fix.Target()
		}
		pulled = false
		th.Synchronize(h)
		pushed := live && fix.Target() != before
		if pushed && pulled {
			t.Fatalf("tick %d: control pushed and pulled in one call", tick)
		}
		if th.Dirty() {
			t.Fatalf("tick %d: dirty left set after synchronize", tick)
		}
		h.run(t)
	}
}

func TestComputeWaitsForDependencies(t *testing.T) {
	g := NewWithT(t)
	h := newHost(t)
	c := NewCompute("ratio", "compute ratio all ke", "t")

	c.Synchronize(h)
	g.Expect(h.take()).To(BeEmpty())
	g.Expect(c.Dirty()).To(BeTrue())

	g.Expect(h.e.Submit("compute t all temp")).To(Succeed())
	c.Synchronize(h)
	g.Expect(h.run(t)).To(Equal([]string{"compute ratio all ke"}))

	c.Synchronize(h)
	values, _ := c.Values()
	g.Expect(values).To(HaveLen(1))
	g.Expect(values[0]).To(BeNumerically(">", 0))
	g.Expect(c.Samples()).To(Equal(1))
	g.Expect(c.IsVector()).To(BeFalse())
}

func TestComputeNotifiesOnlyOnChange(t *testing.T) {
	g := NewWithT(t)
	h := newHost(t)
	c := NewCompute("k", "compute k all ke")
	rec := &recorder{}
	c.SetNotifier(rec.notify)
	c.Synchronize(h)
	h.run(t)

	// free flight keeps the kinetic energy constant
	for i := 0; i < 3; i++ {
		c.Synchronize(h)
	}
	g.Expect(c.Samples()).To(Equal(3))
	g.Expect(rec.changes).To(Equal([]string{FieldValues}))

	before, _ := c.Values()
	g.Expect(h.e.Submit("velocity all create 3.0 7")).To(Succeed())
	c.Synchronize(h)
	after, _ := c.Values()
	g.Expect(after).NotTo(Equal(before))
	g.Expect(rec.changes).To(Equal([]string{FieldValues, FieldValues}))
}

func TestComputeRecreatedOnEdit(t *testing.T) {
	g := NewWithT(t)
	h := newHost(t)
	c := NewCompute("k", "compute k all ke")
	c.Synchronize(h)
	h.run(t)
	c.Synchronize(h)

	c.SetCommand("compute k all temp")
	c.Synchronize(h)
	g.Expect(h.run(t)).To(Equal([]string{"uncompute k", "compute k all temp"}))

	c.SetEnabled(false)
	c.Synchronize(h)
	g.Expect(h.run(t)).To(Equal([]string{"uncompute k"}))
	c.Synchronize(h)
	g.Expect(c.Enabled()).To(BeFalse())
	g.Expect(h.take()).To(BeEmpty())
}

func TestRDFBins(t *testing.T) {
	g := NewWithT(t)
	h := newHost(t)
	r := NewRDF("rdf", 20)
	r.Synchronize(h)
	g.Expect(h.run(t)).To(Equal([]string{"compute rdf all rdf 20"}))
	r.Synchronize(h)
	values, _ := r.Values()
	g.Expect(values).To(HaveLen(20))
	g.Expect(r.IsVector()).To(BeTrue())

	r.SetBins(8)
	r.Synchronize(h)
	h.run(t)
	r.Synchronize(h)
	values, _ = r.Values()
	g.Expect(values).To(HaveLen(8))
	g.Expect(r.Bins()).To(Equal(8))
}

func TestVariableProxy(t *testing.T) {
	g := NewWithT(t)
	h := newHost(t)
	v := NewVariable("n", "atoms")
	v.Synchronize(h)
	g.Expect(h.run(t)).To(Equal([]string{"variable n equal atoms"}))

	v.Synchronize(h)
	val, ok := v.Value()
	g.Expect(ok).To(BeTrue())
	g.Expect(val).To(Equal(20.0))

	v.SetExpression("c_missing")
	v.Synchronize(h)
	h.run(t)
	v.Synchronize(h)
	_, ok = v.Value()
	g.Expect(ok).To(BeFalse())

	v.SetEnabled(false)
	v.Synchronize(h)
	g.Expect(h.run(t)).To(Equal([]string{"variable n delete"}))
}

func TestFixProxy(t *testing.T) {
	g := NewWithT(t)
	h := newHost(t)
	f := NewFix("move", "fix move all nve")
	f.Synchronize(h)
	g.Expect(h.run(t)).To(Equal([]string{"fix move all nve"}))

	f.Synchronize(h)
	g.Expect(h.take()).To(BeEmpty())
	g.Expect(f.Enabled()).To(BeTrue())

	f.SetEnabled(false)
	f.Synchronize(h)
	g.Expect(h.run(t)).To(Equal([]string{"unfix move"}))
	f.Synchronize(h)
	g.Expect(h.take()).To(BeEmpty())
}
