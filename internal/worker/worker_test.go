package worker

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/atomsim/internal/controller"
	"github.com/san-kum/atomsim/internal/controls"
	"github.com/san-kum/atomsim/internal/engine"
	"github.com/san-kum/atomsim/internal/engine/toy"
	"github.com/san-kum/atomsim/internal/model"
)

const setup = `region box block 0 10 0 10 0 10
create_box 2 box
create_atoms 1 random 30 11
create_atoms 2 random 10 12
velocity all create 1.0 13
fix 1 all nve
`

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return nil
}

type tally struct {
	mu     sync.Mutex
	counts map[model.Field]int
}

func (t *tally) observe(c model.Change) {
	t.mu.Lock()
	t.counts[c.Field]++
	t.mu.Unlock()
}

func (t *tally) count(f model.Field) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[f]
}

func steps(w *Worker, n int) {
	for i := 0; i < n; i++ {
		w.Step()
	}
}

var _ = Describe("Remaining", func() {
	DescribeTable("splits the tick budget",
		func(elapsed, want time.Duration) {
			Expect(Remaining(elapsed, 16*time.Millisecond)).To(Equal(want))
		},
		Entry("short tick sleeps the rest", 5*time.Millisecond, 11*time.Millisecond),
		Entry("exact budget", 16*time.Millisecond, time.Duration(0)),
		Entry("overrun does not sleep", 20*time.Millisecond, time.Duration(0)),
		Entry("idle tick", time.Duration(0), 16*time.Millisecond),
	)
})

var _ = Describe("Worker", func() {
	var (
		m     *model.Model
		ctl   *controller.Controller
		clock *fakeClock
		seen  *tally
		w     *Worker
	)

	build := func(src string, opts Options) {
		logger := log.New(io.Discard)
		m = model.New()
		ctl = controller.New(toy.Factory, logger)
		Expect(ctl.Reset()).To(Succeed())
		ctl.Load(src)
		clock = &fakeClock{now: time.Unix(0, 0)}
		opts.Clock = clock
		opts.Logger = logger
		w = New(ctl, m, opts)
		seen = &tally{counts: map[model.Field]int{}}
		m.Observe(seen.observe)
	}

	Describe("throttling", func() {
		run := func(work time.Duration) []time.Duration {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			build(setup, Options{
				Budget: 16 * time.Millisecond,
				AfterTick: func(i uint64) {
					clock.advance(work)
					if i == 3 {
						cancel()
					}
				},
			})
			Expect(w.Run(ctx)).To(Succeed())
			return clock.sleeps
		}

		It("sleeps the remainder of a short tick", func() {
			Expect(run(5 * time.Millisecond)).To(Equal([]time.Duration{11 * time.Millisecond, 11 * time.Millisecond}))
		})

		It("never sleeps or catches up after an overrun", func() {
			Expect(run(20 * time.Millisecond)).To(BeEmpty())
			Expect(w.Iterations()).To(Equal(uint64(3)))
		})
	})

	Describe("fault reporting", func() {
		BeforeEach(func() {
			build(setup+"fix 3 all bogus\nvariable after equal 1\n", Options{})
		})

		It("announces a fault exactly once", func() {
			steps(w, 20)
			Expect(seen.count(model.FieldFault)).To(Equal(1))
			st := m.Status()
			Expect(st.Crashed).To(BeTrue())
			Expect(st.FaultLocation).To(Equal("fix"))
			Expect(st.FaultLine).To(Equal(7))
		})

		It("does nothing else in the pass that reports the fault", func() {
			steps(w, 7)
			Expect(ctl.Crashed()).To(BeTrue())
			Expect(m.Status().Crashed).To(BeFalse())

			m.SetSpeed(4)
			w.Step()
			Expect(seen.count(model.FieldFault)).To(Equal(1))
			Expect(m.Status().Crashed).To(BeTrue())
			Expect(m.Status().Speed).To(Equal(1))
			Expect(ctl.Speed()).To(Equal(1))

			w.Step()
			Expect(ctl.Speed()).To(Equal(4))
			Expect(m.Status().Speed).To(Equal(4))
			Expect(m.Status().Crashed).To(BeTrue())
			Expect(seen.count(model.FieldFault)).To(Equal(1))
		})

		It("stops publishing snapshots while crashed", func() {
			steps(w, 10)
			published := seen.count(model.FieldSnapshot)
			steps(w, 10)
			Expect(seen.count(model.FieldSnapshot)).To(Equal(published))
		})

		It("recovers after a reset and reports the next fault again", func() {
			steps(w, 10)
			m.RequestReset(setup + "unfix 9\n")
			w.Step()
			Expect(seen.count(model.FieldReset)).To(Equal(1))
			steps(w, 10)
			Expect(seen.count(model.FieldFault)).To(Equal(2))
			Expect(m.Status().FaultLocation).To(Equal("unfix"))
		})
	})

	Describe("editor commands", func() {
		It("defers #/pause to the next synchronization point", func() {
			build(setup+"#/pause\nvariable after equal 1\n", Options{})
			steps(w, 7)
			Expect(m.Paused()).To(BeFalse())
			w.Step()
			Expect(m.Paused()).To(BeTrue())
			Expect(m.Status().Paused).To(BeTrue())
			steps(w, 5)
			_, ok := engine.FindByID(ctl.Engine(), engine.KindVariable, "after")
			Expect(ok).To(BeFalse())

			m.SetPaused(false)
			steps(w, 1)
			_, ok = engine.FindByID(ctl.Engine(), engine.KindVariable, "after")
			Expect(ok).To(BeTrue())
		})

		It("hides atom types and republishes the snapshot", func() {
			build(setup+"#/visible 2 off\n", Options{})
			steps(w, 6)
			Expect(m.Snapshot().Len()).To(Equal(40))
			w.Step()
			Expect(m.Snapshot().Len()).To(Equal(30))
			for _, id := range m.Snapshot().TypeIDs {
				Expect(id).To(Equal(1))
			}
		})

		It("restyles atom types", func() {
			build(setup+"#/atom 1 0.5 red\n", Options{})
			steps(w, 7)
			style := m.Style().Table()[0]
			Expect(style.Scale).To(Equal(float32(0.5)))
			Expect(style.Color.Hex()).To(Equal("#e63946"))
		})

		It("changes speed", func() {
			build(setup+"#/speed 5\n", Options{})
			steps(w, 8)
			Expect(m.Status().Speed).To(Equal(5))
		})

		It("drops malformed commands and keeps going", func() {
			build(setup+"#/explode now\nvariable after equal 1\n", Options{})
			steps(w, 8)
			Expect(ctl.Crashed()).To(BeFalse())
			_, ok := engine.FindByID(ctl.Engine(), engine.KindVariable, "after")
			Expect(ok).To(BeTrue())
		})
	})

	It("does not rebuild snapshots while paused", func() {
		build(setup, Options{})
		steps(w, 8)
		m.SetPaused(true)
		w.Step()
		published := seen.count(model.FieldSnapshot)
		steps(w, 5)
		Expect(seen.count(model.FieldSnapshot)).To(Equal(published))

		m.Style().Toggle(1)
		w.Step()
		Expect(seen.count(model.FieldSnapshot)).To(Equal(published + 1))
	})

	It("grows the style table to the engine's atom types", func() {
		build(setup, Options{})
		steps(w, 3)
		Expect(m.Style().Table()).To(HaveLen(2))
	})

	It("reconciles model controls against the engine", func() {
		build(setup, Options{})
		steps(w, 7)
		th := controls.NewThermostat()
		m.AddControl(th)
		th.SetTargetTemperature(2.5)
		th.SetEnabled(true)
		steps(w, 3)
		fix, ok := engine.FindDirective[engine.Thermostat](ctl.Engine())
		Expect(ok).To(BeTrue())
		Expect(fix.Target()).To(Equal(2.5))
		Expect(th.Enabled()).To(BeTrue())
	})

	It("publishes engine scalars", func() {
		build(setup, Options{})
		steps(w, 8)
		st := m.Status()
		Expect(st.NumberOfAtoms).To(Equal(40))
		Expect(st.NumberOfAtomTypes).To(Equal(2))
		Expect(st.SystemSize).To(Equal(engine.Vec3{10, 10, 10}))
		Expect(st.Timestep).To(BeNumerically(">", 0))
	})
})
