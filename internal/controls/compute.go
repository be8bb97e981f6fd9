package controls

import (
	"slices"

	"github.com/san-kum/atomsim/internal/engine"
	"github.com/san-kum/atomsim/internal/script"
)

// Compute proxies an engine compute. Values are sampled every tick and
// notified when they change.
type Compute struct {
	base
	command      string
	dependencies []string
	stale        bool
	values       []float64
	time         float64
	samples      int
}

// NewCompute installs command on the first sync once every compute listed in
// dependencies exists.
func NewCompute(id, command string, dependencies ...string) *Compute {
	return &Compute{
		base:         base{id: id, enabled: true, dirty: true},
		command:      command,
		dependencies: dependencies,
	}
}

func (c *Compute) Command() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.command
}

func (c *Compute) Dependencies() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.dependencies...)
}

// SetCommand records a UI edit; the compute is recreated on the next sync.
func (c *Compute) SetCommand(command string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setCommandLocked(command)
}

func (c *Compute) setCommandLocked(command string) {
	if c.command == command {
		return
	}
	c.command = command
	c.stale = true
	c.dirty = true
}

// Values returns a copy of the last sample and the simulation time it was taken at.
func (c *Compute) Values() ([]float64, float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]float64(nil), c.values...), c.time
}

func (c *Compute) IsVector() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.values) > 1
}

// Samples counts pulls since creation.
func (c *Compute) Samples() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.samples
}

func (c *Compute) Synchronize(h Host) {
	e := h.Engine()
	d, found := engine.FindByID(e, engine.KindCompute, c.id)

	var changes []change
	c.mu.Lock()
	switch c.decide(found) {
	case actionRemove:
		h.Queue().AddToTop("uncompute "+c.id, script.SingleCommand)
	case actionPush:
		if c.stale {
			h.Queue().AddManyToTop([]string{"uncompute " + c.id, c.command}, script.SingleCommand)
			c.stale = false
		}
	case actionPull:
		if cd, ok := d.(engine.ComputeDirective); ok {
			live := cd.Values()
			c.time = h.SimulationTime()
			c.samples++
			if c.samples == 1 || !slices.Equal(live, c.values) {
				c.values = append(c.values[:0], live...)
				changes = append(changes, change{FieldValues, append([]float64(nil), c.values...)})
			}
		}
		changes = c.markEnabled(true, changes)
	case actionCreate:
		if !c.dependenciesMet(e) {
			c.dirty = true
			break
		}
		h.Queue().AddToTop(c.command, script.SingleCommand)
		c.stale = false
	case actionDisable:
		changes = c.markEnabled(false, changes)
	}
	c.mu.Unlock()
	c.fire(changes)
}

func (c *Compute) dependenciesMet(e engine.Engine) bool {
	for _, dep := range c.dependencies {
		if _, ok := engine.FindByID(e, engine.KindCompute, dep); !ok {
			return false
		}
	}
	return true
}
