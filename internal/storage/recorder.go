package storage

import (
	"sync"
	"time"

	"github.com/san-kum/atomsim/internal/controls"
	"github.com/san-kum/atomsim/internal/engine"
	"github.com/san-kum/atomsim/internal/model"
)

// DefaultSampleLimit bounds the samples a Recorder keeps in memory.
const DefaultSampleLimit = 200_000

// Recorder collects compute samples and session events from model
// notifications. Register Observe with model.Model.Observe.
type Recorder struct {
	mu      sync.Mutex
	m       *model.Model
	meta    SessionMetadata
	samples []Sample
	limit   int
	dropped int
	now     func() time.Time
}

func NewRecorder(m *model.Model, name string) *Recorder {
	return &Recorder{
		m:     m,
		meta:  SessionMetadata{Name: name, Started: time.Now()},
		limit: DefaultSampleLimit,
		now:   time.Now,
	}
}

func (r *Recorder) SetLimit(n int) {
	r.mu.Lock()
	r.limit = n
	r.mu.Unlock()
}

func (r *Recorder) Observe(c model.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch c.Field {
	case model.FieldControl:
		if c.Name != controls.FieldValues {
			return
		}
		values, ok := c.Value.([]float64)
		if !ok {
			return
		}
		if len(r.samples) >= r.limit {
			r.dropped++
			return
		}
		r.samples = append(r.samples, Sample{
			Time:    r.m.Status().SimulationTime,
			Compute: c.Control,
			Values:  values,
		})
	case model.FieldFault:
		if f, ok := c.Value.(*engine.Fault); ok && r.meta.Fault == nil {
			r.meta.Fault = &FaultRecord{Location: f.Location, Message: f.Message, Command: f.Command, Line: f.Line}
		}
	case model.FieldReset:
		r.meta.Resets++
	}
}

// Samples returns a copy of what has been recorded so far.
func (r *Recorder) Samples() []Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sample(nil), r.samples...)
}

func (r *Recorder) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Save stamps the final status onto the metadata and writes the session.
func (r *Recorder) Save(s *Store) (string, error) {
	st := r.m.Status()
	r.mu.Lock()
	meta := r.meta
	samples := append([]Sample(nil), r.samples...)
	r.mu.Unlock()

	meta.Ended = r.now()
	meta.Timesteps = st.Timestep
	meta.SimulationTime = st.SimulationTime
	meta.Atoms = st.NumberOfAtoms
	meta.AtomTypes = st.NumberOfAtomTypes
	return s.Save(meta, samples)
}
