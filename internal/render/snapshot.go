package render

import "github.com/san-kum/atomsim/internal/engine"

type Vec3 [3]float32

// Snapshot is a fully rebuilt, filtered copy of particle render state. All
// slices have the same length. It is never mutated after publication.
type Snapshot struct {
	Positions []Vec3
	Scales    []float32
	Colors    []Color
	TypeIDs   []int
	Time      float64
	Timestep  int64
}

func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Positions)
}

// Source is the particle data an extraction reads. engine.Engine satisfies it.
type Source interface {
	ParticleCount() int
	Positions() []engine.Vec3
	Types() []int
	Box() engine.Box
	Time() float64
	Timestep() int64
}

// Extractor builds snapshots. Its scratch buffers are reused across calls;
// snapshots it returns own their slices.
type Extractor struct {
	positions []Vec3
	types     []int
}

func NewExtractor() *Extractor { return &Extractor{} }

// Extract walks every particle once. A particle is kept iff its 1-based type
// is covered by table and marked visible. Kept positions are remapped into
// the periodic image and shifted by the box half extent.
func (x *Extractor) Extract(src Source, table []TypeStyle) *Snapshot {
	n := src.ParticleCount()
	pos := src.Positions()
	types := src.Types()
	if len(pos) < n {
		n = len(pos)
	}
	if len(types) < n {
		n = len(types)
	}
	box := src.Box()
	half := box.Half()

	x.positions = x.positions[:0]
	x.types = x.types[:0]
	for i := 0; i < n; i++ {
		t := types[i]
		if t < 1 || t > len(table) || !table[t-1].Visible {
			continue
		}
		p := box.Remap(pos[i])
		x.positions = append(x.positions, Vec3{
			float32(p[0] - half[0]),
			float32(p[1] - half[1]),
			float32(p[2] - half[2]),
		})
		x.types = append(x.types, t)
	}

	visible := len(x.positions)
	snap := &Snapshot{
		Positions: make([]Vec3, visible),
		Scales:    make([]float32, visible),
		Colors:    make([]Color, visible),
		TypeIDs:   make([]int, visible),
		Time:      src.Time(),
		Timestep:  src.Timestep(),
	}
	copy(snap.Positions, x.positions)
	copy(snap.TypeIDs, x.types)
	for i, t := range snap.TypeIDs {
		snap.Scales[i] = table[t-1].Scale
		snap.Colors[i] = table[t-1].Color
	}
	return snap
}
