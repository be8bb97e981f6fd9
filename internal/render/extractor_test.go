package render

import (
	"math/rand"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/san-kum/atomsim/internal/engine"
)

type fakeSource struct {
	pos   []engine.Vec3
	types []int
	box   engine.Box
}

func (f *fakeSource) ParticleCount() int       { return len(f.pos) }
func (f *fakeSource) Positions() []engine.Vec3 { return f.pos }
func (f *fakeSource) Types() []int             { return f.types }
func (f *fakeSource) Box() engine.Box          { return f.box }
func (f *fakeSource) Time() float64            { return 1.25 }
func (f *fakeSource) Timestep() int64          { return 250 }

func cube(l float64) engine.Box {
	return engine.Box{Hi: engine.Vec3{l, l, l}, Periodic: [3]bool{true, true, true}}
}

func table(visible ...bool) []TypeStyle {
	out := make([]TypeStyle, len(visible))
	for i, v := range visible {
		out[i] = DefaultTypeStyle(i + 1)
		out[i].Visible = v
		out[i].Scale = float32(i + 1)
	}
	return out
}

func TestExtractFiltersByType(t *testing.T) {
	g := NewWithT(t)
	src := &fakeSource{
		pos: []engine.Vec3{
			{1, 1, 1},
			{12, 2, 3},
			{5, 5, 5},
			{6, 6, 6},
			{-1, 9, 4},
		},
		types: []int{1, 1, 2, 2, 1},
		box:   cube(10),
	}

	snap := NewExtractor().Extract(src, table(true, false))

	g.Expect(snap.Len()).To(Equal(3))
	g.Expect(snap.Scales).To(HaveLen(3))
	g.Expect(snap.Colors).To(HaveLen(3))
	g.Expect(snap.TypeIDs).To(Equal([]int{1, 1, 1}))
	g.Expect(snap.Positions).To(Equal([]Vec3{
		{-4, -4, -4},
		{-3, -3, -2},
		{4, 4, -1},
	}))
	g.Expect(snap.Scales).To(Equal([]float32{1, 1, 1}))
	g.Expect(snap.Time).To(Equal(1.25))
	g.Expect(snap.Timestep).To(Equal(int64(250)))
}

func TestExtractEmptyAndFullTables(t *testing.T) {
	g := NewWithT(t)
	src := &fakeSource{
		pos:   []engine.Vec3{{1, 1, 1}, {2, 2, 2}, {3, 3, 3}},
		types: []int{1, 2, 3},
		box:   cube(10),
	}
	x := NewExtractor()

	none := x.Extract(src, table(false, false, false))
	g.Expect(none.Positions).To(BeEmpty())
	g.Expect(none.Scales).To(BeEmpty())
	g.Expect(none.Colors).To(BeEmpty())
	g.Expect(none.TypeIDs).To(BeEmpty())

	g.Expect(x.Extract(src, nil).Len()).To(BeZero())

	all := x.Extract(src, table(true, true, true))
	g.Expect(all.Len()).To(Equal(3))
	g.Expect(all.Scales).To(Equal([]float32{1, 2, 3}))
}

func TestExtractTypeOutsideTable(t *testing.T) {
	g := NewWithT(t)
	src := &fakeSource{
		pos:   []engine.Vec3{{1, 1, 1}, {2, 2, 2}, {3, 3, 3}},
		types: []int{1, 4, 0},
		box:   cube(10),
	}
	snap := NewExtractor().Extract(src, table(true, true))
	g.Expect(snap.TypeIDs).To(Equal([]int{1}))
}

func TestExtractSnapshotsAreIndependent(t *testing.T) {
	g := NewWithT(t)
	src := &fakeSource{
		pos:   []engine.Vec3{{1, 1, 1}, {2, 2, 2}},
		types: []int{1, 1},
		box:   cube(10),
	}
	x := NewExtractor()
	first := x.Extract(src, table(true))
	src.pos[0] = engine.Vec3{9, 9, 9}
	second := x.Extract(src, table(true))

	g.Expect(first.Positions[0]).To(Equal(Vec3{-4, -4, -4}))
	g.Expect(second.Positions[0]).To(Equal(Vec3{4, 4, 4}))
}

func TestExtractLengthMatchesVisibleCount(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	x := NewExtractor()
	for trial := 0; trial < 200; trial++ {
		numTypes := 1 + rng.Intn(5)
		n := rng.Intn(300)
		src := &fakeSource{box: cube(8)}
		for i := 0; i < n; i++ {
			src.pos = append(src.pos, engine.Vec3{rng.Float64()*40 - 20, rng.Float64() * 8, rng.Float64() * 8})
			src.types = append(src.types, 1+rng.Intn(numTypes+1))
		}
		vis := make([]bool, numTypes)
		for i := range vis {
			vis[i] = rng.Intn(2) == 0
		}

		want := 0
		for _, tp := range src.types {
			if tp <= numTypes && vis[tp-1] {
				want++
			}
		}

		snap := x.Extract(src, table(vis...))
		for _, l := range []int{len(snap.Positions), len(snap.Scales), len(snap.Colors), len(snap.TypeIDs)} {
			if l != want {
				t.Fatalf("trial %d: expected %d entries, got %d", trial, want, l)
			}
		}
		for _, p := range snap.Positions {
			for k := range p {
				if p[k] < -4 || p[k] >= 4 {
					t.Fatalf("trial %d: position %v outside centered box", trial, p)
				}
			}
		}
	}
}
