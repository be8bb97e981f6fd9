package script

import (
	"testing"

	. "github.com/onsi/gomega"
)

func TestEmptyQueueSkips(t *testing.T) {
	g := NewWithT(t)
	q := NewQueue()
	for i := 0; i < 5; i++ {
		cmd := q.Next()
		g.Expect(cmd.Kind).To(Equal(SkipTick))
		g.Expect(cmd.Text).To(BeEmpty())
	}
}

func TestLaneBeforeBody(t *testing.T) {
	g := NewWithT(t)
	q := NewQueue()
	q.Load("units lj\nfix 1 all nve\nrun 100\n")
	q.AddToTop("unfix nvt", SingleCommand)
	q.AddManyToTop([]string{"fix nve all nve", "compute t all temp"}, SingleCommand)
	q.AddToTop("variable n equal atoms", SingleCommand)

	var got []string
	for q.Pending() > 0 {
		got = append(got, q.Next().Text)
	}
	g.Expect(got).To(Equal([]string{
		"unfix nvt",
		"fix nve all nve",
		"compute t all temp",
		"variable n equal atoms",
		"units lj",
		"fix 1 all nve",
		"run 100",
	}))
	g.Expect(q.Next().IsSkip()).To(BeTrue())
}

func TestLaneInsertedMidScript(t *testing.T) {
	g := NewWithT(t)
	q := NewQueue()
	q.Load("a\nb\nc")
	g.Expect(q.Next().Text).To(Equal("a"))
	g.Expect(q.HasPriority()).To(BeFalse())

	q.AddToTop("x", SingleCommand)
	g.Expect(q.HasPriority()).To(BeTrue())
	cmd := q.Next()
	g.Expect(q.HasPriority()).To(BeFalse())
	g.Expect(cmd.Text).To(Equal("x"))
	g.Expect(cmd.Kind).To(Equal(SingleCommand))
	g.Expect(cmd.Line).To(BeZero())
	g.Expect(q.Line()).To(Equal(1), "injected commands must not move the cursor")

	g.Expect(q.Next().Text).To(Equal("b"))
	g.Expect(q.Line()).To(Equal(2))
}

func TestInjectedEditorTextStaysEditor(t *testing.T) {
	g := NewWithT(t)
	q := NewQueue()
	q.AddToTop("#/pause", SingleCommand)
	g.Expect(q.Next().Kind).To(Equal(EditorCommand))
}

func TestClear(t *testing.T) {
	g := NewWithT(t)
	q := NewQueue()
	q.Load("a\nb")
	q.AddToTop("x", SingleCommand)
	q.Next()
	q.Next()
	q.Clear()
	g.Expect(q.Pending()).To(BeZero())
	g.Expect(q.Line()).To(BeZero())
}
