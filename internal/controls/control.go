package controls

import (
	"strconv"
	"sync"

	"github.com/san-kum/atomsim/internal/engine"
	"github.com/san-kum/atomsim/internal/script"
)

// Host is what a control needs from the engine controller.
type Host interface {
	Engine() engine.Engine
	Queue() *script.Queue
	EnsembleFixes() []engine.Directive
	DisableEnsembleFixes()
	SimulationTime() float64
}

type Control interface {
	ID() string
	Enabled() bool
	SetEnabled(enabled bool)
	Dirty() bool
	Synchronize(h Host)
	SetNotifier(n Notifier)
}

// Notifier receives field changes. It is called without any control lock held.
type Notifier func(id, field string, value any)

const (
	FieldEnabled = "enabled"
	FieldTarget  = "target"
	FieldValues  = "values"
	FieldValue   = "value"
)

type action int

const (
	actionNone action = iota
	// directive present, edit pending, control disabled
	actionRemove
	// directive present, edit pending
	actionPush
	// directive present, no edit pending
	actionPull
	// directive missing, edit pending, control enabled
	actionCreate
	// directive missing, no edit pending
	actionDisable
)

type change struct {
	field string
	value any
}

type base struct {
	mu      sync.Mutex
	id      string
	enabled bool
	dirty   bool
	notify  Notifier
}

func (b *base) ID() string { return b.id }

func (b *base) Enabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enabled
}

// SetEnabled records a UI edit.
func (b *base) SetEnabled(enabled bool) {
	b.mu.Lock()
	if b.enabled == enabled {
		b.mu.Unlock()
		return
	}
	b.enabled = enabled
	b.dirty = true
	n := b.notify
	b.mu.Unlock()
	if n != nil {
		n(b.id, FieldEnabled, enabled)
	}
}

func (b *base) Dirty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dirty
}

func (b *base) SetNotifier(n Notifier) {
	b.mu.Lock()
	b.notify = n
	b.mu.Unlock()
}

// decide picks the protocol branch and clears dirty. Must hold b.mu.
func (b *base) decide(found bool) action {
	dirty := b.dirty
	b.dirty = false
	switch {
	case found && dirty && !b.enabled:
		return actionRemove
	case found && dirty:
		return actionPush
	case found:
		return actionPull
	case dirty && b.enabled:
		return actionCreate
	case !dirty && b.enabled:
		return actionDisable
	}
	return actionNone
}

// markEnabled mirrors an existing directive. Must hold b.mu.
func (b *base) markEnabled(enabled bool, changes []change) []change {
	if b.enabled == enabled {
		return changes
	}
	b.enabled = enabled
	return append(changes, change{FieldEnabled, enabled})
}

// fire delivers changes. Must not hold b.mu.
func (b *base) fire(changes []change) {
	if len(changes) == 0 {
		return
	}
	b.mu.Lock()
	n := b.notify
	b.mu.Unlock()
	if n == nil {
		return
	}
	for _, c := range changes {
		n(b.id, c.field, c.value)
	}
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
