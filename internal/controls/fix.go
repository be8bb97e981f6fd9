package controls

import (
	"github.com/san-kum/atomsim/internal/engine"
	"github.com/san-kum/atomsim/internal/script"
)

// Fix proxies an arbitrary fix by identifier. Command is the full
// "fix ID GROUP STYLE ..." line used to (re)install it.
type Fix struct {
	base
	command string
}

func NewFix(id, command string) *Fix {
	return &Fix{base: base{id: id, enabled: true, dirty: true}, command: command}
}

func (f *Fix) Command() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.command
}

// SetCommand records a UI edit; the fix is reinstalled on the next sync.
func (f *Fix) SetCommand(command string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.command == command {
		return
	}
	f.command = command
	f.dirty = true
}

func (f *Fix) Synchronize(h Host) {
	_, found := engine.FindByID(h.Engine(), engine.KindFix, f.id)

	var changes []change
	f.mu.Lock()
	switch f.decide(found) {
	case actionRemove:
		h.Queue().AddToTop("unfix "+f.id, script.SingleCommand)
	case actionPush, actionCreate:
		h.Queue().AddToTop(f.command, script.SingleCommand)
	case actionPull:
		changes = f.markEnabled(true, changes)
	case actionDisable:
		changes = f.markEnabled(false, changes)
	}
	f.mu.Unlock()
	f.fire(changes)
}
