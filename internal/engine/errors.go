package engine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoEngine = errors.New("engine: no engine instance")

	ErrClosed = errors.New("engine: instance closed")
)

// Error is raised by an engine that rejected a command or hit an internal
// failure. Location names the engine component that raised it.
type Error struct {
	Location string
	Message  string
}

func (e *Error) Error() string {
	if e.Location == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Location, e.Message)
}

// Fault is a captured engine failure. It stays in place until the
// controller is reset.
type Fault struct {
	Location string
	Message  string
	Command  string
	Line     int
	reported bool
}

// NewFault captures err raised while executing command (at script line, 0
// for injected commands).
func NewFault(err error, command string, line int) *Fault {
	f := &Fault{Command: command, Line: line}
	var ee *Error
	if errors.As(err, &ee) {
		f.Location = strings.TrimSpace(ee.Location)
		f.Message = strings.TrimSpace(ee.Message)
	} else {
		f.Message = strings.TrimSpace(err.Error())
	}
	return f
}

func (f *Fault) Reported() bool { return f.reported }

func (f *Fault) MarkReported() { f.reported = true }

func (f *Fault) Error() string {
	if f.Location == "" {
		return f.Message
	}
	return fmt.Sprintf("%s: %s", f.Location, f.Message)
}
