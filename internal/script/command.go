package script

type Kind int

const (
	EngineCommand Kind = iota
	EditorCommand
	SkipTick
	SingleCommand
	RunCommand
)

func (k Kind) String() string {
	switch k {
	case EngineCommand:
		return "engine"
	case EditorCommand:
		return "editor"
	case SkipTick:
		return "skip"
	case SingleCommand:
		return "single"
	case RunCommand:
		return "run"
	default:
		return "unknown"
	}
}

// Command is one unit of work handed to the controller. Line is the 1-based
// source line, 0 for commands injected by controls.
type Command struct {
	Text string
	Kind Kind
	Line int
}

// Skip is the empty command returned when nothing is queued.
func Skip() Command { return Command{Kind: SkipTick} }

func (c Command) IsSkip() bool { return c.Kind == SkipTick }
