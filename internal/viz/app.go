package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/atomsim/internal/controls"
	"github.com/san-kum/atomsim/internal/engine"
	"github.com/san-kum/atomsim/internal/model"
)

const (
	width           = 64
	height          = 22
	historyCapacity = 300
	frameRate       = 30
	targetStep      = 0.1
)

type TickMsg time.Time

// ChangeMsg carries a model notification into the program.
type ChangeMsg model.Change

// App is the terminal presentation context. It only talks to the
// simulation through the shared model.
type App struct {
	sim         *model.Model
	source      string
	name        string
	tempCompute string

	canvas   *Canvas
	camera   *Camera
	theme    Theme
	st       styles
	history  []float64
	fault    *engine.Fault
	resets   int
	showHelp bool
}

// NewApp builds the UI for sim. source is reloaded on reset. Samples of the
// compute named tempCompute feed the temperature graph.
func NewApp(sim *model.Model, name, source, tempCompute string) App {
	return App{
		sim:         sim,
		source:      source,
		name:        name,
		tempCompute: tempCompute,
		canvas:      NewCanvas(width, height),
		camera:      NewCamera(),
		theme:       Themes[0],
		st:          stylesFor(Themes[0]),
		history:     make([]float64, 0, historyCapacity),
	}
}

// Forward returns an observer that relays the changes the UI reacts to.
// Scalars and snapshots are polled on the frame tick instead.
func Forward(p interface{ Send(tea.Msg) }, tempCompute string) func(model.Change) {
	return func(c model.Change) {
		switch c.Field {
		case model.FieldFault, model.FieldReset:
			p.Send(ChangeMsg(c))
		case model.FieldControl:
			if c.Control == tempCompute && c.Name == controls.FieldValues {
				p.Send(ChangeMsg(c))
			}
		}
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/frameRate, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (a App) Init() tea.Cmd { return tick() }

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.key(msg)
	case ChangeMsg:
		a.change(model.Change(msg))
	case TickMsg:
		a.draw()
		return a, tick()
	}
	return a, nil
}

func (a App) key(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch k := msg.String(); k {
	case "q", "ctrl+c":
		return a, tea.Quit
	case " ":
		a.sim.TogglePause()
	case "r":
		a.sim.RequestReset(a.source)
	case "+", "=":
		a.sim.SetSpeed(a.sim.Speed() * 2)
	case "-", "_":
		a.sim.SetSpeed(a.sim.Speed() / 2)
	case "t":
		if th, ok := a.sim.Thermostat(); ok {
			th.SetEnabled(!th.Enabled())
		}
	case "up", "k":
		a.nudgeTarget(targetStep)
	case "down", "j":
		a.nudgeTarget(-targetStep)
	case "x":
		a.camera.RotateX(0.1)
	case "X":
		a.camera.RotateX(-0.1)
	case "y":
		a.camera.RotateY(0.1)
	case "Y":
		a.camera.RotateY(-0.1)
	case "z":
		a.camera.ZoomIn()
	case "Z":
		a.camera.ZoomOut()
	case "c":
		a.theme = NextTheme(a.theme)
		a.st = stylesFor(a.theme)
	case "?":
		a.showHelp = !a.showHelp
	default:
		if len(k) == 1 && k[0] >= '1' && k[0] <= '9' {
			a.sim.Style().Toggle(int(k[0] - '0'))
		}
	}
	return a, nil
}

func (a *App) nudgeTarget(d float64) {
	th, ok := a.sim.Thermostat()
	if !ok {
		return
	}
	th.SetTargetTemperature(max(0, th.TargetTemperature()+d))
}

func (a *App) change(c model.Change) {
	switch c.Field {
	case model.FieldFault:
		if f, ok := c.Value.(*engine.Fault); ok {
			a.fault = f
		}
	case model.FieldReset:
		a.fault = nil
		a.resets++
		a.history = a.history[:0]
	case model.FieldControl:
		values, ok := c.Value.([]float64)
		if !ok || len(values) == 0 {
			return
		}
		a.history = append(a.history, values[0])
		if len(a.history) > historyCapacity {
			a.history = a.history[1:]
		}
	}
}

func (a *App) draw() {
	a.canvas.Clear()
	st := a.sim.Status()
	if st.NumberOfAtoms == 0 && st.SystemSize == (engine.Vec3{}) {
		return
	}
	DrawBox(a.canvas, a.camera, st.SystemSize, a.st.frame)
	DrawSnapshot(a.canvas, a.camera, a.sim.Snapshot(), st.SystemSize)
}

func (a App) View() string {
	st := a.sim.Status()
	var s strings.Builder
	s.WriteString(a.st.header.Render(strings.ToUpper(a.name)) + "\n")

	switch {
	case st.Crashed:
		s.WriteString(a.st.fault.Render("ENGINE ERROR") + "\n\n")
	case st.Paused:
		s.WriteString(a.st.paused.Render("PAUSED") + "\n\n")
	default:
		s.WriteString(a.st.running.Render("RUNNING") + "\n\n")
	}

	if len(a.history) > 1 {
		chart := asciigraph.Plot(a.history, asciigraph.Height(5), asciigraph.Width(32), asciigraph.Caption("Temperature"))
		s.WriteString(a.st.graph.Render(chart) + "\n\n")
	}

	row := func(label, value string) {
		s.WriteString(a.st.label.Render(label) + a.st.value.Render(value) + "\n")
	}
	row("Time", fmt.Sprintf("%.3f", st.SimulationTime))
	row("Timestep", fmt.Sprintf("%d", st.Timestep))
	row("Atoms", fmt.Sprintf("%d (%d types)", st.NumberOfAtoms, st.NumberOfAtomTypes))
	row("Box", fmt.Sprintf("%.1f x %.1f x %.1f", st.SystemSize[0], st.SystemSize[1], st.SystemSize[2]))
	row("Per step", st.TimePerTimestep.String())
	row("Speed", fmt.Sprintf("%d steps/tick", st.Speed))
	row("Script line", fmt.Sprintf("%d", st.ScriptLine))
	if st.RunStepsLeft > 0 {
		row("Run left", fmt.Sprintf("%d", st.RunStepsLeft))
	}

	s.WriteString("\nTHERMOSTAT\n")
	if th, ok := a.sim.Thermostat(); ok {
		state := "off"
		if th.Enabled() {
			state = "on"
		}
		s.WriteString(a.st.active.Render(fmt.Sprintf("  %-4s target %.2f", state, th.TargetTemperature())) + "\n")
	} else {
		s.WriteString(a.st.label.Render("  (none)") + "\n")
	}

	s.WriteString("\nTYPES\n")
	for i, ts := range a.sim.Style().Table() {
		mark := "hidden"
		if ts.Visible {
			mark = "shown"
		}
		swatch := lipgloss.NewStyle().Foreground(lipgloss.Color(ts.Color.Hex())).Render("●")
		s.WriteString(fmt.Sprintf("  %d %s %s\n", i+1, swatch, a.st.label.Render(mark)))
	}

	if a.fault != nil {
		msg := a.fault.Error()
		if a.fault.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", a.fault.Line, msg)
		}
		s.WriteString("\n" + a.st.fault.Render(msg) + "\n")
	}

	s.WriteString(a.st.help.Render("─────────────────────\nSP:Pause R:Reset Q:Quit\nT:Thermostat ↑↓:Target\n+/-:Speed 1-9:Types ?:Help"))

	canvasView := a.st.canvas.Render(a.canvas.Render())
	statsView := a.st.stats.Render(s.String())
	mainView := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsView)
	if a.showHelp {
		return helpText + "\n\n" + mainView
	}
	return mainView
}

const helpText = `
╔══════════════════════════════════════╗
║          KEYBOARD SHORTCUTS          ║
╠══════════════════════════════════════╣
║  Space    - Pause/Resume simulation  ║
║  R        - Reset and reload script  ║
║  Q        - Quit                     ║
║  + / -    - Double/halve speed       ║
║  T        - Toggle thermostat        ║
║  Up/K     - Raise target temperature ║
║  Down/J   - Lower target temperature ║
║  1-9      - Toggle atom type         ║
║  x/X y/Y  - Rotate view              ║
║  z/Z      - Zoom in/out              ║
║  C        - Cycle themes             ║
║  ?        - Toggle this help         ║
╚══════════════════════════════════════╝`
