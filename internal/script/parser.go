package script

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const EditorPrefix = "#/"

var ErrMalformedEditorCommand = errors.New("script: malformed editor command")

// Classify decides whether text is meant for the host or the engine.
func Classify(text string) Kind {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, EditorPrefix) {
		return EditorCommand
	}
	if fields := strings.Fields(text); len(fields) > 0 && fields[0] == "run" {
		return RunCommand
	}
	return EngineCommand
}

// IsEditorCommand reports whether text is directed at the host environment.
func IsEditorCommand(text string) bool { return Classify(text) == EditorCommand }

// Split breaks a script source into commands. Blank lines and comments are
// dropped, trailing '&' joins the next line, editor lines are kept whole.
func Split(source string) []Command {
	var (
		out     []Command
		pending strings.Builder
		start   int
	)
	lines := strings.Split(strings.ReplaceAll(source, "\r\n", "\n"), "\n")
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if strings.HasPrefix(line, EditorPrefix) && pending.Len() == 0 {
			out = append(out, Command{Text: line, Kind: EditorCommand, Line: i + 1})
			continue
		}
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}
		cont := strings.HasSuffix(line, "&")
		if cont {
			line = strings.TrimSpace(strings.TrimSuffix(line, "&"))
		}
		if line != "" {
			if pending.Len() == 0 {
				start = i + 1
			} else {
				pending.WriteByte(' ')
			}
			pending.WriteString(line)
		}
		if cont || pending.Len() == 0 {
			continue
		}
		text := pending.String()
		pending.Reset()
		out = append(out, Command{Text: text, Kind: Classify(text), Line: start})
	}
	if pending.Len() > 0 {
		text := pending.String()
		out = append(out, Command{Text: text, Kind: Classify(text), Line: start})
	}
	return out
}

// RunSteps extracts N from "run N ...". Extra keywords are ignored.
func RunSteps(text string) (int, error) {
	fields := strings.Fields(text)
	if len(fields) < 2 || fields[0] != "run" {
		return 0, fmt.Errorf("script: not a run command: %q", text)
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("script: invalid run length %q", fields[1])
	}
	return n, nil
}

type EditorOp int

const (
	OpAtom EditorOp = iota
	OpVisible
	OpPause
	OpSpeed
)

// Editor is a parsed host-directed command.
type Editor struct {
	Op      EditorOp
	Type    int
	Radius  float64
	Color   string
	Visible bool
	Speed   int
}

// ParseEditor parses an editor command. Unknown or malformed commands
// return an error wrapping ErrMalformedEditorCommand.
func ParseEditor(text string) (Editor, error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, EditorPrefix) {
		return Editor{}, fmt.Errorf("%w: %q", ErrMalformedEditorCommand, text)
	}
	fields := strings.Fields(strings.TrimPrefix(text, EditorPrefix))
	if len(fields) == 0 {
		return Editor{}, fmt.Errorf("%w: %q", ErrMalformedEditorCommand, text)
	}
	bad := func() (Editor, error) {
		return Editor{}, fmt.Errorf("%w: %q", ErrMalformedEditorCommand, text)
	}

	switch fields[0] {
	case "atom":
		// #/atom TYPE RADIUS COLOR
		if len(fields) != 4 {
			return bad()
		}
		t, err := strconv.Atoi(fields[1])
		if err != nil || t < 1 {
			return bad()
		}
		r, err := strconv.ParseFloat(fields[2], 64)
		if err != nil || r <= 0 {
			return bad()
		}
		return Editor{Op: OpAtom, Type: t, Radius: r, Color: fields[3]}, nil
	case "visible":
		// #/visible TYPE on|off
		if len(fields) != 3 {
			return bad()
		}
		t, err := strconv.Atoi(fields[1])
		if err != nil || t < 1 {
			return bad()
		}
		switch fields[2] {
		case "on", "yes", "true":
			return Editor{Op: OpVisible, Type: t, Visible: true}, nil
		case "off", "no", "false":
			return Editor{Op: OpVisible, Type: t, Visible: false}, nil
		}
		return bad()
	case "pause":
		if len(fields) != 1 {
			return bad()
		}
		return Editor{Op: OpPause}, nil
	case "speed":
		if len(fields) != 2 {
			return bad()
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 1 {
			return bad()
		}
		return Editor{Op: OpSpeed, Speed: n}, nil
	}
	return bad()
}
